package dynamo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/phone-auth-api/internal/domain"
)

// maxTransactItems is the DynamoDB limit for a single TransactWriteItems call.
const maxTransactItems = 100

type opKind int

const (
	opPut opKind = iota
	opDelete
	opUpdate
)

type condition struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

func attrNotExists(attr string) *condition {
	return &condition{Expr: "attribute_not_exists(#c0)", Names: map[string]string{"#c0": attr}}
}

// attrEquals requires every attribute to hold the given value.
func attrEquals(want map[string]types.AttributeValue) *condition {
	attrs := make([]string, 0, len(want))
	for a := range want {
		attrs = append(attrs, a)
	}
	sort.Strings(attrs)
	c := &condition{
		Names:  make(map[string]string, len(attrs)),
		Values: make(map[string]types.AttributeValue, len(attrs)),
	}
	parts := make([]string, 0, len(attrs))
	for i, a := range attrs {
		n, v := fmt.Sprintf("#c%d", i), fmt.Sprintf(":c%d", i)
		c.Names[n] = a
		c.Values[v] = want[a]
		parts = append(parts, n+" = "+v)
	}
	c.Expr = strings.Join(parts, " AND ")
	return c
}

// op is one item write, executed directly or buffered into a transaction.
type op struct {
	kind   opKind
	table  string
	key    map[string]types.AttributeValue
	item   map[string]types.AttributeValue
	update *updateExpr
	cond   *condition
	// condErr is returned when cond fails on a direct write; defaults to
	// domain.ErrConflict.
	condErr error
}

// id identifies the target item across ops.
func (o *op) id() string {
	attrs := make([]string, 0, len(o.key))
	for a := range o.key {
		attrs = append(attrs, a)
	}
	sort.Strings(attrs)
	var b strings.Builder
	b.WriteString(o.table)
	for _, a := range attrs {
		b.WriteString("|" + a + "=")
		if s, ok := o.key[a].(*types.AttributeValueMemberS); ok {
			b.WriteString(s.Value)
		}
	}
	return b.String()
}

func (o *op) exprParts() (*string, map[string]string, map[string]types.AttributeValue) {
	var names map[string]string
	var values map[string]types.AttributeValue
	if o.update != nil {
		names = make(map[string]string, len(o.update.Names))
		for k, v := range o.update.Names {
			names[k] = v
		}
		values = mergeValues(nil, o.update.Values)
	}
	if o.cond == nil {
		return nil, names, values
	}
	if names == nil {
		names = make(map[string]string, len(o.cond.Names))
	}
	for k, v := range o.cond.Names {
		names[k] = v
	}
	if len(o.cond.Values) > 0 {
		values = mergeValues(values, o.cond.Values)
	}
	return aws.String(o.cond.Expr), names, values
}

func (o *op) transactItem() types.TransactWriteItem {
	cond, names, values := o.exprParts()
	switch o.kind {
	case opPut:
		return types.TransactWriteItem{Put: &types.Put{
			TableName:                 aws.String(o.table),
			Item:                      o.item,
			ConditionExpression:       cond,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		}}
	case opDelete:
		return types.TransactWriteItem{Delete: &types.Delete{
			TableName:                 aws.String(o.table),
			Key:                       o.key,
			ConditionExpression:       cond,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		}}
	default:
		return types.TransactWriteItem{Update: &types.Update{
			TableName:                 aws.String(o.table),
			Key:                       o.key,
			UpdateExpression:          aws.String(o.update.Expr),
			ConditionExpression:       cond,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		}}
	}
}

type writer interface {
	apply(ctx context.Context, o *op) error
}

// directWriter executes each op immediately.
type directWriter struct {
	db API
}

func (w directWriter) apply(ctx context.Context, o *op) error {
	cond, names, values := o.exprParts()
	var err error
	switch o.kind {
	case opPut:
		_, err = w.db.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                 aws.String(o.table),
			Item:                      o.item,
			ConditionExpression:       cond,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		})
	case opDelete:
		_, err = w.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:                 aws.String(o.table),
			Key:                       o.key,
			ConditionExpression:       cond,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		})
	case opUpdate:
		_, err = w.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(o.table),
			Key:                       o.key,
			UpdateExpression:          aws.String(o.update.Expr),
			ConditionExpression:       cond,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		})
	}
	if err == nil {
		return nil
	}
	if isConditionalCheckFailed(err) {
		if o.condErr != nil {
			return fmt.Errorf("%s: %w", o.table, o.condErr)
		}
		return fmt.Errorf("%s: %w", o.table, domain.ErrConflict)
	}
	return fmt.Errorf("write %s: %w", o.table, err)
}

// txWriter buffers ops for a single TransactWriteItems call. DynamoDB rejects
// two actions on one item, so a put following a delete of the same key is
// folded into one put carrying the delete's condition, and a repeated delete
// is dropped.
type txWriter struct {
	ops   []*op
	index map[string]int
}

func newTxWriter() *txWriter {
	return &txWriter{index: map[string]int{}}
}

func (w *txWriter) apply(_ context.Context, o *op) error {
	id := o.id()
	i, seen := w.index[id]
	if !seen {
		w.index[id] = len(w.ops)
		w.ops = append(w.ops, o)
		return nil
	}
	prev := w.ops[i]
	switch {
	case prev.kind == opDelete && o.kind == opPut:
		merged := *o
		merged.cond = prev.cond
		w.ops[i] = &merged
	case prev.kind == opDelete && o.kind == opDelete:
	default:
		return fmt.Errorf("conflicting writes to %s in one transaction", id)
	}
	return nil
}

func (w *txWriter) items() []types.TransactWriteItem {
	out := make([]types.TransactWriteItem, 0, len(w.ops))
	for _, o := range w.ops {
		out = append(out, o.transactItem())
	}
	return out
}

func (w *txWriter) commit(ctx context.Context, db API) error {
	if len(w.ops) == 0 {
		return nil
	}
	if len(w.ops) > maxTransactItems {
		return fmt.Errorf("transaction has %d writes, limit is %d", len(w.ops), maxTransactItems)
	}
	_, err := db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: w.items()})
	if err == nil {
		return nil
	}
	if isTxConflict(err) {
		return fmt.Errorf("commit transaction: %w: %w", domain.ErrConflict, err)
	}
	return fmt.Errorf("commit transaction: %w", err)
}
