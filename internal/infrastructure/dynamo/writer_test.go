package dynamo

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxWriter_DeleteThenPutKeepsDeleteCondition(t *testing.T) {
	tw := newTxWriter()
	ctx := context.Background()
	prevOwner := attrEquals(map[string]types.AttributeValue{fieldUserID: strVal("old")})

	require.NoError(t, tw.apply(ctx, &op{kind: opDelete, table: "phone_numbers", key: strKey(fieldPhoneNumber, "+1555"), cond: prevOwner}))
	require.NoError(t, tw.apply(ctx, &op{
		kind:  opPut,
		table: "phone_numbers",
		key:   strKey(fieldPhoneNumber, "+1555"),
		item:  map[string]types.AttributeValue{fieldPhoneNumber: strVal("+1555"), fieldUserID: strVal("new")},
		cond:  attrNotExists(fieldPhoneNumber),
	}))

	items := tw.items()
	require.Len(t, items, 1)
	put := items[0].Put
	require.NotNil(t, put)
	assert.Equal(t, "#c0 = :c0", *put.ConditionExpression)
	assert.Equal(t, fieldUserID, put.ExpressionAttributeNames["#c0"])
	assert.Equal(t, strVal("old"), put.ExpressionAttributeValues[":c0"])
}

func TestTxWriter_UnconditionalDeleteThenPut(t *testing.T) {
	tw := newTxWriter()
	ctx := context.Background()
	key := compositeKey(fieldUserID, "u1", fieldKind, "PHONE_NUMBER_TOKEN")

	require.NoError(t, tw.apply(ctx, &op{kind: opDelete, table: "otp_tokens", key: key}))
	require.NoError(t, tw.apply(ctx, &op{kind: opPut, table: "otp_tokens", key: key, item: key, cond: attrNotExists(fieldUserID)}))

	items := tw.items()
	require.Len(t, items, 1)
	assert.Nil(t, items[0].Put.ConditionExpression)
}

func TestTxWriter_RepeatedDeleteDropped(t *testing.T) {
	tw := newTxWriter()
	ctx := context.Background()
	key := strKey(fieldUserID, "u1")

	require.NoError(t, tw.apply(ctx, &op{kind: opDelete, table: "users", key: key}))
	require.NoError(t, tw.apply(ctx, &op{kind: opDelete, table: "users", key: key}))
	assert.Len(t, tw.items(), 1)
}

func TestTxWriter_PutThenPutRejected(t *testing.T) {
	tw := newTxWriter()
	ctx := context.Background()
	key := strKey(fieldUserID, "u1")

	require.NoError(t, tw.apply(ctx, &op{kind: opPut, table: "users", key: key, item: key}))
	assert.Error(t, tw.apply(ctx, &op{kind: opPut, table: "users", key: key, item: key}))
}

func TestTxWriter_DistinctKeysKeepOrder(t *testing.T) {
	tw := newTxWriter()
	ctx := context.Background()
	require.NoError(t, tw.apply(ctx, &op{kind: opDelete, table: "users", key: strKey(fieldUserID, "a")}))
	require.NoError(t, tw.apply(ctx, &op{kind: opDelete, table: "users", key: strKey(fieldUserID, "b")}))
	require.NoError(t, tw.apply(ctx, &op{kind: opDelete, table: "phone_numbers", key: strKey(fieldPhoneNumber, "a")}))

	items := tw.items()
	require.Len(t, items, 3)
	assert.Equal(t, strVal("a"), items[0].Delete.Key[fieldUserID])
	assert.Equal(t, strVal("b"), items[1].Delete.Key[fieldUserID])
	assert.Equal(t, "phone_numbers", *items[2].Delete.TableName)
}

func TestOp_UpdateMergesConditionPlaceholders(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldPhoneIsVerified: true})
	require.NoError(t, err)
	o := &op{
		kind:   opUpdate,
		table:  "users",
		key:    strKey(fieldUserID, "u1"),
		update: ue,
		cond:   attrEquals(map[string]types.AttributeValue{fieldIsDeleted: boolVal(false)}),
	}

	upd := o.transactItem().Update
	require.NotNil(t, upd)
	assert.Equal(t, "SET #f0 = :v0", *upd.UpdateExpression)
	assert.Equal(t, map[string]string{"#f0": fieldPhoneIsVerified, "#c0": fieldIsDeleted}, upd.ExpressionAttributeNames)
	assert.Len(t, upd.ExpressionAttributeValues, 2)
	assert.Len(t, ue.Names, 1, "building the item must not mutate the update expression")
}
