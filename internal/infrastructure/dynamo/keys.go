package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/phone-auth-api/internal/domain"
)

// Config keys are stored with PK name so lookups by name are strongly
// consistent and uniqueness comes from the key itself. Lookups by id go
// through key_id-index.

func (s *Store) GetKeyByName(ctx context.Context, name string) (*domain.EncryptedKey, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.ConfigKeys),
		Key:            strKey(fieldName, name),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get config key: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("config key %s: %w", name, domain.ErrNotFound)
	}
	var k domain.EncryptedKey
	if err := attributevalue.UnmarshalMap(out.Item, &k); err != nil {
		return nil, fmt.Errorf("unmarshal config key: %w", err)
	}
	return &k, nil
}

func (s *Store) GetKey(ctx context.Context, keyID string) (*domain.EncryptedKey, error) {
	out, err := s.db.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tables.ConfigKeys),
		IndexName:                 aws.String(indexKeyID),
		KeyConditionExpression:    aws.String("#id = :id"),
		ExpressionAttributeNames:  map[string]string{"#id": fieldKeyID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":id": strVal(keyID)},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query config key: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("config key %s: %w", keyID, domain.ErrNotFound)
	}
	var k domain.EncryptedKey
	if err := attributevalue.UnmarshalMap(out.Items[0], &k); err != nil {
		return nil, fmt.Errorf("unmarshal config key: %w", err)
	}
	return &k, nil
}

func (s *Store) CreateKey(ctx context.Context, k *domain.EncryptedKey) error {
	item, err := attributevalue.MarshalMap(k)
	if err != nil {
		return fmt.Errorf("marshal config key: %w", err)
	}
	return directWriter{db: s.db}.apply(ctx, &op{
		kind:  opPut,
		table: s.tables.ConfigKeys,
		key:   strKey(fieldName, k.Name),
		item:  item,
		cond:  attrNotExists(fieldName),
	})
}

// UpdateKey rewrites k in place, or moves it to a new name item in one
// transaction when the name changed.
func (s *Store) UpdateKey(ctx context.Context, k *domain.EncryptedKey) error {
	current, err := s.GetKey(ctx, k.KeyID)
	if err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(k)
	if err != nil {
		return fmt.Errorf("marshal config key: %w", err)
	}
	sameID := attrEquals(map[string]types.AttributeValue{fieldKeyID: strVal(k.KeyID)})
	if current.Name == k.Name {
		return directWriter{db: s.db}.apply(ctx, &op{
			kind:  opPut,
			table: s.tables.ConfigKeys,
			key:   strKey(fieldName, k.Name),
			item:  item,
			cond:  sameID,
		})
	}
	tw := newTxWriter()
	if err := tw.apply(ctx, &op{
		kind:  opDelete,
		table: s.tables.ConfigKeys,
		key:   strKey(fieldName, current.Name),
		cond:  sameID,
	}); err != nil {
		return err
	}
	if err := tw.apply(ctx, &op{
		kind:  opPut,
		table: s.tables.ConfigKeys,
		key:   strKey(fieldName, k.Name),
		item:  item,
		cond:  attrNotExists(fieldName),
	}); err != nil {
		return err
	}
	return tw.commit(ctx, s.db)
}

func (s *Store) ListKeys(ctx context.Context) ([]domain.EncryptedKey, error) {
	var out []domain.EncryptedKey
	p := dynamodb.NewScanPaginator(s.db, &dynamodb.ScanInput{
		TableName: aws.String(s.tables.ConfigKeys),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan config keys: %w", err)
		}
		var batch []domain.EncryptedKey
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal config keys: %w", err)
		}
		out = append(out, batch...)
	}
	return out, nil
}
