package dynamo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/phone-auth-api/internal/domain"
)

// otpItem is the stored form of an OTP token.
// PK: user_id, SK: kind. Expiry is checked on read; no TTL is configured.
type otpItem struct {
	UserID    string `dynamodbav:"user_id"`
	Kind      string `dynamodbav:"kind"`
	TokenID   string `dynamodbav:"token_id"`
	Code      string `dynamodbav:"code"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
	ExtraData string `dynamodbav:"extra_data"`
	CreatedAt int64  `dynamodbav:"created_at"`
}

func toOTPItem(t *domain.OTPToken) otpItem {
	extra := t.ExtraData
	if len(extra) == 0 {
		extra = domain.EmptyExtraData
	}
	return otpItem{
		UserID:    t.UserID,
		Kind:      string(t.Kind),
		TokenID:   t.TokenID,
		Code:      t.Code,
		ExpiresAt: t.ExpiresAt.UnixMilli(),
		ExtraData: string(extra),
		CreatedAt: t.CreatedAt.UnixMilli(),
	}
}

func (i otpItem) token() *domain.OTPToken {
	return &domain.OTPToken{
		TokenID:   i.TokenID,
		UserID:    i.UserID,
		Kind:      domain.TokenKind(i.Kind),
		Code:      i.Code,
		ExpiresAt: time.UnixMilli(i.ExpiresAt).UTC(),
		ExtraData: json.RawMessage(i.ExtraData),
		CreatedAt: time.UnixMilli(i.CreatedAt).UTC(),
	}
}

func (s *Store) otpKey(userID string, kind domain.TokenKind) map[string]types.AttributeValue {
	return compositeKey(fieldUserID, userID, fieldKind, string(kind))
}

func (s *Store) deleteOTPOp(userID string, kind domain.TokenKind, cond *condition) *op {
	return &op{kind: opDelete, table: s.tables.OTPTokens, key: s.otpKey(userID, kind), cond: cond}
}

func (s *Store) PutOTP(ctx context.Context, t *domain.OTPToken) error {
	item, err := attributevalue.MarshalMap(toOTPItem(t))
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	return s.w.apply(ctx, &op{
		kind:  opPut,
		table: s.tables.OTPTokens,
		key:   s.otpKey(t.UserID, t.Kind),
		item:  item,
		cond:  attrNotExists(fieldUserID),
	})
}

func (s *Store) GetOTP(ctx context.Context, userID string, kind domain.TokenKind) (*domain.OTPToken, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.OTPTokens),
		Key:            s.otpKey(userID, kind),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get otp: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%s token: %w", kind, domain.ErrNotFound)
	}
	var item otpItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal otp: %w", err)
	}
	return item.token(), nil
}

// DeleteOTP removes t only while it is still the stored token for its kind.
func (s *Store) DeleteOTP(ctx context.Context, t *domain.OTPToken) error {
	return s.w.apply(ctx, s.deleteOTPOp(t.UserID, t.Kind,
		attrEquals(map[string]types.AttributeValue{fieldTokenID: strVal(t.TokenID)})))
}

func (s *Store) DeleteOTPs(ctx context.Context, userID string, kind domain.TokenKind) error {
	return s.w.apply(ctx, s.deleteOTPOp(userID, kind, nil))
}

// otpKinds lists the kinds that currently have a token for userID.
func (s *Store) otpKinds(ctx context.Context, userID string) ([]domain.TokenKind, error) {
	out, err := s.db.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tables.OTPTokens),
		KeyConditionExpression:    aws.String("#u = :u"),
		ExpressionAttributeNames:  map[string]string{"#u": fieldUserID, "#k": fieldKind},
		ExpressionAttributeValues: map[string]types.AttributeValue{":u": strVal(userID)},
		ProjectionExpression:      aws.String("#k"),
		ConsistentRead:            aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query otps: %w", err)
	}
	kinds := make([]domain.TokenKind, 0, len(out.Items))
	for _, it := range out.Items {
		if k, ok := it[fieldKind].(*types.AttributeValueMemberS); ok {
			kinds = append(kinds, domain.TokenKind(k.Value))
		}
	}
	return kinds, nil
}
