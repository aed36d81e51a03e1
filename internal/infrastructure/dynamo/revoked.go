package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/phone-auth-api/internal/domain"
)

// revokedItem marks a consumed refresh token. expires_at is the table TTL
// attribute, in epoch seconds.
type revokedItem struct {
	JTI       string `dynamodbav:"jti"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

func (s *Store) Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	item, err := attributevalue.MarshalMap(revokedItem{JTI: jti, ExpiresAt: expiresAt.Unix()})
	if err != nil {
		return false, fmt.Errorf("marshal revoked token: %w", err)
	}
	err = directWriter{db: s.db}.apply(ctx, &op{
		kind:  opPut,
		table: s.tables.RevokedTokens,
		key:   strKey(fieldJTI, jti),
		item:  item,
		cond:  attrNotExists(fieldJTI),
	})
	if errors.Is(err, domain.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
