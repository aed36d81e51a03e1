package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/phone-auth-api/internal/domain"
)

func (q *queries) PutOTP(ctx context.Context, t *domain.OTPToken) error {
	extra := t.ExtraData
	if len(extra) == 0 {
		extra = domain.EmptyExtraData
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO otp_tokens (token_id, user_id, kind, code, expires_at, extra_data, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.TokenID, t.UserID, string(t.Kind), t.Code, toMillis(t.ExpiresAt), string(extra), toMillis(t.CreatedAt))
	return mapError("put otp", err)
}

func (q *queries) GetOTP(ctx context.Context, userID string, kind domain.TokenKind) (*domain.OTPToken, error) {
	var t domain.OTPToken
	var kindStr, extra string
	var expiresAt, createdAt int64
	err := q.db.QueryRowContext(ctx,
		`SELECT token_id, user_id, kind, code, expires_at, extra_data, created_at
FROM otp_tokens WHERE user_id = ? AND kind = ?`,
		userID, string(kind)).
		Scan(&t.TokenID, &t.UserID, &kindStr, &t.Code, &expiresAt, &extra, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s token: %w", kind, domain.ErrNotFound)
	}
	if err != nil {
		return nil, mapError("get otp", err)
	}
	t.Kind = domain.TokenKind(kindStr)
	t.ExtraData = json.RawMessage(extra)
	t.ExpiresAt = fromMillis(expiresAt)
	t.CreatedAt = fromMillis(createdAt)
	return &t, nil
}

func (q *queries) DeleteOTP(ctx context.Context, t *domain.OTPToken) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM otp_tokens WHERE token_id = ?`, t.TokenID)
	if err != nil {
		return mapError("delete otp", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s token already consumed: %w", t.Kind, domain.ErrConflict)
	}
	return nil
}

func (q *queries) DeleteOTPs(ctx context.Context, userID string, kind domain.TokenKind) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM otp_tokens WHERE user_id = ? AND kind = ?`, userID, string(kind))
	return mapError("delete otps", err)
}
