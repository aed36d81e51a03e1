package sqlite

import (
	"context"
	"time"
)

// Revoke records jti and prunes entries whose tokens have expired.
func (q *queries) Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, toMillis(time.Now())); err != nil {
		return false, mapError("prune revoked tokens", err)
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, expires_at) VALUES (?, ?) ON CONFLICT (jti) DO NOTHING`,
		jti, toMillis(expiresAt))
	if err != nil {
		return false, mapError("revoke token", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
