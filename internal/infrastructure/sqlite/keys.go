package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/phone-auth-api/internal/domain"
)

func scanKey(row scanner) (*domain.EncryptedKey, error) {
	var k domain.EncryptedKey
	var createdAt, updatedAt int64
	if err := row.Scan(&k.KeyID, &k.Name, &k.Ciphertext, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	k.CreatedAt = fromMillis(createdAt)
	k.UpdatedAt = fromMillis(updatedAt)
	return &k, nil
}

func (q *queries) getKeyWhere(ctx context.Context, where string, arg any) (*domain.EncryptedKey, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT key_id, name, value, created_at, updated_at FROM config_keys WHERE `+where+` = ?`, arg)
	k, err := scanKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("config key %v: %w", arg, domain.ErrNotFound)
	}
	if err != nil {
		return nil, mapError("get config key", err)
	}
	return k, nil
}

func (q *queries) GetKey(ctx context.Context, keyID string) (*domain.EncryptedKey, error) {
	return q.getKeyWhere(ctx, "key_id", keyID)
}

func (q *queries) GetKeyByName(ctx context.Context, name string) (*domain.EncryptedKey, error) {
	return q.getKeyWhere(ctx, "name", name)
}

func (q *queries) CreateKey(ctx context.Context, k *domain.EncryptedKey) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO config_keys (key_id, name, value, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		k.KeyID, k.Name, k.Ciphertext, toMillis(k.CreatedAt), toMillis(k.UpdatedAt))
	return mapError("create config key", err)
}

func (q *queries) UpdateKey(ctx context.Context, k *domain.EncryptedKey) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE config_keys SET name = ?, value = ?, updated_at = ? WHERE key_id = ?`,
		k.Name, k.Ciphertext, toMillis(k.UpdatedAt), k.KeyID)
	if err != nil {
		return mapError("update config key", err)
	}
	return requireOne(res, "config key "+k.KeyID)
}

func (q *queries) ListKeys(ctx context.Context) ([]domain.EncryptedKey, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT key_id, name, value, created_at, updated_at FROM config_keys ORDER BY name`)
	if err != nil {
		return nil, mapError("list config keys", err)
	}
	defer rows.Close()
	var out []domain.EncryptedKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan config key: %w", err)
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}
