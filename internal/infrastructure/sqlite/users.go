package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/phone-auth-api/internal/domain"
)

const userColumns = `user_id, phone_number, email, first_name, last_name, password_hash,
phone_is_verified, email_is_verified, is_deleted, created_at, updated_at`

func scanUser(row scanner) (*domain.User, error) {
	var u domain.User
	var createdAt, updatedAt int64
	if err := row.Scan(
		&u.UserID, &u.PhoneNumber, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&u.PhoneIsVerified, &u.EmailIsVerified, &u.IsDeleted, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

func (q *queries) GetUser(ctx context.Context, userID string, includeDeleted bool) (*domain.User, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = ? AND (? OR is_deleted = 0)`,
		userID, includeDeleted)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, mapError("get user", err)
	}
	return u, nil
}

func (q *queries) GetUserByPhone(ctx context.Context, phone string, includeDeleted bool) (*domain.User, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
WHERE phone_number = ? AND (? OR is_deleted = 0)
ORDER BY is_deleted ASC, created_at DESC
LIMIT 1`,
		phone, includeDeleted)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user with phone: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, mapError("get user by phone", err)
	}
	return u, nil
}

func (q *queries) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.UserID, u.PhoneNumber, u.Email, u.FirstName, u.LastName, u.PasswordHash,
		u.PhoneIsVerified, u.EmailIsVerified, u.IsDeleted, toMillis(u.CreatedAt), toMillis(u.UpdatedAt))
	return mapError("create user", err)
}

// DeleteUnverifiedByPhone relies on ON DELETE CASCADE to drop the tokens.
func (q *queries) DeleteUnverifiedByPhone(ctx context.Context, phone string) (int, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM users WHERE phone_number = ? AND is_deleted = 0 AND phone_is_verified = 0`, phone)
	if err != nil {
		return 0, mapError("delete unverified users", err)
	}
	return rowsAffected(res)
}

func (q *queries) MarkPhoneVerified(ctx context.Context, userID string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET phone_is_verified = 1, updated_at = ? WHERE user_id = ? AND is_deleted = 0`,
		toMillis(time.Now()), userID)
	if err != nil {
		return mapError("mark phone verified", err)
	}
	return requireOne(res, "user "+userID)
}

func (q *queries) SoftDeleteUser(ctx context.Context, userID string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET is_deleted = 1, updated_at = ? WHERE user_id = ? AND is_deleted = 0`,
		toMillis(time.Now()), userID)
	if err != nil {
		return mapError("soft delete user", err)
	}
	return requireOne(res, "user "+userID)
}

func requireOne(res sql.Result, what string) error {
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}
