// Package storage declares the persistence contracts shared by the SQLite and
// DynamoDB backends.
//
// Lookups return an error wrapping domain.ErrNotFound when nothing matches.
// Writes that lose a race (unique phone, single-use token, concurrent
// transaction) return an error wrapping domain.ErrConflict.
package storage

import (
	"context"
	"time"

	"github.com/phone-auth-api/internal/domain"
)

// UserStore persists users. includeDeleted widens lookups to soft-deleted rows.
type UserStore interface {
	GetUser(ctx context.Context, userID string, includeDeleted bool) (*domain.User, error)
	// GetUserByPhone returns the live user holding phone, or the most recently
	// created row when includeDeleted is set.
	GetUserByPhone(ctx context.Context, phone string, includeDeleted bool) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
	// DeleteUnverifiedByPhone hard-deletes live unverified users holding phone
	// together with their tokens and reports how many users were removed.
	DeleteUnverifiedByPhone(ctx context.Context, phone string) (int, error)
	MarkPhoneVerified(ctx context.Context, userID string) error
	SoftDeleteUser(ctx context.Context, userID string) error
}

// OTPStore persists one-time codes keyed by (user, kind).
type OTPStore interface {
	PutOTP(ctx context.Context, t *domain.OTPToken) error
	GetOTP(ctx context.Context, userID string, kind domain.TokenKind) (*domain.OTPToken, error)
	// DeleteOTP removes exactly t. It fails with domain.ErrConflict when the row
	// is already gone or was replaced.
	DeleteOTP(ctx context.Context, t *domain.OTPToken) error
	DeleteOTPs(ctx context.Context, userID string, kind domain.TokenKind) error
}

// KeyStore persists encrypted configuration keys.
type KeyStore interface {
	GetKey(ctx context.Context, keyID string) (*domain.EncryptedKey, error)
	GetKeyByName(ctx context.Context, name string) (*domain.EncryptedKey, error)
	CreateKey(ctx context.Context, k *domain.EncryptedKey) error
	UpdateKey(ctx context.Context, k *domain.EncryptedKey) error
	ListKeys(ctx context.Context) ([]domain.EncryptedKey, error)
}

// RevocationStore remembers consumed refresh token ids until they expire.
type RevocationStore interface {
	// Revoke marks jti as used. It returns false when jti was already revoked.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
}

// Tx is the view of the store available inside a transaction.
type Tx interface {
	UserStore
	OTPStore
}

// Transactor runs fn atomically: every write made through tx commits together
// or not at all. A non-nil error from fn aborts the transaction and is
// returned unchanged.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Store is a complete backend.
type Store interface {
	Transactor
	UserStore
	OTPStore
	KeyStore
	RevocationStore
	Close() error
}
