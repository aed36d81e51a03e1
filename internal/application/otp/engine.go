// Package otp issues and checks one-time codes scoped to a user and a kind.
package otp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/phone-auth-api/internal/domain"
	"github.com/phone-auth-api/internal/pkg/id"
	"github.com/phone-auth-api/internal/pkg/token"
	"github.com/phone-auth-api/internal/storage"
)

// Outcome classifies a verification attempt.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotFound
	OutcomeInvalid
	OutcomeExpired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeExpired:
		return "expired"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Verification is the result of VerifyCode. Token is set only on OutcomeOK.
type Verification struct {
	Outcome Outcome
	Token   *domain.OTPToken
}

func (v Verification) OK() bool { return v.Outcome == OutcomeOK }

// Err maps the outcome to its domain sentinel, nil when OK.
func (v Verification) Err() error {
	switch v.Outcome {
	case OutcomeOK:
		return nil
	case OutcomeNotFound:
		return domain.ErrOTPNotFound
	case OutcomeInvalid:
		return domain.ErrInvalidOTP
	case OutcomeExpired:
		return domain.ErrOTPExpired
	}
	return fmt.Errorf("unknown outcome %d", int(v.Outcome))
}

type Option func(*Engine)

// WithGenerator replaces the random code source.
func WithGenerator(g token.Generator) Option {
	return func(e *Engine) { e.gen = g }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

type Engine struct {
	store    storage.OTPStore
	settings SettingsSource
	gen      token.Generator
	now      func() time.Time
}

func NewEngine(store storage.OTPStore, settings SettingsSource, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		settings: settings,
		gen:      token.Random{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// With returns a copy of the engine that persists through store, typically a
// transaction.
func (e *Engine) With(store storage.OTPStore) *Engine {
	c := *e
	c.store = store
	return &c
}

// GenerateAndSave creates and persists a new code. It does not remove earlier
// tokens of the same kind; callers that need replacement use RegenerateOTP.
func (e *Engine) GenerateAndSave(ctx context.Context, kind domain.TokenKind, userID string, extra json.RawMessage) (*domain.OTPToken, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%q: %w", kind, domain.ErrInvalidKind)
	}
	s, err := e.settings.Settings(ctx, kind)
	if err != nil {
		return nil, err
	}
	code, err := e.gen.Generate(s.Length, s.Alphabet)
	if err != nil {
		return nil, fmt.Errorf("generate %s code: %w", kind, err)
	}
	if len(extra) == 0 {
		extra = domain.EmptyExtraData
	}
	now := e.now()
	t := &domain.OTPToken{
		TokenID:   id.New(),
		UserID:    userID,
		Kind:      kind,
		Code:      code,
		ExpiresAt: now.Add(s.TTL),
		ExtraData: append(json.RawMessage(nil), extra...),
		CreatedAt: now,
	}
	if err := e.store.PutOTP(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// VerifyCode checks code against the stored token without consuming it.
// A mismatch is reported before expiry.
func (e *Engine) VerifyCode(ctx context.Context, kind domain.TokenKind, userID, code string) (Verification, error) {
	if !kind.Valid() {
		return Verification{}, fmt.Errorf("%q: %w", kind, domain.ErrInvalidKind)
	}
	t, err := e.store.GetOTP(ctx, userID, kind)
	if errors.Is(err, domain.ErrNotFound) {
		return Verification{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return Verification{}, err
	}
	if subtle.ConstantTimeCompare([]byte(t.Code), []byte(code)) != 1 {
		return Verification{Outcome: OutcomeInvalid}, nil
	}
	if t.Expired(e.now()) {
		return Verification{Outcome: OutcomeExpired}, nil
	}
	return Verification{Outcome: OutcomeOK, Token: t}, nil
}

// RegenerateOTP replaces the current token of kind with a fresh one carrying
// the same extra data. With no current token it simply issues one.
func (e *Engine) RegenerateOTP(ctx context.Context, kind domain.TokenKind, userID string) (*domain.OTPToken, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%q: %w", kind, domain.ErrInvalidKind)
	}
	var extra json.RawMessage
	old, err := e.store.GetOTP(ctx, userID, kind)
	switch {
	case err == nil:
		extra = append(json.RawMessage(nil), old.ExtraData...)
		if err := e.store.DeleteOTP(ctx, old); err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, err
	}
	return e.GenerateAndSave(ctx, kind, userID, extra)
}

// ClearOTPs removes every token of kind for the user.
func (e *Engine) ClearOTPs(ctx context.Context, kind domain.TokenKind, userID string) error {
	if !kind.Valid() {
		return fmt.Errorf("%q: %w", kind, domain.ErrInvalidKind)
	}
	return e.store.DeleteOTPs(ctx, userID, kind)
}

// Consume deletes a token returned by a successful VerifyCode. It fails with
// domain.ErrConflict if the token was consumed or replaced in the meantime.
func (e *Engine) Consume(ctx context.Context, t *domain.OTPToken) error {
	return e.store.DeleteOTP(ctx, t)
}
