// Package auth composes the credential store, the OTP engine and the session
// issuer into the signup, verification and login flows.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/phone-auth-api/internal/application/otp"
	"github.com/phone-auth-api/internal/domain"
	"github.com/phone-auth-api/internal/pkg/id"
	"github.com/phone-auth-api/internal/pkg/validate"
	"github.com/phone-auth-api/internal/storage"
)

type Service interface {
	Signup(ctx context.Context, req domain.SignupRequest) (*domain.SignupResult, error)
	VerifyPhone(ctx context.Context, req domain.PhoneVerificationRequest) (*domain.AuthResult, error)
	ResendPhoneVerification(ctx context.Context, req domain.ResendPhoneVerificationRequest) error
	Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error)
	CurrentUser(ctx context.Context, userID string) (*domain.User, error)
	DeleteAccount(ctx context.Context, userID string) error
}

// Notifier hands freshly issued phone codes to whatever delivers them.
type Notifier interface {
	OTPIssued(ctx context.Context, u *domain.User, t *domain.OTPToken) error
}

type passwordHasher interface {
	Hash(plain string) (string, error)
	Check(hash, plain string) bool
}

type tokenIssuer interface {
	IssueTokens(u *domain.User) (domain.TokenPair, error)
}

type ServiceDeps struct {
	Store    storage.Transactor
	Users    storage.UserStore
	OTP      *otp.Engine
	Sessions tokenIssuer
	Hasher   passwordHasher
	Policy   validate.PasswordPolicy
	Notifier Notifier
}

type service struct {
	store    storage.Transactor
	users    storage.UserStore
	otp      *otp.Engine
	sessions tokenIssuer
	hasher   passwordHasher
	policy   validate.PasswordPolicy
	notifier Notifier
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		store:    deps.Store,
		users:    deps.Users,
		otp:      deps.OTP,
		sessions: deps.Sessions,
		hasher:   deps.Hasher,
		policy:   deps.Policy,
		notifier: deps.Notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func duplicatePhone() error {
	return domain.NewValidationError("phone_number", domain.ErrDuplicatePhone)
}

func invalidUser() error {
	return &domain.ValidationError{Field: "user", Message: "Invalid user.", Err: domain.ErrNotFound}
}

func (s *service) Signup(ctx context.Context, req domain.SignupRequest) (*domain.SignupResult, error) {
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if err := s.policy.Check(req.Password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	u := &domain.User{
		UserID:       id.New(),
		PhoneNumber:  req.PhoneNumber,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var phoneToken, securityToken *domain.OTPToken
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		existing, err := tx.GetUserByPhone(ctx, u.PhoneNumber, false)
		switch {
		case err == nil && existing.PhoneIsVerified:
			return duplicatePhone()
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return err
		}
		purged, err := tx.DeleteUnverifiedByPhone(ctx, u.PhoneNumber)
		if err != nil {
			return err
		}
		if purged > 0 {
			slog.Info("purged unverified signup", "phone_number", u.PhoneNumber, "count", purged)
		}
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}
		engine := s.otp.With(tx)
		if phoneToken, err = engine.GenerateAndSave(ctx, domain.PhoneNumberToken, u.UserID, nil); err != nil {
			return err
		}
		securityToken, err = engine.GenerateAndSave(ctx, domain.SignupSecurityToken, u.UserID, nil)
		return err
	})
	if isConflict(err) {
		return nil, duplicatePhone()
	}
	if err != nil {
		return nil, err
	}

	slog.Info("user signed up", "user_id", u.UserID)
	s.notify(ctx, u, phoneToken)
	return &domain.SignupResult{User: u, SecurityToken: securityToken.Code}, nil
}

func (s *service) VerifyPhone(ctx context.Context, req domain.PhoneVerificationRequest) (*domain.AuthResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	var result *domain.AuthResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		u, err := pendingUser(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		engine := s.otp.With(tx)
		security, err := checkCode(ctx, engine, domain.SignupSecurityToken, u.UserID, req.SecurityToken, "security_token")
		if err != nil {
			return err
		}
		code, err := checkCode(ctx, engine, domain.PhoneNumberToken, u.UserID, req.OTP, "otp")
		if err != nil {
			return err
		}
		if err := tx.MarkPhoneVerified(ctx, u.UserID); err != nil {
			return err
		}
		if err := engine.Consume(ctx, code); err != nil {
			return err
		}
		if err := engine.Consume(ctx, security); err != nil {
			return err
		}
		u.PhoneIsVerified = true
		u.UpdatedAt = s.now()
		pair, err := s.sessions.IssueTokens(u)
		if err != nil {
			return err
		}
		result = &domain.AuthResult{User: u, Tokens: pair}
		return nil
	})
	if isConflict(err) {
		return nil, domain.NewValidationError("otp", domain.ErrOTPNotFound)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("phone verified", "user_id", result.User.UserID)
	return result, nil
}

func (s *service) ResendPhoneVerification(ctx context.Context, req domain.ResendPhoneVerificationRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	var u *domain.User
	var tok *domain.OTPToken
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		if u, err = pendingUser(ctx, tx, req.UserID); err != nil {
			return err
		}
		engine := s.otp.With(tx)
		if _, err := checkCode(ctx, engine, domain.SignupSecurityToken, u.UserID, req.SecurityToken, "security_token"); err != nil {
			return err
		}
		tok, err = engine.RegenerateOTP(ctx, domain.PhoneNumberToken, u.UserID)
		return err
	})
	if isConflict(err) {
		return domain.NewValidationError("security_token", domain.ErrOTPNotFound)
	}
	if err != nil {
		return err
	}
	slog.Info("phone verification resent", "user_id", u.UserID)
	s.notify(ctx, u, tok)
	return nil
}

// Login checks the password before the verification flag so an unverified
// account is only revealed to a caller who knows its password.
func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error) {
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	u, err := s.users.GetUserByPhone(ctx, req.PhoneNumber, false)
	if errors.Is(err, domain.ErrNotFound) {
		s.hasher.Check(s.dummy(), req.Password)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Check(u.PasswordHash, req.Password) {
		return nil, domain.ErrInvalidCredentials
	}
	if !u.PhoneIsVerified {
		return nil, domain.ErrPhoneNotVerified
	}
	pair, err := s.sessions.IssueTokens(u)
	if err != nil {
		return nil, err
	}
	slog.Info("user logged in", "user_id", u.UserID)
	return &domain.AuthResult{User: u, Tokens: pair}, nil
}

func (s *service) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.GetUser(ctx, userID, false)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("user no longer exists: %w", domain.ErrUnauthorized)
	}
	return u, err
}

func (s *service) DeleteAccount(ctx context.Context, userID string) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.SoftDeleteUser(ctx, userID); err != nil {
			return err
		}
		engine := s.otp.With(tx)
		for _, kind := range domain.TokenKinds {
			if err := engine.ClearOTPs(ctx, kind, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("user no longer exists: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return err
	}
	slog.Info("account deleted", "user_id", userID)
	return nil
}

// isConflict reports a storage race; field errors raised by the flow itself
// are passed through unchanged.
func isConflict(err error) bool {
	var ve *domain.ValidationError
	return errors.Is(err, domain.ErrConflict) && !errors.As(err, &ve)
}

// pendingUser loads a live user still waiting for phone verification.
func pendingUser(ctx context.Context, tx storage.UserStore, userID string) (*domain.User, error) {
	if !id.Valid(userID) {
		return nil, invalidUser()
	}
	u, err := tx.GetUser(ctx, userID, false)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, invalidUser()
	}
	if err != nil {
		return nil, err
	}
	if u.PhoneIsVerified {
		return nil, &domain.ValidationError{Field: "user", Message: "Phone number is already verified.", Err: domain.ErrConflict}
	}
	return u, nil
}

func checkCode(ctx context.Context, engine *otp.Engine, kind domain.TokenKind, userID, code, field string) (*domain.OTPToken, error) {
	v, err := engine.VerifyCode(ctx, kind, userID, code)
	if err != nil {
		return nil, err
	}
	if !v.OK() {
		return nil, domain.NewValidationError(field, v.Err())
	}
	return v.Token, nil
}

func (s *service) notify(ctx context.Context, u *domain.User, t *domain.OTPToken) {
	if s.notifier == nil || t == nil {
		return
	}
	if err := s.notifier.OTPIssued(ctx, u, t); err != nil {
		slog.Warn("otp notification failed", "user_id", u.UserID, "kind", t.Kind, "error", err)
	}
}

// dummy returns a hash compared against on unknown phone numbers so that
// lookups for missing accounts cost the same as a wrong password.
func (s *service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(id.New())
		if err != nil {
			slog.Error("dummy hash failed", "error", err)
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
