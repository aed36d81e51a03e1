// Package session issues token pairs and rotates refresh tokens.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phone-auth-api/internal/domain"
	jwtinfra "github.com/phone-auth-api/internal/infrastructure/jwt"
)

type tokenProvider interface {
	SignPair(userID string) (domain.TokenPair, error)
	Verify(tokenStr string, tt jwtinfra.TokenType) (*jwtinfra.Claims, error)
}

type userStore interface {
	GetUser(ctx context.Context, userID string, includeDeleted bool) (*domain.User, error)
}

type revocationStore interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
}

type Service interface {
	IssueTokens(u *domain.User) (domain.TokenPair, error)
	// Refresh consumes a refresh token and returns a new pair.
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
	// Revoke consumes a refresh token without issuing a replacement.
	Revoke(ctx context.Context, refreshToken string) error
	// Authenticate resolves an access token to its live, verified user.
	Authenticate(ctx context.Context, accessToken string) (*domain.User, error)
}

type ServiceDeps struct {
	Tokens      tokenProvider
	Users       userStore
	Revocations revocationStore
}

type service struct {
	tokens      tokenProvider
	users       userStore
	revocations revocationStore
}

func NewService(deps ServiceDeps) Service {
	return &service{
		tokens:      deps.Tokens,
		users:       deps.Users,
		revocations: deps.Revocations,
	}
}

func (s *service) IssueTokens(u *domain.User) (domain.TokenPair, error) {
	return s.tokens.SignPair(u.UserID)
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	claims, err := s.consume(ctx, refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}
	u, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return domain.TokenPair{}, err
	}
	pair, err := s.tokens.SignPair(u.UserID)
	if err != nil {
		return domain.TokenPair{}, err
	}
	slog.Info("refresh token rotated", "user_id", u.UserID)
	return pair, nil
}

func (s *service) Revoke(ctx context.Context, refreshToken string) error {
	_, err := s.consume(ctx, refreshToken)
	return err
}

func (s *service) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.tokens.Verify(accessToken, jwtinfra.AccessToken)
	if err != nil {
		return nil, err
	}
	return s.activeUser(ctx, claims.UserID)
}

func (s *service) consume(ctx context.Context, refreshToken string) (*jwtinfra.Claims, error) {
	claims, err := s.tokens.Verify(refreshToken, jwtinfra.RefreshToken)
	if err != nil {
		return nil, err
	}
	fresh, err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	if !fresh {
		slog.Warn("refresh token reused", "user_id", claims.UserID, "jti", claims.ID)
		return nil, fmt.Errorf("refresh token already used: %w", domain.ErrUnauthorized)
	}
	return claims, nil
}

func (s *service) activeUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.GetUser(ctx, userID, false)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("user no longer exists: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !u.PhoneIsVerified {
		return nil, fmt.Errorf("phone not verified: %w", domain.ErrUnauthorized)
	}
	return u, nil
}
