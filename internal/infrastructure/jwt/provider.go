package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/phone-auth-api/internal/config"
	"github.com/phone-auth-api/internal/domain"
	"github.com/phone-auth-api/internal/pkg/id"
)

// TokenType distinguishes access from refresh tokens.
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// Claims holds the JWT payload fields.
type Claims struct {
	UserID    string    `json:"user_id"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// Provider signs and verifies HS256 or RS256 JWTs.
type Provider struct {
	method     jwt.SigningMethod
	signKey    any
	verifyKey  any
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	switch cfg.JWTAlgorithm {
	case "HS256":
		return NewHMACProvider([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL), nil
	case "RS256":
		privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
		pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		return NewRSAProvider(privKey, pubKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL), nil
	}
	return nil, fmt.Errorf("unsupported jwt algorithm %q", cfg.JWTAlgorithm)
}

func NewHMACProvider(secret []byte, accessTTL, refreshTTL time.Duration) *Provider {
	return &Provider{
		method:     jwt.SigningMethodHS256,
		signKey:    secret,
		verifyKey:  secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func NewRSAProvider(priv *rsa.PrivateKey, pub *rsa.PublicKey, accessTTL, refreshTTL time.Duration) *Provider {
	return &Provider{
		method:     jwt.SigningMethodRS256,
		signKey:    priv,
		verifyKey:  pub,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Sign issues a token of type tt for userID with a fresh jti.
func (p *Provider) Sign(userID string, tt TokenType) (string, error) {
	ttl := p.accessTTL
	if tt == RefreshToken {
		ttl = p.refreshTTL
	}
	now := p.now()
	claims := Claims{
		UserID:    userID,
		TokenType: tt,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.New(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(p.method, claims).SignedString(p.signKey)
}

// SignPair issues an access and a refresh token for userID.
func (p *Provider) SignPair(userID string) (domain.TokenPair, error) {
	access, err := p.Sign(userID, AccessToken)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := p.Sign(userID, RefreshToken)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return domain.TokenPair{Access: access, Refresh: refresh}, nil
}

// Verify parses tokenStr and requires it to be of type tt. Every failure
// wraps domain.ErrUnauthorized.
func (p *Provider) Verify(tokenStr string, tt TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return p.verifyKey, nil
	},
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", domain.ErrUnauthorized)
	}
	if claims.TokenType != tt {
		return nil, fmt.Errorf("%w: expected %s token, got %q", domain.ErrUnauthorized, tt, claims.TokenType)
	}
	if claims.UserID == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, errors.New("missing subject or id"))
	}
	return claims, nil
}
