package http

import (
	"github.com/phone-auth-api/internal/application/auth"
	"github.com/phone-auth-api/internal/application/otp"
	jwtinfra "github.com/phone-auth-api/internal/infrastructure/jwt"
	"github.com/phone-auth-api/internal/pkg/password"
	"github.com/phone-auth-api/internal/pkg/validate"
	"github.com/phone-auth-api/internal/storage"
)

// Deps holds the infrastructure the router wires into its services.
type Deps struct {
	Store       storage.Store
	Revocations storage.RevocationStore
	OTP         *otp.Engine
	JWTProvider *jwtinfra.Provider
	Notifier    auth.Notifier
	Hasher      *password.Hasher
	Policy      validate.PasswordPolicy
}
