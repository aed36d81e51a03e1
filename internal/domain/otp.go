package domain

import (
	"encoding/json"
	"time"
)

// TokenKind discriminates what an OTP is for.
type TokenKind string

const (
	PhoneNumberToken    TokenKind = "PHONE_NUMBER_TOKEN"
	SignupSecurityToken TokenKind = "SIGNUP_SECURITY_TOKEN"
)

// TokenKinds lists every recognised kind.
var TokenKinds = []TokenKind{PhoneNumberToken, SignupSecurityToken}

func (k TokenKind) Valid() bool {
	for _, known := range TokenKinds {
		if k == known {
			return true
		}
	}
	return false
}

// OTPToken is a one-time code bound to a user and a kind.
// PK: user_id, SK: kind. At most one live token exists per pair.
type OTPToken struct {
	TokenID   string          `json:"id" dynamodbav:"token_id"`
	UserID    string          `json:"user_id" dynamodbav:"user_id"`
	Kind      TokenKind       `json:"kind" dynamodbav:"kind"`
	Code      string          `json:"-" dynamodbav:"code"`
	ExpiresAt time.Time       `json:"expires_at" dynamodbav:"expires_at"`
	ExtraData json.RawMessage `json:"extra_data" dynamodbav:"-"`
	CreatedAt time.Time       `json:"created" dynamodbav:"created_at"`
}

// Expired reports whether the code can no longer be redeemed at now.
func (t *OTPToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// EmptyExtraData is stored when a caller attaches no metadata.
var EmptyExtraData = json.RawMessage(`{}`)
