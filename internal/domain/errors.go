package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	ErrInvalidKind      = errors.New("invalid token kind")
	ErrUnknownValueType = errors.New("unknown value type")

	ErrOTPNotFound = errors.New("code not found")
	ErrInvalidOTP  = errors.New("invalid code")
	ErrOTPExpired  = errors.New("expired code")

	ErrDuplicatePhone     = errors.New("user with this phone number already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPhoneNotVerified   = errors.New("phone number is not verified")
)

// ValidationError reports a client error scoped to a single request field.
// It matches both ErrBadRequest and its cause under errors.Is.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrBadRequest}
	}
	return []error{ErrBadRequest, e.Err}
}

// NewValidationError builds a field-scoped error whose message is the cause's text.
func NewValidationError(field string, cause error) *ValidationError {
	return &ValidationError{Field: field, Message: cause.Error(), Err: cause}
}
