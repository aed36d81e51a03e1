package validate

import (
	"errors"
	"testing"

	"github.com/phone-auth-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhoneRegex(t *testing.T) {
	valid := []string{"+12345678", "12345678", "+1 234 567 890", "0033612345678", "+123456789012345"}
	invalid := []string{"", "+", "12345", "+12-345-678", "abc1234567", "+1234567890123456", "1234567 ", " 1234567"}
	for _, p := range valid {
		assert.True(t, PhoneRegex.MatchString(p), p)
	}
	for _, p := range invalid {
		assert.False(t, PhoneRegex.MatchString(p), p)
	}
}

func TestStruct_ReportsJSONFieldName(t *testing.T) {
	err := Struct(domain.SignupRequest{PhoneNumber: "nope", Password: "x"})
	require.Error(t, err)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "phone_number", ve.Field)
	assert.Equal(t, "Invalid phone number", ve.Message)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestStruct_RequiredPassword(t *testing.T) {
	err := Struct(domain.SignupRequest{PhoneNumber: "+12345678"})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "password", ve.Field)
}

func TestStruct_OptionalEmail(t *testing.T) {
	assert.NoError(t, Struct(domain.SignupRequest{PhoneNumber: "+12345678", Password: "x"}))
	err := Struct(domain.SignupRequest{PhoneNumber: "+12345678", Password: "x", Email: "bad"})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "email", ve.Field)
}

func TestPasswordPolicy(t *testing.T) {
	assert.NoError(t, PasswordPolicy{}.Check("x"))

	strict := PasswordPolicy{MinLength: 8, RejectNumeric: true}
	assert.Error(t, strict.Check("short"))
	assert.Error(t, strict.Check("12345678"))
	assert.NoError(t, strict.Check("correct horse"))

	var ve *domain.ValidationError
	require.True(t, errors.As(strict.Check("1234"), &ve))
	assert.Equal(t, "password", ve.Field)
}
