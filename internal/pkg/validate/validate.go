package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/phone-auth-api/internal/domain"
)

// PhoneRegex accepts international numbers with an optional leading "+" and
// single spaces between digits, 7 to 15 digits in total.
var PhoneRegex = regexp.MustCompile(`^(?:\+)?(?:[0-9] ?){6,14}[0-9]$`)

// v is the package-level singleton validator. Custom tags and the JSON field
// name resolver are registered in init() before the first call to Struct.
var v = validator.New()

func init() {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return PhoneRegex.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
}

// Struct validates the given struct using its validate tags. The first failing
// field is reported as a *domain.ValidationError keyed by its JSON name.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err
	}
	fe := ve[0]
	return &domain.ValidationError{Field: fe.Field(), Message: message(fe)}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "phone":
		return "Invalid phone number"
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	default:
		return fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag())
	}
}

// PasswordPolicy is the operator-tunable password strength check.
// The zero value accepts any non-empty password.
type PasswordPolicy struct {
	MinLength     int
	RejectNumeric bool
}

// Check reports the first rule the password breaks as a validation error on
// the "password" field.
func (p PasswordPolicy) Check(password string) error {
	if len([]rune(password)) < p.MinLength {
		return &domain.ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("This password is too short. It must contain at least %d characters.", p.MinLength),
		}
	}
	if p.RejectNumeric && password != "" && strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) == -1 {
		return &domain.ValidationError{Field: "password", Message: "This password is entirely numeric."}
	}
	return nil
}
