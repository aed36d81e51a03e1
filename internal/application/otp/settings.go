package otp

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/phone-auth-api/internal/domain"
)

// Settings controls how codes of one kind are generated.
type Settings struct {
	TTL      time.Duration
	Length   int
	Alphabet string
}

// Defaults apply to any setting that has no stored key.
var Defaults = Settings{
	TTL:      300 * time.Second,
	Length:   6,
	Alphabet: "0123456789",
}

func (s Settings) Validate() error {
	if s.TTL <= 0 {
		return fmt.Errorf("ttl must be positive, got %s: %w", s.TTL, domain.ErrBadRequest)
	}
	if s.Length < 1 {
		return fmt.Errorf("length must be at least 1, got %d: %w", s.Length, domain.ErrBadRequest)
	}
	if utf8.RuneCountInString(s.Alphabet) == 0 {
		return fmt.Errorf("alphabet is empty: %w", domain.ErrBadRequest)
	}
	return nil
}

// SettingsSource resolves Settings for a kind.
type SettingsSource interface {
	Settings(ctx context.Context, kind domain.TokenKind) (Settings, error)
}

type settingKeys struct {
	ttl      string
	length   string
	alphabet string
}

var keyNames = map[domain.TokenKind]settingKeys{
	domain.PhoneNumberToken: {
		ttl:      "PHONE_NUMBER_TOKEN_TTL",
		length:   "PHONE_NUMBER_TOKEN_LENGTH",
		alphabet: "PHONE_NUMBER_TOKEN_ALPHABET",
	},
	domain.SignupSecurityToken: {
		ttl:      "SIGNUP_SECURITY_TOKEN_TTL",
		length:   "SIGNUP_SECURITY_TOKEN_LENGTH",
		alphabet: "SIGNUP_SECURITY_TOKEN_ALPHABET",
	},
}

// KeyReader is the subset of keys.Manager used for settings.
type KeyReader interface {
	Int(ctx context.Context, name string, def int) (int, error)
	String(ctx context.Context, name, def string) (string, error)
}

// KeySettings reads settings through the config store on every call, so key
// updates take effect without a restart. TTL keys hold whole seconds.
type KeySettings struct {
	keys KeyReader
}

func NewKeySettings(keys KeyReader) *KeySettings {
	return &KeySettings{keys: keys}
}

func (s *KeySettings) Settings(ctx context.Context, kind domain.TokenKind) (Settings, error) {
	names, ok := keyNames[kind]
	if !ok {
		return Settings{}, fmt.Errorf("%q: %w", kind, domain.ErrInvalidKind)
	}
	ttl, err := s.keys.Int(ctx, names.ttl, int(Defaults.TTL/time.Second))
	if err != nil {
		return Settings{}, err
	}
	length, err := s.keys.Int(ctx, names.length, Defaults.Length)
	if err != nil {
		return Settings{}, err
	}
	alphabet, err := s.keys.String(ctx, names.alphabet, Defaults.Alphabet)
	if err != nil {
		return Settings{}, err
	}
	out := Settings{TTL: time.Duration(ttl) * time.Second, Length: length, Alphabet: alphabet}
	if err := out.Validate(); err != nil {
		return Settings{}, fmt.Errorf("%s settings: %w", kind, err)
	}
	return out, nil
}

// Preload resolves and validates the settings of every kind.
func (s *KeySettings) Preload(ctx context.Context) error {
	for _, kind := range domain.TokenKinds {
		if _, err := s.Settings(ctx, kind); err != nil {
			return err
		}
	}
	return nil
}

// StaticSettings serves fixed settings; kinds without an entry get Defaults.
type StaticSettings map[domain.TokenKind]Settings

func (s StaticSettings) Settings(_ context.Context, kind domain.TokenKind) (Settings, error) {
	if !kind.Valid() {
		return Settings{}, fmt.Errorf("%q: %w", kind, domain.ErrInvalidKind)
	}
	if v, ok := s[kind]; ok {
		return v, nil
	}
	return Defaults, nil
}
