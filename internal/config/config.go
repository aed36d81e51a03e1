package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreSQLite = "sqlite"
	StoreDynamo = "dynamo"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string `env:"APP_PORT" envDefault:"3000"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"./data/auth.db"`

	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`
	DynamoTables   DynamoTables

	JWTAlgorithm      string        `env:"JWT_ALGORITHM" envDefault:"HS256"`
	JWTSecret         string        `env:"JWT_SECRET"`
	JWTPrivateKeyPath string        `env:"JWT_PRIVATE_KEY_PATH" envDefault:"./private_key.pem"`
	JWTPublicKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH" envDefault:"./public_key.pem"`
	AccessTokenTTL    time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"4464h"`
	RefreshTokenTTL   time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"8928h"`

	EncryptionKey string `env:"ENCRYPTION_KEY"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	OTPTopicARN string `env:"OTP_TOPIC_ARN"`
	SNSRegion   string `env:"SNS_REGION" envDefault:"us-east-1"`

	KeysSeedBucket string `env:"KEYS_SEED_BUCKET"`
	KeysSeedObject string `env:"KEYS_SEED_OBJECT" envDefault:"keys.json"`

	PasswordMinLength     int  `env:"PASSWORD_MIN_LENGTH" envDefault:"1"`
	PasswordRejectNumeric bool `env:"PASSWORD_REJECT_NUMERIC" envDefault:"false"`
	BcryptCost            int  `env:"BCRYPT_COST" envDefault:"10"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","` // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string `env:"DYNAMO_TABLE_USERS" envDefault:"users"`
	PhoneNumbers  string `env:"DYNAMO_TABLE_PHONE_NUMBERS" envDefault:"phone_numbers"`
	OTPTokens     string `env:"DYNAMO_TABLE_OTP_TOKENS" envDefault:"otp_tokens"`
	ConfigKeys    string `env:"DYNAMO_TABLE_CONFIG_KEYS" envDefault:"config_keys"`
	RevokedTokens string `env:"DYNAMO_TABLE_REVOKED_TOKENS" envDefault:"revoked_tokens"`
}

// Load reads all configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.JWTAlgorithm = strings.ToUpper(strings.TrimSpace(cfg.JWTAlgorithm))
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite store"))
		}
	case StoreDynamo:
		if c.AWSRegion == "" {
			errs = append(errs, errors.New("AWS_REGION is required for the dynamo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreSQLite, StoreDynamo, c.StoreDriver))
	}
	switch c.JWTAlgorithm {
	case "HS256":
		if len(c.JWTSecret) < 32 {
			errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes for HS256"))
		}
	case "RS256":
	default:
		errs = append(errs, fmt.Errorf("JWT_ALGORITHM must be HS256 or RS256, got %q", c.JWTAlgorithm))
	}
	if c.EncryptionKey == "" {
		errs = append(errs, errors.New("ENCRYPTION_KEY is required"))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.PasswordMinLength < 1 {
		errs = append(errs, errors.New("PASSWORD_MIN_LENGTH must be at least 1"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
