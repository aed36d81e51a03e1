// Package bootstrap opens the configured store and builds the shared
// services both binaries need.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/phone-auth-api/internal/application/keys"
	"github.com/phone-auth-api/internal/config"
	"github.com/phone-auth-api/internal/infrastructure/dynamo"
	"github.com/phone-auth-api/internal/infrastructure/sqlite"
	"github.com/phone-auth-api/internal/pkg/secretbox"
	"github.com/phone-auth-api/internal/storage"
)

// OpenStore returns the store selected by STORE_DRIVER. DynamoDB tables are
// created when missing.
func OpenStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("store opened", "driver", cfg.StoreDriver, "path", cfg.SQLitePath)
		return s, nil
	case config.StoreDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		slog.Info("store opened", "driver", cfg.StoreDriver, "region", cfg.AWSRegion)
		return dynamo.NewStore(client, cfg.DynamoTables), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewKeyManager builds the config key manager with values sealed under
// ENCRYPTION_KEY.
func NewKeyManager(cfg *config.Config, store storage.KeyStore) (*keys.Manager, error) {
	box, err := secretbox.New([]byte(cfg.EncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	return keys.NewManager(store, box), nil
}
