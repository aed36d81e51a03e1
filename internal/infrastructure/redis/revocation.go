// Package redisinfra keeps the refresh-token revocation list in Redis.
package redisinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/phone-auth-api/internal/config"
	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "revoked_jti:"

// minRetention keeps an entry briefly even for tokens that are about to expire.
const minRetention = time.Second

func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// RevocationList stores consumed refresh token ids until the token expires.
type RevocationList struct {
	client *redis.Client
	now    func() time.Time
}

func NewRevocationList(client *redis.Client) *RevocationList {
	return &RevocationList{client: client, now: time.Now}
}

// Revoke uses SET NX so that only the first caller for a jti wins.
func (r *RevocationList) Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(r.now())
	if ttl < minRetention {
		ttl = minRetention
	}
	ok, err := r.client.SetNX(ctx, revokedKeyPrefix+jti, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis revoke %s: %w", jti, err)
	}
	return ok, nil
}

// Ping reports whether Redis is reachable.
func (r *RevocationList) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
