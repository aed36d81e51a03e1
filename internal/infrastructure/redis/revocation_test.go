package redisinfra

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestList(t *testing.T) (*RevocationList, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRevocationList(rdb), mr
}

func TestRevoke_FirstCallWins(t *testing.T) {
	list, _ := newTestList(t)
	ctx := context.Background()

	ok, err := list.Revoke(ctx, "jti-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = list.Revoke(ctx, "jti-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRevoke_ExpiresWithToken(t *testing.T) {
	list, mr := newTestList(t)
	ctx := context.Background()

	_, err := list.Revoke(ctx, "jti-2", time.Now().Add(time.Minute))
	require.NoError(t, err)
	ttl := mr.TTL(revokedKeyPrefix + "jti-2")
	assert.Greater(t, ttl, 50*time.Second)
	assert.LessOrEqual(t, ttl, time.Minute)

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(revokedKeyPrefix+"jti-2"))
}

func TestRevoke_PastExpiryStillRecorded(t *testing.T) {
	list, mr := newTestList(t)

	ok, err := list.Revoke(context.Background(), "jti-3", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists(revokedKeyPrefix+"jti-3"))
}

func TestRevoke_ConcurrentSingleWinner(t *testing.T) {
	list, _ := newTestList(t)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := list.Revoke(context.Background(), "jti-4", time.Now().Add(time.Hour))
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestRevoke_RedisDown(t *testing.T) {
	list, mr := newTestList(t)
	mr.Close()

	_, err := list.Revoke(context.Background(), "jti-5", time.Now().Add(time.Hour))
	assert.Error(t, err)
}
