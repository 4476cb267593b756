package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/villa-intake-api/pkg/errors"
)

type cachedPayload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func setupRedisRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	repo := NewCacheRepository(client, nil)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, srv
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	repo, srv := setupRedisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "availability:villa-azure", cachedPayload{Name: "azure", Count: 2}, time.Minute))

	var got cachedPayload
	require.NoError(t, repo.Get(ctx, "availability:villa-azure", &got))
	assert.Equal(t, cachedPayload{Name: "azure", Count: 2}, got)

	srv.FastForward(2 * time.Minute)
	err := repo.Get(ctx, "availability:villa-azure", &got)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositoryZeroTTLPersists(t *testing.T) {
	repo, srv := setupRedisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "k", cachedPayload{Name: "x"}, 0))
	srv.FastForward(24 * time.Hour)

	var got cachedPayload
	require.NoError(t, repo.Get(ctx, "k", &got))
	assert.Equal(t, "x", got.Name)
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, srv := setupRedisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "availability:a", 1, 0))
	require.NoError(t, repo.Set(ctx, "availability:b", 2, 0))
	require.NoError(t, repo.Set(ctx, "idempotency:c", 3, 0))

	require.NoError(t, repo.DeleteByPattern(ctx, "availability:*"))
	assert.False(t, srv.Exists("availability:a"))
	assert.False(t, srv.Exists("availability:b"))
	assert.True(t, srv.Exists("idempotency:c"))

	require.NoError(t, repo.Delete(ctx, "idempotency:c"))
	assert.False(t, srv.Exists("idempotency:c"))
}

func TestCacheRepositoryNilClientIsMiss(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var dest cachedPayload
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", dest, time.Minute))
	assert.NoError(t, repo.Close())
}

func TestMemoryCacheRepositoryExpiry(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryCacheRepository().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "short", cachedPayload{Count: 1}, time.Minute))
	require.NoError(t, repo.Set(ctx, "forever", cachedPayload{Count: 2}, 0))

	var got cachedPayload
	require.NoError(t, repo.Get(ctx, "short", &got))
	assert.Equal(t, 1, got.Count)

	now = now.Add(time.Minute)
	assert.ErrorIs(t, repo.Get(ctx, "short", &got), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Get(ctx, "forever", &got))
	assert.Equal(t, 2, got.Count)
}

func TestMemoryCacheRepositoryStoresCopies(t *testing.T) {
	repo := NewMemoryCacheRepository()
	ctx := context.Background()

	value := []string{"a", "b"}
	require.NoError(t, repo.Set(ctx, "k", value, 0))
	value[0] = "mutated"

	var got []string
	require.NoError(t, repo.Get(ctx, "k", &got))
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestMemoryCacheRepositoryDeleteByPattern(t *testing.T) {
	repo := NewMemoryCacheRepository()
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "availability:a", 1, 0))
	require.NoError(t, repo.Set(ctx, "availability:b", 1, 0))
	require.NoError(t, repo.Set(ctx, "lead:dedup:x", 1, 0))

	require.NoError(t, repo.DeleteByPattern(ctx, "availability:*"))
	assert.Equal(t, 1, repo.Len())

	assert.Error(t, repo.DeleteByPattern(ctx, "[unterminated"))
}

func TestMemoryCacheRepositoryConcurrentAccess(t *testing.T) {
	repo := NewMemoryCacheRepository()
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				_ = repo.Set(ctx, "shared", n, 0)
				var v int
				_ = repo.Get(ctx, "shared", &v)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	var v int
	require.NoError(t, repo.Get(ctx, "shared", &v))
	assert.GreaterOrEqual(t, v, 0)
	assert.Less(t, v, 8)
}
