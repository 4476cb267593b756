package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/villa-intake-api/internal/models"
	appErrors "github.com/noah-isme/villa-intake-api/pkg/errors"
)

const (
	// DefaultAvailabilityTTL is how long a snapshot counts as fresh.
	DefaultAvailabilityTTL = 15 * time.Minute

	availabilityKeyPrefix = "availability:"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// AvailabilityCache keeps the last parsed blocked ranges per property key.
// Entries older than the TTL are still returned, flagged stale, so a failed
// refresh can fall back to them.
type AvailabilityCache struct {
	repo      CacheRepository
	metrics   *MetricsService
	ttl       time.Duration
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewAvailabilityCache constructs the cache. A retention of zero keeps
// snapshots until they are overwritten or invalidated.
func NewAvailabilityCache(repo CacheRepository, metrics *MetricsService, ttl, retention time.Duration, logger *zap.Logger) *AvailabilityCache {
	if ttl <= 0 {
		ttl = DefaultAvailabilityTTL
	}
	if retention > 0 && retention < ttl {
		retention = ttl
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityCache{repo: repo, metrics: metrics, ttl: ttl, retention: retention, logger: logger, now: time.Now}
}

// WithClock overrides the clock used for staleness checks.
func (c *AvailabilityCache) WithClock(now func() time.Time) *AvailabilityCache {
	if now != nil {
		c.now = now
	}
	return c
}

// TTL returns the freshness window.
func (c *AvailabilityCache) TTL() time.Duration {
	return c.ttl
}

// Lookup returns the stored snapshot for key. found is false on a miss; a
// found snapshot older than the TTL has IsStale set. Store errors count as
// misses.
func (c *AvailabilityCache) Lookup(ctx context.Context, key string) (models.AvailabilitySnapshot, bool) {
	start := time.Now()
	var snapshot models.AvailabilitySnapshot
	err := c.repo.Get(ctx, availabilityKeyPrefix+key, &snapshot)
	duration := time.Since(start)
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			c.logger.Warn("availability cache get failed", zap.String("key", key), zap.Error(err))
		}
		c.metrics.RecordCacheOperation(false, duration)
		return models.AvailabilitySnapshot{}, false
	}

	snapshot.IsStale = !c.now().Before(snapshot.FetchedAt.Add(c.ttl))
	if snapshot.Ranges == nil {
		snapshot.Ranges = []models.BlockedRange{}
	}
	c.metrics.RecordCacheOperation(!snapshot.IsStale, duration)
	return snapshot, true
}

// Put stores ranges for key stamped with the current time.
func (c *AvailabilityCache) Put(ctx context.Context, key string, ranges []models.BlockedRange) (models.AvailabilitySnapshot, error) {
	if ranges == nil {
		ranges = []models.BlockedRange{}
	}
	snapshot := models.AvailabilitySnapshot{
		PropertyKey: key,
		Ranges:      ranges,
		FetchedAt:   c.now().UTC(),
	}

	start := time.Now()
	err := c.repo.Set(ctx, availabilityKeyPrefix+key, snapshot, c.retention)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("availability cache set failed", zap.String("key", key), zap.Error(err))
		return snapshot, err
	}
	return snapshot, nil
}

// Invalidate drops the snapshot for key.
func (c *AvailabilityCache) Invalidate(ctx context.Context, key string) error {
	if err := c.repo.Delete(ctx, availabilityKeyPrefix+key); err != nil {
		c.logger.Warn("availability cache invalidate failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// InvalidateAll drops every availability snapshot.
func (c *AvailabilityCache) InvalidateAll(ctx context.Context) error {
	if err := c.repo.DeleteByPattern(ctx, availabilityKeyPrefix+"*"); err != nil {
		c.logger.Warn("availability cache invalidate failed", zap.String("pattern", availabilityKeyPrefix+"*"), zap.Error(err))
		return err
	}
	return nil
}
