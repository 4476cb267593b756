package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/villa-intake-api/internal/calendar"
	"github.com/noah-isme/villa-intake-api/internal/models"
	appErrors "github.com/noah-isme/villa-intake-api/pkg/errors"
)

// DefaultFeedTimeout bounds a single feed download.
const DefaultFeedTimeout = 10 * time.Second

// FeedFetcher downloads a calendar feed body.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// AvailabilityService resolves property identifiers to blocked date ranges.
// It is the only place that performs feed network I/O.
type AvailabilityService struct {
	resolver *IdentifierResolver
	cache    *AvailabilityCache
	fetcher  FeedFetcher
	metrics  *MetricsService
	timeout  time.Duration
	logger   *zap.Logger
	group    singleflight.Group
}

// NewAvailabilityService wires the resolver, cache and fetcher together.
func NewAvailabilityService(resolver *IdentifierResolver, cache *AvailabilityCache, fetcher FeedFetcher, metrics *MetricsService, timeout time.Duration, logger *zap.Logger) *AvailabilityService {
	if timeout <= 0 {
		timeout = DefaultFeedTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		resolver: resolver,
		cache:    cache,
		fetcher:  fetcher,
		metrics:  metrics,
		timeout:  timeout,
		logger:   logger,
	}
}

// GetBlockedRanges never fails. An unconfigured identifier is fully
// available; a failed refresh serves the previous snapshot marked stale, or
// an empty result flagged FetchFailed when there is none.
func (s *AvailabilityService) GetBlockedRanges(ctx context.Context, rawID string) models.AvailabilityResult {
	result := models.AvailabilityResult{RequestedID: rawID, Ranges: []models.BlockedRange{}}

	source := s.resolver.Resolve(rawID)
	if !source.IsConfigured() {
		return result
	}
	result.Configured = true
	result.PropertyKey = source.Key

	previous, found := s.cache.Lookup(ctx, source.Key)
	if found && !previous.IsStale {
		result.Ranges = previous.Ranges
		result.Cached = true
		result.FetchedAt = previous.FetchedAt
		return result
	}

	fresh, err := s.refresh(ctx, source)
	if err == nil {
		result.Ranges = fresh.Ranges
		result.FetchedAt = fresh.FetchedAt
		return result
	}

	log := s.logger.With(zap.String("property", source.Key), zap.Error(err))
	if found {
		log.Warn("feed refresh failed, serving stale snapshot", zap.Time("fetched_at", previous.FetchedAt))
		s.metrics.RecordAvailabilityFallback(OutcomeStale)
		result.Ranges = previous.Ranges
		result.Cached = true
		result.Stale = true
		result.FetchedAt = previous.FetchedAt
		return result
	}

	log.Warn("feed fetch failed with nothing cached")
	s.metrics.RecordAvailabilityFallback(OutcomeUnknown)
	result.FetchFailed = true
	return result
}

// Refresh forces a fetch for rawID. Unlike GetBlockedRanges it reports
// failures, and it leaves any existing snapshot in place when the fetch fails.
func (s *AvailabilityService) Refresh(ctx context.Context, rawID string) (models.AvailabilityResult, error) {
	source := s.resolver.Resolve(rawID)
	if !source.IsConfigured() {
		return models.AvailabilityResult{}, appErrors.Clone(appErrors.ErrNotFound, "no calendar feed configured for property")
	}

	fresh, err := s.refresh(ctx, source)
	if err != nil {
		return models.AvailabilityResult{}, appErrors.Wrap(err, appErrors.ErrFeedUnavailable.Code, appErrors.ErrFeedUnavailable.Status, appErrors.ErrFeedUnavailable.Message)
	}
	return models.AvailabilityResult{
		RequestedID: rawID,
		PropertyKey: source.Key,
		Ranges:      fresh.Ranges,
		Configured:  true,
		FetchedAt:   fresh.FetchedAt,
	}, nil
}

// Resolve exposes identifier resolution to callers that need the registry key.
func (s *AvailabilityService) Resolve(rawID string) models.FeedSource {
	return s.resolver.Resolve(rawID)
}

// refresh collapses concurrent refreshes of one key into a single download.
// The download ignores the caller's cancellation and is bounded by the feed
// timeout instead.
func (s *AvailabilityService) refresh(ctx context.Context, source models.FeedSource) (models.AvailabilitySnapshot, error) {
	ch := s.group.DoChan(source.Key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.fetch(fetchCtx, source)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return models.AvailabilitySnapshot{}, res.Err
		}
		return res.Val.(models.AvailabilitySnapshot), nil
	case <-ctx.Done():
		return models.AvailabilitySnapshot{}, ctx.Err()
	}
}

func (s *AvailabilityService) fetch(ctx context.Context, source models.FeedSource) (models.AvailabilitySnapshot, error) {
	start := time.Now()
	body, err := s.fetcher.Fetch(ctx, source.URL)
	if err != nil {
		s.metrics.ObserveFeedFetch(OutcomeError, 0, time.Since(start))
		return models.AvailabilitySnapshot{}, err
	}

	parsed := calendar.ParseFeed(body)
	s.metrics.ObserveFeedFetch(OutcomeOK, parsed.Dropped, time.Since(start))
	if parsed.Dropped > 0 {
		s.logger.Info("feed events dropped",
			zap.String("property", source.Key),
			zap.Int("dropped", parsed.Dropped),
			zap.Int("kept", len(parsed.Ranges)),
		)
	}

	// a failed store is logged by the cache; the ranges are still fresh
	snapshot, _ := s.cache.Put(ctx, source.Key, parsed.Ranges)
	return snapshot, nil
}
