package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/villa-intake-api/internal/models"
	appErrors "github.com/noah-isme/villa-intake-api/pkg/errors"
)

const azureFeed = "BEGIN:VCALENDAR\nBEGIN:VEVENT\nDTSTART;VALUE=DATE:20260215\nDTEND;VALUE=DATE:20260222\nSUMMARY:Reserved\nEND:VEVENT\nEND:VCALENDAR\n"

type stubFetcher struct {
	mu    sync.Mutex
	body  string
	err   error
	delay time.Duration
	urls  []string
	calls int32
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.urls = append(f.urls, url)
	body, err, delay := f.body, f.err, f.delay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return body, err
}

func (f *stubFetcher) set(body string, err error) {
	f.mu.Lock()
	f.body, f.err = body, err
	f.mu.Unlock()
}

func newAvailabilityFixture(fetcher *stubFetcher) (*AvailabilityService, *fakeClock) {
	clock := newFakeClock(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	resolver := NewIdentifierResolver(map[string]string{
		"villa-azure-cabo": "https://feeds.example.com/azure.ics",
	})
	cache := NewAvailabilityCache(&stubCacheRepo{}, nil, 15*time.Minute, 0, nil).WithClock(clock.Now)
	svc := NewAvailabilityService(resolver, cache, fetcher, NewMetricsService(), time.Second, zap.NewNop())
	return svc, clock
}

func TestGetBlockedRangesUnconfigured(t *testing.T) {
	fetcher := &stubFetcher{body: azureFeed}
	svc, _ := newAvailabilityFixture(fetcher)

	result := svc.GetBlockedRanges(context.Background(), "unknown-villa")
	assert.False(t, result.Configured)
	assert.False(t, result.Cached)
	assert.False(t, result.FetchFailed)
	assert.NotNil(t, result.Ranges)
	assert.Empty(t, result.Ranges)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fetcher.calls))
}

func TestGetBlockedRangesFetchesThenCaches(t *testing.T) {
	fetcher := &stubFetcher{body: azureFeed}
	svc, _ := newAvailabilityFixture(fetcher)
	ctx := context.Background()

	first := svc.GetBlockedRanges(ctx, "villa-azure-preview2")
	require.True(t, first.Configured)
	assert.Equal(t, "villa-azure-cabo", first.PropertyKey)
	assert.False(t, first.Cached)
	require.Len(t, first.Ranges, 1)
	assert.Equal(t, models.NewDate(2026, 2, 15), first.Ranges[0].Start)
	assert.Equal(t, []string{"https://feeds.example.com/azure.ics"}, fetcher.urls)

	second := svc.GetBlockedRanges(ctx, "villa-azure")
	assert.True(t, second.Cached)
	assert.False(t, second.Stale)
	assert.Equal(t, first.Ranges, second.Ranges)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))
}

func TestGetBlockedRangesRefreshesAfterTTL(t *testing.T) {
	fetcher := &stubFetcher{body: azureFeed}
	svc, clock := newAvailabilityFixture(fetcher)
	ctx := context.Background()

	svc.GetBlockedRanges(ctx, "villa-azure")
	clock.Advance(16 * time.Minute)
	fetcher.set("BEGIN:VCALENDAR\nEND:VCALENDAR\n", nil)

	result := svc.GetBlockedRanges(ctx, "villa-azure")
	assert.False(t, result.Cached)
	assert.False(t, result.Stale)
	assert.Empty(t, result.Ranges)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetcher.calls))
}

func TestGetBlockedRangesServesStaleOnFailure(t *testing.T) {
	fetcher := &stubFetcher{body: azureFeed}
	svc, clock := newAvailabilityFixture(fetcher)
	ctx := context.Background()

	first := svc.GetBlockedRanges(ctx, "villa-azure")
	clock.Advance(20 * time.Minute)
	fetcher.set("", errors.New("feed returned status 503"))

	result := svc.GetBlockedRanges(ctx, "villa-azure")
	assert.True(t, result.Stale)
	assert.True(t, result.Cached)
	assert.False(t, result.FetchFailed)
	assert.Equal(t, first.Ranges, result.Ranges)
	assert.True(t, first.FetchedAt.Equal(result.FetchedAt))
}

func TestGetBlockedRangesFailureWithoutCacheIsUnknown(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("no such host")}
	svc, _ := newAvailabilityFixture(fetcher)

	result := svc.GetBlockedRanges(context.Background(), "villa-azure")
	assert.True(t, result.Configured)
	assert.True(t, result.FetchFailed)
	assert.False(t, result.Stale)
	assert.Empty(t, result.Ranges)
}

func TestGetBlockedRangesTimeoutCountsAsFailure(t *testing.T) {
	fetcher := &stubFetcher{body: azureFeed, delay: 5 * time.Second}
	clock := newFakeClock(time.Now())
	resolver := NewIdentifierResolver(map[string]string{"villa-azure": "https://feeds.example.com/azure.ics"})
	cache := NewAvailabilityCache(&stubCacheRepo{}, nil, time.Minute, 0, nil).WithClock(clock.Now)
	svc := NewAvailabilityService(resolver, cache, fetcher, nil, 30*time.Millisecond, nil)

	start := time.Now()
	result := svc.GetBlockedRanges(context.Background(), "villa-azure")
	assert.True(t, result.FetchFailed)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGetBlockedRangesCollapsesConcurrentFetches(t *testing.T) {
	fetcher := &stubFetcher{body: azureFeed, delay: 50 * time.Millisecond}
	svc, _ := newAvailabilityFixture(fetcher)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := svc.GetBlockedRanges(context.Background(), "villa-azure")
			assert.Len(t, result.Ranges, 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))
}

func TestRefresh(t *testing.T) {
	fetcher := &stubFetcher{body: azureFeed}
	svc, _ := newAvailabilityFixture(fetcher)
	ctx := context.Background()

	_, err := svc.Refresh(ctx, "unknown-villa")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	svc.GetBlockedRanges(ctx, "villa-azure")
	result, err := svc.Refresh(ctx, "villa-azure")
	require.NoError(t, err)
	assert.Len(t, result.Ranges, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetcher.calls))

	fetcher.set("", errors.New("boom"))
	_, err = svc.Refresh(ctx, "villa-azure")
	assert.True(t, errors.Is(err, appErrors.ErrFeedUnavailable))

	// the earlier snapshot survives a failed refresh
	cached := svc.GetBlockedRanges(ctx, "villa-azure")
	assert.True(t, cached.Cached)
	assert.Len(t, cached.Ranges, 1)
}
