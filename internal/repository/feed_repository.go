package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxFeedBytes caps a feed body; real provider feeds are well under this.
const maxFeedBytes = 5 << 20

// FeedRepository downloads calendar feeds from third-party providers.
type FeedRepository struct {
	client    *http.Client
	userAgent string
}

// NewFeedRepository constructs a feed client. A nil client gets one with the
// given timeout.
func NewFeedRepository(client *http.Client, userAgent string, timeout time.Duration) *FeedRepository {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &FeedRepository{client: client, userAgent: userAgent}
}

// Fetch GETs the feed body. Any non-2xx status is an error.
func (r *FeedRepository) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build feed request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	req.Header.Set("Accept", "text/calendar, text/plain;q=0.9, */*;q=0.5")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return "", fmt.Errorf("read feed body: %w", err)
	}
	if len(body) > maxFeedBytes {
		return "", fmt.Errorf("feed body exceeds %d bytes", maxFeedBytes)
	}
	return string(body), nil
}
