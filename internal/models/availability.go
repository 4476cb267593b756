package models

import "time"

// BlockedRange is an inclusive span of days during which a property is unavailable.
type BlockedRange struct {
	Start   Date   `json:"start"`
	End     Date   `json:"end"`
	Summary string `json:"summary,omitempty"`
}

// Contains reports whether day falls within [Start, End].
func (r BlockedRange) Contains(day Date) bool {
	return !day.Before(r.Start) && !day.After(r.End)
}

// Overlaps reports whether r shares at least one day with [start, end].
func (r BlockedRange) Overlaps(start, end Date) bool {
	return !r.End.Before(start) && !r.Start.After(end)
}

// IsBlocked reports whether day falls inside any of the ranges. Overlapping
// ranges are harmless.
func IsBlocked(ranges []BlockedRange, day Date) bool {
	for _, r := range ranges {
		if r.Contains(day) {
			return true
		}
	}
	return false
}

// AvailabilitySnapshot is a cached copy of a property's blocked ranges.
type AvailabilitySnapshot struct {
	PropertyKey string         `json:"property_key"`
	Ranges      []BlockedRange `json:"ranges"`
	FetchedAt   time.Time      `json:"fetched_at"`
	IsStale     bool           `json:"-"`
}

// FeedSource is the outcome of resolving a property identifier: either a
// configured registry entry or nothing.
type FeedSource struct {
	Key string
	URL string
}

// Unconfigured is the FeedSource for identifiers with no calendar feed.
var Unconfigured = FeedSource{}

// Configured builds a FeedSource for a registry entry.
func Configured(key, url string) FeedSource {
	return FeedSource{Key: key, URL: url}
}

// IsConfigured reports whether a feed URL was resolved.
func (s FeedSource) IsConfigured() bool {
	return s.URL != ""
}

// AvailabilityResult is what the availability resolver hands to callers.
type AvailabilityResult struct {
	RequestedID string
	PropertyKey string
	Ranges      []BlockedRange
	Configured  bool
	Cached      bool
	Stale       bool
	// FetchFailed means the feed could not be read and nothing was cached:
	// availability is unknown rather than open.
	FetchFailed bool
	FetchedAt   time.Time
}

// PropertyCalendar is a registry row mapping a property slug to its feed.
type PropertyCalendar struct {
	Slug    string `db:"slug" json:"slug"`
	FeedURL string `db:"feed_url" json:"feed_url"`
	Active  bool   `db:"active" json:"active"`
}
