package service

import (
	"regexp"
	"sort"
	"strings"

	"github.com/noah-isme/villa-intake-api/internal/models"
)

var previewSuffix = regexp.MustCompile(`-preview\d*$`)

// IdentifierResolver maps decorated property identifiers onto the calendar
// registry. The registry is fixed at construction.
type IdentifierResolver struct {
	feeds map[string]string
	keys  []string
}

// NewIdentifierResolver copies registry and sorts its keys. Prefix matches
// are tried in that lexicographic order.
func NewIdentifierResolver(registry map[string]string) *IdentifierResolver {
	feeds := make(map[string]string, len(registry))
	for key, url := range registry {
		key = strings.ToLower(strings.TrimSpace(key))
		url = strings.TrimSpace(url)
		if key == "" || url == "" {
			continue
		}
		feeds[key] = url
	}
	keys := make([]string, 0, len(feeds))
	for key := range feeds {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return &IdentifierResolver{feeds: feeds, keys: keys}
}

// NormalizeIdentifier lowercases raw and strips a trailing -preview marker.
func NormalizeIdentifier(raw string) string {
	id := strings.ToLower(strings.TrimSpace(raw))
	return previewSuffix.ReplaceAllString(id, "")
}

// Resolve returns the feed for raw, or models.Unconfigured.
func (r *IdentifierResolver) Resolve(raw string) models.FeedSource {
	id := NormalizeIdentifier(raw)
	if id == "" {
		return models.Unconfigured
	}
	if url, ok := r.feeds[id]; ok {
		return models.Configured(id, url)
	}
	prefix := id + "-"
	for _, key := range r.keys {
		if strings.HasPrefix(key, prefix) {
			return models.Configured(key, r.feeds[key])
		}
	}
	return models.Unconfigured
}

// Keys lists the registry keys in match order.
func (r *IdentifierResolver) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}
