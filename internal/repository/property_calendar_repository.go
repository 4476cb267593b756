package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/villa-intake-api/internal/models"
)

// PropertyCalendarRepository reads the property -> feed registry table.
type PropertyCalendarRepository struct {
	db *sqlx.DB
}

// NewPropertyCalendarRepository constructs the repository.
func NewPropertyCalendarRepository(db *sqlx.DB) *PropertyCalendarRepository {
	return &PropertyCalendarRepository{db: db}
}

// ListActive returns every active registry row ordered by slug.
func (r *PropertyCalendarRepository) ListActive(ctx context.Context) ([]models.PropertyCalendar, error) {
	const query = `SELECT slug, feed_url, active FROM property_calendars
WHERE active = TRUE AND feed_url <> '' ORDER BY slug ASC`
	var rows []models.PropertyCalendar
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list property calendars: %w", err)
	}
	return rows, nil
}

// Registry merges active rows over base and returns a new map keyed by
// lowercase slug.
func (r *PropertyCalendarRepository) Registry(ctx context.Context, base map[string]string) (map[string]string, error) {
	rows, err := r.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]string, len(base)+len(rows))
	for slug, url := range base {
		merged[slug] = url
	}
	for _, row := range rows {
		merged[normalizeSlug(row.Slug)] = row.FeedURL
	}
	return merged, nil
}

func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}
