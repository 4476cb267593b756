package dto

import "github.com/noah-isme/villa-intake-api/internal/models"

// AvailabilityResponse is the flat availability document served to clients.
type AvailabilityResponse struct {
	PropertySlug        string                `json:"propertySlug"`
	BlockedRanges       []models.BlockedRange `json:"blockedRanges"`
	LastUpdated         string                `json:"lastUpdated"`
	Cached              bool                  `json:"cached"`
	Stale               bool                  `json:"stale,omitempty"`
	Message             string                `json:"message,omitempty"`
	Configured          bool                  `json:"configured"`
	AvailabilityUnknown bool                  `json:"availabilityUnknown,omitempty"`
}

// CalendarQuery selects the month grid to render.
type CalendarQuery struct {
	Month     string `form:"month" validate:"omitempty,datetime=2006-01"`
	MinNights *int   `form:"minNights" validate:"required,gte=0,lte=365"`
	WeekStart string `form:"weekStart" validate:"omitempty,oneof=sunday monday"`
	Start     string `form:"start" validate:"omitempty,datetime=2006-01-02"`
	End       string `form:"end" validate:"omitempty,datetime=2006-01-02"`
}

// SelectionRequest replays day presses through the selection engine.
type SelectionRequest struct {
	MinNights *int     `json:"minNights" validate:"required,gte=0,lte=365"`
	Presses   []string `json:"presses" validate:"max=64,dive,datetime=2006-01-02"`
	Today     string   `json:"today" validate:"omitempty,datetime=2006-01-02"`
}
