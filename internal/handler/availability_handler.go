package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/villa-intake-api/internal/calendar"
	"github.com/noah-isme/villa-intake-api/internal/dto"
	"github.com/noah-isme/villa-intake-api/internal/middleware"
	"github.com/noah-isme/villa-intake-api/internal/models"
	appErrors "github.com/noah-isme/villa-intake-api/pkg/errors"
	"github.com/noah-isme/villa-intake-api/pkg/response"
)

// Messages attached to availability answers that are not a fresh feed read.
const (
	MessageUnconfigured = "No availability calendar is connected for this property. Please contact us to confirm your dates."
	MessageStale        = "Showing the most recent availability we have. Please confirm your dates with us."
	MessageUnknown      = "Availability could not be loaded right now. Please contact us to confirm your dates."
)

type availabilityService interface {
	GetBlockedRanges(ctx context.Context, rawID string) models.AvailabilityResult
}

// AvailabilityHandler serves blocked date ranges and the calendar views built on them.
type AvailabilityHandler struct {
	service  availabilityService
	validate *validator.Validate
	now      func() time.Time
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(service availabilityService, validate *validator.Validate) *AvailabilityHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &AvailabilityHandler{service: service, validate: validate, now: time.Now}
}

// Get godoc
// @Summary Blocked date ranges for a property
// @Tags Availability
// @Produce json
// @Param slug path string true "Property identifier"
// @Success 200 {object} dto.AvailabilityResponse
// @Failure 400 {object} response.Envelope
// @Router /availability/{slug} [get]
func (h *AvailabilityHandler) Get(c *gin.Context) {
	id := propertyIdentifier(c)
	if id == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "property identifier is required"))
		return
	}

	result := h.service.GetBlockedRanges(c.Request.Context(), id)
	middleware.SetCacheStatus(c, result.Cached, result.Stale)
	response.Raw(c, http.StatusOK, toAvailabilityResponse(id, result, h.now()))
}

// Calendar godoc
// @Summary Month grid with blocked and selectable days
// @Tags Availability
// @Produce json
// @Param slug path string true "Property identifier"
// @Param month query string false "Month (YYYY-MM), defaults to the current month"
// @Param minNights query int true "Minimum stay in nights, 0 for none"
// @Param weekStart query string false "sunday or monday"
// @Param start query string false "Selected check-in (YYYY-MM-DD)"
// @Param end query string false "Selected check-out (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /availability/{slug}/calendar [get]
func (h *AvailabilityHandler) Calendar(c *gin.Context) {
	var query dto.CalendarQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid calendar query"))
		return
	}
	if err := h.validate.Struct(query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid calendar query"))
		return
	}

	today := models.DateOf(h.now().UTC())
	year, month := today.Year(), today.Month()
	if query.Month != "" {
		parsed, _ := time.Parse("2006-01", query.Month)
		year, month = parsed.Year(), parsed.Month()
	}
	weekStart := time.Sunday
	if query.WeekStart == "monday" {
		weekStart = time.Monday
	}

	id := propertyIdentifier(c)
	result := h.service.GetBlockedRanges(c.Request.Context(), id)
	selection := calendar.NewSelection(result.Ranges, today, *query.MinNights)
	for _, raw := range []string{query.Start, query.End} {
		if raw == "" {
			continue
		}
		day, _ := models.ParseDate(raw)
		selection.Press(day)
	}

	grid := selection.Month(year, month, weekStart)
	prevYear, prevMonth := grid.Prev()
	nextYear, nextMonth := grid.Next()

	middleware.SetCacheStatus(c, result.Cached, result.Stale)
	response.JSON(c, http.StatusOK, gin.H{
		"availability": toAvailabilityResponse(id, result, h.now()),
		"minNights":    *query.MinNights,
		"grid":         grid,
		"selection":    selection.State(),
		"prev":         monthString(prevYear, prevMonth),
		"next":         monthString(nextYear, nextMonth),
	}, middleware.ExtractMeta(c))
}

// Selection godoc
// @Summary Replay day presses through the stay selection rules
// @Tags Availability
// @Accept json
// @Produce json
// @Param slug path string true "Property identifier"
// @Param payload body dto.SelectionRequest true "Presses"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /availability/{slug}/selection [post]
func (h *AvailabilityHandler) Selection(c *gin.Context) {
	var req dto.SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid selection payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid selection payload"))
		return
	}

	today := models.DateOf(h.now().UTC())
	if req.Today != "" {
		today, _ = models.ParseDate(req.Today)
	}
	days := make([]models.Date, 0, len(req.Presses))
	for _, raw := range req.Presses {
		day, _ := models.ParseDate(raw)
		days = append(days, day)
	}

	result := h.service.GetBlockedRanges(c.Request.Context(), propertyIdentifier(c))
	state, rejected := calendar.NewSelection(result.Ranges, today, *req.MinNights).Apply(days)
	if rejected == nil {
		rejected = []int{}
	}

	response.JSON(c, http.StatusOK, gin.H{
		"selection":           state,
		"rejected":            rejected,
		"configured":          result.Configured,
		"availabilityUnknown": result.FetchFailed,
	})
}

func toAvailabilityResponse(id string, result models.AvailabilityResult, now time.Time) dto.AvailabilityResponse {
	slug := result.PropertyKey
	if slug == "" {
		slug = id
	}
	updated := result.FetchedAt
	if updated.IsZero() {
		updated = now
	}
	ranges := result.Ranges
	if ranges == nil {
		ranges = []models.BlockedRange{}
	}

	resp := dto.AvailabilityResponse{
		PropertySlug:        slug,
		BlockedRanges:       ranges,
		LastUpdated:         isoTimestamp(updated),
		Cached:              result.Cached,
		Stale:               result.Stale,
		Configured:          result.Configured,
		AvailabilityUnknown: result.FetchFailed,
	}
	switch {
	case !result.Configured:
		resp.Message = MessageUnconfigured
	case result.FetchFailed:
		resp.Message = MessageUnknown
	case result.Stale:
		resp.Message = MessageStale
	}
	return resp
}

func monthString(year int, month time.Month) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}
