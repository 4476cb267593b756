package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/villa-intake-api/internal/dto"
	"github.com/noah-isme/villa-intake-api/internal/models"
	appErrors "github.com/noah-isme/villa-intake-api/pkg/errors"
	"github.com/noah-isme/villa-intake-api/pkg/response"
)

type operatorService interface {
	AddNote(ctx context.Context, contactID string, req dto.AddNoteRequest, idempotencyKey string) (*dto.OperatorResult, error)
	AddTags(ctx context.Context, contactID string, req dto.AddTagsRequest, idempotencyKey string) (*dto.OperatorResult, error)
	MoveStage(ctx context.Context, opportunityID string, req dto.MoveStageRequest, idempotencyKey string) (*dto.OperatorResult, error)
	ListPipelines(ctx context.Context) ([]models.CRMPipeline, error)
}

type availabilityRefresher interface {
	Refresh(ctx context.Context, rawID string) (models.AvailabilityResult, error)
}

// OperatorHandler exposes the concierge team's manual CRM actions.
type OperatorHandler struct {
	service   operatorService
	refresher availabilityRefresher
}

// NewOperatorHandler constructs the handler.
func NewOperatorHandler(service operatorService, refresher availabilityRefresher) *OperatorHandler {
	return &OperatorHandler{service: service, refresher: refresher}
}

// AddNote godoc
// @Summary Add a note to a CRM contact
// @Tags Operator
// @Accept json
// @Produce json
// @Security OpsSecret
// @Param id path string true "Contact ID"
// @Param Idempotency-Key header string false "Replay protection key"
// @Param payload body dto.AddNoteRequest true "Note"
// @Success 201 {object} response.Envelope
// @Router /ops/contacts/{id}/notes [post]
func (h *OperatorHandler) AddNote(c *gin.Context) {
	var req dto.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid note payload"))
		return
	}
	result, err := h.service.AddNote(c.Request.Context(), c.Param("id"), req, idempotencyKey(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOperator(c, result)
}

// AddTags godoc
// @Summary Add tags to a CRM contact
// @Tags Operator
// @Accept json
// @Produce json
// @Security OpsSecret
// @Param id path string true "Contact ID"
// @Param Idempotency-Key header string false "Replay protection key"
// @Param payload body dto.AddTagsRequest true "Tags"
// @Success 201 {object} response.Envelope
// @Router /ops/contacts/{id}/tags [post]
func (h *OperatorHandler) AddTags(c *gin.Context) {
	var req dto.AddTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid tags payload"))
		return
	}
	result, err := h.service.AddTags(c.Request.Context(), c.Param("id"), req, idempotencyKey(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOperator(c, result)
}

// MoveStage godoc
// @Summary Move an opportunity to a pipeline stage
// @Tags Operator
// @Accept json
// @Produce json
// @Security OpsSecret
// @Param id path string true "Opportunity ID"
// @Param Idempotency-Key header string false "Replay protection key"
// @Param payload body dto.MoveStageRequest true "Target stage"
// @Success 200 {object} response.Envelope
// @Router /ops/opportunities/{id}/stage [post]
func (h *OperatorHandler) MoveStage(c *gin.Context) {
	var req dto.MoveStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid stage payload"))
		return
	}
	result, err := h.service.MoveStage(c.Request.Context(), c.Param("id"), req, idempotencyKey(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// ListPipelines godoc
// @Summary List CRM pipelines and their stage ids
// @Tags Operator
// @Produce json
// @Security OpsSecret
// @Success 200 {object} response.Envelope
// @Router /ops/pipelines [get]
func (h *OperatorHandler) ListPipelines(c *gin.Context) {
	pipelines, err := h.service.ListPipelines(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pipelines, map[string]interface{}{"total": len(pipelines)})
}

// RefreshAvailability godoc
// @Summary Force a calendar feed refresh for a property
// @Tags Operator
// @Produce json
// @Security OpsSecret
// @Param slug path string true "Property identifier"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /ops/availability/{slug}/refresh [post]
func (h *OperatorHandler) RefreshAvailability(c *gin.Context) {
	id := propertyIdentifier(c)
	result, err := h.refresher.Refresh(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, toAvailabilityResponse(id, result, result.FetchedAt))
}

// respondOperator answers 201 for a fresh write and 200 for a replay.
func respondOperator(c *gin.Context, result *dto.OperatorResult) {
	if result.Replayed {
		c.Header("Idempotent-Replayed", "true")
		response.JSON(c, http.StatusOK, result)
		return
	}
	response.Created(c, result)
}
