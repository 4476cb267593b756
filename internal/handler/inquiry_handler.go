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

type leadService interface {
	Submit(ctx context.Context, req dto.InquiryRequest) (models.SubmitResult, error)
}

// InquiryHandler accepts inquiry form submissions.
type InquiryHandler struct {
	service leadService
}

// NewInquiryHandler constructs the handler.
func NewInquiryHandler(service leadService) *InquiryHandler {
	return &InquiryHandler{service: service}
}

// Submit godoc
// @Summary Submit a rental inquiry
// @Description Always answers ok for a well-formed inquiry; warning is set when the CRM could not be updated.
// @Tags Inquiries
// @Accept json
// @Produce json
// @Param payload body dto.InquiryRequest true "Inquiry"
// @Success 200 {object} models.SubmitResult
// @Failure 400 {object} response.Envelope
// @Router /inquiries [post]
func (h *InquiryHandler) Submit(c *gin.Context) {
	var req dto.InquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid inquiry payload"))
		return
	}

	result, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		if result.TraceID != "" {
			c.Header("X-Trace-ID", result.TraceID)
		}
		response.Error(c, err)
		return
	}
	c.Header("X-Trace-ID", result.TraceID)
	response.Raw(c, http.StatusOK, result)
}
