package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/villa-intake-api/internal/middleware"
	"github.com/noah-isme/villa-intake-api/internal/service"
)

// Routes groups the handlers mounted by Register.
type Routes struct {
	Availability *AvailabilityHandler
	Inquiry      *InquiryHandler
	Operator     *OperatorHandler
	Metrics      *MetricsHandler

	OpsSecret string
	Logger    *zap.Logger
}

// Register mounts probes at the root and the API under prefix.
func (rt Routes) Register(r *gin.Engine, prefix string) {
	r.GET("/health", rt.Metrics.Health)
	r.GET("/ready", rt.Metrics.Ready)
	r.GET("/metrics", rt.Metrics.Prometheus)

	api := r.Group(prefix)
	api.Use(middleware.WithResponseMeta())

	api.GET("/availability", rt.Availability.Get)
	api.GET("/availability/:slug", rt.Availability.Get)
	api.GET("/availability/:slug/calendar", rt.Availability.Calendar)
	api.POST("/availability/:slug/selection", rt.Availability.Selection)
	api.POST("/inquiries", rt.Inquiry.Submit)

	ops := api.Group("/ops", middleware.OpsSecret(rt.OpsSecret))
	ops.POST("/contacts/:id/notes", middleware.OpsAudit(rt.Logger, service.ActionAddNote), rt.Operator.AddNote)
	ops.POST("/contacts/:id/tags", middleware.OpsAudit(rt.Logger, service.ActionAddTags), rt.Operator.AddTags)
	ops.POST("/opportunities/:id/stage", middleware.OpsAudit(rt.Logger, service.ActionMoveStage), rt.Operator.MoveStage)
	ops.GET("/pipelines", middleware.OpsAudit(rt.Logger, "list_pipelines"), rt.Operator.ListPipelines)
	ops.POST("/availability/:slug/refresh", middleware.OpsAudit(rt.Logger, "refresh_availability"), rt.Operator.RefreshAvailability)
	ops.GET("/metrics/summary", rt.Metrics.Summary)
}
