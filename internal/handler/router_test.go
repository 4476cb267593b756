package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/villa-intake-api/internal/middleware"
	"github.com/noah-isme/villa-intake-api/internal/models"
	"github.com/noah-isme/villa-intake-api/internal/service"
)

func buildRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Routes{
		Availability: NewAvailabilityHandler(&availabilityServiceStub{}, nil),
		Inquiry:      NewInquiryHandler(&leadServiceStub{result: models.SubmitResult{OK: true, TraceID: "trace_r"}}),
		Operator:     NewOperatorHandler(&operatorServiceStub{}, &refresherStub{}),
		Metrics:      NewMetricsHandler(service.NewMetricsService(), nil),
		OpsSecret:    secret,
	}.Register(r, "/api/v1")
	return r
}

func TestRoutesRegistered(t *testing.T) {
	r := buildRouter("s3cret")

	cases := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/api/v1/availability/villa-azure", "", http.StatusOK},
		{http.MethodGet, "/api/v1/availability?property=villa-azure", "", http.StatusOK},
		{http.MethodPost, "/api/v1/inquiries", `{"property_id":"villa-azure"}`, http.StatusOK},
		{http.MethodGet, "/api/v1/ops/pipelines", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/ops/metrics/summary", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(tc.method, tc.path, bytes.NewReader([]byte(tc.body)))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, tc.path)
	}
}

func TestRoutesOpsWithSecret(t *testing.T) {
	r := buildRouter("s3cret")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ops/metrics/summary", nil)
	req.Header.Set(middleware.OpsSecretHeader, "s3cret")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cache_hit_ratio")
}
