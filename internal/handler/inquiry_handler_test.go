package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/villa-intake-api/internal/dto"
	"github.com/noah-isme/villa-intake-api/internal/models"
	appErrors "github.com/noah-isme/villa-intake-api/pkg/errors"
)

type leadServiceStub struct {
	result models.SubmitResult
	err    error
	got    dto.InquiryRequest
}

func (s *leadServiceStub) Submit(_ context.Context, req dto.InquiryRequest) (models.SubmitResult, error) {
	s.got = req
	return s.result, s.err
}

func postInquiry(t *testing.T, stub *leadServiceStub, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/inquiries", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	NewInquiryHandler(stub).Submit(c)
	return w
}

func TestInquirySubmitFlatResponse(t *testing.T) {
	stub := &leadServiceStub{result: models.SubmitResult{
		OK:            true,
		TraceID:       "trace_abc_123456",
		DedupKey:      "a@b.co|villa-azure|no-date",
		ContactID:     "contact-1",
		OpportunityID: "opp-1",
	}}
	w := postInquiry(t, stub, []byte(`{"email":"a@b.co","property_id":"villa-azure","utm_source":"ig"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trace_abc_123456", w.Header().Get("X-Trace-ID"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]interface{}{
		"ok":        true,
		"trace_id":  "trace_abc_123456",
		"dedup_key": "a@b.co|villa-azure|no-date",
	}, body)
	assert.Equal(t, "ig", stub.got.UTMSource)
}

func TestInquirySubmitWarning(t *testing.T) {
	stub := &leadServiceStub{result: models.SubmitResult{OK: true, TraceID: "trace_x", DedupKey: "k", Warning: "crm down"}}
	w := postInquiry(t, stub, []byte(`{"property_id":"villa-azure"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"warning":"crm down"`)
	assert.Contains(t, w.Body.String(), `"ok":true`)
}

func TestInquirySubmitMalformedJSON(t *testing.T) {
	w := postInquiry(t, &leadServiceStub{}, []byte(`{"property_id":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestInquirySubmitValidationError(t *testing.T) {
	stub := &leadServiceStub{
		result: models.SubmitResult{TraceID: "trace_v"},
		err:    appErrors.Clone(appErrors.ErrValidation, "invalid inquiry payload"),
	}
	w := postInquiry(t, stub, []byte(`{"email":"a@b.co"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "trace_v", w.Header().Get("X-Trace-ID"))
}
