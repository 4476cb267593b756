package repository

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/villa-intake-api/internal/models"
	"github.com/noah-isme/villa-intake-api/pkg/config"
	appErrors "github.com/noah-isme/villa-intake-api/pkg/errors"
)

func newTestCRM(t *testing.T, handler http.HandlerFunc) *CRMRepository {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewCRMRepository(config.CRMConfig{
		BaseURL:    srv.URL + "/",
		APIKey:     "secret-key",
		LocationID: "loc-1",
		PipelineID: "pipe-1",
		Timeout:    2 * time.Second,
	}, srv.Client(), nil)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCRMRepositorySendsAuthHeaders(t *testing.T) {
	repo := newTestCRM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		assert.Equal(t, crmAPIVersion, r.Header.Get("Version"))
		assert.Equal(t, "/opportunities/pipelines", r.URL.Path)
		assert.Equal(t, "loc-1", r.URL.Query().Get("locationId"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"pipelines": []map[string]interface{}{{
				"id":   "pipe-1",
				"name": "Rentals",
				"stages": []map[string]interface{}{
					{"id": "s1", "name": "New Inquiry", "position": 0},
					{"id": "s2", "name": "Quote Sent", "position": 1},
				},
			}},
		})
	})

	pipelines, err := repo.ListPipelines(context.Background())
	require.NoError(t, err)
	require.Len(t, pipelines, 1)
	assert.Equal(t, "Rentals", pipelines[0].Name)
	assert.Len(t, pipelines[0].Stages, 2)
}

func TestCRMRepositoryFindContactFallsBackToPhone(t *testing.T) {
	var calls []string
	repo := newTestCRM(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		calls = append(calls, q.Encode())
		if q.Get("number") == "+15551234567" {
			writeJSON(w, http.StatusOK, map[string]interface{}{"contact": map[string]string{"id": "c-9", "phone": "+15551234567"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"contact": nil})
	})

	contact, err := repo.FindContact(context.Background(), "guest@example.com", "+15551234567")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, "c-9", contact.ID)
	assert.Len(t, calls, 2)
}

func TestCRMRepositoryFindContactNotFound(t *testing.T) {
	repo := newTestCRM(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"contact": nil})
	})

	contact, err := repo.FindContact(context.Background(), "guest@example.com", "")
	require.NoError(t, err)
	assert.Nil(t, contact)
}

func TestCRMRepositoryCreateOpportunity(t *testing.T) {
	repo := newTestCRM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pipe-1", body["pipelineId"])
		assert.Equal(t, "stage-new", body["pipelineStageId"])
		assert.Equal(t, "open", body["status"])
		writeJSON(w, http.StatusCreated, map[string]interface{}{"opportunity": map[string]interface{}{
			"id":              "opp-1",
			"name":            body["name"],
			"contactId":       body["contactId"],
			"pipelineStageId": body["pipelineStageId"],
			"status":          "open",
			"createdAt":       "2026-02-01T10:00:00Z",
		}})
	})

	title := models.OpportunityTitle("Jane Doe", "villa-azure", "jane@example.com|villa-azure|2026-02-15")
	opp, err := repo.CreateOpportunity(context.Background(), models.CRMOpportunity{
		Name:      title,
		ContactID: "c-1",
		StageID:   "stage-new",
	})
	require.NoError(t, err)
	assert.Equal(t, "opp-1", opp.ID)
	assert.Equal(t, "jane@example.com|villa-azure|2026-02-15", opp.DedupKey)
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), opp.CreatedAt.UTC())
}

func TestCRMRepositoryMapsStatusCodes(t *testing.T) {
	status := http.StatusNotFound
	repo := newTestCRM(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"nope"}`, status)
	})

	err := repo.UpdateOpportunityStage(context.Background(), "opp-x", "s2", "")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	status = http.StatusUnprocessableEntity
	err = repo.AddTags(context.Background(), "c-1", []string{"vip"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	status = http.StatusInternalServerError
	_, err = repo.AddNote(context.Background(), "c-1", "hello")
	assert.True(t, errors.Is(err, appErrors.ErrCRMUnavailable))
	assert.Contains(t, err.Error(), "status 500")
}

func TestCRMRepositoryAddTagsSkipsEmpty(t *testing.T) {
	repo := newTestCRM(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	require.NoError(t, repo.AddTags(context.Background(), "c-1", nil))
}

func TestCRMRepositoryHonoursContextCancel(t *testing.T) {
	repo := newTestCRM(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := repo.ListOpenOpportunities(ctx, "c-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrCRMUnavailable))
}

func TestDedupKeyFromTitle(t *testing.T) {
	assert.Equal(t, "a|b|no-date", models.DedupKeyFromTitle(models.OpportunityTitle("", "b", "a|b|no-date")))
	assert.Equal(t, "", models.DedupKeyFromTitle("Manual deal"))
	assert.Equal(t, "", models.DedupKeyFromTitle("broken ] title"))
}
