package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/noah-isme/villa-intake-api/internal/models"
	"github.com/noah-isme/villa-intake-api/pkg/config"
	appErrors "github.com/noah-isme/villa-intake-api/pkg/errors"
)

const (
	crmAPIVersion = "2021-07-28"
	crmErrorBody  = 512
)

// CRMRepository talks to the LeadConnector-style CRM REST API. Outbound
// calls share one token-bucket limiter.
type CRMRepository struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	locationID string
	pipelineID string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewCRMRepository builds a client from config. The http client may be nil.
func NewCRMRepository(cfg config.CRMConfig, client *http.Client, logger *zap.Logger) *CRMRepository {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &CRMRepository{
		client:     client,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		locationID: cfg.LocationID,
		pipelineID: cfg.PipelineID,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

type crmContactEnvelope struct {
	Contact *models.CRMContact `json:"contact"`
}

type crmOpportunity struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ContactID       string    `json:"contactId"`
	PipelineID      string    `json:"pipelineId"`
	PipelineStageID string    `json:"pipelineStageId"`
	Status          string    `json:"status"`
	Source          string    `json:"source"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (o crmOpportunity) toModel() models.CRMOpportunity {
	return models.CRMOpportunity{
		ID:         o.ID,
		Name:       o.Name,
		ContactID:  o.ContactID,
		PipelineID: o.PipelineID,
		StageID:    o.PipelineStageID,
		Status:     o.Status,
		Source:     o.Source,
		DedupKey:   models.DedupKeyFromTitle(o.Name),
		CreatedAt:  o.CreatedAt,
	}
}

// FindContact looks a contact up by email, then by phone. It returns nil when
// neither matches.
func (r *CRMRepository) FindContact(ctx context.Context, email, phone string) (*models.CRMContact, error) {
	lookups := []struct{ param, value string }{{"email", email}, {"number", phone}}
	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		query := url.Values{"locationId": {r.locationID}, l.param: {l.value}}
		var out crmContactEnvelope
		if err := r.do(ctx, http.MethodGet, "/contacts/search/duplicate", query, nil, &out); err != nil {
			return nil, err
		}
		if out.Contact != nil && out.Contact.ID != "" {
			return out.Contact, nil
		}
	}
	return nil, nil
}

// CreateContact creates a contact in the configured location.
func (r *CRMRepository) CreateContact(ctx context.Context, contact models.CRMContact) (*models.CRMContact, error) {
	body := map[string]interface{}{
		"locationId": r.locationID,
		"firstName":  contact.FirstName,
		"lastName":   contact.LastName,
		"source":     contact.Source,
	}
	if contact.Email != "" {
		body["email"] = contact.Email
	}
	if contact.Phone != "" {
		body["phone"] = contact.Phone
	}
	if len(contact.Tags) > 0 {
		body["tags"] = contact.Tags
	}

	var out crmContactEnvelope
	if err := r.do(ctx, http.MethodPost, "/contacts/", nil, body, &out); err != nil {
		return nil, err
	}
	if out.Contact == nil || out.Contact.ID == "" {
		return nil, appErrors.Wrap(fmt.Errorf("create contact: empty response"), appErrors.ErrCRMUnavailable.Code, appErrors.ErrCRMUnavailable.Status, appErrors.ErrCRMUnavailable.Message)
	}
	return out.Contact, nil
}

// ListOpenOpportunities returns the contact's open deals in the configured
// pipeline.
func (r *CRMRepository) ListOpenOpportunities(ctx context.Context, contactID string) ([]models.CRMOpportunity, error) {
	query := url.Values{
		"location_id": {r.locationID},
		"pipeline_id": {r.pipelineID},
		"contact_id":  {contactID},
		"status":      {models.OpportunityStatusOpen},
	}
	var out struct {
		Opportunities []crmOpportunity `json:"opportunities"`
	}
	if err := r.do(ctx, http.MethodGet, "/opportunities/search", query, nil, &out); err != nil {
		return nil, err
	}
	result := make([]models.CRMOpportunity, 0, len(out.Opportunities))
	for _, o := range out.Opportunities {
		result = append(result, o.toModel())
	}
	return result, nil
}

// GetOpportunity fetches a single opportunity.
func (r *CRMRepository) GetOpportunity(ctx context.Context, id string) (*models.CRMOpportunity, error) {
	var out struct {
		Opportunity *crmOpportunity `json:"opportunity"`
	}
	if err := r.do(ctx, http.MethodGet, "/opportunities/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Opportunity == nil {
		return nil, appErrors.ErrNotFound
	}
	opp := out.Opportunity.toModel()
	return &opp, nil
}

// CreateOpportunity opens a deal in the configured pipeline.
func (r *CRMRepository) CreateOpportunity(ctx context.Context, opp models.CRMOpportunity) (*models.CRMOpportunity, error) {
	body := map[string]interface{}{
		"locationId":      r.locationID,
		"pipelineId":      r.pipelineID,
		"pipelineStageId": opp.StageID,
		"contactId":       opp.ContactID,
		"name":            opp.Name,
		"status":          models.OpportunityStatusOpen,
		"source":          opp.Source,
	}
	var out struct {
		Opportunity *crmOpportunity `json:"opportunity"`
	}
	if err := r.do(ctx, http.MethodPost, "/opportunities/", nil, body, &out); err != nil {
		return nil, err
	}
	if out.Opportunity == nil || out.Opportunity.ID == "" {
		return nil, appErrors.Wrap(fmt.Errorf("create opportunity: empty response"), appErrors.ErrCRMUnavailable.Code, appErrors.ErrCRMUnavailable.Status, appErrors.ErrCRMUnavailable.Message)
	}
	created := out.Opportunity.toModel()
	return &created, nil
}

// UpdateOpportunityStage moves a deal. An empty stageID only changes status.
func (r *CRMRepository) UpdateOpportunityStage(ctx context.Context, id, stageID, status string) error {
	body := map[string]interface{}{}
	if stageID != "" {
		body["pipelineStageId"] = stageID
		body["pipelineId"] = r.pipelineID
	}
	if status != "" {
		body["status"] = status
	}
	return r.do(ctx, http.MethodPut, "/opportunities/"+url.PathEscape(id), nil, body, nil)
}

// AddNote appends a note to a contact.
func (r *CRMRepository) AddNote(ctx context.Context, contactID, body string) (*models.CRMNote, error) {
	var out struct {
		Note *models.CRMNote `json:"note"`
	}
	if err := r.do(ctx, http.MethodPost, "/contacts/"+url.PathEscape(contactID)+"/notes", nil, map[string]string{"body": body}, &out); err != nil {
		return nil, err
	}
	note := models.CRMNote{ContactID: contactID, Body: body}
	if out.Note != nil {
		note.ID = out.Note.ID
	}
	return &note, nil
}

// AddTags adds tags to a contact. The CRM ignores tags it already has.
func (r *CRMRepository) AddTags(ctx context.Context, contactID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	return r.do(ctx, http.MethodPost, "/contacts/"+url.PathEscape(contactID)+"/tags", nil, map[string][]string{"tags": tags}, nil)
}

// ListPipelines returns the location's pipelines with their stage ids.
func (r *CRMRepository) ListPipelines(ctx context.Context) ([]models.CRMPipeline, error) {
	var out struct {
		Pipelines []models.CRMPipeline `json:"pipelines"`
	}
	query := url.Values{"locationId": {r.locationID}}
	if err := r.do(ctx, http.MethodGet, "/opportunities/pipelines", query, nil, &out); err != nil {
		return nil, err
	}
	if out.Pipelines == nil {
		out.Pipelines = []models.CRMPipeline{}
	}
	return out.Pipelines, nil
}

func (r *CRMRepository) do(ctx context.Context, method, path string, query url.Values, body, dest interface{}) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return r.unavailable(method, path, fmt.Errorf("rate limiter: %w", err))
	}

	endpoint := r.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal crm payload: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build crm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Version", crmAPIVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return r.unavailable(method, path, err)
	}
	defer resp.Body.Close()

	r.logger.Debug("crm call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, crmErrorBody))
		cause := fmt.Errorf("crm %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return appErrors.Wrap(cause, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "crm record not found")
		case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
			return appErrors.Wrap(cause, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "crm rejected the request")
		default:
			return appErrors.Wrap(cause, appErrors.ErrCRMUnavailable.Code, appErrors.ErrCRMUnavailable.Status, appErrors.ErrCRMUnavailable.Message)
		}
	}

	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil && err != io.EOF {
		return r.unavailable(method, path, fmt.Errorf("decode crm response: %w", err))
	}
	return nil
}

func (r *CRMRepository) unavailable(method, path string, err error) error {
	return appErrors.Wrap(fmt.Errorf("crm %s %s: %w", method, path, err), appErrors.ErrCRMUnavailable.Code, appErrors.ErrCRMUnavailable.Status, appErrors.ErrCRMUnavailable.Message)
}
