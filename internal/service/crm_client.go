package service

import (
	"context"
	"time"

	"github.com/noah-isme/villa-intake-api/internal/models"
)

// CRMClient is the subset of the CRM API the pipeline drives.
type CRMClient interface {
	FindContact(ctx context.Context, email, phone string) (*models.CRMContact, error)
	CreateContact(ctx context.Context, contact models.CRMContact) (*models.CRMContact, error)
	ListOpenOpportunities(ctx context.Context, contactID string) ([]models.CRMOpportunity, error)
	GetOpportunity(ctx context.Context, id string) (*models.CRMOpportunity, error)
	CreateOpportunity(ctx context.Context, opp models.CRMOpportunity) (*models.CRMOpportunity, error)
	UpdateOpportunityStage(ctx context.Context, id, stageID, status string) error
	AddNote(ctx context.Context, contactID, body string) (*models.CRMNote, error)
	AddTags(ctx context.Context, contactID string, tags []string) error
	ListPipelines(ctx context.Context) ([]models.CRMPipeline, error)
}

// InstrumentCRM wraps client so every call is counted and timed.
func InstrumentCRM(client CRMClient, metrics *MetricsService) CRMClient {
	if client == nil || metrics == nil {
		return client
	}
	return &instrumentedCRM{next: client, metrics: metrics}
}

type instrumentedCRM struct {
	next    CRMClient
	metrics *MetricsService
}

func (c *instrumentedCRM) observe(op string, start time.Time, err error) {
	c.metrics.ObserveCRMCall(op, err, time.Since(start))
}

func (c *instrumentedCRM) FindContact(ctx context.Context, email, phone string) (*models.CRMContact, error) {
	start := time.Now()
	contact, err := c.next.FindContact(ctx, email, phone)
	c.observe("find_contact", start, err)
	return contact, err
}

func (c *instrumentedCRM) CreateContact(ctx context.Context, contact models.CRMContact) (*models.CRMContact, error) {
	start := time.Now()
	created, err := c.next.CreateContact(ctx, contact)
	c.observe("create_contact", start, err)
	return created, err
}

func (c *instrumentedCRM) ListOpenOpportunities(ctx context.Context, contactID string) ([]models.CRMOpportunity, error) {
	start := time.Now()
	opps, err := c.next.ListOpenOpportunities(ctx, contactID)
	c.observe("list_opportunities", start, err)
	return opps, err
}

func (c *instrumentedCRM) GetOpportunity(ctx context.Context, id string) (*models.CRMOpportunity, error) {
	start := time.Now()
	opp, err := c.next.GetOpportunity(ctx, id)
	c.observe("get_opportunity", start, err)
	return opp, err
}

func (c *instrumentedCRM) CreateOpportunity(ctx context.Context, opp models.CRMOpportunity) (*models.CRMOpportunity, error) {
	start := time.Now()
	created, err := c.next.CreateOpportunity(ctx, opp)
	c.observe("create_opportunity", start, err)
	return created, err
}

func (c *instrumentedCRM) UpdateOpportunityStage(ctx context.Context, id, stageID, status string) error {
	start := time.Now()
	err := c.next.UpdateOpportunityStage(ctx, id, stageID, status)
	c.observe("update_stage", start, err)
	return err
}

func (c *instrumentedCRM) AddNote(ctx context.Context, contactID, body string) (*models.CRMNote, error) {
	start := time.Now()
	note, err := c.next.AddNote(ctx, contactID, body)
	c.observe("add_note", start, err)
	return note, err
}

func (c *instrumentedCRM) AddTags(ctx context.Context, contactID string, tags []string) error {
	start := time.Now()
	err := c.next.AddTags(ctx, contactID, tags)
	c.observe("add_tags", start, err)
	return err
}

func (c *instrumentedCRM) ListPipelines(ctx context.Context) ([]models.CRMPipeline, error) {
	start := time.Now()
	pipelines, err := c.next.ListPipelines(ctx)
	c.observe("list_pipelines", start, err)
	return pipelines, err
}
