package models

import (
	"strings"
	"time"
)

// Opportunity statuses used by the CRM.
const (
	OpportunityStatusOpen = "open"
	OpportunityStatusWon  = "won"
	OpportunityStatusLost = "lost"
)

// CRMContact is the subset of a CRM contact this service reads or writes.
type CRMContact struct {
	ID        string   `json:"id,omitempty"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	Email     string   `json:"email,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Source    string   `json:"source,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// CRMOpportunity is a deal record inside a pipeline.
type CRMOpportunity struct {
	ID         string    `json:"id,omitempty"`
	Name       string    `json:"name,omitempty"`
	ContactID  string    `json:"contactId,omitempty"`
	PipelineID string    `json:"pipelineId,omitempty"`
	StageID    string    `json:"pipelineStageId,omitempty"`
	Status     string    `json:"status,omitempty"`
	Source     string    `json:"source,omitempty"`
	DedupKey   string    `json:"-"`
	CreatedAt  time.Time `json:"-"`
}

// CRMNote is a free-text note attached to a contact.
type CRMNote struct {
	ID        string `json:"id,omitempty"`
	ContactID string `json:"contactId,omitempty"`
	Body      string `json:"body"`
}

// CRMPipeline describes a pipeline and its ordered stages.
type CRMPipeline struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Stages []CRMStage `json:"stages"`
}

// CRMStage is one column of a CRM pipeline.
type CRMStage struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// OpportunityTitle renders the opportunity name. The dedup key is embedded in
// brackets so a later search can recognise the same inquiry.
func OpportunityTitle(contactName, propertyID, dedupKey string) string {
	title := strings.TrimSpace(contactName)
	if title == "" {
		title = "Website inquiry"
	}
	if propertyID != "" {
		title += " · " + propertyID
	}
	return title + " [" + dedupKey + "]"
}

// DedupKeyFromTitle extracts the bracketed dedup key written by
// OpportunityTitle, or returns "".
func DedupKeyFromTitle(title string) string {
	end := strings.LastIndexByte(title, ']')
	if end < 0 || end != len(title)-1 {
		return ""
	}
	start := strings.LastIndexByte(title[:end], '[')
	if start < 0 {
		return ""
	}
	return title[start+1 : end]
}
