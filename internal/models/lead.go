package models

import "time"

// PipelineStage is one step of the CRM opportunity lifecycle.
type PipelineStage string

const (
	StageNewInquiry PipelineStage = "NEW_INQUIRY"
	StageQuoteSent  PipelineStage = "QUOTE_SENT"
	StageReplied    PipelineStage = "REPLIED"
	StageBooked     PipelineStage = "BOOKED"
	// StageLost is terminal and only ever set by an operator.
	StageLost PipelineStage = "LOST"
)

// IsValid checks if the stage is a known value.
func (s PipelineStage) IsValid() bool {
	return s.Rank() >= 0
}

// Rank orders stages; LOST sorts after BOOKED. Unknown stages return -1.
func (s PipelineStage) Rank() int {
	switch s {
	case StageNewInquiry:
		return 0
	case StageQuoteSent:
		return 1
	case StageReplied:
		return 2
	case StageBooked:
		return 3
	case StageLost:
		return 4
	default:
		return -1
	}
}

// NormalizedLead is the canonical contact + booking record of one inquiry.
type NormalizedLead struct {
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	CheckIn      *string `json:"check_in"`
	CheckOut     *string `json:"check_out"`
	Guests       *int    `json:"guests"`
	BudgetBucket *string `json:"budget_bucket"`
	DedupKey     string  `json:"dedup_key"`
	TraceID      string  `json:"trace_id"`

	PropertyID  string      `json:"property_id"`
	Category    string      `json:"category,omitempty"`
	BudgetText  string      `json:"budget_text,omitempty"`
	Message     string      `json:"message,omitempty"`
	Charter     *Charter    `json:"charter,omitempty"`
	Attribution Attribution `json:"attribution"`
	ReceivedAt  time.Time   `json:"received_at"`
}

// FullName joins first and last name.
func (l NormalizedLead) FullName() string {
	switch {
	case l.FirstName == "":
		return l.LastName
	case l.LastName == "":
		return l.FirstName
	default:
		return l.FirstName + " " + l.LastName
	}
}

// HasContactChannel reports whether the CRM can identify the lead at all.
func (l NormalizedLead) HasContactChannel() bool {
	return l.Email != nil || l.Phone != nil
}

// Charter carries the fields used by non-lodging categories (yachts, cars, jets).
type Charter struct {
	Duration      string `json:"duration,omitempty"`
	DepartureTime string `json:"departure_time,omitempty"`
	Pickup        string `json:"pickup,omitempty"`
	Dropoff       string `json:"dropoff,omitempty"`
}

// IsEmpty reports whether no charter field is set.
func (c Charter) IsEmpty() bool {
	return c == Charter{}
}

// Attribution captures campaign/source tags sent with the form.
type Attribution struct {
	Source      string `json:"utm_source,omitempty"`
	Medium      string `json:"utm_medium,omitempty"`
	Campaign    string `json:"utm_campaign,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
	LandingPage string `json:"landing_page,omitempty"`
}

// SubmitResult is returned to the inquiry caller regardless of CRM outcome.
type SubmitResult struct {
	OK            bool   `json:"ok"`
	TraceID       string `json:"trace_id"`
	DedupKey      string `json:"dedup_key"`
	Warning       string `json:"warning,omitempty"`
	ContactID     string `json:"-"`
	OpportunityID string `json:"-"`
	Duplicate     bool   `json:"-"`
}
