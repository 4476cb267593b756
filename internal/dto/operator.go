package dto

// AddNoteRequest appends a note to a CRM contact.
type AddNoteRequest struct {
	Body string `json:"body" validate:"required,max=10000"`
}

// AddTagsRequest adds tags to a CRM contact.
type AddTagsRequest struct {
	Tags []string `json:"tags" validate:"required,min=1,max=20,dive,required,max=64"`
}

// MoveStageRequest moves an opportunity to another pipeline stage.
type MoveStageRequest struct {
	Stage string `json:"stage" validate:"required,pipeline_stage"`
}

// OperatorResult is the stored outcome of an operator write, replayed for
// repeated idempotency keys.
type OperatorResult struct {
	Action        string   `json:"action"`
	ContactID     string   `json:"contact_id,omitempty"`
	OpportunityID string   `json:"opportunity_id,omitempty"`
	NoteID        string   `json:"note_id,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Stage         string   `json:"stage,omitempty"`
	Changed       bool     `json:"changed"`
	Replayed      bool     `json:"replayed"`
}
