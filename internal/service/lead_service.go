package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/villa-intake-api/internal/dto"
	"github.com/noah-isme/villa-intake-api/internal/models"
	appErrors "github.com/noah-isme/villa-intake-api/pkg/errors"
	"github.com/noah-isme/villa-intake-api/pkg/jobs"
	"github.com/noah-isme/villa-intake-api/pkg/logger"
	"github.com/noah-isme/villa-intake-api/pkg/normalize"
	"github.com/noah-isme/villa-intake-api/pkg/tracekey"
)

// Warnings returned with a successful submission whose CRM sync did not happen.
const (
	WarningCRMUnavailable = "Your inquiry was received but could not be forwarded to our concierge team right away. We will follow up, or you can message us directly."
	WarningCRMDisabled    = "Your inquiry was received. Our concierge team will reach out; you can also message us directly."
	WarningNoContact      = "Your inquiry was received without a valid email or phone number. Please message us directly so we can reach you."
)

const (
	// LeadSyncJob is the job type for deferred CRM syncs.
	LeadSyncJob = "lead_sync"

	defaultCRMTimeout  = 8 * time.Second
	defaultDedupWindow = 7 * 24 * time.Hour
	leadDedupPrefix    = "lead:dedup:"
	leadSource         = "website"
	maxTagValueBytes   = 48
)

// LeadOptions tunes the intake pipeline.
type LeadOptions struct {
	DefaultCountryCode string
	DedupWindow        time.Duration
	CRMTimeout         time.Duration
	// NewInquiryStageID is the CRM stage new opportunities open in. Empty
	// skips opportunity creation.
	NewInquiryStageID string
}

// RetryEnqueuer accepts deferred CRM syncs.
type RetryEnqueuer interface {
	TryEnqueue(job jobs.Job) (string, error)
}

// SyncOutcome describes what a CRM sync did.
type SyncOutcome struct {
	ContactID     string
	OpportunityID string
	Duplicate     bool
}

// leadSyncRecord tracks the CRM writes done for a dedup key. A record that is
// not Complete belongs to an interrupted sync and is resumed, not replayed.
type leadSyncRecord struct {
	ContactID     string `json:"contact_id"`
	OpportunityID string `json:"opportunity_id"`
	NoteAdded     bool   `json:"note_added,omitempty"`
	TagsAdded     bool   `json:"tags_added,omitempty"`
	Complete      bool   `json:"complete,omitempty"`
}

// LeadService normalizes inquiries and drives their CRM side effects. CRM
// trouble never fails a well-formed submission.
type LeadService struct {
	crm      CRMClient
	cache    CacheRepository
	traces   *tracekey.Generator
	metrics  *MetricsService
	validate *validator.Validate
	opts     LeadOptions
	retry    RetryEnqueuer
	logger   *zap.Logger
	now      func() time.Time
}

// NewLeadService constructs the pipeline. A nil crm means the integration is
// not configured; a nil cache disables the dedup fast path.
func NewLeadService(crm CRMClient, cache CacheRepository, traces *tracekey.Generator, metrics *MetricsService, validate *validator.Validate, opts LeadOptions, logger *zap.Logger) *LeadService {
	if traces == nil {
		traces = tracekey.NewGenerator()
	}
	if validate == nil {
		validate = validator.New()
	}
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = defaultDedupWindow
	}
	if opts.CRMTimeout <= 0 {
		opts.CRMTimeout = defaultCRMTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadService{
		crm:      crm,
		cache:    cache,
		traces:   traces,
		metrics:  metrics,
		validate: validate,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the clock used for ReceivedAt and the dedup window.
func (s *LeadService) WithClock(now func() time.Time) *LeadService {
	if now != nil {
		s.now = now
	}
	return s
}

// UseRetryQueue enables deferred retries of failed CRM syncs.
func (s *LeadService) UseRetryQueue(q RetryEnqueuer) {
	s.retry = q
}

// Submit runs one inquiry through the pipeline. Only a malformed payload
// returns an error; every other outcome is OK, with Warning set when the CRM
// was not updated. The trace id is always populated.
func (s *LeadService) Submit(ctx context.Context, req dto.InquiryRequest) (models.SubmitResult, error) {
	traceID := s.traces.TraceID()
	log := logger.Trace(s.logger, traceID)
	result := models.SubmitResult{TraceID: traceID}

	if err := s.validate.Struct(req); err != nil {
		log.Info("inquiry rejected", zap.Error(err))
		return result, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid inquiry payload")
	}

	lead := s.Normalize(req, traceID)
	result.OK = true
	result.DedupKey = lead.DedupKey
	log = log.With(zap.String("property", lead.PropertyID), zap.String("dedup_key", lead.DedupKey))
	log.Info("inquiry received",
		zap.Bool("has_email", lead.Email != nil),
		zap.Bool("has_phone", lead.Phone != nil),
		zap.String("category", lead.Category),
	)

	switch {
	case !lead.HasContactChannel():
		log.Warn("inquiry has no usable contact channel")
		result.Warning = WarningNoContact
		s.metrics.RecordLeadSubmission(OutcomeWarning)
		return result, nil
	case s.crm == nil:
		log.Warn("crm not configured, inquiry not synced")
		result.Warning = WarningCRMDisabled
		s.metrics.RecordLeadSubmission(OutcomeWarning)
		return result, nil
	}

	// CRM writes outlive a disconnecting client but not the CRM timeout.
	crmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.CRMTimeout)
	defer cancel()

	outcome, err := s.Sync(crmCtx, lead)
	if err != nil {
		log.Warn("crm sync failed", zap.Error(err))
		result.Warning = WarningCRMUnavailable
		s.metrics.RecordLeadSubmission(OutcomeWarning)
		s.scheduleRetry(log, lead)
		return result, nil
	}

	result.ContactID = outcome.ContactID
	result.OpportunityID = outcome.OpportunityID
	result.Duplicate = outcome.Duplicate
	if outcome.Duplicate {
		s.metrics.RecordLeadSubmission(OutcomeReused)
	} else {
		s.metrics.RecordLeadSubmission(OutcomeSynced)
	}
	log.Info("inquiry synced",
		zap.String("contact_id", outcome.ContactID),
		zap.String("opportunity_id", outcome.OpportunityID),
		zap.Bool("duplicate", outcome.Duplicate),
	)
	return result, nil
}

// Normalize maps the raw form onto a NormalizedLead. It never fails; fields
// that cannot be normalized are left nil or empty.
func (s *LeadService) Normalize(req dto.InquiryRequest, traceID string) models.NormalizedLead {
	lead := models.NormalizedLead{
		TraceID:    traceID,
		PropertyID: strings.TrimSpace(req.PropertyID),
		Category:   strings.ToLower(strings.TrimSpace(req.Category)),
		BudgetText: strings.TrimSpace(req.Budget),
		Message:    strings.TrimSpace(req.Message),
		ReceivedAt: s.now().UTC(),
	}

	if email, ok := normalize.Email(req.Email); ok {
		lead.Email = &email
	}
	if phone, ok := normalize.Phone(req.Phone, s.opts.DefaultCountryCode); ok {
		lead.Phone = &phone
	}

	first, _ := normalize.Text(req.FirstName)
	last, _ := normalize.Text(req.LastName)
	if first == "" && last == "" {
		first, last = normalize.Name(req.Name)
	}
	lead.FirstName, lead.LastName = first, last

	if checkIn, ok := normalize.Date(req.CheckIn); ok {
		lead.CheckIn = &checkIn
	}
	if checkOut, ok := normalize.Date(req.CheckOut); ok {
		lead.CheckOut = &checkOut
	}
	if guests, ok := normalize.Guests(req.Guests); ok {
		lead.Guests = &guests
	}
	if bucket, ok := normalize.BudgetBucket(req.Budget); ok {
		lead.BudgetBucket = &bucket
	}

	charter := models.Charter{
		Duration:      strings.TrimSpace(req.Duration),
		DepartureTime: strings.TrimSpace(req.DepartureTime),
		Pickup:        strings.TrimSpace(req.Pickup),
		Dropoff:       strings.TrimSpace(req.Dropoff),
	}
	if !charter.IsEmpty() {
		lead.Charter = &charter
	}

	lead.Attribution = models.Attribution{
		Source:      strings.TrimSpace(req.UTMSource),
		Medium:      strings.TrimSpace(req.UTMMedium),
		Campaign:    strings.TrimSpace(req.UTMCampaign),
		Referrer:    strings.TrimSpace(req.Referrer),
		LandingPage: strings.TrimSpace(req.LandingPage),
	}

	identity := ""
	switch {
	case lead.Email != nil:
		identity = *lead.Email
	case lead.Phone != nil:
		identity = *lead.Phone
	}
	checkIn := ""
	if lead.CheckIn != nil {
		checkIn = *lead.CheckIn
	}
	lead.DedupKey = tracekey.DedupKey(identity, lead.PropertyID, checkIn)
	return lead
}

// Sync finds or creates the contact and opportunity for lead. Repeating a
// sync for the same dedup key inside the dedup window reuses the existing
// records and never moves their stage.
//
// The note and tags are written before the opportunity, so an opportunity
// carrying the dedup key implies the inquiry details reached the CRM. A sync
// interrupted before that point is resumed by the next call, skipping the
// steps its progress record marks as done.
func (s *LeadService) Sync(ctx context.Context, lead models.NormalizedLead) (SyncOutcome, error) {
	if s.crm == nil {
		return SyncOutcome{}, appErrors.ErrCRMDisabled
	}
	previous, found := s.lookupSynced(ctx, lead.DedupKey)
	if found && previous.Complete {
		return SyncOutcome{ContactID: previous.ContactID, OpportunityID: previous.OpportunityID, Duplicate: true}, nil
	}

	contact, err := s.findOrCreateContact(ctx, lead)
	if err != nil {
		return SyncOutcome{}, err
	}
	outcome := SyncOutcome{ContactID: contact.ID}
	progress := leadSyncRecord{ContactID: contact.ID}
	if found && previous.ContactID == contact.ID {
		progress.NoteAdded = previous.NoteAdded
		progress.TagsAdded = previous.TagsAdded
	}

	withOpportunity := s.opts.NewInquiryStageID != ""
	if withOpportunity {
		existing, err := s.findOpportunity(ctx, contact.ID, lead)
		if err != nil {
			return outcome, err
		}
		if existing != nil {
			outcome.OpportunityID = existing.ID
			outcome.Duplicate = true
			progress.OpportunityID = existing.ID
			progress.Complete = true
			s.rememberSynced(ctx, lead.DedupKey, progress)
			return outcome, nil
		}
	} else {
		logger.Trace(s.logger, lead.TraceID).Warn("no NEW_INQUIRY stage configured, skipping opportunity")
	}

	if !progress.NoteAdded {
		if _, err := s.crm.AddNote(ctx, contact.ID, InquiryNote(lead)); err != nil {
			return outcome, fmt.Errorf("add inquiry note: %w", err)
		}
		progress.NoteAdded = true
		s.rememberSynced(ctx, lead.DedupKey, progress)
	}
	if !progress.TagsAdded {
		if err := s.crm.AddTags(ctx, contact.ID, InquiryTags(lead)); err != nil {
			return outcome, fmt.Errorf("add inquiry tags: %w", err)
		}
		progress.TagsAdded = true
		s.rememberSynced(ctx, lead.DedupKey, progress)
	}

	if withOpportunity {
		opp, err := s.createOpportunity(ctx, contact.ID, lead)
		if err != nil {
			return outcome, err
		}
		outcome.OpportunityID = opp.ID
		progress.OpportunityID = opp.ID
	}

	progress.Complete = true
	s.rememberSynced(ctx, lead.DedupKey, progress)
	return outcome, nil
}

// HandleRetryJob is the jobs.Handler for deferred syncs.
func (s *LeadService) HandleRetryJob(ctx context.Context, job jobs.Job) error {
	lead, ok := job.Payload.(models.NormalizedLead)
	if !ok {
		s.logger.Error("unexpected retry payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	crmCtx, cancel := context.WithTimeout(ctx, s.opts.CRMTimeout)
	defer cancel()

	outcome, err := s.Sync(crmCtx, lead)
	if err != nil {
		return err
	}
	logger.Trace(s.logger, lead.TraceID).Info("deferred crm sync succeeded",
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.Attempt),
		zap.String("contact_id", outcome.ContactID),
		zap.String("opportunity_id", outcome.OpportunityID),
	)
	return nil
}

func (s *LeadService) scheduleRetry(log *zap.Logger, lead models.NormalizedLead) {
	if s.retry == nil {
		return
	}
	id, err := s.retry.TryEnqueue(jobs.Job{Type: LeadSyncJob, Payload: lead})
	if err != nil {
		log.Error("crm retry not scheduled", zap.Error(err))
		return
	}
	log.Info("crm retry scheduled", zap.String("job_id", id))
}

func (s *LeadService) findOrCreateContact(ctx context.Context, lead models.NormalizedLead) (*models.CRMContact, error) {
	email, phone := deref(lead.Email), deref(lead.Phone)
	contact, err := s.crm.FindContact(ctx, email, phone)
	if err != nil {
		return nil, fmt.Errorf("find contact: %w", err)
	}
	if contact != nil {
		return contact, nil
	}
	contact, err = s.crm.CreateContact(ctx, models.CRMContact{
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
		Email:     email,
		Phone:     phone,
		Source:    leadSource,
	})
	if err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	return contact, nil
}

// findOpportunity returns the open opportunity carrying lead's dedup key
// inside the dedup window, or nil.
func (s *LeadService) findOpportunity(ctx context.Context, contactID string, lead models.NormalizedLead) (*models.CRMOpportunity, error) {
	open, err := s.crm.ListOpenOpportunities(ctx, contactID)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	cutoff := s.now().Add(-s.opts.DedupWindow)
	for i := range open {
		opp := open[i]
		if opp.DedupKey != lead.DedupKey {
			continue
		}
		if !opp.CreatedAt.IsZero() && opp.CreatedAt.Before(cutoff) {
			continue
		}
		return &opp, nil
	}
	return nil, nil
}

func (s *LeadService) createOpportunity(ctx context.Context, contactID string, lead models.NormalizedLead) (*models.CRMOpportunity, error) {
	created, err := s.crm.CreateOpportunity(ctx, models.CRMOpportunity{
		Name:      models.OpportunityTitle(lead.FullName(), lead.PropertyID, lead.DedupKey),
		ContactID: contactID,
		StageID:   s.opts.NewInquiryStageID,
		Source:    leadSource,
	})
	if err != nil {
		return nil, fmt.Errorf("create opportunity: %w", err)
	}
	return created, nil
}

func (s *LeadService) lookupSynced(ctx context.Context, dedupKey string) (leadSyncRecord, bool) {
	if s.cache == nil {
		return leadSyncRecord{}, false
	}
	var record leadSyncRecord
	if err := s.cache.Get(ctx, leadDedupPrefix+dedupKey, &record); err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("lead dedup lookup failed", zap.Error(err))
		}
		return leadSyncRecord{}, false
	}
	return record, record.ContactID != ""
}

func (s *LeadService) rememberSynced(ctx context.Context, dedupKey string, record leadSyncRecord) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, leadDedupPrefix+dedupKey, record, s.opts.DedupWindow); err != nil {
		s.logger.Warn("lead dedup record not stored", zap.Error(err))
	}
}

// InquiryNote renders the CRM note for a new inquiry.
func InquiryNote(lead models.NormalizedLead) string {
	var b strings.Builder
	b.WriteString("New website inquiry")
	if lead.PropertyID != "" {
		b.WriteString(" for " + lead.PropertyID)
	}
	if lead.Category != "" {
		b.WriteString(" (" + lead.Category + ")")
	}
	b.WriteString("\nTrace: " + lead.TraceID)

	if lead.CheckIn != nil || lead.CheckOut != nil {
		b.WriteString("\nDates: " + orDash(lead.CheckIn) + " to " + orDash(lead.CheckOut))
	}
	if lead.Guests != nil {
		b.WriteString("\nGuests: " + strconv.Itoa(*lead.Guests))
	}
	if lead.BudgetBucket != nil || lead.BudgetText != "" {
		b.WriteString("\nBudget: " + orDash(lead.BudgetBucket))
		if lead.BudgetText != "" {
			b.WriteString(" (" + strconv.Quote(lead.BudgetText) + ")")
		}
	}
	if c := lead.Charter; c != nil {
		var parts []string
		for _, kv := range [][2]string{{"duration", c.Duration}, {"departure", c.DepartureTime}, {"pickup", c.Pickup}, {"dropoff", c.Dropoff}} {
			if kv[1] != "" {
				parts = append(parts, kv[0]+": "+kv[1])
			}
		}
		b.WriteString("\nCharter: " + strings.Join(parts, ", "))
	}
	if lead.Message != "" {
		b.WriteString("\n\n" + lead.Message)
	}

	a := lead.Attribution
	var attribution []string
	for _, kv := range [][2]string{{"utm_source", a.Source}, {"utm_medium", a.Medium}, {"utm_campaign", a.Campaign}, {"referrer", a.Referrer}, {"landing_page", a.LandingPage}} {
		if kv[1] != "" {
			attribution = append(attribution, kv[0]+"="+kv[1])
		}
	}
	if len(attribution) > 0 {
		b.WriteString("\n\nAttribution: " + strings.Join(attribution, " "))
	}
	return b.String()
}

// InquiryTags derives contact tags from the lead.
func InquiryTags(lead models.NormalizedLead) []string {
	tags := []string{"website-inquiry"}
	add := func(prefix, value string) {
		value = tagValue(value)
		if value != "" {
			tags = append(tags, prefix+value)
		}
	}
	add("property:", lead.PropertyID)
	add("category:", lead.Category)
	if lead.BudgetBucket != nil {
		add("budget:", *lead.BudgetBucket)
	}
	add("utm:", lead.Attribution.Source)
	add("campaign:", lead.Attribution.Campaign)
	return tags
}

func tagValue(v string) string {
	v = strings.ToLower(strings.Join(strings.Fields(v), "-"))
	if len(v) <= maxTagValueBytes {
		return v
	}
	v = v[:maxTagValueBytes]
	for len(v) > 0 {
		r, size := utf8.DecodeLastRuneInString(v)
		if r != utf8.RuneError || size != 1 {
			break
		}
		v = v[:len(v)-1]
	}
	return v
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func orDash(p *string) string {
	if p == nil || *p == "" {
		return "-"
	}
	return *p
}
