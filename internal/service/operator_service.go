package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/villa-intake-api/internal/dto"
	"github.com/noah-isme/villa-intake-api/internal/models"
	"github.com/noah-isme/villa-intake-api/pkg/config"
	appErrors "github.com/noah-isme/villa-intake-api/pkg/errors"
)

const (
	// DefaultIdempotencyTTL is how long operator results are replayable.
	DefaultIdempotencyTTL = 24 * time.Hour

	idempotencyPrefix = "idempotency:"

	ActionAddNote   = "add_note"
	ActionAddTags   = "add_tags"
	ActionMoveStage = "move_stage"
)

// RegisterStageValidation adds the pipeline_stage tag to v.
func RegisterStageValidation(v *validator.Validate) error {
	return v.RegisterValidation("pipeline_stage", func(fl validator.FieldLevel) bool {
		return models.PipelineStage(strings.ToUpper(strings.TrimSpace(fl.Field().String()))).IsValid()
	})
}

// OperatorService performs manual CRM actions on behalf of the concierge team.
// Writes are idempotent per Idempotency-Key.
type OperatorService struct {
	crm      CRMClient
	ledger   CacheRepository
	stages   config.CRMStageIDs
	ttl      time.Duration
	validate *validator.Validate
	logger   *zap.Logger
}

// NewOperatorService constructs the service. A nil crm makes every call fail
// with ErrCRMDisabled; a nil ledger disables replay.
func NewOperatorService(crm CRMClient, ledger CacheRepository, stages config.CRMStageIDs, ttl time.Duration, validate *validator.Validate, logger *zap.Logger) *OperatorService {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	if validate == nil {
		validate = validator.New()
	}
	_ = RegisterStageValidation(validate)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OperatorService{
		crm:      crm,
		ledger:   ledger,
		stages:   stages,
		ttl:      ttl,
		validate: validate,
		logger:   logger,
	}
}

// AddNote appends a note to a contact. Without an idempotency key the
// contact id and body hash are used, so a double submit adds one note.
func (s *OperatorService) AddNote(ctx context.Context, contactID string, req dto.AddNoteRequest, idempotencyKey string) (*dto.OperatorResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid note payload")
	}
	if idempotencyKey == "" {
		sum := sha256.Sum256([]byte(req.Body))
		idempotencyKey = "note:" + contactID + ":" + hex.EncodeToString(sum[:8])
	}
	return s.once(ctx, ActionAddNote, idempotencyKey, func(ctx context.Context) (*dto.OperatorResult, error) {
		note, err := s.crm.AddNote(ctx, contactID, req.Body)
		if err != nil {
			return nil, err
		}
		return &dto.OperatorResult{Action: ActionAddNote, ContactID: contactID, NoteID: note.ID, Changed: true}, nil
	})
}

// AddTags adds tags to a contact. Tags are trimmed and deduplicated.
func (s *OperatorService) AddTags(ctx context.Context, contactID string, req dto.AddTagsRequest, idempotencyKey string) (*dto.OperatorResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tags payload")
	}
	tags := uniqueTags(req.Tags)
	return s.once(ctx, ActionAddTags, idempotencyKey, func(ctx context.Context) (*dto.OperatorResult, error) {
		if err := s.crm.AddTags(ctx, contactID, tags); err != nil {
			return nil, err
		}
		return &dto.OperatorResult{Action: ActionAddTags, ContactID: contactID, Tags: tags, Changed: len(tags) > 0}, nil
	})
}

// MoveStage sets an opportunity's stage. Operators may move in any direction;
// LOST and BOOKED also close the opportunity. Moving to the current stage is
// a no-op.
func (s *OperatorService) MoveStage(ctx context.Context, opportunityID string, req dto.MoveStageRequest, idempotencyKey string) (*dto.OperatorResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidStage.Code, appErrors.ErrInvalidStage.Status, appErrors.ErrInvalidStage.Message)
	}
	if s.crm == nil {
		return nil, appErrors.ErrCRMDisabled
	}
	stage := models.PipelineStage(strings.ToUpper(strings.TrimSpace(req.Stage)))
	stageID, status := s.target(stage)
	if stageID == "" && stage != models.StageLost {
		return nil, appErrors.Clone(appErrors.ErrInvalidStage, fmt.Sprintf("no CRM stage id configured for %s", stage))
	}

	return s.once(ctx, ActionMoveStage, idempotencyKey, func(ctx context.Context) (*dto.OperatorResult, error) {
		result := &dto.OperatorResult{Action: ActionMoveStage, OpportunityID: opportunityID, Stage: string(stage)}

		current, err := s.crm.GetOpportunity(ctx, opportunityID)
		if err != nil {
			return nil, err
		}
		result.ContactID = current.ContactID
		if current.StageID == stageID && current.Status == status {
			return result, nil
		}
		if stage == models.StageLost && current.Status == status {
			return result, nil
		}

		if err := s.crm.UpdateOpportunityStage(ctx, opportunityID, stageID, status); err != nil {
			return nil, err
		}
		s.logger.Info("opportunity stage moved",
			zap.String("opportunity_id", opportunityID),
			zap.String("from_stage_id", current.StageID),
			zap.String("to_stage", string(stage)),
		)
		result.Changed = true
		return result, nil
	})
}

// ListPipelines returns the CRM pipelines with their stage ids, used to
// bootstrap the CRM_STAGE_* settings.
func (s *OperatorService) ListPipelines(ctx context.Context) ([]models.CRMPipeline, error) {
	if s.crm == nil {
		return nil, appErrors.ErrCRMDisabled
	}
	pipelines, err := s.crm.ListPipelines(ctx)
	if err != nil {
		return nil, crmError(err)
	}
	if pipelines == nil {
		pipelines = []models.CRMPipeline{}
	}
	return pipelines, nil
}

// target maps a stage to the CRM stage id and opportunity status to write.
func (s *OperatorService) target(stage models.PipelineStage) (string, string) {
	switch stage {
	case models.StageNewInquiry:
		return s.stages.NewInquiry, models.OpportunityStatusOpen
	case models.StageQuoteSent:
		return s.stages.QuoteSent, models.OpportunityStatusOpen
	case models.StageReplied:
		return s.stages.Replied, models.OpportunityStatusOpen
	case models.StageBooked:
		return s.stages.Booked, models.OpportunityStatusWon
	case models.StageLost:
		return "", models.OpportunityStatusLost
	default:
		return "", ""
	}
}

// once runs fn unless a result for key is already recorded, in which case
// the stored result is replayed.
func (s *OperatorService) once(ctx context.Context, action, key string, fn func(context.Context) (*dto.OperatorResult, error)) (*dto.OperatorResult, error) {
	if s.crm == nil {
		return nil, appErrors.ErrCRMDisabled
	}
	ledgerKey := ""
	if key != "" && s.ledger != nil {
		ledgerKey = idempotencyPrefix + action + ":" + key
		var stored dto.OperatorResult
		err := s.ledger.Get(ctx, ledgerKey, &stored)
		switch {
		case err == nil:
			stored.Replayed = true
			return &stored, nil
		case !errors.Is(err, appErrors.ErrCacheMiss):
			s.logger.Warn("idempotency ledger read failed", zap.String("key", ledgerKey), zap.Error(err))
		}
	}

	result, err := fn(ctx)
	if err != nil {
		return nil, crmError(err)
	}

	if ledgerKey != "" {
		if err := s.ledger.Set(ctx, ledgerKey, result, s.ttl); err != nil {
			s.logger.Warn("idempotency ledger write failed", zap.String("key", ledgerKey), zap.Error(err))
		}
	}
	return result, nil
}

// crmError keeps typed CRM errors and maps anything else to CRM_UNAVAILABLE.
func crmError(err error) error {
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	return appErrors.Wrap(err, appErrors.ErrCRMUnavailable.Code, appErrors.ErrCRMUnavailable.Status, appErrors.ErrCRMUnavailable.Message)
}

func uniqueTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[strings.ToLower(tag)]; ok {
			continue
		}
		seen[strings.ToLower(tag)] = struct{}{}
		out = append(out, tag)
	}
	return out
}
