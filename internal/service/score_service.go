package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ohsansi/olimpiada-api/internal/models"
	"github.com/ohsansi/olimpiada-api/internal/repository"
	appErrors "github.com/ohsansi/olimpiada-api/pkg/errors"
)

type evaluationStore interface {
	Save(ctx context.Context, params repository.SaveScoreParams) (*models.Evaluation, bool, error)
	FindByID(ctx context.Context, id string) (*models.Evaluation, error)
	List(ctx context.Context, filter models.EvaluationFilter) ([]models.Evaluation, error)
}

type changeLogReader interface {
	ListByRecord(ctx context.Context, tableName, recordID string) ([]models.ChangeLogEntry, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type scoreMetrics interface {
	RecordScoreSaved(updated bool)
}

// SaveScoreRequest is one evaluator score entry. EvaluatorID defaults to
// the acting principal; a coordinator applying an approved change request
// sets it to the original evaluator. resolve carries the approving
// change request's terminal transition so it commits atomically with the
// score write; only the workflow sets it.
type SaveScoreRequest struct {
	EnrollmentID string       `json:"enrollment_id" validate:"required"`
	EvaluatorID  string       `json:"evaluator_id"`
	Phase        models.Phase `json:"phase"`
	Score        float64      `json:"score"`
	Observations string       `json:"observations"`

	resolve *repository.ResolveParams
}

// ScoreService registers evaluator scores with a transactional change
// log. It never touches enrollment status; that belongs to phase closure.
type ScoreService struct {
	evaluations evaluationStore
	changelog   changeLogReader
	audit       auditLogger
	metrics     scoreMetrics
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewScoreService constructs ScoreService.
func NewScoreService(evaluations evaluationStore, changelog changeLogReader, audit auditLogger, metrics scoreMetrics, validate *validator.Validate, logger *zap.Logger) *ScoreService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreService{
		evaluations: evaluations,
		changelog:   changelog,
		audit:       audit,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// SaveScore validates and persists one score. Bounds are checked before
// any write; the repository serializes same-pair saves and appends the
// change-log entry in the same transaction as the update.
func (s *ScoreService) SaveScore(ctx context.Context, req SaveScoreRequest, actor models.Principal) (*models.Evaluation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	if !models.ValidScore(req.Score) {
		return nil, appErrors.ErrInvalidScore
	}
	phase := req.Phase
	if phase == "" {
		phase = models.PhaseClassification
	}
	if !phase.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown phase")
	}
	evaluatorID := req.EvaluatorID
	if evaluatorID == "" {
		evaluatorID = actor.UserID
	}
	if evaluatorID != actor.UserID && !actor.IsCoordinator() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "evaluators may only record their own scores")
	}

	evaluation, updated, err := s.evaluations.Save(ctx, repository.SaveScoreParams{
		EnrollmentID: req.EnrollmentID,
		EvaluatorID:  evaluatorID,
		Score:        req.Score,
		Observations: req.Observations,
		ActorID:      actor.UserID,
		Phase:        phase,
		Resolve:      req.resolve,
	})
	if err != nil {
		if errors.Is(err, repository.ErrPhaseClosed) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyClosed, "phase closed, scores can no longer change")
		}
		if errors.Is(err, repository.ErrEnrollmentNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		if errors.Is(err, repository.ErrRequestResolved) {
			return nil, appErrors.ErrAlreadyResolved
		}
		return nil, appErrors.Wrap(err, appErrors.ErrTransaction.Code, appErrors.ErrTransaction.Status, "score save rolled back")
	}

	if s.metrics != nil {
		s.metrics.RecordScoreSaved(updated)
	}
	s.emitAudit(ctx, actor.UserID, evaluation, updated)
	s.logger.Info("score saved",
		zap.String("enrollment_id", evaluation.EnrollmentID),
		zap.String("evaluator_id", evaluation.EvaluatorID),
		zap.Float64("score", evaluation.Score),
		zap.Bool("updated", updated),
	)
	return evaluation, nil
}

// ListScores returns evaluations matching the filter.
func (s *ScoreService) ListScores(ctx context.Context, filter models.EvaluationFilter) ([]models.Evaluation, error) {
	evaluations, err := s.evaluations.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evaluations")
	}
	return evaluations, nil
}

// History returns the change-log chain for one evaluation, oldest first.
func (s *ScoreService) History(ctx context.Context, evaluationID string) ([]models.ChangeLogEntry, error) {
	if _, err := s.evaluations.FindByID(ctx, evaluationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation")
	}
	entries, err := s.changelog.ListByRecord(ctx, models.TableEvaluations, evaluationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load change log")
	}
	return entries, nil
}

func (s *ScoreService) emitAudit(ctx context.Context, userID string, evaluation *models.Evaluation, updated bool) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"enrollment_id": evaluation.EnrollmentID,
		"evaluator_id":  evaluation.EvaluatorID,
		"score":         evaluation.Score,
		"updated":       updated,
	})
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionScoreSave,
		Resource:   models.TableEvaluations,
		ResourceID: &evaluation.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "score-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
