package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ohsansi/olimpiada-api/internal/models"
	"github.com/ohsansi/olimpiada-api/internal/repository"
	"github.com/ohsansi/olimpiada-api/pkg/config"
	appErrors "github.com/ohsansi/olimpiada-api/pkg/errors"
)

type enrollmentLister interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error)
}

type closureStore interface {
	PersistClosure(ctx context.Context, params repository.ClosureParams, classify repository.ClassifyFunc) ([]repository.ClosureOutcome, error)
	SeedFinalPhase(ctx context.Context, enrollmentIDs []string) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, keys ...string)
}

type phaseReader interface {
	Get(ctx context.Context, areaID, levelID string, phase models.Phase) (*models.PhaseStatus, error)
}

type closureMetrics interface {
	RecordPhaseClosed()
}

// MissingScorePolicy decides what an absent evaluation means at closure
// time. The only policy the competition defines is an explicit zero,
// which disqualifies; modelling it as a parameter keeps the decision
// visible instead of burying it in null coalescing.
type MissingScorePolicy func(score *float64) float64

// MissingScoreZero treats a missing evaluation as a zero score.
func MissingScoreZero(score *float64) float64 {
	if score == nil {
		return 0
	}
	return *score
}

// ClosureService closes the classification phase for an area/level pair,
// partitioning enrollments into their outcomes in a single transaction.
type ClosureService struct {
	enrollments  enrollmentLister
	results      closureStore
	phases       phaseReader
	cache        cacheInvalidator
	audit        auditLogger
	metrics      closureMetrics
	logger       *zap.Logger
	cfg          config.ClassificationConfig
	missingScore MissingScorePolicy
}

// ClosureServiceOption configures the service.
type ClosureServiceOption func(*ClosureService)

// WithMissingScorePolicy overrides the default treat-missing-as-zero
// policy applied at closure time.
func WithMissingScorePolicy(policy MissingScorePolicy) ClosureServiceOption {
	return func(s *ClosureService) {
		if policy != nil {
			s.missingScore = policy
		}
	}
}

// NewClosureService constructs ClosureService.
func NewClosureService(enrollments enrollmentLister, results closureStore, phases phaseReader, cache cacheInvalidator, audit auditLogger, metrics closureMetrics, cfg config.ClassificationConfig, logger *zap.Logger, opts ...ClosureServiceOption) *ClosureService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinClassifyScore <= 0 {
		cfg.MinClassifyScore = 51
	}
	svc := &ClosureService{
		enrollments:  enrollments,
		results:      results,
		phases:       phases,
		cache:        cache,
		audit:        audit,
		metrics:      metrics,
		logger:       logger,
		cfg:          cfg,
		missingScore: MissingScoreZero,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Classify maps an aggregated score to its outcome. Scores at or above
// the threshold classify; a zero disqualifies.
func (s *ClosureService) Classify(score float64) models.EnrollmentStatus {
	switch {
	case score >= s.cfg.MinClassifyScore:
		return models.EnrollmentStatusClassified
	case score > 0:
		return models.EnrollmentStatusEliminated
	default:
		return models.EnrollmentStatusDisqualified
	}
}

// ClosePhase closes the classification phase for the pair. The whole
// closure is one transaction: the phase guard flips first, the score
// snapshot is read under its lock so no in-flight save is silently
// excluded, then every enrollment's status update and result insert
// commit together or not at all. A second call fails with AlreadyClosed.
func (s *ClosureService) ClosePhase(ctx context.Context, areaID, levelID string, actor models.Principal) (*models.Partitions, error) {
	if !actor.IsCoordinator() {
		return nil, appErrors.ErrForbidden
	}
	if areaID == "" || levelID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "area and level required")
	}

	outcomes, err := s.results.PersistClosure(ctx, repository.ClosureParams{
		AreaID:   areaID,
		LevelID:  levelID,
		Phase:    models.PhaseClassification,
		ClosedBy: actor.UserID,
	}, func(enrollment models.EnrollmentScore) repository.ClosureOutcome {
		score := s.missingScore(enrollment.Score)
		return repository.ClosureOutcome{
			EnrollmentID: enrollment.ID,
			Status:       s.Classify(score),
			FinalScore:   score,
		}
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrAlreadyClosed
		}
		if errors.Is(err, repository.ErrNoEnrollments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active enrollments for area/level")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrTransaction.Code, appErrors.ErrTransaction.Status, "phase closure rolled back")
	}

	partitions := &models.Partitions{}
	for _, outcome := range outcomes {
		switch outcome.Status {
		case models.EnrollmentStatusClassified:
			partitions.Clasificados = append(partitions.Clasificados, outcome.EnrollmentID)
		case models.EnrollmentStatusEliminated:
			partitions.NoClasificados = append(partitions.NoClasificados, outcome.EnrollmentID)
		default:
			partitions.Descalificados = append(partitions.Descalificados, outcome.EnrollmentID)
		}
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, repository.StandingsKey(areaID, levelID, models.PhaseClassification))
	}
	if s.metrics != nil {
		s.metrics.RecordPhaseClosed()
	}
	s.emitAudit(ctx, actor.UserID, areaID, levelID, partitions)
	s.logger.Info("phase closed",
		zap.String("area_id", areaID),
		zap.String("level_id", levelID),
		zap.Int("clasificados", len(partitions.Clasificados)),
		zap.Int("no_clasificados", len(partitions.NoClasificados)),
		zap.Int("descalificados", len(partitions.Descalificados)),
	)
	return partitions, nil
}

// PromoteToFinal seeds final-round result rows for every classified
// enrollment of the pair. The final round is scored from scratch, so the
// seeded rows carry a zero score with no position or medal; scores
// recorded for the final round are folded in when medals are assigned.
// Requires the classification phase to be closed first.
func (s *ClosureService) PromoteToFinal(ctx context.Context, areaID, levelID string, actor models.Principal) ([]string, error) {
	if !actor.IsCoordinator() {
		return nil, appErrors.ErrForbidden
	}
	if areaID == "" || levelID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "area and level required")
	}

	status, err := s.phases.Get(ctx, areaID, levelID, models.PhaseClassification)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read phase status")
	}
	if status.Status != models.PhaseStateClosed {
		return nil, appErrors.ErrPhaseNotClosed
	}

	classified, err := s.enrollments.List(ctx, models.EnrollmentFilter{
		AreaID:  areaID,
		LevelID: levelID,
		Status:  models.EnrollmentStatusClassified,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classified enrollments")
	}
	if len(classified) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no classified enrollments for area/level")
	}

	ids := make([]string, 0, len(classified))
	for _, enrollment := range classified {
		ids = append(ids, enrollment.ID)
	}

	if err := s.results.SeedFinalPhase(ctx, ids); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTransaction.Code, appErrors.ErrTransaction.Status, "final phase seed rolled back")
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, repository.StandingsKey(areaID, levelID, models.PhaseFinal))
	}
	s.logger.Info("final phase seeded",
		zap.String("area_id", areaID),
		zap.String("level_id", levelID),
		zap.Int("promoted", len(ids)),
	)
	return ids, nil
}

// PhaseStatus reports the guard row for the pair, defaulting to open
// when no closure has happened yet.
func (s *ClosureService) PhaseStatus(ctx context.Context, areaID, levelID string, phase models.Phase) (*models.PhaseStatus, error) {
	if areaID == "" || levelID == "" || !phase.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "area, level and a valid phase required")
	}
	status, err := s.phases.Get(ctx, areaID, levelID, phase)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read phase status")
	}
	return status, nil
}

func (s *ClosureService) emitAudit(ctx context.Context, userID, areaID, levelID string, partitions *models.Partitions) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(partitions)
	resourceID := fmt.Sprintf("%s:%s", areaID, levelID)
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionPhaseClose,
		Resource:   "fases_estado",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "closure-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
