package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ohsansi/olimpiada-api/internal/models"
	"github.com/ohsansi/olimpiada-api/internal/repository"
	"github.com/ohsansi/olimpiada-api/pkg/config"
	appErrors "github.com/ohsansi/olimpiada-api/pkg/errors"
)

type standingsStore interface {
	ListStandings(ctx context.Context, areaID, levelID string, phase models.Phase) ([]models.StandingRow, error)
	RefreshScores(ctx context.Context, areaID, levelID string, phase models.Phase) error
	UpdatePlacements(ctx context.Context, phase models.Phase, placements []repository.Placement) error
}

type enrolledOrderReader interface {
	EnrolledOrder(ctx context.Context, areaID, levelID string) ([]string, error)
}

type standingsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string)
}

type medalMetrics interface {
	RecordMedalAssignment()
}

// MedalService ranks closed results within an area/level and labels them
// with medal tiers. It never re-validates classification thresholds.
type MedalService struct {
	results     standingsStore
	enrollments enrolledOrderReader
	cache       standingsCache
	audit       auditLogger
	metrics     medalMetrics
	logger      *zap.Logger
	cfg         config.MedalConfig
	standings   config.StandingsConfig
}

// NewMedalService constructs MedalService.
func NewMedalService(results standingsStore, enrollments enrolledOrderReader, cache standingsCache, audit auditLogger, metrics medalMetrics, cfg config.MedalConfig, standings config.StandingsConfig, logger *zap.Logger) *MedalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TieBreak == "" {
		cfg.TieBreak = config.TieBreakEnrollmentID
	}
	return &MedalService{
		results:     results,
		enrollments: enrollments,
		cache:       cache,
		audit:       audit,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		standings:   standings,
	}
}

// Rank orders rows by final score descending, breaking ties with the
// configured secondary key so placement is deterministic. enrolledOrder
// maps enrollment id to registration order; it is only consulted for the
// enrolled_order tie-break.
func (s *MedalService) Rank(rows []models.StandingRow, enrolledOrder map[string]int) []models.StandingRow {
	ranked := make([]models.StandingRow, len(rows))
	copy(ranked, rows)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].FinalScore != ranked[j].FinalScore {
			return ranked[i].FinalScore > ranked[j].FinalScore
		}
		if s.cfg.TieBreak == config.TieBreakEnrolledOrder && enrolledOrder != nil {
			return enrolledOrder[ranked[i].EnrollmentID] < enrolledOrder[ranked[j].EnrollmentID]
		}
		return ranked[i].EnrollmentID < ranked[j].EnrollmentID
	})
	return ranked
}

// MedalFor maps a 1-based rank and score to a medal tier. Top three
// ranks take oro/plata/bronce; beyond that a score at or above the honor
// mention threshold earns mencion_honor.
func (s *MedalService) MedalFor(rank int, score float64) models.MedalTier {
	switch rank {
	case 1:
		return models.MedalGold
	case 2:
		return models.MedalSilver
	case 3:
		return models.MedalBronze
	}
	if s.cfg.HonorMentionMinScore > 0 && score >= s.cfg.HonorMentionMinScore {
		return models.MedalHonor
	}
	return models.MedalNone
}

// AssignMedals ranks the phase's results and persists positions and
// medals in one transaction. The phase must have been closed (or seeded
// for the final round) first.
func (s *MedalService) AssignMedals(ctx context.Context, areaID, levelID string, phase models.Phase, actor models.Principal) ([]models.StandingRow, error) {
	if !actor.IsCoordinator() {
		return nil, appErrors.ErrForbidden
	}
	if !phase.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown phase")
	}

	// Final-round rows are seeded with zero scores at promotion and
	// scored afterwards, so the recorded evaluations are folded in
	// before ranking. Classification scores were frozen at closure.
	if phase == models.PhaseFinal {
		if err := s.results.RefreshScores(ctx, areaID, levelID, phase); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to refresh final scores")
		}
	}

	rows, err := s.results.ListStandings(ctx, areaID, levelID, phase)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read results")
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPhaseNotClosed, "no results for area/level, close the phase first")
	}

	var enrolledOrder map[string]int
	if s.cfg.TieBreak == config.TieBreakEnrolledOrder {
		ids, err := s.enrollments.EnrolledOrder(ctx, areaID, levelID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read enrollment order")
		}
		enrolledOrder = make(map[string]int, len(ids))
		for i, id := range ids {
			enrolledOrder[id] = i
		}
	}

	ranked := s.Rank(rows, enrolledOrder)
	placements := make([]repository.Placement, 0, len(ranked))
	for i := range ranked {
		position := i + 1
		medal := s.MedalFor(position, ranked[i].FinalScore)
		ranked[i].Position = &position
		ranked[i].Medal = medal
		placements = append(placements, repository.Placement{
			EnrollmentID: ranked[i].EnrollmentID,
			Position:     position,
			Medal:        medal,
		})
	}

	if err := s.results.UpdatePlacements(ctx, phase, placements); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTransaction.Code, appErrors.ErrTransaction.Status, "medal assignment rolled back")
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, repository.StandingsKey(areaID, levelID, phase))
	}
	if s.metrics != nil {
		s.metrics.RecordMedalAssignment()
	}
	s.emitAudit(ctx, actor.UserID, areaID, levelID, phase, ranked)
	s.logger.Info("medals assigned",
		zap.String("area_id", areaID),
		zap.String("level_id", levelID),
		zap.String("phase", string(phase)),
		zap.Int("rows", len(ranked)),
	)
	return ranked, nil
}

// Standings returns the ranked results for an area/level/phase, serving
// from cache when possible. This is the read consumed by the medallero
// and certificate collaborators.
func (s *MedalService) Standings(ctx context.Context, areaID, levelID string, phase models.Phase) ([]models.StandingRow, error) {
	if !phase.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown phase")
	}
	key := repository.StandingsKey(areaID, levelID, phase)
	if s.cache != nil {
		var cached []models.StandingRow
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}
	rows, err := s.results.ListStandings(ctx, areaID, levelID, phase)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read standings")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, rows, s.standings.CacheTTL); err != nil {
			s.logger.Warn("failed to cache standings", zap.Error(err))
		}
	}
	return rows, nil
}

func (s *MedalService) emitAudit(ctx context.Context, userID, areaID, levelID string, phase models.Phase, ranked []models.StandingRow) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"phase": phase,
		"rows":  len(ranked),
	})
	resourceID := fmt.Sprintf("%s:%s:%s", areaID, levelID, phase)
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionMedalAssign,
		Resource:   "resultados_finales",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "medal-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
