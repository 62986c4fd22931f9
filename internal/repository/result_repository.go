package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ohsansi/olimpiada-api/internal/models"
)

// ErrNoEnrollments is returned when a closure finds no active
// enrollments for the pair; the guard flip rolls back with it.
var ErrNoEnrollments = errors.New("no active enrollments for area/level")

// ClosureOutcome is one enrollment's computed classification.
type ClosureOutcome struct {
	EnrollmentID string
	Status       models.EnrollmentStatus
	FinalScore   float64
}

// ClassifyFunc maps one enrollment's aggregated score snapshot to its
// closure outcome. It runs inside the closure transaction.
type ClassifyFunc func(enrollment models.EnrollmentScore) ClosureOutcome

// ClosureParams identifies the unit of work for one phase closure.
type ClosureParams struct {
	AreaID   string
	LevelID  string
	Phase    models.Phase
	ClosedBy string
}

// Placement carries one enrollment's computed rank and medal.
type Placement struct {
	EnrollmentID string
	Position     int
	Medal        models.MedalTier
}

// ResultRepository persists per-phase outcomes and the phase guard rows.
type ResultRepository struct {
	db          *sqlx.DB
	enrollments *EnrollmentRepository
}

// NewResultRepository constructs the repository.
func NewResultRepository(db *sqlx.DB, enrollments *EnrollmentRepository) *ResultRepository {
	return &ResultRepository{db: db, enrollments: enrollments}
}

// PersistClosure executes a whole phase closure in one transaction. The
// phase guard row flips abierta->cerrada first; its exclusive lock fences
// out score writes, which hold the row FOR SHARE, so the score snapshot
// read afterwards cannot miss a save committed mid-closure. Each
// snapshotted enrollment is classified through classify, then its status
// update and result insert commit together or not at all. Returns
// sql.ErrNoRows when the phase is already closed and ErrNoEnrollments
// when the pair has nothing to close; any failure rolls everything back,
// the guard flip included.
func (r *ResultRepository) PersistClosure(ctx context.Context, params ClosureParams, classify ClassifyFunc) ([]ClosureOutcome, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin closure: %w", err)
	}
	now := time.Now().UTC()

	const guard = `INSERT INTO fases_estado (area_id, level_id, phase, status, closed_at, closed_by)
        VALUES ($1, $2, $3, 'cerrada', $4, $5)
        ON CONFLICT (area_id, level_id, phase)
        DO UPDATE SET status = 'cerrada', closed_at = EXCLUDED.closed_at, closed_by = EXCLUDED.closed_by
        WHERE fases_estado.status = 'abierta'`
	result, err := tx.ExecContext(ctx, guard, params.AreaID, params.LevelID, params.Phase, now, params.ClosedBy)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("close phase guard: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("close phase guard: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return nil, sql.ErrNoRows
	}

	enrollments, err := r.enrollments.ListWithScores(ctx, tx, params.AreaID, params.LevelID, params.Phase)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}
	if len(enrollments) == 0 {
		tx.Rollback() //nolint:errcheck
		return nil, ErrNoEnrollments
	}

	const updateStatus = `UPDATE inscripciones_area SET status = $2, updated_at = $3 WHERE id = $1`
	const insertResult = `INSERT INTO resultados_finales (id, enrollment_id, phase, position, medal, final_score, created_at, updated_at)
        VALUES ($1, $2, $3, NULL, $4, $5, $6, $6)`
	outcomes := make([]ClosureOutcome, 0, len(enrollments))
	for _, enrollment := range enrollments {
		outcome := classify(enrollment)
		if _, err := tx.ExecContext(ctx, updateStatus, outcome.EnrollmentID, outcome.Status, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return nil, fmt.Errorf("update enrollment %s: %w", outcome.EnrollmentID, err)
		}
		if _, err := tx.ExecContext(ctx, insertResult, uuid.NewString(), outcome.EnrollmentID, params.Phase, models.MedalNone, outcome.FinalScore, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return nil, fmt.Errorf("insert result %s: %w", outcome.EnrollmentID, err)
		}
		outcomes = append(outcomes, outcome)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit closure: %w", err)
	}
	return outcomes, nil
}

// SeedFinalPhase inserts zeroed final-round result rows for the given
// enrollments without touching their statuses. Existing rows are left
// alone so a re-promotion never clobbers refreshed final scores.
func (r *ResultRepository) SeedFinalPhase(ctx context.Context, enrollmentIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	now := time.Now().UTC()
	const insertResult = `INSERT INTO resultados_finales (id, enrollment_id, phase, position, medal, final_score, created_at, updated_at)
        VALUES ($1, $2, $3, NULL, $4, 0, $5, $5)
        ON CONFLICT (enrollment_id, phase) DO NOTHING`
	for _, enrollmentID := range enrollmentIDs {
		if _, err := tx.ExecContext(ctx, insertResult, uuid.NewString(), enrollmentID, models.PhaseFinal, models.MedalNone, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("seed result %s: %w", enrollmentID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// RefreshScores rewrites final_score for the pair's result rows from the
// mean of the evaluations recorded for that round. The final round is
// scored after its rows are seeded, so this runs before ranking;
// classification scores are frozen by closure and never pass through
// here.
func (r *ResultRepository) RefreshScores(ctx context.Context, areaID, levelID string, phase models.Phase) error {
	const query = `UPDATE resultados_finales rf
        SET final_score = agg.score, updated_at = $4
        FROM (SELECT ev.enrollment_id, AVG(ev.score) AS score
              FROM evaluaciones ev
              JOIN inscripciones_area e ON e.id = ev.enrollment_id
              WHERE e.area_id = $1 AND e.level_id = $2 AND ev.phase = $3
              GROUP BY ev.enrollment_id) agg
        WHERE rf.enrollment_id = agg.enrollment_id AND rf.phase = $3`
	if _, err := r.db.ExecContext(ctx, query, areaID, levelID, phase, time.Now().UTC()); err != nil {
		return fmt.Errorf("refresh scores: %w", err)
	}
	return nil
}

// ListStandings returns result rows for an area/level/phase joined with
// their enrollments, ordered by final score descending with enrollment id
// as a stable secondary key. The caller applies the configured tie-break.
func (r *ResultRepository) ListStandings(ctx context.Context, areaID, levelID string, phase models.Phase) ([]models.StandingRow, error) {
	const query = `SELECT rf.enrollment_id, e.participant_id, rf.position, rf.medal, rf.final_score
        FROM resultados_finales rf
        JOIN inscripciones_area e ON e.id = rf.enrollment_id
        WHERE e.area_id = $1 AND e.level_id = $2 AND rf.phase = $3
        ORDER BY rf.final_score DESC, rf.enrollment_id ASC`
	var rows []models.StandingRow
	if err := r.db.SelectContext(ctx, &rows, query, areaID, levelID, phase); err != nil {
		return nil, fmt.Errorf("list standings: %w", err)
	}
	return rows, nil
}

// UpdatePlacements writes positions and medals for a phase in one
// transaction so a partial assignment never becomes visible.
func (r *ResultRepository) UpdatePlacements(ctx context.Context, phase models.Phase, placements []Placement) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin placements: %w", err)
	}
	now := time.Now().UTC()
	const query = `UPDATE resultados_finales SET position = $3, medal = $4, updated_at = $5
        WHERE enrollment_id = $1 AND phase = $2`
	for _, placement := range placements {
		if _, err := tx.ExecContext(ctx, query, placement.EnrollmentID, phase, placement.Position, placement.Medal, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("update placement %s: %w", placement.EnrollmentID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit placements: %w", err)
	}
	return nil
}
