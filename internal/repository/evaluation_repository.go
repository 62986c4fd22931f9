package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ohsansi/olimpiada-api/internal/models"
)

// ErrPhaseClosed is returned when a score write targets an area/level
// whose phase has been closed.
var ErrPhaseClosed = errors.New("phase closed for enrollment")

// ErrEnrollmentNotFound is returned when a score write references an
// enrollment that does not exist.
var ErrEnrollmentNotFound = errors.New("enrollment not found")

// ErrRequestResolved is returned when a score write carries a resolve
// directive for a change request that is no longer pending. The whole
// write rolls back.
var ErrRequestResolved = errors.New("change request already resolved")

// SaveScoreParams carries one score write. ActorID is the user the
// change-log entry is attributed to; it differs from EvaluatorID when a
// coordinator applies an approved change request. Resolve, when set,
// flips the approving change request to its terminal state in the same
// transaction as the score write.
type SaveScoreParams struct {
	EnrollmentID string
	EvaluatorID  string
	Score        float64
	Observations string
	ActorID      string
	Phase        models.Phase
	Resolve      *ResolveParams
}

// EvaluationRepository handles evaluation persistence. Score writes are
// transactional: row lock, change log, update, all or nothing.
type EvaluationRepository struct {
	db        *sqlx.DB
	changelog *ChangeLogRepository
	requests  *ChangeRequestRepository
}

// NewEvaluationRepository constructs the repository.
func NewEvaluationRepository(db *sqlx.DB, changelog *ChangeLogRepository, requests *ChangeRequestRepository) *EvaluationRepository {
	return &EvaluationRepository{db: db, changelog: changelog, requests: requests}
}

// Save upserts the evaluator's score for an enrollment and round inside
// one transaction. The existing row is locked FOR UPDATE so concurrent
// saves for the same (enrollment, evaluator, phase) triple serialize and
// the change log reflects a correct old-to-new chain. Updates append a
// change-log entry; the first insert does not. A resolve directive, when
// present, lands in the same transaction: if its request is no longer
// pending the score write rolls back with ErrRequestResolved. Returns
// the persisted row and whether it was an update.
func (r *EvaluationRepository) Save(ctx context.Context, params SaveScoreParams) (*models.Evaluation, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin save score: %w", err)
	}

	closed, err := r.lockPhase(ctx, tx, params.EnrollmentID, params.Phase)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, false, err
	}
	if closed {
		tx.Rollback() //nolint:errcheck
		return nil, false, ErrPhaseClosed
	}

	const lookup = `SELECT id, enrollment_id, evaluator_id, phase, score, observations, evaluated_at, created_at, updated_at
        FROM evaluaciones WHERE enrollment_id = $1 AND evaluator_id = $2 AND phase = $3 FOR UPDATE`
	var existing models.Evaluation
	err = tx.GetContext(ctx, &existing, lookup, params.EnrollmentID, params.EvaluatorID, params.Phase)
	now := time.Now().UTC()

	if err == sql.ErrNoRows {
		evaluation := &models.Evaluation{
			ID:           uuid.NewString(),
			EnrollmentID: params.EnrollmentID,
			EvaluatorID:  params.EvaluatorID,
			Phase:        params.Phase,
			Score:        params.Score,
			Observations: params.Observations,
			EvaluatedAt:  now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		const insert = `INSERT INTO evaluaciones (id, enrollment_id, evaluator_id, phase, score, observations, evaluated_at, created_at, updated_at)
            VALUES (:id, :enrollment_id, :evaluator_id, :phase, :score, :observations, :evaluated_at, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insert, evaluation); err != nil {
			tx.Rollback() //nolint:errcheck
			return nil, false, fmt.Errorf("insert evaluation: %w", err)
		}
		if err := r.resolveInTx(ctx, tx, params.Resolve); err != nil {
			tx.Rollback() //nolint:errcheck
			return nil, false, err
		}
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("commit evaluation: %w", err)
		}
		return evaluation, false, nil
	}
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, false, fmt.Errorf("lookup evaluation: %w", err)
	}

	entry := &models.ChangeLogEntry{
		TableName: models.TableEvaluations,
		RecordID:  existing.ID,
		Field:     "score",
		OldValue:  formatScore(existing.Score),
		NewValue:  formatScore(params.Score),
		UserID:    params.ActorID,
		Action:    models.ChangeLogActionUpdate,
	}
	if err := r.changelog.InsertTx(ctx, tx, entry); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, false, err
	}

	const update = `UPDATE evaluaciones SET score = $2, observations = $3, evaluated_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, existing.ID, params.Score, params.Observations, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, false, fmt.Errorf("update evaluation: %w", err)
	}
	if err := r.resolveInTx(ctx, tx, params.Resolve); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit evaluation: %w", err)
	}

	existing.Score = params.Score
	existing.Observations = params.Observations
	existing.EvaluatedAt = now
	existing.UpdatedAt = now
	return &existing, true, nil
}

// resolveInTx applies a resolve directive inside the score transaction.
// A request already out of pendiente maps to ErrRequestResolved so the
// caller rolls the score write back with it.
func (r *EvaluationRepository) resolveInTx(ctx context.Context, tx *sqlx.Tx, resolve *ResolveParams) error {
	if resolve == nil {
		return nil
	}
	if err := r.requests.ResolveTx(ctx, tx, *resolve); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRequestResolved
		}
		return err
	}
	return nil
}

// lockPhase guarantees the enrollment's phase row exists, takes a shared
// lock on it, and reports whether the phase is closed. The shared lock
// blocks while a closure transaction holds the row exclusively, so saves
// either land before closure reads scores or fail after it commits.
func (r *EvaluationRepository) lockPhase(ctx context.Context, tx *sqlx.Tx, enrollmentID string, phase models.Phase) (bool, error) {
	const ensure = `INSERT INTO fases_estado (area_id, level_id, phase, status)
        SELECT area_id, level_id, $2, 'abierta' FROM inscripciones_area WHERE id = $1
        ON CONFLICT (area_id, level_id, phase) DO NOTHING`
	if _, err := tx.ExecContext(ctx, ensure, enrollmentID, phase); err != nil {
		return false, fmt.Errorf("ensure phase row: %w", err)
	}

	const lock = `SELECT f.status FROM fases_estado f
        JOIN inscripciones_area e ON e.area_id = f.area_id AND e.level_id = f.level_id
        WHERE e.id = $1 AND f.phase = $2 FOR SHARE OF f`
	var status models.PhaseState
	if err := tx.GetContext(ctx, &status, lock, enrollmentID, phase); err != nil {
		if err == sql.ErrNoRows {
			return false, fmt.Errorf("enrollment %s: %w", enrollmentID, ErrEnrollmentNotFound)
		}
		return false, fmt.Errorf("lock phase row: %w", err)
	}
	return status == models.PhaseStateClosed, nil
}

// FindByID returns an evaluation by its ID.
func (r *EvaluationRepository) FindByID(ctx context.Context, id string) (*models.Evaluation, error) {
	const query = `SELECT id, enrollment_id, evaluator_id, phase, score, observations, evaluated_at, created_at, updated_at
        FROM evaluaciones WHERE id = $1`
	var evaluation models.Evaluation
	if err := r.db.GetContext(ctx, &evaluation, query, id); err != nil {
		return nil, err
	}
	return &evaluation, nil
}

// List returns evaluations matching the filter.
func (r *EvaluationRepository) List(ctx context.Context, filter models.EvaluationFilter) ([]models.Evaluation, error) {
	query := `SELECT id, enrollment_id, evaluator_id, phase, score, observations, evaluated_at, created_at, updated_at
        FROM evaluaciones WHERE 1=1`
	var args []interface{}
	if filter.EnrollmentID != "" {
		query += fmt.Sprintf(" AND enrollment_id = $%d", len(args)+1)
		args = append(args, filter.EnrollmentID)
	}
	if filter.EvaluatorID != "" {
		query += fmt.Sprintf(" AND evaluator_id = $%d", len(args)+1)
		args = append(args, filter.EvaluatorID)
	}
	if filter.Phase != "" {
		query += fmt.Sprintf(" AND phase = $%d", len(args)+1)
		args = append(args, filter.Phase)
	}
	query += " ORDER BY evaluated_at DESC"
	var evaluations []models.Evaluation
	if err := r.db.SelectContext(ctx, &evaluations, query, args...); err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	return evaluations, nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
