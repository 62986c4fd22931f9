package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ohsansi/olimpiada-api/internal/models"
)

// EnrollmentRepository reads area enrollments. Enrollment rows are
// created by the registration pipeline; this core only reads them and
// flips their status during phase closure.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, participant_id, area_id, level_id, status, created_at, updated_at
        FROM inscripciones_area WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	query := `SELECT id, participant_id, area_id, level_id, status, created_at, updated_at
        FROM inscripciones_area WHERE 1=1`
	var args []interface{}
	if filter.ParticipantID != "" {
		query += fmt.Sprintf(" AND participant_id = $%d", len(args)+1)
		args = append(args, filter.ParticipantID)
	}
	if filter.AreaID != "" {
		query += fmt.Sprintf(" AND area_id = $%d", len(args)+1)
		args = append(args, filter.AreaID)
	}
	if filter.LevelID != "" {
		query += fmt.Sprintf(" AND level_id = $%d", len(args)+1)
		args = append(args, filter.LevelID)
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	query += " ORDER BY created_at ASC"
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// EnrolledOrder returns enrollment IDs for an area/level in registration
// order, used as an alternative medal tie-break key.
func (r *EnrollmentRepository) EnrolledOrder(ctx context.Context, areaID, levelID string) ([]string, error) {
	const query = `SELECT id FROM inscripciones_area WHERE area_id = $1 AND level_id = $2 ORDER BY created_at ASC, id ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, areaID, levelID); err != nil {
		return nil, fmt.Errorf("list enrolled order: %w", err)
	}
	return ids, nil
}

// ListWithScores returns active enrollments for an area/level together
// with the mean of their evaluations recorded for the given round. Score
// is NULL when no evaluation exists; the caller decides what that means.
// The query runs against ext so a closure transaction can take its
// snapshot after the phase guard lock is held.
func (r *EnrollmentRepository) ListWithScores(ctx context.Context, ext sqlx.ExtContext, areaID, levelID string, phase models.Phase) ([]models.EnrollmentScore, error) {
	const query = `SELECT e.id, e.participant_id, e.area_id, e.level_id, e.status, e.created_at, e.updated_at,
        AVG(ev.score) AS score
        FROM inscripciones_area e
        LEFT JOIN evaluaciones ev ON ev.enrollment_id = e.id AND ev.phase = $4
        WHERE e.area_id = $1 AND e.level_id = $2 AND e.status = $3
        GROUP BY e.id, e.participant_id, e.area_id, e.level_id, e.status, e.created_at, e.updated_at
        ORDER BY e.created_at ASC, e.id ASC`
	var enrollments []models.EnrollmentScore
	if err := sqlx.SelectContext(ctx, ext, &enrollments, query, areaID, levelID, models.EnrollmentStatusActive, phase); err != nil {
		return nil, fmt.Errorf("list enrollment scores: %w", err)
	}
	return enrollments, nil
}
