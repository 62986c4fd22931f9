package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ohsansi/olimpiada-api/internal/models"
)

// ChangeRequestRepository persists score change requests.
type ChangeRequestRepository struct {
	db *sqlx.DB
}

// NewChangeRequestRepository constructs the repository.
func NewChangeRequestRepository(db *sqlx.DB) *ChangeRequestRepository {
	return &ChangeRequestRepository{db: db}
}

// Create stores a new pending change request.
func (r *ChangeRequestRepository) Create(ctx context.Context, request *models.ChangeRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}
	if request.Status == "" {
		request.Status = models.ChangeRequestStatusPending
	}
	const query = `INSERT INTO solicitudes_cambio (id, evaluation_id, phase, previous_value, proposed_value, reason, evaluator_remarks, status, coordinator_remarks, requested_by, reviewed_by, requested_at, reviewed_at)
        VALUES (:id, :evaluation_id, :phase, :previous_value, :proposed_value, :reason, :evaluator_remarks, :status, :coordinator_remarks, :requested_by, :reviewed_by, :requested_at, :reviewed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create change request: %w", err)
	}
	return nil
}

// GetByID returns a change request by its ID.
func (r *ChangeRequestRepository) GetByID(ctx context.Context, id string) (*models.ChangeRequest, error) {
	const query = `SELECT id, evaluation_id, phase, previous_value, proposed_value, reason, evaluator_remarks, status, coordinator_remarks, requested_by, reviewed_by, requested_at, reviewed_at
        FROM solicitudes_cambio WHERE id = $1`
	var request models.ChangeRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns change requests matching the filter, newest first.
func (r *ChangeRequestRepository) List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ChangeRequest, error) {
	query := `SELECT id, evaluation_id, phase, previous_value, proposed_value, reason, evaluator_remarks, status, coordinator_remarks, requested_by, reviewed_by, requested_at, reviewed_at
        FROM solicitudes_cambio WHERE 1=1`
	var args []interface{}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, status)
		}
		query += fmt.Sprintf(" AND status IN (%s)", strings.Join(placeholders, ","))
	}
	if filter.Phase != "" {
		query += fmt.Sprintf(" AND phase = $%d", len(args)+1)
		args = append(args, filter.Phase)
	}
	if filter.RequestedBy != "" {
		query += fmt.Sprintf(" AND requested_by = $%d", len(args)+1)
		args = append(args, filter.RequestedBy)
	}
	query += " ORDER BY requested_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}
	var requests []models.ChangeRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list change requests: %w", err)
	}
	return requests, nil
}

// ResolveParams captures a terminal review decision.
type ResolveParams struct {
	ID                 string
	Status             models.ChangeRequestStatus
	ReviewedBy         string
	ReviewedAt         time.Time
	CoordinatorRemarks *string
}

// Resolve moves a pending request to a terminal state. Returns
// sql.ErrNoRows when the request is missing or no longer pending, so the
// transition stays one-way even under concurrent reviews.
func (r *ChangeRequestRepository) Resolve(ctx context.Context, params ResolveParams) error {
	return r.ResolveTx(ctx, r.db, params)
}

// ResolveTx is Resolve running against the caller's transaction, used
// when a resolution must commit atomically with the score write it
// approves.
func (r *ChangeRequestRepository) ResolveTx(ctx context.Context, ext sqlx.ExtContext, params ResolveParams) error {
	const query = `UPDATE solicitudes_cambio
        SET status = $2, reviewed_by = $3, reviewed_at = $4, coordinator_remarks = $5
        WHERE id = $1 AND status = $6`
	result, err := ext.ExecContext(ctx, query, params.ID, params.Status, params.ReviewedBy, params.ReviewedAt, params.CoordinatorRemarks, models.ChangeRequestStatusPending)
	if err != nil {
		return fmt.Errorf("resolve change request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve change request: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
