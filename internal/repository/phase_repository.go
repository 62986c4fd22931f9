package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ohsansi/olimpiada-api/internal/models"
)

// PhaseRepository reads the closure guard rows.
type PhaseRepository struct {
	db *sqlx.DB
}

// NewPhaseRepository constructs the repository.
func NewPhaseRepository(db *sqlx.DB) *PhaseRepository {
	return &PhaseRepository{db: db}
}

// Get returns the phase status row, or an open default when none exists
// yet (the phase row is created lazily by the first score write or by
// closure itself).
func (r *PhaseRepository) Get(ctx context.Context, areaID, levelID string, phase models.Phase) (*models.PhaseStatus, error) {
	const query = `SELECT area_id, level_id, phase, status, closed_at, closed_by
        FROM fases_estado WHERE area_id = $1 AND level_id = $2 AND phase = $3`
	var status models.PhaseStatus
	if err := r.db.GetContext(ctx, &status, query, areaID, levelID, phase); err != nil {
		if err == sql.ErrNoRows {
			return &models.PhaseStatus{AreaID: areaID, LevelID: levelID, Phase: phase, Status: models.PhaseStateOpen}, nil
		}
		return nil, fmt.Errorf("get phase status: %w", err)
	}
	return &status, nil
}

// IsClosed reports whether the phase has been closed for the pair.
func (r *PhaseRepository) IsClosed(ctx context.Context, areaID, levelID string, phase models.Phase) (bool, error) {
	status, err := r.Get(ctx, areaID, levelID, phase)
	if err != nil {
		return false, err
	}
	return status.Status == models.PhaseStateClosed, nil
}
