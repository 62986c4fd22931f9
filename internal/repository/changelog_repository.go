package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ohsansi/olimpiada-api/internal/models"
)

// ChangeLogRepository persists the append-only change log.
type ChangeLogRepository struct {
	db *sqlx.DB
}

// NewChangeLogRepository constructs the repository.
func NewChangeLogRepository(db *sqlx.DB) *ChangeLogRepository {
	return &ChangeLogRepository{db: db}
}

const insertChangeLogQuery = `INSERT INTO registro_cambios (id, table_name, record_id, field, old_value, new_value, user_id, action, created_at)
        VALUES (:id, :table_name, :record_id, :field, :old_value, :new_value, :user_id, :action, :created_at)`

// InsertTx appends an entry within the caller's transaction so the log
// commits or rolls back together with the mutation it describes.
func (r *ChangeLogRepository) InsertTx(ctx context.Context, ext sqlx.ExtContext, entry *models.ChangeLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, err := sqlx.NamedExecContext(ctx, ext, insertChangeLogQuery, entry); err != nil {
		return fmt.Errorf("insert change log: %w", err)
	}
	return nil
}

// ListByRecord returns the entries for one record, oldest first.
func (r *ChangeLogRepository) ListByRecord(ctx context.Context, tableName, recordID string) ([]models.ChangeLogEntry, error) {
	const query = `SELECT id, table_name, record_id, field, old_value, new_value, user_id, action, created_at
        FROM registro_cambios WHERE table_name = $1 AND record_id = $2 ORDER BY created_at ASC`
	var entries []models.ChangeLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, tableName, recordID); err != nil {
		return nil, fmt.Errorf("list change log: %w", err)
	}
	return entries, nil
}
