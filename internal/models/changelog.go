package models

import "time"

// ChangeLogAction constants identify the kind of mutation recorded.
const (
	ChangeLogActionUpdate = "UPDATE"
)

// Table names referenced by change-log entries.
const (
	TableEvaluations = "evaluaciones"
)

// ChangeLogEntry is an append-only audit record of a field mutation. It
// is written in the same transaction as the mutation it describes and is
// immutable once committed.
type ChangeLogEntry struct {
	ID        string    `db:"id" json:"id"`
	TableName string    `db:"table_name" json:"table_name"`
	RecordID  string    `db:"record_id" json:"record_id"`
	Field     string    `db:"field" json:"field"`
	OldValue  string    `db:"old_value" json:"old_value"`
	NewValue  string    `db:"new_value" json:"new_value"`
	UserID    string    `db:"user_id" json:"user_id"`
	Action    string    `db:"action" json:"action"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
