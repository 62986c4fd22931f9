package models

import "time"

// PhaseState tracks whether a phase is still accepting scores for an
// area/level pair.
type PhaseState string

const (
	PhaseStateOpen   PhaseState = "abierta"
	PhaseStateClosed PhaseState = "cerrada"
)

// PhaseStatus is the closure guard row for one (area, level, phase)
// triple. It is checked before accepting score writes and flipped
// atomically inside the closure transaction.
type PhaseStatus struct {
	AreaID   string     `db:"area_id" json:"area_id"`
	LevelID  string     `db:"level_id" json:"level_id"`
	Phase    Phase      `db:"phase" json:"phase"`
	Status   PhaseState `db:"status" json:"status"`
	ClosedAt *time.Time `db:"closed_at" json:"closed_at,omitempty"`
	ClosedBy *string    `db:"closed_by" json:"closed_by,omitempty"`
}
