package models

import "time"

// EnrollmentStatus represents the lifecycle of an area enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. Only phase closure moves an enrollment
// out of "activo"; score entry never touches it.
const (
	EnrollmentStatusActive       EnrollmentStatus = "activo"
	EnrollmentStatusClassified   EnrollmentStatus = "clasificado"
	EnrollmentStatusEliminated   EnrollmentStatus = "no_clasificado"
	EnrollmentStatusDisqualified EnrollmentStatus = "descalificado"
)

// Enrollment captures a participant's registration in one area+level pair.
type Enrollment struct {
	ID            string           `db:"id" json:"id"`
	ParticipantID string           `db:"participant_id" json:"participant_id"`
	AreaID        string           `db:"area_id" json:"area_id"`
	LevelID       string           `db:"level_id" json:"level_id"`
	Status        EnrollmentStatus `db:"status" json:"status"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentScore pairs an enrollment with its aggregated score at
// closure time. Score is nil when no evaluation exists yet; the closer
// applies its default-to-zero policy explicitly rather than relying on
// null coalescing.
type EnrollmentScore struct {
	Enrollment
	Score *float64 `db:"score" json:"score,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	ParticipantID string
	AreaID        string
	LevelID       string
	Status        EnrollmentStatus
}
