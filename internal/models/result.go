package models

import "time"

// Phase identifies the evaluation round an outcome belongs to.
type Phase string

const (
	PhaseClassification Phase = "clasificacion"
	PhaseFinal          Phase = "final"
)

// Valid reports whether the phase is one of the known rounds.
func (p Phase) Valid() bool {
	return p == PhaseClassification || p == PhaseFinal
}

// MedalTier is the awarded distinction within an area/level ranking.
type MedalTier string

const (
	MedalNone   MedalTier = "sin_medalla"
	MedalHonor  MedalTier = "mencion_honor"
	MedalBronze MedalTier = "bronce"
	MedalSilver MedalTier = "plata"
	MedalGold   MedalTier = "oro"
)

// FinalResult is the per-enrollment, per-phase outcome. Exactly one row
// exists per (enrollment, phase); position and medal are meaningful only
// after medal assignment has run.
type FinalResult struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Phase        Phase     `db:"phase" json:"phase"`
	Position     *int      `db:"position" json:"position,omitempty"`
	Medal        MedalTier `db:"medal" json:"medal"`
	FinalScore   float64   `db:"final_score" json:"final_score"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Partitions groups enrollment IDs by classification outcome for caller
// display and audit.
type Partitions struct {
	Clasificados   []string `json:"clasificados"`
	NoClasificados []string `json:"no_clasificados"`
	Descalificados []string `json:"descalificados"`
}

// StandingRow is a ranked result row as consumed by the medallero and
// certificate collaborators.
type StandingRow struct {
	EnrollmentID  string    `db:"enrollment_id" json:"enrollment_id"`
	ParticipantID string    `db:"participant_id" json:"participant_id"`
	Position      *int      `db:"position" json:"position,omitempty"`
	Medal         MedalTier `db:"medal" json:"medal"`
	FinalScore    float64   `db:"final_score" json:"final_score"`
}
