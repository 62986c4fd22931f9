package models

import "time"

// Score bounds accepted by the registry.
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// ValidScore reports whether v lies inside the accepted [0,100] range.
func ValidScore(v float64) bool {
	return v >= MinScore && v <= MaxScore
}

// Evaluation is one evaluator's recorded score for one enrollment in one
// round. At most one row exists per (enrollment, evaluator, phase)
// triple; subsequent saves update in place.
type Evaluation struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	EvaluatorID  string    `db:"evaluator_id" json:"evaluator_id"`
	Phase        Phase     `db:"phase" json:"phase"`
	Score        float64   `db:"score" json:"score"`
	Observations string    `db:"observations" json:"observations"`
	EvaluatedAt  time.Time `db:"evaluated_at" json:"evaluated_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// EvaluationFilter constrains score listing queries.
type EvaluationFilter struct {
	EnrollmentID string
	EvaluatorID  string
	Phase        Phase
}
