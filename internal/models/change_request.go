package models

import "time"

// ChangeRequestStatus captures workflow states for score change requests.
type ChangeRequestStatus string

const (
	ChangeRequestStatusPending  ChangeRequestStatus = "pendiente"
	ChangeRequestStatusApproved ChangeRequestStatus = "aprobado"
	ChangeRequestStatusRejected ChangeRequestStatus = "rechazado"
)

// ChangeRequestDecision enumerates coordinator actions over a pending
// request. RequestInfo is a side-channel notification, not a state
// transition.
type ChangeRequestDecision string

const (
	DecisionApprove     ChangeRequestDecision = "aprobar"
	DecisionReject      ChangeRequestDecision = "rechazar"
	DecisionRequestInfo ChangeRequestDecision = "solicitar_info"
)

// ChangeRequest stores an evaluator's proposal to revise an already
// recorded score, awaiting a single coordinator resolution.
type ChangeRequest struct {
	ID                 string              `db:"id" json:"id"`
	EvaluationID       string              `db:"evaluation_id" json:"evaluation_id"`
	Phase              Phase               `db:"phase" json:"phase"`
	PreviousValue      float64             `db:"previous_value" json:"previous_value"`
	ProposedValue      float64             `db:"proposed_value" json:"proposed_value"`
	Reason             string              `db:"reason" json:"reason"`
	EvaluatorRemarks   *string             `db:"evaluator_remarks" json:"evaluator_remarks,omitempty"`
	Status             ChangeRequestStatus `db:"status" json:"status"`
	CoordinatorRemarks *string             `db:"coordinator_remarks" json:"coordinator_remarks,omitempty"`
	RequestedBy        string              `db:"requested_by" json:"requested_by"`
	ReviewedBy         *string             `db:"reviewed_by" json:"reviewed_by,omitempty"`
	RequestedAt        time.Time           `db:"requested_at" json:"requested_at"`
	ReviewedAt         *time.Time          `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

// ChangeRequestFilter constrains listing queries.
type ChangeRequestFilter struct {
	Status      []ChangeRequestStatus
	Phase       Phase
	RequestedBy string
	Limit       int
	Offset      int
}
