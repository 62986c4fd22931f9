package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ohsansi/olimpiada-api/internal/models"
	"github.com/ohsansi/olimpiada-api/internal/repository"
	appErrors "github.com/ohsansi/olimpiada-api/pkg/errors"
)

type changeRequestStore interface {
	Create(ctx context.Context, request *models.ChangeRequest) error
	GetByID(ctx context.Context, id string) (*models.ChangeRequest, error)
	List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ChangeRequest, error)
	Resolve(ctx context.Context, params repository.ResolveParams) error
}

type evaluationReader interface {
	FindByID(ctx context.Context, id string) (*models.Evaluation, error)
}

type scoreWriter interface {
	SaveScore(ctx context.Context, req SaveScoreRequest, actor models.Principal) (*models.Evaluation, error)
}

// InfoRequestNotifier is the side channel used for solicitar_info: the
// coordinator asks the evaluator for more context without resolving the
// request. It is not a state transition.
type InfoRequestNotifier interface {
	NotifyInfoRequested(ctx context.Context, request *models.ChangeRequest, remarks string, coordinatorID string) error
}

// InfoRequestNotifierFunc allows using plain functions as notifiers.
type InfoRequestNotifierFunc func(ctx context.Context, request *models.ChangeRequest, remarks string, coordinatorID string) error

// NotifyInfoRequested implements InfoRequestNotifier.
func (f InfoRequestNotifierFunc) NotifyInfoRequested(ctx context.Context, request *models.ChangeRequest, remarks string, coordinatorID string) error {
	return f(ctx, request, remarks, coordinatorID)
}

type changeRequestMetrics interface {
	RecordChangeRequest(decision string)
}

// SubmitChangeRequest is an evaluator's proposal to revise a score. The
// request's round comes from the evaluation itself.
type SubmitChangeRequest struct {
	EvaluationID  string  `json:"evaluation_id" validate:"required"`
	ProposedValue float64 `json:"proposed_value"`
	Reason        string  `json:"reason" validate:"required"`
	Remarks       string  `json:"remarks"`
}

// ResolveChangeRequest carries a coordinator decision.
type ResolveChangeRequest struct {
	Decision models.ChangeRequestDecision `json:"decision" validate:"required"`
	Remarks  string                       `json:"remarks"`
}

// ChangeRequestService orchestrates the score-revision workflow:
// pendiente -> aprobado | rechazado, resolved exactly once, approval
// delegating the actual write to the score registry.
type ChangeRequestService struct {
	requests    changeRequestStore
	evaluations evaluationReader
	scores      scoreWriter
	notifier    InfoRequestNotifier
	audit       auditLogger
	metrics     changeRequestMetrics
	logger      *zap.Logger
}

// ChangeRequestServiceOption configures the service.
type ChangeRequestServiceOption func(*ChangeRequestService)

// WithInfoRequestNotifier overrides the solicitar_info side channel.
func WithInfoRequestNotifier(notifier InfoRequestNotifier) ChangeRequestServiceOption {
	return func(s *ChangeRequestService) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// NewChangeRequestService constructs the service with defaults.
func NewChangeRequestService(requests changeRequestStore, evaluations evaluationReader, scores scoreWriter, audit auditLogger, metrics changeRequestMetrics, logger *zap.Logger, opts ...ChangeRequestServiceOption) *ChangeRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ChangeRequestService{
		requests:    requests,
		evaluations: evaluations,
		scores:      scores,
		audit:       audit,
		metrics:     metrics,
		logger:      logger,
	}
	svc.notifier = InfoRequestNotifierFunc(func(ctx context.Context, request *models.ChangeRequest, remarks, coordinatorID string) error {
		logger.Info("info requested on change request",
			zap.String("request_id", request.ID),
			zap.String("coordinator_id", coordinatorID),
			zap.String("evaluator_id", request.RequestedBy),
		)
		return nil
	})
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit creates a pending change request capturing the current score as
// the previous value. No score mutation happens here.
func (s *ChangeRequestService) Submit(ctx context.Context, req SubmitChangeRequest, actor models.Principal) (*models.ChangeRequest, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reason is required")
	}
	if !models.ValidScore(req.ProposedValue) {
		return nil, appErrors.ErrInvalidScore
	}

	evaluation, err := s.evaluations.FindByID(ctx, req.EvaluationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation")
	}
	if evaluation.EvaluatorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the evaluation's evaluator may request changes")
	}
	if evaluation.Score == req.ProposedValue {
		return nil, appErrors.ErrNoOpChange
	}

	request := &models.ChangeRequest{
		EvaluationID:     evaluation.ID,
		Phase:            evaluation.Phase,
		PreviousValue:    evaluation.Score,
		ProposedValue:    req.ProposedValue,
		Reason:           strings.TrimSpace(req.Reason),
		EvaluatorRemarks: optionalString(req.Remarks),
		Status:           models.ChangeRequestStatusPending,
		RequestedBy:      actor.UserID,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create change request")
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionChangeRequestCreate, request, nil)
	return request, nil
}

// Resolve applies a coordinator decision over a pending request.
// Approval writes the proposed score first and only then flips the
// request state, so a failed write leaves the request pending.
func (s *ChangeRequestService) Resolve(ctx context.Context, id string, req ResolveChangeRequest, actor models.Principal) (*models.ChangeRequest, error) {
	if !actor.IsCoordinator() {
		return nil, appErrors.ErrForbidden
	}
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "change request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load change request")
	}
	if request.Status != models.ChangeRequestStatusPending {
		return nil, appErrors.ErrAlreadyResolved
	}

	switch req.Decision {
	case models.DecisionApprove:
		return s.approve(ctx, request, req.Remarks, actor)
	case models.DecisionReject:
		return s.finalize(ctx, request, models.ChangeRequestStatusRejected, req.Remarks, actor)
	case models.DecisionRequestInfo:
		return s.requestInfo(ctx, request, req.Remarks, actor)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be aprobar, rechazar or solicitar_info")
	}
}

func (s *ChangeRequestService) approve(ctx context.Context, request *models.ChangeRequest, remarks string, actor models.Principal) (*models.ChangeRequest, error) {
	evaluation, err := s.evaluations.FindByID(ctx, request.EvaluationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation")
	}
	params := repository.ResolveParams{
		ID:                 request.ID,
		Status:             models.ChangeRequestStatusApproved,
		ReviewedBy:         actor.UserID,
		ReviewedAt:         time.Now().UTC(),
		CoordinatorRemarks: optionalString(remarks),
	}
	// The write is attributed to the coordinator; the evaluation keeps
	// its original evaluator. The terminal transition rides the score
	// transaction, so a losing concurrent approval rolls back wholesale
	// and leaves no change-log entry behind.
	if _, err := s.scores.SaveScore(ctx, SaveScoreRequest{
		EnrollmentID: evaluation.EnrollmentID,
		EvaluatorID:  evaluation.EvaluatorID,
		Phase:        request.Phase,
		Score:        request.ProposedValue,
		Observations: evaluation.Observations,
		resolve:      &params,
	}, actor); err != nil {
		return nil, err
	}
	return s.stamp(ctx, request, params, actor), nil
}

func (s *ChangeRequestService) finalize(ctx context.Context, request *models.ChangeRequest, status models.ChangeRequestStatus, remarks string, actor models.Principal) (*models.ChangeRequest, error) {
	params := repository.ResolveParams{
		ID:                 request.ID,
		Status:             status,
		ReviewedBy:         actor.UserID,
		ReviewedAt:         time.Now().UTC(),
		CoordinatorRemarks: optionalString(remarks),
	}
	if err := s.requests.Resolve(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrAlreadyResolved
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve change request")
	}
	return s.stamp(ctx, request, params, actor), nil
}

// stamp mirrors a persisted resolution onto the in-memory request and
// emits the review side effects.
func (s *ChangeRequestService) stamp(ctx context.Context, request *models.ChangeRequest, params repository.ResolveParams, actor models.Principal) *models.ChangeRequest {
	request.Status = params.Status
	request.ReviewedBy = &params.ReviewedBy
	request.ReviewedAt = &params.ReviewedAt
	request.CoordinatorRemarks = params.CoordinatorRemarks

	if s.metrics != nil {
		s.metrics.RecordChangeRequest(string(params.Status))
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionChangeRequestReview, request, map[string]interface{}{
		"status": params.Status,
	})
	return request
}

func (s *ChangeRequestService) requestInfo(ctx context.Context, request *models.ChangeRequest, remarks string, actor models.Principal) (*models.ChangeRequest, error) {
	if strings.TrimSpace(remarks) == "" {
		return nil, appErrors.ErrMissingRemarks
	}
	if err := s.notifier.NotifyInfoRequested(ctx, request, remarks, actor.UserID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to notify evaluator")
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionChangeRequestInfoReq, request, map[string]interface{}{
		"remarks": remarks,
	})
	// No state transition: the request stays pendiente until a terminal
	// decision arrives.
	return request, nil
}

// List returns accessible change requests respecting actor role:
// evaluators see their own, coordinators see everything.
func (s *ChangeRequestService) List(ctx context.Context, filter models.ChangeRequestFilter, actor models.Principal) ([]models.ChangeRequest, error) {
	if !actor.IsCoordinator() {
		filter.RequestedBy = actor.UserID
	}
	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list change requests")
	}
	return requests, nil
}

// Get returns a change request enforcing scope constraints.
func (s *ChangeRequestService) Get(ctx context.Context, id string, actor models.Principal) (*models.ChangeRequest, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "change request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load change request")
	}
	if !actor.IsCoordinator() && request.RequestedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return request, nil
}

func (s *ChangeRequestService) emitAudit(ctx context.Context, userID, action string, request *models.ChangeRequest, extra map[string]interface{}) {
	if s.audit == nil {
		return
	}
	payload := map[string]interface{}{
		"evaluation_id":  request.EvaluationID,
		"previous_value": request.PreviousValue,
		"proposed_value": request.ProposedValue,
	}
	for k, v := range extra {
		payload[k] = v
	}
	raw, _ := json.Marshal(payload)
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "solicitudes_cambio",
		ResourceID: &request.ID,
		NewValues:  raw,
		IPAddress:  "system",
		UserAgent:  "change-request-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
