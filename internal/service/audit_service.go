package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/ohsansi/olimpiada-api/internal/models"
	appErrors "github.com/ohsansi/olimpiada-api/pkg/errors"
)

type auditReader interface {
	ListByResource(ctx context.Context, resource, resourceID string) ([]models.AuditLog, error)
}

// AuditService exposes the audit trail to administrators.
type AuditService struct {
	audit  auditReader
	logger *zap.Logger
}

// NewAuditService constructs AuditService.
func NewAuditService(audit auditReader, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{audit: audit, logger: logger}
}

// ListByResource returns audit entries for one resource, newest first.
func (s *AuditService) ListByResource(ctx context.Context, resource, resourceID string) ([]models.AuditLog, error) {
	if resource == "" || resourceID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "resource and resourceId are required")
	}
	logs, err := s.audit.ListByResource(ctx, resource, resourceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	return logs, nil
}
