package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ohsansi/olimpiada-api/internal/service"
	"github.com/ohsansi/olimpiada-api/pkg/response"
)

// AuditHandler exposes audit trail endpoints.
type AuditHandler struct {
	audit *service.AuditService
}

// NewAuditHandler constructs handler.
func NewAuditHandler(audit *service.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List godoc
// @Summary List audit entries for a resource
// @Tags Audit
// @Produce json
// @Param resource query string true "Resource name"
// @Param resourceId query string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Router /audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	logs, err := h.audit.ListByResource(c.Request.Context(), c.Query("resource"), c.Query("resourceId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
