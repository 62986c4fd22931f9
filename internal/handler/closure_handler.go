package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ohsansi/olimpiada-api/internal/models"
	"github.com/ohsansi/olimpiada-api/internal/service"
	appErrors "github.com/ohsansi/olimpiada-api/pkg/errors"
	"github.com/ohsansi/olimpiada-api/pkg/response"
)

// ClosePhaseRequest identifies the classification bracket to close.
type ClosePhaseRequest struct {
	AreaID  string `json:"area_id" binding:"required"`
	LevelID string `json:"level_id" binding:"required"`
}

// ClosureHandler exposes classification closeout endpoints.
type ClosureHandler struct {
	closure *service.ClosureService
}

// NewClosureHandler constructs handler.
func NewClosureHandler(closure *service.ClosureService) *ClosureHandler {
	return &ClosureHandler{closure: closure}
}

// Close godoc
// @Summary Close the classification phase for an area and level
// @Tags Closure
// @Accept json
// @Produce json
// @Param payload body ClosePhaseRequest true "Bracket payload"
// @Success 200 {object} response.Envelope
// @Router /classification/close [post]
func (h *ClosureHandler) Close(c *gin.Context) {
	var req ClosePhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	partitions, err := h.closure.ClosePhase(c.Request.Context(), req.AreaID, req.LevelID, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, partitions, nil)
}

// Promote godoc
// @Summary Seed final-round results for classified enrollments
// @Tags Closure
// @Accept json
// @Produce json
// @Param payload body ClosePhaseRequest true "Bracket payload"
// @Success 200 {object} response.Envelope
// @Router /classification/promote [post]
func (h *ClosureHandler) Promote(c *gin.Context) {
	var req ClosePhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	promoted, err := h.closure.PromoteToFinal(c.Request.Context(), req.AreaID, req.LevelID, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"promoted": promoted}, nil)
}

// Status godoc
// @Summary Get the closure status of a phase
// @Tags Closure
// @Produce json
// @Param areaId query string true "Area ID"
// @Param levelId query string true "Level ID"
// @Param phase query string true "Phase"
// @Success 200 {object} response.Envelope
// @Router /classification/status [get]
func (h *ClosureHandler) Status(c *gin.Context) {
	status, err := h.closure.PhaseStatus(c.Request.Context(), c.Query("areaId"), c.Query("levelId"), models.Phase(c.Query("phase")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
