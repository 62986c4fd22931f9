package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ohsansi/olimpiada-api/internal/models"
	"github.com/ohsansi/olimpiada-api/internal/service"
	appErrors "github.com/ohsansi/olimpiada-api/pkg/errors"
	"github.com/ohsansi/olimpiada-api/pkg/response"
)

// AssignMedalsRequest identifies the closed bracket to rank.
type AssignMedalsRequest struct {
	AreaID  string       `json:"area_id" binding:"required"`
	LevelID string       `json:"level_id" binding:"required"`
	Phase   models.Phase `json:"phase" binding:"required"`
}

// MedalHandler exposes ranking and medal endpoints.
type MedalHandler struct {
	medals *service.MedalService
}

// NewMedalHandler constructs handler.
func NewMedalHandler(medals *service.MedalService) *MedalHandler {
	return &MedalHandler{medals: medals}
}

// Assign godoc
// @Summary Assign positions and medals for a closed phase
// @Tags Medals
// @Accept json
// @Produce json
// @Param payload body AssignMedalsRequest true "Bracket payload"
// @Success 200 {object} response.Envelope
// @Router /medals/assign [post]
func (h *MedalHandler) Assign(c *gin.Context) {
	var req AssignMedalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	ranked, err := h.medals.AssignMedals(c.Request.Context(), req.AreaID, req.LevelID, req.Phase, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ranked, nil)
}

// Standings godoc
// @Summary List standings for an area, level and phase
// @Tags Medals
// @Produce json
// @Param areaId query string true "Area ID"
// @Param levelId query string true "Level ID"
// @Param phase query string true "Phase"
// @Success 200 {object} response.Envelope
// @Router /standings [get]
func (h *MedalHandler) Standings(c *gin.Context) {
	areaID := c.Query("areaId")
	levelID := c.Query("levelId")
	phase := models.Phase(c.Query("phase"))
	if areaID == "" || levelID == "" || !phase.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "areaId, levelId and a valid phase are required"))
		return
	}
	rows, err := h.medals.Standings(c.Request.Context(), areaID, levelID, phase)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
