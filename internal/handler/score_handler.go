package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ohsansi/olimpiada-api/internal/models"
	"github.com/ohsansi/olimpiada-api/internal/service"
	appErrors "github.com/ohsansi/olimpiada-api/pkg/errors"
	"github.com/ohsansi/olimpiada-api/pkg/response"
)

// ScoreHandler exposes evaluation score endpoints.
type ScoreHandler struct {
	scores *service.ScoreService
}

// NewScoreHandler constructs handler.
func NewScoreHandler(scores *service.ScoreService) *ScoreHandler {
	return &ScoreHandler{scores: scores}
}

// Save godoc
// @Summary Register or revise an evaluation score
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body service.SaveScoreRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Router /scores [post]
func (h *ScoreHandler) Save(c *gin.Context) {
	var req service.SaveScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	evaluation, err := h.scores.SaveScore(c.Request.Context(), req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evaluation, nil)
}

// List godoc
// @Summary List evaluation scores
// @Tags Scores
// @Produce json
// @Param enrollmentId query string false "Filter by enrollment"
// @Param evaluatorId query string false "Filter by evaluator"
// @Param phase query string false "Filter by phase"
// @Success 200 {object} response.Envelope
// @Router /scores [get]
func (h *ScoreHandler) List(c *gin.Context) {
	filter := models.EvaluationFilter{
		EnrollmentID: c.Query("enrollmentId"),
		EvaluatorID:  c.Query("evaluatorId"),
		Phase:        models.Phase(c.Query("phase")),
	}
	evaluations, err := h.scores.ListScores(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evaluations, nil)
}

// History godoc
// @Summary List the revision history of an evaluation
// @Tags Scores
// @Produce json
// @Param id path string true "Evaluation ID"
// @Success 200 {object} response.Envelope
// @Router /scores/{id}/history [get]
func (h *ScoreHandler) History(c *gin.Context) {
	entries, err := h.scores.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
