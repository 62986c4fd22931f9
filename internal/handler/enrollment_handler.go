package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ohsansi/olimpiada-api/internal/models"
	"github.com/ohsansi/olimpiada-api/internal/service"
	"github.com/ohsansi/olimpiada-api/pkg/response"
)

// EnrollmentHandler exposes enrollment read endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs handler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List area enrollments
// @Tags Enrollments
// @Produce json
// @Param participantId query string false "Filter by participant"
// @Param areaId query string false "Filter by area"
// @Param levelId query string false "Filter by level"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		ParticipantID: c.Query("participantId"),
		AreaID:        c.Query("areaId"),
		LevelID:       c.Query("levelId"),
		Status:        models.EnrollmentStatus(c.Query("status")),
	}
	enrollments, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// Get godoc
// @Summary Get an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	enrollment, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}
