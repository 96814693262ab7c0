package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plantcert/plantcert-api/internal/models"
	"github.com/plantcert/plantcert-api/internal/service"
	appErrors "github.com/plantcert/plantcert-api/pkg/errors"
	"github.com/plantcert/plantcert-api/pkg/response"
)

// DashboardHandler serves instructor and student dashboards.
type DashboardHandler struct {
	service *service.DashboardService
	metrics *service.MetricsService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(svc *service.DashboardService, metrics *service.MetricsService) *DashboardHandler {
	return &DashboardHandler{service: svc, metrics: metrics}
}

// Instructor godoc
// @Summary Instructor dashboard
// @Description Verdict breakdown, recent observations and course load for one instructor
// @Tags Dashboards
// @Produce json
// @Param id path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /dashboards/instructor/{id} [get]
// @Security BearerAuth
func (h *DashboardHandler) Instructor(c *gin.Context) {
	id := c.Param("id")
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleInstructor && claims.UserID != id {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "instructors can only view their own dashboard"))
		return
	}

	board, err := h.service.Instructor(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, board, nil)
}

// Student godoc
// @Summary Student dashboard
// @Description Enrollment progress and assessment history for one student
// @Tags Dashboards
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /dashboards/student/{id} [get]
// @Security BearerAuth
func (h *DashboardHandler) Student(c *gin.Context) {
	id := c.Param("id")
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent && claims.UserID != id {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students can only view their own dashboard"))
		return
	}

	board, err := h.service.Student(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, board, nil)
}

// System godoc
// @Summary System metrics snapshot
// @Description Aggregate request, cache and session counters
// @Tags Dashboards
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboards/system [get]
// @Security BearerAuth
func (h *DashboardHandler) System(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
