package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/plantcert/plantcert-api/internal/models"
	"github.com/plantcert/plantcert-api/internal/service"
	appErrors "github.com/plantcert/plantcert-api/pkg/errors"
	"github.com/plantcert/plantcert-api/pkg/response"
)

// ObservationHandler exposes the live assessment session endpoints.
type ObservationHandler struct {
	service *service.ObservationService
}

// NewObservationHandler creates a new handler.
func NewObservationHandler(svc *service.ObservationService) *ObservationHandler {
	return &ObservationHandler{service: svc}
}

// Start godoc
// @Summary Start an observation session
// @Description Open a live assessment session for a candidate on one equipment type
// @Tags Observations
// @Accept json
// @Produce json
// @Param payload body service.StartObservationRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /observations [post]
// @Security BearerAuth
func (h *ObservationHandler) Start(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.StartObservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid observation payload"))
		return
	}

	summary, err := h.service.Start(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, summary)
}

// SetScore godoc
// @Summary Score one criterion
// @Description Record a 0-5 score and optional note for a criterion on a live session
// @Tags Observations
// @Accept json
// @Produce json
// @Param id path string true "Observation ID"
// @Param criteriaId path string true "Criterion ID"
// @Param payload body service.ScoreRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /observations/{id}/scores/{criteriaId} [put]
// @Security BearerAuth
func (h *ObservationHandler) SetScore(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid score payload"))
		return
	}

	summary, err := h.service.SetScore(c.Request.Context(), c.Param("id"), claims.UserID, c.Param("criteriaId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}

// AddNote godoc
// @Summary Append an observation note
// @Description Append a timestamped note entry to the session's note log
// @Tags Observations
// @Accept json
// @Produce json
// @Param id path string true "Observation ID"
// @Param payload body service.NoteRequest true "Note payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /observations/{id}/notes [post]
// @Security BearerAuth
func (h *ObservationHandler) AddNote(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid note payload"))
		return
	}

	note, err := h.service.AddNote(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, note)
}

// Snapshot godoc
// @Summary Live session summary
// @Description Current weighted score, verdict and progress of a live session
// @Tags Observations
// @Produce json
// @Param id path string true "Observation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /observations/{id} [get]
// @Security BearerAuth
func (h *ObservationHandler) Snapshot(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	summary, err := h.service.Snapshot(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}

// Finalize godoc
// @Summary Finalize an observation
// @Description Seal the session, freeze its derived fields and persist the record
// @Tags Observations
// @Accept json
// @Produce json
// @Param id path string true "Observation ID"
// @Param payload body service.FinalizeRequest true "Finalize payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /observations/{id}/finalize [post]
// @Security BearerAuth
func (h *ObservationHandler) Finalize(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid finalize payload"))
		return
	}

	record, err := h.service.Finalize(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Reopen godoc
// @Summary Reopen a sealed session
// @Description Unseal a live session for further edits, starting a new revision
// @Tags Observations
// @Produce json
// @Param id path string true "Observation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /observations/{id}/reopen [post]
// @Security BearerAuth
func (h *ObservationHandler) Reopen(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	summary, err := h.service.Reopen(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}

// Get godoc
// @Summary Load a finalized observation
// @Description Load one persisted observation record with ratings and notes
// @Tags Observations
// @Produce json
// @Param id path string true "Observation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /observations/{id}/record [get]
// @Security BearerAuth
func (h *ObservationHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// List godoc
// @Summary List finalized observations
// @Description Filter persisted observation records
// @Tags Observations
// @Produce json
// @Param candidate_id query string false "Candidate ID"
// @Param instructor_id query string false "Instructor ID"
// @Param equipment_type query string false "Equipment type"
// @Param pass_fail query string false "Verdict (PASS, CONDITIONAL, FAIL)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /observations [get]
// @Security BearerAuth
func (h *ObservationHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := models.ObservationFilter{
		CandidateID:   c.Query("candidate_id"),
		InstructorID:  c.Query("instructor_id"),
		EquipmentType: c.Query("equipment_type"),
		PassFail:      models.Verdict(c.Query("pass_fail")),
		Page:          page,
		PageSize:      pageSize,
	}

	records, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, pagination)
}
