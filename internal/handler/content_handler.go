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

// ContentHandler exposes the generated course material endpoints.
type ContentHandler struct {
	service *service.ContentService
}

// NewContentHandler creates a new handler.
func NewContentHandler(svc *service.ContentService) *ContentHandler {
	return &ContentHandler{service: svc}
}

// Generate godoc
// @Summary Generate course material
// @Description Render a lesson plan, quiz or summary draft from templates
// @Tags Content
// @Accept json
// @Produce json
// @Param payload body service.GenerateContentRequest true "Generation payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /content/generate [post]
// @Security BearerAuth
func (h *ContentHandler) Generate(c *gin.Context) {
	var req service.GenerateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}

	gen, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, gen)
}

// List godoc
// @Summary List generated material
// @Tags Content
// @Produce json
// @Param course_id query string false "Course ID"
// @Param content_type query string false "Content type (lesson_plan, quiz, summary)"
// @Param approved query bool false "Approval state"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /content [get]
// @Security BearerAuth
func (h *ContentHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := models.ContentFilter{
		CourseID:    c.Query("course_id"),
		ContentType: models.ContentType(c.Query("content_type")),
		Page:        page,
		PageSize:    pageSize,
	}
	if raw, ok := c.GetQuery("approved"); ok {
		approved, err := strconv.ParseBool(raw)
		if err == nil {
			filter.Approved = &approved
		}
	}

	generations, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, generations, pagination)
}

// Approve godoc
// @Summary Approve generated material
// @Description Mark a generation as reviewed and usable in courses
// @Tags Content
// @Produce json
// @Param id path string true "Generation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /content/{id}/approve [post]
// @Security BearerAuth
func (h *ContentHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	gen, err := h.service.Approve(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gen, nil)
}
