package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plantcert/plantcert-api/internal/service"
	"github.com/plantcert/plantcert-api/pkg/response"
)

// CriteriaHandler serves the equipment criteria catalogs.
type CriteriaHandler struct {
	service *service.CriteriaService
}

// NewCriteriaHandler creates a new handler.
func NewCriteriaHandler(svc *service.CriteriaService) *CriteriaHandler {
	return &CriteriaHandler{service: svc}
}

// GetByEquipmentType godoc
// @Summary Criteria catalog for an equipment type
// @Description Weighted assessment criteria grouped by category
// @Tags Criteria
// @Produce json
// @Param equipmentType path string true "Equipment type"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /criteria/{equipmentType} [get]
// @Security BearerAuth
func (h *CriteriaHandler) GetByEquipmentType(c *gin.Context) {
	set, err := h.service.GetByEquipmentType(c.Request.Context(), c.Param("equipmentType"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, set, nil)
}

// ListEquipmentTypes godoc
// @Summary Equipment types with criteria
// @Tags Criteria
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /criteria [get]
// @Security BearerAuth
func (h *CriteriaHandler) ListEquipmentTypes(c *gin.Context) {
	types, err := h.service.ListEquipmentTypes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}
