package handlers

import (
	"github.com/gin-gonic/gin"

	"vintrack/internal/domain/label"
	"vintrack/internal/infrastructure/http/v1/dto"
	"vintrack/pkg/labelprint"
)

// LabelHandler handles case label endpoints.
type LabelHandler struct {
	*BaseHandler
	service *label.Service
}

// NewLabelHandler creates a new label handler.
func NewLabelHandler(base *BaseHandler, service *label.Service) *LabelHandler {
	return &LabelHandler{BaseHandler: base, service: service}
}

// GetByBarcode handles GET /labels/:barcode
func (h *LabelHandler) GetByBarcode(c *gin.Context) {
	l, err := h.service.GetByBarcode(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, l)
}

// Print handles GET /labels/:barcode/print
// Returns the physical label text lines for the printer spooler.
func (h *LabelHandler) Print(c *gin.Context) {
	l, err := h.service.GetByBarcode(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"lines": labelprint.CaseLabel(*l)})
}

// Relocate handles POST /labels/:barcode/relocate
func (h *LabelHandler) Relocate(c *gin.Context) {
	var req dto.RelocateLabelRequest
	if !h.BindJSON(c, &req) {
		return
	}
	toLocationID, ok := h.ParseID(c, "toLocationId", req.ToLocationID)
	if !ok {
		return
	}

	l, err := h.service.Relocate(c.Request.Context(), c.Param("barcode"), toLocationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, l)
}
