package handlers

import (
	"github.com/gin-gonic/gin"

	"vintrack/internal/domain/repack"
	"vintrack/internal/infrastructure/http/v1/dto"
)

// RepackHandler handles repack endpoints.
type RepackHandler struct {
	*BaseHandler
	service *repack.Service
}

// NewRepackHandler creates a new repack handler.
func NewRepackHandler(base *BaseHandler, service *repack.Service) *RepackHandler {
	return &RepackHandler{BaseHandler: base, service: service}
}

// Repack handles POST /repacks
func (h *RepackHandler) Repack(c *gin.Context) {
	var req dto.RepackRequest
	if !h.BindJSON(c, &req) {
		return
	}

	stockID, ok := h.ParseID(c, "stockId", req.StockID)
	if !ok {
		return
	}

	result, err := h.service.Repack(c.Request.Context(), stockID, req.SourceQuantity, req.TargetCaseConfig)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Get handles GET /repacks/:repackId
func (h *RepackHandler) Get(c *gin.Context) {
	repackID, ok := h.PathID(c, "repackId")
	if !ok {
		return
	}

	rp, err := h.service.GetByID(c.Request.Context(), repackID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rp)
}

// History handles GET /repacks?lwin18=...
func (h *RepackHandler) History(c *gin.Context) {
	lwin, ok := h.ParseLWIN18(c, c.Query("lwin18"))
	if !ok {
		return
	}

	repacks, err := h.service.History(c.Request.Context(), lwin)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(repacks, len(repacks)))
}
