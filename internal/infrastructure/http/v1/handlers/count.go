package handlers

import (
	"github.com/gin-gonic/gin"

	"vintrack/internal/core/id"
	"vintrack/internal/domain/count"
	"vintrack/internal/infrastructure/http/v1/dto"
)

// CountHandler handles cycle count endpoints.
type CountHandler struct {
	*BaseHandler
	service *count.Service
}

// NewCountHandler creates a new cycle count handler.
func NewCountHandler(base *BaseHandler, service *count.Service) *CountHandler {
	return &CountHandler{BaseHandler: base, service: service}
}

// Create handles POST /counts
func (h *CountHandler) Create(c *gin.Context) {
	var req dto.CreateCountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	locationID, ok := h.ParseID(c, "locationId", req.LocationID)
	if !ok {
		return
	}

	cc, err := h.service.Create(c.Request.Context(), locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, cc.ID)
}

// Get handles GET /counts/:countId
func (h *CountHandler) Get(c *gin.Context) {
	countID, ok := h.PathID(c, "countId")
	if !ok {
		return
	}

	cc, err := h.service.GetByID(c.Request.Context(), countID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cc)
}

// ListByLocation handles GET /counts?locationId=...
func (h *CountHandler) ListByLocation(c *gin.Context) {
	locationID, ok := h.ParseID(c, "locationId", c.Query("locationId"))
	if !ok {
		return
	}

	counts, err := h.service.ListByLocation(c.Request.Context(), locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(counts, len(counts)))
}

// Items handles GET /counts/:countId/items
func (h *CountHandler) Items(c *gin.Context) {
	countID, ok := h.PathID(c, "countId")
	if !ok {
		return
	}

	items, err := h.service.Items(c.Request.Context(), countID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items, len(items)))
}

// Start handles POST /counts/:countId/start
func (h *CountHandler) Start(c *gin.Context) {
	countID, ok := h.PathID(c, "countId")
	if !ok {
		return
	}

	cc, err := h.service.Start(c.Request.Context(), countID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cc)
}

// RecordItem handles POST /counts/:countId/items/:itemId
func (h *CountHandler) RecordItem(c *gin.Context) {
	countID, ok := h.PathID(c, "countId")
	if !ok {
		return
	}
	itemID, ok := h.PathID(c, "itemId")
	if !ok {
		return
	}

	var req dto.RecordCountItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.service.RecordItem(c.Request.Context(), countID, itemID, req.CountedQuantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// Complete handles POST /counts/:countId/complete
func (h *CountHandler) Complete(c *gin.Context) {
	countID, ok := h.PathID(c, "countId")
	if !ok {
		return
	}

	cc, err := h.service.Complete(c.Request.Context(), countID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cc)
}

// AutoApprovals handles GET /counts/:countId/auto-approvals
func (h *CountHandler) AutoApprovals(c *gin.Context) {
	countID, ok := h.PathID(c, "countId")
	if !ok {
		return
	}

	approved, err := h.service.AutoApprovals(c.Request.Context(), countID)
	if err != nil {
		h.Error(c, err)
		return
	}

	ids := make([]string, 0, len(approved))
	for _, itemID := range approved {
		ids = append(ids, itemID.String())
	}
	h.OK(c, gin.H{"approvedItemIds": ids})
}

// Reconcile handles POST /counts/:countId/reconcile
func (h *CountHandler) Reconcile(c *gin.Context) {
	countID, ok := h.PathID(c, "countId")
	if !ok {
		return
	}

	var req dto.ReconcileRequest
	if !h.BindJSON(c, &req) {
		return
	}

	approved := make([]id.ID, 0, len(req.ApprovedItemIDs))
	for _, raw := range req.ApprovedItemIDs {
		itemID, ok := h.ParseID(c, "approvedItemIds", raw)
		if !ok {
			return
		}
		approved = append(approved, itemID)
	}

	cc, err := h.service.Reconcile(c.Request.Context(), countID, approved)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cc)
}
