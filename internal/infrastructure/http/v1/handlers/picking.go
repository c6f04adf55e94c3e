package handlers

import (
	"github.com/gin-gonic/gin"

	"vintrack/internal/domain/picking"
	"vintrack/internal/infrastructure/http/v1/dto"
)

// PickingHandler handles reservation and pick endpoints.
type PickingHandler struct {
	*BaseHandler
	service *picking.Service
}

// NewPickingHandler creates a new picking handler.
func NewPickingHandler(base *BaseHandler, service *picking.Service) *PickingHandler {
	return &PickingHandler{BaseHandler: base, service: service}
}

// Reserve handles POST /picking/reserve
func (h *PickingHandler) Reserve(c *gin.Context) {
	var req dto.ReserveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	stockID, ok := h.ParseID(c, "stockId", req.StockID)
	if !ok {
		return
	}
	orderID, ok := h.ParseID(c, "orderId", req.OrderID)
	if !ok {
		return
	}

	res, err := h.service.Reserve(c.Request.Context(), stockID, req.Quantity, orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Release handles POST /picking/release
func (h *PickingHandler) Release(c *gin.Context) {
	var req dto.ReleaseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	stockID, ok := h.ParseID(c, "stockId", req.StockID)
	if !ok {
		return
	}
	orderID, ok := h.ParseID(c, "orderId", req.OrderID)
	if !ok {
		return
	}

	if err := h.service.Release(c.Request.Context(), stockID, req.Quantity, orderID, req.Reason); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "reservation released")
}

// Pick handles POST /picking/pick
func (h *PickingHandler) Pick(c *gin.Context) {
	var req dto.PickRequest
	if !h.BindJSON(c, &req) {
		return
	}

	stockID, ok := h.ParseID(c, "stockId", req.StockID)
	if !ok {
		return
	}
	orderID, ok := h.ParseID(c, "orderId", req.OrderID)
	if !ok {
		return
	}

	result, err := h.service.ConvertToPick(c.Request.Context(), stockID, orderID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// ListByOrder handles GET /picking/orders/:orderId
func (h *PickingHandler) ListByOrder(c *gin.Context) {
	orderID, ok := h.PathID(c, "orderId")
	if !ok {
		return
	}

	reservations, err := h.service.ListByOrder(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(reservations, len(reservations)))
}

// ListByStock handles GET /picking/stock/:stockId
func (h *PickingHandler) ListByStock(c *gin.Context) {
	stockID, ok := h.PathID(c, "stockId")
	if !ok {
		return
	}

	reservations, err := h.service.ListByStock(c.Request.Context(), stockID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(reservations, len(reservations)))
}
