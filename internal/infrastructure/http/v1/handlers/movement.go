package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"vintrack/internal/core/apperror"
	"vintrack/internal/domain/movement"
	"vintrack/internal/infrastructure/http/v1/dto"
)

// MovementHandler handles ledger read endpoints. The ledger is append
// only; movements are written by the domain services, never directly.
type MovementHandler struct {
	*BaseHandler
	service *movement.Service
	totals  movement.StockTotaler
}

// NewMovementHandler creates a new movement handler.
func NewMovementHandler(base *BaseHandler, service *movement.Service, totals movement.StockTotaler) *MovementHandler {
	return &MovementHandler{BaseHandler: base, service: service, totals: totals}
}

// GetByNumber handles GET /movements/:movementNumber
func (h *MovementHandler) GetByNumber(c *gin.Context) {
	m, err := h.service.GetByNumber(c.Request.Context(), c.Param("movementNumber"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, m)
}

// List handles GET /movements with optional filters.
func (h *MovementHandler) List(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	movements, err := h.service.History(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(movements, len(movements)))
}

// Reconcile handles GET /movements/reconciliation
func (h *MovementHandler) Reconcile(c *gin.Context) {
	report, err := h.service.Reconcile(c.Request.Context(), h.totals)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

func (h *MovementHandler) parseFilter(c *gin.Context) (movement.Filter, bool) {
	var filter movement.Filter

	if t := c.Query("type"); t != "" {
		mt := movement.Type(t)
		filter.Type = &mt
	}
	if lwinStr := c.Query("lwin18"); lwinStr != "" {
		lwin, ok := h.ParseLWIN18(c, lwinStr)
		if !ok {
			return filter, false
		}
		filter.LWIN18 = &lwin
	}
	if locStr := c.Query("locationId"); locStr != "" {
		locationID, ok := h.ParseID(c, "locationId", locStr)
		if !ok {
			return filter, false
		}
		filter.LocationID = &locationID
	}
	if orderStr := c.Query("orderId"); orderStr != "" {
		orderID, ok := h.ParseID(c, "orderId", orderStr)
		if !ok {
			return filter, false
		}
		filter.OrderID = &orderID
	}
	if code := c.Query("palletCode"); code != "" {
		filter.PalletCode = &code
	}
	if fromStr := c.Query("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid from date, expected RFC3339"))
			return filter, false
		}
		filter.FromDate = &from
	}
	if toStr := c.Query("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid to date, expected RFC3339"))
			return filter, false
		}
		filter.ToDate = &to
	}

	filter.Limit = h.ParseIntQuery(c, "limit", 100)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	return filter, true
}
