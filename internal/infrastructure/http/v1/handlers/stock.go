package handlers

import (
	"github.com/gin-gonic/gin"

	"vintrack/internal/core/apperror"
	"vintrack/internal/core/types"
	"vintrack/internal/domain/stock"
	"vintrack/internal/infrastructure/http/v1/dto"
)

// StockHandler handles stock record endpoints.
type StockHandler struct {
	*BaseHandler
	service *stock.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *stock.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service}
}

// Receive handles POST /stock/receive
func (h *StockHandler) Receive(c *gin.Context) {
	var req dto.ReceiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, ok := h.toReceiveInput(c, req)
	if !ok {
		return
	}

	rec, err := h.service.Receive(c.Request.Context(), input)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, rec.ID)
}

// BulkReceive handles POST /stock/receive/bulk
func (h *StockHandler) BulkReceive(c *gin.Context) {
	var req dto.BulkReceiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	lines := make([]stock.ReceiveInput, 0, len(req.Lines))
	for i, line := range req.Lines {
		input, ok := h.toReceiveInput(c, line)
		if !ok {
			h.Error(c, apperror.NewValidation("invalid bulk line").WithDetail("line", i))
			return
		}
		lines = append(lines, input)
	}

	results := h.service.BulkReceive(c.Request.Context(), lines)
	h.OK(c, gin.H{"results": results})
}

// Get handles GET /stock/:stockId
func (h *StockHandler) Get(c *gin.Context) {
	stockID, ok := h.PathID(c, "stockId")
	if !ok {
		return
	}

	rec, err := h.service.GetByID(c.Request.Context(), stockID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}

// ListByLocation handles GET /stock?locationId=... or ?lwin18=...
func (h *StockHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	if locStr := c.Query("locationId"); locStr != "" {
		locationID, ok := h.ParseID(c, "locationId", locStr)
		if !ok {
			return
		}
		records, err := h.service.ListByLocation(ctx, locationID)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, dto.NewListResponse(records, len(records)))
		return
	}

	if lwinStr := c.Query("lwin18"); lwinStr != "" {
		lwin, ok := h.ParseLWIN18(c, lwinStr)
		if !ok {
			return
		}
		records, err := h.service.ListByProduct(ctx, lwin)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, dto.NewListResponse(records, len(records)))
		return
	}

	h.Error(c, apperror.NewValidation("locationId or lwin18 query parameter is required"))
}

// Adjust handles POST /stock/:stockId/adjust
func (h *StockHandler) Adjust(c *gin.Context) {
	stockID, ok := h.PathID(c, "stockId")
	if !ok {
		return
	}

	var req dto.AdjustQuantityRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rec, err := h.service.AdjustQuantity(c.Request.Context(), stockID, req.NewQuantity, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}

// TransferLocation handles POST /stock/:stockId/transfer-location
func (h *StockHandler) TransferLocation(c *gin.Context) {
	stockID, ok := h.PathID(c, "stockId")
	if !ok {
		return
	}

	var req dto.TransferLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	toLocationID, ok := h.ParseID(c, "toLocationId", req.ToLocationID)
	if !ok {
		return
	}

	rec, err := h.service.TransferLocation(c.Request.Context(), stockID, req.Quantity, toLocationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}

// TransferOwnership handles POST /stock/:stockId/transfer-ownership
func (h *StockHandler) TransferOwnership(c *gin.Context) {
	stockID, ok := h.PathID(c, "stockId")
	if !ok {
		return
	}

	var req dto.TransferOwnershipRequest
	if !h.BindJSON(c, &req) {
		return
	}
	newOwnerID, ok := h.ParseID(c, "newOwnerId", req.NewOwnerID)
	if !ok {
		return
	}

	rec, err := h.service.TransferOwnership(c.Request.Context(), stockID, newOwnerID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}

// MergeDuplicates handles POST /stock/merge-duplicates
func (h *StockHandler) MergeDuplicates(c *gin.Context) {
	merged, err := h.service.MergeDuplicates(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.MergeDuplicatesResponse{MergedRows: merged})
}

func (h *StockHandler) toReceiveInput(c *gin.Context, req dto.ReceiveRequest) (stock.ReceiveInput, bool) {
	var input stock.ReceiveInput

	locationID, ok := h.ParseID(c, "locationId", req.LocationID)
	if !ok {
		return input, false
	}
	ownerID, ok := h.ParseID(c, "ownerId", req.OwnerID)
	if !ok {
		return input, false
	}
	lwin, ok := h.ParseLWIN18(c, req.LWIN18)
	if !ok {
		return input, false
	}
	arrangement, err := types.ParseSalesArrangement(req.SalesArrangement)
	if err != nil {
		h.Error(c, apperror.NewValidation(err.Error()))
		return input, false
	}

	var commission *types.Percent
	if req.CommissionPercent != nil {
		pct, err := types.NewPercentFromString(*req.CommissionPercent)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid commissionPercent"))
			return input, false
		}
		commission = &pct
	}

	return stock.ReceiveInput{
		LocationID:        locationID,
		LWIN18:            lwin,
		LotNumber:         req.LotNumber,
		OwnerID:           ownerID,
		Quantity:          req.Quantity,
		IsPerishable:      req.IsPerishable,
		ExpiryDate:        req.ExpiryDate,
		SalesArrangement:  arrangement,
		CommissionPercent: commission,
	}, true
}

