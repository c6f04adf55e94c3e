package handlers

import (
	"github.com/gin-gonic/gin"

	"vintrack/internal/domain/pallet"
	"vintrack/internal/infrastructure/http/v1/dto"
)

// PalletHandler handles pallet endpoints.
type PalletHandler struct {
	*BaseHandler
	service *pallet.Service
}

// NewPalletHandler creates a new pallet handler.
func NewPalletHandler(base *BaseHandler, service *pallet.Service) *PalletHandler {
	return &PalletHandler{BaseHandler: base, service: service}
}

// Create handles POST /pallets
func (h *PalletHandler) Create(c *gin.Context) {
	var req dto.CreatePalletRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ownerID, ok := h.ParseID(c, "ownerId", req.OwnerID)
	if !ok {
		return
	}
	locationID, ok := h.ParseID(c, "locationId", req.LocationID)
	if !ok {
		return
	}

	p, err := h.service.Create(c.Request.Context(), ownerID, locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p.ID)
}

// Get handles GET /pallets/:palletId
func (h *PalletHandler) Get(c *gin.Context) {
	palletID, ok := h.PathID(c, "palletId")
	if !ok {
		return
	}

	p, err := h.service.GetByID(c.Request.Context(), palletID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// GetByCode handles GET /pallets/code/:palletCode
func (h *PalletHandler) GetByCode(c *gin.Context) {
	p, err := h.service.GetByCode(c.Request.Context(), c.Param("palletCode"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Contents handles GET /pallets/:palletId/cases
func (h *PalletHandler) Contents(c *gin.Context) {
	palletID, ok := h.PathID(c, "palletId")
	if !ok {
		return
	}

	cases, err := h.service.Contents(c.Request.Context(), palletID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(cases, len(cases)))
}

// AddCase handles POST /pallets/:palletId/cases
func (h *PalletHandler) AddCase(c *gin.Context) {
	palletID, ok := h.PathID(c, "palletId")
	if !ok {
		return
	}

	var req dto.PalletCaseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.service.AddCase(c.Request.Context(), palletID, req.Barcode)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// RemoveCase handles POST /pallets/:palletId/cases/remove
func (h *PalletHandler) RemoveCase(c *gin.Context) {
	palletID, ok := h.PathID(c, "palletId")
	if !ok {
		return
	}

	var req dto.RemovePalletCaseRequest
	if !h.BindJSON(c, &req) {
		return
	}
	caseID, ok := h.ParseID(c, "caseId", req.CaseID)
	if !ok {
		return
	}

	p, err := h.service.RemoveCase(c.Request.Context(), palletID, caseID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Seal handles POST /pallets/:palletId/seal
func (h *PalletHandler) Seal(c *gin.Context) {
	palletID, ok := h.PathID(c, "palletId")
	if !ok {
		return
	}

	p, err := h.service.Seal(c.Request.Context(), palletID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Unseal handles POST /pallets/:palletId/unseal
func (h *PalletHandler) Unseal(c *gin.Context) {
	palletID, ok := h.PathID(c, "palletId")
	if !ok {
		return
	}

	var req dto.UnsealRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.service.Unseal(c.Request.Context(), palletID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Move handles POST /pallets/:palletId/move
func (h *PalletHandler) Move(c *gin.Context) {
	palletID, ok := h.PathID(c, "palletId")
	if !ok {
		return
	}

	var req dto.MovePalletRequest
	if !h.BindJSON(c, &req) {
		return
	}
	toLocationID, ok := h.ParseID(c, "toLocationId", req.ToLocationID)
	if !ok {
		return
	}

	p, err := h.service.Move(c.Request.Context(), palletID, toLocationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Dispatch handles POST /pallets/:palletId/dispatch
func (h *PalletHandler) Dispatch(c *gin.Context) {
	palletID, ok := h.PathID(c, "palletId")
	if !ok {
		return
	}

	var req dto.DispatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	summary, err := h.service.Dispatch(c.Request.Context(), palletID, req.Notes)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, summary)
}

// Dissolve handles POST /pallets/:palletId/dissolve
func (h *PalletHandler) Dissolve(c *gin.Context) {
	palletID, ok := h.PathID(c, "palletId")
	if !ok {
		return
	}

	var req dto.DissolveRequest
	if !h.BindJSON(c, &req) {
		return
	}
	toLocationID, ok := h.ParseID(c, "toLocationId", req.ToLocationID)
	if !ok {
		return
	}

	p, err := h.service.Dissolve(c.Request.Context(), palletID, toLocationID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}
