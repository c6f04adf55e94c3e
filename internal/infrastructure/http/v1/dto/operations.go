package dto

// --- Pallets ---

// CreatePalletRequest builds a new empty pallet.
type CreatePalletRequest struct {
	OwnerID    string `json:"ownerId" binding:"required"`
	LocationID string `json:"locationId" binding:"required"`
}

// PalletCaseRequest attaches a scanned case to a pallet.
type PalletCaseRequest struct {
	Barcode string `json:"barcode" binding:"required"`
}

// RemovePalletCaseRequest detaches a case with a reason.
type RemovePalletCaseRequest struct {
	CaseID string `json:"caseId" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// UnsealRequest reopens a sealed pallet.
type UnsealRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// MovePalletRequest relocates a whole pallet.
type MovePalletRequest struct {
	ToLocationID string `json:"toLocationId" binding:"required"`
}

// DispatchRequest ships a sealed pallet out.
type DispatchRequest struct {
	Notes string `json:"notes"`
}

// DissolveRequest breaks a pallet back into loose cases.
type DissolveRequest struct {
	ToLocationID string `json:"toLocationId" binding:"required"`
	Reason       string `json:"reason" binding:"required"`
}

// --- Picking ---

// ReserveRequest places a hold on stock for an order.
type ReserveRequest struct {
	StockID  string `json:"stockId" binding:"required"`
	OrderID  string `json:"orderId" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

// ReleaseRequest returns held cases to available.
type ReleaseRequest struct {
	StockID  string `json:"stockId" binding:"required"`
	OrderID  string `json:"orderId" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Reason   string `json:"reason"`
}

// PickRequest converts holds (and spill-over available stock) into a pick.
type PickRequest struct {
	StockID  string `json:"stockId" binding:"required"`
	OrderID  string `json:"orderId" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

// --- Repack ---

// RepackRequest subdivides cases into a smaller case configuration.
type RepackRequest struct {
	StockID          string `json:"stockId" binding:"required"`
	SourceQuantity   int    `json:"sourceQuantity" binding:"required,min=1"`
	TargetCaseConfig int    `json:"targetCaseConfig" binding:"required,min=1"`
}

// --- Cycle counts ---

// CreateCountRequest opens a cycle count for a location.
type CreateCountRequest struct {
	LocationID string `json:"locationId" binding:"required"`
}

// RecordCountItemRequest records one counted line.
type RecordCountItemRequest struct {
	CountedQuantity int `json:"countedQuantity" binding:"min=0"`
}

// ReconcileRequest applies approved discrepancies to stock.
type ReconcileRequest struct {
	ApprovedItemIDs []string `json:"approvedItemIds"`
}

// --- Labels ---

// RelocateLabelRequest moves a single scanned case.
type RelocateLabelRequest struct {
	ToLocationID string `json:"toLocationId" binding:"required"`
}
