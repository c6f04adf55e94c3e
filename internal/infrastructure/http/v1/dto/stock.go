package dto

import (
	"time"
)

// ReceiveRequest books one line of stock in.
type ReceiveRequest struct {
	LocationID string `json:"locationId" binding:"required"`
	LWIN18     string `json:"lwin18" binding:"required"`
	// LotNumber is issued automatically when omitted.
	LotNumber         string     `json:"lotNumber"`
	OwnerID           string     `json:"ownerId" binding:"required"`
	Quantity          int        `json:"quantity" binding:"required,min=1"`
	IsPerishable      bool       `json:"isPerishable"`
	ExpiryDate        *time.Time `json:"expiryDate"`
	SalesArrangement  string     `json:"salesArrangement" binding:"required"`
	CommissionPercent *string    `json:"commissionPercent"`
}

// BulkReceiveRequest books multiple receipt lines, each independently.
type BulkReceiveRequest struct {
	Lines []ReceiveRequest `json:"lines" binding:"required,min=1,dive"`
}


// AdjustQuantityRequest sets a stock record to an absolute quantity.
type AdjustQuantityRequest struct {
	NewQuantity int    `json:"newQuantity" binding:"min=0"`
	Reason      string `json:"reason" binding:"required"`
}

// TransferLocationRequest moves cases to another location.
type TransferLocationRequest struct {
	Quantity     int    `json:"quantity" binding:"required,min=1"`
	ToLocationID string `json:"toLocationId" binding:"required"`
}

// TransferOwnershipRequest moves cases to another owner.
type TransferOwnershipRequest struct {
	Quantity   int    `json:"quantity" binding:"required,min=1"`
	NewOwnerID string `json:"newOwnerId" binding:"required"`
}

// MergeDuplicatesResponse reports how many duplicate rows were merged.
type MergeDuplicatesResponse struct {
	MergedRows int `json:"mergedRows"`
}
