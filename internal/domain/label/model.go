// Package label provides the case label registry: one row per physical
// case, the most granular trackable unit in the warehouse.
package label

import (
	"time"

	"vintrack/internal/core/id"
	"vintrack/internal/core/types"
)

// CaseLabel identifies one physical case by its barcode. Barcodes are
// globally unique, immutable once issued and never reused: a case leaving
// the tracked flow is deactivated, not deleted.
type CaseLabel struct {
	ID      id.ID  `db:"id" json:"id"`
	Barcode string `db:"barcode" json:"barcode"`

	LWIN18    types.LWIN18 `db:"lwin18" json:"lwin18"`
	LotNumber string       `db:"lot_number" json:"lotNumber"`

	CurrentLocationID id.ID `db:"current_location_id" json:"currentLocationId"`
	IsActive          bool  `db:"is_active" json:"isActive"`

	IssuedAt      time.Time  `db:"issued_at" json:"issuedAt"`
	DeactivatedAt *time.Time `db:"deactivated_at" json:"deactivatedAt,omitempty"`
}

// newLabel creates an active label for a freshly issued barcode.
func newLabel(barcode string, lwin18 types.LWIN18, lotNumber string, locationID id.ID) CaseLabel {
	return CaseLabel{
		ID:                id.New(),
		Barcode:           barcode,
		LWIN18:            lwin18,
		LotNumber:         lotNumber,
		CurrentLocationID: locationID,
		IsActive:          true,
		IssuedAt:          time.Now().UTC(),
	}
}
