// Package stock provides the stock record store: per (location, product,
// lot, owner) case counts with the three-way quantity invariant.
package stock

import (
	"time"

	"vintrack/internal/core/apperror"
	"vintrack/internal/core/id"
	"vintrack/internal/core/types"
)

// Key is the identity of a stock record. One row exists per key; merges
// keep it that way when legacy duplicates appear.
type Key struct {
	LocationID id.ID
	LWIN18     types.LWIN18
	LotNumber  string
	OwnerID    id.ID
}

// StockRecord tracks on-hand cases for one stock key.
//
// Invariant, checked after every mutation:
//
//	QuantityCases == ReservedCases + AvailableCases, all three >= 0
type StockRecord struct {
	ID id.ID `db:"id" json:"id"`

	LocationID id.ID        `db:"location_id" json:"locationId"`
	LWIN18     types.LWIN18 `db:"lwin18" json:"lwin18"`
	LotNumber  string       `db:"lot_number" json:"lotNumber"`
	OwnerID    id.ID        `db:"owner_id" json:"ownerId"`

	// OwnerName is denormalized at receipt time for display and movement
	// snapshots.
	OwnerName string `db:"owner_name" json:"ownerName"`

	QuantityCases  int `db:"quantity_cases" json:"quantityCases"`
	ReservedCases  int `db:"reserved_cases" json:"reservedCases"`
	AvailableCases int `db:"available_cases" json:"availableCases"`

	IsPerishable bool       `db:"is_perishable" json:"isPerishable"`
	ExpiryDate   *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`

	SalesArrangement  types.SalesArrangement `db:"sales_arrangement" json:"salesArrangement"`
	CommissionPercent *types.Percent         `db:"commission_percent" json:"commissionPercent,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewRecord creates a stock record for its first receipt. All received
// stock starts available.
func NewRecord(key Key, ownerName string, quantity int, arrangement types.SalesArrangement) *StockRecord {
	now := time.Now().UTC()
	return &StockRecord{
		ID:               id.New(),
		LocationID:       key.LocationID,
		LWIN18:           key.LWIN18,
		LotNumber:        key.LotNumber,
		OwnerID:          key.OwnerID,
		OwnerName:        ownerName,
		QuantityCases:    quantity,
		AvailableCases:   quantity,
		SalesArrangement: arrangement,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Key returns the record's identity tuple.
func (r *StockRecord) Key() Key {
	return Key{
		LocationID: r.LocationID,
		LWIN18:     r.LWIN18,
		LotNumber:  r.LotNumber,
		OwnerID:    r.OwnerID,
	}
}

// CheckInvariant verifies the three-way quantity invariant. Mutating
// methods call it before returning; repositories call it before writing.
func (r *StockRecord) CheckInvariant() error {
	if r.QuantityCases < 0 || r.ReservedCases < 0 || r.AvailableCases < 0 {
		return apperror.NewInternal(nil).
			WithDetail("invariant", "negative counter").
			WithDetail("stock_id", r.ID)
	}
	if r.QuantityCases != r.ReservedCases+r.AvailableCases {
		return apperror.NewInternal(nil).
			WithDetail("invariant", "quantity != reserved + available").
			WithDetail("stock_id", r.ID)
	}
	return nil
}

// AddStock increases on-hand and available by qty (receipt or merge-in).
func (r *StockRecord) AddStock(qty int) error {
	if qty <= 0 {
		return apperror.NewValidation("quantity must be positive")
	}
	r.QuantityCases += qty
	r.AvailableCases += qty
	r.touch()
	return r.CheckInvariant()
}

// Reserve moves qty from available to reserved.
func (r *StockRecord) Reserve(qty int) error {
	if qty <= 0 {
		return apperror.NewValidation("quantity must be positive")
	}
	if r.AvailableCases < qty {
		return apperror.NewInsufficientQuantity("Available", r.AvailableCases, qty).
			WithDetail("stock_id", r.ID)
	}
	r.AvailableCases -= qty
	r.ReservedCases += qty
	r.touch()
	return r.CheckInvariant()
}

// Release moves qty from reserved back to available.
func (r *StockRecord) Release(qty int) error {
	if qty <= 0 {
		return apperror.NewValidation("quantity must be positive")
	}
	if r.ReservedCases < qty {
		return apperror.NewInsufficientQuantity("Reserved", r.ReservedCases, qty).
			WithDetail("stock_id", r.ID)
	}
	r.ReservedCases -= qty
	r.AvailableCases += qty
	r.touch()
	return r.CheckInvariant()
}

// RemoveAvailable takes qty out of available stock (pick, transfer-out,
// repack-out).
func (r *StockRecord) RemoveAvailable(qty int) error {
	if qty <= 0 {
		return apperror.NewValidation("quantity must be positive")
	}
	if r.AvailableCases < qty {
		return apperror.NewInsufficientQuantity("Available", r.AvailableCases, qty).
			WithDetail("stock_id", r.ID)
	}
	r.AvailableCases -= qty
	r.QuantityCases -= qty
	r.touch()
	return r.CheckInvariant()
}

// ConsumeReserved takes qty out of reserved stock. Available was already
// reduced when the reservation was placed, so only reserved and on-hand
// move here.
func (r *StockRecord) ConsumeReserved(qty int) error {
	if qty <= 0 {
		return apperror.NewValidation("quantity must be positive")
	}
	if r.ReservedCases < qty {
		return apperror.NewInsufficientQuantity("Reserved", r.ReservedCases, qty).
			WithDetail("stock_id", r.ID)
	}
	r.ReservedCases -= qty
	r.QuantityCases -= qty
	r.touch()
	return r.CheckInvariant()
}

// SetQuantity sets on-hand to an absolute value, preserving reservations.
// Used by adjustments and cycle count reconciliation. Rejects values below
// the currently reserved count: a count cannot make promised stock vanish
// without the reservation being released first.
func (r *StockRecord) SetQuantity(newQuantity int) error {
	if newQuantity < 0 {
		return apperror.NewValidation("quantity cannot be negative")
	}
	if newQuantity < r.ReservedCases {
		return apperror.NewInvalidState("stock record",
			"reserved above new quantity", "reservations released first").
			WithDetail("reserved", r.ReservedCases).
			WithDetail("new_quantity", newQuantity)
	}
	r.QuantityCases = newQuantity
	r.AvailableCases = newQuantity - r.ReservedCases
	r.touch()
	return r.CheckInvariant()
}

// IsEmpty reports whether the record holds no stock and can be removed.
func (r *StockRecord) IsEmpty() bool {
	return r.QuantityCases == 0
}

func (r *StockRecord) touch() {
	r.UpdatedAt = time.Now().UTC()
}
