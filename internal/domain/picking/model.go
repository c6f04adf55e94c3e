// Package picking provides order reservations and their conversion into
// hard picks against the stock record store.
package picking

import (
	"time"

	"vintrack/internal/core/id"
)

// ReservationStatus is the reservation lifecycle state.
type ReservationStatus string

const (
	// StatusActive - cases are held for the order.
	StatusActive ReservationStatus = "active"
	// StatusPicked - the hold was fully consumed by a pick.
	StatusPicked ReservationStatus = "picked"
	// StatusReleased - the hold was given back to available stock.
	StatusReleased ReservationStatus = "released"
)

// StockReservation is a soft hold of cases on one stock record for one
// order. The sum of active holds on a record never exceeds its reserved
// counter.
type StockReservation struct {
	ID      id.ID `db:"id" json:"id"`
	StockID id.ID `db:"stock_id" json:"stockId"`
	OrderID id.ID `db:"order_id" json:"orderId"`

	QuantityCases int               `db:"quantity_cases" json:"quantityCases"`
	Status        ReservationStatus `db:"status" json:"status"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

func newReservation(stockID, orderID id.ID, qty int) *StockReservation {
	now := time.Now().UTC()
	return &StockReservation{
		ID:            id.New(),
		StockID:       stockID,
		OrderID:       orderID,
		QuantityCases: qty,
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (r *StockReservation) touch() {
	r.UpdatedAt = time.Now().UTC()
}

// PickResult breaks a pick down by how the cases were satisfied. Callers
// get the actual picked total back; an under-fulfilled pick is reported,
// never silently rounded up.
type PickResult struct {
	ReservedPicked   int `json:"reservedPicked"`
	UnreservedPicked int `json:"unreservedPicked"`
	TotalPicked      int `json:"totalPicked"`
}
