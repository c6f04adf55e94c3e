// Package count provides the cycle count workflow: snapshot a location,
// record physical counts, surface discrepancies and reconcile approved
// ones back into the stock record store.
package count

import (
	"time"

	"vintrack/internal/core/apperror"
	"vintrack/internal/core/id"
	"vintrack/internal/core/types"
)

// Status is the cycle count lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusReconciled Status = "reconciled"
)

// CycleCount is one counting exercise over a location. Items are
// snapshotted at creation so the expected quantities are fixed even while
// normal operations continue elsewhere.
type CycleCount struct {
	ID         id.ID  `db:"id" json:"id"`
	LocationID id.ID  `db:"location_id" json:"locationId"`
	Status     Status `db:"status" json:"status"`

	DiscrepancyCount int `db:"discrepancy_count" json:"discrepancyCount"`

	CreatedBy    string     `db:"created_by" json:"createdBy"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	StartedAt    *time.Time `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt  *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	ReconciledAt *time.Time `db:"reconciled_at" json:"reconciledAt,omitempty"`
}

// CycleCountItem is one stock record inside a count. Discrepancy is
// derived at completion time as counted minus expected.
type CycleCountItem struct {
	ID      id.ID `db:"id" json:"id"`
	CountID id.ID `db:"count_id" json:"countId"`
	StockID id.ID `db:"stock_id" json:"stockId"`

	LWIN18    types.LWIN18 `db:"lwin18" json:"lwin18"`
	LotNumber string       `db:"lot_number" json:"lotNumber"`

	ExpectedQuantity int  `db:"expected_quantity" json:"expectedQuantity"`
	CountedQuantity  *int `db:"counted_quantity" json:"countedQuantity,omitempty"`
	Discrepancy      int  `db:"discrepancy" json:"discrepancy"`

	CountedBy string     `db:"counted_by" json:"countedBy,omitempty"`
	CountedAt *time.Time `db:"counted_at" json:"countedAt,omitempty"`
}

func newCount(locationID id.ID, createdBy string) *CycleCount {
	return &CycleCount{
		ID:         id.New(),
		LocationID: locationID,
		Status:     StatusPending,
		CreatedBy:  createdBy,
		CreatedAt:  time.Now().UTC(),
	}
}

func (c *CycleCount) requireStatus(required Status) error {
	if c.Status != required {
		return apperror.NewInvalidState("cycle count", string(c.Status), string(required)).
			WithDetail("countId", c.ID.String())
	}
	return nil
}
