package movement

import (
	"context"
	"time"

	"vintrack/internal/core/id"
	"vintrack/internal/core/types"
)

// Repository defines persistence for the movement ledger.
// The ledger is append-only: there is deliberately no update or delete.
type Repository interface {
	Create(ctx context.Context, m *StockMovement) error
	GetByNumber(ctx context.Context, number string) (*StockMovement, error)
	List(ctx context.Context, filter Filter) ([]StockMovement, error)

	// SumDeltas returns the ledger-wide inventory delta per the
	// reconciliation law: receipts minus picks/dispatches plus signed
	// adjustments, correction entries excluded.
	SumDeltas(ctx context.Context) (int, error)
}

// Filter narrows movement history queries.
type Filter struct {
	Type       *Type
	LWIN18     *types.LWIN18
	LocationID *id.ID
	OrderID    *id.ID
	PalletCode *string
	FromDate   *time.Time
	ToDate     *time.Time

	Limit  int
	Offset int
}
