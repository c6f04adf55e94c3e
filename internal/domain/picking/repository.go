package picking

import (
	"context"

	"vintrack/internal/core/id"
)

// Repository defines persistence for stock reservations.
type Repository interface {
	Create(ctx context.Context, r *StockReservation) error
	Update(ctx context.Context, r *StockReservation) error

	// ListActiveForUpdate returns the active reservations for the stock
	// and order pair, oldest first, row-locked.
	ListActiveForUpdate(ctx context.Context, stockID, orderID id.ID) ([]StockReservation, error)

	ListByOrder(ctx context.Context, orderID id.ID) ([]StockReservation, error)
	ListByStock(ctx context.Context, stockID id.ID) ([]StockReservation, error)
}
