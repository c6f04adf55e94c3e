package stock

import (
	"context"

	"vintrack/internal/core/id"
	"vintrack/internal/core/types"
)

// Repository defines persistence for stock records. ForUpdate variants take
// a pessimistic row lock and are only valid inside a transaction; every
// mutation reads through one of them so concurrent operations never race on
// the quantity invariant.
type Repository interface {
	Create(ctx context.Context, r *StockRecord) error
	GetByID(ctx context.Context, stockID id.ID) (*StockRecord, error)
	GetByIDForUpdate(ctx context.Context, stockID id.ID) (*StockRecord, error)

	// FindByKeyForUpdate returns the record for the key, or a NotFound
	// error when no record exists.
	FindByKeyForUpdate(ctx context.Context, key Key) (*StockRecord, error)

	Update(ctx context.Context, r *StockRecord) error
	Delete(ctx context.Context, stockID id.ID) error

	ListByLocation(ctx context.Context, locationID id.ID) ([]StockRecord, error)
	ListByProduct(ctx context.Context, lwin18 types.LWIN18) ([]StockRecord, error)

	// ListDuplicateGroups returns sets of records sharing one key (legacy
	// data); each group is ordered oldest first.
	ListDuplicateGroups(ctx context.Context) ([][]StockRecord, error)

	// TotalQuantity sums on-hand cases across all records, for the ledger
	// reconciliation law.
	TotalQuantity(ctx context.Context) (int, error)
}
