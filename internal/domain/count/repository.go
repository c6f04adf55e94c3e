package count

import (
	"context"

	"vintrack/internal/core/id"
)

// Repository defines persistence for cycle counts and their items.
type Repository interface {
	Create(ctx context.Context, c *CycleCount, items []CycleCountItem) error
	GetByID(ctx context.Context, countID id.ID) (*CycleCount, error)
	GetByIDForUpdate(ctx context.Context, countID id.ID) (*CycleCount, error)
	Update(ctx context.Context, c *CycleCount) error
	ListByLocation(ctx context.Context, locationID id.ID) ([]CycleCount, error)

	GetItem(ctx context.Context, countID, itemID id.ID) (*CycleCountItem, error)
	UpdateItem(ctx context.Context, item *CycleCountItem) error
	ListItems(ctx context.Context, countID id.ID) ([]CycleCountItem, error)
}
