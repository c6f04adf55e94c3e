package repack

import (
	"context"

	"vintrack/internal/core/id"
	"vintrack/internal/core/types"
)

// Repository defines persistence for repack records. Append-only.
type Repository interface {
	Create(ctx context.Context, r *Repack) error
	GetByID(ctx context.Context, repackID id.ID) (*Repack, error)

	// ListByProduct returns repacks where the product appears as source or
	// target, newest first.
	ListByProduct(ctx context.Context, lwin18 types.LWIN18) ([]Repack, error)
}
