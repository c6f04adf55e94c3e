// Package owner provides the read-only boundary to the partner/ownership
// directory. The ledger only resolves id to display name, at event time,
// to denormalize onto stock records and movements.
package owner

import (
	"context"

	"vintrack/internal/core/id"
)

// Directory resolves owner display names.
type Directory interface {
	DisplayName(ctx context.Context, ownerID id.ID) (string, error)
}
