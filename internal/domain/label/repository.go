package label

import (
	"context"

	"vintrack/internal/core/id"
	"vintrack/internal/core/types"
)

// Repository defines persistence for case labels.
type Repository interface {
	CreateBatch(ctx context.Context, labels []CaseLabel) error
	GetByBarcode(ctx context.Context, barcode string) (*CaseLabel, error)
	GetByID(ctx context.Context, labelID id.ID) (*CaseLabel, error)

	UpdateLocation(ctx context.Context, labelID id.ID, locationID id.ID) error

	// Deactivate marks the labels inactive and stamps deactivated_at.
	// Already-inactive labels are left untouched.
	Deactivate(ctx context.Context, barcodes []string) error

	// ListActive returns active labels for a product at a location, oldest
	// issued first, up to limit.
	ListActive(ctx context.Context, lwin18 types.LWIN18, locationID id.ID, limit int) ([]CaseLabel, error)
}
