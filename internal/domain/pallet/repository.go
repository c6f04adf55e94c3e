package pallet

import (
	"context"
	"time"

	"vintrack/internal/core/id"
)

// Repository defines persistence for pallets and their case join rows.
type Repository interface {
	Create(ctx context.Context, p *Pallet) error
	GetByID(ctx context.Context, palletID id.ID) (*Pallet, error)
	GetByIDForUpdate(ctx context.Context, palletID id.ID) (*Pallet, error)
	GetByCode(ctx context.Context, code string) (*Pallet, error)
	Update(ctx context.Context, p *Pallet) error
	ListByLocation(ctx context.Context, locationID id.ID) ([]Pallet, error)

	AddCase(ctx context.Context, pc *PalletCase) error

	// FindAttachedByCase returns the not-yet-removed join row holding the
	// case on any pallet, or NotFound when the case is loose.
	FindAttachedByCase(ctx context.Context, caseID id.ID) (*PalletCase, error)

	// GetAttachedCase returns the not-yet-removed join row for the case on
	// this pallet, or NotFound.
	GetAttachedCase(ctx context.Context, palletID id.ID, caseID id.ID) (*PalletCase, error)

	MarkCaseRemoved(ctx context.Context, palletCaseID id.ID, reason string, at time.Time) error

	// ListAttachedCases returns the currently attached cases, oldest added
	// first.
	ListAttachedCases(ctx context.Context, palletID id.ID) ([]PalletCase, error)

	// CountAttachedCases counts join rows with removed_at null, for the
	// totalCases invariant check.
	CountAttachedCases(ctx context.Context, palletID id.ID) (int, error)
}
