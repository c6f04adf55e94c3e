// Package pallet groups active case labels under a pallet identity with a
// build, seal, move, dispatch or dissolve lifecycle.
package pallet

import (
	"time"

	"vintrack/internal/core/apperror"
	"vintrack/internal/core/id"
)

// Status is the pallet lifecycle state.
type Status string

const (
	// StatusActive - pallet is being built, cases may be added and removed.
	StatusActive Status = "active"
	// StatusSealed - contents frozen for shipping.
	StatusSealed Status = "sealed"
	// StatusRetrieved - dispatched, cases left tracked inventory.
	StatusRetrieved Status = "retrieved"
	// StatusArchived - dissolved, cases returned to free stock.
	StatusArchived Status = "archived"
)

// Pallet is a physical aggregation of cases moved and stored as one unit.
//
// Invariant: TotalCases always equals the number of attached PalletCase
// rows with RemovedAt null.
type Pallet struct {
	ID         id.ID  `db:"id" json:"id"`
	PalletCode string `db:"pallet_code" json:"palletCode"`

	OwnerID id.ID `db:"owner_id" json:"ownerId"`
	// OwnerName is snapshotted at build time, not re-resolved afterwards.
	OwnerName string `db:"owner_name" json:"ownerName"`

	// LocationID is null once the pallet has been dispatched.
	LocationID *id.ID `db:"location_id" json:"locationId,omitempty"`

	TotalCases int    `db:"total_cases" json:"totalCases"`
	Status     Status `db:"status" json:"status"`
	IsSealed   bool   `db:"is_sealed" json:"isSealed"`

	SealedAt      *time.Time `db:"sealed_at" json:"sealedAt,omitempty"`
	DispatchNotes string     `db:"dispatch_notes" json:"dispatchNotes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// PalletCase is the join row attaching one case label to a pallet.
// RemovedAt null means the case is currently on the pallet. The barcode is
// snapshotted at attach time for movement trails and delivery notes.
type PalletCase struct {
	ID       id.ID `db:"id" json:"id"`
	PalletID id.ID `db:"pallet_id" json:"palletId"`
	CaseID   id.ID `db:"case_id" json:"caseId"`

	Barcode string `db:"barcode" json:"barcode"`

	AddedAt      time.Time  `db:"added_at" json:"addedAt"`
	RemovedAt    *time.Time `db:"removed_at" json:"removedAt,omitempty"`
	RemoveReason string     `db:"remove_reason" json:"removeReason,omitempty"`
}

// NewPallet creates an empty active pallet.
func NewPallet(code string, ownerID id.ID, ownerName string, locationID id.ID) *Pallet {
	now := time.Now().UTC()
	return &Pallet{
		ID:         id.New(),
		PalletCode: code,
		OwnerID:    ownerID,
		OwnerName:  ownerName,
		LocationID: &locationID,
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func newPalletCase(palletID id.ID, caseID id.ID, barcode string) *PalletCase {
	return &PalletCase{
		ID:       id.New(),
		PalletID: palletID,
		CaseID:   caseID,
		Barcode:  barcode,
		AddedAt:  time.Now().UTC(),
	}
}

// requireStatus returns an InvalidState error unless the pallet is in one
// of the allowed states.
func (p *Pallet) requireStatus(allowed ...Status) error {
	for _, s := range allowed {
		if p.Status == s {
			return nil
		}
	}
	required := ""
	for i, s := range allowed {
		if i > 0 {
			required += " or "
		}
		required += string(s)
	}
	return apperror.NewInvalidState("pallet", string(p.Status), required).
		WithDetail("palletCode", p.PalletCode)
}

// Seal freezes the pallet contents. Empty pallets cannot be sealed.
func (p *Pallet) Seal() error {
	if err := p.requireStatus(StatusActive); err != nil {
		return err
	}
	if p.TotalCases == 0 {
		return apperror.NewInvalidState("pallet", "empty", "at least one case").
			WithDetail("palletCode", p.PalletCode)
	}
	now := time.Now().UTC()
	p.Status = StatusSealed
	p.IsSealed = true
	p.SealedAt = &now
	p.touch()
	return nil
}

// Unseal reopens a sealed pallet for modification.
func (p *Pallet) Unseal() error {
	if err := p.requireStatus(StatusSealed); err != nil {
		return err
	}
	p.Status = StatusActive
	p.IsSealed = false
	p.SealedAt = nil
	p.touch()
	return nil
}

func (p *Pallet) addCase() {
	p.TotalCases++
	p.touch()
}

func (p *Pallet) removeCase() {
	if p.TotalCases > 0 {
		p.TotalCases--
	}
	p.touch()
}

func (p *Pallet) touch() {
	p.UpdatedAt = time.Now().UTC()
}
