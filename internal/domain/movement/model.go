// Package movement provides the append-only stock movement ledger.
// Movements are the system of record: they are never updated or deleted
// after creation, and every stock-affecting operation writes one inside
// the same transaction as its state change.
package movement

import (
	"time"

	"vintrack/internal/core/apperror"
	"vintrack/internal/core/id"
	"vintrack/internal/core/types"
)

// Type tags one ledger entry with the kind of stock-affecting event.
type Type string

const (
	TypeReceive           Type = "receive"
	TypePutaway           Type = "putaway"
	TypePick              Type = "pick"
	TypeTransfer          Type = "transfer"
	TypeAdjust            Type = "adjust"
	TypeCount             Type = "count"
	TypeRepackOut         Type = "repack_out"
	TypeRepackIn          Type = "repack_in"
	TypeOwnershipTransfer Type = "ownership_transfer"
	TypePalletAdd         Type = "pallet_add"
	TypePalletRemove      Type = "pallet_remove"
	TypePalletMove        Type = "pallet_move"
	TypePalletDispatch    Type = "pallet_dispatch"
	TypePalletDissolve    Type = "pallet_dissolve"
	TypePalletUnseal      Type = "pallet_unseal"
)

// StockMovement is one immutable ledger entry. One table serves every
// movement kind via the Type tag; kind-specific fields are optional and
// validated at construction, never after.
type StockMovement struct {
	ID             id.ID  `db:"id" json:"id"`
	MovementNumber string `db:"movement_number" json:"movementNumber"`
	Type           Type   `db:"movement_type" json:"movementType"`

	LWIN18    types.LWIN18 `db:"lwin18" json:"lwin18,omitempty"`
	LotNumber string       `db:"lot_number" json:"lotNumber,omitempty"`

	// QuantityCases is positive for directional movements; adjust and count
	// entries carry a signed delta instead.
	QuantityCases int `db:"quantity_cases" json:"quantityCases"`

	FromLocationID *id.ID `db:"from_location_id" json:"fromLocationId,omitempty"`
	ToLocationID   *id.ID `db:"to_location_id" json:"toLocationId,omitempty"`
	FromOwnerID    *id.ID `db:"from_owner_id" json:"fromOwnerId,omitempty"`
	ToOwnerID      *id.ID `db:"to_owner_id" json:"toOwnerId,omitempty"`

	// OwnerName is a historical snapshot taken at event time, intentionally
	// denormalized: the audit trail must reflect the name as it was, so it
	// is never re-resolved against the owner directory.
	OwnerName string `db:"owner_name" json:"ownerName,omitempty"`

	OrderID    *id.ID `db:"order_id" json:"orderId,omitempty"`
	PalletCode string `db:"pallet_code" json:"palletCode,omitempty"`
	Reason     string `db:"reason" json:"reason,omitempty"`

	// Correction marks bookkeeping-only adjust entries (duplicate-record
	// merges); they are excluded from reconciliation sums.
	Correction bool `db:"correction" json:"correction,omitempty"`

	ScannedBarcodes []string `db:"-" json:"scannedBarcodes,omitempty"`

	PerformedBy string    `db:"performed_by" json:"performedBy"`
	PerformedAt time.Time `db:"performed_at" json:"performedAt"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// New creates a movement with generated ID and timestamps. The movement
// number is assigned by the ledger service at record time.
func New(t Type, performedBy string) *StockMovement {
	now := time.Now().UTC()
	return &StockMovement{
		ID:          id.New(),
		Type:        t,
		PerformedBy: performedBy,
		PerformedAt: now,
		CreatedAt:   now,
	}
}

// Validate checks kind-specific required fields. A movement failing
// validation must never reach the ledger.
func (m *StockMovement) Validate() error {
	if m.PerformedBy == "" {
		return apperror.NewValidation("performed_by is required")
	}

	switch m.Type {
	case TypeReceive:
		return m.require(m.LWIN18 != "", m.QuantityCases > 0, m.ToLocationID != nil)
	case TypePutaway, TypeTransfer:
		return m.require(m.LWIN18 != "", m.QuantityCases > 0, m.FromLocationID != nil, m.ToLocationID != nil)
	case TypePick:
		return m.require(m.LWIN18 != "", m.QuantityCases > 0, m.FromLocationID != nil)
	case TypeAdjust, TypeCount:
		return m.require(m.LWIN18 != "", m.QuantityCases != 0, m.Reason != "")
	case TypeRepackOut:
		return m.require(m.LWIN18 != "", m.QuantityCases > 0, m.FromLocationID != nil)
	case TypeRepackIn:
		return m.require(m.LWIN18 != "", m.QuantityCases > 0, m.ToLocationID != nil)
	case TypeOwnershipTransfer:
		return m.require(m.LWIN18 != "", m.QuantityCases > 0, m.FromOwnerID != nil, m.ToOwnerID != nil)
	case TypePalletAdd, TypePalletRemove:
		return m.require(m.PalletCode != "", len(m.ScannedBarcodes) > 0)
	case TypePalletMove:
		return m.require(m.PalletCode != "", m.ToLocationID != nil)
	case TypePalletDispatch:
		return m.require(m.PalletCode != "", len(m.ScannedBarcodes) > 0)
	case TypePalletDissolve:
		return m.require(m.PalletCode != "", m.ToLocationID != nil)
	case TypePalletUnseal:
		return m.require(m.PalletCode != "", m.Reason != "")
	default:
		return apperror.NewValidation("unknown movement type").WithDetail("type", string(m.Type))
	}
}

func (m *StockMovement) require(conditions ...bool) error {
	for _, ok := range conditions {
		if !ok {
			return apperror.NewValidation("movement is missing required fields for its type").
				WithDetail("type", string(m.Type))
		}
	}
	return nil
}

// InventoryDelta returns the movement's signed effect on total tracked
// cases. Location-only and ownership-only movements are zero; adjust and
// count entries carry their own sign; correction entries are bookkeeping
// noise and contribute nothing.
func (m *StockMovement) InventoryDelta() int {
	if m.Correction {
		return 0
	}
	switch m.Type {
	case TypeReceive, TypeRepackIn:
		return m.QuantityCases
	case TypePick, TypeRepackOut, TypePalletDispatch:
		return -m.QuantityCases
	case TypeAdjust, TypeCount:
		return m.QuantityCases
	default:
		return 0
	}
}
