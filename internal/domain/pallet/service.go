package pallet

import (
	"context"
	"fmt"
	"time"

	"vintrack/internal/core/apperror"
	appctx "vintrack/internal/core/context"
	"vintrack/internal/core/id"
	"vintrack/internal/core/tx"
	"vintrack/internal/domain/label"
	"vintrack/internal/domain/movement"
	"vintrack/internal/domain/owner"
	"vintrack/internal/domain/stock"
	"vintrack/pkg/logger"
	"vintrack/pkg/sequence"
)

// DispatchSummary describes a dispatched pallet for the delivery note.
type DispatchSummary struct {
	PalletCode   string    `json:"palletCode"`
	OwnerName    string    `json:"ownerName"`
	TotalCases   int       `json:"totalCases"`
	CaseBarcodes []string  `json:"caseBarcodes"`
	Notes        string    `json:"notes,omitempty"`
	DispatchedBy string    `json:"dispatchedBy"`
	DispatchedAt time.Time `json:"dispatchedAt"`
}

// DeliveryNoteRenderer turns a dispatch summary into a delivery document.
// Rendering happens after the dispatch transaction commits and is best
// effort: a rendering failure never rolls the dispatch back.
type DeliveryNoteRenderer interface {
	RenderDeliveryNote(ctx context.Context, summary DispatchSummary) error
}

// Service provides the pallet lifecycle: build, seal, move, dispatch or
// dissolve. Every state change locks the pallet row and appends its
// movement in the same transaction.
type Service struct {
	repo      Repository
	stocks    stock.Repository
	labels    *label.Service
	movements *movement.Service
	owners    owner.Directory
	sequence  *sequence.Service
	txManager tx.Manager
	renderer  DeliveryNoteRenderer
}

// NewService creates a pallet service. renderer may be nil when no
// delivery note output is configured.
func NewService(
	repo Repository,
	stocks stock.Repository,
	labels *label.Service,
	movements *movement.Service,
	owners owner.Directory,
	seq *sequence.Service,
	txManager tx.Manager,
	renderer DeliveryNoteRenderer,
) *Service {
	return &Service{
		repo:      repo,
		stocks:    stocks,
		labels:    labels,
		movements: movements,
		owners:    owners,
		sequence:  seq,
		txManager: txManager,
		renderer:  renderer,
	}
}

// Create builds a new empty pallet at the location.
func (s *Service) Create(ctx context.Context, ownerID id.ID, locationID id.ID) (*Pallet, error) {
	if id.IsNil(ownerID) {
		return nil, apperror.NewValidation("owner is required")
	}
	if id.IsNil(locationID) {
		return nil, apperror.NewValidation("location is required")
	}

	ownerName, err := s.owners.DisplayName(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("resolve owner: %w", err)
	}

	var p *Pallet
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		code, err := s.sequence.Next(ctx, sequence.PalletConfig(), time.Now())
		if err != nil {
			return fmt.Errorf("issue pallet code: %w", err)
		}
		p = NewPallet(code, ownerID, ownerName, locationID)
		return s.repo.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "pallet created", "pallet_code", p.PalletCode, "owner", ownerName)
	return p, nil
}

// AddCase attaches a scanned case to an active pallet. A case sits on at
// most one pallet at a time.
func (s *Service) AddCase(ctx context.Context, palletID id.ID, barcode string) (*Pallet, error) {
	var p *Pallet
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetByIDForUpdate(ctx, palletID)
		if err != nil {
			return err
		}
		if err := p.requireStatus(StatusActive); err != nil {
			return err
		}

		l, err := s.labels.GetByBarcode(ctx, barcode)
		if err != nil {
			return err
		}
		if !l.IsActive {
			return apperror.NewInvalidState("case label", "inactive", "active").
				WithDetail("barcode", barcode)
		}

		attached, err := s.repo.FindAttachedByCase(ctx, l.ID)
		switch {
		case err == nil:
			return apperror.NewConflict("case is already on a pallet").
				WithDetail("barcode", barcode).
				WithDetail("palletId", attached.PalletID.String())
		case apperror.IsNotFound(err):
		default:
			return err
		}

		if err := s.repo.AddCase(ctx, newPalletCase(p.ID, l.ID, barcode)); err != nil {
			return fmt.Errorf("attach case: %w", err)
		}
		p.addCase()
		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("update pallet: %w", err)
		}

		m := movement.New(movement.TypePalletAdd, appctx.ActorID(ctx))
		m.PalletCode = p.PalletCode
		m.QuantityCases = 1
		m.ScannedBarcodes = []string{barcode}
		m.OwnerName = p.OwnerName
		return s.movements.Record(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// RemoveCase detaches a case from an active pallet.
func (s *Service) RemoveCase(ctx context.Context, palletID id.ID, caseID id.ID, reason string) (*Pallet, error) {
	if reason == "" {
		return nil, apperror.NewValidation("removal reason is required")
	}

	var p *Pallet
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetByIDForUpdate(ctx, palletID)
		if err != nil {
			return err
		}
		if err := p.requireStatus(StatusActive); err != nil {
			return err
		}

		pc, err := s.repo.GetAttachedCase(ctx, palletID, caseID)
		if err != nil {
			return err
		}

		if err := s.repo.MarkCaseRemoved(ctx, pc.ID, reason, time.Now().UTC()); err != nil {
			return fmt.Errorf("detach case: %w", err)
		}
		p.removeCase()
		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("update pallet: %w", err)
		}

		m := movement.New(movement.TypePalletRemove, appctx.ActorID(ctx))
		m.PalletCode = p.PalletCode
		m.QuantityCases = 1
		m.ScannedBarcodes = []string{pc.Barcode}
		m.Reason = reason
		m.OwnerName = p.OwnerName
		return s.movements.Record(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Seal freezes a non-empty active pallet for shipping.
func (s *Service) Seal(ctx context.Context, palletID id.ID) (*Pallet, error) {
	var p *Pallet
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetByIDForUpdate(ctx, palletID)
		if err != nil {
			return err
		}
		if err := p.Seal(); err != nil {
			return err
		}
		return s.repo.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "pallet sealed", "pallet_code", p.PalletCode, "total_cases", p.TotalCases)
	return p, nil
}

// Unseal reopens a sealed pallet. The reason goes on the audit trail.
func (s *Service) Unseal(ctx context.Context, palletID id.ID, reason string) (*Pallet, error) {
	if reason == "" {
		return nil, apperror.NewValidation("unseal reason is required")
	}

	var p *Pallet
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetByIDForUpdate(ctx, palletID)
		if err != nil {
			return err
		}
		if err := p.Unseal(); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}

		m := movement.New(movement.TypePalletUnseal, appctx.ActorID(ctx))
		m.PalletCode = p.PalletCode
		m.Reason = reason
		m.OwnerName = p.OwnerName
		return s.movements.Record(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Move relocates an active or sealed pallet to another warehouse location.
func (s *Service) Move(ctx context.Context, palletID id.ID, toLocationID id.ID) (*Pallet, error) {
	if id.IsNil(toLocationID) {
		return nil, apperror.NewValidation("destination location is required")
	}

	var p *Pallet
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetByIDForUpdate(ctx, palletID)
		if err != nil {
			return err
		}
		if err := p.requireStatus(StatusActive, StatusSealed); err != nil {
			return err
		}

		p.LocationID = &toLocationID
		p.touch()
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}

		m := movement.New(movement.TypePalletMove, appctx.ActorID(ctx))
		m.PalletCode = p.PalletCode
		m.QuantityCases = p.TotalCases
		m.ToLocationID = &toLocationID
		m.OwnerName = p.OwnerName
		return s.movements.Record(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Dispatch ships a sealed pallet out of the warehouse: every attached
// label is permanently deactivated, the cases' stock records are
// consumed and the pallet leaves location tracking. Stock totals and
// the ledger drop by the same case count in one transaction, keeping
// the reconciliation sum balanced. Returns the summary handed to the
// delivery note renderer.
func (s *Service) Dispatch(ctx context.Context, palletID id.ID, notes string) (*DispatchSummary, error) {
	var summary *DispatchSummary
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByIDForUpdate(ctx, palletID)
		if err != nil {
			return err
		}
		if err := p.requireStatus(StatusSealed); err != nil {
			return err
		}
		if p.TotalCases == 0 {
			return apperror.NewInvalidState("pallet", "empty", "at least one case").
				WithDetail("palletCode", p.PalletCode)
		}

		cases, err := s.repo.ListAttachedCases(ctx, p.ID)
		if err != nil {
			return err
		}
		barcodes := caseBarcodes(cases)

		// Resolve stock keys while the labels are still active.
		keys, err := s.caseStockKeys(ctx, p.OwnerID, cases)
		if err != nil {
			return err
		}
		for key, qty := range keys {
			if err := s.consumeStock(ctx, key, qty); err != nil {
				return err
			}
		}

		if err := s.labels.Deactivate(ctx, barcodes); err != nil {
			return err
		}

		now := time.Now().UTC()
		p.Status = StatusRetrieved
		p.LocationID = nil
		p.DispatchNotes = notes
		p.touch()
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}

		m := movement.New(movement.TypePalletDispatch, appctx.ActorID(ctx))
		m.PalletCode = p.PalletCode
		m.QuantityCases = p.TotalCases
		m.ScannedBarcodes = barcodes
		m.Reason = notes
		m.OwnerName = p.OwnerName
		if err := s.movements.Record(ctx, m); err != nil {
			return err
		}

		summary = &DispatchSummary{
			PalletCode:   p.PalletCode,
			OwnerName:    p.OwnerName,
			TotalCases:   p.TotalCases,
			CaseBarcodes: barcodes,
			Notes:        notes,
			DispatchedBy: appctx.ActorID(ctx),
			DispatchedAt: now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "pallet dispatched",
		"pallet_code", summary.PalletCode,
		"total_cases", summary.TotalCases,
	)

	if s.renderer != nil {
		if err := s.renderer.RenderDeliveryNote(ctx, *summary); err != nil {
			logger.Warn(ctx, "delivery note rendering failed",
				"pallet_code", summary.PalletCode,
				"error", err,
			)
		}
	}
	return summary, nil
}

// Dissolve breaks a pallet apart: every attached case returns to free
// stock at the destination location, its stock record moves along with
// its label, and the pallet is archived. Dispatched pallets carry no
// cases anymore and cannot be dissolved.
func (s *Service) Dissolve(ctx context.Context, palletID id.ID, toLocationID id.ID, reason string) (*Pallet, error) {
	if id.IsNil(toLocationID) {
		return nil, apperror.NewValidation("destination location is required")
	}
	if reason == "" {
		return nil, apperror.NewValidation("dissolve reason is required")
	}

	var p *Pallet
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetByIDForUpdate(ctx, palletID)
		if err != nil {
			return err
		}
		if err := p.requireStatus(StatusActive, StatusSealed); err != nil {
			return err
		}

		cases, err := s.repo.ListAttachedCases(ctx, p.ID)
		if err != nil {
			return err
		}

		// Resolve stock keys before the labels move.
		keys, err := s.caseStockKeys(ctx, p.OwnerID, cases)
		if err != nil {
			return err
		}
		for key, qty := range keys {
			if key.LocationID == toLocationID {
				continue
			}
			if err := s.relocateStock(ctx, key, qty, toLocationID); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		for _, pc := range cases {
			if err := s.repo.MarkCaseRemoved(ctx, pc.ID, reason, now); err != nil {
				return fmt.Errorf("detach case: %w", err)
			}
			if _, err := s.labels.Relocate(ctx, pc.Barcode, toLocationID); err != nil {
				return err
			}
		}

		p.Status = StatusArchived
		p.IsSealed = false
		p.SealedAt = nil
		p.TotalCases = 0
		p.touch()
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}

		m := movement.New(movement.TypePalletDissolve, appctx.ActorID(ctx))
		m.PalletCode = p.PalletCode
		m.QuantityCases = len(cases)
		m.ToLocationID = &toLocationID
		m.Reason = reason
		m.ScannedBarcodes = caseBarcodes(cases)
		m.OwnerName = p.OwnerName
		return s.movements.Record(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "pallet dissolved", "pallet_code", p.PalletCode)
	return p, nil
}

// GetByID returns a pallet.
func (s *Service) GetByID(ctx context.Context, palletID id.ID) (*Pallet, error) {
	return s.repo.GetByID(ctx, palletID)
}

// GetByCode returns a pallet by its scanned code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Pallet, error) {
	return s.repo.GetByCode(ctx, code)
}

// Contents returns the currently attached cases.
func (s *Service) Contents(ctx context.Context, palletID id.ID) ([]PalletCase, error) {
	if _, err := s.repo.GetByID(ctx, palletID); err != nil {
		return nil, err
	}
	return s.repo.ListAttachedCases(ctx, palletID)
}

// CheckInvariant verifies the denormalized total against the join rows.
func (s *Service) CheckInvariant(ctx context.Context, palletID id.ID) error {
	p, err := s.repo.GetByID(ctx, palletID)
	if err != nil {
		return err
	}
	attached, err := s.repo.CountAttachedCases(ctx, palletID)
	if err != nil {
		return err
	}
	if p.TotalCases != attached {
		return apperror.NewInternal(fmt.Errorf("pallet case count out of sync")).
			WithDetail("palletCode", p.PalletCode).
			WithDetail("totalCases", p.TotalCases).
			WithDetail("attached", attached)
	}
	return nil
}

// caseStockKeys groups attached cases into stock record keys by reading
// each label's product, lot and current location. Cases on a pallet
// belong to the pallet's owner.
func (s *Service) caseStockKeys(ctx context.Context, ownerID id.ID, cases []PalletCase) (map[stock.Key]int, error) {
	keys := make(map[stock.Key]int, len(cases))
	for _, pc := range cases {
		l, err := s.labels.GetByBarcode(ctx, pc.Barcode)
		if err != nil {
			return nil, err
		}
		key := stock.Key{
			LocationID: l.CurrentLocationID,
			LWIN18:     l.LWIN18,
			LotNumber:  l.LotNumber,
			OwnerID:    ownerID,
		}
		keys[key]++
	}
	return keys, nil
}

// consumeStock takes qty cases out of the keyed record. Cases reserved
// for an order cannot leave on a pallet; that surfaces as an
// insufficient-quantity error here. Empty records are deleted.
func (s *Service) consumeStock(ctx context.Context, key stock.Key, qty int) error {
	rec, err := s.stocks.FindByKeyForUpdate(ctx, key)
	if err != nil {
		return err
	}
	if err := rec.RemoveAvailable(qty); err != nil {
		return err
	}
	if rec.IsEmpty() {
		if err := s.stocks.Delete(ctx, rec.ID); err != nil {
			return fmt.Errorf("delete empty record: %w", err)
		}
		return nil
	}
	return s.stocks.Update(ctx, rec)
}

// relocateStock moves qty cases of the keyed record to the destination
// location, merging into an existing row there when one exists.
func (s *Service) relocateStock(ctx context.Context, key stock.Key, qty int, toLocationID id.ID) error {
	source, err := s.stocks.FindByKeyForUpdate(ctx, key)
	if err != nil {
		return err
	}
	if err := source.RemoveAvailable(qty); err != nil {
		return err
	}

	destKey := key
	destKey.LocationID = toLocationID
	dest, err := s.stocks.FindByKeyForUpdate(ctx, destKey)
	switch {
	case err == nil:
		if err := dest.AddStock(qty); err != nil {
			return err
		}
		if err := s.stocks.Update(ctx, dest); err != nil {
			return fmt.Errorf("update destination: %w", err)
		}
	case apperror.IsNotFound(err):
		dest = stock.NewRecord(destKey, source.OwnerName, qty, source.SalesArrangement)
		dest.IsPerishable = source.IsPerishable
		dest.ExpiryDate = source.ExpiryDate
		dest.CommissionPercent = source.CommissionPercent
		if err := s.stocks.Create(ctx, dest); err != nil {
			return fmt.Errorf("create destination: %w", err)
		}
	default:
		return err
	}

	if source.IsEmpty() {
		if err := s.stocks.Delete(ctx, source.ID); err != nil {
			return fmt.Errorf("delete empty source: %w", err)
		}
		return nil
	}
	if err := s.stocks.Update(ctx, source); err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	return nil
}

func caseBarcodes(cases []PalletCase) []string {
	out := make([]string, 0, len(cases))
	for _, pc := range cases {
		out = append(out, pc.Barcode)
	}
	return out
}
