package stock

import (
	"context"
	"fmt"
	"time"

	"vintrack/internal/core/apperror"
	appctx "vintrack/internal/core/context"
	"vintrack/internal/core/id"
	"vintrack/internal/core/tx"
	"vintrack/internal/core/types"
	"vintrack/internal/domain/label"
	"vintrack/internal/domain/movement"
	"vintrack/internal/domain/owner"
	"vintrack/pkg/logger"
	"vintrack/pkg/sequence"
)

// Service provides stock record use cases. Every mutation validates
// preconditions against locked current state, applies counters and appends
// the matching ledger movement inside one transaction.
type Service struct {
	repo      Repository
	labels    *label.Service
	movements *movement.Service
	owners    owner.Directory
	sequence  *sequence.Service
	txManager tx.Manager
}

// NewService creates a stock service.
func NewService(
	repo Repository,
	labels *label.Service,
	movements *movement.Service,
	owners owner.Directory,
	seq *sequence.Service,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:      repo,
		labels:    labels,
		movements: movements,
		owners:    owners,
		sequence:  seq,
		txManager: txManager,
	}
}

// ReceiveInput describes one receipt line.
type ReceiveInput struct {
	LocationID id.ID
	LWIN18     types.LWIN18
	// LotNumber is issued when empty.
	LotNumber         string
	OwnerID           id.ID
	Quantity          int
	IsPerishable      bool
	ExpiryDate        *time.Time
	SalesArrangement  types.SalesArrangement
	CommissionPercent *types.Percent
}

func (in ReceiveInput) validate() error {
	if in.Quantity <= 0 {
		return apperror.NewValidation("receive quantity must be positive")
	}
	if id.IsNil(in.LocationID) {
		return apperror.NewValidation("location is required")
	}
	if id.IsNil(in.OwnerID) {
		return apperror.NewValidation("owner is required")
	}
	if _, err := types.ParseLWIN18(in.LWIN18.String()); err != nil {
		return apperror.NewValidation(err.Error())
	}
	if !in.SalesArrangement.Valid() {
		return apperror.NewValidation("unknown sales arrangement")
	}
	if in.SalesArrangement == types.ArrangementConsignment && in.CommissionPercent == nil {
		return apperror.NewValidation("consignment stock requires a commission percent")
	}
	return nil
}

// Receive books stock in: creates or merges the stock record, issues one
// case label per received case and appends a receive movement.
func (s *Service) Receive(ctx context.Context, in ReceiveInput) (*StockRecord, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	ownerName, err := s.owners.DisplayName(ctx, in.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("resolve owner: %w", err)
	}

	var record *StockRecord
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if in.LotNumber == "" {
			lot, err := s.sequence.Next(ctx, sequence.LotConfig(), time.Now())
			if err != nil {
				return fmt.Errorf("issue lot number: %w", err)
			}
			in.LotNumber = lot
		}

		key := Key{
			LocationID: in.LocationID,
			LWIN18:     in.LWIN18,
			LotNumber:  in.LotNumber,
			OwnerID:    in.OwnerID,
		}

		existing, err := s.repo.FindByKeyForUpdate(ctx, key)
		switch {
		case err == nil:
			if err := existing.AddStock(in.Quantity); err != nil {
				return err
			}
			if err := s.repo.Update(ctx, existing); err != nil {
				return fmt.Errorf("update record: %w", err)
			}
			record = existing
		case apperror.IsNotFound(err):
			record = NewRecord(key, ownerName, in.Quantity, in.SalesArrangement)
			record.IsPerishable = in.IsPerishable
			record.ExpiryDate = in.ExpiryDate
			record.CommissionPercent = in.CommissionPercent
			if err := s.repo.Create(ctx, record); err != nil {
				return fmt.Errorf("create record: %w", err)
			}
		default:
			return err
		}

		labels, err := s.labels.Issue(ctx, in.LWIN18, in.LotNumber, in.LocationID, in.Quantity)
		if err != nil {
			return err
		}

		m := movement.New(movement.TypeReceive, appctx.ActorID(ctx))
		m.LWIN18 = in.LWIN18
		m.LotNumber = in.LotNumber
		m.QuantityCases = in.Quantity
		m.ToLocationID = &in.LocationID
		m.ToOwnerID = &in.OwnerID
		m.OwnerName = ownerName
		m.ScannedBarcodes = barcodesOf(labels)
		return s.movements.Record(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock received",
		"stock_id", record.ID,
		"lwin18", in.LWIN18,
		"lot", in.LotNumber,
		"quantity", in.Quantity,
	)
	return record, nil
}

// BulkReceiveResult reports the outcome of one bulk line.
type BulkReceiveResult struct {
	Line    int    `json:"line"`
	StockID *id.ID `json:"stockId,omitempty"`
	Err     string `json:"error,omitempty"`
}

// BulkReceive imports many receipt lines item by item, one transaction per
// line: a failure partway through keeps already-committed lines, trading
// all-or-nothing atomicity for partial progress on imports.
func (s *Service) BulkReceive(ctx context.Context, lines []ReceiveInput) []BulkReceiveResult {
	results := make([]BulkReceiveResult, 0, len(lines))
	for i, line := range lines {
		record, err := s.Receive(ctx, line)
		res := BulkReceiveResult{Line: i + 1}
		if err != nil {
			res.Err = err.Error()
			logger.Warn(ctx, "bulk receive line failed", "line", i+1, "error", err)
		} else {
			res.StockID = &record.ID
		}
		results = append(results, res)
	}
	return results
}

// AdjustQuantity sets a record's on-hand quantity to an absolute value and
// logs the signed delta. Records adjusted to zero are deleted.
func (s *Service) AdjustQuantity(ctx context.Context, stockID id.ID, newQuantity int, reason string) (*StockRecord, error) {
	if reason == "" {
		return nil, apperror.NewValidation("adjustment reason is required")
	}

	var record *StockRecord
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetByIDForUpdate(ctx, stockID)
		if err != nil {
			return err
		}

		delta := newQuantity - r.QuantityCases
		if delta == 0 {
			record = r
			return nil
		}

		if err := r.SetQuantity(newQuantity); err != nil {
			return err
		}

		if r.IsEmpty() {
			if err := s.repo.Delete(ctx, r.ID); err != nil {
				return fmt.Errorf("delete empty record: %w", err)
			}
		} else if err := s.repo.Update(ctx, r); err != nil {
			return fmt.Errorf("update record: %w", err)
		}

		m := movement.New(movement.TypeAdjust, appctx.ActorID(ctx))
		m.LWIN18 = r.LWIN18
		m.LotNumber = r.LotNumber
		m.QuantityCases = delta
		m.FromLocationID = &r.LocationID
		m.OwnerName = r.OwnerName
		m.Reason = reason
		if err := s.movements.Record(ctx, m); err != nil {
			return err
		}

		record = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// TransferLocation moves qty cases to another location. A full-quantity
// transfer relabels the record in place; a partial transfer decrements the
// source and merges into (or creates) the destination record for the same
// product, lot and owner.
func (s *Service) TransferLocation(ctx context.Context, stockID id.ID, qty int, toLocationID id.ID) (*StockRecord, error) {
	if qty <= 0 {
		return nil, apperror.NewValidation("transfer quantity must be positive")
	}
	if id.IsNil(toLocationID) {
		return nil, apperror.NewValidation("destination location is required")
	}

	var result *StockRecord
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		source, err := s.repo.GetByIDForUpdate(ctx, stockID)
		if err != nil {
			return err
		}
		if source.LocationID == toLocationID {
			return apperror.NewValidation("source and destination locations are the same")
		}

		fromLocationID := source.LocationID
		destKey := source.Key()
		destKey.LocationID = toLocationID

		result, err = s.moveCases(ctx, source, destKey, source.OwnerName, qty)
		if err != nil {
			return err
		}

		m := movement.New(movement.TypeTransfer, appctx.ActorID(ctx))
		m.LWIN18 = source.LWIN18
		m.LotNumber = source.LotNumber
		m.QuantityCases = qty
		m.FromLocationID = &fromLocationID
		m.ToLocationID = &toLocationID
		m.OwnerName = source.OwnerName
		return s.movements.Record(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TransferOwnership moves qty cases to a new owner at the same location,
// following the same relabel-or-split rules as location transfers.
func (s *Service) TransferOwnership(ctx context.Context, stockID id.ID, newOwnerID id.ID, qty int) (*StockRecord, error) {
	if qty <= 0 {
		return nil, apperror.NewValidation("transfer quantity must be positive")
	}
	if id.IsNil(newOwnerID) {
		return nil, apperror.NewValidation("new owner is required")
	}

	newOwnerName, err := s.owners.DisplayName(ctx, newOwnerID)
	if err != nil {
		return nil, fmt.Errorf("resolve owner: %w", err)
	}

	var result *StockRecord
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		source, err := s.repo.GetByIDForUpdate(ctx, stockID)
		if err != nil {
			return err
		}
		if source.OwnerID == newOwnerID {
			return apperror.NewValidation("stock already belongs to this owner")
		}

		fromOwnerID := source.OwnerID
		destKey := source.Key()
		destKey.OwnerID = newOwnerID

		result, err = s.moveCases(ctx, source, destKey, newOwnerName, qty)
		if err != nil {
			return err
		}

		m := movement.New(movement.TypeOwnershipTransfer, appctx.ActorID(ctx))
		m.LWIN18 = source.LWIN18
		m.LotNumber = source.LotNumber
		m.QuantityCases = qty
		m.FromOwnerID = &fromOwnerID
		m.ToOwnerID = &newOwnerID
		m.OwnerName = newOwnerName
		return s.movements.Record(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// moveCases moves qty cases from source to the record identified by destKey,
// keeping one row per stock key. When the destination row exists, cases merge
// into it; when it does not and the whole unreserved quantity moves, the
// source row is relabelled in place; otherwise a new destination row is
// created. Empty source rows are deleted.
func (s *Service) moveCases(ctx context.Context, source *StockRecord, destKey Key, ownerName string, qty int) (*StockRecord, error) {
	dest, err := s.repo.FindByKeyForUpdate(ctx, destKey)
	switch {
	case err == nil:
		if err := source.RemoveAvailable(qty); err != nil {
			return nil, err
		}
		if err := dest.AddStock(qty); err != nil {
			return nil, err
		}
		if err := s.repo.Update(ctx, dest); err != nil {
			return nil, fmt.Errorf("update destination: %w", err)
		}
	case apperror.IsNotFound(err):
		if qty == source.QuantityCases && source.ReservedCases == 0 {
			source.LocationID = destKey.LocationID
			source.OwnerID = destKey.OwnerID
			source.OwnerName = ownerName
			source.touch()
			if err := s.repo.Update(ctx, source); err != nil {
				return nil, fmt.Errorf("relabel record: %w", err)
			}
			return source, nil
		}

		if err := source.RemoveAvailable(qty); err != nil {
			return nil, err
		}
		dest = NewRecord(destKey, ownerName, qty, source.SalesArrangement)
		dest.IsPerishable = source.IsPerishable
		dest.ExpiryDate = source.ExpiryDate
		dest.CommissionPercent = source.CommissionPercent
		if err := s.repo.Create(ctx, dest); err != nil {
			return nil, fmt.Errorf("create destination: %w", err)
		}
	default:
		return nil, err
	}

	if source.IsEmpty() {
		if err := s.repo.Delete(ctx, source.ID); err != nil {
			return nil, fmt.Errorf("delete empty source: %w", err)
		}
	} else if err := s.repo.Update(ctx, source); err != nil {
		return nil, fmt.Errorf("update source: %w", err)
	}
	return dest, nil
}

// MergeDuplicates folds legacy duplicate records (same stock key, multiple
// rows) into the oldest row of each group. Every deleted row is logged as
// a correction adjust movement so the trail stays reconstructable.
func (s *Service) MergeDuplicates(ctx context.Context) (int, error) {
	merged := 0
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		groups, err := s.repo.ListDuplicateGroups(ctx)
		if err != nil {
			return fmt.Errorf("list duplicates: %w", err)
		}

		for _, group := range groups {
			if len(group) < 2 {
				continue
			}

			keeper, err := s.repo.GetByIDForUpdate(ctx, group[0].ID)
			if err != nil {
				return err
			}

			for _, dup := range group[1:] {
				row, err := s.repo.GetByIDForUpdate(ctx, dup.ID)
				if err != nil {
					return err
				}
				if row.ReservedCases > 0 {
					// Reserved duplicates need manual resolution first.
					logger.Warn(ctx, "skipping duplicate with reservations", "stock_id", row.ID)
					continue
				}

				if row.QuantityCases > 0 {
					if err := keeper.AddStock(row.QuantityCases); err != nil {
						return err
					}
				}

				if err := s.repo.Delete(ctx, row.ID); err != nil {
					return fmt.Errorf("delete duplicate: %w", err)
				}

				if row.QuantityCases > 0 {
					m := movement.New(movement.TypeAdjust, appctx.ActorID(ctx))
					m.LWIN18 = row.LWIN18
					m.LotNumber = row.LotNumber
					m.QuantityCases = -row.QuantityCases
					m.FromLocationID = &row.LocationID
					m.OwnerName = row.OwnerName
					m.Reason = fmt.Sprintf("duplicate merged into %s", keeper.ID)
					m.Correction = true
					if err := s.movements.Record(ctx, m); err != nil {
						return err
					}
				}
				merged++
			}

			if err := s.repo.Update(ctx, keeper); err != nil {
				return fmt.Errorf("update keeper: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if merged > 0 {
		logger.Info(ctx, "duplicate stock records merged", "count", merged)
	}
	return merged, nil
}

// GetByID returns a stock record.
func (s *Service) GetByID(ctx context.Context, stockID id.ID) (*StockRecord, error) {
	return s.repo.GetByID(ctx, stockID)
}

// ListByLocation returns records held at a location.
func (s *Service) ListByLocation(ctx context.Context, locationID id.ID) ([]StockRecord, error) {
	return s.repo.ListByLocation(ctx, locationID)
}

// ListByProduct returns records across locations for one product.
func (s *Service) ListByProduct(ctx context.Context, lwin18 types.LWIN18) ([]StockRecord, error) {
	return s.repo.ListByProduct(ctx, lwin18)
}

// TotalQuantity implements movement.StockTotaler for reconciliation.
func (s *Service) TotalQuantity(ctx context.Context) (int, error) {
	return s.repo.TotalQuantity(ctx)
}

func barcodesOf(labels []label.CaseLabel) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		out = append(out, l.Barcode)
	}
	return out
}
