package repack

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
	"vintrack/internal/domain/stock"
	"vintrack/pkg/logger"
)

// Service performs repacks: it splits cases of one configuration into a
// smaller configuration, swapping stock, labels and ledger entries in one
// transaction.
type Service struct {
	repo      Repository
	stocks    stock.Repository
	labels    *label.Service
	movements *movement.Service
	txManager tx.Manager
}

// NewService creates a repack service.
func NewService(
	repo Repository,
	stocks stock.Repository,
	labels *label.Service,
	movements *movement.Service,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:      repo,
		stocks:    stocks,
		labels:    labels,
		movements: movements,
		txManager: txManager,
	}
}

// Repack subdivides sourceQty cases of the stock record into
// targetCaseConfig bottles per case. The bottle count is conserved: the
// operation is rejected unless the source bottles divide evenly into
// target cases. Consolidation (a larger target config) is not part of
// this flow.
func (s *Service) Repack(ctx context.Context, stockID id.ID, sourceQty int, targetCaseConfig int) (*Repack, error) {
	if sourceQty <= 0 {
		return nil, apperror.NewValidation("source quantity must be positive")
	}
	if targetCaseConfig <= 0 {
		return nil, apperror.NewValidation("target case configuration must be positive")
	}

	var record *Repack
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		source, err := s.stocks.GetByIDForUpdate(ctx, stockID)
		if err != nil {
			return err
		}

		sourceConfig := source.LWIN18.CaseConfig()
		if targetCaseConfig >= sourceConfig {
			return apperror.NewConservation(
				fmt.Sprintf("repack only subdivides: target config %d must be smaller than source config %d",
					targetCaseConfig, sourceConfig))
		}

		totalBottles := sourceQty * sourceConfig
		if totalBottles%targetCaseConfig != 0 {
			return apperror.NewConservation(
				fmt.Sprintf("%d bottles do not divide evenly into cases of %d",
					totalBottles, targetCaseConfig))
		}
		targetQty := totalBottles / targetCaseConfig

		targetLWIN, err := source.LWIN18.WithCaseConfig(targetCaseConfig)
		if err != nil {
			return apperror.NewValidation(err.Error())
		}

		sourceLWIN := source.LWIN18
		locationID := source.LocationID
		lotNumber := source.LotNumber
		ownerName := source.OwnerName

		// Old labels go first: picking them proves sourceQty physical
		// cases actually sit at this location.
		oldLabels, err := s.labels.PickActive(ctx, sourceLWIN, locationID, sourceQty)
		if err != nil {
			return err
		}

		if err := source.RemoveAvailable(sourceQty); err != nil {
			return err
		}
		if source.IsEmpty() {
			if err := s.stocks.Delete(ctx, source.ID); err != nil {
				return fmt.Errorf("delete empty source: %w", err)
			}
		} else if err := s.stocks.Update(ctx, source); err != nil {
			return fmt.Errorf("update source: %w", err)
		}

		targetKey := stock.Key{
			LocationID: locationID,
			LWIN18:     targetLWIN,
			LotNumber:  lotNumber,
			OwnerID:    source.OwnerID,
		}
		if err := s.addToTarget(ctx, targetKey, source, targetQty); err != nil {
			return err
		}

		oldBarcodes := make([]string, 0, len(oldLabels))
		for _, l := range oldLabels {
			oldBarcodes = append(oldBarcodes, l.Barcode)
		}
		if err := s.labels.Deactivate(ctx, oldBarcodes); err != nil {
			return err
		}
		newLabels, err := s.labels.Issue(ctx, targetLWIN, lotNumber, locationID, targetQty)
		if err != nil {
			return err
		}
		newBarcodes := make([]string, 0, len(newLabels))
		for _, l := range newLabels {
			newBarcodes = append(newBarcodes, l.Barcode)
		}

		out := movement.New(movement.TypeRepackOut, appctx.ActorID(ctx))
		out.LWIN18 = sourceLWIN
		out.LotNumber = lotNumber
		out.QuantityCases = sourceQty
		out.FromLocationID = &locationID
		out.OwnerName = ownerName
		out.ScannedBarcodes = oldBarcodes
		if err := s.movements.Record(ctx, out); err != nil {
			return err
		}

		in := movement.New(movement.TypeRepackIn, appctx.ActorID(ctx))
		in.LWIN18 = targetLWIN
		in.LotNumber = lotNumber
		in.QuantityCases = targetQty
		in.ToLocationID = &locationID
		in.OwnerName = ownerName
		in.ScannedBarcodes = newBarcodes
		if err := s.movements.Record(ctx, in); err != nil {
			return err
		}

		record = &Repack{
			ID:               id.New(),
			SourceLWIN18:     sourceLWIN,
			SourceCaseConfig: sourceConfig,
			SourceQuantity:   sourceQty,
			TargetLWIN18:     targetLWIN,
			TargetCaseConfig: targetCaseConfig,
			TargetQuantity:   targetQty,
			TotalBottles:     totalBottles,
			LocationID:       locationID,
			LotNumber:        lotNumber,
			PerformedBy:      appctx.ActorID(ctx),
			PerformedAt:      time.Now().UTC(),
		}
		return s.repo.Create(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock repacked",
		"source_lwin18", record.SourceLWIN18,
		"target_lwin18", record.TargetLWIN18,
		"source_quantity", record.SourceQuantity,
		"target_quantity", record.TargetQuantity,
	)
	return record, nil
}

// History returns repacks touching a product identity.
func (s *Service) History(ctx context.Context, lwin18 types.LWIN18) ([]Repack, error) {
	return s.repo.ListByProduct(ctx, lwin18)
}

// GetByID returns one repack record.
func (s *Service) GetByID(ctx context.Context, repackID id.ID) (*Repack, error) {
	return s.repo.GetByID(ctx, repackID)
}

func (s *Service) addToTarget(ctx context.Context, key stock.Key, source *stock.StockRecord, qty int) error {
	target, err := s.stocks.FindByKeyForUpdate(ctx, key)
	switch {
	case err == nil:
		if err := target.AddStock(qty); err != nil {
			return err
		}
		if err := s.stocks.Update(ctx, target); err != nil {
			return fmt.Errorf("update target: %w", err)
		}
		return nil
	case apperror.IsNotFound(err):
		target = stock.NewRecord(key, source.OwnerName, qty, source.SalesArrangement)
		target.IsPerishable = source.IsPerishable
		target.ExpiryDate = source.ExpiryDate
		target.CommissionPercent = source.CommissionPercent
		if err := s.stocks.Create(ctx, target); err != nil {
			return fmt.Errorf("create target: %w", err)
		}
		return nil
	default:
		return err
	}
}
