package count

import (
	"context"
	"fmt"
	"time"

	"vintrack/internal/core/apperror"
	appctx "vintrack/internal/core/context"
	"vintrack/internal/core/id"
	"vintrack/internal/core/tx"
	"vintrack/internal/domain/movement"
	"vintrack/internal/domain/stock"
	"vintrack/pkg/logger"
)

// Service drives the cycle count workflow. Reconciliation is the only step
// that touches the stock record store, and only for explicitly approved
// discrepancies.
type Service struct {
	repo      Repository
	stocks    stock.Repository
	movements *movement.Service
	txManager tx.Manager
	policy    *ApprovalPolicy
}

// NewService creates a cycle count service. policy may be nil when no
// auto-approval rule is configured.
func NewService(
	repo Repository,
	stocks stock.Repository,
	movements *movement.Service,
	txManager tx.Manager,
	policy *ApprovalPolicy,
) *Service {
	return &Service{
		repo:      repo,
		stocks:    stocks,
		movements: movements,
		txManager: txManager,
		policy:    policy,
	}
}

// Create snapshots every stock record at the location into a pending
// count. Expected quantities are frozen at this moment.
func (s *Service) Create(ctx context.Context, locationID id.ID) (*CycleCount, error) {
	if id.IsNil(locationID) {
		return nil, apperror.NewValidation("location is required")
	}

	var c *CycleCount
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		records, err := s.stocks.ListByLocation(ctx, locationID)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return apperror.NewValidation("location has no stock records to count")
		}

		c = newCount(locationID, appctx.ActorID(ctx))
		items := make([]CycleCountItem, 0, len(records))
		for _, r := range records {
			items = append(items, CycleCountItem{
				ID:               id.New(),
				CountID:          c.ID,
				StockID:          r.ID,
				LWIN18:           r.LWIN18,
				LotNumber:        r.LotNumber,
				ExpectedQuantity: r.QuantityCases,
			})
		}
		return s.repo.Create(ctx, c, items)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "cycle count created", "count_id", c.ID, "location_id", locationID)
	return c, nil
}

// Start moves a pending count to in progress.
func (s *Service) Start(ctx context.Context, countID id.ID) (*CycleCount, error) {
	var c *CycleCount
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.repo.GetByIDForUpdate(ctx, countID)
		if err != nil {
			return err
		}
		if err := c.requireStatus(StatusPending); err != nil {
			return err
		}
		now := time.Now().UTC()
		c.Status = StatusInProgress
		c.StartedAt = &now
		return s.repo.Update(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// RecordItem stores the physically counted quantity for one item. Items
// may be recounted while the count is in progress; the last value wins.
func (s *Service) RecordItem(ctx context.Context, countID, itemID id.ID, counted int) (*CycleCountItem, error) {
	if counted < 0 {
		return nil, apperror.NewValidation("counted quantity cannot be negative")
	}

	var item *CycleCountItem
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetByIDForUpdate(ctx, countID)
		if err != nil {
			return err
		}
		if err := c.requireStatus(StatusInProgress); err != nil {
			return err
		}

		item, err = s.repo.GetItem(ctx, countID, itemID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		item.CountedQuantity = &counted
		item.CountedBy = appctx.ActorID(ctx)
		item.CountedAt = &now
		return s.repo.UpdateItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Complete closes the counting phase. Every item must have a recorded
// count; per-item discrepancies and the header total are derived here.
func (s *Service) Complete(ctx context.Context, countID id.ID) (*CycleCount, error) {
	var c *CycleCount
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.repo.GetByIDForUpdate(ctx, countID)
		if err != nil {
			return err
		}
		if err := c.requireStatus(StatusInProgress); err != nil {
			return err
		}

		items, err := s.repo.ListItems(ctx, countID)
		if err != nil {
			return err
		}

		discrepancies := 0
		for i := range items {
			item := &items[i]
			if item.CountedQuantity == nil {
				return apperror.NewValidation("count cannot complete with uncounted items").
					WithDetail("itemId", item.ID.String())
			}
			item.Discrepancy = *item.CountedQuantity - item.ExpectedQuantity
			if item.Discrepancy != 0 {
				discrepancies++
			}
			if err := s.repo.UpdateItem(ctx, item); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		c.Status = StatusCompleted
		c.CompletedAt = &now
		c.DiscrepancyCount = discrepancies
		return s.repo.Update(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "cycle count completed",
		"count_id", c.ID,
		"discrepancies", c.DiscrepancyCount,
	)
	return c, nil
}

// AutoApprovals evaluates the configured approval policy against every
// discrepant item of a completed count and returns the item ids the policy
// clears for reconciliation.
func (s *Service) AutoApprovals(ctx context.Context, countID id.ID) ([]id.ID, error) {
	if s.policy == nil {
		return nil, nil
	}

	c, err := s.repo.GetByID(ctx, countID)
	if err != nil {
		return nil, err
	}
	if err := c.requireStatus(StatusCompleted); err != nil {
		return nil, err
	}

	items, err := s.repo.ListItems(ctx, countID)
	if err != nil {
		return nil, err
	}

	var approved []id.ID
	for _, item := range items {
		if item.CountedQuantity == nil || item.Discrepancy == 0 {
			continue
		}
		ok, err := s.policy.Approve(item.ExpectedQuantity, *item.CountedQuantity)
		if err != nil {
			return nil, err
		}
		if ok {
			approved = append(approved, item.ID)
		}
	}
	return approved, nil
}

// Reconcile applies the approved discrepancies: each underlying stock
// record is set to its counted quantity (deleted at zero) with a count
// movement logging old and new. Unapproved discrepancies stay untouched;
// there is no silent correction.
func (s *Service) Reconcile(ctx context.Context, countID id.ID, approvedItemIDs []id.ID) (*CycleCount, error) {
	approved := make(map[id.ID]bool, len(approvedItemIDs))
	for _, itemID := range approvedItemIDs {
		approved[itemID] = true
	}

	var c *CycleCount
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.repo.GetByIDForUpdate(ctx, countID)
		if err != nil {
			return err
		}
		if err := c.requireStatus(StatusCompleted); err != nil {
			return err
		}

		items, err := s.repo.ListItems(ctx, countID)
		if err != nil {
			return err
		}

		for _, item := range items {
			if !approved[item.ID] || item.Discrepancy == 0 {
				continue
			}
			if err := s.applyAdjustment(ctx, c, item); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		c.Status = StatusReconciled
		c.ReconciledAt = &now
		return s.repo.Update(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "cycle count reconciled", "count_id", c.ID)
	return c, nil
}

func (s *Service) applyAdjustment(ctx context.Context, c *CycleCount, item CycleCountItem) error {
	rec, err := s.stocks.GetByIDForUpdate(ctx, item.StockID)
	if apperror.IsNotFound(err) {
		// The record was consumed since the snapshot; nothing left to fix.
		logger.Warn(ctx, "counted stock record no longer exists",
			"count_id", c.ID,
			"stock_id", item.StockID,
		)
		return nil
	}
	if err != nil {
		return err
	}

	counted := *item.CountedQuantity
	delta := counted - rec.QuantityCases
	if delta == 0 {
		return nil
	}

	if err := rec.SetQuantity(counted); err != nil {
		return err
	}
	if rec.IsEmpty() {
		if err := s.stocks.Delete(ctx, rec.ID); err != nil {
			return fmt.Errorf("delete empty record: %w", err)
		}
	} else if err := s.stocks.Update(ctx, rec); err != nil {
		return fmt.Errorf("update record: %w", err)
	}

	m := movement.New(movement.TypeCount, appctx.ActorID(ctx))
	m.LWIN18 = item.LWIN18
	m.LotNumber = item.LotNumber
	m.QuantityCases = delta
	m.FromLocationID = &c.LocationID
	m.OwnerName = rec.OwnerName
	m.Reason = fmt.Sprintf("cycle count: expected %d, counted %d", item.ExpectedQuantity, counted)
	return s.movements.Record(ctx, m)
}

// GetByID returns a count header.
func (s *Service) GetByID(ctx context.Context, countID id.ID) (*CycleCount, error) {
	return s.repo.GetByID(ctx, countID)
}

// Items returns the items of a count.
func (s *Service) Items(ctx context.Context, countID id.ID) ([]CycleCountItem, error) {
	if _, err := s.repo.GetByID(ctx, countID); err != nil {
		return nil, err
	}
	return s.repo.ListItems(ctx, countID)
}

// ListByLocation returns counts held over a location, newest first.
func (s *Service) ListByLocation(ctx context.Context, locationID id.ID) ([]CycleCount, error) {
	return s.repo.ListByLocation(ctx, locationID)
}
