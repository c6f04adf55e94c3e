package picking

import (
	"context"
	"fmt"

	"vintrack/internal/core/apperror"
	appctx "vintrack/internal/core/context"
	"vintrack/internal/core/id"
	"vintrack/internal/core/tx"
	"vintrack/internal/domain/movement"
	"vintrack/internal/domain/stock"
	"vintrack/pkg/logger"
)

// Service provides the reservation and pick use cases. Reservations only
// shift cases between the available and reserved counters; total inventory
// changes solely at pick time, which is when a ledger movement is written.
type Service struct {
	reservations Repository
	stocks       stock.Repository
	movements    *movement.Service
	txManager    tx.Manager
}

// NewService creates a picking service.
func NewService(
	reservations Repository,
	stocks stock.Repository,
	movements *movement.Service,
	txManager tx.Manager,
) *Service {
	return &Service{
		reservations: reservations,
		stocks:       stocks,
		movements:    movements,
		txManager:    txManager,
	}
}

// Reserve holds qty cases of a stock record for an order. An existing
// active hold for the same order is extended rather than duplicated.
func (s *Service) Reserve(ctx context.Context, stockID id.ID, qty int, orderID id.ID) (*StockReservation, error) {
	if qty <= 0 {
		return nil, apperror.NewValidation("reservation quantity must be positive")
	}
	if id.IsNil(orderID) {
		return nil, apperror.NewValidation("order is required")
	}

	var reservation *StockReservation
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.stocks.GetByIDForUpdate(ctx, stockID)
		if err != nil {
			return err
		}
		if err := rec.Reserve(qty); err != nil {
			return err
		}
		if err := s.stocks.Update(ctx, rec); err != nil {
			return fmt.Errorf("update record: %w", err)
		}

		active, err := s.reservations.ListActiveForUpdate(ctx, stockID, orderID)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			reservation = &active[0]
			reservation.QuantityCases += qty
			reservation.touch()
			return s.reservations.Update(ctx, reservation)
		}

		reservation = newReservation(stockID, orderID, qty)
		return s.reservations.Create(ctx, reservation)
	})
	if err != nil {
		return nil, err
	}

	logger.Debug(ctx, "stock reserved",
		"stock_id", stockID,
		"order_id", orderID,
		"quantity", qty,
	)
	return reservation, nil
}

// Release gives qty held cases back to available stock. Rejects when qty
// exceeds what the order currently holds on this record.
func (s *Service) Release(ctx context.Context, stockID id.ID, qty int, orderID id.ID, reason string) error {
	if qty <= 0 {
		return apperror.NewValidation("release quantity must be positive")
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.stocks.GetByIDForUpdate(ctx, stockID)
		if err != nil {
			return err
		}

		active, err := s.reservations.ListActiveForUpdate(ctx, stockID, orderID)
		if err != nil {
			return err
		}
		held := 0
		for i := range active {
			held += active[i].QuantityCases
		}
		if held < qty {
			return apperror.NewInsufficientQuantity("Reserved for order", held, qty)
		}

		if err := drain(ctx, s.reservations, active, qty, StatusReleased); err != nil {
			return err
		}

		if err := rec.Release(qty); err != nil {
			return err
		}
		return s.stocks.Update(ctx, rec)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "reservation released",
		"stock_id", stockID,
		"order_id", orderID,
		"quantity", qty,
		"reason", reason,
	)
	return nil
}

// ConvertToPick turns up to qty cases into a hard pick for the order. The
// order's active holds are consumed first; any remainder comes straight
// from available stock, capped at what is actually there. The breakdown is
// returned so under-fulfilment is always visible to the caller.
func (s *Service) ConvertToPick(ctx context.Context, stockID id.ID, orderID id.ID, qty int) (*PickResult, error) {
	if qty <= 0 {
		return nil, apperror.NewValidation("pick quantity must be positive")
	}

	var result *PickResult
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.stocks.GetByIDForUpdate(ctx, stockID)
		if err != nil {
			return err
		}

		active, err := s.reservations.ListActiveForUpdate(ctx, stockID, orderID)
		if err != nil {
			return err
		}

		held := 0
		for i := range active {
			held += active[i].QuantityCases
		}
		reservedPicked := min(qty, held)
		if reservedPicked > 0 {
			if err := drain(ctx, s.reservations, active, reservedPicked, StatusPicked); err != nil {
				return err
			}
			if err := rec.ConsumeReserved(reservedPicked); err != nil {
				return err
			}
		}

		unreservedPicked := min(qty-reservedPicked, rec.AvailableCases)
		if unreservedPicked > 0 {
			if err := rec.RemoveAvailable(unreservedPicked); err != nil {
				return err
			}
		}

		total := reservedPicked + unreservedPicked
		result = &PickResult{
			ReservedPicked:   reservedPicked,
			UnreservedPicked: unreservedPicked,
			TotalPicked:      total,
		}
		if total == 0 {
			return nil
		}

		if rec.IsEmpty() {
			if err := s.stocks.Delete(ctx, rec.ID); err != nil {
				return fmt.Errorf("delete empty record: %w", err)
			}
		} else if err := s.stocks.Update(ctx, rec); err != nil {
			return fmt.Errorf("update record: %w", err)
		}

		m := movement.New(movement.TypePick, appctx.ActorID(ctx))
		m.LWIN18 = rec.LWIN18
		m.LotNumber = rec.LotNumber
		m.QuantityCases = total
		m.FromLocationID = &rec.LocationID
		m.OrderID = &orderID
		m.OwnerName = rec.OwnerName
		return s.movements.Record(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	if result.TotalPicked < qty {
		logger.Warn(ctx, "pick under-fulfilled",
			"stock_id", stockID,
			"order_id", orderID,
			"requested", qty,
			"picked", result.TotalPicked,
		)
	}
	return result, nil
}

// ListByOrder returns all reservations for an order.
func (s *Service) ListByOrder(ctx context.Context, orderID id.ID) ([]StockReservation, error) {
	return s.reservations.ListByOrder(ctx, orderID)
}

// ListByStock returns all reservations touching a stock record.
func (s *Service) ListByStock(ctx context.Context, stockID id.ID) ([]StockReservation, error) {
	return s.reservations.ListByStock(ctx, stockID)
}

// drain consumes qty cases from the holds oldest first. Fully-consumed
// rows flip to final; a partially-consumed row is reduced in place and
// stays active.
func drain(ctx context.Context, repo Repository, holds []StockReservation, qty int, final ReservationStatus) error {
	remaining := qty
	for i := range holds {
		if remaining == 0 {
			break
		}
		r := &holds[i]
		take := min(remaining, r.QuantityCases)
		r.QuantityCases -= take
		remaining -= take
		if r.QuantityCases == 0 {
			r.Status = final
		}
		r.touch()
		if err := repo.Update(ctx, r); err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
	}
	return nil
}
