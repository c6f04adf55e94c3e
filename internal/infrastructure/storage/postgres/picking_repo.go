package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"vintrack/internal/core/apperror"
	"vintrack/internal/core/id"
	"vintrack/internal/domain/picking"
)

const stockReservationsTable = "stock_reservations"

var reservationColumns = []string{
	"id", "stock_id", "order_id", "quantity_cases", "status",
	"created_at", "updated_at",
}

// Compile-time check that PickingRepo implements picking.Repository.
var _ picking.Repository = (*PickingRepo)(nil)

// PickingRepo implements persistence for stock reservations.
type PickingRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

// NewPickingRepo creates a reservation repository.
func NewPickingRepo(txManager *TxManager) *PickingRepo {
	return &PickingRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *PickingRepo) Create(ctx context.Context, res *picking.StockReservation) error {
	q := r.builder.Insert(stockReservationsTable).
		Columns(reservationColumns...).
		Values(
			res.ID, res.StockID, res.OrderID, res.QuantityCases, res.Status,
			res.CreatedAt, res.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (r *PickingRepo) Update(ctx context.Context, res *picking.StockReservation) error {
	q := r.builder.Update(stockReservationsTable).
		Set("quantity_cases", res.QuantityCases).
		Set("status", res.Status).
		Set("updated_at", res.UpdatedAt).
		Where(squirrel.Eq{"id": res.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("reservation", res.ID.String())
	}
	return nil
}

func (r *PickingRepo) ListActiveForUpdate(ctx context.Context, stockID, orderID id.ID) ([]picking.StockReservation, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{
			"stock_id": stockID,
			"order_id": orderID,
			"status":   picking.StatusActive,
		}).
		OrderBy("created_at ASC").
		Suffix("FOR UPDATE")
	return r.list(ctx, q)
}

func (r *PickingRepo) ListByOrder(ctx context.Context, orderID id.ID) ([]picking.StockReservation, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("created_at ASC")
	return r.list(ctx, q)
}

func (r *PickingRepo) ListByStock(ctx context.Context, stockID id.ID) ([]picking.StockReservation, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"stock_id": stockID}).
		OrderBy("created_at ASC")
	return r.list(ctx, q)
}

func (r *PickingRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(reservationColumns...).From(stockReservationsTable)
}

func (r *PickingRepo) list(ctx context.Context, q squirrel.SelectBuilder) ([]picking.StockReservation, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var reservations []picking.StockReservation
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &reservations, sql, args...); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return reservations, nil
}
