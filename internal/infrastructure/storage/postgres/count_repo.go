package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"vintrack/internal/core/apperror"
	"vintrack/internal/core/id"
	"vintrack/internal/domain/count"
)

const (
	cycleCountsTable     = "cycle_counts"
	cycleCountItemsTable = "cycle_count_items"
)

var cycleCountColumns = []string{
	"id", "location_id", "status", "discrepancy_count",
	"created_by", "created_at", "started_at", "completed_at", "reconciled_at",
}

var cycleCountItemColumns = []string{
	"id", "count_id", "stock_id", "lwin18", "lot_number",
	"expected_quantity", "counted_quantity", "discrepancy",
	"counted_by", "counted_at",
}

// Compile-time check that CountRepo implements count.Repository.
var _ count.Repository = (*CountRepo)(nil)

// CountRepo implements persistence for cycle counts. Item snapshots are
// bulk-loaded through COPY at creation since a busy location can hold
// thousands of stock records.
type CountRepo struct {
	txManager *TxManager
	batch     *BatchInserter
	builder   squirrel.StatementBuilderType
}

// NewCountRepo creates a cycle count repository.
func NewCountRepo(txManager *TxManager) *CountRepo {
	return &CountRepo{
		txManager: txManager,
		batch:     NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *CountRepo) Create(ctx context.Context, c *count.CycleCount, items []count.CycleCountItem) error {
	q := r.builder.Insert(cycleCountsTable).
		Columns(cycleCountColumns...).
		Values(
			c.ID, c.LocationID, c.Status, c.DiscrepancyCount,
			c.CreatedBy, c.CreatedAt, c.StartedAt, c.CompletedAt, c.ReconciledAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert cycle count: %w", err)
	}

	rows := make([][]any, 0, len(items))
	for _, item := range items {
		rows = append(rows, []any{
			item.ID, item.CountID, item.StockID, item.LWIN18, item.LotNumber,
			item.ExpectedQuantity, item.CountedQuantity, item.Discrepancy,
			item.CountedBy, item.CountedAt,
		})
	}
	if _, err := r.batch.CopyFromSlice(ctx, cycleCountItemsTable, cycleCountItemColumns, rows); err != nil {
		return fmt.Errorf("copy cycle count items: %w", err)
	}
	return nil
}

func (r *CountRepo) GetByID(ctx context.Context, countID id.ID) (*count.CycleCount, error) {
	q := r.baseCountSelect().Where(squirrel.Eq{"id": countID})
	return r.getCount(ctx, q, countID.String())
}

func (r *CountRepo) GetByIDForUpdate(ctx context.Context, countID id.ID) (*count.CycleCount, error) {
	q := r.baseCountSelect().
		Where(squirrel.Eq{"id": countID}).
		Suffix("FOR UPDATE")
	return r.getCount(ctx, q, countID.String())
}

func (r *CountRepo) Update(ctx context.Context, c *count.CycleCount) error {
	q := r.builder.Update(cycleCountsTable).
		Set("status", c.Status).
		Set("discrepancy_count", c.DiscrepancyCount).
		Set("started_at", c.StartedAt).
		Set("completed_at", c.CompletedAt).
		Set("reconciled_at", c.ReconciledAt).
		Where(squirrel.Eq{"id": c.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update cycle count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("cycle count", c.ID.String())
	}
	return nil
}

func (r *CountRepo) ListByLocation(ctx context.Context, locationID id.ID) ([]count.CycleCount, error) {
	q := r.baseCountSelect().
		Where(squirrel.Eq{"location_id": locationID}).
		OrderBy("created_at DESC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var counts []count.CycleCount
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &counts, sql, args...); err != nil {
		return nil, fmt.Errorf("list cycle counts: %w", err)
	}
	return counts, nil
}

func (r *CountRepo) GetItem(ctx context.Context, countID, itemID id.ID) (*count.CycleCountItem, error) {
	q := r.builder.Select(cycleCountItemColumns...).
		From(cycleCountItemsTable).
		Where(squirrel.Eq{"id": itemID, "count_id": countID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var item count.CycleCountItem
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("cycle count item", itemID.String())
		}
		return nil, fmt.Errorf("get cycle count item: %w", err)
	}
	return &item, nil
}

func (r *CountRepo) UpdateItem(ctx context.Context, item *count.CycleCountItem) error {
	q := r.builder.Update(cycleCountItemsTable).
		Set("counted_quantity", item.CountedQuantity).
		Set("discrepancy", item.Discrepancy).
		Set("counted_by", item.CountedBy).
		Set("counted_at", item.CountedAt).
		Where(squirrel.Eq{"id": item.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update cycle count item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("cycle count item", item.ID.String())
	}
	return nil
}

func (r *CountRepo) ListItems(ctx context.Context, countID id.ID) ([]count.CycleCountItem, error) {
	q := r.builder.Select(cycleCountItemColumns...).
		From(cycleCountItemsTable).
		Where(squirrel.Eq{"count_id": countID}).
		OrderBy("lwin18 ASC", "lot_number ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []count.CycleCountItem
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list cycle count items: %w", err)
	}
	return items, nil
}

func (r *CountRepo) baseCountSelect() squirrel.SelectBuilder {
	return r.builder.Select(cycleCountColumns...).From(cycleCountsTable)
}

func (r *CountRepo) getCount(ctx context.Context, q squirrel.SelectBuilder, ident string) (*count.CycleCount, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var c count.CycleCount
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("cycle count", ident)
		}
		return nil, fmt.Errorf("get cycle count: %w", err)
	}
	return &c, nil
}
