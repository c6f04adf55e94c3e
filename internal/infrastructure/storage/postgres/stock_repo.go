package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"vintrack/internal/core/apperror"
	"vintrack/internal/core/id"
	"vintrack/internal/core/types"
	"vintrack/internal/domain/stock"
)

const stockRecordsTable = "stock_records"

var stockColumns = []string{
	"id", "location_id", "lwin18", "lot_number", "owner_id", "owner_name",
	"quantity_cases", "reserved_cases", "available_cases",
	"is_perishable", "expiry_date", "sales_arrangement", "commission_percent",
	"created_at", "updated_at",
}

// Compile-time check that StockRepo implements stock.Repository.
var _ stock.Repository = (*StockRepo)(nil)

// StockRepo implements stock.Repository.
type StockRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

// NewStockRepo creates a stock record repository.
func NewStockRepo(txManager *TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *StockRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(stockColumns...).From(stockRecordsTable)
}

func (r *StockRepo) Create(ctx context.Context, rec *stock.StockRecord) error {
	q := r.builder.Insert(stockRecordsTable).
		Columns(stockColumns...).
		Values(
			rec.ID, rec.LocationID, rec.LWIN18, rec.LotNumber, rec.OwnerID, rec.OwnerName,
			rec.QuantityCases, rec.ReservedCases, rec.AvailableCases,
			rec.IsPerishable, rec.ExpiryDate, rec.SalesArrangement, rec.CommissionPercent,
			rec.CreatedAt, rec.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert stock record: %w", err)
	}
	return nil
}

func (r *StockRepo) GetByID(ctx context.Context, stockID id.ID) (*stock.StockRecord, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": stockID}), stockID.String())
}

func (r *StockRepo) GetByIDForUpdate(ctx context.Context, stockID id.ID) (*stock.StockRecord, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": stockID}).
		Suffix("FOR UPDATE")
	return r.getOne(ctx, q, stockID.String())
}

func (r *StockRepo) FindByKeyForUpdate(ctx context.Context, key stock.Key) (*stock.StockRecord, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{
			"location_id": key.LocationID,
			"lwin18":      key.LWIN18,
			"lot_number":  key.LotNumber,
			"owner_id":    key.OwnerID,
		}).
		OrderBy("created_at ASC").
		Limit(1).
		Suffix("FOR UPDATE")
	return r.getOne(ctx, q, key.LotNumber)
}

func (r *StockRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, ident string) (*stock.StockRecord, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rec stock.StockRecord
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock record", ident)
		}
		return nil, fmt.Errorf("get stock record: %w", err)
	}
	return &rec, nil
}

func (r *StockRepo) Update(ctx context.Context, rec *stock.StockRecord) error {
	q := r.builder.Update(stockRecordsTable).
		Set("location_id", rec.LocationID).
		Set("owner_id", rec.OwnerID).
		Set("owner_name", rec.OwnerName).
		Set("quantity_cases", rec.QuantityCases).
		Set("reserved_cases", rec.ReservedCases).
		Set("available_cases", rec.AvailableCases).
		Set("updated_at", rec.UpdatedAt).
		Where(squirrel.Eq{"id": rec.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update stock record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("stock record", rec.ID.String())
	}
	return nil
}

func (r *StockRepo) Delete(ctx context.Context, stockID id.ID) error {
	q := r.builder.Delete(stockRecordsTable).Where(squirrel.Eq{"id": stockID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete stock record: %w", err)
	}
	return nil
}

func (r *StockRepo) ListByLocation(ctx context.Context, locationID id.ID) ([]stock.StockRecord, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"location_id": locationID}).
		OrderBy("lwin18 ASC", "lot_number ASC")
	return r.list(ctx, q)
}

func (r *StockRepo) ListByProduct(ctx context.Context, lwin18 types.LWIN18) ([]stock.StockRecord, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"lwin18": lwin18}).
		OrderBy("location_id ASC", "lot_number ASC")
	return r.list(ctx, q)
}

func (r *StockRepo) list(ctx context.Context, q squirrel.SelectBuilder) ([]stock.StockRecord, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []stock.StockRecord
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &records, sql, args...); err != nil {
		return nil, fmt.Errorf("list stock records: %w", err)
	}
	return records, nil
}

// ListDuplicateGroups returns sets of records sharing one stock key,
// oldest first inside each group. Only legacy data produces duplicates;
// normal operation merges on write.
func (r *StockRepo) ListDuplicateGroups(ctx context.Context) ([][]stock.StockRecord, error) {
	sql := `
		SELECT ` + joinColumns("s", stockColumns) + `
		FROM ` + stockRecordsTable + ` s
		JOIN (
			SELECT location_id, lwin18, lot_number, owner_id
			FROM ` + stockRecordsTable + `
			GROUP BY location_id, lwin18, lot_number, owner_id
			HAVING COUNT(*) > 1
		) d USING (location_id, lwin18, lot_number, owner_id)
		ORDER BY s.location_id, s.lwin18, s.lot_number, s.owner_id, s.created_at ASC
	`

	var rows []stock.StockRecord
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql); err != nil {
		return nil, fmt.Errorf("list duplicate stock records: %w", err)
	}

	var groups [][]stock.StockRecord
	for _, rec := range rows {
		n := len(groups)
		if n > 0 && groups[n-1][0].Key() == rec.Key() {
			groups[n-1] = append(groups[n-1], rec)
			continue
		}
		groups = append(groups, []stock.StockRecord{rec})
	}
	return groups, nil
}

func (r *StockRepo) TotalQuantity(ctx context.Context) (int, error) {
	sql := `SELECT COALESCE(SUM(quantity_cases), 0) FROM ` + stockRecordsTable

	var total int
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum stock quantities: %w", err)
	}
	return total, nil
}

// joinColumns prefixes each column with a table alias.
func joinColumns(alias string, columns []string) string {
	out := ""
	for i, c := range columns {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + c
	}
	return out
}
