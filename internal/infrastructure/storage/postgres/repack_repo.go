package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"vintrack/internal/core/apperror"
	"vintrack/internal/core/id"
	"vintrack/internal/core/types"
	"vintrack/internal/domain/repack"
)

const repacksTable = "repacks"

var repackColumns = []string{
	"id", "source_lwin18", "source_case_config", "source_quantity",
	"target_lwin18", "target_case_config", "target_quantity",
	"total_bottles", "location_id", "lot_number",
	"performed_by", "performed_at",
}

// Compile-time check that RepackRepo implements repack.Repository.
var _ repack.Repository = (*RepackRepo)(nil)

// RepackRepo implements the append-only repack record store.
type RepackRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

// NewRepackRepo creates a repack repository.
func NewRepackRepo(txManager *TxManager) *RepackRepo {
	return &RepackRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *RepackRepo) Create(ctx context.Context, rp *repack.Repack) error {
	q := r.builder.Insert(repacksTable).
		Columns(repackColumns...).
		Values(
			rp.ID, rp.SourceLWIN18, rp.SourceCaseConfig, rp.SourceQuantity,
			rp.TargetLWIN18, rp.TargetCaseConfig, rp.TargetQuantity,
			rp.TotalBottles, rp.LocationID, rp.LotNumber,
			rp.PerformedBy, rp.PerformedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert repack: %w", err)
	}
	return nil
}

func (r *RepackRepo) GetByID(ctx context.Context, repackID id.ID) (*repack.Repack, error) {
	q := r.builder.Select(repackColumns...).
		From(repacksTable).
		Where(squirrel.Eq{"id": repackID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rp repack.Repack
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &rp, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("repack", repackID.String())
		}
		return nil, fmt.Errorf("get repack: %w", err)
	}
	return &rp, nil
}

func (r *RepackRepo) ListByProduct(ctx context.Context, lwin18 types.LWIN18) ([]repack.Repack, error) {
	q := r.builder.Select(repackColumns...).
		From(repacksTable).
		Where(squirrel.Or{
			squirrel.Eq{"source_lwin18": lwin18},
			squirrel.Eq{"target_lwin18": lwin18},
		}).
		OrderBy("performed_at DESC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var repacks []repack.Repack
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &repacks, sql, args...); err != nil {
		return nil, fmt.Errorf("list repacks: %w", err)
	}
	return repacks, nil
}
