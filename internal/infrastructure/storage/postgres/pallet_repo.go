package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"vintrack/internal/core/apperror"
	"vintrack/internal/core/id"
	"vintrack/internal/domain/pallet"
)

const (
	palletsTable     = "pallets"
	palletCasesTable = "pallet_cases"
)

var palletColumns = []string{
	"id", "pallet_code", "owner_id", "owner_name", "location_id",
	"total_cases", "status", "is_sealed", "sealed_at", "dispatch_notes",
	"created_at", "updated_at",
}

var palletCaseColumns = []string{
	"id", "pallet_id", "case_id", "barcode",
	"added_at", "removed_at", "remove_reason",
}

// Compile-time check that PalletRepo implements pallet.Repository.
var _ pallet.Repository = (*PalletRepo)(nil)

// PalletRepo implements persistence for pallets and their case join rows.
type PalletRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

// NewPalletRepo creates a pallet repository.
func NewPalletRepo(txManager *TxManager) *PalletRepo {
	return &PalletRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *PalletRepo) Create(ctx context.Context, p *pallet.Pallet) error {
	q := r.builder.Insert(palletsTable).
		Columns(palletColumns...).
		Values(
			p.ID, p.PalletCode, p.OwnerID, p.OwnerName, p.LocationID,
			p.TotalCases, p.Status, p.IsSealed, p.SealedAt, p.DispatchNotes,
			p.CreatedAt, p.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert pallet: %w", err)
	}
	return nil
}

func (r *PalletRepo) GetByID(ctx context.Context, palletID id.ID) (*pallet.Pallet, error) {
	q := r.basePalletSelect().Where(squirrel.Eq{"id": palletID})
	return r.getPallet(ctx, q, palletID.String())
}

func (r *PalletRepo) GetByIDForUpdate(ctx context.Context, palletID id.ID) (*pallet.Pallet, error) {
	q := r.basePalletSelect().
		Where(squirrel.Eq{"id": palletID}).
		Suffix("FOR UPDATE")
	return r.getPallet(ctx, q, palletID.String())
}

func (r *PalletRepo) GetByCode(ctx context.Context, code string) (*pallet.Pallet, error) {
	q := r.basePalletSelect().Where(squirrel.Eq{"pallet_code": code})
	return r.getPallet(ctx, q, code)
}

func (r *PalletRepo) Update(ctx context.Context, p *pallet.Pallet) error {
	q := r.builder.Update(palletsTable).
		Set("location_id", p.LocationID).
		Set("total_cases", p.TotalCases).
		Set("status", p.Status).
		Set("is_sealed", p.IsSealed).
		Set("sealed_at", p.SealedAt).
		Set("dispatch_notes", p.DispatchNotes).
		Set("updated_at", p.UpdatedAt).
		Where(squirrel.Eq{"id": p.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update pallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("pallet", p.ID.String())
	}
	return nil
}

func (r *PalletRepo) ListByLocation(ctx context.Context, locationID id.ID) ([]pallet.Pallet, error) {
	q := r.basePalletSelect().
		Where(squirrel.Eq{"location_id": locationID}).
		OrderBy("pallet_code ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var pallets []pallet.Pallet
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &pallets, sql, args...); err != nil {
		return nil, fmt.Errorf("list pallets: %w", err)
	}
	return pallets, nil
}

func (r *PalletRepo) AddCase(ctx context.Context, pc *pallet.PalletCase) error {
	q := r.builder.Insert(palletCasesTable).
		Columns(palletCaseColumns...).
		Values(
			pc.ID, pc.PalletID, pc.CaseID, pc.Barcode,
			pc.AddedAt, pc.RemovedAt, pc.RemoveReason,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert pallet case: %w", err)
	}
	return nil
}

func (r *PalletRepo) FindAttachedByCase(ctx context.Context, caseID id.ID) (*pallet.PalletCase, error) {
	q := r.baseCaseSelect().
		Where(squirrel.Eq{"case_id": caseID, "removed_at": nil})
	return r.getCase(ctx, q, caseID.String())
}

func (r *PalletRepo) GetAttachedCase(ctx context.Context, palletID id.ID, caseID id.ID) (*pallet.PalletCase, error) {
	q := r.baseCaseSelect().
		Where(squirrel.Eq{"pallet_id": palletID, "case_id": caseID, "removed_at": nil})
	return r.getCase(ctx, q, caseID.String())
}

func (r *PalletRepo) MarkCaseRemoved(ctx context.Context, palletCaseID id.ID, reason string, at time.Time) error {
	q := r.builder.Update(palletCasesTable).
		Set("removed_at", at).
		Set("remove_reason", reason).
		Where(squirrel.Eq{"id": palletCaseID, "removed_at": nil})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark pallet case removed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("pallet case", palletCaseID.String())
	}
	return nil
}

func (r *PalletRepo) ListAttachedCases(ctx context.Context, palletID id.ID) ([]pallet.PalletCase, error) {
	q := r.baseCaseSelect().
		Where(squirrel.Eq{"pallet_id": palletID, "removed_at": nil}).
		OrderBy("added_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var cases []pallet.PalletCase
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &cases, sql, args...); err != nil {
		return nil, fmt.Errorf("list pallet cases: %w", err)
	}
	return cases, nil
}

func (r *PalletRepo) CountAttachedCases(ctx context.Context, palletID id.ID) (int, error) {
	sql := `SELECT COUNT(*) FROM ` + palletCasesTable + ` WHERE pallet_id = $1 AND removed_at IS NULL`

	var count int
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, palletID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pallet cases: %w", err)
	}
	return count, nil
}

func (r *PalletRepo) basePalletSelect() squirrel.SelectBuilder {
	return r.builder.Select(palletColumns...).From(palletsTable)
}

func (r *PalletRepo) baseCaseSelect() squirrel.SelectBuilder {
	return r.builder.Select(palletCaseColumns...).From(palletCasesTable)
}

func (r *PalletRepo) getPallet(ctx context.Context, q squirrel.SelectBuilder, ident string) (*pallet.Pallet, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p pallet.Pallet
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("pallet", ident)
		}
		return nil, fmt.Errorf("get pallet: %w", err)
	}
	return &p, nil
}

func (r *PalletRepo) getCase(ctx context.Context, q squirrel.SelectBuilder, ident string) (*pallet.PalletCase, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var pc pallet.PalletCase
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &pc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("pallet case", ident)
		}
		return nil, fmt.Errorf("get pallet case: %w", err)
	}
	return &pc, nil
}
