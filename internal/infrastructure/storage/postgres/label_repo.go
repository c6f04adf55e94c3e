package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"vintrack/internal/core/apperror"
	"vintrack/internal/core/id"
	"vintrack/internal/core/types"
	"vintrack/internal/domain/label"
)

const caseLabelsTable = "case_labels"

var caseLabelColumns = []string{
	"id", "barcode", "lwin18", "lot_number",
	"current_location_id", "is_active", "issued_at", "deactivated_at",
}

// Compile-time check that LabelRepo implements label.Repository.
var _ label.Repository = (*LabelRepo)(nil)

// LabelRepo implements the case label registry store. Batch issuance
// goes through the COPY protocol since receiving and repack can create
// hundreds of labels at once.
type LabelRepo struct {
	txManager *TxManager
	batch     *BatchInserter
	builder   squirrel.StatementBuilderType
}

// NewLabelRepo creates a case label repository.
func NewLabelRepo(txManager *TxManager) *LabelRepo {
	return &LabelRepo{
		txManager: txManager,
		batch:     NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *LabelRepo) CreateBatch(ctx context.Context, labels []label.CaseLabel) error {
	if len(labels) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(labels))
	for _, l := range labels {
		rows = append(rows, []any{
			l.ID, l.Barcode, l.LWIN18, l.LotNumber,
			l.CurrentLocationID, l.IsActive, l.IssuedAt, l.DeactivatedAt,
		})
	}

	if _, err := r.batch.CopyFromSlice(ctx, caseLabelsTable, caseLabelColumns, rows); err != nil {
		return fmt.Errorf("copy case labels: %w", err)
	}
	return nil
}

func (r *LabelRepo) GetByBarcode(ctx context.Context, barcode string) (*label.CaseLabel, error) {
	q := r.baseSelect().Where(squirrel.Eq{"barcode": barcode})
	return r.getOne(ctx, q, barcode)
}

func (r *LabelRepo) GetByID(ctx context.Context, labelID id.ID) (*label.CaseLabel, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": labelID})
	return r.getOne(ctx, q, labelID.String())
}

func (r *LabelRepo) UpdateLocation(ctx context.Context, labelID id.ID, locationID id.ID) error {
	q := r.builder.Update(caseLabelsTable).
		Set("current_location_id", locationID).
		Where(squirrel.Eq{"id": labelID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update label location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("case label", labelID.String())
	}
	return nil
}

func (r *LabelRepo) Deactivate(ctx context.Context, barcodes []string) error {
	if len(barcodes) == 0 {
		return nil
	}

	q := r.builder.Update(caseLabelsTable).
		Set("is_active", false).
		Set("deactivated_at", time.Now().UTC()).
		Where(squirrel.Eq{"barcode": barcodes}).
		Where(squirrel.Eq{"is_active": true})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("deactivate labels: %w", err)
	}
	return nil
}

func (r *LabelRepo) ListActive(ctx context.Context, lwin18 types.LWIN18, locationID id.ID, limit int) ([]label.CaseLabel, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{
			"lwin18":              lwin18,
			"current_location_id": locationID,
			"is_active":           true,
		}).
		OrderBy("issued_at ASC", "barcode ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var labels []label.CaseLabel
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &labels, sql, args...); err != nil {
		return nil, fmt.Errorf("list active labels: %w", err)
	}
	return labels, nil
}

func (r *LabelRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(caseLabelColumns...).From(caseLabelsTable)
}

func (r *LabelRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, ident string) (*label.CaseLabel, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var l label.CaseLabel
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &l, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("case label", ident)
		}
		return nil, fmt.Errorf("get case label: %w", err)
	}
	return &l, nil
}
