package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"vintrack/internal/core/apperror"
	"vintrack/internal/core/id"
	"vintrack/internal/domain/owner"
)

const ownersTable = "owners"

// Compile-time check that OwnerRepo implements owner.Directory.
var _ owner.Directory = (*OwnerRepo)(nil)

// OwnerRepo resolves owner display names from the partner directory
// table. Read-only: the directory is maintained by a separate system.
type OwnerRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

// NewOwnerRepo creates an owner directory reader.
func NewOwnerRepo(txManager *TxManager) *OwnerRepo {
	return &OwnerRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *OwnerRepo) DisplayName(ctx context.Context, ownerID id.ID) (string, error) {
	q := r.builder.Select("display_name").
		From(ownersTable).
		Where(squirrel.Eq{"id": ownerID})

	sql, args, err := q.ToSql()
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}

	var name string
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &name, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return "", apperror.NewNotFound("owner", ownerID.String())
		}
		return "", fmt.Errorf("get owner name: %w", err)
	}
	return name, nil
}
