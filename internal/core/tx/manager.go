// Package tx provides transaction management abstractions.
// Domain services depend on this interface, not on the pgx implementation,
// which lives in infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
// Every multi-row ledger mutation (stock counters + movement append + label
// updates) runs inside a single RunInTransaction call; partial application
// is a correctness bug, never an acceptable degraded state.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
