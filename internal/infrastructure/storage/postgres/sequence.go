package postgres

import (
	"context"

	"vintrack/pkg/sequence"
)

// Compile-time check that SequenceSource implements sequence.Source.
var _ sequence.Source = (*SequenceSource)(nil)

// SequenceSource feeds the sequence service the context's querier. Inside
// a transaction it hands out the transaction connection, which keeps the
// issuer's advisory locks transaction-scoped.
type SequenceSource struct {
	txManager *TxManager
}

// NewSequenceSource creates a sequence source bound to the tx manager.
func NewSequenceSource(txManager *TxManager) *SequenceSource {
	return &SequenceSource{txManager: txManager}
}

// Querier implements sequence.Source.
func (s *SequenceSource) Querier(ctx context.Context) sequence.Querier {
	return s.txManager.GetQuerier(ctx)
}
