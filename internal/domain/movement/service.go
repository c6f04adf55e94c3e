package movement

import (
	"context"
	"fmt"

	"vintrack/pkg/logger"
	"vintrack/pkg/sequence"
)

// StockTotaler reports the current total of on-hand cases across all stock
// records. Narrow on purpose: it keeps the ledger package independent of
// the stock package, which records movements through this service.
type StockTotaler interface {
	TotalQuantity(ctx context.Context) (int, error)
}

// Service is the single entry point for appending to the ledger. Callers
// build a movement, the service numbers it, validates it and persists it
// inside the caller's transaction.
type Service struct {
	repo     Repository
	sequence *sequence.Service
}

// NewService creates a movement ledger service.
func NewService(repo Repository, seq *sequence.Service) *Service {
	return &Service{repo: repo, sequence: seq}
}

// Record validates the movement, issues its year-scoped movement number and
// appends it. Must be called inside the transaction of the mutation it
// documents; a stock change without its ledger entry is a correctness bug.
func (s *Service) Record(ctx context.Context, m *StockMovement) error {
	if err := m.Validate(); err != nil {
		return err
	}

	if m.MovementNumber == "" {
		number, err := s.sequence.Next(ctx, sequence.MovementConfig(), m.PerformedAt)
		if err != nil {
			return fmt.Errorf("issue movement number: %w", err)
		}
		m.MovementNumber = number
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return fmt.Errorf("append movement: %w", err)
	}

	logger.Debug(ctx, "movement recorded",
		"number", m.MovementNumber,
		"type", m.Type,
		"quantity", m.QuantityCases,
	)
	return nil
}

// History returns filtered movement history, newest first.
func (s *Service) History(ctx context.Context, filter Filter) ([]StockMovement, error) {
	return s.repo.List(ctx, filter)
}

// GetByNumber returns one ledger entry by its movement number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*StockMovement, error) {
	return s.repo.GetByNumber(ctx, number)
}

// ReconciliationReport compares the ledger's net inventory delta against
// the sum of current stock record quantities.
type ReconciliationReport struct {
	LedgerDelta int  `json:"ledgerDelta"`
	StockTotal  int  `json:"stockTotal"`
	Balanced    bool `json:"balanced"`
}

// Reconcile recomputes the ledger-vs-stock reconciliation law. A report
// that is not balanced indicates a mutation bypassed the ledger.
func (s *Service) Reconcile(ctx context.Context, totals StockTotaler) (ReconciliationReport, error) {
	var report ReconciliationReport

	ledgerDelta, err := s.repo.SumDeltas(ctx)
	if err != nil {
		return report, fmt.Errorf("sum ledger deltas: %w", err)
	}

	stockTotal, err := totals.TotalQuantity(ctx)
	if err != nil {
		return report, fmt.Errorf("sum stock quantities: %w", err)
	}

	report = ReconciliationReport{
		LedgerDelta: ledgerDelta,
		StockTotal:  stockTotal,
		Balanced:    ledgerDelta == stockTotal,
	}

	if !report.Balanced {
		logger.Warn(ctx, "ledger out of balance",
			"ledger_delta", ledgerDelta,
			"stock_total", stockTotal,
		)
	}

	return report, nil
}
