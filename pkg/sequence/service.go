// Package sequence provides scope-keyed issuance of human-readable numbers:
// movement numbers, case barcodes, pallet codes and lot numbers.
//
// Issuance is race-free across service instances: each scope is serialized by
// a transaction-scoped Postgres advisory lock keyed by a hash of the scope
// string, so concurrent issuances for different scopes proceed in parallel
// while no two callers ever receive the same value within one scope.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"vintrack/internal/core/apperror"
)

// Querier is the minimal database surface issuance needs. Inside a
// transaction the caller's tx must be supplied, otherwise the advisory lock
// would not be transaction-scoped.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Source resolves the querier for the current context: the active
// transaction when one is in flight, the pool otherwise.
type Source interface {
	Querier(ctx context.Context) Querier
}

// Config holds numbering configuration for one kind of identifier.
type Config struct {
	// Prefix added to all numbers (e.g. "MV", "PLT", "CASE-{lwin18}")
	Prefix string

	// IncludeYear adds the year segment and scopes the sequence per year
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int
}

// MovementConfig numbers ledger movements: MV-2026-00001, year-scoped.
func MovementConfig() Config {
	return Config{Prefix: "MV", IncludeYear: true, PadWidth: 5}
}

// PalletConfig numbers pallets: PLT-2026-0001, year-scoped.
func PalletConfig() Config {
	return Config{Prefix: "PLT", IncludeYear: true, PadWidth: 4}
}

// LotConfig numbers receiving lots: LOT-2026-0001, year-scoped.
func LotConfig() Config {
	return Config{Prefix: "LOT", IncludeYear: true, PadWidth: 4}
}

// CaseLabelConfig numbers case barcodes per product identifier:
// CASE-{lwin18}-0001. The scope is the product, not the year, so barcode
// sequences are monotonic for the lifetime of a product identity.
func CaseLabelConfig(lwin18 string) Config {
	return Config{Prefix: "CASE-" + lwin18, IncludeYear: false, PadWidth: 4}
}

const (
	lockRetries    = 5
	lockRetryDelay = 25 * time.Millisecond
)

// Service issues sequence numbers backed by the sys_sequences table.
type Service struct {
	source Source
}

// New creates a sequence service.
func New(source Source) *Service {
	return &Service{source: source}
}

// Next issues the next number for the scope. First issuance in a scope is 1.
func (s *Service) Next(ctx context.Context, cfg Config, period time.Time) (string, error) {
	last, err := s.advance(ctx, cfg, period, 1)
	if err != nil {
		return "", err
	}
	return s.format(cfg, period, last), nil
}

// NextBlock issues n consecutive numbers for the scope in one allocation,
// used when issuing many case labels at once. Returns the formatted values
// in ascending order.
func (s *Service) NextBlock(ctx context.Context, cfg Config, period time.Time, n int) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", n)
	}

	last, err := s.advance(ctx, cfg, period, int64(n))
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, n)
	for v := last - int64(n) + 1; v <= last; v++ {
		out = append(out, s.format(cfg, period, v))
	}
	return out, nil
}

// advance acquires the scope lock and bumps the stored counter by delta,
// returning the new (highest allocated) value.
func (s *Service) advance(ctx context.Context, cfg Config, period time.Time, delta int64) (int64, error) {
	q := s.source.Querier(ctx)
	scope := s.scopeKey(cfg, period)

	if err := s.lockScope(ctx, q, scope); err != nil {
		return 0, err
	}

	var val int64
	err := q.QueryRow(ctx, `
		INSERT INTO sys_sequences (scope, current_val)
		VALUES ($1, $2)
		ON CONFLICT (scope) DO UPDATE SET current_val = sys_sequences.current_val + $2
		RETURNING current_val
	`, scope, delta).Scan(&val)
	if err != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", scope, err)
	}

	return val, nil
}

// lockScope serializes issuance per scope. The advisory lock is
// transaction-scoped (released automatically at commit/rollback), so two
// transactions issuing in the same scope queue up while different scopes
// stay fully concurrent. Contention is expected to be short-lived, so a
// failed acquisition is retried a few times before surfacing.
func (s *Service) lockScope(ctx context.Context, q Querier, scope string) error {
	for attempt := 0; attempt < lockRetries; attempt++ {
		var acquired bool
		err := q.QueryRow(ctx,
			`SELECT pg_try_advisory_xact_lock(hashtext($1))`, scope,
		).Scan(&acquired)
		if err != nil {
			return fmt.Errorf("acquire scope lock %s: %w", scope, err)
		}
		if acquired {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}

	return apperror.NewLockContention(scope)
}

// scopeKey builds the sequence key for config and period.
func (s *Service) scopeKey(cfg Config, period time.Time) string {
	if cfg.IncludeYear {
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	}
	return cfg.Prefix
}

// format renders the final identifier string.
func (s *Service) format(cfg Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}

	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}
