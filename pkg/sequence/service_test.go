package sequence

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

// mockRow satisfies pgx.Row for a single scanned value.
type mockRow struct {
	boolVal bool
	intVal  int64
	err     error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) == 0 {
		return nil
	}
	switch ptr := dest[0].(type) {
	case *bool:
		*ptr = m.boolVal
	case *int64:
		*ptr = m.intVal
	}
	return nil
}

// mockQuerier simulates sys_sequences plus the advisory lock. The mutex
// stands in for the per-scope serialization the real database provides.
type mockQuerier struct {
	mu     sync.Mutex
	scopes map[string]int64
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{scopes: make(map[string]int64)}
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.Contains(sql, "pg_try_advisory_xact_lock") {
		return &mockRow{boolVal: true}
	}

	scope := args[0].(string)
	delta := args[1].(int64)
	m.scopes[scope] += delta
	return &mockRow{intVal: m.scopes[scope]}
}

type staticSource struct{ q Querier }

func (s staticSource) Querier(ctx context.Context) Querier { return s.q }

func newTestService() *Service {
	return New(staticSource{newMockQuerier()})
}

func TestNext_FirstIssuanceStartsAtOne(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	num, err := svc.Next(ctx, MovementConfig(), period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "MV-2026-00001" {
		t.Errorf("expected MV-2026-00001, got %s", num)
	}

	num, err = svc.Next(ctx, MovementConfig(), period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "MV-2026-00002" {
		t.Errorf("expected MV-2026-00002, got %s", num)
	}
}

func TestNext_ScopesAreIndependent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, err := svc.Next(ctx, MovementConfig(), period); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	num, err := svc.Next(ctx, PalletConfig(), period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "PLT-2026-0001" {
		t.Errorf("pallet scope must start at 1, got %s", num)
	}

	// Year change resets the year-scoped sequence.
	nextYear := period.AddDate(1, 0, 0)
	num, err = svc.Next(ctx, MovementConfig(), nextYear)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "MV-2027-00001" {
		t.Errorf("expected MV-2027-00001, got %s", num)
	}
}

func TestNextBlock_Contiguous(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	cfg := CaseLabelConfig("101234520150600750")

	block, err := svc.NextBlock(ctx, cfg, time.Now(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"CASE-101234520150600750-0001",
		"CASE-101234520150600750-0002",
		"CASE-101234520150600750-0003",
	}
	if len(block) != len(want) {
		t.Fatalf("expected %d barcodes, got %d", len(want), len(block))
	}
	for i := range want {
		if block[i] != want[i] {
			t.Errorf("block[%d]: expected %s, got %s", i, want[i], block[i])
		}
	}
}

func TestNext_ConcurrentIssuanceIsUnique(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	period := time.Now()
	cfg := CaseLabelConfig("101234520150600750")

	const callers = 50
	results := make(chan string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := svc.Next(ctx, cfg, period)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results <- num
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool, callers)
	for num := range results {
		if seen[num] {
			t.Fatalf("duplicate number issued: %s", num)
		}
		seen[num] = true
	}
	if len(seen) != callers {
		t.Errorf("expected %d unique numbers, got %d", callers, len(seen))
	}
}

func TestNextBlock_RejectsNonPositive(t *testing.T) {
	svc := newTestService()
	if _, err := svc.NextBlock(context.Background(), MovementConfig(), time.Now(), 0); err == nil {
		t.Error("expected error for zero block size")
	}
}
