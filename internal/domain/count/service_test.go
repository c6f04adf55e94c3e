package count

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"

	"vintrack/internal/core/apperror"
	"vintrack/internal/core/id"
	"vintrack/internal/core/types"
	"vintrack/internal/domain/movement"
	"vintrack/internal/domain/stock"
	"vintrack/pkg/sequence"
)

const testLWIN = types.LWIN18("100108600010600750")

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type seqRow struct {
	scan func(dest ...any) error
}

func (r seqRow) Scan(dest ...any) error { return r.scan(dest...) }

type memSeqSource struct {
	mu   sync.Mutex
	vals map[string]int64
}

func (s *memSeqSource) Querier(ctx context.Context) sequence.Querier { return s }

func (s *memSeqSource) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.Contains(sql, "pg_try_advisory_xact_lock") {
		return seqRow{scan: func(dest ...any) error {
			*(dest[0].(*bool)) = true
			return nil
		}}
	}
	scope := args[0].(string)
	s.vals[scope] += args[1].(int64)
	val := s.vals[scope]
	return seqRow{scan: func(dest ...any) error {
		*(dest[0].(*int64)) = val
		return nil
	}}
}

type memStockRepo struct {
	records map[id.ID]stock.StockRecord
}

func (r *memStockRepo) Create(ctx context.Context, rec *stock.StockRecord) error {
	r.records[rec.ID] = *rec
	return nil
}

func (r *memStockRepo) GetByID(ctx context.Context, stockID id.ID) (*stock.StockRecord, error) {
	rec, ok := r.records[stockID]
	if !ok {
		return nil, apperror.NewNotFound("stock record", stockID)
	}
	out := rec
	return &out, nil
}

func (r *memStockRepo) GetByIDForUpdate(ctx context.Context, stockID id.ID) (*stock.StockRecord, error) {
	return r.GetByID(ctx, stockID)
}

func (r *memStockRepo) FindByKeyForUpdate(ctx context.Context, key stock.Key) (*stock.StockRecord, error) {
	return nil, apperror.NewNotFound("stock record", key.LotNumber)
}

func (r *memStockRepo) Update(ctx context.Context, rec *stock.StockRecord) error {
	r.records[rec.ID] = *rec
	return nil
}

func (r *memStockRepo) Delete(ctx context.Context, stockID id.ID) error {
	delete(r.records, stockID)
	return nil
}

func (r *memStockRepo) ListByLocation(ctx context.Context, locationID id.ID) ([]stock.StockRecord, error) {
	var out []stock.StockRecord
	for _, rec := range r.records {
		if rec.LocationID == locationID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memStockRepo) ListByProduct(ctx context.Context, lwin18 types.LWIN18) ([]stock.StockRecord, error) {
	return nil, nil
}

func (r *memStockRepo) ListDuplicateGroups(ctx context.Context) ([][]stock.StockRecord, error) {
	return nil, nil
}

func (r *memStockRepo) TotalQuantity(ctx context.Context) (int, error) {
	total := 0
	for _, rec := range r.records {
		total += rec.QuantityCases
	}
	return total, nil
}

type memCountRepo struct {
	counts map[id.ID]CycleCount
	items  map[id.ID]CycleCountItem
}

func newMemCountRepo() *memCountRepo {
	return &memCountRepo{
		counts: make(map[id.ID]CycleCount),
		items:  make(map[id.ID]CycleCountItem),
	}
}

func (r *memCountRepo) Create(ctx context.Context, c *CycleCount, items []CycleCountItem) error {
	r.counts[c.ID] = *c
	for _, item := range items {
		r.items[item.ID] = item
	}
	return nil
}

func (r *memCountRepo) GetByID(ctx context.Context, countID id.ID) (*CycleCount, error) {
	c, ok := r.counts[countID]
	if !ok {
		return nil, apperror.NewNotFound("cycle count", countID)
	}
	out := c
	return &out, nil
}

func (r *memCountRepo) GetByIDForUpdate(ctx context.Context, countID id.ID) (*CycleCount, error) {
	return r.GetByID(ctx, countID)
}

func (r *memCountRepo) Update(ctx context.Context, c *CycleCount) error {
	r.counts[c.ID] = *c
	return nil
}

func (r *memCountRepo) ListByLocation(ctx context.Context, locationID id.ID) ([]CycleCount, error) {
	var out []CycleCount
	for _, c := range r.counts {
		if c.LocationID == locationID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memCountRepo) GetItem(ctx context.Context, countID, itemID id.ID) (*CycleCountItem, error) {
	item, ok := r.items[itemID]
	if !ok || item.CountID != countID {
		return nil, apperror.NewNotFound("cycle count item", itemID)
	}
	out := item
	return &out, nil
}

func (r *memCountRepo) UpdateItem(ctx context.Context, item *CycleCountItem) error {
	r.items[item.ID] = *item
	return nil
}

func (r *memCountRepo) ListItems(ctx context.Context, countID id.ID) ([]CycleCountItem, error) {
	var out []CycleCountItem
	for _, item := range r.items {
		if item.CountID == countID {
			out = append(out, item)
		}
	}
	return out, nil
}

type memMovementRepo struct {
	movements []movement.StockMovement
}

func (r *memMovementRepo) Create(ctx context.Context, m *movement.StockMovement) error {
	r.movements = append(r.movements, *m)
	return nil
}

func (r *memMovementRepo) GetByNumber(ctx context.Context, number string) (*movement.StockMovement, error) {
	return nil, apperror.NewNotFound("movement", number)
}

func (r *memMovementRepo) List(ctx context.Context, filter movement.Filter) ([]movement.StockMovement, error) {
	return r.movements, nil
}

func (r *memMovementRepo) SumDeltas(ctx context.Context) (int, error) {
	sum := 0
	for i := range r.movements {
		sum += r.movements[i].InventoryDelta()
	}
	return sum, nil
}

type testEnv struct {
	svc       *Service
	stocks    *memStockRepo
	counts    *memCountRepo
	movements *memMovementRepo
	location  id.ID
	recA      *stock.StockRecord
	recB      *stock.StockRecord
}

func newTestEnv(t *testing.T, policyExpr string) *testEnv {
	t.Helper()
	ctx := context.Background()

	stocks := &memStockRepo{records: make(map[id.ID]stock.StockRecord)}
	counts := newMemCountRepo()
	movements := &memMovementRepo{}
	seq := sequence.New(&memSeqSource{vals: make(map[string]int64)})
	location := id.New()

	var policy *ApprovalPolicy
	if policyExpr != "" {
		var err error
		policy, err = NewApprovalPolicy(policyExpr)
		if err != nil {
			t.Fatalf("policy: %v", err)
		}
	}

	recA := stock.NewRecord(stock.Key{
		LocationID: location,
		LWIN18:     testLWIN,
		LotNumber:  "LOT-2026-0001",
		OwnerID:    id.New(),
	}, "Cellar Door Wines", 10, types.ArrangementPurchased)
	recB := stock.NewRecord(stock.Key{
		LocationID: location,
		LWIN18:     testLWIN,
		LotNumber:  "LOT-2026-0002",
		OwnerID:    id.New(),
	}, "Grand Cru Imports", 6, types.ArrangementPurchased)
	for _, rec := range []*stock.StockRecord{recA, recB} {
		if err := stocks.Create(ctx, rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	svc := NewService(counts, stocks, movement.NewService(movements, seq), fakeTxManager{}, policy)
	return &testEnv{
		svc:       svc,
		stocks:    stocks,
		counts:    counts,
		movements: movements,
		location:  location,
		recA:      recA,
		recB:      recB,
	}
}

func (e *testEnv) itemFor(t *testing.T, countID id.ID, stockID id.ID) *CycleCountItem {
	t.Helper()
	items, err := e.svc.Items(context.Background(), countID)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	for i := range items {
		if items[i].StockID == stockID {
			return &items[i]
		}
	}
	t.Fatalf("no item for stock %s", stockID)
	return nil
}

func TestCreateSnapshotsLocation(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	c, err := env.svc.Create(ctx, env.location)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Status != StatusPending {
		t.Errorf("status = %s, want pending", c.Status)
	}

	items, err := env.svc.Items(ctx, c.ID)
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("item count = %d, want 2", len(items))
	}
	if got := env.itemFor(t, c.ID, env.recA.ID).ExpectedQuantity; got != 10 {
		t.Errorf("expected quantity = %d, want 10", got)
	}

	// Expected quantities stay frozen even when stock changes afterwards.
	rec, _ := env.stocks.GetByID(ctx, env.recA.ID)
	if err := rec.AddStock(5); err != nil {
		t.Fatalf("add: %v", err)
	}
	env.stocks.records[rec.ID] = *rec
	if got := env.itemFor(t, c.ID, env.recA.ID).ExpectedQuantity; got != 10 {
		t.Errorf("snapshot drifted to %d", got)
	}

	if _, err := env.svc.Create(ctx, id.New()); err == nil {
		t.Error("counting an empty location should be rejected")
	}
}

func TestWorkflowGuards(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	c, err := env.svc.Create(ctx, env.location)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	item := env.itemFor(t, c.ID, env.recA.ID)

	// Recording before start is rejected.
	if _, err := env.svc.RecordItem(ctx, c.ID, item.ID, 9); !apperror.IsInvalidState(err) {
		t.Errorf("record on pending: got %v, want invalid state", err)
	}
	// Completing before start is rejected.
	if _, err := env.svc.Complete(ctx, c.ID); !apperror.IsInvalidState(err) {
		t.Errorf("complete pending: got %v, want invalid state", err)
	}

	if _, err := env.svc.Start(ctx, c.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Double start is rejected.
	if _, err := env.svc.Start(ctx, c.ID); !apperror.IsInvalidState(err) {
		t.Errorf("double start: got %v, want invalid state", err)
	}

	// Completing with an uncounted item is rejected.
	if _, err := env.svc.RecordItem(ctx, c.ID, item.ID, 9); err != nil {
		t.Fatalf("RecordItem: %v", err)
	}
	if _, err := env.svc.Complete(ctx, c.ID); err == nil {
		t.Error("complete with uncounted items should be rejected")
	}

	// Reconciling before completion is rejected.
	if _, err := env.svc.Reconcile(ctx, c.ID, nil); !apperror.IsInvalidState(err) {
		t.Errorf("reconcile in progress: got %v, want invalid state", err)
	}

	if _, err := env.svc.RecordItem(ctx, c.ID, id.New(), 5); !apperror.IsNotFound(err) {
		t.Errorf("unknown item: got %v, want not found", err)
	}
	if _, err := env.svc.RecordItem(ctx, c.ID, item.ID, -1); err == nil {
		t.Error("negative count should be rejected")
	}
}

func TestCompleteComputesDiscrepancies(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	c, _ := env.svc.Create(ctx, env.location)
	if _, err := env.svc.Start(ctx, c.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	itemA := env.itemFor(t, c.ID, env.recA.ID)
	itemB := env.itemFor(t, c.ID, env.recB.ID)
	if _, err := env.svc.RecordItem(ctx, c.ID, itemA.ID, 8); err != nil {
		t.Fatalf("record A: %v", err)
	}
	if _, err := env.svc.RecordItem(ctx, c.ID, itemB.ID, 6); err != nil {
		t.Fatalf("record B: %v", err)
	}

	done, err := env.svc.Complete(ctx, c.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != StatusCompleted || done.DiscrepancyCount != 1 {
		t.Errorf("completed count = %+v", done)
	}

	if got := env.itemFor(t, c.ID, env.recA.ID).Discrepancy; got != -2 {
		t.Errorf("discrepancy A = %d, want -2", got)
	}
	if got := env.itemFor(t, c.ID, env.recB.ID).Discrepancy; got != 0 {
		t.Errorf("discrepancy B = %d, want 0", got)
	}
}

func TestReconcileAppliesOnlyApproved(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	c, _ := env.svc.Create(ctx, env.location)
	env.svc.Start(ctx, c.ID)

	itemA := env.itemFor(t, c.ID, env.recA.ID)
	itemB := env.itemFor(t, c.ID, env.recB.ID)
	env.svc.RecordItem(ctx, c.ID, itemA.ID, 7)
	env.svc.RecordItem(ctx, c.ID, itemB.ID, 4)
	if _, err := env.svc.Complete(ctx, c.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Approve only the first discrepancy.
	done, err := env.svc.Reconcile(ctx, c.ID, []id.ID{itemA.ID})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if done.Status != StatusReconciled || done.ReconciledAt == nil {
		t.Errorf("reconciled count = %+v", done)
	}

	recA, _ := env.stocks.GetByID(ctx, env.recA.ID)
	if recA.QuantityCases != 7 {
		t.Errorf("approved record = %d cases, want 7", recA.QuantityCases)
	}
	recB, _ := env.stocks.GetByID(ctx, env.recB.ID)
	if recB.QuantityCases != 6 {
		t.Errorf("unapproved record silently corrected to %d", recB.QuantityCases)
	}

	if len(env.movements.movements) != 1 {
		t.Fatalf("movement count = %d, want 1", len(env.movements.movements))
	}
	m := env.movements.movements[0]
	if m.Type != movement.TypeCount || m.QuantityCases != -3 {
		t.Errorf("count movement = %+v", m)
	}
	if !strings.Contains(m.Reason, "expected 10") || !strings.Contains(m.Reason, "counted 7") {
		t.Errorf("movement reason = %q", m.Reason)
	}
}

func TestReconcileToZeroDeletesRecord(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	c, _ := env.svc.Create(ctx, env.location)
	env.svc.Start(ctx, c.ID)

	itemA := env.itemFor(t, c.ID, env.recA.ID)
	itemB := env.itemFor(t, c.ID, env.recB.ID)
	env.svc.RecordItem(ctx, c.ID, itemA.ID, 0)
	env.svc.RecordItem(ctx, c.ID, itemB.ID, 6)
	if _, err := env.svc.Complete(ctx, c.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := env.svc.Reconcile(ctx, c.ID, []id.ID{itemA.ID}); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if _, err := env.stocks.GetByID(ctx, env.recA.ID); !apperror.IsNotFound(err) {
		t.Errorf("zero-counted record should be deleted, got %v", err)
	}
}

func TestAutoApprovals(t *testing.T) {
	env := newTestEnv(t, "discrepancy >= -2 && discrepancy <= 2")
	ctx := context.Background()

	c, _ := env.svc.Create(ctx, env.location)
	env.svc.Start(ctx, c.ID)

	itemA := env.itemFor(t, c.ID, env.recA.ID) // expected 10
	itemB := env.itemFor(t, c.ID, env.recB.ID) // expected 6
	env.svc.RecordItem(ctx, c.ID, itemA.ID, 9) // within tolerance
	env.svc.RecordItem(ctx, c.ID, itemB.ID, 1) // way off
	if _, err := env.svc.Complete(ctx, c.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	approved, err := env.svc.AutoApprovals(ctx, c.ID)
	if err != nil {
		t.Fatalf("AutoApprovals: %v", err)
	}
	if len(approved) != 1 || approved[0] != itemA.ID {
		t.Errorf("approved = %v, want [%s]", approved, itemA.ID)
	}
}

func TestAutoApprovalsWithoutPolicy(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	c, _ := env.svc.Create(ctx, env.location)
	approved, err := env.svc.AutoApprovals(ctx, c.ID)
	if err != nil || approved != nil {
		t.Errorf("no policy: got %v, %v; want nil, nil", approved, err)
	}
}
