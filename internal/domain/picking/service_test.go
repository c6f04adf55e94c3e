package picking

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
	for _, rec := range r.records {
		if rec.Key() == key {
			out := rec
			return &out, nil
		}
	}
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
	return nil, nil
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

type memReservationRepo struct {
	rows map[id.ID]StockReservation
}

func (r *memReservationRepo) Create(ctx context.Context, res *StockReservation) error {
	r.rows[res.ID] = *res
	return nil
}

func (r *memReservationRepo) Update(ctx context.Context, res *StockReservation) error {
	r.rows[res.ID] = *res
	return nil
}

func (r *memReservationRepo) ListActiveForUpdate(ctx context.Context, stockID, orderID id.ID) ([]StockReservation, error) {
	var out []StockReservation
	for _, res := range r.rows {
		if res.StockID == stockID && res.OrderID == orderID && res.Status == StatusActive {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *memReservationRepo) ListByOrder(ctx context.Context, orderID id.ID) ([]StockReservation, error) {
	var out []StockReservation
	for _, res := range r.rows {
		if res.OrderID == orderID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *memReservationRepo) ListByStock(ctx context.Context, stockID id.ID) ([]StockReservation, error) {
	var out []StockReservation
	for _, res := range r.rows {
		if res.StockID == stockID {
			out = append(out, res)
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
	movements *memMovementRepo
	record    *stock.StockRecord
	orderID   id.ID
}

func newTestEnv(t *testing.T, quantity int) *testEnv {
	t.Helper()

	stocks := &memStockRepo{records: make(map[id.ID]stock.StockRecord)}
	reservations := &memReservationRepo{rows: make(map[id.ID]StockReservation)}
	movements := &memMovementRepo{}
	seq := sequence.New(&memSeqSource{vals: make(map[string]int64)})

	rec := stock.NewRecord(stock.Key{
		LocationID: id.New(),
		LWIN18:     testLWIN,
		LotNumber:  "LOT-2026-0001",
		OwnerID:    id.New(),
	}, "Cellar Door Wines", quantity, types.ArrangementPurchased)
	if err := stocks.Create(context.Background(), rec); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	svc := NewService(reservations, stocks, movement.NewService(movements, seq), fakeTxManager{})
	return &testEnv{
		svc:       svc,
		stocks:    stocks,
		movements: movements,
		record:    rec,
		orderID:   id.New(),
	}
}

func (e *testEnv) counters(t *testing.T) (quantity, reserved, available int) {
	t.Helper()
	rec, err := e.stocks.GetByID(context.Background(), e.record.ID)
	if err != nil {
		t.Fatalf("stock record: %v", err)
	}
	return rec.QuantityCases, rec.ReservedCases, rec.AvailableCases
}

func TestReserve(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	res, err := env.svc.Reserve(ctx, env.record.ID, 4, env.orderID)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if res.QuantityCases != 4 || res.Status != StatusActive {
		t.Errorf("reservation = %+v", res)
	}

	q, r, a := env.counters(t)
	if q != 10 || r != 4 || a != 6 {
		t.Errorf("counters = %d/%d/%d, want 10/4/6", q, r, a)
	}

	// A second reserve for the same order extends the existing hold.
	res2, err := env.svc.Reserve(ctx, env.record.ID, 2, env.orderID)
	if err != nil {
		t.Fatalf("second Reserve: %v", err)
	}
	if res2.ID != res.ID || res2.QuantityCases != 6 {
		t.Errorf("extended reservation = %+v", res2)
	}

	if _, err := env.svc.Reserve(ctx, env.record.ID, 5, env.orderID); !apperror.IsInsufficientQuantity(err) {
		t.Errorf("over-reserve: got %v, want insufficient quantity", err)
	}
}

func TestRelease(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	if _, err := env.svc.Reserve(ctx, env.record.ID, 6, env.orderID); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := env.svc.Release(ctx, env.record.ID, 4, env.orderID, "order shrunk"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	q, r, a := env.counters(t)
	if q != 10 || r != 2 || a != 8 {
		t.Errorf("counters = %d/%d/%d, want 10/2/8", q, r, a)
	}

	// Releasing more than held by this order is rejected, even though the
	// record-level reserved counter might cover it.
	if err := env.svc.Release(ctx, env.record.ID, 3, env.orderID, "oops"); !apperror.IsInsufficientQuantity(err) {
		t.Errorf("over-release: got %v, want insufficient quantity", err)
	}

	if err := env.svc.Release(ctx, env.record.ID, 2, env.orderID, "cancelled"); err != nil {
		t.Fatalf("final release: %v", err)
	}
	holds, err := env.svc.ListByOrder(ctx, env.orderID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(holds) != 1 || holds[0].Status != StatusReleased {
		t.Errorf("holds = %+v", holds)
	}
}

func TestConvertToPickReservedOnly(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	if _, err := env.svc.Reserve(ctx, env.record.ID, 5, env.orderID); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	result, err := env.svc.ConvertToPick(ctx, env.record.ID, env.orderID, 3)
	if err != nil {
		t.Fatalf("ConvertToPick: %v", err)
	}
	if result.ReservedPicked != 3 || result.UnreservedPicked != 0 || result.TotalPicked != 3 {
		t.Errorf("result = %+v", result)
	}

	q, r, a := env.counters(t)
	if q != 7 || r != 2 || a != 5 {
		t.Errorf("counters = %d/%d/%d, want 7/2/5", q, r, a)
	}

	// The partially consumed hold stays active.
	holds, _ := env.svc.ListByOrder(ctx, env.orderID)
	if len(holds) != 1 || holds[0].Status != StatusActive || holds[0].QuantityCases != 2 {
		t.Errorf("holds = %+v", holds)
	}
}

func TestConvertToPickSpillsIntoAvailable(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	if _, err := env.svc.Reserve(ctx, env.record.ID, 3, env.orderID); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	result, err := env.svc.ConvertToPick(ctx, env.record.ID, env.orderID, 8)
	if err != nil {
		t.Fatalf("ConvertToPick: %v", err)
	}
	if result.ReservedPicked != 3 || result.UnreservedPicked != 5 || result.TotalPicked != 8 {
		t.Errorf("result = %+v", result)
	}

	q, r, a := env.counters(t)
	if q != 2 || r != 0 || a != 2 {
		t.Errorf("counters = %d/%d/%d, want 2/0/2", q, r, a)
	}

	// The fully consumed hold flipped to picked.
	holds, _ := env.svc.ListByOrder(ctx, env.orderID)
	if len(holds) != 1 || holds[0].Status != StatusPicked {
		t.Errorf("holds = %+v", holds)
	}

	picks := env.movements.movements
	if len(picks) != 1 || picks[0].Type != movement.TypePick || picks[0].QuantityCases != 8 {
		t.Errorf("pick movements = %+v", picks)
	}
	if picks[0].OrderID == nil || *picks[0].OrderID != env.orderID {
		t.Error("pick movement should carry the order id")
	}
}

func TestConvertToPickUnderFulfilled(t *testing.T) {
	env := newTestEnv(t, 4)
	ctx := context.Background()

	// No reservation, only 4 available; asking for 9 yields a capped,
	// reported partial pick rather than negative stock.
	result, err := env.svc.ConvertToPick(ctx, env.record.ID, env.orderID, 9)
	if err != nil {
		t.Fatalf("ConvertToPick: %v", err)
	}
	if result.ReservedPicked != 0 || result.UnreservedPicked != 4 || result.TotalPicked != 4 {
		t.Errorf("result = %+v", result)
	}

	// Fully picked record is deleted.
	if _, err := env.stocks.GetByID(ctx, env.record.ID); !apperror.IsNotFound(err) {
		t.Errorf("emptied record should be deleted, got %v", err)
	}
}

func TestConvertToPickNothingAvailable(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()

	otherOrder := id.New()
	if _, err := env.svc.Reserve(ctx, env.record.ID, 5, otherOrder); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// Everything is held by another order: zero picked, no movement.
	result, err := env.svc.ConvertToPick(ctx, env.record.ID, env.orderID, 2)
	if err != nil {
		t.Fatalf("ConvertToPick: %v", err)
	}
	if result.TotalPicked != 0 {
		t.Errorf("result = %+v", result)
	}
	if len(env.movements.movements) != 0 {
		t.Errorf("zero pick must not write a movement, got %d", len(env.movements.movements))
	}

	q, r, a := env.counters(t)
	if q != 5 || r != 5 || a != 0 {
		t.Errorf("counters = %d/%d/%d, want 5/5/0", q, r, a)
	}
}
