package pallet

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"vintrack/internal/core/apperror"
	"vintrack/internal/core/id"
	"vintrack/internal/core/types"
	"vintrack/internal/domain/label"
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

type memPalletRepo struct {
	pallets map[id.ID]Pallet
	cases   map[id.ID]PalletCase
}

func newMemPalletRepo() *memPalletRepo {
	return &memPalletRepo{
		pallets: make(map[id.ID]Pallet),
		cases:   make(map[id.ID]PalletCase),
	}
}

func (r *memPalletRepo) Create(ctx context.Context, p *Pallet) error {
	r.pallets[p.ID] = *p
	return nil
}

func (r *memPalletRepo) GetByID(ctx context.Context, palletID id.ID) (*Pallet, error) {
	p, ok := r.pallets[palletID]
	if !ok {
		return nil, apperror.NewNotFound("pallet", palletID)
	}
	out := p
	return &out, nil
}

func (r *memPalletRepo) GetByIDForUpdate(ctx context.Context, palletID id.ID) (*Pallet, error) {
	return r.GetByID(ctx, palletID)
}

func (r *memPalletRepo) GetByCode(ctx context.Context, code string) (*Pallet, error) {
	for _, p := range r.pallets {
		if p.PalletCode == code {
			out := p
			return &out, nil
		}
	}
	return nil, apperror.NewNotFound("pallet", code)
}

func (r *memPalletRepo) Update(ctx context.Context, p *Pallet) error {
	if _, ok := r.pallets[p.ID]; !ok {
		return apperror.NewNotFound("pallet", p.ID)
	}
	r.pallets[p.ID] = *p
	return nil
}

func (r *memPalletRepo) ListByLocation(ctx context.Context, locationID id.ID) ([]Pallet, error) {
	var out []Pallet
	for _, p := range r.pallets {
		if p.LocationID != nil && *p.LocationID == locationID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memPalletRepo) AddCase(ctx context.Context, pc *PalletCase) error {
	r.cases[pc.ID] = *pc
	return nil
}

func (r *memPalletRepo) FindAttachedByCase(ctx context.Context, caseID id.ID) (*PalletCase, error) {
	for _, pc := range r.cases {
		if pc.CaseID == caseID && pc.RemovedAt == nil {
			out := pc
			return &out, nil
		}
	}
	return nil, apperror.NewNotFound("pallet case", caseID)
}

func (r *memPalletRepo) GetAttachedCase(ctx context.Context, palletID id.ID, caseID id.ID) (*PalletCase, error) {
	for _, pc := range r.cases {
		if pc.PalletID == palletID && pc.CaseID == caseID && pc.RemovedAt == nil {
			out := pc
			return &out, nil
		}
	}
	return nil, apperror.NewNotFound("pallet case", caseID)
}

func (r *memPalletRepo) MarkCaseRemoved(ctx context.Context, palletCaseID id.ID, reason string, at time.Time) error {
	pc, ok := r.cases[palletCaseID]
	if !ok {
		return apperror.NewNotFound("pallet case", palletCaseID)
	}
	pc.RemovedAt = &at
	pc.RemoveReason = reason
	r.cases[palletCaseID] = pc
	return nil
}

func (r *memPalletRepo) ListAttachedCases(ctx context.Context, palletID id.ID) ([]PalletCase, error) {
	var out []PalletCase
	for _, pc := range r.cases {
		if pc.PalletID == palletID && pc.RemovedAt == nil {
			out = append(out, pc)
		}
	}
	return out, nil
}

func (r *memPalletRepo) CountAttachedCases(ctx context.Context, palletID id.ID) (int, error) {
	cases, _ := r.ListAttachedCases(ctx, palletID)
	return len(cases), nil
}

type memLabelRepo struct {
	labels []label.CaseLabel
}

func (r *memLabelRepo) CreateBatch(ctx context.Context, labels []label.CaseLabel) error {
	r.labels = append(r.labels, labels...)
	return nil
}

func (r *memLabelRepo) GetByBarcode(ctx context.Context, barcode string) (*label.CaseLabel, error) {
	for i := range r.labels {
		if r.labels[i].Barcode == barcode {
			out := r.labels[i]
			return &out, nil
		}
	}
	return nil, apperror.NewNotFound("case label", barcode)
}

func (r *memLabelRepo) GetByID(ctx context.Context, labelID id.ID) (*label.CaseLabel, error) {
	for i := range r.labels {
		if r.labels[i].ID == labelID {
			out := r.labels[i]
			return &out, nil
		}
	}
	return nil, apperror.NewNotFound("case label", labelID)
}

func (r *memLabelRepo) UpdateLocation(ctx context.Context, labelID id.ID, locationID id.ID) error {
	for i := range r.labels {
		if r.labels[i].ID == labelID {
			r.labels[i].CurrentLocationID = locationID
			return nil
		}
	}
	return apperror.NewNotFound("case label", labelID)
}

func (r *memLabelRepo) Deactivate(ctx context.Context, barcodes []string) error {
	now := time.Now()
	for _, b := range barcodes {
		for i := range r.labels {
			if r.labels[i].Barcode == b && r.labels[i].IsActive {
				r.labels[i].IsActive = false
				r.labels[i].DeactivatedAt = &now
			}
		}
	}
	return nil
}

func (r *memLabelRepo) ListActive(ctx context.Context, lwin18 types.LWIN18, locationID id.ID, limit int) ([]label.CaseLabel, error) {
	var out []label.CaseLabel
	for _, l := range r.labels {
		if l.IsActive && l.LWIN18 == lwin18 && l.CurrentLocationID == locationID {
			out = append(out, l)
		}
		if len(out) == limit {
			break
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

func (r *memMovementRepo) ofType(t movement.Type) []movement.StockMovement {
	var out []movement.StockMovement
	for _, m := range r.movements {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
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

type memDirectory struct {
	names map[id.ID]string
}

func (d *memDirectory) DisplayName(ctx context.Context, ownerID id.ID) (string, error) {
	name, ok := d.names[ownerID]
	if !ok {
		return "", apperror.NewNotFound("owner", ownerID)
	}
	return name, nil
}

type captureRenderer struct {
	summaries []DispatchSummary
	fail      bool
}

func (r *captureRenderer) RenderDeliveryNote(ctx context.Context, summary DispatchSummary) error {
	if r.fail {
		return fmt.Errorf("printer offline")
	}
	r.summaries = append(r.summaries, summary)
	return nil
}

type testEnv struct {
	svc         *Service
	stockSvc    *stock.Service
	labelSvc    *label.Service
	movementSvc *movement.Service
	pallets     *memPalletRepo
	stocks      *memStockRepo
	labels      *memLabelRepo
	movements   *memMovementRepo
	renderer    *captureRenderer
	ownerID     id.ID
	location    id.ID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	pallets := newMemPalletRepo()
	stocks := &memStockRepo{records: make(map[id.ID]stock.StockRecord)}
	labels := &memLabelRepo{}
	movements := &memMovementRepo{}
	seq := sequence.New(&memSeqSource{vals: make(map[string]int64)})
	ownerID := id.New()
	dir := &memDirectory{names: map[id.ID]string{ownerID: "Grand Cru Imports"}}
	renderer := &captureRenderer{}
	labelSvc := label.NewService(labels, seq)
	movementSvc := movement.NewService(movements, seq)
	stockSvc := stock.NewService(stocks, labelSvc, movementSvc, dir, seq, fakeTxManager{})

	svc := NewService(
		pallets,
		stocks,
		labelSvc,
		movementSvc,
		dir,
		seq,
		fakeTxManager{},
		renderer,
	)

	return &testEnv{
		svc:         svc,
		stockSvc:    stockSvc,
		labelSvc:    labelSvc,
		movementSvc: movementSvc,
		pallets:     pallets,
		stocks:      stocks,
		labels:      labels,
		movements:   movements,
		renderer:    renderer,
		ownerID:     ownerID,
		location:    id.New(),
	}
}

// issueLabels mints n active case labels at the test location without
// backing stock, for guard tests that never ship.
func (e *testEnv) issueLabels(t *testing.T, n int) []label.CaseLabel {
	t.Helper()
	labels, err := e.labelSvc.Issue(context.Background(), testLWIN, "LOT-2026-0001", e.location, n)
	if err != nil {
		t.Fatalf("issue labels: %v", err)
	}
	return labels
}

// receiveCases books n cases into stock at the test location and
// returns the labels issued for them.
func (e *testEnv) receiveCases(t *testing.T, n int) []label.CaseLabel {
	t.Helper()
	before := len(e.labels.labels)
	_, err := e.stockSvc.Receive(context.Background(), stock.ReceiveInput{
		LocationID:       e.location,
		LWIN18:           testLWIN,
		LotNumber:        "LOT-2026-0001",
		OwnerID:          e.ownerID,
		Quantity:         n,
		SalesArrangement: types.ArrangementPurchased,
	})
	if err != nil {
		t.Fatalf("receive stock: %v", err)
	}
	return append([]label.CaseLabel(nil), e.labels.labels[before:]...)
}

func (e *testEnv) buildPallet(t *testing.T, caseCount int) (*Pallet, []label.CaseLabel) {
	t.Helper()
	ctx := context.Background()

	p, err := e.svc.Create(ctx, e.ownerID, e.location)
	if err != nil {
		t.Fatalf("create pallet: %v", err)
	}
	labels := e.receiveCases(t, caseCount)
	for _, l := range labels {
		if p, err = e.svc.AddCase(ctx, p.ID, l.Barcode); err != nil {
			t.Fatalf("add case %s: %v", l.Barcode, err)
		}
	}
	return p, labels
}

func TestCreatePallet(t *testing.T) {
	env := newTestEnv(t)

	p, err := env.svc.Create(context.Background(), env.ownerID, env.location)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	year := time.Now().Format("2006")
	if want := fmt.Sprintf("PLT-%s-0001", year); p.PalletCode != want {
		t.Errorf("pallet code = %q, want %q", p.PalletCode, want)
	}
	if p.Status != StatusActive || p.TotalCases != 0 {
		t.Errorf("new pallet = %+v", p)
	}
	if p.OwnerName != "Grand Cru Imports" {
		t.Errorf("owner name = %q", p.OwnerName)
	}
}

func TestAddCase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, labels := env.buildPallet(t, 3)
	if p.TotalCases != 3 {
		t.Errorf("total cases = %d, want 3", p.TotalCases)
	}
	if err := env.svc.CheckInvariant(ctx, p.ID); err != nil {
		t.Errorf("invariant: %v", err)
	}

	adds := env.movements.ofType(movement.TypePalletAdd)
	if len(adds) != 3 {
		t.Fatalf("pallet_add movements = %d, want 3", len(adds))
	}
	if adds[0].ScannedBarcodes[0] != labels[0].Barcode {
		t.Errorf("movement barcode = %q, want %q", adds[0].ScannedBarcodes[0], labels[0].Barcode)
	}
}

func TestAddCaseGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, labels := env.buildPallet(t, 1)

	// One case, one pallet, at a time.
	other, err := env.svc.Create(ctx, env.ownerID, env.location)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.svc.AddCase(ctx, other.ID, labels[0].Barcode); err == nil {
		t.Error("case already on a pallet should be rejected")
	}

	// Deactivated labels cannot be palletized.
	loose := env.issueLabels(t, 1)
	if err := env.labelSvc.Deactivate(ctx, []string{loose[0].Barcode}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := env.svc.AddCase(ctx, other.ID, loose[0].Barcode); !apperror.IsInvalidState(err) {
		t.Errorf("inactive label: got %v, want invalid state", err)
	}

	// Sealed pallets are frozen.
	if _, err := env.svc.Seal(ctx, p.ID); err != nil {
		t.Fatalf("seal: %v", err)
	}
	fresh := env.issueLabels(t, 1)
	if _, err := env.svc.AddCase(ctx, p.ID, fresh[0].Barcode); !apperror.IsInvalidState(err) {
		t.Errorf("add to sealed: got %v, want invalid state", err)
	}
}

func TestRemoveCase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, labels := env.buildPallet(t, 2)

	caseLabel, err := env.labelSvc.GetByBarcode(ctx, labels[0].Barcode)
	if err != nil {
		t.Fatalf("label: %v", err)
	}

	p, err = env.svc.RemoveCase(ctx, p.ID, caseLabel.ID, "damaged corner")
	if err != nil {
		t.Fatalf("RemoveCase: %v", err)
	}
	if p.TotalCases != 1 {
		t.Errorf("total cases = %d, want 1", p.TotalCases)
	}
	if err := env.svc.CheckInvariant(ctx, p.ID); err != nil {
		t.Errorf("invariant: %v", err)
	}

	// A removed case is attachable again.
	other, err := env.svc.Create(ctx, env.ownerID, env.location)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.svc.AddCase(ctx, other.ID, labels[0].Barcode); err != nil {
		t.Errorf("re-attach removed case: %v", err)
	}

	if _, err := env.svc.RemoveCase(ctx, p.ID, caseLabel.ID, ""); err == nil {
		t.Error("missing reason should be rejected")
	}
}

func TestSealLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	empty, err := env.svc.Create(ctx, env.ownerID, env.location)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.svc.Seal(ctx, empty.ID); !apperror.IsInvalidState(err) {
		t.Errorf("sealing empty pallet: got %v, want invalid state", err)
	}

	p, _ := env.buildPallet(t, 1)
	sealed, err := env.svc.Seal(ctx, p.ID)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed.Status != StatusSealed || !sealed.IsSealed || sealed.SealedAt == nil {
		t.Errorf("sealed pallet = %+v", sealed)
	}

	if _, err := env.svc.Unseal(ctx, p.ID, ""); err == nil {
		t.Error("unseal without reason should be rejected")
	}
	reopened, err := env.svc.Unseal(ctx, p.ID, "customer change request")
	if err != nil {
		t.Fatalf("Unseal: %v", err)
	}
	if reopened.Status != StatusActive || reopened.IsSealed || reopened.SealedAt != nil {
		t.Errorf("reopened pallet = %+v", reopened)
	}

	unseals := env.movements.ofType(movement.TypePalletUnseal)
	if len(unseals) != 1 || unseals[0].Reason != "customer change request" {
		t.Errorf("unseal movements = %+v", unseals)
	}
}

func TestMove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, _ := env.buildPallet(t, 2)
	dest := id.New()

	moved, err := env.svc.Move(ctx, p.ID, dest)
	if err != nil {
		t.Fatalf("Move active: %v", err)
	}
	if moved.LocationID == nil || *moved.LocationID != dest {
		t.Errorf("location = %v, want %s", moved.LocationID, dest)
	}

	// Sealed pallets still move.
	if _, err := env.svc.Seal(ctx, p.ID); err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := env.svc.Move(ctx, p.ID, id.New()); err != nil {
		t.Errorf("Move sealed: %v", err)
	}

	moves := env.movements.ofType(movement.TypePalletMove)
	if len(moves) != 2 {
		t.Errorf("pallet_move movements = %d, want 2", len(moves))
	}
}

func TestDispatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, labels := env.buildPallet(t, 2)

	// Dispatch requires a sealed pallet.
	if _, err := env.svc.Dispatch(ctx, p.ID, "order 4711"); !apperror.IsInvalidState(err) {
		t.Errorf("dispatch active pallet: got %v, want invalid state", err)
	}

	if _, err := env.svc.Seal(ctx, p.ID); err != nil {
		t.Fatalf("seal: %v", err)
	}
	summary, err := env.svc.Dispatch(ctx, p.ID, "order 4711")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if summary.TotalCases != 2 || len(summary.CaseBarcodes) != 2 {
		t.Errorf("summary = %+v", summary)
	}

	shipped, err := env.svc.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if shipped.Status != StatusRetrieved || shipped.LocationID != nil {
		t.Errorf("dispatched pallet = %+v", shipped)
	}

	// Cases left tracked inventory.
	for _, l := range labels {
		got, err := env.labelSvc.GetByBarcode(ctx, l.Barcode)
		if err != nil {
			t.Fatalf("label: %v", err)
		}
		if got.IsActive {
			t.Errorf("label %s still active after dispatch", l.Barcode)
		}
	}

	dispatches := env.movements.ofType(movement.TypePalletDispatch)
	if len(dispatches) != 1 || len(dispatches[0].ScannedBarcodes) != 2 {
		t.Errorf("dispatch movements = %+v", dispatches)
	}

	// The stock record is consumed, not just the labels.
	if total, _ := env.stocks.TotalQuantity(ctx); total != 0 {
		t.Errorf("stock total after dispatch = %d, want 0", total)
	}

	if len(env.renderer.summaries) != 1 {
		t.Errorf("delivery note rendered %d times, want 1", len(env.renderer.summaries))
	}
}

func TestDispatchKeepsLedgerReconciled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, _ := env.buildPallet(t, 2)
	if _, err := env.svc.Seal(ctx, p.ID); err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := env.svc.Dispatch(ctx, p.ID, "order 4711"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	report, err := env.movementSvc.Reconcile(ctx, env.stocks)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !report.Balanced {
		t.Errorf("ledger delta %d != stock total %d after dispatch",
			report.LedgerDelta, report.StockTotal)
	}
	if report.StockTotal != 0 {
		t.Errorf("stock total = %d, want 0", report.StockTotal)
	}

	// Shipped cases are gone for good; nothing is left to reserve.
	recs, err := env.stocks.ListByLocation(ctx, env.location)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, rec := range recs {
		if rec.AvailableCases > 0 {
			t.Errorf("dispatched cases still available: %+v", rec)
		}
	}
}

func TestDispatchRejectedWhenCasesReserved(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, _ := env.buildPallet(t, 2)
	if _, err := env.svc.Seal(ctx, p.ID); err != nil {
		t.Fatalf("seal: %v", err)
	}

	// Promise one case to an order behind the pallet's back.
	for _, rec := range env.stocks.records {
		r := rec
		if err := r.Reserve(1); err != nil {
			t.Fatalf("reserve: %v", err)
		}
		env.stocks.records[r.ID] = r
	}

	if _, err := env.svc.Dispatch(ctx, p.ID, ""); err == nil {
		t.Error("dispatching reserved cases should be rejected")
	}
}

func TestDispatchSurvivesRendererFailure(t *testing.T) {
	env := newTestEnv(t)
	env.renderer.fail = true
	ctx := context.Background()

	p, _ := env.buildPallet(t, 1)
	if _, err := env.svc.Seal(ctx, p.ID); err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := env.svc.Dispatch(ctx, p.ID, ""); err != nil {
		t.Errorf("renderer failure must not fail dispatch: %v", err)
	}
}

func TestDissolve(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, labels := env.buildPallet(t, 3)
	dest := id.New()

	dissolved, err := env.svc.Dissolve(ctx, p.ID, dest, "order cancelled")
	if err != nil {
		t.Fatalf("Dissolve: %v", err)
	}
	if dissolved.Status != StatusArchived || dissolved.TotalCases != 0 {
		t.Errorf("dissolved pallet = %+v", dissolved)
	}
	if err := env.svc.CheckInvariant(ctx, p.ID); err != nil {
		t.Errorf("invariant: %v", err)
	}

	// Cases return to free stock at the destination, labels stay active.
	for _, l := range labels {
		got, err := env.labelSvc.GetByBarcode(ctx, l.Barcode)
		if err != nil {
			t.Fatalf("label: %v", err)
		}
		if !got.IsActive || got.CurrentLocationID != dest {
			t.Errorf("label %s after dissolve = %+v", l.Barcode, got)
		}
	}

	// The stock record follows its labels to the destination.
	atOld, err := env.stocks.ListByLocation(ctx, env.location)
	if err != nil {
		t.Fatalf("list old location: %v", err)
	}
	if len(atOld) != 0 {
		t.Errorf("stock left behind at old location: %+v", atOld)
	}
	atDest, err := env.stocks.ListByLocation(ctx, dest)
	if err != nil {
		t.Fatalf("list destination: %v", err)
	}
	if len(atDest) != 1 || atDest[0].QuantityCases != 3 || atDest[0].AvailableCases != 3 {
		t.Errorf("stock at destination = %+v, want 3 available cases", atDest)
	}

	if _, err := env.svc.Dissolve(ctx, p.ID, dest, "again"); !apperror.IsInvalidState(err) {
		t.Errorf("dissolving archived pallet: got %v, want invalid state", err)
	}
}

func TestDissolveRetrievedPallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, _ := env.buildPallet(t, 1)
	if _, err := env.svc.Seal(ctx, p.ID); err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := env.svc.Dispatch(ctx, p.ID, ""); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	// A dispatched pallet has nothing left to return to stock.
	if _, err := env.svc.Dissolve(ctx, p.ID, id.New(), "late change"); !apperror.IsInvalidState(err) {
		t.Errorf("dissolving retrieved pallet: got %v, want invalid state", err)
	}
}

func TestDissolveSealedPallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, _ := env.buildPallet(t, 1)
	if _, err := env.svc.Seal(ctx, p.ID); err != nil {
		t.Fatalf("seal: %v", err)
	}

	// Sealed pallets dissolve without unsealing first.
	dissolved, err := env.svc.Dissolve(ctx, p.ID, id.New(), "damaged in racking")
	if err != nil {
		t.Fatalf("Dissolve sealed: %v", err)
	}
	if dissolved.Status != StatusArchived || dissolved.IsSealed {
		t.Errorf("dissolved pallet = %+v", dissolved)
	}
}
