package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	"vintrack/internal/core/apperror"
	"vintrack/internal/domain/movement"
)

const stockMovementsTable = "stock_movements"

// barcodeCompressThreshold is the serialized-payload size above which
// scanned barcodes are stored zstd-compressed. Bulk pallet dispatches
// can carry hundreds of barcodes; ordinary movements stay uncompressed.
const barcodeCompressThreshold = 4 * 1024

const compressionAlgoZstd = "zstd"

var movementColumns = []string{
	"id", "movement_number", "movement_type", "lwin18", "lot_number",
	"quantity_cases", "from_location_id", "to_location_id",
	"from_owner_id", "to_owner_id", "owner_name",
	"order_id", "pallet_code", "reason", "correction",
	"scanned_barcodes", "compression_algo",
	"performed_by", "performed_at", "created_at",
}

// movementRow carries the stored barcode payload alongside the domain
// struct. Barcodes are persisted as a JSON array, optionally compressed.
type movementRow struct {
	movement.StockMovement

	BarcodesRaw     []byte `db:"scanned_barcodes"`
	CompressionAlgo string `db:"compression_algo"`
}

// Compile-time check that MovementRepo implements movement.Repository.
var _ movement.Repository = (*MovementRepo)(nil)

// MovementRepo implements the append-only movement ledger store.
type MovementRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

// NewMovementRepo creates a movement ledger repository.
func NewMovementRepo(txManager *TxManager) (*MovementRepo, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &MovementRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		encoder:   encoder,
		decoder:   decoder,
	}, nil
}

func (r *MovementRepo) Create(ctx context.Context, m *movement.StockMovement) error {
	payload, algo, err := r.encodeBarcodes(m.ScannedBarcodes)
	if err != nil {
		return err
	}

	q := r.builder.Insert(stockMovementsTable).
		Columns(movementColumns...).
		Values(
			m.ID, m.MovementNumber, m.Type, m.LWIN18, m.LotNumber,
			m.QuantityCases, m.FromLocationID, m.ToLocationID,
			m.FromOwnerID, m.ToOwnerID, m.OwnerName,
			m.OrderID, m.PalletCode, m.Reason, m.Correction,
			payload, algo,
			m.PerformedBy, m.PerformedAt, m.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

func (r *MovementRepo) GetByNumber(ctx context.Context, number string) (*movement.StockMovement, error) {
	q := r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"movement_number": number})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row movementRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("movement", number)
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}

	m, err := r.fromRow(&row)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MovementRepo) List(ctx context.Context, filter movement.Filter) ([]movement.StockMovement, error) {
	q := r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		OrderBy("performed_at DESC", "movement_number DESC")

	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"movement_type": *filter.Type})
	}
	if filter.LWIN18 != nil {
		q = q.Where(squirrel.Eq{"lwin18": *filter.LWIN18})
	}
	if filter.LocationID != nil {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"from_location_id": *filter.LocationID},
			squirrel.Eq{"to_location_id": *filter.LocationID},
		})
	}
	if filter.OrderID != nil {
		q = q.Where(squirrel.Eq{"order_id": *filter.OrderID})
	}
	if filter.PalletCode != nil {
		q = q.Where(squirrel.Eq{"pallet_code": *filter.PalletCode})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"performed_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"performed_at": *filter.ToDate})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []movementRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}

	movements := make([]movement.StockMovement, 0, len(rows))
	for i := range rows {
		m, err := r.fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		movements = append(movements, *m)
	}
	return movements, nil
}

// SumDeltas computes the ledger-wide inventory delta in SQL. The CASE
// expression must stay in lockstep with StockMovement.InventoryDelta.
func (r *MovementRepo) SumDeltas(ctx context.Context) (int, error) {
	sql := `
		SELECT COALESCE(SUM(
			CASE
				WHEN correction THEN 0
				WHEN movement_type IN ('receive', 'repack_in') THEN quantity_cases
				WHEN movement_type IN ('pick', 'repack_out', 'pallet_dispatch') THEN -quantity_cases
				WHEN movement_type IN ('adjust', 'count') THEN quantity_cases
				ELSE 0
			END
		), 0)
		FROM ` + stockMovementsTable

	var total int
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum movement deltas: %w", err)
	}
	return total, nil
}

// encodeBarcodes serializes scanned barcodes to JSON, compressing
// payloads above the threshold. Returns nil for movements without scans.
func (r *MovementRepo) encodeBarcodes(barcodes []string) ([]byte, string, error) {
	if len(barcodes) == 0 {
		return nil, "", nil
	}

	data, err := json.Marshal(barcodes)
	if err != nil {
		return nil, "", fmt.Errorf("marshal barcodes: %w", err)
	}
	if len(data) < barcodeCompressThreshold {
		return data, "", nil
	}
	return r.encoder.EncodeAll(data, nil), compressionAlgoZstd, nil
}

func (r *MovementRepo) fromRow(row *movementRow) (*movement.StockMovement, error) {
	m := row.StockMovement
	if len(row.BarcodesRaw) == 0 {
		return &m, nil
	}

	data := row.BarcodesRaw
	if row.CompressionAlgo == compressionAlgoZstd {
		decoded, err := r.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress barcodes for movement %s: %w", m.MovementNumber, err)
		}
		data = decoded
	}

	if err := json.Unmarshal(data, &m.ScannedBarcodes); err != nil {
		return nil, fmt.Errorf("unmarshal barcodes for movement %s: %w", m.MovementNumber, err)
	}
	return &m, nil
}
