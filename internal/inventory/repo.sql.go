package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/platform/db"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds the ledger queries to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *Repository) GetRecord(ctx context.Context, productID, warehouseID int64) (StockRecord, error) {
	return scanRecord(r.pool.QueryRow(ctx, `SELECT product_id, warehouse_id, quantity, reserved_quantity, updated_at
FROM stock_records WHERE product_id=$1 AND warehouse_id=$2`, productID, warehouseID))
}

func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, warehouse_id, direction, quantity, cost_price, ref_kind, ref_id, transaction_date, actor, created_at
FROM stock_movements
WHERE warehouse_id=$1 AND product_id=$2 AND transaction_date BETWEEN COALESCE($3, '-infinity'::timestamptz) AND COALESCE($4, 'infinity'::timestamptz)
ORDER BY transaction_date ASC, id ASC
LIMIT $5`, filter.WarehouseID, filter.ProductID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		var direction, refKind string
		if err := rows.Scan(&m.ID, &m.ProductID, &m.WarehouseID, &direction, &m.Quantity, &m.CostPrice, &refKind, &m.Reference.ID, &m.TransactionDate, &m.Actor, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Direction = Direction(direction)
		m.Reference.Kind = shared.RefKind(refKind)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *Repository) DefaultWarehouse(ctx context.Context) (Warehouse, error) {
	var wh Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, name, is_default, is_active FROM warehouses
WHERE is_default AND is_active ORDER BY id LIMIT 1`).Scan(&wh.ID, &wh.Name, &wh.IsDefault, &wh.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Warehouse{}, ErrWarehouseNotFound
	}
	return wh, err
}

func (r *Repository) GetAdjustment(ctx context.Context, id int64) (Adjustment, error) {
	var adj Adjustment
	err := r.pool.QueryRow(ctx, `SELECT id, product_id, warehouse_id, quantity, note, actor, created_at
FROM stock_adjustments WHERE id=$1`, id).Scan(&adj.ID, &adj.ProductID, &adj.WarehouseID, &adj.Quantity, &adj.Note, &adj.Actor, &adj.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Adjustment{}, ErrAdjustmentNotFound
	}
	return adj, err
}

// StockDrift compares each cached row with the signed sum of its movements.
func (r *Repository) StockDrift(ctx context.Context) ([]Drift, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.product_id, s.warehouse_id, s.quantity, COALESCE(m.total, 0)
FROM stock_records s
LEFT JOIN (
	SELECT product_id, warehouse_id,
		SUM(CASE WHEN direction='IN' THEN quantity ELSE -quantity END) AS total
	FROM stock_movements GROUP BY product_id, warehouse_id
) m ON m.product_id=s.product_id AND m.warehouse_id=s.warehouse_id
WHERE s.quantity <> COALESCE(m.total, 0)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var drifts []Drift
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.ProductID, &d.WarehouseID, &d.Cached, &d.Movements); err != nil {
			return nil, err
		}
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}

func (r *txRepository) GetRecordForUpdate(ctx context.Context, productID, warehouseID int64) (StockRecord, error) {
	return scanRecord(r.tx.QueryRow(ctx, `SELECT product_id, warehouse_id, quantity, reserved_quantity, updated_at
FROM stock_records WHERE product_id=$1 AND warehouse_id=$2 FOR UPDATE`, productID, warehouseID))
}

func (r *txRepository) UpsertRecord(ctx context.Context, record StockRecord) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_records (product_id, warehouse_id, quantity, reserved_quantity, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (product_id, warehouse_id) DO UPDATE SET quantity=EXCLUDED.quantity, updated_at=EXCLUDED.updated_at`,
		record.ProductID, record.WarehouseID, record.Quantity, record.ReservedQuantity, record.UpdatedAt)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, warehouse_id, direction, quantity, cost_price, ref_kind, ref_id, transaction_date, actor, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		m.ProductID, m.WarehouseID, string(m.Direction), m.Quantity, m.CostPrice, string(m.Reference.Kind), m.Reference.ID, m.TransactionDate, m.Actor, m.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertAdjustment(ctx context.Context, adj Adjustment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_adjustments (product_id, warehouse_id, quantity, note, actor, created_at)
VALUES ($1,$2,$3,$4,$5,NOW()) RETURNING id`, adj.ProductID, adj.WarehouseID, adj.Quantity, adj.Note, adj.Actor).Scan(&id)
	return id, err
}

func (r *txRepository) GetProductUnits(ctx context.Context, productID int64) (ProductUnits, error) {
	units := ProductUnits{ProductID: productID}
	var baseUnit *int64
	var rate decimal.NullDecimal
	err := r.tx.QueryRow(ctx, `SELECT unit_id, base_unit_id, conversion_rate FROM products WHERE id=$1`, productID).
		Scan(&units.UnitID, &baseUnit, &rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductUnits{}, ErrProductNotFound
		}
		return ProductUnits{}, err
	}
	if baseUnit != nil {
		units.BaseUnitID = *baseUnit
	}
	if rate.Valid {
		units.ConversionRate = rate.Decimal
	}
	return units, nil
}

func (r *txRepository) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	var wh Warehouse
	err := r.tx.QueryRow(ctx, `SELECT id, name, is_default, is_active FROM warehouses WHERE id=$1`, id).
		Scan(&wh.ID, &wh.Name, &wh.IsDefault, &wh.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Warehouse{}, ErrWarehouseNotFound
	}
	return wh, err
}

func scanRecord(row pgx.Row) (StockRecord, error) {
	var rec StockRecord
	err := row.Scan(&rec.ProductID, &rec.WarehouseID, &rec.Quantity, &rec.ReservedQuantity, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockRecord{}, ErrRecordNotFound
		}
		return StockRecord{}, err
	}
	return rec, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
