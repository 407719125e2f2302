package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/platform/db"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// Repository persists orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds order queries to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("orders repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const orderColumns = `id, kind, number, party_id, source_order_id, warehouse_id, subtotal, discount_kind, discount_value, discount, total,
payment_method, paid_amount, refunded_amount, due_date, status, reason, notes, actor, created_at, updated_at, completed_at`

const lineColumns = `id, order_id, product_id, unit_id, quantity, unit_price, discount, total, received_quantity, refunded_quantity,
source_line_id, expiry_date, notes`

func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	return loadOrder(ctx, r.pool, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
}

func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders
WHERE ($1 = '' OR kind = $1) AND ($2 = '' OR status = $2)
ORDER BY created_at DESC, id DESC
LIMIT $3`, string(filter.Kind), string(filter.Status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	return loadOrder(ctx, r.tx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id)
}

func (r *txRepository) InsertOrder(ctx context.Context, o Order) (Order, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO orders (kind, number, party_id, source_order_id, warehouse_id, subtotal, discount_kind, discount_value, discount, total,
payment_method, paid_amount, refunded_amount, due_date, status, reason, notes, actor, created_at, updated_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21) RETURNING id`,
		string(o.Kind), o.Number, nullID(o.PartyID), nullID(o.SourceOrderID), nullID(o.WarehouseID), o.Subtotal,
		string(o.DiscountSpec.Kind), o.DiscountSpec.Value, o.Discount, o.Total, string(o.PaymentMethod), o.PaidAmount,
		o.RefundedAmount, o.DueDate, string(o.Status), o.Reason, o.Notes, o.Actor, o.CreatedAt, o.UpdatedAt, o.CompletedAt).Scan(&o.ID)
	if err != nil {
		return Order{}, err
	}
	lines, err := r.ReplaceLines(ctx, o.ID, o.Lines)
	if err != nil {
		return Order{}, err
	}
	o.Lines = lines
	return o, nil
}

func (r *txRepository) UpdateOrder(ctx context.Context, o Order) error {
	tag, err := r.tx.Exec(ctx, `UPDATE orders SET number=$2, party_id=$3, warehouse_id=$4, subtotal=$5, discount_kind=$6, discount_value=$7,
discount=$8, total=$9, payment_method=$10, paid_amount=$11, refunded_amount=$12, due_date=$13, status=$14, reason=$15, notes=$16,
updated_at=$17, completed_at=$18
WHERE id=$1`,
		o.ID, o.Number, nullID(o.PartyID), nullID(o.WarehouseID), o.Subtotal, string(o.DiscountSpec.Kind), o.DiscountSpec.Value,
		o.Discount, o.Total, string(o.PaymentMethod), o.PaidAmount, o.RefundedAmount, o.DueDate, string(o.Status), o.Reason, o.Notes,
		o.UpdatedAt, o.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) ReplaceLines(ctx context.Context, orderID int64, lines []Line) ([]Line, error) {
	if _, err := r.tx.Exec(ctx, `DELETE FROM order_lines WHERE order_id=$1`, orderID); err != nil {
		return nil, err
	}
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		l.OrderID = orderID
		err := r.tx.QueryRow(ctx, `INSERT INTO order_lines (order_id, product_id, unit_id, quantity, unit_price, discount, total,
received_quantity, refunded_quantity, source_line_id, expiry_date, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
			l.OrderID, l.ProductID, nullID(l.UnitID), l.Quantity, l.UnitPrice, l.Discount, l.Total,
			l.ReceivedQuantity, l.RefundedQuantity, nullID(l.SourceLineID), l.ExpiryDate, l.Notes).Scan(&l.ID)
		if err != nil {
			return nil, fmt.Errorf("insert order line: %w", err)
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *txRepository) UpdateLine(ctx context.Context, l Line) error {
	_, err := r.tx.Exec(ctx, `UPDATE order_lines SET received_quantity=$2, refunded_quantity=$3, expiry_date=$4 WHERE id=$1`,
		l.ID, l.ReceivedQuantity, l.RefundedQuantity, l.ExpiryDate)
	return err
}

func (r *txRepository) DeleteOrder(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM order_lines WHERE order_id=$1`, id); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	return err
}

func (r *txRepository) PendingReturnQuantities(ctx context.Context, saleOrderID, excludeReturnID int64) (map[int64]decimal.Decimal, error) {
	rows, err := r.tx.Query(ctx, `SELECT l.source_line_id, SUM(l.quantity)
FROM order_lines l JOIN orders o ON o.id = l.order_id
WHERE o.kind = 'RETURN' AND o.status = 'DRAFT' AND o.source_order_id = $1 AND o.id <> $2
GROUP BY l.source_line_id`, saleOrderID, excludeReturnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	pending := map[int64]decimal.Decimal{}
	for rows.Next() {
		var lineID int64
		var qty decimal.Decimal
		if err := rows.Scan(&lineID, &qty); err != nil {
			return nil, err
		}
		pending[lineID] = qty
	}
	return pending, rows.Err()
}

func loadOrder(ctx context.Context, q querier, sql string, id int64) (Order, error) {
	order, err := scanOrder(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	rows, err := q.Query(ctx, `SELECT `+lineColumns+` FROM order_lines WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		var unitID, sourceLineID *int64
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &unitID, &l.Quantity, &l.UnitPrice, &l.Discount, &l.Total,
			&l.ReceivedQuantity, &l.RefundedQuantity, &sourceLineID, &l.ExpiryDate, &l.Notes); err != nil {
			return Order{}, err
		}
		l.UnitID = derefID(unitID)
		l.SourceLineID = derefID(sourceLineID)
		order.Lines = append(order.Lines, l)
	}
	return order, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var kind, discountKind, method, status string
	var partyID, sourceID, warehouseID *int64
	var dueDate, completedAt *time.Time
	err := row.Scan(&o.ID, &kind, &o.Number, &partyID, &sourceID, &warehouseID, &o.Subtotal, &discountKind, &o.DiscountSpec.Value,
		&o.Discount, &o.Total, &method, &o.PaidAmount, &o.RefundedAmount, &dueDate, &status, &o.Reason, &o.Notes, &o.Actor,
		&o.CreatedAt, &o.UpdatedAt, &completedAt)
	if err != nil {
		return Order{}, err
	}
	o.Kind = Kind(kind)
	o.DiscountSpec.Kind = DiscountKind(discountKind)
	o.PaymentMethod = shared.PaymentMethod(method)
	o.Status = Status(status)
	o.PartyID = derefID(partyID)
	o.SourceOrderID = derefID(sourceID)
	o.WarehouseID = derefID(warehouseID)
	o.DueDate = dueDate
	o.CompletedAt = completedAt
	return o, nil
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
