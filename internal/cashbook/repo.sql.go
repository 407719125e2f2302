package cashbook

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-retail/internal/platform/db"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// Repository persists cashbook entries in PostgreSQL.
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

// NewTxRepository binds the append to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("cashbook repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *Repository) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, entry_type, category, amount, description, payment_method, ref_kind, ref_id, transaction_date, actor, created_at
FROM cash_entries
WHERE transaction_date BETWEEN COALESCE($1, '-infinity'::timestamptz) AND COALESCE($2, 'infinity'::timestamptz)
  AND ($3 = '' OR entry_type = $3)
ORDER BY transaction_date DESC, id DESC
LIMIT $4`, nullTime(filter.From), nullTime(filter.To), string(filter.Type), filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		var typ, method, refKind string
		if err := rows.Scan(&e.ID, &typ, &e.Category, &e.Amount, &e.Description, &method, &refKind, &e.Reference.ID, &e.TransactionDate, &e.Actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EntryType(typ)
		e.PaymentMethod = shared.PaymentMethod(method)
		e.Reference.Kind = shared.RefKind(refKind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Repository) Totals(ctx context.Context, from, to time.Time) (Summary, error) {
	s := Summary{From: from, To: to}
	err := r.pool.QueryRow(ctx, `SELECT
	COALESCE(SUM(amount) FILTER (WHERE entry_type='INCOME'), 0),
	COALESCE(SUM(amount) FILTER (WHERE entry_type='EXPENSE'), 0),
	COUNT(*)
FROM cash_entries WHERE transaction_date BETWEEN $1 AND $2`, from, to).Scan(&s.Income, &s.Expense, &s.Count)
	if err != nil {
		return Summary{}, err
	}
	s.Net = s.Income.Sub(s.Expense)
	return s, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, e Entry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO cash_entries (entry_type, category, amount, description, payment_method, ref_kind, ref_id, transaction_date, actor, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		string(e.Type), e.Category, e.Amount, e.Description, string(e.PaymentMethod), string(e.Reference.Kind), e.Reference.ID, e.TransactionDate, e.Actor, e.CreatedAt).Scan(&id)
	return id, err
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
