package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-retail/internal/cashbook"
	"github.com/odyssey-erp/odyssey-retail/internal/debt"
	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
	"github.com/odyssey-erp/odyssey-retail/internal/orders"
	"github.com/odyssey-erp/odyssey-retail/internal/platform/db"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// PgStore composes the ledger repositories over one PostgreSQL transaction.
type PgStore struct {
	pool   *pgxpool.Pool
	orders *orders.Repository
}

// NewStore constructs PgStore.
func NewStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool, orders: orders.NewRepository(pool)}
}

type pgTx struct {
	tx     pgx.Tx
	orders orders.TxRepository
	stock  inventory.TxRepository
	debt   debt.TxRepository
	cash   cashbook.TxRepository
}

// WithTx runs fn inside one repeatable-read transaction. Serialization and
// deadlock failures are replayed by db.WithTx; once its attempts run out they
// surface as state conflicts so the client can retry.
func (s *PgStore) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	if s == nil || s.pool == nil {
		return errors.New("settlement store not initialised")
	}
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{
			tx:     tx,
			orders: orders.NewTxRepository(tx),
			stock:  inventory.NewTxRepository(tx),
			debt:   debt.NewTxRepository(tx),
			cash:   cashbook.NewTxRepository(tx),
		})
	})
	if db.IsRetryable(err) {
		return fmt.Errorf("%w: concurrent settlement, retry: %v", shared.ErrStateConflict, err)
	}
	return err
}

func (s *PgStore) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	return s.orders.GetOrder(ctx, id)
}

func (t *pgTx) Orders() orders.TxRepository { return t.orders }
func (t *pgTx) Stock() inventory.TxRepository { return t.stock }
func (t *pgTx) Debt() debt.TxRepository { return t.debt }
func (t *pgTx) Cash() cashbook.TxRepository { return t.cash }

func (t *pgTx) ClaimKey(ctx context.Context, key string, event Event) error {
	return shared.ClaimIdempotencyKey(ctx, t.tx, key, "settlement:"+string(event))
}
