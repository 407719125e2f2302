package settlement

import (
	"context"

	"github.com/odyssey-erp/odyssey-retail/internal/cashbook"
	"github.com/odyssey-erp/odyssey-retail/internal/debt"
	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
	"github.com/odyssey-erp/odyssey-retail/internal/orders"
)

// Tx groups the ledger repositories bound to one database transaction.
type Tx interface {
	Orders() orders.TxRepository
	Stock() inventory.TxRepository
	Debt() debt.TxRepository
	Cash() cashbook.TxRepository
	// ClaimKey records an idempotency key; a replay fails with shared.ErrIdempotencyConflict.
	ClaimKey(ctx context.Context, key string, event Event) error
}

// Store opens settlement transactions. Everything written through the Tx
// handed to fn commits together or not at all.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
	GetOrder(ctx context.Context, id int64) (orders.Order, error)
}
