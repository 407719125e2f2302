// Package settlement applies retail business events to the order, stock, debt
// and cash ledgers in a single database transaction.
//
// Every event follows the same shape: plan the keyed locks from a plain read,
// acquire them in sorted order, open a repeatable-read transaction, claim the
// idempotency key when one was supplied, re-read the touched rows FOR UPDATE,
// post to the ledgers and commit. A failure at any step leaves no ledger row
// behind.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/cashbook"
	"github.com/odyssey-erp/odyssey-retail/internal/debt"
	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
	"github.com/odyssey-erp/odyssey-retail/internal/orders"
	"github.com/odyssey-erp/odyssey-retail/internal/platform/lock"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// ErrDuplicateSettlement is returned when an idempotency key is replayed.
var ErrDuplicateSettlement = shared.ErrIdempotencyConflict

const (
	outcomeCommitted = "committed"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

// CacheInvalidator drops cached cash summaries after entries are appended.
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Config groups settlement behaviour switches.
type Config struct {
	AllowNegativeStock bool
	StrictRefunds      bool
	// DefaultWarehouseID receives returns that name no warehouse. It is
	// resolved once at startup.
	DefaultWarehouseID int64
}

// Service coordinates settlement events.
type Service struct {
	store            Store
	locker           lock.Locker
	stock            *inventory.Ledger
	debts            *debt.Ledger
	cash             CacheInvalidator
	audit            AuditPort
	metrics          *Metrics
	logger           *slog.Logger
	validate         *validator.Validate
	defaultWarehouse int64
	now              func() time.Time
}

// NewService constructs the coordinator. A missing default warehouse is a
// configuration error.
func NewService(store Store, locker lock.Locker, cash CacheInvalidator, audit AuditPort, metrics *Metrics, logger *slog.Logger, cfg Config) (*Service, error) {
	if store == nil {
		return nil, errors.New("settlement: store required")
	}
	if cfg.DefaultWarehouseID <= 0 {
		return nil, inventory.ErrNoDefaultWarehouse
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:            store,
		locker:           locker,
		stock:            inventory.NewLedger(cfg.AllowNegativeStock),
		debts:            debt.NewLedger(cfg.StrictRefunds),
		cash:             cash,
		audit:            audit,
		metrics:          metrics,
		logger:           logger,
		validate:         validator.New(),
		defaultWarehouse: cfg.DefaultWarehouseID,
		now:              func() time.Time { return time.Now().UTC() },
	}, nil
}

// DefaultWarehouse returns the warehouse used for returns without a target.
func (s *Service) DefaultWarehouse() int64 {
	return s.defaultWarehouse
}

type planFunc func(ctx context.Context) ([]string, error)

type applyFunc func(ctx context.Context, tx Tx, res *Result) error

func (s *Service) run(ctx context.Context, event Event, req any, meta Meta, plan planFunc, apply applyFunc) (Result, error) {
	start := time.Now()
	if err := s.validate.Struct(req); err != nil {
		return Result{}, s.fail(event, meta, start, fmt.Errorf("%w: %v", shared.ErrValidation, err))
	}
	keys, err := plan(ctx)
	if err != nil {
		return Result{}, s.fail(event, meta, start, err)
	}
	release, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		return Result{}, s.fail(event, meta, start, fmt.Errorf("%w: ledger rows busy: %w", shared.ErrStateConflict, err))
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("settlement lock release", slog.String("event", string(event)), slog.Any("error", err))
		}
	}()

	res := Result{ID: uuid.NewString(), Event: event}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		res.Movements, res.DebtTransactions, res.CashEntries = nil, nil, nil
		if meta.IdempotencyKey != "" {
			if err := tx.ClaimKey(ctx, meta.IdempotencyKey, event); err != nil {
				return err
			}
		}
		return apply(ctx, tx, &res)
	})
	if err != nil {
		return Result{}, s.fail(event, meta, start, err)
	}
	res.CompletedAt = s.now()
	s.metrics.observe(event, outcomeCommitted, start)
	if len(res.CashEntries) > 0 && s.cash != nil {
		s.cash.Invalidate(ctx)
	}
	s.recordAudit(ctx, meta.Actor, res)
	return res, nil
}

func (s *Service) fail(event Event, meta Meta, start time.Time, err error) error {
	if shared.IsCallerError(err) {
		s.metrics.observe(event, outcomeRejected, start)
		return err
	}
	s.metrics.observe(event, outcomeFailed, start)
	s.logger.Error("settlement failed",
		slog.String("event", string(event)),
		slog.String("idempotency_key", meta.IdempotencyKey),
		slog.String("actor", meta.Actor),
		slog.Any("error", err))
	return fmt.Errorf("%w: %s: %w", shared.ErrInternal, event, err)
}

func (s *Service) moveStock(ctx context.Context, tx Tx, res *Result, in inventory.MovementInput) error {
	movement, _, err := s.stock.Post(ctx, tx.Stock(), in)
	if err != nil {
		return err
	}
	res.Movements = append(res.Movements, movement)
	return nil
}

// moveLine converts qty of a line into base units and posts it.
func (s *Service) moveLine(ctx context.Context, tx Tx, res *Result, line orders.Line, qty decimal.Decimal, warehouseID int64, dir inventory.Direction, ref shared.Reference, actor string) error {
	baseQty, err := inventory.Convert(ctx, tx.Stock(), line.ProductID, line.UnitID, qty)
	if err != nil {
		return err
	}
	return s.moveStock(ctx, tx, res, inventory.MovementInput{
		ProductID:   line.ProductID,
		WarehouseID: warehouseID,
		Direction:   dir,
		Quantity:    baseQty,
		CostPrice:   inventory.UnitCost(line.UnitPrice, qty, baseQty),
		Reference:   ref,
		Actor:       actor,
	})
}

func (s *Service) postDebt(ctx context.Context, tx Tx, res *Result, e debt.Entry) (debt.Transaction, error) {
	txn, _, err := s.debts.Post(ctx, tx.Debt(), e)
	if err != nil {
		return debt.Transaction{}, err
	}
	res.DebtTransactions = append(res.DebtTransactions, txn)
	return txn, nil
}

func (s *Service) appendCash(ctx context.Context, tx Tx, res *Result, e cashbook.Entry) error {
	entry, err := cashbook.Append(ctx, tx.Cash(), e)
	if err != nil {
		return err
	}
	res.CashEntries = append(res.CashEntries, entry)
	return nil
}

func (s *Service) saveOrder(ctx context.Context, tx Tx, o *orders.Order) error {
	o.UpdatedAt = s.now()
	return tx.Orders().UpdateOrder(ctx, *o)
}

// planOrder reads the order outside the transaction and derives its lock keys.
// When warehouse is set and yields a positive id, stock keys for every line
// in that warehouse are added.
func (s *Service) planOrder(ctx context.Context, id int64, kind orders.Kind, warehouse func(orders.Order) int64) ([]string, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Kind != kind {
		return nil, fmt.Errorf("%w: order %d is a %s order", orders.ErrValidation, id, o.Kind)
	}
	keys := []string{shared.OrderLockKey(o.ID)}
	if o.PartyID > 0 {
		keys = append(keys, shared.DebtLockKey(string(partyOf(o)), o.PartyID))
	}
	if warehouse == nil {
		return keys, nil
	}
	if warehouseID := warehouse(o); warehouseID > 0 {
		for _, l := range o.Lines {
			keys = append(keys, shared.StockLockKey(l.ProductID, warehouseID))
		}
	}
	return keys, nil
}

func lockOrder(ctx context.Context, tx Tx, id int64, kind orders.Kind) (orders.Order, error) {
	o, err := tx.Orders().GetOrderForUpdate(ctx, id)
	if err != nil {
		return orders.Order{}, err
	}
	if o.Kind != kind {
		return orders.Order{}, fmt.Errorf("%w: order %d is a %s order", orders.ErrValidation, id, o.Kind)
	}
	return o, nil
}

func lineIndex(o orders.Order, lineID int64) (int, error) {
	for i, l := range o.Lines {
		if l.ID == lineID {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: line %d not on order %d", orders.ErrValidation, lineID, o.ID)
}

func partyOf(o orders.Order) debt.Party {
	if o.Kind == orders.KindPurchase {
		return debt.PartySupplier
	}
	return debt.PartyCustomer
}

func (s *Service) warehouseOr(ids ...int64) int64 {
	for _, id := range ids {
		if id > 0 {
			return id
		}
	}
	return s.defaultWarehouse
}

func (s *Service) recordAudit(ctx context.Context, actor string, res Result) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{
		"movements":         len(res.Movements),
		"debt_transactions": len(res.DebtTransactions),
		"cash_entries":      len(res.CashEntries),
	}
	if res.Order != nil {
		meta["order_id"] = res.Order.ID
		meta["status"] = string(res.Order.Status)
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   "settlement:" + string(res.Event),
		Entity:   "settlement",
		EntityID: res.ID,
		Meta:     meta,
		At:       res.CompletedAt,
	}); err != nil {
		s.logger.Warn("settlement audit", slog.String("settlement_id", res.ID), slog.Any("error", err))
	}
}
