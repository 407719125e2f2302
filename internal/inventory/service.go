package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/odyssey-retail/internal/platform/lock"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRecord(ctx context.Context, productID, warehouseID int64) (StockRecord, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	DefaultWarehouse(ctx context.Context) (Warehouse, error)
	GetAdjustment(ctx context.Context, id int64) (Adjustment, error)
	StockDrift(ctx context.Context) ([]Drift, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stand-alone inventory operations.
type Service struct {
	repo   RepositoryPort
	ledger *Ledger
	locker lock.Locker
	audit  AuditPort
	logger *slog.Logger
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, locker lock.Locker, audit AuditPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: NewLedger(cfg.AllowNegativeStock), locker: locker, audit: audit, logger: logger}
}

// Ledger exposes the ledger configured for this service.
func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// PostAdjustment posts a signed manual correction backed by an adjustment document.
func (s *Service) PostAdjustment(ctx context.Context, input AdjustmentInput) (Movement, error) {
	if input.WarehouseID == 0 || input.ProductID == 0 {
		return Movement{}, fmt.Errorf("%w: warehouse and product required", shared.ErrValidation)
	}
	if input.Quantity.IsZero() {
		return Movement{}, ErrInvalidQuantity
	}
	if input.CostPrice.IsNegative() {
		return Movement{}, fmt.Errorf("%w: cost price must be >= 0", shared.ErrValidation)
	}
	release, err := s.locker.Acquire(ctx, shared.StockLockKey(input.ProductID, input.WarehouseID))
	if err != nil {
		return Movement{}, fmt.Errorf("%w: stock row busy: %w", shared.ErrStateConflict, err)
	}
	defer func() { _ = release(context.WithoutCancel(ctx)) }()

	var posted Movement
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		baseQty, err := Convert(ctx, tx, input.ProductID, input.UnitID, input.Quantity.Abs())
		if err != nil {
			return err
		}
		direction := DirectionIn
		signed := baseQty
		if input.Quantity.IsNegative() {
			direction = DirectionOut
			signed = baseQty.Neg()
		}
		adjID, err := tx.InsertAdjustment(ctx, Adjustment{
			ProductID:   input.ProductID,
			WarehouseID: input.WarehouseID,
			Quantity:    signed,
			Note:        input.Note,
			Actor:       input.Actor,
		})
		if err != nil {
			return err
		}
		posted, _, err = s.ledger.Post(ctx, tx, MovementInput{
			ProductID:   input.ProductID,
			WarehouseID: input.WarehouseID,
			Direction:   direction,
			Quantity:    baseQty,
			CostPrice:   input.CostPrice,
			Reference:   shared.Ref(shared.RefStockAdjustment, adjID),
			Actor:       input.Actor,
		})
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	s.recordAudit(ctx, input.Actor, "inventory:ADJUST", posted, input.Note)
	return posted, nil
}

// PostTransfer moves stock between warehouses as an OUT and an IN in one transaction.
func (s *Service) PostTransfer(ctx context.Context, input TransferInput) (Movement, Movement, error) {
	if input.SrcWarehouse == 0 || input.DstWarehouse == 0 || input.ProductID == 0 {
		return Movement{}, Movement{}, fmt.Errorf("%w: warehouse and product required", shared.ErrValidation)
	}
	if input.SrcWarehouse == input.DstWarehouse {
		return Movement{}, Movement{}, fmt.Errorf("%w: source and destination warehouse must differ", shared.ErrValidation)
	}
	if !input.Quantity.IsPositive() {
		return Movement{}, Movement{}, ErrInvalidQuantity
	}
	release, err := s.locker.Acquire(ctx,
		shared.StockLockKey(input.ProductID, input.SrcWarehouse),
		shared.StockLockKey(input.ProductID, input.DstWarehouse))
	if err != nil {
		return Movement{}, Movement{}, fmt.Errorf("%w: stock row busy: %w", shared.ErrStateConflict, err)
	}
	defer func() { _ = release(context.WithoutCancel(ctx)) }()

	var out, in Movement
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		baseQty, err := Convert(ctx, tx, input.ProductID, input.UnitID, input.Quantity)
		if err != nil {
			return err
		}
		adjID, err := tx.InsertAdjustment(ctx, Adjustment{
			ProductID:   input.ProductID,
			WarehouseID: input.SrcWarehouse,
			Quantity:    baseQty.Neg(),
			Note:        fmt.Sprintf("Transfer to %d: %s", input.DstWarehouse, input.Note),
			Actor:       input.Actor,
		})
		if err != nil {
			return err
		}
		ref := shared.Ref(shared.RefStockAdjustment, adjID)
		out, _, err = s.ledger.Post(ctx, tx, MovementInput{
			ProductID: input.ProductID, WarehouseID: input.SrcWarehouse, Direction: DirectionOut,
			Quantity: baseQty, Reference: ref, Actor: input.Actor,
		})
		if err != nil {
			return err
		}
		in, _, err = s.ledger.Post(ctx, tx, MovementInput{
			ProductID: input.ProductID, WarehouseID: input.DstWarehouse, Direction: DirectionIn,
			Quantity: baseQty, Reference: ref, Actor: input.Actor,
		})
		return err
	})
	if err != nil {
		return Movement{}, Movement{}, err
	}
	s.recordAudit(ctx, input.Actor, "inventory:TRANSFER", out, input.Note)
	return out, in, nil
}

// GetRecord returns the stock row, reporting a zero quantity when it was never written.
func (s *Service) GetRecord(ctx context.Context, productID, warehouseID int64) (StockRecord, error) {
	rec, err := s.repo.GetRecord(ctx, productID, warehouseID)
	if errors.Is(err, ErrRecordNotFound) {
		return StockRecord{ProductID: productID, WarehouseID: warehouseID}, nil
	}
	return rec, err
}

// ListMovements lists stock card entries.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.WarehouseID == 0 || filter.ProductID == 0 {
		return nil, fmt.Errorf("%w: warehouse and product required", shared.ErrValidation)
	}
	return s.repo.ListMovements(ctx, filter)
}

// GetAdjustment returns the adjustment document referenced by stock movements.
func (s *Service) GetAdjustment(ctx context.Context, id int64) (Adjustment, error) {
	return s.repo.GetAdjustment(ctx, id)
}

// ResolveDefaultWarehouse returns the active default warehouse. A missing one
// is reported as ErrNoDefaultWarehouse so that startup can abort.
func ResolveDefaultWarehouse(ctx context.Context, repo RepositoryPort) (Warehouse, error) {
	wh, err := repo.DefaultWarehouse(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Warehouse{}, ErrNoDefaultWarehouse
		}
		return Warehouse{}, err
	}
	if !wh.IsActive || !wh.IsDefault {
		return Warehouse{}, ErrNoDefaultWarehouse
	}
	return wh, nil
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, m Movement, note string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "stock_movement",
		EntityID: fmt.Sprintf("%d", m.ID),
		Meta: map[string]any{
			"warehouse_id": m.WarehouseID,
			"product_id":   m.ProductID,
			"qty":          m.Signed().String(),
			"note":         note,
		},
	}); err != nil {
		s.logger.Warn("inventory audit", slog.Any("error", err))
	}
}
