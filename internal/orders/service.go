package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// TxRepository exposes transactional order persistence. The settlement
// coordinator shares it with the ledgers inside one transaction.
type TxRepository interface {
	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	InsertOrder(ctx context.Context, order Order) (Order, error)
	UpdateOrder(ctx context.Context, order Order) error
	ReplaceLines(ctx context.Context, orderID int64, lines []Line) ([]Line, error)
	UpdateLine(ctx context.Context, line Line) error
	DeleteOrder(ctx context.Context, id int64) error
	PendingReturnQuantities(ctx context.Context, saleOrderID, excludeReturnID int64) (map[int64]decimal.Decimal, error)
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages order documents outside of settlement events.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs order service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreateDraft persists a sale or purchase order in Draft.
func (s *Service) CreateDraft(ctx context.Context, kind Kind, input DraftInput) (Order, error) {
	if kind != KindSale && kind != KindPurchase {
		return Order{}, fmt.Errorf("%w: drafts are created for sales and purchases", ErrValidation)
	}
	order, err := buildDraft(kind, input)
	if err != nil {
		return Order{}, err
	}
	now := s.now()
	order.Number = defaultString(input.Number, generateNumber(numberPrefix(kind)))
	order.Status = StatusDraft
	order.CreatedAt = now
	order.UpdatedAt = now

	var created Order
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.InsertOrder(ctx, order)
		return err
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, input.Actor, string(kind)+"_CREATE", created, nil)
	return created, nil
}

// UpdateDraft replaces header fields and lines of a Draft order.
func (s *Service) UpdateDraft(ctx context.Context, id int64, input DraftInput) (Order, error) {
	var updated Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Kind == KindReturn {
			return fmt.Errorf("%w: return orders cannot be edited", ErrInvalidState)
		}
		if err := RequireStatus(current, "edit", StatusDraft); err != nil {
			return err
		}
		next, err := buildDraft(current.Kind, input)
		if err != nil {
			return err
		}
		next.ID = current.ID
		next.Number = defaultString(input.Number, current.Number)
		next.Status = current.Status
		next.CreatedAt = current.CreatedAt
		next.UpdatedAt = s.now()
		lines, err := tx.ReplaceLines(ctx, id, next.Lines)
		if err != nil {
			return err
		}
		next.Lines = lines
		if err := tx.UpdateOrder(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, input.Actor, string(updated.Kind)+"_UPDATE", updated, nil)
	return updated, nil
}

// CreateReturnDraft records a Draft return against a completed sale.
func (s *Service) CreateReturnDraft(ctx context.Context, input ReturnInput) (Order, error) {
	var created Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetOrderForUpdate(ctx, input.SaleOrderID)
		if err != nil {
			return err
		}
		order, err := PrepareReturn(ctx, tx, sale, input, 0)
		if err != nil {
			return err
		}
		now := s.now()
		order.Status = StatusDraft
		order.CreatedAt = now
		order.UpdatedAt = now
		created, err = tx.InsertOrder(ctx, order)
		return err
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, input.Actor, "RETURN_CREATE", created, map[string]any{"sale_order_id": input.SaleOrderID})
	return created, nil
}

// PrepareReturn validates input against the source sale and builds the return
// order with proportional line values. Quantities held by other Draft returns
// count against the sale line, excluding the return being completed.
func PrepareReturn(ctx context.Context, tx TxRepository, sale Order, input ReturnInput, excludeReturnID int64) (Order, error) {
	if sale.Kind != KindSale {
		return Order{}, fmt.Errorf("%w: order %d is not a sale", ErrValidation, sale.ID)
	}
	if err := RequireStatus(sale, "return", StatusCompleted); err != nil {
		return Order{}, err
	}
	if len(input.Lines) == 0 {
		return Order{}, fmt.Errorf("%w: return requires at least one line", ErrValidation)
	}
	method := input.RefundMethod
	if method == "" {
		method = sale.PaymentMethod
	}
	if !method.Valid() {
		return Order{}, fmt.Errorf("%w: refund method %q", ErrValidation, method)
	}
	if method.IsCredit() && sale.PartyID == 0 {
		return Order{}, fmt.Errorf("%w: credit refund requires a customer", ErrValidation)
	}
	pending, err := tx.PendingReturnQuantities(ctx, sale.ID, excludeReturnID)
	if err != nil {
		return Order{}, err
	}
	order := Order{
		Kind:          KindReturn,
		Number:        generateNumber("RET"),
		PartyID:       sale.PartyID,
		SourceOrderID: sale.ID,
		WarehouseID:   input.WarehouseID,
		PaymentMethod: method,
		Reason:        input.Reason,
		Notes:         input.Notes,
		Actor:         input.Actor,
	}
	requested := map[int64]decimal.Decimal{}
	for i, in := range input.Lines {
		saleLine, ok := sale.Line(in.SaleLineID)
		if !ok {
			return Order{}, fmt.Errorf("%w: line %d references unknown sale line %d", ErrValidation, i+1, in.SaleLineID)
		}
		if !in.Quantity.IsPositive() {
			return Order{}, fmt.Errorf("%w: line %d quantity must be positive", ErrValidation, i+1)
		}
		requested[in.SaleLineID] = requested[in.SaleLineID].Add(in.Quantity)
		available := saleLine.Refundable().Sub(pending[in.SaleLineID])
		if requested[in.SaleLineID].GreaterThan(available) {
			return Order{}, fmt.Errorf("%w: line %d returns %s of sale line %d, only %s returnable",
				ErrValidation, i+1, requested[in.SaleLineID], in.SaleLineID, available)
		}
		total := RefundAmount(saleLine, in.Quantity)
		order.Lines = append(order.Lines, Line{
			ProductID:    saleLine.ProductID,
			UnitID:       saleLine.UnitID,
			Quantity:     in.Quantity,
			UnitPrice:    saleLine.UnitPrice,
			Discount:     in.Quantity.Mul(saleLine.UnitPrice).Sub(total),
			Total:        total,
			SourceLineID: saleLine.ID,
			Notes:        in.Notes,
		})
		order.Subtotal = order.Subtotal.Add(total)
	}
	order.Total = order.Subtotal
	return order, nil
}

// CancelReturn moves a Draft return to Cancelled. Sales and purchases are
// cancelled through settlement because their ledgers must be reversed.
func (s *Service) CancelReturn(ctx context.Context, id int64, reason, actor string) (Order, error) {
	var cancelled Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Kind != KindReturn {
			return fmt.Errorf("%w: %s orders are cancelled through settlement", ErrInvalidState, order.Kind)
		}
		if err := Transition(&order, StatusCancelled, s.now()); err != nil {
			return err
		}
		order.Reason = defaultString(reason, order.Reason)
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		cancelled = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, actor, "RETURN_CANCEL", cancelled, map[string]any{"reason": reason})
	return cancelled, nil
}

// Delete removes a Draft order of any kind.
func (s *Service) Delete(ctx context.Context, id int64, actor string) error {
	var deleted Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := RequireStatus(order, "delete", StatusDraft); err != nil {
			return err
		}
		deleted = order
		return tx.DeleteOrder(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, string(deleted.Kind)+"_DELETE", deleted, nil)
	return nil
}

// Get returns an order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// List returns order headers.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	return s.repo.ListOrders(ctx, filter)
}

func buildDraft(kind Kind, input DraftInput) (Order, error) {
	if len(input.Lines) == 0 {
		return Order{}, fmt.Errorf("%w: order requires at least one line", ErrValidation)
	}
	method := input.PaymentMethod
	if method == "" {
		method = shared.PaymentCash
	}
	if !method.Valid() {
		return Order{}, fmt.Errorf("%w: payment method %q", ErrValidation, method)
	}
	if kind == KindPurchase && input.PartyID == 0 {
		return Order{}, fmt.Errorf("%w: purchase order requires a supplier", ErrValidation)
	}
	if kind == KindSale && method.IsCredit() && input.PartyID == 0 {
		return Order{}, fmt.Errorf("%w: walk-in sales cannot be on credit", ErrValidation)
	}
	order := Order{
		Kind:          kind,
		PartyID:       input.PartyID,
		WarehouseID:   input.WarehouseID,
		DiscountSpec:  input.Discount,
		PaymentMethod: method,
		DueDate:       input.DueDate,
		Notes:         input.Notes,
		Actor:         input.Actor,
	}
	for i, in := range input.Lines {
		if in.ProductID == 0 {
			return Order{}, fmt.Errorf("%w: line %d product required", ErrValidation, i+1)
		}
		order.Lines = append(order.Lines, Line{
			ProductID: in.ProductID,
			UnitID:    in.UnitID,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			Discount:  in.Discount,
			Notes:     in.Notes,
		})
	}
	totals, err := ComputeTotals(order.Lines, order.DiscountSpec)
	if err != nil {
		return Order{}, err
	}
	totals.Apply(&order)
	return order, nil
}

func numberPrefix(kind Kind) string {
	switch kind {
	case KindSale:
		return "SO"
	case KindPurchase:
		return "PO"
	default:
		return "RET"
	}
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, o Order, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["number"] = o.Number
	meta["status"] = string(o.Status)
	if err := s.audit.Record(ctx, shared.AuditLog{Actor: actor, Action: action, Entity: "order", EntityID: fmt.Sprintf("%d", o.ID), Meta: meta}); err != nil {
		s.logger.Warn("order audit", slog.Any("error", err))
	}
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
