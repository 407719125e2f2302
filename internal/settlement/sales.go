package settlement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/cashbook"
	"github.com/odyssey-erp/odyssey-retail/internal/debt"
	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
	"github.com/odyssey-erp/odyssey-retail/internal/orders"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// CompleteSale issues the goods of a draft sale and records how it was paid:
// an invoice on the customer receivable for credit, a cash income otherwise.
func (s *Service) CompleteSale(ctx context.Context, req CompleteSaleRequest) (Result, error) {
	plan := func(ctx context.Context) ([]string, error) {
		return s.planOrder(ctx, req.OrderID, orders.KindSale, func(o orders.Order) int64 {
			return pick(req.WarehouseID, o.WarehouseID)
		})
	}
	return s.run(ctx, EventCompleteSale, req, req.Meta, plan, func(ctx context.Context, tx Tx, res *Result) error {
		o, err := lockOrder(ctx, tx, req.OrderID, orders.KindSale)
		if err != nil {
			return err
		}
		if err := orders.RequireStatus(o, "complete", orders.StatusDraft); err != nil {
			return err
		}
		warehouseID := pick(req.WarehouseID, o.WarehouseID)
		if warehouseID == 0 {
			return fmt.Errorf("%w: sale %d needs a warehouse", orders.ErrValidation, o.ID)
		}
		o.WarehouseID = warehouseID
		ref := o.Reference()
		for _, line := range o.Lines {
			if err := s.moveLine(ctx, tx, res, line, line.Quantity, warehouseID, inventory.DirectionOut, ref, req.Actor); err != nil {
				return err
			}
		}
		switch {
		case o.PaymentMethod.IsCredit():
			if o.PartyID == 0 {
				return fmt.Errorf("%w: walk-in sales cannot be on credit", orders.ErrValidation)
			}
			if o.Total.IsPositive() {
				if _, err := s.postDebt(ctx, tx, res, debt.Entry{
					Party:         debt.PartyCustomer,
					PartyID:       o.PartyID,
					Type:          debt.TxInvoice,
					Amount:        o.Total,
					Description:   fmt.Sprintf("Sale %s", o.Number),
					PaymentMethod: o.PaymentMethod,
					DueDate:       o.DueDate,
					Reference:     ref,
					Actor:         req.Actor,
				}); err != nil {
					return err
				}
			}
		case o.Total.IsPositive():
			if err := s.appendCash(ctx, tx, res, cashbook.Entry{
				Type:          cashbook.EntryIncome,
				Category:      cashbook.CategorySale,
				Amount:        o.Total,
				Description:   fmt.Sprintf("Sale %s", o.Number),
				PaymentMethod: o.PaymentMethod,
				Reference:     ref,
				Actor:         req.Actor,
			}); err != nil {
				return err
			}
			o.PaidAmount = o.Total
		default:
			o.PaidAmount = o.Total
		}
		if err := orders.Transition(&o, orders.StatusCompleted, s.now()); err != nil {
			return err
		}
		if err := s.saveOrder(ctx, tx, &o); err != nil {
			return err
		}
		res.Order = &o
		return nil
	})
}

// PaySale collects payment on a completed credit sale.
func (s *Service) PaySale(ctx context.Context, req PayOrderRequest) (Result, error) {
	return s.payOrder(ctx, EventPaySale, orders.KindSale, req)
}

// RefundSale refunds part of a completed sale. Each line can be refunded up
// to its quantity not yet refunded or returned. The refund goes to the
// customer receivable for credit and to a cash expense otherwise; once every
// line is refunded the sale becomes Refunded.
func (s *Service) RefundSale(ctx context.Context, req RefundSaleRequest) (Result, error) {
	plan := func(ctx context.Context) ([]string, error) {
		if !req.Restock {
			return s.planOrder(ctx, req.OrderID, orders.KindSale, nil)
		}
		return s.planOrder(ctx, req.OrderID, orders.KindSale, func(o orders.Order) int64 {
			return s.warehouseOr(req.WarehouseID, o.WarehouseID)
		})
	}
	return s.run(ctx, EventRefundSale, req, req.Meta, plan, func(ctx context.Context, tx Tx, res *Result) error {
		o, err := lockOrder(ctx, tx, req.OrderID, orders.KindSale)
		if err != nil {
			return err
		}
		if err := orders.RequireStatus(o, "refund", orders.StatusCompleted); err != nil {
			return err
		}
		method := req.RefundMethod
		if method == "" {
			method = o.PaymentMethod
		}
		warehouseID := int64(0)
		if req.Restock {
			warehouseID = s.warehouseOr(req.WarehouseID, o.WarehouseID)
		}
		amount, err := s.refundLines(ctx, tx, res, &o, req.Lines, warehouseID, req.Actor)
		if err != nil {
			return err
		}
		if err := s.settleRefund(ctx, tx, res, &o, amount, method, cashbook.CategorySaleRefund, req.Actor); err != nil {
			return err
		}
		if orders.FullyRefunded(o.Lines) {
			if err := orders.Transition(&o, orders.StatusRefunded, s.now()); err != nil {
				return err
			}
		}
		o.Reason = pickString(req.Reason, o.Reason)
		if err := s.saveOrder(ctx, tx, &o); err != nil {
			return err
		}
		res.Order = &o
		return nil
	})
}

// CancelSale cancels a completed sale: every quantity not yet refunded is
// restocked into the sale's warehouse and refunded through the sale's method.
func (s *Service) CancelSale(ctx context.Context, req OrderRequest) (Result, error) {
	plan := func(ctx context.Context) ([]string, error) {
		return s.planOrder(ctx, req.OrderID, orders.KindSale, func(o orders.Order) int64 {
			return s.warehouseOr(o.WarehouseID)
		})
	}
	return s.run(ctx, EventCancelSale, req, req.Meta, plan, func(ctx context.Context, tx Tx, res *Result) error {
		o, err := lockOrder(ctx, tx, req.OrderID, orders.KindSale)
		if err != nil {
			return err
		}
		if !orders.CanTransition(o.Kind, o.Status, orders.StatusCancelled) {
			return orders.RequireStatus(o, "cancel", orders.StatusCompleted)
		}
		var lines []RefundLine
		for _, l := range o.Lines {
			if l.Refundable().IsPositive() {
				lines = append(lines, RefundLine{LineID: l.ID, Quantity: l.Refundable()})
			}
		}
		amount, err := s.refundLines(ctx, tx, res, &o, lines, s.warehouseOr(o.WarehouseID), req.Actor)
		if err != nil {
			return err
		}
		if err := s.settleRefund(ctx, tx, res, &o, amount, o.PaymentMethod, cashbook.CategorySaleRefund, req.Actor); err != nil {
			return err
		}
		if err := orders.Transition(&o, orders.StatusCancelled, s.now()); err != nil {
			return err
		}
		o.Reason = req.Reason
		if err := s.saveOrder(ctx, tx, &o); err != nil {
			return err
		}
		res.Order = &o
		return nil
	})
}

// refundLines marks quantities of sale lines as refunded, restocking them when
// warehouseID is positive, and returns their proportional value.
func (s *Service) refundLines(ctx context.Context, tx Tx, res *Result, o *orders.Order, lines []RefundLine, warehouseID int64, actor string) (decimal.Decimal, error) {
	total := decimal.Zero
	ref := o.Reference()
	for _, rl := range lines {
		idx, err := lineIndex(*o, rl.LineID)
		if err != nil {
			return decimal.Zero, err
		}
		line := &o.Lines[idx]
		if !rl.Quantity.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: refund quantity must be positive", orders.ErrValidation)
		}
		if rl.Quantity.GreaterThan(line.Refundable()) {
			return decimal.Zero, fmt.Errorf("%w: refunding %s on line %d, only %s refundable",
				orders.ErrValidation, rl.Quantity, line.ID, line.Refundable())
		}
		if warehouseID > 0 {
			if err := s.moveLine(ctx, tx, res, *line, rl.Quantity, warehouseID, inventory.DirectionIn, ref, actor); err != nil {
				return decimal.Zero, err
			}
		}
		total = total.Add(orders.RefundAmount(*line, rl.Quantity))
		line.RefundedQuantity = line.RefundedQuantity.Add(rl.Quantity)
		if err := tx.Orders().UpdateLine(ctx, *line); err != nil {
			return decimal.Zero, err
		}
	}
	return total, nil
}

// settleRefund pays amount back to the customer of o and adds what was posted
// to the order's refunded amount.
func (s *Service) settleRefund(ctx context.Context, tx Tx, res *Result, o *orders.Order, amount decimal.Decimal, method shared.PaymentMethod, category, actor string) error {
	if !amount.IsPositive() {
		return nil
	}
	description := fmt.Sprintf("Refund for sale %s", o.Number)
	if method.IsCredit() {
		posted, err := s.refundCredit(ctx, tx, res, o, amount, category, description, o.Reference(), actor)
		if err != nil {
			return err
		}
		o.RefundedAmount = o.RefundedAmount.Add(posted)
		return nil
	}
	if err := s.appendCash(ctx, tx, res, cashbook.Entry{
		Type:          cashbook.EntryExpense,
		Category:      category,
		Amount:        amount,
		Description:   description,
		PaymentMethod: method,
		Reference:     o.Reference(),
		Actor:         actor,
	}); err != nil {
		return err
	}
	o.RefundedAmount = o.RefundedAmount.Add(amount)
	return nil
}

// refundCredit refunds amount of a credit sale. The part still outstanding on
// the sale comes off the customer receivable; the part already collected
// through payments is paid back as a cash expense. It returns the sum of the
// rows written, which is less than amount when the receivable refund is
// clamped at the account balance.
func (s *Service) refundCredit(ctx context.Context, tx Tx, res *Result, sale *orders.Order, amount decimal.Decimal, category, description string, ref shared.Reference, actor string) (decimal.Decimal, error) {
	if sale.PartyID == 0 {
		return decimal.Zero, fmt.Errorf("%w: credit refund requires a customer", orders.ErrValidation)
	}
	owed := decimal.Min(amount, sale.Outstanding())
	posted := decimal.Zero
	if owed.IsPositive() {
		txn, err := s.postDebt(ctx, tx, res, debt.Entry{
			Party:         debt.PartyCustomer,
			PartyID:       sale.PartyID,
			Type:          debt.TxRefund,
			Amount:        owed,
			Description:   description,
			PaymentMethod: shared.PaymentCredit,
			Reference:     ref,
			Actor:         actor,
		})
		if err != nil {
			return decimal.Zero, err
		}
		posted = txn.Amount
	}
	if collected := amount.Sub(owed); collected.IsPositive() {
		if err := s.appendCash(ctx, tx, res, cashbook.Entry{
			Type:          cashbook.EntryExpense,
			Category:      category,
			Amount:        collected,
			Description:   description,
			PaymentMethod: shared.PaymentCash,
			Reference:     ref,
			Actor:         actor,
		}); err != nil {
			return decimal.Zero, err
		}
		posted = posted.Add(collected)
	}
	return posted, nil
}

func pick(ids ...int64) int64 {
	for _, id := range ids {
		if id > 0 {
			return id
		}
	}
	return 0
}

func pickString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
