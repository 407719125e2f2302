package settlement

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-retail/internal/cashbook"
	"github.com/odyssey-erp/odyssey-retail/internal/debt"
	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
	"github.com/odyssey-erp/odyssey-retail/internal/orders"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// CreateReturn records a return against a completed sale and completes it in
// the same event. Goods go back into the requested warehouse or the default
// one; the refund is booked on the receivable for credit refunds when
// UpdateReceivables is set, or as a cash expense when CreateCashbookEntry is set.
func (s *Service) CreateReturn(ctx context.Context, req CreateReturnRequest) (Result, error) {
	warehouseID := s.warehouseOr(req.WarehouseID)
	plan := func(ctx context.Context) ([]string, error) {
		sale, err := s.store.GetOrder(ctx, req.SaleOrderID)
		if err != nil {
			return nil, err
		}
		keys := []string{shared.OrderLockKey(sale.ID)}
		if sale.PartyID > 0 {
			keys = append(keys, shared.DebtLockKey(string(debt.PartyCustomer), sale.PartyID))
		}
		for _, item := range req.Items {
			if l, ok := sale.Line(item.SaleLineID); ok {
				keys = append(keys, shared.StockLockKey(l.ProductID, warehouseID))
			}
		}
		return keys, nil
	}
	return s.run(ctx, EventCreateReturn, req, req.Meta, plan, func(ctx context.Context, tx Tx, res *Result) error {
		sale, err := lockOrder(ctx, tx, req.SaleOrderID, orders.KindSale)
		if err != nil {
			return err
		}
		input := orders.ReturnInput{
			SaleOrderID:  sale.ID,
			WarehouseID:  warehouseID,
			RefundMethod: req.RefundMethod,
			Reason:       req.Reason,
			Notes:        req.Notes,
			Actor:        req.Actor,
		}
		for _, item := range req.Items {
			input.Lines = append(input.Lines, orders.ReturnLineInput{SaleLineID: item.SaleLineID, Quantity: item.Quantity, Notes: item.Notes})
		}
		ret, err := orders.PrepareReturn(ctx, tx.Orders(), sale, input, 0)
		if err != nil {
			return err
		}
		now := s.now()
		ret.Status = orders.StatusDraft
		ret.CreatedAt = now
		ret.UpdatedAt = now
		if ret, err = tx.Orders().InsertOrder(ctx, ret); err != nil {
			return err
		}
		return s.completeReturn(ctx, tx, res, &sale, &ret, req.ReturnOptions, req.Actor)
	})
}

// CompleteReturn completes a draft return, re-checking its lines against the
// sale's current refundable quantities.
func (s *Service) CompleteReturn(ctx context.Context, req CompleteReturnRequest) (Result, error) {
	plan := func(ctx context.Context) ([]string, error) {
		ret, err := s.store.GetOrder(ctx, req.ReturnOrderID)
		if err != nil {
			return nil, err
		}
		if ret.Kind != orders.KindReturn {
			return nil, fmt.Errorf("%w: order %d is a %s order", orders.ErrValidation, ret.ID, ret.Kind)
		}
		keys := []string{shared.OrderLockKey(ret.ID), shared.OrderLockKey(ret.SourceOrderID)}
		if ret.PartyID > 0 {
			keys = append(keys, shared.DebtLockKey(string(debt.PartyCustomer), ret.PartyID))
		}
		warehouseID := s.warehouseOr(req.WarehouseID, ret.WarehouseID)
		for _, l := range ret.Lines {
			keys = append(keys, shared.StockLockKey(l.ProductID, warehouseID))
		}
		return keys, nil
	}
	return s.run(ctx, EventCompleteReturn, req, req.Meta, plan, func(ctx context.Context, tx Tx, res *Result) error {
		ret, err := lockOrder(ctx, tx, req.ReturnOrderID, orders.KindReturn)
		if err != nil {
			return err
		}
		if err := orders.RequireStatus(ret, "complete", orders.StatusDraft); err != nil {
			return err
		}
		sale, err := lockOrder(ctx, tx, ret.SourceOrderID, orders.KindSale)
		if err != nil {
			return err
		}
		input := orders.ReturnInput{SaleOrderID: sale.ID, RefundMethod: ret.PaymentMethod}
		for _, l := range ret.Lines {
			input.Lines = append(input.Lines, orders.ReturnLineInput{SaleLineID: l.SourceLineID, Quantity: l.Quantity})
		}
		if _, err := orders.PrepareReturn(ctx, tx.Orders(), sale, input, ret.ID); err != nil {
			return err
		}
		ret.WarehouseID = s.warehouseOr(req.WarehouseID, ret.WarehouseID)
		return s.completeReturn(ctx, tx, res, &sale, &ret, req.ReturnOptions, req.Actor)
	})
}

func (s *Service) completeReturn(ctx context.Context, tx Tx, res *Result, sale, ret *orders.Order, opts ReturnOptions, actor string) error {
	ref := ret.Reference()
	for _, rl := range ret.Lines {
		idx, err := lineIndex(*sale, rl.SourceLineID)
		if err != nil {
			return err
		}
		saleLine := &sale.Lines[idx]
		if err := s.moveLine(ctx, tx, res, *saleLine, rl.Quantity, ret.WarehouseID, inventory.DirectionIn, ref, actor); err != nil {
			return err
		}
		saleLine.RefundedQuantity = saleLine.RefundedQuantity.Add(rl.Quantity)
		if err := tx.Orders().UpdateLine(ctx, *saleLine); err != nil {
			return err
		}
	}

	if ret.Total.IsPositive() {
		description := fmt.Sprintf("Return %s for sale %s", ret.Number, sale.Number)
		switch {
		case ret.PaymentMethod.IsCredit() && opts.UpdateReceivables:
			posted, err := s.refundCredit(ctx, tx, res, sale, ret.Total, cashbook.CategorySaleReturn, description, ref, actor)
			if err != nil {
				return err
			}
			sale.RefundedAmount = sale.RefundedAmount.Add(posted)
		case !ret.PaymentMethod.IsCredit() && opts.CreateCashbookEntry:
			if err := s.appendCash(ctx, tx, res, cashbook.Entry{
				Type:          cashbook.EntryExpense,
				Category:      cashbook.CategorySaleReturn,
				Amount:        ret.Total,
				Description:   description,
				PaymentMethod: ret.PaymentMethod,
				Reference:     ref,
				Actor:         actor,
			}); err != nil {
				return err
			}
			sale.RefundedAmount = sale.RefundedAmount.Add(ret.Total)
		}
	}
	now := s.now()
	if orders.FullyRefunded(sale.Lines) {
		if err := orders.Transition(sale, orders.StatusRefunded, now); err != nil {
			return err
		}
	}
	if err := orders.Transition(ret, orders.StatusCompleted, now); err != nil {
		return err
	}
	if err := s.saveOrder(ctx, tx, sale); err != nil {
		return err
	}
	if err := s.saveOrder(ctx, tx, ret); err != nil {
		return err
	}
	res.Order = ret
	res.SourceOrder = sale
	return nil
}
