package settlement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/cashbook"
	"github.com/odyssey-erp/odyssey-retail/internal/debt"
	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
	"github.com/odyssey-erp/odyssey-retail/internal/orders"
)

// PlacePurchase moves a draft purchase order to Ordered. Credit orders invoice
// the supplier payable for the order total.
func (s *Service) PlacePurchase(ctx context.Context, req OrderRequest) (Result, error) {
	plan := func(ctx context.Context) ([]string, error) {
		return s.planOrder(ctx, req.OrderID, orders.KindPurchase, nil)
	}
	return s.run(ctx, EventPlacePurchase, req, req.Meta, plan, func(ctx context.Context, tx Tx, res *Result) error {
		o, err := lockOrder(ctx, tx, req.OrderID, orders.KindPurchase)
		if err != nil {
			return err
		}
		if err := orders.Transition(&o, orders.StatusOrdered, s.now()); err != nil {
			return err
		}
		if o.PaymentMethod.IsCredit() && o.Total.IsPositive() {
			if _, err := s.postDebt(ctx, tx, res, debt.Entry{
				Party:         debt.PartySupplier,
				PartyID:       o.PartyID,
				Type:          debt.TxInvoice,
				Amount:        o.Total,
				Description:   fmt.Sprintf("Purchase order %s", o.Number),
				PaymentMethod: o.PaymentMethod,
				DueDate:       o.DueDate,
				Reference:     o.Reference(),
				Actor:         req.Actor,
			}); err != nil {
				return err
			}
		}
		if err := s.saveOrder(ctx, tx, &o); err != nil {
			return err
		}
		res.Order = &o
		return nil
	})
}

// ReceiveGoods books received quantities into the request's warehouse and
// derives the purchase status from cumulative receipts.
func (s *Service) ReceiveGoods(ctx context.Context, req ReceiveGoodsRequest) (Result, error) {
	plan := func(ctx context.Context) ([]string, error) {
		return s.planOrder(ctx, req.OrderID, orders.KindPurchase, func(orders.Order) int64 { return req.WarehouseID })
	}
	return s.run(ctx, EventReceiveGoods, req, req.Meta, plan, func(ctx context.Context, tx Tx, res *Result) error {
		o, err := lockOrder(ctx, tx, req.OrderID, orders.KindPurchase)
		if err != nil {
			return err
		}
		if err := orders.RequireStatus(o, "receive goods on", orders.StatusOrdered, orders.StatusPartialReceived); err != nil {
			return err
		}
		ref := o.Reference()
		for _, item := range req.Items {
			idx, err := lineIndex(o, item.LineID)
			if err != nil {
				return err
			}
			line := &o.Lines[idx]
			if !item.Quantity.IsPositive() {
				return fmt.Errorf("%w: received quantity must be positive", orders.ErrValidation)
			}
			if item.Quantity.GreaterThan(line.Remaining()) {
				return fmt.Errorf("%w: receiving %s on line %d, only %s remaining",
					orders.ErrValidation, item.Quantity, line.ID, line.Remaining())
			}
			if err := s.moveLine(ctx, tx, res, *line, item.Quantity, req.WarehouseID, inventory.DirectionIn, ref, req.Actor); err != nil {
				return err
			}
			line.ReceivedQuantity = line.ReceivedQuantity.Add(item.Quantity)
			if item.ExpiryDate != nil {
				line.ExpiryDate = item.ExpiryDate
			}
			if err := tx.Orders().UpdateLine(ctx, *line); err != nil {
				return err
			}
		}
		if err := orders.Transition(&o, orders.DerivePurchaseStatus(o.Lines), s.now()); err != nil {
			return err
		}
		if o.WarehouseID == 0 {
			o.WarehouseID = req.WarehouseID
		}
		if err := s.saveOrder(ctx, tx, &o); err != nil {
			return err
		}
		res.Order = &o
		return nil
	})
}

// PayPurchase pays part of an ordered purchase. Credit orders also settle the
// supplier payable; the cash expense is written when the method moves cash.
func (s *Service) PayPurchase(ctx context.Context, req PayOrderRequest) (Result, error) {
	return s.payOrder(ctx, EventPayPurchase, orders.KindPurchase, req)
}

// CancelPurchase cancels an ordered purchase that has neither receipts nor
// payments, reversing what is still payable of the supplier invoice on credit
// orders.
func (s *Service) CancelPurchase(ctx context.Context, req OrderRequest) (Result, error) {
	plan := func(ctx context.Context) ([]string, error) {
		return s.planOrder(ctx, req.OrderID, orders.KindPurchase, nil)
	}
	return s.run(ctx, EventCancelPurchase, req, req.Meta, plan, func(ctx context.Context, tx Tx, res *Result) error {
		o, err := lockOrder(ctx, tx, req.OrderID, orders.KindPurchase)
		if err != nil {
			return err
		}
		if o.PaidAmount.IsPositive() {
			return fmt.Errorf("%w: purchase order %d already has payments", orders.ErrInvalidState, o.ID)
		}
		if err := orders.Transition(&o, orders.StatusCancelled, s.now()); err != nil {
			return err
		}
		o.Reason = req.Reason
		if o.PaymentMethod.IsCredit() && o.Total.IsPositive() {
			acct, err := tx.Debt().GetAccountForUpdate(ctx, debt.PartySupplier, o.PartyID)
			if err != nil {
				return err
			}
			// PayDebt may have cleared part of this invoice on the account;
			// only what is still payable is reversed.
			if reverse := decimal.Min(o.Total, acct.Balance); reverse.IsPositive() {
				if _, err := s.postDebt(ctx, tx, res, debt.Entry{
					Party:       debt.PartySupplier,
					PartyID:     o.PartyID,
					Type:        debt.TxAdjustment,
					Amount:      reverse.Neg(),
					Description: fmt.Sprintf("Purchase order %s cancelled", o.Number),
					Reference:   o.Reference(),
					Actor:       req.Actor,
				}); err != nil {
					return err
				}
			}
		}
		if err := s.saveOrder(ctx, tx, &o); err != nil {
			return err
		}
		res.Order = &o
		return nil
	})
}

// payOrder handles payments against purchases and credit sales.
func (s *Service) payOrder(ctx context.Context, event Event, kind orders.Kind, req PayOrderRequest) (Result, error) {
	plan := func(ctx context.Context) ([]string, error) {
		return s.planOrder(ctx, req.OrderID, kind, nil)
	}
	return s.run(ctx, event, req, req.Meta, plan, func(ctx context.Context, tx Tx, res *Result) error {
		o, err := lockOrder(ctx, tx, req.OrderID, kind)
		if err != nil {
			return err
		}
		if kind == orders.KindPurchase && !orders.ReceivingAllowed(o) {
			return orders.RequireStatus(o, "pay", orders.StatusOrdered, orders.StatusPartialReceived, orders.StatusReceived)
		}
		if kind == orders.KindSale {
			if err := orders.RequireStatus(o, "pay", orders.StatusCompleted); err != nil {
				return err
			}
		}
		if req.PaymentMethod.IsCredit() {
			return fmt.Errorf("%w: payments cannot be made on credit", orders.ErrValidation)
		}
		if !req.Amount.IsPositive() {
			return fmt.Errorf("%w: payment amount must be positive", orders.ErrValidation)
		}
		if outstanding := o.Outstanding(); req.Amount.GreaterThan(outstanding) {
			return fmt.Errorf("%w: paying %s, only %s outstanding", orders.ErrValidation, req.Amount, outstanding)
		}
		o.PaidAmount = o.PaidAmount.Add(req.Amount)
		ref := o.Reference()
		if o.PaymentMethod.IsCredit() {
			if _, err := s.postDebt(ctx, tx, res, debt.Entry{
				Party:         partyOf(o),
				PartyID:       o.PartyID,
				Type:          debt.TxPayment,
				Amount:        req.Amount,
				Description:   fmt.Sprintf("Payment for order %s", o.Number),
				PaymentMethod: req.PaymentMethod,
				Reference:     ref,
				Actor:         req.Actor,
			}); err != nil {
				return err
			}
		}
		entry := cashbook.Entry{
			Type:          cashbook.EntryIncome,
			Category:      cashbook.CategorySale,
			Amount:        req.Amount,
			Description:   fmt.Sprintf("Payment for sale %s", o.Number),
			PaymentMethod: req.PaymentMethod,
			Reference:     ref,
			Actor:         req.Actor,
		}
		if kind == orders.KindPurchase {
			entry.Type = cashbook.EntryExpense
			entry.Category = cashbook.CategoryPurchase
			entry.Description = fmt.Sprintf("Payment for purchase %s", o.Number)
		}
		if req.Notes != "" {
			entry.Description += ": " + req.Notes
		}
		if err := s.appendCash(ctx, tx, res, entry); err != nil {
			return err
		}
		if err := s.saveOrder(ctx, tx, &o); err != nil {
			return err
		}
		res.Order = &o
		return nil
	})
}
