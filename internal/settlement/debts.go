package settlement

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-retail/internal/cashbook"
	"github.com/odyssey-erp/odyssey-retail/internal/debt"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// PayDebt collects a customer receivable or pays a supplier payable. Methods
// that move cash also append an income (customer) or expense (supplier) entry
// referencing the debt transaction.
func (s *Service) PayDebt(ctx context.Context, req PayDebtRequest) (Result, error) {
	plan := func(context.Context) ([]string, error) {
		return []string{shared.DebtLockKey(string(req.Party), req.PartyID)}, nil
	}
	return s.run(ctx, EventPayDebt, req, req.Meta, plan, func(ctx context.Context, tx Tx, res *Result) error {
		txn, err := s.postDebt(ctx, tx, res, debt.Entry{
			Party:           req.Party,
			PartyID:         req.PartyID,
			Type:            debt.TxPayment,
			Amount:          req.Amount,
			Description:     req.Description,
			PaymentMethod:   req.PaymentMethod,
			TransactionDate: req.TransactionDate,
			Actor:           req.Actor,
		})
		if err != nil {
			return err
		}
		if !req.PaymentMethod.MovesCash() {
			return nil
		}
		entry := cashbook.Entry{
			Type:            cashbook.EntryIncome,
			Category:        cashbook.CategoryDebtCollection,
			Amount:          txn.Amount,
			Description:     fmt.Sprintf("Receivable payment from customer %d", req.PartyID),
			PaymentMethod:   req.PaymentMethod,
			Reference:       shared.Ref(shared.RefDebtTransaction, txn.ID),
			TransactionDate: txn.TransactionDate,
			Actor:           req.Actor,
		}
		if req.Party == debt.PartySupplier {
			entry.Type = cashbook.EntryExpense
			entry.Category = cashbook.CategoryDebtPayment
			entry.Description = fmt.Sprintf("Payable payment to supplier %d", req.PartyID)
		}
		return s.appendCash(ctx, tx, res, entry)
	})
}

// AdjustDebt applies a signed correction. The resulting balance may not go below zero.
func (s *Service) AdjustDebt(ctx context.Context, req AdjustDebtRequest) (Result, error) {
	plan := func(context.Context) ([]string, error) {
		return []string{shared.DebtLockKey(string(req.Party), req.PartyID)}, nil
	}
	return s.run(ctx, EventAdjustDebt, req, req.Meta, plan, func(ctx context.Context, tx Tx, res *Result) error {
		_, err := s.postDebt(ctx, tx, res, debt.Entry{
			Party:       req.Party,
			PartyID:     req.PartyID,
			Type:        debt.TxAdjustment,
			Amount:      req.Amount,
			Description: req.Reason,
			Actor:       req.Actor,
		})
		return err
	})
}
