package debt

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// Apply computes the account state after entry without touching storage.
// Refunds are floored at zero unless strictRefunds is set.
func Apply(acct Account, e Entry, strictRefunds bool) (Account, Transaction, error) {
	before := acct.Balance
	var after decimal.Decimal
	amount := e.Amount

	switch e.Type {
	case TxPayment:
		if !amount.IsPositive() {
			return Account{}, Transaction{}, ErrInvalidAmount
		}
		if amount.GreaterThan(before) {
			return Account{}, Transaction{}, fmt.Errorf("%w: paying %s against %s", ErrExceedsBalance, amount, before)
		}
		after = before.Sub(amount)
	case TxAdjustment:
		if amount.IsZero() {
			return Account{}, Transaction{}, ErrInvalidAmount
		}
		after = before.Add(amount)
		if after.IsNegative() {
			return Account{}, Transaction{}, fmt.Errorf("%w: %s + (%s)", ErrNegativeBalance, before, amount)
		}
	case TxRefund:
		if !amount.IsPositive() {
			return Account{}, Transaction{}, ErrInvalidAmount
		}
		if amount.GreaterThan(before) {
			if strictRefunds {
				return Account{}, Transaction{}, fmt.Errorf("%w: refunding %s against %s", ErrExceedsBalance, amount, before)
			}
			amount = before
		}
		after = before.Sub(amount)
	case TxInvoice:
		if !amount.IsPositive() {
			return Account{}, Transaction{}, ErrInvalidAmount
		}
		after = before.Add(amount)
	default:
		return Account{}, Transaction{}, fmt.Errorf("%w: %w %q", shared.ErrValidation, ErrUnknownType, e.Type)
	}

	next := acct
	next.Balance = after
	if e.Type == TxInvoice && e.DueDate != nil {
		next.DueDate = e.DueDate
	}
	if after.IsZero() {
		next.DueDate = nil
	}
	return next, Transaction{
		Party:           acct.Party,
		PartyID:         acct.PartyID,
		Type:            e.Type,
		Amount:          amount,
		BalanceBefore:   before,
		BalanceAfter:    after,
		Description:     e.Description,
		PaymentMethod:   e.PaymentMethod,
		DueDate:         next.DueDate,
		Reference:       e.Reference,
		TransactionDate: e.TransactionDate,
		Actor:           e.Actor,
	}, nil
}
