// Package cashbook is the flat income/expense log. Totals are computed on read.
package cashbook

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// EntryType is either income or expense.
type EntryType string

const (
	EntryIncome  EntryType = "INCOME"
	EntryExpense EntryType = "EXPENSE"
)

// Categories written by settlements.
const (
	CategorySale           = "SALE"
	CategorySaleRefund     = "SALE_REFUND"
	CategorySaleReturn     = "SALE_RETURN"
	CategoryPurchase       = "PURCHASE_PAYMENT"
	CategoryDebtCollection = "DEBT_COLLECTION"
	CategoryDebtPayment    = "DEBT_PAYMENT"
	CategoryOther          = "OTHER"
)

// Entry is one cashbook row. Rows are never updated or deleted.
type Entry struct {
	ID              int64                `json:"id"`
	Type            EntryType            `json:"type"`
	Category        string               `json:"category"`
	Amount          decimal.Decimal      `json:"amount"`
	Description     string               `json:"description,omitempty"`
	PaymentMethod   shared.PaymentMethod `json:"payment_method"`
	Reference       shared.Reference     `json:"reference"`
	TransactionDate time.Time            `json:"transaction_date"`
	Actor           string               `json:"actor"`
	CreatedAt       time.Time            `json:"created_at"`
}

// Summary aggregates entries over a date range.
type Summary struct {
	From    time.Time       `json:"from"`
	To      time.Time       `json:"to"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
	Count   int64           `json:"count"`
}

// EntryFilter filters entry listings.
type EntryFilter struct {
	From  time.Time
	To    time.Time
	Type  EntryType
	Limit int
}

var (
	// ErrInvalidEntry indicates malformed entry input.
	ErrInvalidEntry = fmt.Errorf("%w: cashbook: invalid entry", shared.ErrValidation)
	// ErrCreditMethod indicates an attempt to record cash for a credit settlement.
	ErrCreditMethod = fmt.Errorf("%w: cashbook: credit does not move cash", shared.ErrValidation)
)

// Validate checks the entry can be appended.
func (e Entry) Validate() error {
	if e.Type != EntryIncome && e.Type != EntryExpense {
		return fmt.Errorf("%w: type %q", ErrInvalidEntry, e.Type)
	}
	if !e.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidEntry)
	}
	if e.Category == "" {
		return fmt.Errorf("%w: category required", ErrInvalidEntry)
	}
	if !e.PaymentMethod.MovesCash() {
		return ErrCreditMethod
	}
	return e.Reference.Validate()
}
