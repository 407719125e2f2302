// Package debt keeps customer receivables and supplier payables as running
// balances backed by an append-only transaction log.
package debt

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// Party identifies which side of the business owns an account.
type Party string

const (
	// PartyCustomer owns a receivable.
	PartyCustomer Party = "CUSTOMER"
	// PartySupplier owns a payable.
	PartySupplier Party = "SUPPLIER"
)

// Valid reports whether p is a known party.
func (p Party) Valid() bool {
	return p == PartyCustomer || p == PartySupplier
}

// TxType enumerates debt transaction kinds.
type TxType string

const (
	TxInvoice    TxType = "INVOICE"
	TxPayment    TxType = "PAYMENT"
	TxAdjustment TxType = "ADJUSTMENT"
	TxRefund     TxType = "REFUND"
)

// Account is the running balance of one customer or supplier. Balance is never negative.
type Account struct {
	Party     Party           `json:"party"`
	PartyID   int64           `json:"party_id"`
	Balance   decimal.Decimal `json:"balance"`
	DueDate   *time.Time      `json:"due_date,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LockKey returns the critical-section key for the account.
func (a Account) LockKey() string {
	return shared.DebtLockKey(string(a.Party), a.PartyID)
}

// Transaction is an append-only debt log row.
type Transaction struct {
	ID              int64                `json:"id"`
	Party           Party                `json:"party"`
	PartyID         int64                `json:"party_id"`
	Type            TxType               `json:"type"`
	Amount          decimal.Decimal      `json:"amount"`
	BalanceBefore   decimal.Decimal      `json:"balance_before"`
	BalanceAfter    decimal.Decimal      `json:"balance_after"`
	Description     string               `json:"description,omitempty"`
	PaymentMethod   shared.PaymentMethod `json:"payment_method,omitempty"`
	DueDate         *time.Time           `json:"due_date,omitempty"`
	Reference       shared.Reference     `json:"reference"`
	TransactionDate time.Time            `json:"transaction_date"`
	Actor           string               `json:"actor"`
	CreatedAt       time.Time            `json:"created_at"`
}

// Entry is a request to move an account balance. Amount is signed only for adjustments.
type Entry struct {
	Party           Party
	PartyID         int64
	Type            TxType
	Amount          decimal.Decimal
	Description     string
	PaymentMethod   shared.PaymentMethod
	DueDate         *time.Time
	Reference       shared.Reference
	TransactionDate time.Time
	Actor           string
}

// TxFilter filters transaction listings.
type TxFilter struct {
	Party   Party
	PartyID int64
	Limit   int
}

// Drift reports an account whose balance disagrees with its last transaction.
type Drift struct {
	Party     Party
	PartyID   int64
	Balance   decimal.Decimal
	LastAfter decimal.Decimal
}

var (
	// ErrAccountNotFound indicates the customer or supplier has no account.
	ErrAccountNotFound = fmt.Errorf("%w: debt account", shared.ErrNotFound)
	// ErrTransactionNotFound indicates a missing debt transaction.
	ErrTransactionNotFound = fmt.Errorf("%w: debt transaction", shared.ErrNotFound)
	// ErrInvalidAmount indicates a non-positive or zero amount.
	ErrInvalidAmount = fmt.Errorf("%w: debt: invalid amount", shared.ErrValidation)
	// ErrExceedsBalance indicates a payment or strict refund larger than the balance.
	ErrExceedsBalance = fmt.Errorf("%w: debt: amount exceeds balance", shared.ErrValidation)
	// ErrNegativeBalance indicates an adjustment that would push the balance below zero.
	ErrNegativeBalance = fmt.Errorf("%w: debt: resulting balance would be negative", shared.ErrValidation)
	// ErrUnknownType indicates an unsupported transaction type.
	ErrUnknownType = errors.New("debt: unknown transaction type")
)
