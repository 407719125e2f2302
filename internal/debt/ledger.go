package debt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// TxRepository exposes the transactional queries the ledger needs.
type TxRepository interface {
	GetAccountForUpdate(ctx context.Context, party Party, partyID int64) (Account, error)
	InsertAccount(ctx context.Context, acct Account) error
	UpdateAccount(ctx context.Context, acct Account) error
	InsertTransaction(ctx context.Context, tx Transaction) (int64, error)
}

// Ledger posts debt entries.
type Ledger struct {
	strictRefunds bool
	now           func() time.Time
}

// NewLedger builds Ledger.
func NewLedger(strictRefunds bool) *Ledger {
	return &Ledger{strictRefunds: strictRefunds, now: func() time.Time { return time.Now().UTC() }}
}

// Post locks the account, applies entry and appends exactly one transaction.
// The cached balance always equals BalanceAfter of the appended row. Invoices
// open the account on first use; every other type requires it to exist.
func (l *Ledger) Post(ctx context.Context, tx TxRepository, e Entry) (Transaction, Account, error) {
	if !e.Party.Valid() || e.PartyID <= 0 {
		return Transaction{}, Account{}, fmt.Errorf("%w: debt account party required", shared.ErrValidation)
	}
	if err := e.Reference.Validate(); err != nil {
		return Transaction{}, Account{}, err
	}
	acct, err := tx.GetAccountForUpdate(ctx, e.Party, e.PartyID)
	opened := false
	if errors.Is(err, ErrAccountNotFound) && e.Type == TxInvoice {
		acct, opened, err = Account{Party: e.Party, PartyID: e.PartyID}, true, nil
	}
	if err != nil {
		return Transaction{}, Account{}, err
	}
	next, txn, err := Apply(acct, e, l.strictRefunds)
	if err != nil {
		return Transaction{}, Account{}, err
	}
	now := l.now()
	if txn.TransactionDate.IsZero() {
		txn.TransactionDate = now
	}
	txn.CreatedAt = now
	next.UpdatedAt = now
	save := tx.UpdateAccount
	if opened {
		save = tx.InsertAccount
	}
	if err := save(ctx, next); err != nil {
		return Transaction{}, Account{}, err
	}
	id, err := tx.InsertTransaction(ctx, txn)
	if err != nil {
		return Transaction{}, Account{}, err
	}
	txn.ID = id
	return txn, next, nil
}
