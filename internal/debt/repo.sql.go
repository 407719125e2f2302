package debt

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// Repository persists debt accounts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds the ledger queries to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

const accountColumns = `party, party_id, balance, due_date, updated_at`

const transactionColumns = `id, party, party_id, tx_type, amount, balance_before, balance_after, description, payment_method, due_date, ref_kind, ref_id, transaction_date, actor, created_at`

func (r *Repository) OpenAccount(ctx context.Context, party Party, partyID int64) (Account, error) {
	if _, err := r.pool.Exec(ctx, `INSERT INTO debt_accounts (party, party_id, balance, updated_at)
VALUES ($1,$2,0,NOW()) ON CONFLICT (party, party_id) DO NOTHING`, string(party), partyID); err != nil {
		return Account{}, err
	}
	return r.GetAccount(ctx, party, partyID)
}

func (r *Repository) GetAccount(ctx context.Context, party Party, partyID int64) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM debt_accounts WHERE party=$1 AND party_id=$2`, string(party), partyID))
}

func (r *Repository) ListTransactions(ctx context.Context, filter TxFilter) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM debt_transactions
WHERE party=$1 AND party_id=$2 ORDER BY id DESC LIMIT $3`, string(filter.Party), filter.PartyID, filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM debt_transactions WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	return t, err
}

// BalanceDrift lists accounts whose cached balance differs from the balance_after
// of their most recent transaction, or that went negative.
func (r *Repository) BalanceDrift(ctx context.Context) ([]Drift, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.party, a.party_id, a.balance, COALESCE(t.balance_after, 0)
FROM debt_accounts a
LEFT JOIN LATERAL (
	SELECT balance_after FROM debt_transactions d
	WHERE d.party=a.party AND d.party_id=a.party_id
	ORDER BY d.id DESC LIMIT 1
) t ON TRUE
WHERE a.balance <> COALESCE(t.balance_after, 0) OR a.balance < 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var drifts []Drift
	for rows.Next() {
		var d Drift
		var party string
		if err := rows.Scan(&party, &d.PartyID, &d.Balance, &d.LastAfter); err != nil {
			return nil, err
		}
		d.Party = Party(party)
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, party Party, partyID int64) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM debt_accounts WHERE party=$1 AND party_id=$2 FOR UPDATE`, string(party), partyID))
}

func (r *txRepository) InsertAccount(ctx context.Context, acct Account) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO debt_accounts (party, party_id, balance, due_date, updated_at) VALUES ($1,$2,$3,$4,$5)`,
		string(acct.Party), acct.PartyID, acct.Balance, acct.DueDate, acct.UpdatedAt)
	return err
}

func (r *txRepository) UpdateAccount(ctx context.Context, acct Account) error {
	tag, err := r.tx.Exec(ctx, `UPDATE debt_accounts SET balance=$3, due_date=$4, updated_at=$5 WHERE party=$1 AND party_id=$2`,
		string(acct.Party), acct.PartyID, acct.Balance, acct.DueDate, acct.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO debt_transactions (party, party_id, tx_type, amount, balance_before, balance_after, description, payment_method, due_date, ref_kind, ref_id, transaction_date, actor, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING id`,
		string(t.Party), t.PartyID, string(t.Type), t.Amount, t.BalanceBefore, t.BalanceAfter, t.Description, string(t.PaymentMethod),
		t.DueDate, string(t.Reference.Kind), t.Reference.ID, t.TransactionDate, t.Actor, t.CreatedAt).Scan(&id)
	return id, err
}

func scanAccount(row pgx.Row) (Account, error) {
	var acct Account
	var party string
	if err := row.Scan(&party, &acct.PartyID, &acct.Balance, &acct.DueDate, &acct.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	acct.Party = Party(party)
	return acct, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var party, txType, method, refKind string
	if err := row.Scan(&t.ID, &party, &t.PartyID, &txType, &t.Amount, &t.BalanceBefore, &t.BalanceAfter, &t.Description,
		&method, &t.DueDate, &refKind, &t.Reference.ID, &t.TransactionDate, &t.Actor, &t.CreatedAt); err != nil {
		return Transaction{}, err
	}
	t.Party = Party(party)
	t.Type = TxType(txType)
	t.PaymentMethod = shared.PaymentMethod(method)
	t.Reference.Kind = shared.RefKind(refKind)
	return t, nil
}
