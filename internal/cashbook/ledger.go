package cashbook

import (
	"context"
	"time"
)

// TxRepository exposes the append used inside settlements.
type TxRepository interface {
	InsertEntry(ctx context.Context, entry Entry) (int64, error)
}

// Append validates and appends one entry within the caller's transaction.
func Append(ctx context.Context, tx TxRepository, entry Entry) (Entry, error) {
	if err := entry.Validate(); err != nil {
		return Entry{}, err
	}
	now := time.Now().UTC()
	if entry.TransactionDate.IsZero() {
		entry.TransactionDate = now
	}
	entry.CreatedAt = now
	id, err := tx.InsertEntry(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	entry.ID = id
	return entry, nil
}
