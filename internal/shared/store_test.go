package shared

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type fakeExecer struct {
	calls []execCall
	tag   pgconn.CommandTag
	err   error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return f.tag, f.err
}

func TestClaimIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	db := &fakeExecer{}
	require.NoError(t, ClaimIdempotencyKey(ctx, db, "pay-7", "settlement:PAY_DEBT"))
	require.Len(t, db.calls, 1)
	require.Equal(t, "pay-7", db.calls[0].args[0])
	require.Equal(t, "settlement:PAY_DEBT", db.calls[0].args[1])

	require.Error(t, ClaimIdempotencyKey(ctx, db, "", "settlement:PAY_DEBT"))
	require.Error(t, ClaimIdempotencyKey(ctx, db, "pay-7", ""))

	dup := &fakeExecer{err: &pgconn.PgError{Code: "23505"}}
	err := ClaimIdempotencyKey(ctx, dup, "pay-7", "settlement:PAY_DEBT")
	require.ErrorIs(t, err, ErrIdempotencyConflict)
	require.ErrorIs(t, err, ErrStateConflict)

	boom := errors.New("connection reset")
	require.ErrorIs(t, ClaimIdempotencyKey(ctx, &fakeExecer{err: boom}, "k", "m"), boom)
}

func TestIdempotencyCleanup(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	db := &fakeExecer{tag: pgconn.NewCommandTag("DELETE 4")}
	store := NewIdempotencyStore(db)
	store.now = func() time.Time { return now }

	deleted, err := store.Cleanup(context.Background(), 48*time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 4, deleted)
	require.Equal(t, now.Add(-48*time.Hour), db.calls[0].args[0])

	_, err = store.Cleanup(context.Background(), 0)
	require.ErrorIs(t, err, ErrValidation)

	var missing *IdempotencyStore
	_, err = missing.Cleanup(context.Background(), time.Hour)
	require.Error(t, err)
}

func TestAuditLoggerRecord(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	db := &fakeExecer{}
	logger := NewAuditLogger(db)
	logger.now = func() time.Time { return now }

	err := logger.Record(context.Background(), AuditLog{
		Action:   "settlement:PAY_DEBT",
		Entity:   "settlement",
		EntityID: "abc",
		Meta:     map[string]any{"cash_entries": 1},
	})
	require.NoError(t, err)
	args := db.calls[0].args
	require.Equal(t, SystemActor, args[0])
	require.Equal(t, now, args[5])

	var meta map[string]any
	require.NoError(t, json.Unmarshal(args[4].([]byte), &meta))
	require.EqualValues(t, 1, meta["cash_entries"])

	require.ErrorIs(t, logger.Record(context.Background(), AuditLog{Action: "x"}), ErrValidation)
	require.Len(t, db.calls, 1)
}
