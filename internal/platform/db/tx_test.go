package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	pool *fakePool
	done bool
}

func (t *fakeTx) Commit(context.Context) error {
	t.done = true
	t.pool.commits++
	return t.pool.commitErr
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.pool.rollbacks++
	return nil
}

type fakePool struct {
	begins    int
	commits   int
	rollbacks int
	commitErr error
}

func (p *fakePool) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	p.begins++
	return &fakeTx{pool: p}, nil
}

func serialization() error {
	return fmt.Errorf("update stock: %w", &pgconn.PgError{Code: "40001", Message: "could not serialize access"})
}

func TestWithTxCommits(t *testing.T) {
	pool := &fakePool{}
	require.NoError(t, WithTx(context.Background(), pool, func(pgx.Tx) error { return nil }))
	require.Equal(t, 1, pool.begins)
	require.Equal(t, 1, pool.commits)
	require.Zero(t, pool.rollbacks)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	pool := &fakePool{}
	boom := errors.New("boom")
	err := WithTx(context.Background(), pool, func(pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, pool.begins)
	require.Equal(t, 1, pool.rollbacks)
	require.Zero(t, pool.commits)
}

func TestWithTxRetriesSerializationFailures(t *testing.T) {
	pool := &fakePool{}
	calls := 0
	err := WithTx(context.Background(), pool, func(pgx.Tx) error {
		calls++
		if calls < 3 {
			return serialization()
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, 2, pool.rollbacks)
	require.Equal(t, 1, pool.commits)
}

func TestWithTxGivesUpAfterMaxAttempts(t *testing.T) {
	pool := &fakePool{}
	calls := 0
	err := WithTx(context.Background(), pool, func(pgx.Tx) error {
		calls++
		return serialization()
	})
	require.True(t, IsRetryable(err))
	require.Equal(t, maxAttempts, calls)
}

func TestWithTxRetriesFailedCommit(t *testing.T) {
	pool := &fakePool{commitErr: &pgconn.PgError{Code: "40P01"}}
	err := WithTx(context.Background(), pool, func(pgx.Tx) error { return nil })
	require.True(t, IsRetryable(err))
	require.Equal(t, maxAttempts, pool.begins)
}

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(serialization()))
	require.True(t, IsRetryable(&pgconn.PgError{Code: "40P01"}))
	require.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsRetryable(errors.New("plain")))
	require.False(t, IsRetryable(nil))
}
