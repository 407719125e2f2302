package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/odyssey-retail/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LOCK_BACKEND", LockBackendLocal)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, LockBackendLocal, cfg.LockBackend)
	require.Equal(t, 10*time.Second, cfg.LockTTL)
	require.Equal(t, 7*24*time.Hour, cfg.IdempotencyRetention)
	require.False(t, cfg.AllowNegativeStock)
	require.False(t, cfg.StrictRefunds)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsUnknownLockBackend(t *testing.T) {
	t.Setenv("LOCK_BACKEND", "etcd")

	_, err := LoadConfig()
	require.Error(t, err)
	require.Contains(t, err.Error(), "etcd")
}

func TestLoadConfigStrictRefunds(t *testing.T) {
	t.Setenv("LOCK_BACKEND", LockBackendRedis)
	t.Setenv("SETTLEMENT_STRICT_REFUNDS", "true")
	t.Setenv("SETTLEMENT_ALLOW_NEGATIVE_STOCK", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.StrictRefunds)
	require.True(t, cfg.AllowNegativeStock)
}

func TestLoadConfigRejectsInvertedPoolBounds(t *testing.T) {
	t.Setenv("LOCK_BACKEND", LockBackendLocal)
	t.Setenv("PG_MAX_CONNS", "4")
	t.Setenv("PG_MIN_CONNS", "8")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "PG_MIN_CONNS")
}

func TestConfigConnectionSettings(t *testing.T) {
	cfg := &Config{
		PGDSN:             "postgres://retail@db/retail",
		PGMaxConns:        12,
		PGMinConns:        2,
		PGMaxConnLifetime: time.Hour,
		RedisAddr:         "redis:6379",
		RedisPassword:     "pw",
		RedisDB:           3,
	}

	dbCfg := cfg.Database()
	require.Equal(t, "postgres://retail@db/retail", dbCfg.DSN)
	require.EqualValues(t, 12, dbCfg.MaxConns)
	require.EqualValues(t, 2, dbCfg.MinConns)
	require.Equal(t, time.Hour, dbCfg.MaxConnLifetime)

	redisOpts := cfg.Redis()
	require.Equal(t, "redis:6379", redisOpts.Addr)
	require.Equal(t, 3, redisOpts.Asynq().DB)
}
