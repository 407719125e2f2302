package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-retail/internal/debt"
	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-retail/internal/jobs"
)

// StockDriftSource lists stock rows whose quantity disagrees with their movements.
type StockDriftSource interface {
	StockDrift(ctx context.Context) ([]inventory.Drift, error)
}

// DebtDriftSource lists accounts whose balance disagrees with their last transaction.
type DebtDriftSource interface {
	BalanceDrift(ctx context.Context) ([]debt.Drift, error)
}

// IntegrityReport summarises one integrity run.
type IntegrityReport struct {
	Stock []inventory.Drift
	Debt  []debt.Drift
}

// Clean reports whether no drift was found.
func (r IntegrityReport) Clean() bool {
	return len(r.Stock) == 0 && len(r.Debt) == 0
}

// LedgerIntegrityJob verifies that cached balances match the append-only logs.
// Drift is logged and counted; it does not fail the task because retrying
// cannot repair it.
type LedgerIntegrityJob struct {
	Stock   StockDriftSource
	Debt    DebtDriftSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerIntegrityJob wires dependencies for the integrity handler.
func NewLedgerIntegrityJob(stock StockDriftSource, debts DebtDriftSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Stock: stock, Debt: debts, Logger: logger, Metrics: metrics}
}

// Handle processes TaskLedgerIntegrity tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	_, err := j.Run(ctx)
	return err
}

// Run performs the check and returns what it found.
func (j *LedgerIntegrityJob) Run(ctx context.Context) (report IntegrityReport, err error) {
	tracker := j.Metrics.Track(TaskLedgerIntegrity)
	defer func() {
		err = tracker.End(err)
	}()
	logger := j.logger()

	g, gctx := errgroup.WithContext(ctx)
	if j.Stock != nil {
		g.Go(func() error {
			drifts, err := j.Stock.StockDrift(gctx)
			report.Stock = drifts
			return err
		})
	}
	if j.Debt != nil {
		g.Go(func() error {
			drifts, err := j.Debt.BalanceDrift(gctx)
			report.Debt = drifts
			return err
		})
	}
	if err = g.Wait(); err != nil {
		logger.Error("ledger integrity query", slog.Any("error", err))
		return IntegrityReport{}, err
	}

	for _, d := range report.Stock {
		logger.Warn("stock drift",
			slog.Int64("product_id", d.ProductID),
			slog.Int64("warehouse_id", d.WarehouseID),
			slog.String("cached", d.Cached.String()),
			slog.String("movements", d.Movements.String()))
	}
	for _, d := range report.Debt {
		logger.Warn("debt drift",
			slog.String("party", string(d.Party)),
			slog.Int64("party_id", d.PartyID),
			slog.String("balance", d.Balance.String()),
			slog.String("last_balance_after", d.LastAfter.String()))
	}
	j.Metrics.AddDrifts("stock", len(report.Stock))
	j.Metrics.AddDrifts("debt", len(report.Debt))
	logger.Info("ledger integrity checked",
		slog.Int("stock_drifts", len(report.Stock)),
		slog.Int("debt_drifts", len(report.Debt)),
		slog.Time("checked_at", time.Now().UTC()))
	return report, nil
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
	}
	return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
}
