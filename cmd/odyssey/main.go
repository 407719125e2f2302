package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-retail/internal/app"
	"github.com/odyssey-erp/odyssey-retail/internal/cashbook"
	"github.com/odyssey-erp/odyssey-retail/internal/debt"
	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
	"github.com/odyssey-erp/odyssey-retail/internal/observability"
	"github.com/odyssey-erp/odyssey-retail/internal/orders"
	"github.com/odyssey-erp/odyssey-retail/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-retail/internal/platform/db"
	"github.com/odyssey-erp/odyssey-retail/internal/platform/lock"
	"github.com/odyssey-erp/odyssey-retail/internal/settlement"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
	"github.com/odyssey-erp/odyssey-retail/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "odyssey-api")

	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Error("odyssey stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.Database())
	if err != nil {
		return err
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	locker := newLocker(cfg, redisClient, logger)
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	inventoryRepo := inventory.NewRepository(dbpool)
	defaultWarehouse, err := inventory.ResolveDefaultWarehouse(ctx, inventoryRepo)
	if err != nil {
		if errors.Is(err, inventory.ErrNoDefaultWarehouse) {
			logger.Error("mark one active warehouse as default before starting", slog.Any("error", err))
		}
		return err
	}
	logger.Info("default warehouse resolved", slog.Int64("warehouse_id", defaultWarehouse.ID))

	inventoryService := inventory.NewService(inventoryRepo, locker, auditLogger, logger, inventory.ServiceConfig{
		AllowNegativeStock: cfg.AllowNegativeStock,
	})
	debtService := debt.NewService(debt.NewRepository(dbpool))
	ordersService := orders.NewService(orders.NewRepository(dbpool), auditLogger, logger)
	cashbookService := cashbook.NewService(
		cashbook.NewRepository(dbpool),
		cashbook.NewCache(redisClient, cfg.CashbookCacheTTL),
		logger,
	)

	settlementService, err := settlement.NewService(
		settlement.NewStore(dbpool),
		locker,
		cashbookService,
		auditLogger,
		settlement.NewMetrics(metrics.Registerer()),
		logger,
		settlement.Config{
			AllowNegativeStock: cfg.AllowNegativeStock,
			StrictRefunds:      cfg.StrictRefunds,
			DefaultWarehouseID: defaultWarehouse.ID,
		},
	)
	if err != nil {
		return err
	}

	references := newReferenceRegistry(ordersService, debtService, inventoryService)

	redisOpts := cfg.Redis().Asynq()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Metrics:           metrics,
		SettlementHandler: settlement.NewHandler(logger, settlementService, references),
		OrdersHandler:     orders.NewHandler(logger, ordersService),
		InventoryHandler:  inventory.NewHandler(logger, inventoryService),
		DebtHandler:       debt.NewHandler(logger, debtService),
		CashbookHandler:   cashbook.NewHandler(logger, cashbookService),
		JobHandler:        jobs.NewHandler(inspector, jobClient, logger),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("lock_backend", cfg.LockBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

func newLocker(cfg *app.Config, client *redis.Client, logger *slog.Logger) lock.Locker {
	if cfg.LockBackend == app.LockBackendLocal {
		logger.Warn("using in-process locks; run a single instance only")
		return lock.NewLocal()
	}
	return lock.NewRedis(client, cfg.LockTTL)
}

func newReferenceRegistry(ordersService *orders.Service, debtService *debt.Service, inventoryService *inventory.Service) *settlement.ReferenceRegistry {
	registry := settlement.NewReferenceRegistry()
	order := func(kind orders.Kind) settlement.Resolver {
		return func(ctx context.Context, id int64) (any, error) {
			o, err := ordersService.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if o.Kind != kind {
				return nil, fmt.Errorf("%w: order %d is not a %s order", shared.ErrNotFound, id, kind)
			}
			return o, nil
		}
	}
	registry.Register(shared.RefSaleOrder, order(orders.KindSale))
	registry.Register(shared.RefPurchaseOrder, order(orders.KindPurchase))
	registry.Register(shared.RefReturnOrder, order(orders.KindReturn))
	registry.Register(shared.RefDebtTransaction, func(ctx context.Context, id int64) (any, error) {
		return debtService.GetTransaction(ctx, id)
	})
	registry.Register(shared.RefStockAdjustment, func(ctx context.Context, id int64) (any, error) {
		return inventoryService.GetAdjustment(ctx, id)
	})
	return registry
}
