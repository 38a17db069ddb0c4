package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-payments/internal/app"
	"github.com/odyssey-erp/odyssey-payments/internal/countries"
	"github.com/odyssey-erp/odyssey-payments/internal/evidence"
	"github.com/odyssey-erp/odyssey-payments/internal/observability"
	"github.com/odyssey-erp/odyssey-payments/internal/payments"
	"github.com/odyssey-erp/odyssey-payments/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-payments/internal/platform/db"
	"github.com/odyssey-erp/odyssey-payments/internal/shared"
	"github.com/odyssey-erp/odyssey-payments/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.Pool())
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	evidenceStore, err := evidence.NewStore(cfg.UploadDir)
	if err != nil {
		logger.Error("prepare upload dir", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	paymentsService := payments.NewService(payments.NewRepository(pool), evidenceStore, logger)
	countryLookup := countries.NewLookup(
		countries.NewClient(cfg.CountryAPIURL, cfg.CountryFetchTimeout),
		redisClient,
		cfg.CountryCacheTTL,
		logger,
	)
	paymentsImporter := newImporter(paymentsService.Validator(), paymentsService, countryLookup, metrics, logger)

	idempotencyStore := shared.NewIdempotencyStore(pool)
	importJob := jobs.NewImportJob(paymentsImporter, idempotencyStore, logger, metrics.Jobs())
	warmupJob := jobs.NewCountriesWarmupJob(countryLookup, logger, metrics.Jobs())
	cleanupJob := jobs.NewIdempotencyCleanupJob(idempotencyStore, logger, metrics.Jobs())

	retentionHours := int(cfg.IdempotencyTTL.Hours())
	if retentionHours <= 0 {
		retentionHours = 1
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(retentionHours)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.Redis().Asynq(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPaymentsImport, Handler: importJob.Handle},
			{Type: jobs.TaskCountriesWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 */6 * * *", Task: jobs.NewCountriesWarmupTask(), Options: []asynq.Option{asynq.MaxRetry(2)}},
			{Spec: "30 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := newMetricsServer(cfg.WorkerMetricsAddr, metrics)
	go func() {
		logger.Info("starting worker metrics server", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("worker metrics shutdown", slog.Any("error", err))
		}
	}()

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
