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
	paymentshttp "github.com/odyssey-erp/odyssey-payments/internal/payments/http"
	"github.com/odyssey-erp/odyssey-payments/internal/payments/importer"
	"github.com/odyssey-erp/odyssey-payments/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-payments/internal/platform/db"
	"github.com/odyssey-erp/odyssey-payments/internal/shared"
	"github.com/odyssey-erp/odyssey-payments/jobs"
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

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.Pool())
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	paymentsService := payments.NewService(payments.NewRepository(dbpool), evidenceStore, logger)
	countryLookup := countries.NewLookup(
		countries.NewClient(cfg.CountryAPIURL, cfg.CountryFetchTimeout),
		redisClient,
		cfg.CountryCacheTTL,
		logger,
	)
	paymentsImporter := importer.New(paymentsService.Validator(), paymentsService, countryLookup, metrics, logger)

	jobClient, err := jobs.NewClient(cfg.Redis().Asynq())
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	paymentsHandler := paymentshttp.NewHandler(paymentshttp.Options{
		Logger:         logger,
		Service:        paymentsService,
		Importer:       paymentsImporter,
		Queue:          jobClient,
		Idempotency:    shared.NewIdempotencyStore(dbpool),
		ImportDir:      cfg.ImportDir,
		MaxUploadBytes: cfg.UploadMaxBytes,
	})

	inspector := asynq.NewInspector(cfg.Redis().Asynq())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		PaymentsHandler: paymentsHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
}
