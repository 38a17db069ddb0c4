package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-payments/internal/observability"
	"github.com/odyssey-erp/odyssey-payments/internal/payments"
	"github.com/odyssey-erp/odyssey-payments/internal/payments/importer"
)

// newImporter builds the worker's importer, recording every run on metrics.
func newImporter(validator *payments.Validator, sink importer.Sink, countries importer.Countries, metrics *observability.Metrics, logger *slog.Logger) *importer.Importer {
	return importer.New(validator, sink, countries, metrics, logger)
}

// newMetricsServer exposes the worker's registry for scraping.
func newMetricsServer(addr string, metrics *observability.Metrics) *http.Server {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
}
