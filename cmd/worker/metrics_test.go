package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-payments/internal/observability"
	"github.com/odyssey-erp/odyssey-payments/internal/payments"
)

type failingSink struct{}

func (failingSink) InsertBatch(context.Context, []payments.Payment) ([]string, error) {
	return nil, errors.New("database unavailable")
}

func scrape(t *testing.T, srv *http.Server) string {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestWorkerImportFailureIsScrapeable(t *testing.T) {
	metrics := observability.NewMetrics()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	imp := newImporter(nil, failingSink{}, nil, metrics, logger)

	csv := "payee_first_name,payee_last_name,payee_payment_status,payee_added_date_utc,payee_due_date,payee_address_line_1,payee_address_line_2,payee_city,payee_country,payee_province_or_state,payee_postal_code,payee_phone_number,payee_email,currency,due_amount,discount_percent,tax_percent\n" +
		"Ada,Lovelace,pending,1704067200,2024-05-01,1 St,,London,ID,,01234,0812,ada@example.com,USD,100,10,5\n"
	report := imp.Import(context.Background(), "batch.csv", strings.NewReader(csv))
	require.True(t, report.Failed())

	body := scrape(t, newMetricsServer(":0", metrics))
	assert.Contains(t, body, `payments_import_runs_total{status="failure"} 1`)
}

func TestWorkerMetricsServerHealth(t *testing.T) {
	srv := newMetricsServer(":0", observability.NewMetrics())
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotZero(t, srv.ReadHeaderTimeout)
}
