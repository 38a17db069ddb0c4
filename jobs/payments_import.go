package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-payments/internal/jobs"
	"github.com/odyssey-erp/odyssey-payments/internal/payments/importer"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// FileImporter runs one import over a file on disk.
type FileImporter interface {
	ImportFile(ctx context.Context, path string) importer.Report
}

// KeyReleaser frees a claimed idempotency key.
type KeyReleaser interface {
	Release(ctx context.Context, key, module string) error
}

// ImportJob processes TaskPaymentsImport tasks.
type ImportJob struct {
	Importer FileImporter
	Keys     KeyReleaser
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewImportJob wires dependencies for the import handler.
func NewImportJob(imp FileImporter, keys KeyReleaser, logger *slog.Logger, metrics *jobmetrics.Metrics) *ImportJob {
	return &ImportJob{Importer: imp, Keys: keys, Logger: logger, Metrics: metrics}
}

// Handle imports the staged file. Row-level failures never fail the task; a
// batch-level failure is returned so asynq retries it.
func (j *ImportJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Importer == nil {
		return errors.New("payments import: handler not configured")
	}
	var payload ImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("payments import: bad payload: %w", asynq.SkipRetry)
	}
	logger := j.logger().With(slog.String("path", payload.Path))
	if payload.Path == "" {
		j.releaseKey(ctx, payload, logger)
		return fmt.Errorf("payments import: bad payload: %w", asynq.SkipRetry)
	}
	if _, err := os.Stat(payload.Path); err != nil {
		logger.Error("staged import file unavailable", slog.Any("error", err))
		j.releaseKey(ctx, payload, logger)
		return fmt.Errorf("payments import: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskPaymentsImport)
	report := j.Importer.ImportFile(ctx, payload.Path)
	j.metrics().AddRows(TaskPaymentsImport, "inserted", report.Inserted)
	j.metrics().AddRows(TaskPaymentsImport, "invalid", report.Invalid)
	writeResult(t, report, logger)

	if report.Failed() {
		if finalAttempt(ctx) {
			j.releaseKey(ctx, payload, logger)
		}
		return tracker.End(errors.New("payments import: " + report.Error))
	}
	if payload.Remove {
		if err := os.Remove(payload.Path); err != nil {
			logger.Warn("remove staged import file", slog.Any("error", err))
		}
	}
	return tracker.End(nil)
}

// finalAttempt reports whether asynq will not retry the task after a failure.
// Outside a worker there is no retry state and every attempt is final.
func finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}

func (j *ImportJob) releaseKey(ctx context.Context, payload ImportPayload, logger *slog.Logger) {
	if j.Keys == nil || payload.IdempotencyKey == "" {
		return
	}
	if err := j.Keys.Release(context.WithoutCancel(ctx), payload.IdempotencyKey, payload.IdempotencyModule); err != nil {
		logger.Warn("release idempotency key", slog.String("key", payload.IdempotencyKey), slog.Any("error", err))
		return
	}
	logger.Info("idempotency key released", slog.String("key", payload.IdempotencyKey))
}

func writeResult(t *asynq.Task, report importer.Report, logger *slog.Logger) {
	w := t.ResultWriter()
	if w == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		logger.Warn("encode import report", slog.Any("error", err))
		return
	}
	if _, err := w.Write(data); err != nil {
		logger.Warn("write import report", slog.Any("error", err))
	}
}

func (j *ImportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPaymentsImport))
	}
	return slog.Default().With(slog.String("job", TaskPaymentsImport))
}

func (j *ImportJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
