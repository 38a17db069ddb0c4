package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-payments/internal/jobs"
)

// CountryRefresher reloads the country mapping cache.
type CountryRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

// CountriesWarmupJob keeps the country mapping cache warm so imports rarely
// call the remote service.
type CountriesWarmupJob struct {
	Countries CountryRefresher
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewCountriesWarmupJob wires dependencies for the warmup handler.
func NewCountriesWarmupJob(countries CountryRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *CountriesWarmupJob {
	return &CountriesWarmupJob{Countries: countries, Logger: logger, Metrics: metrics}
}

// Handle processes TaskCountriesWarmup tasks.
func (j *CountriesWarmupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Countries == nil {
		return errors.New("countries warmup: handler not configured")
	}
	tracker := j.metrics().Track(TaskCountriesWarmup)
	count, err := j.Countries.Refresh(ctx)
	if err != nil {
		j.logger().Warn("countries warmup failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger().Info("countries warmed", slog.Int("count", count))
	return tracker.End(nil)
}

func (j *CountriesWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCountriesWarmup))
	}
	return slog.Default().With(slog.String("job", TaskCountriesWarmup))
}

func (j *CountriesWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
