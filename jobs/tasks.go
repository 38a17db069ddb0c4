package jobs

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPaymentsImport imports a staged CSV or XLSX file.
	TaskPaymentsImport = "payments:import"
	// TaskCountriesWarmup refreshes the cached country code mapping.
	TaskCountriesWarmup = "countries:warmup"
	// TaskIdempotencyCleanup drops expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// ImportPayload points at a staged import file.
type ImportPayload struct {
	Path string `json:"path"`
	// Remove deletes the staged file after a successful import.
	Remove bool `json:"remove,omitempty"`
	// IdempotencyKey and IdempotencyModule identify the claimed request key,
	// released when the import finally fails so the upload can be resent.
	IdempotencyKey    string `json:"idempotency_key,omitempty"`
	IdempotencyModule string `json:"idempotency_module,omitempty"`
}

// NewImportTask constructs a TaskPaymentsImport task.
func NewImportTask(payload ImportPayload) (*asynq.Task, error) {
	if strings.TrimSpace(payload.Path) == "" {
		return nil, errors.New("import task: path required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentsImport, data), nil
}

// NewCountriesWarmupTask constructs a TaskCountriesWarmup task.
func NewCountriesWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskCountriesWarmup, nil)
}

// IdempotencyCleanupPayload configures how old a key must be to be dropped.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs a TaskIdempotencyCleanup task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	if retentionHours <= 0 {
		return nil, errors.New("idempotency cleanup: retention must be positive")
	}
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
