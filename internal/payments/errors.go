package payments

import (
	"fmt"
	"sort"
	"strings"

	"github.com/odyssey-erp/odyssey-payments/internal/platform/httpx"
)

// Domain errors for payment records.
var (
	// ErrNotFound indicates the id has no matching record.
	ErrNotFound = fmt.Errorf("payment not found: %w", httpx.ErrNotFound)
	// ErrEvidenceNotFound indicates the record carries no evidence reference.
	ErrEvidenceNotFound = fmt.Errorf("evidence not found: %w", httpx.ErrNotFound)
	// ErrEvidenceRequired is returned when marking a record completed without evidence.
	ErrEvidenceRequired = fmt.Errorf("evidence file is required to mark payment as completed: %w", httpx.ErrPrecondition)
	// ErrInvalidPage rejects non-positive pagination input.
	ErrInvalidPage = fmt.Errorf("page and size must be at least 1: %w", httpx.ErrValidation)
)

// ValidationError reports why a raw field set does not satisfy the payment
// schema. Row keeps the raw input for batch reports.
type ValidationError struct {
	Row    map[string]any
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return fmt.Sprintf("%d validation error(s): %s", len(parts), strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match httpx.ErrValidation.
func (e *ValidationError) Unwrap() error {
	return httpx.ErrValidation
}

// FieldErrors returns the per-field reasons.
func (e *ValidationError) FieldErrors() map[string]string {
	return e.Fields
}

func (e *ValidationError) add(field, reason string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = reason
}
