// Package importer ingests tabular payment data (CSV or XLSX) into the
// record store. Rows are normalized and validated one at a time; invalid rows
// are collected in the report and never abort the batch.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/odyssey-erp/odyssey-payments/internal/payments"
)

// Sink persists validated records in one bulk write.
type Sink interface {
	InsertBatch(ctx context.Context, records []payments.Payment) ([]string, error)
}

// Countries provides the ISO2 code to country name mapping. It never fails;
// an unavailable source yields an empty map.
type Countries interface {
	Countries(ctx context.Context) map[string]string
}

// Recorder observes import outcomes.
type Recorder interface {
	ObserveImport(valid, invalid int, failed bool, duration time.Duration)
}

// InvalidEntry describes one rejected row. Line is the 1-based line number in
// the source file, counting the header.
type InvalidEntry struct {
	Line   int               `json:"line"`
	Row    map[string]any    `json:"row"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Report summarizes one import run.
type Report struct {
	Source         string         `json:"source,omitempty"`
	Total          int            `json:"total"`
	Valid          int            `json:"valid"`
	Invalid        int            `json:"invalid"`
	Inserted       int            `json:"inserted"`
	InsertedIDs    []string       `json:"inserted_ids"`
	InvalidEntries []InvalidEntry `json:"invalid_entries"`
	Error          string         `json:"error,omitempty"`
}

// Failed reports whether the batch itself failed, as opposed to single rows.
func (r Report) Failed() bool {
	return r.Error != ""
}

// Importer runs bulk imports.
type Importer struct {
	validator *payments.Validator
	sink      Sink
	countries Countries
	recorder  Recorder
	logger    *slog.Logger
}

// New constructs an Importer. countries and recorder are optional.
func New(validator *payments.Validator, sink Sink, countries Countries, recorder Recorder, logger *slog.Logger) *Importer {
	if validator == nil {
		validator = payments.NewValidator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		validator: validator,
		sink:      sink,
		countries: countries,
		recorder:  recorder,
		logger:    logger,
	}
}

// ImportFile imports the file at path.
func (im *Importer) ImportFile(ctx context.Context, path string) Report {
	f, err := os.Open(path)
	if err != nil {
		report := Report{Source: filepath.Base(path), InsertedIDs: []string{}, InvalidEntries: []InvalidEntry{}}
		report.Error = fmt.Sprintf("open %s: %v", filepath.Base(path), err)
		im.finish(report, time.Now())
		return report
	}
	defer f.Close()
	return im.Import(ctx, filepath.Base(path), f)
}

// Import reads, normalizes, validates and stores every row of r. name selects
// the file format by extension. Failures above the row level are captured in
// Report.Error instead of being returned.
func (im *Importer) Import(ctx context.Context, name string, r io.Reader) (report Report) {
	started := time.Now()
	report = Report{Source: name, InsertedIDs: []string{}, InvalidEntries: []InvalidEntry{}}
	defer func() {
		if rec := recover(); rec != nil {
			report.Error = fmt.Sprintf("import aborted: %v", rec)
		}
		im.finish(report, started)
	}()

	table, err := ReadTable(name, r)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Total = len(table.Rows)

	var countries map[string]string
	if im.countries != nil {
		countries = im.countries.Countries(ctx)
	}
	normalizer := NewNormalizer(countries)

	valid := make([]payments.Payment, 0, len(table.Rows))
	for i := range table.Rows {
		if err := ctx.Err(); err != nil {
			report.Error = err.Error()
			return report
		}
		row := normalizer.Row(table.Record(i))
		p, err := im.validator.Record(row)
		if err != nil {
			report.InvalidEntries = append(report.InvalidEntries, invalidEntry(table.Line(i), row, err))
			continue
		}
		if added, ok := row[payments.FieldAddedDateUTC].(time.Time); ok {
			p.AddedDateUTC = added
		}
		valid = append(valid, p)
	}
	report.Valid = len(valid)
	report.Invalid = len(report.InvalidEntries)

	if len(valid) == 0 {
		return report
	}
	ids, err := im.sink.InsertBatch(ctx, valid)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.InsertedIDs = ids
	report.Inserted = len(ids)
	return report
}

func (im *Importer) finish(report Report, started time.Time) {
	elapsed := time.Since(started)
	if im.recorder != nil {
		im.recorder.ObserveImport(report.Valid, report.Invalid, report.Failed(), elapsed)
	}
	attrs := []any{
		slog.String("source", report.Source),
		slog.Int("total", report.Total),
		slog.Int("inserted", report.Inserted),
		slog.Int("invalid", report.Invalid),
		slog.Duration("duration", elapsed),
	}
	if report.Failed() {
		im.logger.Error("payments import failed", append(attrs, slog.String("error", report.Error))...)
		return
	}
	if report.Invalid > 0 {
		im.logger.Warn("payments import finished with invalid rows", attrs...)
		return
	}
	im.logger.Info("payments import finished", attrs...)
}

func invalidEntry(line int, row map[string]any, err error) InvalidEntry {
	entry := InvalidEntry{Line: line, Row: row, Error: err.Error()}
	var verr *payments.ValidationError
	if errors.As(err, &verr) {
		entry.Fields = verr.Fields
	}
	return entry
}
