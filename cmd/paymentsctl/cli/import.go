package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/odyssey-erp/odyssey-payments/internal/payments/importer"
)

// Exit codes returned by ImportCommand.
const (
	ExitOK          = 0
	ExitFailed      = 1
	ExitInvalidRows = 10
)

type fileImporter interface {
	ImportFile(ctx context.Context, path string) importer.Report
}

// ImportCLI runs imports in-process against the configured store.
type ImportCLI struct {
	importer fileImporter
}

// NewImportCLI wires the import command.
func NewImportCLI(imp fileImporter) (*ImportCLI, error) {
	if imp == nil {
		return nil, errors.New("import cli: importer required")
	}
	return &ImportCLI{importer: imp}, nil
}

// ImportOptions defines available flags for the import command.
type ImportOptions struct {
	Path       string
	JSONOutput bool
	// MaxListed caps the invalid rows printed in human output.
	MaxListed int
	Stdout    io.Writer
	Stderr    io.Writer
}

// ImportCommand imports one file and prints the report. It exits with
// ExitInvalidRows when rows were rejected and ExitFailed when the batch failed.
func (c *ImportCLI) ImportCommand(ctx context.Context, opts ImportOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "import: file path is required")
		return ExitFailed
	}
	if !importer.Supported(path) {
		_, _ = fmt.Fprintf(opts.Stderr, "import: %s is not a .csv or .xlsx file\n", path)
		return ExitFailed
	}

	report := c.importer.ImportFile(ctx, path)
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(report); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "import: encode json: %v\n", err)
			return ExitFailed
		}
	} else {
		renderReportHuman(opts.Stdout, report, opts.MaxListed)
	}
	switch {
	case report.Failed():
		_, _ = fmt.Fprintf(opts.Stderr, "import: %s\n", report.Error)
		return ExitFailed
	case report.Invalid > 0:
		return ExitInvalidRows
	default:
		return ExitOK
	}
}

func renderReportHuman(w io.Writer, report importer.Report, maxListed int) {
	if maxListed <= 0 {
		maxListed = 20
	}
	_, _ = fmt.Fprintf(w, "source:   %s\n", report.Source)
	_, _ = fmt.Fprintf(w, "rows:     %d\n", report.Total)
	_, _ = fmt.Fprintf(w, "valid:    %d\n", report.Valid)
	_, _ = fmt.Fprintf(w, "invalid:  %d\n", report.Invalid)
	_, _ = fmt.Fprintf(w, "inserted: %d\n", report.Inserted)
	for i, entry := range report.InvalidEntries {
		if i == maxListed {
			_, _ = fmt.Fprintf(w, "  ... %d more\n", len(report.InvalidEntries)-maxListed)
			break
		}
		_, _ = fmt.Fprintf(w, "  line %d: %s\n", entry.Line, entry.Error)
	}
}
