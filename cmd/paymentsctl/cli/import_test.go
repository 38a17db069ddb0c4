package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-payments/internal/payments/importer"
	"github.com/odyssey-erp/odyssey-payments/jobs"
)

type stubImporter struct {
	report importer.Report
	paths  []string
}

func (s *stubImporter) ImportFile(ctx context.Context, path string) importer.Report {
	s.paths = append(s.paths, path)
	return s.report
}

func runImport(t *testing.T, report importer.Report, opts ImportOptions) (int, *stubImporter, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	stub := &stubImporter{report: report}
	cli, err := NewImportCLI(stub)
	require.NoError(t, err)
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	opts.Stdout = stdout
	opts.Stderr = stderr
	return cli.ImportCommand(context.Background(), opts), stub, stdout, stderr
}

func TestImportCommandJSONSuccess(t *testing.T) {
	report := importer.Report{Source: "a.csv", Total: 2, Valid: 2, Inserted: 2, InsertedIDs: []string{"x", "y"}, InvalidEntries: []importer.InvalidEntry{}}
	code, stub, stdout, stderr := runImport(t, report, ImportOptions{Path: "data/a.csv", JSONOutput: true})

	require.Equal(t, ExitOK, code)
	require.Empty(t, stderr.String())
	require.Equal(t, []string{"data/a.csv"}, stub.paths)

	var decoded importer.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decoded))
	require.Equal(t, 2, decoded.Inserted)
	require.Equal(t, []string{"x", "y"}, decoded.InsertedIDs)
}

func TestImportCommandInvalidRowsExitCode(t *testing.T) {
	report := importer.Report{
		Source:   "a.csv",
		Total:    3,
		Valid:    1,
		Invalid:  2,
		Inserted: 1,
		InvalidEntries: []importer.InvalidEntry{
			{Line: 2, Error: "1 validation error(s): payee_email: value is not a valid email address"},
			{Line: 4, Error: "1 validation error(s): due_amount: field required"},
		},
	}
	code, _, stdout, _ := runImport(t, report, ImportOptions{Path: "a.csv", MaxListed: 1})

	require.Equal(t, ExitInvalidRows, code)
	require.Contains(t, stdout.String(), "invalid:  2")
	require.Contains(t, stdout.String(), "line 2: 1 validation error(s): payee_email")
	require.Contains(t, stdout.String(), "... 1 more")
	require.NotContains(t, stdout.String(), "line 4")
}

func TestImportCommandBatchFailure(t *testing.T) {
	report := importer.Report{Source: "a.xlsx", Total: 1, Valid: 1, Error: "payments: insert many: connection refused"}
	code, _, _, stderr := runImport(t, report, ImportOptions{Path: "a.xlsx"})

	require.Equal(t, ExitFailed, code)
	require.Contains(t, stderr.String(), "connection refused")
}

func TestImportCommandRejectsUnsupportedPath(t *testing.T) {
	code, stub, _, stderr := runImport(t, importer.Report{}, ImportOptions{Path: "a.json"})

	require.Equal(t, ExitFailed, code)
	require.Empty(t, stub.paths)
	require.Contains(t, stderr.String(), "not a .csv or .xlsx")

	code, _, _, stderr = runImport(t, importer.Report{}, ImportOptions{})
	require.Equal(t, ExitFailed, code)
	require.Contains(t, stderr.String(), "file path is required")
}

func TestNewImportCLIRequiresImporter(t *testing.T) {
	_, err := NewImportCLI(nil)
	require.Error(t, err)
}

func TestTaskForName(t *testing.T) {
	task, err := TaskForName(jobs.TaskCountriesWarmup)
	require.NoError(t, err)
	require.Equal(t, jobs.TaskCountriesWarmup, task.Type())

	task, err = TaskForName(jobs.TaskIdempotencyCleanup)
	require.NoError(t, err)
	var payload jobs.IdempotencyCleanupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, defaultCleanupRetentionHours, payload.RetentionHours)

	_, err = TaskForName("mail:send")
	require.Error(t, err)
}
