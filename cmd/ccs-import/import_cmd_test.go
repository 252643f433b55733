package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/dataimport"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/infrastructure/rejects"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/infrastructure/sources"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/services"
)

type stubImporter struct {
	results map[string]*services.ImportResult
	errs    map[string]error
	seen    []services.ImportRequest
}

func (s *stubImporter) Import(_ context.Context, req services.ImportRequest) (*services.ImportResult, error) {
	s.seen = append(s.seen, req)
	if err := s.errs[req.ReportName]; err != nil {
		return nil, err
	}
	return s.results[req.ReportName], nil
}

func decodeLines(t *testing.T, out string) []importSummary {
	t.Helper()
	var summaries []importSummary
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var s importSummary
		require.NoError(t, json.Unmarshal([]byte(line), &s))
		summaries = append(summaries, s)
	}
	return summaries
}

func TestRunImports_WritesSummaryAndRejects(t *testing.T) {
	id := uuid.New()
	stub := &stubImporter{results: map[string]*services.ImportResult{
		services.ReportTechProfile: {
			Import: dataimport.DataImport{ID: id, Status: dataimport.StatusComplete},
			Report: &services.BatchReport{
				RowsProcessed: 2,
				RowsRejected:  1,
				Rejected:      []services.RejectedRow{{Line: 3, Reason: "missing Tech User ID", Values: map[string]string{"Tech Full Name": "Nobody"}}},
			},
		},
	}}
	rejectsPath := filepath.Join(t.TempDir(), "rejects.xlsx")
	var out bytes.Buffer
	reqs := []services.ImportRequest{{CompanyName: "Goodman", DataSourceName: "Siebel", ReportName: services.ReportTechProfile}}

	err := runImports(t.Context(), stub, reqs, importOptions{rejectsOut: rejectsPath, skipUnchanged: true}, &out)
	require.NoError(t, err)
	require.True(t, stub.seen[0].SkipUnchanged)

	got := decodeLines(t, out.String())
	require.Len(t, got, 1)
	require.Equal(t, id, *got[0].DataImportID)
	require.Equal(t, "Complete", got[0].Status)
	require.Equal(t, 2, got[0].RowsProcessed)
	require.Equal(t, 1, got[0].RowsRejected)
	require.Equal(t, rejectsPath, got[0].RejectsFile)

	f, err := excelize.OpenFile(rejectsPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(rejects.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestRunImports_ContinuesAfterFailure(t *testing.T) {
	stub := &stubImporter{
		results: map[string]*services.ImportResult{
			services.ReportRoutelog: {Import: dataimport.DataImport{ID: uuid.New(), Status: dataimport.StatusComplete}, Skipped: true},
		},
		errs: map[string]error{
			services.ReportTechProfile: services.ErrDataSourceNotFound,
		},
	}
	reqs := []services.ImportRequest{
		{CompanyName: "Goodman", DataSourceName: "Siebel", ReportName: services.ReportTechProfile},
		{CompanyName: "Goodman", DataSourceName: "Siebel", ReportName: services.ReportRoutelog},
	}
	var out bytes.Buffer
	err := runImports(t.Context(), stub, reqs, importOptions{}, &out)
	require.ErrorIs(t, err, services.ErrDataSourceNotFound)
	require.Equal(t, exitValidation, exitCode(err))

	got := decodeLines(t, out.String())
	require.Len(t, got, 2)
	require.Equal(t, "Errored", got[0].Status)
	require.Equal(t, "unable to find that data source", got[0].Error)
	require.True(t, got[1].Skipped)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: exitOK},
		{name: "unknown data source", err: services.ErrDataSourceNotFound, want: exitValidation},
		{name: "unknown report", err: services.ErrNoProcessor, want: exitValidation},
		{name: "import in progress", err: services.ErrImportInProgress, want: exitValidation},
		{name: "missing report file", err: sources.ErrReportNotFound, want: exitValidation},
		{name: "service error", err: &services.ServiceError{Code: "FIELDOPS_DUPLICATE", Message: "dup"}, want: exitDBWrite},
		{name: "pg error", err: &pgconn.PgError{Code: "23514"}, want: exitDBWrite},
		{name: "already coded", err: withCode(exitUsage, errors.New("bad")), want: exitUsage},
		{name: "other", err: errors.New("boom"), want: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, exitCode(classify(tc.err)))
		})
	}
}

func TestImportCmd_UsageErrors(t *testing.T) {
	cases := [][]string{
		{"import", "Goodman", "Siebel"},
		{"import", "--all", "Goodman"},
		{"import", "--all", "--file", "x.csv"},
		{"import", "--concurrency", "-1", "Goodman", "Siebel", "Routelog"},
		{"sr-data", "load", "--file", "sr.csv"},
	}
	for _, args := range cases {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetArgs(args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			err := cmd.ExecuteContext(t.Context())
			require.Error(t, err)
			require.Equal(t, exitUsage, exitCode(err))
		})
	}
}

func TestWriteJSONLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSONLine(&buf, map[string]string{"a": "<b>"}))
	require.Equal(t, "{\"a\":\"<b>\"}\n", buf.String())
}
