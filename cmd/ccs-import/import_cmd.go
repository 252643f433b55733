package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/infrastructure/rejects"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/infrastructure/sources"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/services"
)

type importOptions struct {
	file          string
	catalogPath   string
	rejectsOut    string
	skipUnchanged bool
	concurrency   int
	all           bool
}

type importer interface {
	Import(ctx context.Context, req services.ImportRequest) (*services.ImportResult, error)
}

// importSummary is the JSON line printed per report.
type importSummary struct {
	Company        string     `json:"company"`
	DataSource     string     `json:"data_source"`
	Report         string     `json:"report"`
	DataImportID   *uuid.UUID `json:"data_import_id,omitempty"`
	Status         string     `json:"status"`
	Skipped        bool       `json:"skipped"`
	RowsProcessed  int        `json:"rows_processed"`
	RowsRejected   int        `json:"rows_rejected"`
	RowsUnchanged  int        `json:"rows_unchanged"`
	RowsUnresolved int        `json:"rows_unresolved"`
	RejectsFile    string     `json:"rejects_file,omitempty"`
	Error          string     `json:"error,omitempty"`
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import [company dataSource report]",
		Short: "Import one report, or every catalog report with --all",
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.all {
				if len(args) != 0 {
					return withCode(exitUsage, fmt.Errorf("--all takes no arguments"))
				}
				return nil
			}
			if len(args) != 3 {
				return withCode(exitUsage, fmt.Errorf("expected <company> <dataSource> <report>, got %d args", len(args)))
			}
			return nil
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.all && (opts.file != "" || opts.rejectsOut != "") {
				return withCode(exitUsage, fmt.Errorf("--file and --rejects-out need a single report"))
			}
			if opts.concurrency < 0 {
				return withCode(exitUsage, fmt.Errorf("--concurrency must be positive"))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportCmd(cmd.Context(), cmd.OutOrStdout(), opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Read the report from this CSV file instead of the reports directory")
	cmd.Flags().StringVar(&opts.catalogPath, "catalog", "", "Source catalog (default IMPORT_CATALOG)")
	cmd.Flags().StringVar(&opts.rejectsOut, "rejects-out", "", "Write rejected rows to this .xlsx workbook")
	cmd.Flags().BoolVar(&opts.skipUnchanged, "skip-unchanged", false, "Complete without processing when the report matches the last completed import")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Rows processed in parallel (default IMPORT_CONCURRENCY)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Import every report listed in the catalog")
	return cmd
}

func runImportCmd(ctx context.Context, out io.Writer, opts importOptions, args []string) error {
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	catalogPath := opts.catalogPath
	if catalogPath == "" {
		catalogPath = rt.conf.Import.CatalogPath
	}
	catalog, err := loadCatalog(catalogPath, opts.all || opts.catalogPath != "")
	if err != nil {
		return err
	}

	var reqs []services.ImportRequest
	if opts.all {
		reqs = catalog.Reports()
	} else {
		reqs = []services.ImportRequest{{CompanyName: args[0], DataSourceName: args[1], ReportName: args[2]}}
	}
	if !opts.skipUnchanged {
		opts.skipUnchanged = rt.conf.Import.SkipUnchanged
	}

	orchOpts := orchestratorOptions{catalog: catalog, concurrency: opts.concurrency}
	if opts.file != "" {
		orchOpts.fetcher = sources.PathFetcher(opts.file)
	}
	orch, err := rt.newOrchestrator(orchOpts)
	if err != nil {
		return err
	}
	return runImports(rt.ctx, orch, reqs, opts, out)
}

// runImports imports the reports in order and prints one summary per report.
// A failed report does not stop the others; the first failure is returned.
func runImports(ctx context.Context, orch importer, reqs []services.ImportRequest, opts importOptions, out io.Writer) error {
	var firstErr error
	for _, req := range reqs {
		req.SkipUnchanged = opts.skipUnchanged
		summary, err := importOne(ctx, orch, req, opts.rejectsOut)
		if werr := writeJSONLine(out, summary); werr != nil && firstErr == nil {
			firstErr = werr
		}
		if err != nil && firstErr == nil {
			firstErr = classify(err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return firstErr
}

func importOne(ctx context.Context, orch importer, req services.ImportRequest, rejectsOut string) (importSummary, error) {
	summary := importSummary{Company: req.CompanyName, DataSource: req.DataSourceName, Report: req.ReportName}
	res, err := orch.Import(ctx, req)
	if err != nil {
		summary.Status = "Errored"
		summary.Error = err.Error()
		return summary, err
	}

	summary.DataImportID = &res.Import.ID
	summary.Status = string(res.Import.Status)
	summary.Skipped = res.Skipped
	if r := res.Report; r != nil {
		summary.RowsProcessed = r.RowsProcessed
		summary.RowsRejected = r.RowsRejected
		summary.RowsUnchanged = r.RowsUnchanged
		summary.RowsUnresolved = r.RowsUnresolved
		if rejectsOut != "" && len(r.Rejected) > 0 {
			if err := rejects.Save(rejectsOut, r.Rejected); err != nil {
				summary.Error = err.Error()
				return summary, fmt.Errorf("write rejects: %w", err)
			}
			summary.RejectsFile = strings.TrimSpace(rejectsOut)
		}
	}
	return summary, nil
}
