package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/infrastructure/persistence"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/infrastructure/sources"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/services"
)

type srDataOptions struct {
	file string
	hsp  string
}

func newSrDataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sr-data",
		Short: "Manage the service-region reference data",
	}

	var opts srDataOptions
	load := &cobra.Command{
		Use:   "load",
		Short: "Replace the service regions of one HSP from a CSV export",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			opts.hsp = strings.TrimSpace(opts.hsp)
			if opts.file == "" || opts.hsp == "" {
				return withCode(exitUsage, fmt.Errorf("--file and --hsp are required"))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			return runSrDataLoad(rt.ctx, persistence.NewUnitOfWorkRunner(), opts, cmd.OutOrStdout())
		},
	}
	load.Flags().StringVar(&opts.file, "file", "", "Service-region CSV export (required)")
	load.Flags().StringVar(&opts.hsp, "hsp", "", "HSP (company) whose rows are replaced (required)")
	cmd.AddCommand(load)
	return cmd
}

func runSrDataLoad(ctx context.Context, runner services.UnitOfWorkRunner, opts srDataOptions, out io.Writer) error {
	f, err := os.Open(opts.file)
	if err != nil {
		return withCode(exitValidation, err)
	}
	defer f.Close()

	rows, err := sources.ParseServiceRegions(f, opts.hsp)
	if err != nil {
		return withCode(exitValidation, err)
	}

	var loaded int64
	err = runner.InTx(ctx, func(ctx context.Context, uow services.UnitOfWork) error {
		n, err := uow.ServiceRegions().ReplaceForHSP(ctx, opts.hsp, rows)
		loaded = n
		return err
	})
	if err != nil {
		return withCode(exitDBWrite, fmt.Errorf("load service regions: %w", err))
	}
	return writeJSONLine(out, map[string]any{"hsp": opts.hsp, "rows": loaded})
}
