package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/infrastructure/persistence"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/infrastructure/sources"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/services"
)

func newSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage companies and data sources",
	}

	var catalogPath string
	sync := &cobra.Command{
		Use:   "sync",
		Short: "Ensure every catalog company and data source exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			path := catalogPath
			if path == "" {
				path = rt.conf.Import.CatalogPath
			}
			catalog, err := loadCatalog(path, true)
			if err != nil {
				return err
			}
			return runSourcesSync(rt.ctx, persistence.NewUnitOfWorkRunner(), catalog, rt.conf.Import.DefaultTimezone, cmd.OutOrStdout())
		},
	}
	sync.Flags().StringVar(&catalogPath, "catalog", "", "Source catalog (default IMPORT_CATALOG)")
	cmd.AddCommand(sync)
	return cmd
}

func runSourcesSync(ctx context.Context, runner services.UnitOfWorkRunner, catalog *sources.Catalog, defaultTimezone string, out io.Writer) error {
	var res sources.SyncResult
	err := runner.InTx(ctx, func(ctx context.Context, uow services.UnitOfWork) error {
		var err error
		res, err = sources.Sync(ctx, uow, catalog, defaultTimezone)
		return err
	})
	if err != nil {
		return withCode(exitDBWrite, fmt.Errorf("sync sources: %w", err))
	}
	return writeJSONLine(out, res)
}
