package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/jusegoram/react-apollo-ccs-desk/migrations"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the embedded schema migrations",
	}
	for _, sub := range []struct {
		use   string
		short string
		run   func(ctx context.Context, rt *cliRuntime) error
	}{
		{"up", "Apply all pending migrations", migrateWith(migrations.Up)},
		{"down", "Roll back the latest migration", migrateWith(migrations.Down)},
		{"status", "Print the migration status", migrateWith(migrations.Status)},
	} {
		run := sub.run
		cmd.AddCommand(&cobra.Command{
			Use:   sub.use,
			Short: sub.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				rt, err := openRuntime(cmd.Context())
				if err != nil {
					return err
				}
				defer rt.Close()
				return run(rt.ctx, rt)
			},
		})
	}
	return cmd
}

func migrateWith(fn func(ctx context.Context, db *sql.DB) error) func(ctx context.Context, rt *cliRuntime) error {
	return func(ctx context.Context, rt *cliRuntime) error {
		db := stdlib.OpenDBFromPool(rt.pool)
		defer func() {
			if err := db.Close(); err != nil {
				rt.logger.WithError(err).Warn("close migration handle")
			}
		}()
		if err := fn(ctx, db); err != nil {
			return withCode(exitDBWrite, fmt.Errorf("migrate: %w", err))
		}
		return nil
	}
}
