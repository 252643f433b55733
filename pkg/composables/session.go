package composables

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jusegoram/react-apollo-ccs-desk/pkg/configuration"
)

// ApplySessionSettings scopes lock and statement timeouts to the current transaction.
func ApplySessionSettings(ctx context.Context, tx pgx.Tx) error {
	conf := configuration.Use()
	if conf.Database.LockTimeout > 0 {
		if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", fmt.Sprintf("%dms", conf.Database.LockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("failed to set lock_timeout: %w", err)
		}
	}
	if conf.Database.StatementTimeout > 0 {
		if _, err := tx.Exec(ctx, "SELECT set_config('statement_timeout', $1, true)", fmt.Sprintf("%dms", conf.Database.StatementTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("failed to set statement_timeout: %w", err)
		}
	}
	return nil
}
