package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/services"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/composables"
)

// ServiceRegionRepository reads the directv_sr_data reference table.
type ServiceRegionRepository struct{}

func NewServiceRegionRepository() *ServiceRegionRepository {
	return &ServiceRegionRepository{}
}

func (r *ServiceRegionRepository) ListForHSP(ctx context.Context, hsp string) ([]services.ServiceRegion, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT "Service Region", COALESCE("Office", ''), COALESCE("DMA", ''), COALESCE("Division", ''), "HSP"
FROM "directv_sr_data"
WHERE "HSP" = $1
ORDER BY "Service Region"
`, hsp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []services.ServiceRegion
	for rows.Next() {
		var sr services.ServiceRegion
		if err := rows.Scan(&sr.ServiceRegion, &sr.Office, &sr.DMA, &sr.Division, &sr.HSP); err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

// ReplaceForHSP swaps the HSP's mapping for rows. Run it inside a transaction.
func (r *ServiceRegionRepository) ReplaceForHSP(ctx context.Context, hsp string, rows []services.ServiceRegion) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM "directv_sr_data" WHERE "HSP" = $1`, hsp); err != nil {
		return 0, err
	}
	return tx.CopyFrom(ctx,
		pgx.Identifier{"directv_sr_data"},
		[]string{"Service Region", "Office", "DMA", "Division", "HSP"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			sr := rows[i]
			return []any{sr.ServiceRegion, nullIfEmpty(sr.Office), nullIfEmpty(sr.DMA), nullIfEmpty(sr.Division), hsp}, nil
		}),
	)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
