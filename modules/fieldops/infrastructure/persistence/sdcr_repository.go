package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/sdcr"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/composables"
)

type SdcrRepository struct{}

func NewSdcrRepository() *SdcrRepository {
	return &SdcrRepository{}
}

// DeleteByKeys removes the points of the given (activity, date) pairs. Their
// work group links go with them.
func (r *SdcrRepository) DeleteByKeys(ctx context.Context, keys []sdcr.Key) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	externalIDs := make([]string, len(keys))
	dates := make([]string, len(keys))
	for i, k := range keys {
		externalIDs[i] = k.ExternalID
		dates[i] = k.Date
	}
	tag, err := tx.Exec(ctx, `
DELETE FROM "SdcrDataPoint" p
USING unnest($1::text[], $2::text[]) AS k("externalId", "date")
WHERE p."externalId" = k."externalId" AND p."date" = k."date"::date
`, externalIDs, dates)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CopyIn bulk loads the points and their work group links with COPY.
func (r *SdcrRepository) CopyIn(ctx context.Context, points []sdcr.DataPoint) (int64, error) {
	if len(points) == 0 {
		return 0, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"SdcrDataPoint"},
		[]string{"id", "techId", "externalId", "date", "value", "type", "dwellingType", "row", "dataImportId"},
		pgx.CopyFromSlice(len(points), func(i int) ([]any, error) {
			p := points[i]
			return []any{p.ID, p.TechID, p.ExternalID, p.Date, p.Value, p.Type, p.DwellingType, jsonRow(p.Row), p.DataImportID}, nil
		}),
	)
	if err != nil {
		return 0, err
	}

	var links [][]any
	for _, p := range points {
		for _, wgID := range p.WorkGroupIDs {
			links = append(links, []any{p.ID, wgID})
		}
	}
	if len(links) > 0 {
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"sdcrDataPointWorkGroups"},
			[]string{"sdcrDataPointId", "workGroupId"},
			pgx.CopyFromRows(links),
		); err != nil {
			return 0, err
		}
	}
	return n, nil
}
