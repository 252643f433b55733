package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/geography"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/composables"
)

type GeographyRepository struct{}

func NewGeographyRepository() *GeographyRepository {
	return &GeographyRepository{}
}

const geographyColumns = `"id", "type", "streetAddress", "zipcode", "city", "state", "latitude"::text, "longitude"::text`

func scanGeography(row pgx.Row) (*geography.Geography, error) {
	var (
		g        geography.Geography
		lat, lng pgtype.Text
	)
	if err := row.Scan(&g.ID, &g.Type, &g.StreetAddress, &g.Zipcode, &g.City, &g.State, &lat, &lng); err != nil {
		return nil, err
	}
	var err error
	if g.Latitude, err = scanDecimal(lat); err != nil {
		return nil, err
	}
	if g.Longitude, err = scanDecimal(lng); err != nil {
		return nil, err
	}
	return &g, nil
}

// FindMatching returns a stored geography describing the same place.
func (r *GeographyRepository) FindMatching(ctx context.Context, g geography.Geography) (*geography.Geography, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return noRows(scanGeography(tx.QueryRow(ctx, `
SELECT `+geographyColumns+` FROM "Geography"
WHERE "type" = $1
	AND "streetAddress" = $2
	AND "zipcode" = $3
	AND "city" = $4
	AND "state" = $5
	AND "latitude" IS NOT DISTINCT FROM $6::text::numeric
	AND "longitude" IS NOT DISTINCT FROM $7::text::numeric
ORDER BY "createdAt"
LIMIT 1
`, g.Type, g.StreetAddress, g.Zipcode, g.City, g.State, decimalParam(g.Latitude), decimalParam(g.Longitude))))
}

func (r *GeographyRepository) Insert(ctx context.Context, g geography.Geography) (*geography.Geography, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanGeography(tx.QueryRow(ctx, `
INSERT INTO "Geography" ("type", "streetAddress", "zipcode", "city", "state", "latitude", "longitude")
VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7::text::numeric)
RETURNING `+geographyColumns,
		g.Type, g.StreetAddress, g.Zipcode, g.City, g.State, decimalParam(g.Latitude), decimalParam(g.Longitude)))
}
