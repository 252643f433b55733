package persistence

import (
	"context"

	"github.com/google/uuid"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/company"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/composables"
)

type CompanyRepository struct{}

func NewCompanyRepository() *CompanyRepository {
	return &CompanyRepository{}
}

func (r *CompanyRepository) FindByName(ctx context.Context, name string) (*company.Company, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var c company.Company
	err = tx.QueryRow(ctx, `SELECT "id", "name" FROM "Company" WHERE "name" = $1`, name).Scan(&c.ID, &c.Name)
	return noRows(&c, err)
}

func (r *CompanyRepository) Ensure(ctx context.Context, name string) (*company.Company, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var c company.Company
	err = tx.QueryRow(ctx, `
INSERT INTO "Company" ("name") VALUES ($1)
ON CONFLICT ("name") DO UPDATE SET "updatedAt" = now()
RETURNING "id", "name"
`, name).Scan(&c.ID, &c.Name)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CompanyRepository) LinkDataSource(ctx context.Context, companyID, dataSourceID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO "companyDataSources" ("companyId", "dataSourceId") VALUES ($1, $2)
ON CONFLICT DO NOTHING
`, companyID, dataSourceID)
	return err
}

type DataSourceRepository struct{}

func NewDataSourceRepository() *DataSourceRepository {
	return &DataSourceRepository{}
}

const dataSourceColumns = `"id", "companyId", "name", "service", "timezone"`

func (r *DataSourceRepository) FindByName(ctx context.Context, companyID uuid.UUID, name string) (*company.DataSource, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var ds company.DataSource
	err = tx.QueryRow(ctx, `SELECT `+dataSourceColumns+` FROM "DataSource" WHERE "companyId" = $1 AND "name" = $2`, companyID, name).
		Scan(&ds.ID, &ds.CompanyID, &ds.Name, &ds.Service, &ds.Timezone)
	return noRows(&ds, err)
}

// Ensure creates or updates the data source and links it to its owner.
func (r *DataSourceRepository) Ensure(ctx context.Context, in company.DataSource) (*company.DataSource, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var ds company.DataSource
	err = tx.QueryRow(ctx, `
INSERT INTO "DataSource" ("companyId", "name", "service", "timezone") VALUES ($1, $2, $3, $4)
ON CONFLICT ("companyId", "name") DO UPDATE SET
	"service" = EXCLUDED."service",
	"timezone" = EXCLUDED."timezone",
	"updatedAt" = now()
RETURNING `+dataSourceColumns, in.CompanyID, in.Name, in.Service, in.Timezone).
		Scan(&ds.ID, &ds.CompanyID, &ds.Name, &ds.Service, &ds.Timezone)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO "companyDataSources" ("companyId", "dataSourceId") VALUES ($1, $2)
ON CONFLICT DO NOTHING
`, ds.CompanyID, ds.ID); err != nil {
		return nil, err
	}
	return &ds, nil
}
