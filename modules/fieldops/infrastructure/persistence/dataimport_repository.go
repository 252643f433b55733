package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/dataimport"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/services"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/composables"
)

// DataImportRepository writes outside the import transaction so the status
// stays visible while rows are processed.
type DataImportRepository struct{}

func NewDataImportRepository() *DataImportRepository {
	return &DataImportRepository{}
}

const dataImportColumns = `"id", "dataSourceId", "reportName", "status", "checksum", "rowsProcessed", "rowsRejected",
	"error", "downloadedAt", "completedAt", "createdAt"`

func scanDataImport(row pgx.Row) (*dataimport.DataImport, error) {
	var (
		di         dataimport.DataImport
		status     string
		checksum   pgtype.Text
		errText    pgtype.Text
		downloaded pgtype.Timestamptz
		completed  pgtype.Timestamptz
	)
	if err := row.Scan(&di.ID, &di.DataSourceID, &di.ReportName, &status, &checksum, &di.RowsProcessed, &di.RowsRejected,
		&errText, &downloaded, &completed, &di.CreatedAt); err != nil {
		return nil, err
	}
	di.Status = dataimport.Status(status)
	di.Checksum = textPtr(checksum)
	di.Error = textPtr(errText)
	if downloaded.Valid {
		t := downloaded.Time
		di.DownloadedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		di.CompletedAt = &t
	}
	return &di, nil
}

func (r *DataImportRepository) Create(ctx context.Context, di dataimport.DataImport) (*dataimport.DataImport, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanDataImport(tx.QueryRow(ctx, `
INSERT INTO "DataImport" ("dataSourceId", "reportName", "status", "createdAt")
VALUES ($1, $2, $3, $4)
RETURNING `+dataImportColumns, di.DataSourceID, di.ReportName, string(di.Status), di.CreatedAt))
}

func (r *DataImportRepository) Save(ctx context.Context, di dataimport.DataImport) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
UPDATE "DataImport" SET
	"status" = $2,
	"checksum" = $3,
	"rowsProcessed" = $4,
	"rowsRejected" = $5,
	"error" = $6,
	"downloadedAt" = $7,
	"completedAt" = $8,
	"updatedAt" = now()
WHERE "id" = $1
`, di.ID, string(di.Status), di.Checksum, di.RowsProcessed, di.RowsRejected, di.Error, di.DownloadedAt, di.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (r *DataImportRepository) Get(ctx context.Context, id uuid.UUID) (*dataimport.DataImport, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return noRows(scanDataImport(tx.QueryRow(ctx, `SELECT `+dataImportColumns+` FROM "DataImport" WHERE "id" = $1`, id)))
}

func (r *DataImportRepository) List(ctx context.Context, filter services.DataImportFilter) ([]dataimport.DataImport, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := tx.Query(ctx, `
SELECT `+dataImportColumns+` FROM "DataImport"
WHERE ($1::uuid IS NULL OR "dataSourceId" = $1)
ORDER BY "createdAt" DESC
LIMIT $2
`, filter.DataSourceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]dataimport.DataImport, 0, limit)
	for rows.Next() {
		di, err := scanDataImport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *di)
	}
	return out, rows.Err()
}

func (r *DataImportRepository) LastComplete(ctx context.Context, dataSourceID uuid.UUID, reportName string) (*dataimport.DataImport, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return noRows(scanDataImport(tx.QueryRow(ctx, `
SELECT `+dataImportColumns+` FROM "DataImport"
WHERE "dataSourceId" = $1 AND "reportName" = $2 AND "status" = $3
ORDER BY "createdAt" DESC
LIMIT 1
`, dataSourceID, reportName, string(dataimport.StatusComplete))))
}
