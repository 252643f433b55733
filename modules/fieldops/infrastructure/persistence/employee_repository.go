package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/employee"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/services"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/composables"
)

type EmployeeRepository struct{}

func NewEmployeeRepository() *EmployeeRepository {
	return &EmployeeRepository{}
}

const employeeColumns = `"id", "companyId", "externalId", "alternateExternalId", "role", "name", "phoneNumber",
	"skills", "schedule", "timezone", "startLocationId", "terminatedAt", "dataSourceId", "row"`

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	var (
		e         employee.Employee
		role      string
		alt       pgtype.Text
		name      pgtype.Text
		phone     pgtype.Text
		skills    pgtype.Text
		schedule  pgtype.Text
		timezone  pgtype.Text
		startLoc  pgtype.UUID
		dsID      pgtype.UUID
		terminate pgtype.Timestamptz
	)
	if err := row.Scan(&e.ID, &e.CompanyID, &e.ExternalID, &alt, &role, &name, &phone,
		&skills, &schedule, &timezone, &startLoc, &terminate, &dsID, &e.Row); err != nil {
		return nil, err
	}
	e.Role = employee.Role(role)
	e.AlternateExternalID = textPtr(alt)
	e.Name = textPtr(name)
	e.PhoneNumber = textPtr(phone)
	e.Skills = textPtr(skills)
	e.Schedule = textPtr(schedule)
	e.Timezone = textPtr(timezone)
	e.StartLocationID = uuidPtr(startLoc)
	e.DataSourceID = uuidPtr(dsID)
	if terminate.Valid {
		t := terminate.Time
		e.TerminatedAt = &t
	}
	return &e, nil
}

func uuidPtr(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}

func rolePtr(r *employee.Role) *string {
	if r == nil {
		return nil
	}
	s := string(*r)
	return &s
}

func (r *EmployeeRepository) Get(ctx context.Context, id uuid.UUID) (*employee.Employee, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return noRows(scanEmployee(tx.QueryRow(ctx, `SELECT `+employeeColumns+` FROM "Employee" WHERE "id" = $1`, id)))
}

func (r *EmployeeRepository) FindByExternalID(ctx context.Context, key services.EmployeeKey) (*employee.Employee, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return noRows(scanEmployee(tx.QueryRow(ctx, `
SELECT `+employeeColumns+` FROM "Employee" WHERE "companyId" = $1 AND "externalId" = $2
`, key.CompanyID, key.ExternalID)))
}

func (r *EmployeeRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]employee.Employee, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT `+employeeColumns+` FROM "Employee" WHERE "companyId" = $1`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]employee.Employee, 0, 256)
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *EmployeeRepository) Update(ctx context.Context, key services.EmployeeKey, upd services.EmployeeUpdate) (*employee.Employee, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var row any
	if upd.Row != nil {
		row = upd.Row
	}
	return noRows(scanEmployee(tx.QueryRow(ctx, `
UPDATE "Employee" SET
	"role" = COALESCE($3, "role"),
	"alternateExternalId" = COALESCE($4, "alternateExternalId"),
	"name" = COALESCE($5, "name"),
	"phoneNumber" = COALESCE($6, "phoneNumber"),
	"skills" = COALESCE($7, "skills"),
	"schedule" = COALESCE($8, "schedule"),
	"timezone" = COALESCE($9, "timezone"),
	"startLocationId" = COALESCE($10, "startLocationId"),
	"dataSourceId" = COALESCE($11, "dataSourceId"),
	"row" = COALESCE($12::jsonb, "row"),
	"terminatedAt" = CASE WHEN $13::boolean THEN NULL ELSE "terminatedAt" END,
	"updatedAt" = now()
WHERE "companyId" = $1 AND "externalId" = $2
RETURNING `+employeeColumns,
		key.CompanyID, key.ExternalID, rolePtr(upd.Role), upd.AlternateExternalID, upd.Name, upd.PhoneNumber,
		upd.Skills, upd.Schedule, upd.Timezone, upd.StartLocationID, upd.DataSourceID, row, upd.ClearTerminatedAt)))
}

// Insert returns nil when another writer already holds the natural key.
func (r *EmployeeRepository) Insert(ctx context.Context, key services.EmployeeKey, upd services.EmployeeUpdate) (*employee.Employee, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	role := upd.InsertRole
	if upd.Role != nil {
		role = *upd.Role
	}
	if role == "" {
		role = employee.RoleTech
	}
	var row any
	if upd.Row != nil {
		row = upd.Row
	}
	return noRows(scanEmployee(tx.QueryRow(ctx, `
INSERT INTO "Employee" (
	"companyId", "externalId", "role", "alternateExternalId", "name", "phoneNumber",
	"skills", "schedule", "timezone", "startLocationId", "dataSourceId", "row"
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb)
ON CONFLICT ("companyId", "externalId") DO NOTHING
RETURNING `+employeeColumns,
		key.CompanyID, key.ExternalID, string(role), upd.AlternateExternalID, upd.Name, upd.PhoneNumber,
		upd.Skills, upd.Schedule, upd.Timezone, upd.StartLocationID, upd.DataSourceID, row)))
}

func (r *EmployeeRepository) MarkTerminated(ctx context.Context, dataSourceID uuid.UUID, keepExternalIDs []string, at time.Time) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	if keepExternalIDs == nil {
		keepExternalIDs = []string{}
	}
	tag, err := tx.Exec(ctx, `
UPDATE "Employee" SET "terminatedAt" = $3, "updatedAt" = now()
WHERE "dataSourceId" = $1
	AND "terminatedAt" IS NULL
	AND NOT ("externalId" = ANY($2::text[]))
`, dataSourceID, keepExternalIDs, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
