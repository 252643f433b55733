package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/workorder"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/composables"
)

type WorkOrderRepository struct{}

func NewWorkOrderRepository() *WorkOrderRepository {
	return &WorkOrderRepository{}
}

const workOrderColumns = `"id", "companyId", "externalId", "date", COALESCE("type", '') AS "type", COALESCE("status", '') AS "status", "row"`

func scanWorkOrder(row pgx.Row) (*workorder.WorkOrder, error) {
	var (
		wo   workorder.WorkOrder
		date pgtype.Date
	)
	if err := row.Scan(&wo.ID, &wo.CompanyID, &wo.ExternalID, &date, &wo.Type, &wo.Status, &wo.Row); err != nil {
		return nil, err
	}
	wo.Date = datePtr(date)
	return &wo, nil
}

func datePtr(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

func (r *WorkOrderRepository) FindByExternalID(ctx context.Context, companyID uuid.UUID, externalID string) (*workorder.WorkOrder, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return noRows(scanWorkOrder(tx.QueryRow(ctx, `
SELECT `+workOrderColumns+` FROM "WorkOrder" WHERE "companyId" = $1 AND "externalId" = $2
`, companyID, externalID)))
}

func (r *WorkOrderRepository) Insert(ctx context.Context, wo workorder.WorkOrder) (*workorder.WorkOrder, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanWorkOrder(tx.QueryRow(ctx, `
WITH inserted AS (
	INSERT INTO "WorkOrder" ("companyId", "externalId", "date", "type", "status", "row")
	VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
	ON CONFLICT ("companyId", "externalId") DO NOTHING
	RETURNING `+workOrderColumns+`
)
SELECT * FROM inserted
UNION ALL
SELECT `+workOrderColumns+` FROM "WorkOrder" WHERE "companyId" = $1 AND "externalId" = $2
LIMIT 1
`, wo.CompanyID, wo.ExternalID, wo.Date, wo.Type, wo.Status, jsonRow(wo.Row)))
}

type AppointmentRepository struct{}

func NewAppointmentRepository() *AppointmentRepository {
	return &AppointmentRepository{}
}

const appointmentColumns = `a."id", a."workOrderId", a."assignedTechId", a."date", COALESCE(a."status", ''), a."row",
	lower(a."lifespan"), upper(a."lifespan")`

func scanAppointment(row pgx.Row) (*workorder.Appointment, error) {
	var (
		a     workorder.Appointment
		tech  pgtype.UUID
		date  pgtype.Date
		start time.Time
		end   pgtype.Timestamptz
	)
	if err := row.Scan(&a.ID, &a.WorkOrderID, &tech, &date, &a.Status, &a.Row, &start, &end); err != nil {
		return nil, err
	}
	a.AssignedTechID = uuidPtr(tech)
	a.Date = datePtr(date)
	a.Lifespan.Start = start
	if end.Valid {
		t := end.Time
		a.Lifespan.End = &t
	}
	return &a, nil
}

func (r *AppointmentRepository) Latest(ctx context.Context, workOrderID uuid.UUID) (*workorder.Appointment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return noRows(scanAppointment(tx.QueryRow(ctx, `
SELECT `+appointmentColumns+` FROM "Appointment" a
WHERE a."workOrderId" = $1
ORDER BY lower(a."lifespan") DESC
LIMIT 1
`, workOrderID)))
}

func (r *AppointmentRepository) Insert(ctx context.Context, in workorder.Appointment) (*workorder.Appointment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanAppointment(tx.QueryRow(ctx, `
INSERT INTO "Appointment" AS a ("workOrderId", "assignedTechId", "date", "status", "row", "lifespan")
VALUES ($1, $2, $3, NULLIF($4, ''), $5, tstzrange($6, $7, '[)'))
RETURNING `+appointmentColumns,
		in.WorkOrderID, in.AssignedTechID, in.Date, in.Status, jsonRow(in.Row), in.Lifespan.Start, in.Lifespan.End))
}

func (r *AppointmentRepository) Close(ctx context.Context, id uuid.UUID, at time.Time) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
UPDATE "Appointment" SET "lifespan" = tstzrange(lower("lifespan"), $2, '[)')
WHERE "id" = $1
`, id, at)
	return err
}

func (r *AppointmentRepository) Rewrite(ctx context.Context, a workorder.Appointment) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
UPDATE "Appointment" SET
	"assignedTechId" = $2,
	"date" = $3,
	"status" = NULLIF($4, ''),
	"row" = $5
WHERE "id" = $1
`, a.ID, a.AssignedTechID, a.Date, a.Status, jsonRow(a.Row))
	return err
}

func (r *AppointmentRepository) LatestOverlapping(ctx context.Context, companyID uuid.UUID, externalID string, from, to time.Time) (*workorder.Appointment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return noRows(scanAppointment(tx.QueryRow(ctx, `
SELECT `+appointmentColumns+`
FROM "Appointment" a
JOIN "WorkOrder" w ON w."id" = a."workOrderId"
WHERE w."companyId" = $1
	AND w."externalId" = $2
	AND a."lifespan" && tstzrange($3, $4, '[)')
ORDER BY lower(a."lifespan") DESC
LIMIT 1
`, companyID, externalID, from, to)))
}
