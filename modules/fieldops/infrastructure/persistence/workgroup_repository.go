package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/employee"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/workgroup"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/composables"
)

type WorkGroupRepository struct{}

func NewWorkGroupRepository() *WorkGroupRepository {
	return &WorkGroupRepository{}
}

const workGroupColumns = `"id", "companyId", "type", "externalId", "name", "order"`

func scanWorkGroup(row pgx.Row) (*workgroup.WorkGroup, error) {
	var wg workgroup.WorkGroup
	var typ string
	if err := row.Scan(&wg.ID, &wg.CompanyID, &typ, &wg.ExternalID, &wg.Name, &wg.Order); err != nil {
		return nil, err
	}
	wg.Type = workgroup.Type(typ)
	return &wg, nil
}

func collectWorkGroups(rows pgx.Rows) ([]workgroup.WorkGroup, error) {
	defer rows.Close()
	out := make([]workgroup.WorkGroup, 0, 16)
	for rows.Next() {
		wg, err := scanWorkGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *wg)
	}
	return out, rows.Err()
}

func (r *WorkGroupRepository) FindByKey(ctx context.Context, key workgroup.Key) (*workgroup.WorkGroup, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return noRows(scanWorkGroup(tx.QueryRow(ctx, `
SELECT `+workGroupColumns+` FROM "WorkGroup"
WHERE "companyId" = $1 AND "type" = $2 AND "externalId" = $3
`, key.CompanyID, string(key.Type), key.ExternalID)))
}

// Insert keeps the first stored name when the group already exists.
func (r *WorkGroupRepository) Insert(ctx context.Context, wg workgroup.WorkGroup) (*workgroup.WorkGroup, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanWorkGroup(tx.QueryRow(ctx, `
WITH inserted AS (
	INSERT INTO "WorkGroup" ("companyId", "type", "externalId", "name", "order")
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT ("companyId", "type", "externalId") DO NOTHING
	RETURNING `+workGroupColumns+`
)
SELECT `+workGroupColumns+` FROM inserted
UNION ALL
SELECT `+workGroupColumns+` FROM "WorkGroup"
WHERE "companyId" = $1 AND "type" = $2 AND "externalId" = $3
LIMIT 1
`, wg.CompanyID, string(wg.Type), wg.ExternalID, wg.Name, wg.Order))
}

func (r *WorkGroupRepository) ListByCompanies(ctx context.Context, companyIDs []uuid.UUID) ([]workgroup.WorkGroup, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+workGroupColumns+` FROM "WorkGroup"
WHERE "companyId" = ANY($1)
ORDER BY "order", "externalId"
`, companyIDs)
	if err != nil {
		return nil, err
	}
	return collectWorkGroups(rows)
}

func (r *WorkGroupRepository) ListForEmployee(ctx context.Context, employeeID uuid.UUID, role employee.Role) ([]workgroup.WorkGroup, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT w."id", w."companyId", w."type", w."externalId", w."name", w."order"
FROM "WorkGroup" w
JOIN "workGroupEmployees" m ON m."workGroupId" = w."id"
WHERE m."employeeId" = $1 AND m."role" = $2
ORDER BY w."order", w."externalId"
`, employeeID, string(role))
	if err != nil {
		return nil, err
	}
	return collectWorkGroups(rows)
}

// ReplaceEmployeeMemberships swaps the employee's groups for role in one batch.
func (r *WorkGroupRepository) ReplaceEmployeeMemberships(ctx context.Context, employeeID uuid.UUID, role employee.Role, workGroupIDs []uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM "workGroupEmployees" WHERE "employeeId" = $1 AND "role" = $2`, employeeID, string(role))
	if len(workGroupIDs) > 0 {
		batch.Queue(`
INSERT INTO "workGroupEmployees" ("workGroupId", "employeeId", "role")
SELECT id, $2, $3 FROM unnest($1::uuid[]) AS id
ON CONFLICT DO NOTHING
`, workGroupIDs, employeeID, string(role))
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (r *WorkGroupRepository) AddEmployeeMembership(ctx context.Context, workGroupID, employeeID uuid.UUID, role employee.Role) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO "workGroupEmployees" ("workGroupId", "employeeId", "role") VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING
`, workGroupID, employeeID, string(role))
	return err
}

func (r *WorkGroupRepository) ReplaceWorkOrderLinks(ctx context.Context, workOrderID uuid.UUID, workGroupIDs []uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM "workGroupWorkOrders" WHERE "workOrderId" = $1`, workOrderID)
	if len(workGroupIDs) > 0 {
		batch.Queue(`
INSERT INTO "workGroupWorkOrders" ("workGroupId", "workOrderId")
SELECT id, $2 FROM unnest($1::uuid[]) AS id
ON CONFLICT DO NOTHING
`, workGroupIDs, workOrderID)
	}
	return tx.SendBatch(ctx, batch).Close()
}
