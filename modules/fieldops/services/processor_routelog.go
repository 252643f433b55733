package services

import (
	"context"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/company"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/workgroup"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/workorder"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/normalizer"
)

// RoutelogProcessor records route log rows as work orders with an appointment
// history. Siebel and Edge rows share it once normalized.
type RoutelogProcessor struct {
	activities keyedMutex[string]
}

func NewRoutelogProcessor() *RoutelogProcessor {
	return &RoutelogProcessor{}
}

func (p *RoutelogProcessor) Prepare(context.Context, *Run) error { return nil }

func (p *RoutelogProcessor) Finish(context.Context, *Run) error { return nil }

func (p *RoutelogProcessor) ProcessRow(ctx context.Context, run *Run, row normalizer.Row) (RowOutcome, error) {
	activityID := row.Get(normalizer.FieldActivityID)
	if activityID == "" {
		return 0, expected("missing %s", normalizer.FieldActivityID)
	}
	row = run.WithServiceRegion(row)

	sub, err := run.EnsureSubcontractor(ctx, row.Get(normalizer.FieldSubcontractor))
	if err != nil {
		return 0, err
	}

	unlock := p.activities.lock(activityID)
	defer unlock()

	wo, err := p.ensureWorkOrder(ctx, run, activityID, row)
	if err != nil {
		return 0, err
	}

	changed, err := p.recordSnapshot(ctx, run, wo, row)
	if err != nil {
		return 0, err
	}
	if !changed {
		return OutcomeUnchanged, nil
	}

	var links []uuid.UUID
	for _, scopeCompany := range run.Scopes(sub) {
		groups, err := run.ensureGroups(ctx, scopeCompany.ID, routelogChain(run, row, sub))
		if err != nil {
			return 0, err
		}
		for _, wg := range groups {
			links = append(links, wg.ID)
		}
	}
	if err := run.UoW.WorkGroups().ReplaceWorkOrderLinks(ctx, wo.ID, links); err != nil {
		return 0, gerrors.Wrapf(err, "link work order %s", activityID)
	}
	return OutcomeApplied, nil
}

func (p *RoutelogProcessor) ensureWorkOrder(ctx context.Context, run *Run, activityID string, row normalizer.Row) (*workorder.WorkOrder, error) {
	repo := run.UoW.WorkOrders()
	wo, err := repo.FindByExternalID(ctx, run.Import.Company.ID, activityID)
	if err != nil {
		return nil, gerrors.Wrapf(err, "find work order %s", activityID)
	}
	if wo != nil {
		return wo, nil
	}
	wo, err = repo.Insert(ctx, workorder.WorkOrder{
		CompanyID:  run.Import.Company.ID,
		ExternalID: activityID,
		Date:       dueDate(row),
		Type:       row.Get(normalizer.FieldOrderType),
		Status:     row.Get(normalizer.FieldStatus),
		Row:        row.Values(),
	})
	if err != nil {
		return nil, gerrors.Wrapf(mapPgError(err), "insert work order %s", activityID)
	}
	return wo, nil
}

// recordSnapshot appends an appointment when the row differs from the latest
// snapshot. The previous snapshot's lifespan ends where the new one starts.
func (p *RoutelogProcessor) recordSnapshot(ctx context.Context, run *Run, wo *workorder.WorkOrder, row normalizer.Row) (bool, error) {
	repo := run.UoW.Appointments()
	values := row.Values()
	latest, err := repo.Latest(ctx, wo.ID)
	if err != nil {
		return false, gerrors.Wrapf(err, "latest appointment of %s", wo.ExternalID)
	}
	if latest != nil && latest.SameSnapshot(values) {
		return false, nil
	}

	now := run.Import.Now
	next := workorder.Appointment{
		WorkOrderID: wo.ID,
		Date:        dueDate(row),
		Status:      row.Get(normalizer.FieldStatus),
		Row:         values,
		Lifespan:    workorder.Lifespan{Start: now},
	}
	if tech, ok := run.Employees.ByExternalID(row.Get(normalizer.FieldTechID)); ok {
		next.AssignedTechID = &tech.ID
	}

	switch {
	case latest == nil:
		_, err = repo.Insert(ctx, next)
	case now.Before(latest.Lifespan.Start):
		return false, expected("snapshot older than latest appointment of %s", wo.ExternalID)
	case now.Equal(latest.Lifespan.Start):
		// A snapshot taken at the same instant replaces the previous one.
		next.ID = latest.ID
		next.Lifespan = latest.Lifespan
		err = repo.Rewrite(ctx, next)
	default:
		if err = repo.Close(ctx, latest.ID, now); err == nil {
			_, err = repo.Insert(ctx, next)
		}
	}
	if err != nil {
		return false, gerrors.Wrapf(mapPgError(err), "record appointment of %s", wo.ExternalID)
	}
	return true, nil
}

func dueDate(row normalizer.Row) *time.Time {
	d, ok := row.Date(normalizer.FieldDueDate)
	if !ok {
		return nil
	}
	return &d
}

// routelogChain is the set of groups a work order is visible to.
func routelogChain(run *Run, row normalizer.Row, sub *company.Company) []groupSpec {
	w2 := run.Import.Company.Name
	teamName := row.Get(normalizer.FieldTechSupervisor)
	if teamName == "" {
		teamName = row.Get(normalizer.FieldTechTeam)
	}
	techName := row.Get(normalizer.FieldTechName)
	if techName == "" {
		techName = row.Get(normalizer.FieldTechID)
	}

	specs := []groupSpec{
		{typ: workgroup.TypeCompany, externalID: w2, name: w2},
		{typ: workgroup.TypeDivision, externalID: row.Get(normalizer.FieldDivision), name: row.Get(normalizer.FieldDivision)},
		{typ: workgroup.TypeDMA, externalID: row.Get(normalizer.FieldDMA), name: row.Get(normalizer.FieldDMA)},
		{typ: workgroup.TypeOffice, externalID: row.Get(normalizer.FieldOffice), name: row.Get(normalizer.FieldOffice)},
		{typ: workgroup.TypeServiceRegion, externalID: row.Get(normalizer.FieldServiceRegion), name: row.Get(normalizer.FieldServiceRegion)},
		{typ: workgroup.TypeTeam, externalID: row.Get(normalizer.FieldTechTeam), name: teamName},
		{typ: workgroup.TypeTech, externalID: row.Get(normalizer.FieldTechID), name: techName},
	}
	if sub != nil {
		specs = append(specs, groupSpec{typ: workgroup.TypeCompany, externalID: sub.Name, name: sub.Name})
	}
	return specs
}
