package services

import (
	"context"
	"sync"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/company"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/employee"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/workgroup"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/normalizer"
)

// TechProfileProcessor reconciles the full technician roster of a data source.
// Employees it does not see are terminated when the run finishes.
type TechProfileProcessor struct {
	mu   sync.Mutex
	seen map[string]struct{}
	// serializes membership replacement per employee
	techLocks keyedMutex[uuid.UUID]
}

func NewTechProfileProcessor() *TechProfileProcessor {
	return &TechProfileProcessor{seen: map[string]struct{}{}}
}

func (p *TechProfileProcessor) Prepare(context.Context, *Run) error { return nil }

func (p *TechProfileProcessor) ProcessRow(ctx context.Context, run *Run, row normalizer.Row) (RowOutcome, error) {
	if !row.Has(normalizer.FieldTechID) {
		return 0, expected("missing %s", normalizer.FieldTechUserID)
	}
	row = run.WithServiceRegion(row)
	scope := EmployeeScope{CompanyID: run.Import.Company.ID, DataSourceID: run.Import.DataSource.ID}

	tech, err := run.Upserts.UpsertTech(ctx, scope, row)
	if err != nil {
		return 0, err
	}
	run.Employees.Put(*tech)
	p.markSeen(tech.ExternalID)

	sub, err := run.EnsureSubcontractor(ctx, row.Get(normalizer.FieldSubcontractor))
	if err != nil {
		return 0, err
	}

	var (
		memberships []uuid.UUID
		teams       []workgroup.WorkGroup
	)
	for _, scopeCompany := range run.Scopes(sub) {
		groups, err := run.ensureGroups(ctx, scopeCompany.ID, techProfileChain(run, row, *tech, sub))
		if err != nil {
			return 0, err
		}
		for _, wg := range groups {
			memberships = append(memberships, wg.ID)
			if wg.Type == workgroup.TypeTeam {
				teams = append(teams, wg)
			}
		}
	}

	unlock := p.techLocks.lock(tech.ID)
	err = run.UoW.WorkGroups().ReplaceEmployeeMemberships(ctx, tech.ID, employee.RoleTech, memberships)
	unlock()
	if err != nil {
		return 0, gerrors.Wrapf(err, "replace memberships of %s", tech.ExternalID)
	}

	supervisor, err := run.Upserts.UpsertSupervisor(ctx, scope, row)
	if err != nil {
		return 0, err
	}
	if supervisor != nil {
		run.Employees.Put(*supervisor)
		p.markSeen(supervisor.ExternalID)
		for _, team := range teams {
			if err := run.UoW.WorkGroups().AddEmployeeMembership(ctx, team.ID, supervisor.ID, employee.RoleManager); err != nil {
				return 0, gerrors.Wrapf(err, "relate manager %s", supervisor.ExternalID)
			}
		}
	}
	return OutcomeApplied, nil
}

func (p *TechProfileProcessor) Finish(ctx context.Context, run *Run) error {
	p.mu.Lock()
	keep := make([]string, 0, len(p.seen))
	for id := range p.seen {
		keep = append(keep, id)
	}
	p.mu.Unlock()

	_, err := run.Upserts.MarkTerminated(ctx, run.Import.DataSource.ID, keep, run.Import.Now)
	return err
}

func (p *TechProfileProcessor) markSeen(externalID string) {
	p.mu.Lock()
	p.seen[externalID] = struct{}{}
	p.mu.Unlock()
}

// techProfileChain is the hierarchy a roster row places its technician in.
// Region columns missing from the row were filled from the reference data.
func techProfileChain(run *Run, row normalizer.Row, tech employee.Employee, sub *company.Company) []groupSpec {
	w2 := run.Import.Company.Name
	sr := row.Get(normalizer.FieldServiceRegion)
	division := row.Get(normalizer.FieldDivision)
	dma := row.Get(normalizer.FieldDMA)
	office := row.Get(normalizer.FieldOffice)

	teamName := row.Get(normalizer.FieldTechSupervisor)
	if teamName == "" {
		teamName = row.Get(normalizer.FieldTeamID)
	}

	specs := []groupSpec{
		{typ: workgroup.TypeCompany, externalID: w2, name: w2},
		{typ: workgroup.TypeDivision, externalID: division, name: division},
		{typ: workgroup.TypeDMA, externalID: dma, name: dma},
		{typ: workgroup.TypeOffice, externalID: office, name: office},
		{typ: workgroup.TypeServiceRegion, externalID: sr, name: sr},
		{typ: workgroup.TypeTeam, externalID: row.Get(normalizer.FieldTeamID), name: teamName},
		{typ: workgroup.TypeTech, externalID: tech.ExternalID, name: tech.DisplayName()},
	}
	if sub != nil {
		specs = append(specs, groupSpec{typ: workgroup.TypeCompany, externalID: sub.Name, name: sub.Name})
	}
	return specs
}
