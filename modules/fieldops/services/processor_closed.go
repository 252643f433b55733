package services

import (
	"context"
	"sort"
	"sync"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/company"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/employee"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/sdcr"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/workgroup"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/normalizer"
)

const (
	statusClosed        = "Closed"
	statusPendingClosed = "Pending Closed"
)

// Columns that describe the report's view of the hierarchy. They are replaced
// by the resolved technician and work groups before the row is stored.
var volatileClosedColumns = []string{
	"HSP Partner Name",
	normalizer.FieldDMA,
	normalizer.FieldOffice,
	normalizer.FieldServiceRegion,
	normalizer.FieldTechTeam,
	normalizer.FieldTechID,
	normalizer.FieldTechName,
	normalizer.FieldSubcontractor,
	"Company Name",
}

// ClosedProcessor derives same-day-closure data points from the closed
// snapshot report. Points of a run replace earlier points for the same
// activity and snapshot date.
type ClosedProcessor struct {
	mu     sync.Mutex
	points map[sdcr.Key]pendingPoint
}

type pendingPoint struct {
	line  int
	point sdcr.DataPoint
}

func NewClosedProcessor() *ClosedProcessor {
	return &ClosedProcessor{points: map[sdcr.Key]pendingPoint{}}
}

func (p *ClosedProcessor) Prepare(context.Context, *Run) error { return nil }

func (p *ClosedProcessor) ProcessRow(ctx context.Context, run *Run, row normalizer.Row) (RowOutcome, error) {
	activityID := row.Get(normalizer.FieldActivityID)
	if activityID == "" {
		return 0, expected("missing %s", normalizer.FieldActivityID)
	}
	snapshotDate, ok := row.Date(normalizer.FieldSnapshotDate)
	if !ok {
		return 0, expected("invalid %s %q", normalizer.FieldBGOSnapshotDate, row.Get(normalizer.FieldBGOSnapshotDate))
	}

	sub, err := run.FindCompany(ctx, row.Get(normalizer.FieldSubcontractor))
	if err != nil {
		return 0, err
	}

	tech, err := p.resolveTech(ctx, run, row, activityID)
	if err != nil {
		return 0, err
	}

	groups, err := p.workGroups(ctx, run, row, tech, sub)
	if err != nil {
		return 0, err
	}

	point := sdcr.DataPoint{
		ID:           uuid.New(),
		ExternalID:   activityID,
		Date:         snapshotDate,
		Value:        sameDayValue(row),
		Type:         row.Optional(normalizer.FieldSnapshotSubType),
		DwellingType: row.Optional(normalizer.FieldDwellingType),
		Row:          storedClosedRow(row, tech, groups),
		DataImportID: &run.Import.DataImportID,
	}
	if tech != nil {
		point.TechID = &tech.ID
	}
	for _, wg := range groups {
		point.WorkGroupIDs = append(point.WorkGroupIDs, wg.ID)
	}
	p.add(row.Line, point)

	if tech == nil {
		return OutcomeUnresolved, nil
	}
	return OutcomeApplied, nil
}

// Finish replaces the stored points of every (activity, date) pair the run saw.
func (p *ClosedProcessor) Finish(ctx context.Context, run *Run) error {
	points := p.collect()
	if len(points) == 0 {
		return nil
	}
	keys := make([]sdcr.Key, 0, len(points))
	for _, pt := range points {
		keys = append(keys, pt.Key())
	}

	repo := run.UoW.SdcrDataPoints()
	deleted, err := repo.DeleteByKeys(ctx, keys)
	if err != nil {
		return gerrors.Wrap(err, "delete replaced sdcr data points")
	}
	inserted, err := repo.CopyIn(ctx, points)
	if err != nil {
		return gerrors.Wrap(mapPgError(err), "copy sdcr data points")
	}
	logWithFields(ctx, logrus.InfoLevel, "fieldops.sdcr.replaced", logrus.Fields{
		"deleted":  deleted,
		"inserted": inserted,
	})
	return nil
}

// resolveTech reads the technician off closed rows and walks the appointment
// history for the others. A nil result means the row stays unattributed.
func (p *ClosedProcessor) resolveTech(ctx context.Context, run *Run, row normalizer.Row, activityID string) (*employee.Employee, error) {
	status := row.Get(normalizer.FieldStatus)
	if status == statusClosed || status == statusPendingClosed {
		techID := row.Get(normalizer.FieldTechID)
		tech, ok := run.Employees.ByExternalID(techID)
		if !ok {
			return nil, expected("unable to find tech with tech ID %q", techID)
		}
		return &tech, nil
	}

	snapshotDate, _ := row.Date(normalizer.FieldSnapshotDate)
	snapshot := StartOfDayIn(snapshotDate, run.Import.Location)
	techID, err := run.Resolver.ResolveTechAtSnapshot(ctx, run.Import.Company.ID, activityID, snapshot, run.Import.Location)
	if err != nil || techID == nil {
		return nil, err
	}
	if tech, ok := run.Employees.ByID(*techID); ok {
		return &tech, nil
	}
	tech, err := run.UoW.Employees().Get(ctx, *techID)
	if err != nil {
		return nil, gerrors.Wrapf(err, "load tech %s", *techID)
	}
	return tech, nil
}

// workGroups returns the technician's own non service-region groups plus the
// existing service-region groups of the row in the W2 and subcontractor scopes.
func (p *ClosedProcessor) workGroups(ctx context.Context, run *Run, row normalizer.Row, tech *employee.Employee, sub *company.Company) ([]workgroup.WorkGroup, error) {
	var out []workgroup.WorkGroup
	if tech != nil {
		own, err := run.UoW.WorkGroups().ListForEmployee(ctx, tech.ID, employee.RoleTech)
		if err != nil {
			return nil, gerrors.Wrapf(err, "work groups of tech %s", tech.ExternalID)
		}
		for _, wg := range own {
			if !wg.Type.IsServiceRegionType() {
				out = append(out, wg)
			}
		}
	}

	srCode := row.Get(normalizer.FieldServiceRegion)
	ref := run.ServiceRegions[srCode]
	externalIDs := map[workgroup.Type]string{
		workgroup.TypeServiceRegion: srCode,
		workgroup.TypeDMA:           ref.DMA,
		workgroup.TypeOffice:        ref.Office,
		workgroup.TypeDivision:      ref.Division,
	}
	seen := make(map[uuid.UUID]struct{}, len(out))
	for _, wg := range out {
		seen[wg.ID] = struct{}{}
	}
	for _, scopeCompany := range run.Scopes(sub) {
		for _, typ := range workgroup.ServiceRegionTypes {
			wg, err := run.WorkGroups.Lookup(ctx, workgroup.Key{CompanyID: scopeCompany.ID, Type: typ, ExternalID: externalIDs[typ]})
			if err != nil {
				return nil, err
			}
			if wg == nil {
				continue
			}
			if _, dup := seen[wg.ID]; !dup {
				seen[wg.ID] = struct{}{}
				out = append(out, *wg)
			}
		}
	}
	return out, nil
}

func (p *ClosedProcessor) add(line int, point sdcr.DataPoint) {
	key := point.Key()
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.points[key]; ok && prev.line > line {
		return
	}
	p.points[key] = pendingPoint{line: line, point: point}
}

func (p *ClosedProcessor) collect() []sdcr.DataPoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	pending := make([]pendingPoint, 0, len(p.points))
	for _, pp := range p.points {
		pending = append(pending, pp)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].line < pending[j].line })
	out := make([]sdcr.DataPoint, len(pending))
	for i, pp := range pending {
		out[i] = pp.point
	}
	return out
}

func sameDayValue(row normalizer.Row) int {
	if row.Get(normalizer.FieldSameDayClosedCount) == "1" {
		return 1
	}
	return 0
}

func storedClosedRow(row normalizer.Row, tech *employee.Employee, groups []workgroup.WorkGroup) map[string]string {
	values := row.Values()
	for _, col := range volatileClosedColumns {
		delete(values, col)
	}
	if tech != nil {
		values[normalizer.FieldTechID] = tech.ExternalID
	}
	for _, wg := range groups {
		values[string(wg.Type)] = wg.ExternalID
		if wg.Type == workgroup.TypeTeam {
			values[normalizer.FieldTeamName] = wg.Name
		}
	}
	return values
}
