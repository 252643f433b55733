package services

import (
	"context"
	"sort"
	"sync"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/company"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/employee"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/workgroup"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/normalizer"
)

const DefaultConcurrency = 200

// ImportContext describes one import run.
type ImportContext struct {
	// Company is the W2 company owning the data source.
	Company      company.Company
	DataSource   company.DataSource
	ReportName   string
	Format       normalizer.Format
	DataImportID uuid.UUID
	// Location is the data source's zone used for day buckets.
	Location *time.Location
	Now      time.Time
}

type RowOutcome int

const (
	OutcomeApplied RowOutcome = iota
	OutcomeUnchanged
	OutcomeUnresolved
)

func (o RowOutcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeUnresolved:
		return "unresolved"
	default:
		return "applied"
	}
}

// Processor holds the row logic of one report. A processor value serves a
// single run; ProcessRow is called concurrently.
type Processor interface {
	Prepare(ctx context.Context, run *Run) error
	ProcessRow(ctx context.Context, run *Run, row normalizer.Row) (RowOutcome, error)
	Finish(ctx context.Context, run *Run) error
}

type RejectedRow struct {
	Line   int               `json:"line"`
	Reason string            `json:"reason"`
	Values map[string]string `json:"values"`
}

type BatchReport struct {
	RowsProcessed  int           `json:"rows_processed"`
	RowsRejected   int           `json:"rows_rejected"`
	RowsUnchanged  int           `json:"rows_unchanged"`
	RowsUnresolved int           `json:"rows_unresolved"`
	Rejected       []RejectedRow `json:"rejected,omitempty"`
}

// Run is the state shared by the row tasks of one import transaction.
type Run struct {
	Import     ImportContext
	UoW        UnitOfWork
	WorkGroups *WorkGroupStore
	Upserts    *UpsertEngine
	Resolver   *TemporalResolver
	Employees  *EmployeeIndex
	// ServiceRegions maps a service region code to its reference row. It is
	// read-only once the run starts.
	ServiceRegions map[string]ServiceRegion

	companies keyedStore[string, company.Company]
}

// Scopes returns the W2 company followed by the subcontractor, if any.
func (r *Run) Scopes(sub *company.Company) []company.Company {
	scopes := []company.Company{r.Import.Company}
	if sub != nil && sub.ID != r.Import.Company.ID {
		scopes = append(scopes, *sub)
	}
	return scopes
}

// EnsureSubcontractor returns the named subcontractor company, creating it and
// linking it to the run's data source on first sight.
func (r *Run) EnsureSubcontractor(ctx context.Context, name string) (*company.Company, error) {
	if name == "" || name == r.Import.Company.Name {
		return nil, nil
	}
	co, _, err := r.companies.getOrCreate(ctx, name, func(ctx context.Context) (*company.Company, error) {
		c, err := r.UoW.Companies().Ensure(ctx, name)
		if err != nil {
			return nil, err
		}
		if err := r.UoW.Companies().LinkDataSource(ctx, c.ID, r.Import.DataSource.ID); err != nil {
			return nil, err
		}
		return c, nil
	})
	if err != nil {
		return nil, gerrors.Wrapf(err, "ensure subcontractor %q", name)
	}
	return co, nil
}

// FindCompany resolves an existing company by name without creating it. An
// unknown name is asked for once per run.
func (r *Run) FindCompany(ctx context.Context, name string) (*company.Company, error) {
	if name == "" {
		return nil, nil
	}
	if name == r.Import.Company.Name {
		c := r.Import.Company
		return &c, nil
	}
	co, _, err := r.companies.find(ctx, name, func(ctx context.Context) (*company.Company, error) {
		return r.UoW.Companies().FindByName(ctx, name)
	})
	if err != nil {
		return nil, gerrors.Wrapf(err, "find company %q", name)
	}
	return co, nil
}

// WithServiceRegion fills Office, DMA and Division from the reference data
// when the row lacks them.
func (r *Run) WithServiceRegion(row normalizer.Row) normalizer.Row {
	sr, ok := r.ServiceRegions[row.Get(normalizer.FieldServiceRegion)]
	if !ok {
		return row
	}
	if !row.Has(normalizer.FieldOffice) {
		row = row.With(normalizer.FieldOffice, sr.Office)
	}
	if !row.Has(normalizer.FieldDMA) {
		row = row.With(normalizer.FieldDMA, sr.DMA)
	}
	if !row.Has(normalizer.FieldDivision) {
		row = row.With(normalizer.FieldDivision, sr.Division)
	}
	return row
}

type groupSpec struct {
	typ        workgroup.Type
	externalID string
	name       string
}

// ensureGroups resolves the specs in companyID, skipping specs without an id or name.
func (r *Run) ensureGroups(ctx context.Context, companyID uuid.UUID, specs []groupSpec) ([]workgroup.WorkGroup, error) {
	out := make([]workgroup.WorkGroup, 0, len(specs))
	for _, s := range specs {
		wg, err := r.WorkGroups.GetOrCreate(ctx, workgroup.Key{CompanyID: companyID, Type: s.typ, ExternalID: s.externalID}, s.name)
		if err != nil {
			return nil, err
		}
		if wg != nil {
			out = append(out, *wg)
		}
	}
	return out, nil
}

// EmployeeIndex is the run's view of the W2 company's employees.
type EmployeeIndex struct {
	mu         sync.RWMutex
	byExternal map[string]employee.Employee
	byID       map[uuid.UUID]employee.Employee
}

func NewEmployeeIndex(employees []employee.Employee) *EmployeeIndex {
	idx := &EmployeeIndex{
		byExternal: make(map[string]employee.Employee, len(employees)),
		byID:       make(map[uuid.UUID]employee.Employee, len(employees)),
	}
	for _, e := range employees {
		idx.byExternal[e.ExternalID] = e
		idx.byID[e.ID] = e
	}
	return idx
}

func (x *EmployeeIndex) Put(e employee.Employee) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.byExternal[e.ExternalID] = e
	x.byID[e.ID] = e
}

func (x *EmployeeIndex) ByExternalID(externalID string) (employee.Employee, bool) {
	if externalID == "" {
		return employee.Employee{}, false
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.byExternal[externalID]
	return e, ok
}

func (x *EmployeeIndex) ByID(id uuid.UUID) (employee.Employee, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.byID[id]
	return e, ok
}

func (x *EmployeeIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byExternal)
}

// Coordinator runs a processor over the rows of one import inside a single
// transaction.
type Coordinator struct {
	runner      UnitOfWorkRunner
	timezones   TimezoneLocator
	concurrency int
}

func NewCoordinator(runner UnitOfWorkRunner, timezones TimezoneLocator, concurrency int) *Coordinator {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Coordinator{runner: runner, timezones: timezones, concurrency: concurrency}
}

// Run applies rows with bounded concurrency. Rows failing with an
// ExpectedError are reported as rejected; any other error rolls back the
// whole run.
func (c *Coordinator) Run(ctx context.Context, ic ImportContext, rows []normalizer.Row, p Processor) (*BatchReport, error) {
	ctx, span := startSpan(ctx, "fieldops.batch.run",
		attribute.String("report", ic.ReportName),
		attribute.Int("rows", len(rows)),
	)
	if ic.Location == nil {
		ic.Location = time.UTC
	}

	var report *BatchReport
	err := c.runner.InTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		report = &BatchReport{}
		run, err := c.preload(ctx, ic, uow)
		if err != nil {
			return err
		}
		if err := p.Prepare(ctx, run); err != nil {
			return gerrors.Wrap(err, "prepare processor")
		}
		if err := c.fanOut(ctx, run, rows, p, report); err != nil {
			return err
		}
		if err := p.Finish(ctx, run); err != nil {
			return gerrors.Wrap(err, "finish processor")
		}
		return nil
	})
	endSpan(span, err)
	if err != nil {
		return nil, err
	}

	sort.Slice(report.Rejected, func(i, j int) bool { return report.Rejected[i].Line < report.Rejected[j].Line })
	logWithFields(ctx, logrus.InfoLevel, "fieldops.batch.completed", logrus.Fields{
		"report":          ic.ReportName,
		"rows_processed":  report.RowsProcessed,
		"rows_rejected":   report.RowsRejected,
		"rows_unchanged":  report.RowsUnchanged,
		"rows_unresolved": report.RowsUnresolved,
	})
	return report, nil
}

func (c *Coordinator) preload(ctx context.Context, ic ImportContext, uow UnitOfWork) (*Run, error) {
	ctx, span := startSpan(ctx, "fieldops.batch.preload")
	run, err := func() (*Run, error) {
		srRows, err := uow.ServiceRegions().ListForHSP(ctx, ic.Company.Name)
		if err != nil {
			return nil, gerrors.Wrap(err, "preload service regions")
		}
		regions := make(map[string]ServiceRegion, len(srRows))
		for _, sr := range srRows {
			regions[sr.ServiceRegion] = sr
		}

		employees, err := uow.Employees().ListByCompany(ctx, ic.Company.ID)
		if err != nil {
			return nil, gerrors.Wrap(err, "preload employees")
		}

		groups, err := uow.WorkGroups().ListByCompanies(ctx, []uuid.UUID{ic.Company.ID})
		if err != nil {
			return nil, gerrors.Wrap(err, "preload work groups")
		}
		store := NewWorkGroupStore(uow.WorkGroups())
		store.Prime(groups)

		run := &Run{
			Import:         ic,
			UoW:            uow,
			WorkGroups:     store,
			Upserts:        NewUpsertEngine(uow.Employees(), uow.Geographies(), c.timezones),
			Resolver:       NewTemporalResolver(uow.Appointments()),
			Employees:      NewEmployeeIndex(employees),
			ServiceRegions: regions,
		}
		run.companies.put(ic.Company.Name, &run.Import.Company)
		return run, nil
	}()
	endSpan(span, err)
	return run, err
}

func (c *Coordinator) fanOut(ctx context.Context, run *Run, rows []normalizer.Row, p Processor, report *BatchReport) error {
	ctx, span := startSpan(ctx, "fieldops.batch.rows")
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, row := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome, err := p.ProcessRow(gctx, run, row)
			if err != nil {
				ee, ok := AsExpected(err)
				if !ok {
					return gerrors.Wrapf(err, "line %d", row.Line)
				}
				mu.Lock()
				report.RowsRejected++
				report.Rejected = append(report.Rejected, RejectedRow{Line: row.Line, Reason: ee.Reason, Values: row.Raw})
				mu.Unlock()
				recordRow(run.Import.ReportName, "rejected")
				logWithFields(ctx, logrus.DebugLevel, "fieldops.batch.row_rejected", logrus.Fields{
					"line":   row.Line,
					"reason": ee.Reason,
				})
				return nil
			}

			mu.Lock()
			report.RowsProcessed++
			switch outcome {
			case OutcomeUnchanged:
				report.RowsUnchanged++
			case OutcomeUnresolved:
				report.RowsUnresolved++
			}
			mu.Unlock()
			recordRow(run.Import.ReportName, outcome.String())
			return nil
		})
	}
	err := g.Wait()
	endSpan(span, err)
	return err
}
