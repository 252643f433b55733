package services

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/company"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/dataimport"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/employee"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/geography"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/sdcr"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/workgroup"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/workorder"
)

// memDB is an in-memory UnitOfWork that mimics the constraints of the schema.
type memDB struct {
	mu sync.Mutex

	companies   map[uuid.UUID]company.Company
	dsLinks     map[[2]uuid.UUID]struct{}
	dataSources map[uuid.UUID]company.DataSource
	groups      map[uuid.UUID]workgroup.WorkGroup
	memberships map[membership]struct{}
	woLinks     map[uuid.UUID][]uuid.UUID
	employees   map[uuid.UUID]employee.Employee
	geographies map[uuid.UUID]geography.Geography
	workOrders  map[uuid.UUID]workorder.WorkOrder
	appts       map[uuid.UUID]workorder.Appointment
	points      map[uuid.UUID]sdcr.DataPoint
	regions     []ServiceRegion
	imports     map[uuid.UUID]dataimport.DataImport

	groupInserts     int
	groupFinds       int
	companyFinds     int
	geographyInserts int
	overlapQueries   int
	importSaves      []dataimport.Status
	// raceEmployee makes the next employee insert lose to a concurrent writer.
	raceEmployee *employee.Employee
}

type membership struct {
	workGroupID uuid.UUID
	employeeID  uuid.UUID
	role        employee.Role
}

func newMemDB() *memDB {
	return &memDB{
		companies:   map[uuid.UUID]company.Company{},
		dsLinks:     map[[2]uuid.UUID]struct{}{},
		dataSources: map[uuid.UUID]company.DataSource{},
		groups:      map[uuid.UUID]workgroup.WorkGroup{},
		memberships: map[membership]struct{}{},
		woLinks:     map[uuid.UUID][]uuid.UUID{},
		employees:   map[uuid.UUID]employee.Employee{},
		geographies: map[uuid.UUID]geography.Geography{},
		workOrders:  map[uuid.UUID]workorder.WorkOrder{},
		appts:       map[uuid.UUID]workorder.Appointment{},
		points:      map[uuid.UUID]sdcr.DataPoint{},
		imports:     map[uuid.UUID]dataimport.DataImport{},
	}
}

// InTx restores the tables to their state before fn when fn fails.
func (db *memDB) InTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	saved := db.snapshot()
	if err := fn(ctx, db); err != nil {
		db.restore(saved)
		return err
	}
	return nil
}

type memTables struct {
	companies   map[uuid.UUID]company.Company
	dsLinks     map[[2]uuid.UUID]struct{}
	dataSources map[uuid.UUID]company.DataSource
	groups      map[uuid.UUID]workgroup.WorkGroup
	memberships map[membership]struct{}
	woLinks     map[uuid.UUID][]uuid.UUID
	employees   map[uuid.UUID]employee.Employee
	geographies map[uuid.UUID]geography.Geography
	workOrders  map[uuid.UUID]workorder.WorkOrder
	appts       map[uuid.UUID]workorder.Appointment
	points      map[uuid.UUID]sdcr.DataPoint
	regions     []ServiceRegion
	imports     map[uuid.UUID]dataimport.DataImport
}

func (db *memDB) snapshot() memTables {
	db.mu.Lock()
	defer db.mu.Unlock()
	links := maps.Clone(db.woLinks)
	for id, ids := range links {
		links[id] = slices.Clone(ids)
	}
	return memTables{
		companies:   maps.Clone(db.companies),
		dsLinks:     maps.Clone(db.dsLinks),
		dataSources: maps.Clone(db.dataSources),
		groups:      maps.Clone(db.groups),
		memberships: maps.Clone(db.memberships),
		woLinks:     links,
		employees:   maps.Clone(db.employees),
		geographies: maps.Clone(db.geographies),
		workOrders:  maps.Clone(db.workOrders),
		appts:       maps.Clone(db.appts),
		points:      maps.Clone(db.points),
		regions:     slices.Clone(db.regions),
		imports:     maps.Clone(db.imports),
	}
}

func (db *memDB) restore(t memTables) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.companies = t.companies
	db.dsLinks = t.dsLinks
	db.dataSources = t.dataSources
	db.groups = t.groups
	db.memberships = t.memberships
	db.woLinks = t.woLinks
	db.employees = t.employees
	db.geographies = t.geographies
	db.workOrders = t.workOrders
	db.appts = t.appts
	db.points = t.points
	db.regions = t.regions
	db.imports = t.imports
}

func (db *memDB) Companies() CompanyRepository { return memCompanies{db} }
func (db *memDB) DataSources() DataSourceRepository { return memDataSources{db} }
func (db *memDB) WorkGroups() WorkGroupRepository { return memWorkGroups{db} }
func (db *memDB) Employees() EmployeeRepository { return memEmployees{db} }
func (db *memDB) Geographies() GeographyRepository { return memGeographies{db} }
func (db *memDB) WorkOrders() WorkOrderRepository { return memWorkOrders{db} }
func (db *memDB) Appointments() AppointmentRepository { return memAppointments{db} }
func (db *memDB) SdcrDataPoints() SdcrRepository { return memSdcr{db} }
func (db *memDB) ServiceRegions() ServiceRegionRepository { return memRegions{db} }
func (db *memDB) DataImports() DataImportRepository { return memImports{db} }

// seedCompany creates a W2 company with one data source.
func (db *memDB) seedCompany(name, dataSource, timezone string) (company.Company, company.DataSource) {
	co, _ := memCompanies{db}.Ensure(context.Background(), name)
	ds, _ := memDataSources{db}.Ensure(context.Background(), company.DataSource{
		CompanyID: co.ID,
		Name:      dataSource,
		Timezone:  timezone,
	})
	return *co, *ds
}

func (db *memDB) employeeByExternalID(externalID string) (employee.Employee, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, e := range db.employees {
		if e.ExternalID == externalID {
			return e, true
		}
	}
	return employee.Employee{}, false
}

func (db *memDB) groupsOf(companyID uuid.UUID, typ workgroup.Type) []workgroup.WorkGroup {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []workgroup.WorkGroup
	for _, wg := range db.groups {
		if wg.CompanyID == companyID && wg.Type == typ {
			out = append(out, wg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out
}

func (db *memDB) appointmentsOf(workOrderID uuid.UUID) []workorder.Appointment {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []workorder.Appointment
	for _, a := range db.appts {
		if a.WorkOrderID == workOrderID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lifespan.Start.Before(out[j].Lifespan.Start) })
	return out
}

func (db *memDB) allPoints() []sdcr.DataPoint {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]sdcr.DataPoint, 0, len(db.points))
	for _, p := range db.points {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out
}

type memCompanies struct{ db *memDB }

func (r memCompanies) FindByName(_ context.Context, name string) (*company.Company, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.companyFinds++
	for _, c := range r.db.companies {
		if c.Name == name {
			return &c, nil
		}
	}
	return nil, nil
}

func (r memCompanies) Ensure(ctx context.Context, name string) (*company.Company, error) {
	if c, _ := r.FindByName(ctx, name); c != nil {
		return c, nil
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := company.Company{ID: uuid.New(), Name: name}
	r.db.companies[c.ID] = c
	return &c, nil
}

func (r memCompanies) LinkDataSource(_ context.Context, companyID, dataSourceID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.dsLinks[[2]uuid.UUID{companyID, dataSourceID}] = struct{}{}
	return nil
}

type memDataSources struct{ db *memDB }

func (r memDataSources) FindByName(_ context.Context, companyID uuid.UUID, name string) (*company.DataSource, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, ds := range r.db.dataSources {
		if ds.CompanyID == companyID && ds.Name == name {
			return &ds, nil
		}
	}
	return nil, nil
}

func (r memDataSources) Ensure(ctx context.Context, ds company.DataSource) (*company.DataSource, error) {
	if found, _ := r.FindByName(ctx, ds.CompanyID, ds.Name); found != nil {
		return found, nil
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	ds.ID = uuid.New()
	r.db.dataSources[ds.ID] = ds
	r.db.dsLinks[[2]uuid.UUID{ds.CompanyID, ds.ID}] = struct{}{}
	return &ds, nil
}

type memWorkGroups struct{ db *memDB }

func (r memWorkGroups) findLocked(key workgroup.Key) *workgroup.WorkGroup {
	for _, wg := range r.db.groups {
		if wg.Key() == key {
			return &wg
		}
	}
	return nil
}

func (r memWorkGroups) FindByKey(_ context.Context, key workgroup.Key) (*workgroup.WorkGroup, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.groupFinds++
	return r.findLocked(key), nil
}

func (r memWorkGroups) Insert(_ context.Context, wg workgroup.WorkGroup) (*workgroup.WorkGroup, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if existing := r.findLocked(wg.Key()); existing != nil {
		return existing, nil
	}
	r.db.groupInserts++
	wg.ID = uuid.New()
	r.db.groups[wg.ID] = wg
	return &wg, nil
}

func (r memWorkGroups) ListByCompanies(_ context.Context, companyIDs []uuid.UUID) ([]workgroup.WorkGroup, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []workgroup.WorkGroup
	for _, wg := range r.db.groups {
		if slices.Contains(companyIDs, wg.CompanyID) {
			out = append(out, wg)
		}
	}
	return out, nil
}

func (r memWorkGroups) ListForEmployee(_ context.Context, employeeID uuid.UUID, role employee.Role) ([]workgroup.WorkGroup, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []workgroup.WorkGroup
	for m := range r.db.memberships {
		if m.employeeID == employeeID && m.role == role {
			out = append(out, r.db.groups[m.workGroupID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (r memWorkGroups) ReplaceEmployeeMemberships(_ context.Context, employeeID uuid.UUID, role employee.Role, ids []uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for m := range r.db.memberships {
		if m.employeeID == employeeID && m.role == role {
			delete(r.db.memberships, m)
		}
	}
	for _, id := range ids {
		r.db.memberships[membership{workGroupID: id, employeeID: employeeID, role: role}] = struct{}{}
	}
	return nil
}

func (r memWorkGroups) AddEmployeeMembership(_ context.Context, workGroupID, employeeID uuid.UUID, role employee.Role) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.memberships[membership{workGroupID: workGroupID, employeeID: employeeID, role: role}] = struct{}{}
	return nil
}

func (r memWorkGroups) ReplaceWorkOrderLinks(_ context.Context, workOrderID uuid.UUID, ids []uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.woLinks[workOrderID] = slices.Clone(ids)
	return nil
}

type memEmployees struct{ db *memDB }

func (r memEmployees) findLocked(key EmployeeKey) *employee.Employee {
	for _, e := range r.db.employees {
		if e.CompanyID == key.CompanyID && e.ExternalID == key.ExternalID {
			return &e
		}
	}
	return nil
}

func (r memEmployees) Get(_ context.Context, id uuid.UUID) (*employee.Employee, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r memEmployees) FindByExternalID(_ context.Context, key EmployeeKey) (*employee.Employee, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.findLocked(key), nil
}

func (r memEmployees) ListByCompany(_ context.Context, companyID uuid.UUID) ([]employee.Employee, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []employee.Employee
	for _, e := range r.db.employees {
		if e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	return out, nil
}

func patchEmployee(e *employee.Employee, upd EmployeeUpdate) {
	if upd.Role != nil {
		e.Role = *upd.Role
	}
	set := func(dst **string, src *string) {
		if src != nil {
			*dst = src
		}
	}
	set(&e.AlternateExternalID, upd.AlternateExternalID)
	set(&e.Name, upd.Name)
	set(&e.PhoneNumber, upd.PhoneNumber)
	set(&e.Skills, upd.Skills)
	set(&e.Schedule, upd.Schedule)
	set(&e.Timezone, upd.Timezone)
	if upd.StartLocationID != nil {
		e.StartLocationID = upd.StartLocationID
	}
	if upd.DataSourceID != nil {
		e.DataSourceID = upd.DataSourceID
	}
	if upd.Row != nil {
		e.Row = upd.Row
	}
	if upd.ClearTerminatedAt {
		e.TerminatedAt = nil
	}
}

func (r memEmployees) Update(_ context.Context, key EmployeeKey, upd EmployeeUpdate) (*employee.Employee, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e := r.findLocked(key)
	if e == nil {
		return nil, nil
	}
	patchEmployee(e, upd)
	r.db.employees[e.ID] = *e
	return e, nil
}

func (r memEmployees) Insert(_ context.Context, key EmployeeKey, upd EmployeeUpdate) (*employee.Employee, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if racer := r.db.raceEmployee; racer != nil {
		r.db.raceEmployee = nil
		r.db.employees[racer.ID] = *racer
	}
	if r.findLocked(key) != nil {
		return nil, nil
	}
	e := employee.Employee{ID: uuid.New(), CompanyID: key.CompanyID, ExternalID: key.ExternalID, Role: upd.InsertRole}
	patchEmployee(&e, upd)
	r.db.employees[e.ID] = e
	return &e, nil
}

func (r memEmployees) MarkTerminated(_ context.Context, dataSourceID uuid.UUID, keep []string, at time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, e := range r.db.employees {
		if e.DataSourceID == nil || *e.DataSourceID != dataSourceID || e.TerminatedAt != nil {
			continue
		}
		if slices.Contains(keep, e.ExternalID) {
			continue
		}
		e.TerminatedAt = &at
		r.db.employees[id] = e
		n++
	}
	return n, nil
}

type memGeographies struct{ db *memDB }

func (r memGeographies) FindMatching(_ context.Context, g geography.Geography) (*geography.Geography, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.geographies {
		if existing.SameLocation(g) {
			return &existing, nil
		}
	}
	return nil, nil
}

func (r memGeographies) Insert(_ context.Context, g geography.Geography) (*geography.Geography, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.geographyInserts++
	g.ID = uuid.New()
	r.db.geographies[g.ID] = g
	return &g, nil
}

type memWorkOrders struct{ db *memDB }

func (r memWorkOrders) findLocked(companyID uuid.UUID, externalID string) *workorder.WorkOrder {
	for _, wo := range r.db.workOrders {
		if wo.CompanyID == companyID && wo.ExternalID == externalID {
			return &wo
		}
	}
	return nil
}

func (r memWorkOrders) FindByExternalID(_ context.Context, companyID uuid.UUID, externalID string) (*workorder.WorkOrder, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.findLocked(companyID, externalID), nil
}

func (r memWorkOrders) Insert(_ context.Context, wo workorder.WorkOrder) (*workorder.WorkOrder, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if existing := r.findLocked(wo.CompanyID, wo.ExternalID); existing != nil {
		return existing, nil
	}
	wo.ID = uuid.New()
	r.db.workOrders[wo.ID] = wo
	return &wo, nil
}

type memAppointments struct{ db *memDB }

func (r memAppointments) Latest(_ context.Context, workOrderID uuid.UUID) (*workorder.Appointment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var latest *workorder.Appointment
	for _, a := range r.db.appts {
		if a.WorkOrderID != workOrderID {
			continue
		}
		if latest == nil || a.Lifespan.Start.After(latest.Lifespan.Start) {
			latest = &a
		}
	}
	return latest, nil
}

func (r memAppointments) Insert(_ context.Context, a workorder.Appointment) (*workorder.Appointment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, other := range r.db.appts {
		if other.WorkOrderID != a.WorkOrderID {
			continue
		}
		end := time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
		if a.Lifespan.End != nil {
			end = *a.Lifespan.End
		}
		if other.Lifespan.Overlaps(a.Lifespan.Start, end) {
			return nil, &pgconn.PgError{Code: "23P01", ConstraintName: "Appointment_lifespan_no_overlap"}
		}
	}
	a.ID = uuid.New()
	r.db.appts[a.ID] = a
	return &a, nil
}

func (r memAppointments) Close(_ context.Context, id uuid.UUID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a := r.db.appts[id]
	a.Lifespan.End = &at
	r.db.appts[id] = a
	return nil
}

func (r memAppointments) Rewrite(_ context.Context, a workorder.Appointment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.appts[a.ID] = a
	return nil
}

func (r memAppointments) LatestOverlapping(_ context.Context, companyID uuid.UUID, externalID string, from, to time.Time) (*workorder.Appointment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.overlapQueries++
	wo := memWorkOrders{r.db}.findLocked(companyID, externalID)
	if wo == nil {
		return nil, nil
	}
	var latest *workorder.Appointment
	for _, a := range r.db.appts {
		if a.WorkOrderID != wo.ID || !a.Lifespan.Overlaps(from, to) {
			continue
		}
		if latest == nil || a.Lifespan.Start.After(latest.Lifespan.Start) {
			latest = &a
		}
	}
	return latest, nil
}

type memSdcr struct{ db *memDB }

func (r memSdcr) DeleteByKeys(_ context.Context, keys []sdcr.Key) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, p := range r.db.points {
		if slices.Contains(keys, p.Key()) {
			delete(r.db.points, id)
			n++
		}
	}
	return n, nil
}

func (r memSdcr) CopyIn(_ context.Context, points []sdcr.DataPoint) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range points {
		for _, existing := range r.db.points {
			if existing.Key() == p.Key() {
				return 0, &pgconn.PgError{Code: "23505"}
			}
		}
		r.db.points[p.ID] = p
	}
	return int64(len(points)), nil
}

type memRegions struct{ db *memDB }

func (r memRegions) ListForHSP(_ context.Context, hsp string) ([]ServiceRegion, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []ServiceRegion
	for _, sr := range r.db.regions {
		if sr.HSP == hsp {
			out = append(out, sr)
		}
	}
	return out, nil
}

func (r memRegions) ReplaceForHSP(_ context.Context, hsp string, rows []ServiceRegion) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	kept := r.db.regions[:0]
	for _, sr := range r.db.regions {
		if sr.HSP != hsp {
			kept = append(kept, sr)
		}
	}
	for _, sr := range rows {
		sr.HSP = hsp
		kept = append(kept, sr)
	}
	r.db.regions = kept
	return int64(len(rows)), nil
}

type memImports struct{ db *memDB }

func (r memImports) Create(_ context.Context, di dataimport.DataImport) (*dataimport.DataImport, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	di.ID = uuid.New()
	r.db.imports[di.ID] = di
	r.db.importSaves = append(r.db.importSaves, di.Status)
	return &di, nil
}

func (r memImports) Save(_ context.Context, di dataimport.DataImport) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.imports[di.ID] = di
	r.db.importSaves = append(r.db.importSaves, di.Status)
	return nil
}

func (r memImports) Get(_ context.Context, id uuid.UUID) (*dataimport.DataImport, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	di, ok := r.db.imports[id]
	if !ok {
		return nil, nil
	}
	return &di, nil
}

func (r memImports) List(_ context.Context, filter DataImportFilter) ([]dataimport.DataImport, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []dataimport.DataImport
	for _, di := range r.db.imports {
		if filter.DataSourceID == nil || di.DataSourceID == *filter.DataSourceID {
			out = append(out, di)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r memImports) LastComplete(_ context.Context, dataSourceID uuid.UUID, reportName string) (*dataimport.DataImport, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var last *dataimport.DataImport
	for _, di := range r.db.imports {
		if di.DataSourceID != dataSourceID || di.ReportName != reportName || di.Status != dataimport.StatusComplete {
			continue
		}
		if last == nil || di.CreatedAt.After(last.CreatedAt) {
			last = &di
		}
	}
	return last, nil
}

type fixedTimezone string

func (z fixedTimezone) TimezoneAt(float64, float64) (string, bool) {
	return string(z), z != ""
}
