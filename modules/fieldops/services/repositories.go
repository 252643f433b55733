package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/company"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/dataimport"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/employee"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/geography"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/sdcr"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/workgroup"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/workorder"
)

// Lookups that find nothing return a nil entity and a nil error.

type CompanyRepository interface {
	FindByName(ctx context.Context, name string) (*company.Company, error)
	Ensure(ctx context.Context, name string) (*company.Company, error)
	LinkDataSource(ctx context.Context, companyID, dataSourceID uuid.UUID) error
}

type DataSourceRepository interface {
	FindByName(ctx context.Context, companyID uuid.UUID, name string) (*company.DataSource, error)
	Ensure(ctx context.Context, ds company.DataSource) (*company.DataSource, error)
}

type WorkGroupRepository interface {
	FindByKey(ctx context.Context, key workgroup.Key) (*workgroup.WorkGroup, error)
	// Insert creates the group unless it exists and returns the stored row either way.
	Insert(ctx context.Context, wg workgroup.WorkGroup) (*workgroup.WorkGroup, error)
	ListByCompanies(ctx context.Context, companyIDs []uuid.UUID) ([]workgroup.WorkGroup, error)
	ListForEmployee(ctx context.Context, employeeID uuid.UUID, role employee.Role) ([]workgroup.WorkGroup, error)
	ReplaceEmployeeMemberships(ctx context.Context, employeeID uuid.UUID, role employee.Role, workGroupIDs []uuid.UUID) error
	AddEmployeeMembership(ctx context.Context, workGroupID, employeeID uuid.UUID, role employee.Role) error
	ReplaceWorkOrderLinks(ctx context.Context, workOrderID uuid.UUID, workGroupIDs []uuid.UUID) error
}

// EmployeeKey is the natural key of an employee.
type EmployeeKey struct {
	CompanyID  uuid.UUID
	ExternalID string
}

// EmployeeUpdate holds the mutable employee fields. Nil fields are left untouched.
type EmployeeUpdate struct {
	// Role overwrites the stored role. InsertRole only applies when the row is created.
	Role                *employee.Role
	InsertRole          employee.Role
	AlternateExternalID *string
	Name                *string
	PhoneNumber         *string
	Skills              *string
	Schedule            *string
	Timezone            *string
	StartLocationID     *uuid.UUID
	DataSourceID        *uuid.UUID
	Row                 map[string]string
	ClearTerminatedAt   bool
}

type EmployeeRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*employee.Employee, error)
	FindByExternalID(ctx context.Context, key EmployeeKey) (*employee.Employee, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]employee.Employee, error)
	// Update patches the employee matching key and returns nil when none does.
	Update(ctx context.Context, key EmployeeKey, upd EmployeeUpdate) (*employee.Employee, error)
	// Insert returns nil when a concurrent insert won the natural key.
	Insert(ctx context.Context, key EmployeeKey, upd EmployeeUpdate) (*employee.Employee, error)
	MarkTerminated(ctx context.Context, dataSourceID uuid.UUID, keepExternalIDs []string, at time.Time) (int64, error)
}

type GeographyRepository interface {
	FindMatching(ctx context.Context, g geography.Geography) (*geography.Geography, error)
	Insert(ctx context.Context, g geography.Geography) (*geography.Geography, error)
}

type WorkOrderRepository interface {
	FindByExternalID(ctx context.Context, companyID uuid.UUID, externalID string) (*workorder.WorkOrder, error)
	// Insert creates the work order unless it exists and returns the stored row either way.
	Insert(ctx context.Context, wo workorder.WorkOrder) (*workorder.WorkOrder, error)
}

type AppointmentRepository interface {
	Latest(ctx context.Context, workOrderID uuid.UUID) (*workorder.Appointment, error)
	Insert(ctx context.Context, a workorder.Appointment) (*workorder.Appointment, error)
	// Close sets the upper bound of the appointment's lifespan.
	Close(ctx context.Context, id uuid.UUID, at time.Time) error
	// Rewrite replaces the snapshot fields of an appointment in place.
	Rewrite(ctx context.Context, a workorder.Appointment) error
	// LatestOverlapping returns the appointment of the work order with the
	// greatest lifespan start among those overlapping [from, to).
	LatestOverlapping(ctx context.Context, companyID uuid.UUID, externalID string, from, to time.Time) (*workorder.Appointment, error)
}

type SdcrRepository interface {
	DeleteByKeys(ctx context.Context, keys []sdcr.Key) (int64, error)
	// CopyIn bulk loads the points and their work group links.
	CopyIn(ctx context.Context, points []sdcr.DataPoint) (int64, error)
}

// ServiceRegion is one row of the service-region reference mapping.
type ServiceRegion struct {
	ServiceRegion string `csv:"Service Region" json:"service_region"`
	Office        string `csv:"Office" json:"office"`
	DMA           string `csv:"DMA" json:"dma"`
	Division      string `csv:"Division" json:"division"`
	HSP           string `csv:"HSP" json:"hsp"`
}

type ServiceRegionRepository interface {
	ListForHSP(ctx context.Context, hsp string) ([]ServiceRegion, error)
	ReplaceForHSP(ctx context.Context, hsp string, rows []ServiceRegion) (int64, error)
}

type DataImportRepository interface {
	Create(ctx context.Context, di dataimport.DataImport) (*dataimport.DataImport, error)
	Save(ctx context.Context, di dataimport.DataImport) error
	Get(ctx context.Context, id uuid.UUID) (*dataimport.DataImport, error)
	List(ctx context.Context, filter DataImportFilter) ([]dataimport.DataImport, error)
	LastComplete(ctx context.Context, dataSourceID uuid.UUID, reportName string) (*dataimport.DataImport, error)
}

type DataImportFilter struct {
	DataSourceID *uuid.UUID
	Limit        int
}

// UnitOfWork exposes the repositories of one import transaction.
type UnitOfWork interface {
	Companies() CompanyRepository
	DataSources() DataSourceRepository
	WorkGroups() WorkGroupRepository
	Employees() EmployeeRepository
	Geographies() GeographyRepository
	WorkOrders() WorkOrderRepository
	Appointments() AppointmentRepository
	SdcrDataPoints() SdcrRepository
	ServiceRegions() ServiceRegionRepository
}

// UnitOfWorkRunner opens a transaction, runs fn and commits when fn returns nil.
type UnitOfWorkRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}
