package persistence

import (
	"context"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/services"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/composables"
)

type unitOfWork struct {
	companies      *CompanyRepository
	dataSources    *DataSourceRepository
	workGroups     *WorkGroupRepository
	employees      *EmployeeRepository
	geographies    *GeographyRepository
	workOrders     *WorkOrderRepository
	appointments   *AppointmentRepository
	sdcr           *SdcrRepository
	serviceRegions *ServiceRegionRepository
}

func (u *unitOfWork) Companies() services.CompanyRepository { return u.companies }
func (u *unitOfWork) DataSources() services.DataSourceRepository { return u.dataSources }
func (u *unitOfWork) WorkGroups() services.WorkGroupRepository { return u.workGroups }
func (u *unitOfWork) Employees() services.EmployeeRepository { return u.employees }
func (u *unitOfWork) Geographies() services.GeographyRepository { return u.geographies }
func (u *unitOfWork) WorkOrders() services.WorkOrderRepository { return u.workOrders }
func (u *unitOfWork) Appointments() services.AppointmentRepository { return u.appointments }
func (u *unitOfWork) SdcrDataPoints() services.SdcrRepository { return u.sdcr }
func (u *unitOfWork) ServiceRegions() services.ServiceRegionRepository { return u.serviceRegions }

// UnitOfWorkRunner runs import work in one database transaction taken from
// the pool bound to ctx.
type UnitOfWorkRunner struct {
	uow *unitOfWork
}

func NewUnitOfWorkRunner() *UnitOfWorkRunner {
	return &UnitOfWorkRunner{uow: &unitOfWork{
		companies:      NewCompanyRepository(),
		dataSources:    NewDataSourceRepository(),
		workGroups:     NewWorkGroupRepository(),
		employees:      NewEmployeeRepository(),
		geographies:    NewGeographyRepository(),
		workOrders:     NewWorkOrderRepository(),
		appointments:   NewAppointmentRepository(),
		sdcr:           NewSdcrRepository(),
		serviceRegions: NewServiceRegionRepository(),
	}}
}

// InTx commits when fn returns nil and rolls back otherwise. fn may use ctx
// from many goroutines.
func (r *UnitOfWorkRunner) InTx(ctx context.Context, fn func(ctx context.Context, uow services.UnitOfWork) error) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		tx, err := composables.UsePgxTx(txCtx)
		if err != nil {
			return err
		}
		return fn(composables.WithTx(txCtx, newSerializedTx(tx)), r.uow)
	})
}
