package fieldops

import (
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/infrastructure/persistence"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/presentation/controllers"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/services"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/application"
)

func NewModule() application.Module {
	return &Module{}
}

type Module struct {
}

func (m *Module) Register(app application.Application) error {
	app.RegisterServices(
		services.NewDataImportService(persistence.NewDataImportRepository()),
	)
	app.RegisterControllers(
		controllers.NewHealthController(app),
		controllers.NewImportsController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "fieldops"
}
