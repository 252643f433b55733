package modules

import (
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/application"
)

var BuiltInModules = []application.Module{
	fieldops.NewModule(),
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
