package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/dataimport"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/eventbus"
)

// ImportStatusChanged is published after every persisted DataImport transition.
type ImportStatusChanged struct {
	Import         dataimport.DataImport
	Previous       dataimport.Status
	CompanyName    string
	DataSourceName string
}

// SubscribeImportEvents logs and counts import transitions. The returned func
// removes the subscription.
func SubscribeImportEvents(ctx context.Context, bus eventbus.EventBus) func() {
	return bus.Subscribe(func(e *ImportStatusChanged) {
		importsTotal.WithLabelValues(e.Import.ReportName, string(e.Import.Status)).Inc()

		level := logrus.InfoLevel
		fields := logrus.Fields{
			"data_import_id": e.Import.ID.String(),
			"company":        e.CompanyName,
			"data_source":    e.DataSourceName,
			"report":         e.Import.ReportName,
			"from":           string(e.Previous),
			"to":             string(e.Import.Status),
		}
		if e.Import.Status == dataimport.StatusErrored {
			level = logrus.ErrorLevel
			if e.Import.Error != nil {
				fields["error"] = *e.Import.Error
			}
		}
		if e.Import.Status == dataimport.StatusComplete {
			fields["rows_processed"] = e.Import.RowsProcessed
			fields["rows_rejected"] = e.Import.RowsRejected
		}
		logWithFields(ctx, level, "fieldops.import.status_changed", fields)
	})
}
