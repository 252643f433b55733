package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jusegoram/react-apollo-ccs-desk/pkg/constants"
)

func loggerFromContext(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return nil
	}
	switch typed := ctx.Value(constants.LoggerKey).(type) {
	case *logrus.Entry:
		return typed
	case *logrus.Logger:
		return logrus.NewEntry(typed)
	default:
		return nil
	}
}

func logWithFields(ctx context.Context, level logrus.Level, msg string, fields logrus.Fields) {
	logger := loggerFromContext(ctx)
	if logger == nil {
		return
	}
	logger.WithFields(fields).Log(level, msg)
}

func importFields(ic ImportContext) logrus.Fields {
	return logrus.Fields{
		"company":        ic.Company.Name,
		"data_source":    ic.DataSource.Name,
		"report":         ic.ReportName,
		"data_import_id": ic.DataImportID.String(),
	}
}
