package composables

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jusegoram/react-apollo-ccs-desk/pkg/constants"
)

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger never returns nil; a context without a logger gets the standard logger.
func UseLogger(ctx context.Context) *logrus.Entry {
	switch typed := ctx.Value(constants.LoggerKey).(type) {
	case *logrus.Entry:
		return typed
	case *logrus.Logger:
		return logrus.NewEntry(typed)
	default:
		return logrus.NewEntry(logrus.StandardLogger())
	}
}
