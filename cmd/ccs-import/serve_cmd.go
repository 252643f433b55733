package main

import (
	"github.com/spf13/cobra"

	"github.com/jusegoram/react-apollo-ccs-desk/modules"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/application"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/eventbus"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/metrics"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/middleware"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics and import history over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			conf := rt.conf
			app := application.New(&application.ApplicationOptions{
				Pool:     rt.pool,
				EventBus: eventbus.NewEventPublisher(rt.logger),
				Logger:   rt.logger,
			})
			app.RegisterMiddleware(
				middleware.WithLogger(rt.logger, middleware.LoggerOptions{
					RealIPHeader:    conf.Ops.RealIPHeader,
					RequestIDHeader: conf.Ops.RequestIDHeader,
				}),
				middleware.OpsGuard(conf.Ops, "/health"),
				middleware.Provide(rt.pool),
			)
			if err := modules.Load(app, modules.BuiltInModules...); err != nil {
				return withCode(exitUsage, err)
			}
			if conf.Prometheus.Enabled {
				app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path, nil))
			}

			rt.logger.Infof("Listening on: %s", conf.SocketAddress)
			if err := server.NewHTTPServer(app, conf.Ops.CORSOrigins).Start(rt.ctx, conf.SocketAddress); err != nil {
				return withCode(exitUsage, err)
			}
			return nil
		},
	}
}
