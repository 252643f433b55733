package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/infrastructure/persistence"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/infrastructure/sources"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/services"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/composables"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/configuration"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/distributed"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/eventbus"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/logging"
)

// cliRuntime holds the process-wide resources a command needs. ctx carries the
// pool and the logger.
type cliRuntime struct {
	conf   *configuration.Configuration
	logger *logrus.Logger
	pool   *pgxpool.Pool
	ctx    context.Context

	closers []func()
}

func openRuntime(ctx context.Context) (*cliRuntime, error) {
	conf := configuration.Use()
	logger := conf.Logger()
	rt := &cliRuntime{conf: conf, logger: logger}

	if conf.OpenTelemetry.Enabled {
		rt.closers = append(rt.closers, logging.SetupTracing(ctx, conf.OpenTelemetry.ServiceName, conf.OpenTelemetry.TempoURL, logger))
	}

	pool, err := openPool(ctx, conf)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.pool = pool
	rt.closers = append(rt.closers, pool.Close)

	ctx = composables.WithPool(ctx, pool)
	rt.ctx = composables.WithLogger(ctx, logrus.NewEntry(logger))
	return rt, nil
}

func openPool(ctx context.Context, conf *configuration.Configuration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(conf.Database.Opts)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("database config: %w", err))
	}
	cfg.MaxConns = conf.Database.MaxConns

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, withCode(exitDB, fmt.Errorf("connect database: %w", err))
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, withCode(exitDB, fmt.Errorf("ping database: %w", err))
	}
	return pool, nil
}

// Close releases resources in reverse acquisition order.
func (rt *cliRuntime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

type orchestratorOptions struct {
	fetcher     services.ReportFetcher
	catalog     *sources.Catalog
	concurrency int
}

// newOrchestrator wires the import pipeline onto the runtime's pool. Status
// events are logged and counted for the lifetime of the runtime.
func (rt *cliRuntime) newOrchestrator(opts orchestratorOptions) (*services.Orchestrator, error) {
	importConf := rt.conf.Import
	bus := eventbus.NewEventPublisher(rt.logger)
	rt.closers = append(rt.closers, services.SubscribeImportEvents(rt.ctx, bus))

	fetcher := opts.fetcher
	if fetcher == nil {
		fetcher = sources.NewFileFetcher(importConf.ReportsDir, opts.catalog)
	}
	concurrency := opts.concurrency
	if concurrency <= 0 {
		concurrency = importConf.Concurrency
	}

	deps := services.OrchestratorDeps{
		Companies:   persistence.NewCompanyRepository(),
		DataSources: persistence.NewDataSourceRepository(),
		Imports:     persistence.NewDataImportRepository(),
		Fetcher:     fetcher,
		Reader:      sources.NewCSVReader(),
		Coordinator: services.NewCoordinator(persistence.NewUnitOfWorkRunner(), sources.NewTimezoneFinder(), concurrency),
		Bus:         bus,
		Config: services.OrchestratorConfig{
			FetchTimeout:    importConf.FetchTimeout,
			DefaultTimezone: importConf.DefaultTimezone,
			LockTTL:         importConf.LockTTL,
		},
	}
	if importConf.LockEnabled {
		client, err := distributed.NewRedisClient(rt.conf.RedisURL)
		if err != nil {
			return nil, withCode(exitUsage, err)
		}
		rt.closers = append(rt.closers, func() {
			if err := client.Close(); err != nil {
				rt.logger.WithError(err).Warn("close redis client")
			}
		})
		deps.Locker = distributed.NewLocker(client, rt.logger)
	}
	return services.NewOrchestrator(deps), nil
}

// loadCatalog returns nil without error when the default catalog is absent.
func loadCatalog(path string, required bool) (*sources.Catalog, error) {
	c, err := sources.LoadCatalog(path)
	if err != nil {
		if !required && errors.Is(err, sources.ErrCatalogNotFound) {
			return nil, nil
		}
		return nil, withCode(exitValidation, err)
	}
	if err := c.Validate(services.DefaultProcessorRegistry()); err != nil {
		return nil, withCode(exitValidation, err)
	}
	return c, nil
}
