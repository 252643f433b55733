package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/company"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/dataimport"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/normalizer"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/distributed"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/eventbus"
)

// FetchRequest names the report to download.
type FetchRequest struct {
	Company    company.Company
	DataSource company.DataSource
	ReportName string
}

// ReportFetcher produces the raw CSV bytes of a report.
type ReportFetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (io.ReadCloser, error)
}

// RecordReader splits raw CSV bytes into records.
type RecordReader interface {
	ReadRecords(ctx context.Context, r io.Reader) ([]normalizer.Record, error)
}

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*distributed.Lock, error)
}

type OrchestratorConfig struct {
	FetchTimeout    time.Duration
	DefaultTimezone string
	// LockTTL is only used when a Locker is configured.
	LockTTL time.Duration
}

type OrchestratorDeps struct {
	Companies   CompanyRepository
	DataSources DataSourceRepository
	Imports     DataImportRepository
	Fetcher     ReportFetcher
	Reader      RecordReader
	Coordinator *Coordinator
	Registry    *ProcessorRegistry
	Bus         eventbus.EventBus
	Locker      Locker
	Clock       func() time.Time
	Config      OrchestratorConfig
}

// Orchestrator drives one report import through
// Downloading -> Processing -> Complete, or Errored on failure.
type Orchestrator struct {
	deps OrchestratorDeps
}

func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Registry == nil {
		deps.Registry = DefaultProcessorRegistry()
	}
	if deps.Config.FetchTimeout <= 0 {
		deps.Config.FetchTimeout = 5 * time.Minute
	}
	if deps.Config.LockTTL <= 0 {
		deps.Config.LockTTL = 10 * time.Minute
	}
	if deps.Config.DefaultTimezone == "" {
		deps.Config.DefaultTimezone = "America/Chicago"
	}
	return &Orchestrator{deps: deps}
}

type ImportRequest struct {
	CompanyName    string
	DataSourceName string
	ReportName     string
	// SkipUnchanged completes the import without processing when the report
	// bytes match the last completed import of the same report.
	SkipUnchanged bool
}

type ImportResult struct {
	Import  dataimport.DataImport `json:"import"`
	Report  *BatchReport          `json:"report,omitempty"`
	Skipped bool                  `json:"skipped"`
}

// Import runs one report import. The DataImport record always ends Complete
// or Errored; on Errored the cause is returned.
func (o *Orchestrator) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	ctx, span := startSpan(ctx, "fieldops.import",
		attribute.String("company", req.CompanyName),
		attribute.String("data_source", req.DataSourceName),
		attribute.String("report", req.ReportName),
	)
	res, err := o.importReport(ctx, req)
	endSpan(span, err)
	return res, err
}

func (o *Orchestrator) importReport(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	w2, err := o.deps.Companies.FindByName(ctx, req.CompanyName)
	if err != nil {
		return nil, gerrors.Wrap(err, "find company")
	}
	if w2 == nil {
		return nil, gerrors.Wrapf(ErrDataSourceNotFound, "company %q", req.CompanyName)
	}
	ds, err := o.deps.DataSources.FindByName(ctx, w2.ID, req.DataSourceName)
	if err != nil {
		return nil, gerrors.Wrap(err, "find data source")
	}
	if ds == nil {
		return nil, gerrors.Wrapf(ErrDataSourceNotFound, "%s/%s", req.CompanyName, req.DataSourceName)
	}
	processor, format, err := o.deps.Registry.Lookup(ds.Name, req.ReportName)
	if err != nil {
		return nil, err
	}
	loc, err := ds.Location(o.deps.Config.DefaultTimezone)
	if err != nil {
		return nil, gerrors.Wrapf(err, "data source %s timezone", ds.Name)
	}

	if o.deps.Locker != nil {
		lock, err := o.deps.Locker.Acquire(ctx, fmt.Sprintf("fieldops:import:%s:%s", ds.ID, req.ReportName), o.deps.Config.LockTTL)
		if err != nil {
			if gerrors.Is(err, distributed.ErrLockHeld) {
				return nil, gerrors.Wrapf(ErrImportInProgress, "%s %q", ds.Name, req.ReportName)
			}
			return nil, gerrors.Wrap(err, "acquire import lock")
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				logWithFields(ctx, logrus.WarnLevel, "fieldops.import.lock_release_failed", logrus.Fields{"error": err.Error()})
			}
		}()
	}

	run := &importRun{o: o, started: time.Now(), company: *w2, dataSource: *ds}
	di, err := o.deps.Imports.Create(ctx, dataimport.DataImport{
		DataSourceID: ds.ID,
		ReportName:   req.ReportName,
		Status:       dataimport.StatusDownloading,
		CreatedAt:    o.deps.Clock(),
	})
	if err != nil {
		return nil, gerrors.Wrap(err, "create data import")
	}
	run.di = *di
	o.publish(run, "")

	result, err := run.execute(ctx, req, processor, format, loc)
	if err != nil {
		return nil, run.fail(ctx, err)
	}
	return result, nil
}

type importRun struct {
	o          *Orchestrator
	started    time.Time
	company    company.Company
	dataSource company.DataSource
	di         dataimport.DataImport
}

func (r *importRun) execute(ctx context.Context, req ImportRequest, processor Processor, format normalizer.Format, loc *time.Location) (*ImportResult, error) {
	o := r.o
	raw, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	checksum := hex.EncodeToString(sum[:])
	r.di.Checksum = &checksum

	if req.SkipUnchanged {
		last, err := o.deps.Imports.LastComplete(ctx, r.dataSource.ID, req.ReportName)
		if err != nil {
			return nil, gerrors.Wrap(err, "find last complete import")
		}
		if last != nil && last.Checksum != nil && *last.Checksum == checksum {
			if err := r.transition(ctx, dataimport.StatusComplete, func(d *dataimport.DataImport) {
				now := o.deps.Clock()
				d.DownloadedAt = &now
				d.CompletedAt = &now
			}); err != nil {
				return nil, err
			}
			return &ImportResult{Import: r.di, Skipped: true}, nil
		}
	}

	records, err := o.deps.Reader.ReadRecords(ctx, bytes.NewReader(raw))
	if err != nil {
		return nil, gerrors.Wrap(err, "read csv")
	}
	rows, err := normalizer.NormalizeAll(records, format, normalizer.Options{W2CompanyName: r.company.Name})
	if err != nil {
		return nil, err
	}

	if err := r.transition(ctx, dataimport.StatusProcessing, func(d *dataimport.DataImport) {
		now := o.deps.Clock()
		d.DownloadedAt = &now
	}); err != nil {
		return nil, err
	}

	ic := ImportContext{
		Company:      r.company,
		DataSource:   r.dataSource,
		ReportName:   req.ReportName,
		Format:       format,
		DataImportID: r.di.ID,
		Location:     loc,
		Now:          o.deps.Clock(),
	}
	logWithFields(ctx, logrus.InfoLevel, "fieldops.import.processing", importFields(ic))
	report, err := o.deps.Coordinator.Run(ctx, ic, rows, processor)
	if err != nil {
		return nil, err
	}

	if err := r.transition(ctx, dataimport.StatusComplete, func(d *dataimport.DataImport) {
		now := o.deps.Clock()
		d.CompletedAt = &now
		d.RowsProcessed = report.RowsProcessed
		d.RowsRejected = report.RowsRejected
	}); err != nil {
		return nil, err
	}
	return &ImportResult{Import: r.di, Report: report}, nil
}

func (r *importRun) fetch(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.o.deps.Config.FetchTimeout)
	defer cancel()
	ctx, span := startSpan(ctx, "fieldops.import.fetch")

	raw, err := func() ([]byte, error) {
		body, err := r.o.deps.Fetcher.Fetch(ctx, FetchRequest{Company: r.company, DataSource: r.dataSource, ReportName: r.di.ReportName})
		if err != nil {
			return nil, err
		}
		defer body.Close()
		return io.ReadAll(body)
	}()
	if err == nil {
		err = ctx.Err()
	}
	endSpan(span, err)
	if err != nil {
		return nil, gerrors.Wrap(err, "fetch report")
	}
	return raw, nil
}

func (r *importRun) transition(ctx context.Context, to dataimport.Status, mutate func(*dataimport.DataImport)) error {
	next := r.di
	if err := next.Transition(to); err != nil {
		return err
	}
	if mutate != nil {
		mutate(&next)
	}
	if err := r.o.deps.Imports.Save(ctx, next); err != nil {
		return gerrors.Wrapf(err, "save data import as %s", to)
	}
	prev := r.di.Status
	r.di = next
	r.o.publish(r, prev)
	if to.Terminal() {
		observeImport(r.di.ReportName, string(to), r.started)
	}
	return nil
}

// fail records the error on the import and returns the original cause.
func (r *importRun) fail(ctx context.Context, cause error) error {
	msg := cause.Error()
	saveCtx := context.WithoutCancel(ctx)
	if err := r.transition(saveCtx, dataimport.StatusErrored, func(d *dataimport.DataImport) {
		d.Error = &msg
	}); err != nil {
		logWithFields(ctx, logrus.ErrorLevel, "fieldops.import.mark_errored_failed", logrus.Fields{
			"data_import_id": r.di.ID.String(),
			"error":          err.Error(),
			"cause":          msg,
		})
	}
	return cause
}

func (o *Orchestrator) publish(r *importRun, prev dataimport.Status) {
	if o.deps.Bus == nil {
		return
	}
	o.deps.Bus.Publish(&ImportStatusChanged{
		Import:         r.di,
		Previous:       prev,
		CompanyName:    r.company.Name,
		DataSourceName: r.dataSource.Name,
	})
}
