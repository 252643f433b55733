package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/dataimport"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/normalizer"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/distributed"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/eventbus"
)

type stubFetcher struct {
	body  []byte
	err   error
	calls int
}

func (s *stubFetcher) Fetch(context.Context, FetchRequest) (io.ReadCloser, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(bytes.NewReader(s.body)), nil
}

type csvReader struct{}

func (csvReader) ReadRecords(_ context.Context, r io.Reader) ([]normalizer.Record, error) {
	all, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]normalizer.Record, 0, len(all))
	for i, rec := range all[1:] {
		values := make(map[string]string, len(rec))
		for j, h := range all[0] {
			values[h] = rec[j]
		}
		out = append(out, normalizer.Record{Line: i + 2, Values: values})
	}
	return out, nil
}

type blockingFetcher struct{}

func (blockingFetcher) Fetch(ctx context.Context, _ FetchRequest) (io.ReadCloser, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// brokenTechProfile applies rows like the roster processor but loses the
// database on one technician.
type brokenTechProfile struct {
	*TechProfileProcessor
	failOn string
}

func (p brokenTechProfile) ProcessRow(ctx context.Context, run *Run, row normalizer.Row) (RowOutcome, error) {
	outcome, err := p.TechProfileProcessor.ProcessRow(ctx, run, row)
	if err == nil && row.Get(normalizer.FieldTechID) == p.failOn {
		return 0, errors.New("db connection lost")
	}
	return outcome, err
}

type heldLocker struct{}

func (heldLocker) Acquire(context.Context, string, time.Duration) (*distributed.Lock, error) {
	return nil, distributed.ErrLockHeld
}

func rosterCSV(rows ...map[string]string) []byte {
	headers := map[string]struct{}{}
	for _, r := range rows {
		for h := range r {
			headers[h] = struct{}{}
		}
	}
	cols := make([]string, 0, len(headers))
	for h := range headers {
		cols = append(cols, h)
	}
	sort.Strings(cols)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(cols)
	for _, r := range rows {
		rec := make([]string, len(cols))
		for i, c := range cols {
			rec[i] = r[c]
		}
		_ = w.Write(rec)
	}
	w.Flush()
	return buf.Bytes()
}

type orchestratorFixture struct {
	*importFixture
	fetcher *stubFetcher
	mu      sync.Mutex
	events  []ImportStatusChanged
	orch    *Orchestrator
}

func newOrchestratorFixture(t *testing.T, locker Locker, opts ...func(*OrchestratorDeps)) *orchestratorFixture {
	t.Helper()
	f := &orchestratorFixture{
		importFixture: newImportFixture(t, "Acme"),
		fetcher:       &stubFetcher{body: rosterCSV(acmeRoster()...)},
	}
	bus := eventbus.NewEventPublisher(logrus.New())
	t.Cleanup(bus.Subscribe(func(e *ImportStatusChanged) {
		f.mu.Lock()
		f.events = append(f.events, *e)
		f.mu.Unlock()
	}))
	deps := OrchestratorDeps{
		Companies:   f.db.Companies(),
		DataSources: f.db.DataSources(),
		Imports:     f.db.DataImports(),
		Fetcher:     f.fetcher,
		Reader:      csvReader{},
		Coordinator: NewCoordinator(f.db, fixedTimezone("America/Chicago"), 4),
		Bus:         bus,
		Locker:      locker,
		Clock:       func() time.Time { return f.now },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.orch = NewOrchestrator(deps)
	return f
}

func (f *orchestratorFixture) statuses() []dataimport.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]dataimport.Status, len(f.events))
	for i, e := range f.events {
		out[i] = e.Import.Status
	}
	return out
}

func techProfileRequest() ImportRequest {
	return ImportRequest{CompanyName: "Acme", DataSourceName: DataSourceSiebel, ReportName: ReportTechProfile}
}

func TestOrchestrator_ImportCompletes(t *testing.T) {
	f := newOrchestratorFixture(t, distributed.NewLocker(nil, nil))

	res, err := f.orch.Import(t.Context(), techProfileRequest())
	require.NoError(t, err)
	require.False(t, res.Skipped)
	require.Equal(t, dataimport.StatusComplete, res.Import.Status)
	require.Equal(t, 2, res.Import.RowsProcessed)
	require.Equal(t, 1, res.Import.RowsRejected)
	require.NotNil(t, res.Import.Checksum)
	require.NotNil(t, res.Import.DownloadedAt)
	require.NotNil(t, res.Import.CompletedAt)
	require.Len(t, res.Report.Rejected, 1)

	require.Equal(t, []dataimport.Status{
		dataimport.StatusDownloading,
		dataimport.StatusProcessing,
		dataimport.StatusComplete,
	}, f.db.importSaves)
	require.Equal(t, f.db.importSaves, f.statuses())

	stored, err := f.db.DataImports().Get(t.Context(), res.Import.ID)
	require.NoError(t, err)
	require.Equal(t, res.Import, *stored)
	require.Len(t, f.db.employees, 3)
}

func TestOrchestrator_FetchFailureMarksErrored(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	f.fetcher.err = errors.New("connection reset")

	_, err := f.orch.Import(t.Context(), techProfileRequest())
	require.ErrorContains(t, err, "connection reset")
	require.Equal(t, []dataimport.Status{dataimport.StatusDownloading, dataimport.StatusErrored}, f.db.importSaves)

	imports, err := f.db.DataImports().List(t.Context(), DataImportFilter{})
	require.NoError(t, err)
	require.Len(t, imports, 1)
	require.Equal(t, dataimport.StatusErrored, imports[0].Status)
	require.Contains(t, *imports[0].Error, "connection reset")
	require.Empty(t, f.db.employees)
}

func TestOrchestrator_SkipsUnchangedReport(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	_, err := f.orch.Import(t.Context(), techProfileRequest())
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	req := techProfileRequest()
	req.SkipUnchanged = true
	res, err := f.orch.Import(t.Context(), req)
	require.NoError(t, err)
	require.True(t, res.Skipped)
	require.Nil(t, res.Report)
	require.Equal(t, dataimport.StatusComplete, res.Import.Status)
	require.Equal(t, []dataimport.Status{
		dataimport.StatusDownloading, dataimport.StatusProcessing, dataimport.StatusComplete,
		dataimport.StatusDownloading, dataimport.StatusComplete,
	}, f.db.importSaves)

	f.fetcher.body = rosterCSV(acmeRoster()[0])
	f.now = f.now.Add(time.Hour)
	res, err = f.orch.Import(t.Context(), req)
	require.NoError(t, err)
	require.False(t, res.Skipped)
	require.Equal(t, 1, res.Import.RowsProcessed)
}

func TestOrchestrator_UnknownDataSource(t *testing.T) {
	f := newOrchestratorFixture(t, nil)

	_, err := f.orch.Import(t.Context(), ImportRequest{CompanyName: "Nobody", DataSourceName: DataSourceSiebel, ReportName: ReportTechProfile})
	require.ErrorIs(t, err, ErrDataSourceNotFound)

	_, err = f.orch.Import(t.Context(), ImportRequest{CompanyName: "Acme", DataSourceName: "Nope", ReportName: ReportTechProfile})
	require.ErrorIs(t, err, ErrDataSourceNotFound)
	require.Empty(t, f.db.imports)
	require.Zero(t, f.fetcher.calls)
}

func TestOrchestrator_UnknownReport(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	_, err := f.orch.Import(t.Context(), ImportRequest{CompanyName: "Acme", DataSourceName: DataSourceSiebel, ReportName: "Weekly"})
	require.ErrorIs(t, err, ErrNoProcessor)
	require.Empty(t, f.db.imports)
}

func TestOrchestrator_LockHeld(t *testing.T) {
	f := newOrchestratorFixture(t, heldLocker{})
	_, err := f.orch.Import(t.Context(), techProfileRequest())
	require.ErrorIs(t, err, ErrImportInProgress)
	require.Empty(t, f.db.imports)
	require.Zero(t, f.fetcher.calls)
}

func TestOrchestrator_FatalRowErrorRollsBack(t *testing.T) {
	registry := NewProcessorRegistry()
	registry.Register(DataSourceSiebel, ReportTechProfile, normalizer.FormatTechProfile, func() Processor {
		return brokenTechProfile{TechProfileProcessor: NewTechProfileProcessor(), failOn: "T3"}
	})
	f := newOrchestratorFixture(t, nil, func(d *OrchestratorDeps) {
		d.Registry = registry
	})

	_, err := f.orch.Import(t.Context(), techProfileRequest())
	require.ErrorContains(t, err, "db connection lost")
	require.Equal(t, []dataimport.Status{
		dataimport.StatusDownloading, dataimport.StatusProcessing, dataimport.StatusErrored,
	}, f.db.importSaves)
	require.Equal(t, []dataimport.Status{
		dataimport.StatusDownloading, dataimport.StatusProcessing, dataimport.StatusErrored,
	}, f.statuses())

	require.Empty(t, f.db.employees)
	require.Empty(t, f.db.groups)
	require.Empty(t, f.db.memberships)

	imports, err := f.db.DataImports().List(t.Context(), DataImportFilter{})
	require.NoError(t, err)
	require.Len(t, imports, 1)
	require.Equal(t, dataimport.StatusErrored, imports[0].Status)
	require.Contains(t, *imports[0].Error, "db connection lost")
}

func TestOrchestrator_FetchTimeout(t *testing.T) {
	f := newOrchestratorFixture(t, nil, func(d *OrchestratorDeps) {
		d.Fetcher = blockingFetcher{}
		d.Config.FetchTimeout = 20 * time.Millisecond
	})

	start := time.Now()
	_, err := f.orch.Import(t.Context(), techProfileRequest())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, []dataimport.Status{dataimport.StatusDownloading, dataimport.StatusErrored}, f.db.importSaves)
	require.Empty(t, f.db.employees)
}
