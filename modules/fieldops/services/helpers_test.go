package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/company"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/normalizer"
)

var chicago = mustLocation("America/Chicago")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

type importFixture struct {
	db         *memDB
	company    company.Company
	dataSource company.DataSource
	now        time.Time
}

func newImportFixture(t *testing.T, companyName string) *importFixture {
	t.Helper()
	db := newMemDB()
	co, ds := db.seedCompany(companyName, DataSourceSiebel, "America/Chicago")
	return &importFixture{
		db:         db,
		company:    co,
		dataSource: ds,
		now:        time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
	}
}

func (f *importFixture) importContext(report string, format normalizer.Format) ImportContext {
	return ImportContext{
		Company:    f.company,
		DataSource: f.dataSource,
		ReportName: report,
		Format:     format,
		Location:   chicago,
		Now:        f.now,
	}
}

// run normalizes records as lines 2.. of a file and applies them with p.
func (f *importFixture) run(t *testing.T, report string, format normalizer.Format, p Processor, records ...map[string]string) *BatchReport {
	t.Helper()
	recs := make([]normalizer.Record, len(records))
	for i, values := range records {
		recs[i] = normalizer.Record{Line: i + 2, Values: values}
	}
	rows, err := normalizer.NormalizeAll(recs, format, normalizer.Options{W2CompanyName: f.company.Name})
	require.NoError(t, err)

	coordinator := NewCoordinator(f.db, fixedTimezone("America/Chicago"), 8)
	out, err := coordinator.Run(context.Background(), f.importContext(report, format), rows, p)
	require.NoError(t, err)
	return out
}
