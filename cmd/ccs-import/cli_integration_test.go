package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/infrastructure/persistence"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/infrastructure/sources"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/services"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/itf"
)

const cliCatalog = `
version: 1
companies:
  - name: Goodman
    dataSources:
      - name: Siebel
        timezone: America/Chicago
        reports:
          Tech Profile: techProfile.csv
`

const cliRoster = "Tech User ID,Tech Full Name,Tech Type,Team ID,Tech Team Supervisor Login,Service Region\n" +
	"T1,ALICE ADAMS,W2,TEAM-1,S1,TX01\n" +
	",NOBODY,W2,,,TX01\n"

const cliRegions = "Service Region,Office,DMA,Division,HSP\nTX01,NORTH,HOUSTON,SOUTH,Goodman\n"

func TestCLI_SyncLoadImport(t *testing.T) {
	env := itf.Setup(t)
	dir := t.TempDir()
	runner := persistence.NewUnitOfWorkRunner()

	catalog, err := sources.ParseCatalog([]byte(cliCatalog))
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, runSourcesSync(env.Ctx, runner, catalog, "America/Chicago", &out))
	require.JSONEq(t, `{"companies":1,"data_sources":1}`, out.String())

	srPath := filepath.Join(dir, "sr.csv")
	require.NoError(t, os.WriteFile(srPath, []byte(cliRegions), 0o600))
	out.Reset()
	require.NoError(t, runSrDataLoad(env.Ctx, runner, srDataOptions{file: srPath, hsp: "Goodman"}, &out))
	require.JSONEq(t, `{"hsp":"Goodman","rows":1}`, out.String())

	rosterPath := filepath.Join(dir, "roster.csv")
	require.NoError(t, os.WriteFile(rosterPath, []byte(cliRoster), 0o600))
	orch := services.NewOrchestrator(services.OrchestratorDeps{
		Companies:   persistence.NewCompanyRepository(),
		DataSources: persistence.NewDataSourceRepository(),
		Imports:     persistence.NewDataImportRepository(),
		Fetcher:     sources.PathFetcher(rosterPath),
		Reader:      sources.NewCSVReader(),
		Coordinator: services.NewCoordinator(runner, nil, 4),
	})

	out.Reset()
	reqs := []services.ImportRequest{{CompanyName: "Goodman", DataSourceName: "Siebel", ReportName: services.ReportTechProfile}}
	require.NoError(t, runImports(env.Ctx, orch, reqs, importOptions{}, &out))
	got := decodeLines(t, out.String())
	require.Len(t, got, 1)
	require.Equal(t, "Complete", got[0].Status)
	require.Equal(t, 1, got[0].RowsProcessed)
	require.Equal(t, 1, got[0].RowsRejected)

	var office string
	require.NoError(t, env.Pool.QueryRow(env.Ctx, `SELECT "externalId" FROM "WorkGroup" WHERE "type" = 'Office'`).Scan(&office))
	require.Equal(t, "NORTH", office)

	out.Reset()
	reqs[0].ReportName = "Nope"
	err = runImports(env.Ctx, orch, reqs, importOptions{}, &out)
	require.Equal(t, exitValidation, exitCode(err))
}
