package sources

import (
	"context"
	"io"
	"os"
	"path/filepath"

	gerrors "github.com/go-faster/errors"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/services"
)

var ErrReportNotFound = gerrors.New("report file not found")

// FileFetcher reads reports dropped under Dir/<company>/<data source>/. The
// file name comes from the catalog when it lists the report, otherwise it is
// "<report>.csv".
type FileFetcher struct {
	Dir     string
	Catalog *Catalog
}

func NewFileFetcher(dir string, catalog *Catalog) *FileFetcher {
	return &FileFetcher{Dir: dir, Catalog: catalog}
}

func (f *FileFetcher) Path(req services.FetchRequest) string {
	name := req.ReportName + ".csv"
	if f.Catalog != nil {
		if file, ok := f.Catalog.ReportFile(req.Company.Name, req.DataSource.Name, req.ReportName); ok {
			name = file
		}
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(f.Dir, req.Company.Name, req.DataSource.Name, name)
}

func (f *FileFetcher) Fetch(ctx context.Context, req services.FetchRequest) (io.ReadCloser, error) {
	return openReport(ctx, f.Path(req))
}

// PathFetcher serves every request from one file.
type PathFetcher string

func (p PathFetcher) Fetch(ctx context.Context, _ services.FetchRequest) (io.ReadCloser, error) {
	return openReport(ctx, string(p))
}

func openReport(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, gerrors.Wrapf(ErrReportNotFound, "%s", path)
		}
		return nil, gerrors.Wrapf(err, "open %s", path)
	}
	return file, nil
}
