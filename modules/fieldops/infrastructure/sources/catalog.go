package sources

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	gerrors "github.com/go-faster/errors"
	"gopkg.in/yaml.v3"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/company"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/services"
)

var ErrCatalogNotFound = gerrors.New("source catalog not found")

// Catalog lists the W2 companies, their data sources and the report files
// each data source publishes.
type Catalog struct {
	Version   int              `yaml:"version"`
	Companies []CatalogCompany `yaml:"companies"`
}

type CatalogCompany struct {
	Name        string              `yaml:"name"`
	DataSources []CatalogDataSource `yaml:"dataSources"`
}

type CatalogDataSource struct {
	Name     string `yaml:"name"`
	Service  string `yaml:"service"`
	Timezone string `yaml:"timezone"`
	// Reports maps a report name to its file, relative to the data source directory.
	Reports map[string]string `yaml:"reports"`
}

func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, path)
		}
		return nil, err
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, gerrors.Wrap(err, "decode catalog")
	}
	if c.Version != 1 {
		return nil, fmt.Errorf("unsupported catalog version: %d", c.Version)
	}
	return &c, nil
}

// Validate checks that names are unique and that every listed report has a
// processor in registry.
func (c *Catalog) Validate(registry *services.ProcessorRegistry) error {
	companies := make(map[string]struct{}, len(c.Companies))
	for _, co := range c.Companies {
		name := strings.TrimSpace(co.Name)
		if name == "" {
			return gerrors.New("catalog company without a name")
		}
		if _, dup := companies[name]; dup {
			return fmt.Errorf("duplicate catalog company %q", name)
		}
		companies[name] = struct{}{}

		seen := make(map[string]struct{}, len(co.DataSources))
		for _, ds := range co.DataSources {
			if _, dup := seen[ds.Name]; dup {
				return fmt.Errorf("duplicate data source %q for %s", ds.Name, name)
			}
			seen[ds.Name] = struct{}{}
			for report := range ds.Reports {
				if _, _, err := registry.Lookup(ds.Name, report); err != nil {
					return fmt.Errorf("%s/%s: %w", name, ds.Name, err)
				}
			}
		}
	}
	return nil
}

func (c *Catalog) find(companyName, dataSourceName string) (*CatalogDataSource, bool) {
	for i := range c.Companies {
		if c.Companies[i].Name != companyName {
			continue
		}
		for j := range c.Companies[i].DataSources {
			if c.Companies[i].DataSources[j].Name == dataSourceName {
				return &c.Companies[i].DataSources[j], true
			}
		}
	}
	return nil, false
}

// ReportFile returns the configured file of a report, if any.
func (c *Catalog) ReportFile(companyName, dataSourceName, reportName string) (string, bool) {
	ds, ok := c.find(companyName, dataSourceName)
	if !ok {
		return "", false
	}
	file, ok := ds.Reports[reportName]
	return file, ok && file != ""
}

type SyncResult struct {
	Companies   int `json:"companies"`
	DataSources int `json:"data_sources"`
}

// Sync ensures every catalog company and data source exists. Data sources
// without a timezone get defaultTimezone.
func Sync(ctx context.Context, uow services.UnitOfWork, c *Catalog, defaultTimezone string) (SyncResult, error) {
	var res SyncResult
	for _, co := range c.Companies {
		stored, err := uow.Companies().Ensure(ctx, strings.TrimSpace(co.Name))
		if err != nil {
			return res, gerrors.Wrapf(err, "ensure company %s", co.Name)
		}
		res.Companies++

		for _, ds := range co.DataSources {
			tz := strings.TrimSpace(ds.Timezone)
			if tz == "" {
				tz = defaultTimezone
			}
			_, err := uow.DataSources().Ensure(ctx, company.DataSource{
				CompanyID: stored.ID,
				Name:      ds.Name,
				Service:   ds.Service,
				Timezone:  tz,
			})
			if err != nil {
				return res, gerrors.Wrapf(err, "ensure data source %s/%s", co.Name, ds.Name)
			}
			res.DataSources++
		}
	}
	return res, nil
}

// Reports lists every (company, data source, report) triple of the catalog in
// a stable order.
func (c *Catalog) Reports() []services.ImportRequest {
	var out []services.ImportRequest
	for _, co := range c.Companies {
		for _, ds := range co.DataSources {
			names := make([]string, 0, len(ds.Reports))
			for r := range ds.Reports {
				names = append(names, r)
			}
			sort.Strings(names)
			for _, r := range names {
				out = append(out, services.ImportRequest{CompanyName: co.Name, DataSourceName: ds.Name, ReportName: r})
			}
		}
	}
	return out
}
