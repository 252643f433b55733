package services

import (
	"sort"

	gerrors "github.com/go-faster/errors"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/normalizer"
)

const (
	DataSourceSiebel = "Siebel"
	DataSourceEdge   = "Edge"

	ReportTechProfile = "Tech Profile"
	ReportRoutelog    = "Routelog"
	ReportSclosed     = "Sclosed"
	ReportMWRoutelog  = "MW Routelog"
)

type ProcessorFactory func() Processor

type registryKey struct {
	dataSource string
	report     string
}

type registryEntry struct {
	format  normalizer.Format
	factory ProcessorFactory
}

// ProcessorRegistry selects the processor and row format of a report.
type ProcessorRegistry struct {
	entries map[registryKey]registryEntry
}

func NewProcessorRegistry() *ProcessorRegistry {
	return &ProcessorRegistry{entries: map[registryKey]registryEntry{}}
}

// DefaultProcessorRegistry knows the Siebel and Edge reports.
func DefaultProcessorRegistry() *ProcessorRegistry {
	r := NewProcessorRegistry()
	r.Register(DataSourceSiebel, ReportTechProfile, normalizer.FormatTechProfile, func() Processor { return NewTechProfileProcessor() })
	r.Register(DataSourceSiebel, ReportRoutelog, normalizer.FormatSiebel, func() Processor { return NewRoutelogProcessor() })
	r.Register(DataSourceSiebel, ReportSclosed, normalizer.FormatClosed, func() Processor { return NewClosedProcessor() })
	r.Register(DataSourceEdge, ReportMWRoutelog, normalizer.FormatEdge, func() Processor { return NewRoutelogProcessor() })
	return r
}

func (r *ProcessorRegistry) Register(dataSource, report string, format normalizer.Format, factory ProcessorFactory) {
	r.entries[registryKey{dataSource: dataSource, report: report}] = registryEntry{format: format, factory: factory}
}

// Lookup returns a fresh processor for the report and the format its rows use.
func (r *ProcessorRegistry) Lookup(dataSource, report string) (Processor, normalizer.Format, error) {
	e, ok := r.entries[registryKey{dataSource: dataSource, report: report}]
	if !ok {
		return nil, "", gerrors.Wrapf(ErrNoProcessor, "%s %q", dataSource, report)
	}
	return e.factory(), e.format, nil
}

// Reports lists the report names registered for a data source.
func (r *ProcessorRegistry) Reports(dataSource string) []string {
	var out []string
	for k := range r.entries {
		if k.dataSource == dataSource {
			out = append(out, k.report)
		}
	}
	sort.Strings(out)
	return out
}
