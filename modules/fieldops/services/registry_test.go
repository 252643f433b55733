package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/normalizer"
)

func TestDefaultProcessorRegistry(t *testing.T) {
	r := DefaultProcessorRegistry()

	p, format, err := r.Lookup(DataSourceSiebel, ReportTechProfile)
	require.NoError(t, err)
	require.IsType(t, &TechProfileProcessor{}, p)
	require.Equal(t, normalizer.FormatTechProfile, format)

	p, format, err = r.Lookup(DataSourceEdge, ReportMWRoutelog)
	require.NoError(t, err)
	require.IsType(t, &RoutelogProcessor{}, p)
	require.Equal(t, normalizer.FormatEdge, format)

	again, _, err := r.Lookup(DataSourceEdge, ReportMWRoutelog)
	require.NoError(t, err)
	require.NotSame(t, p, again)

	_, _, err = r.Lookup(DataSourceEdge, ReportSclosed)
	require.ErrorIs(t, err, ErrNoProcessor)

	require.Equal(t, []string{ReportRoutelog, ReportSclosed, ReportTechProfile}, r.Reports(DataSourceSiebel))
}
