package dataimport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusDownloading, StatusProcessing, true},
		{StatusDownloading, StatusErrored, true},
		{StatusProcessing, StatusComplete, true},
		{StatusProcessing, StatusErrored, true},
		{StatusComplete, StatusErrored, false},
		{StatusErrored, StatusProcessing, false},
		{StatusProcessing, StatusDownloading, false},
	}
	for _, tc := range cases {
		d := &DataImport{Status: tc.from}
		err := d.Transition(tc.to)
		if tc.ok {
			require.NoError(t, err)
			require.Equal(t, tc.to, d.Status)
		} else {
			require.Error(t, err)
			require.Equal(t, tc.from, d.Status)
		}
	}
}
