package rejects_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/infrastructure/rejects"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/services"
)

func TestWrite(t *testing.T) {
	rows := []services.RejectedRow{
		{Line: 3, Reason: "missing Tech User ID", Values: map[string]string{"Tech Full Name": "Nobody"}},
		{Line: 9, Reason: "unknown tech T9", Values: map[string]string{"Activity ID": "A-9", "Tech ID": "T9"}},
	}
	var buf bytes.Buffer
	require.NoError(t, rejects.Write(&buf, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(rejects.SheetName)
	require.NoError(t, err)
	require.Equal(t, []string{"Line", "Reason", "Activity ID", "Tech Full Name", "Tech ID"}, got[0])
	require.Equal(t, []string{"3", "missing Tech User ID", "", "Nobody"}, got[1])
	require.Equal(t, []string{"9", "unknown tech T9", "A-9", "", "T9"}, got[2])
}

func TestSave_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rejects.xlsx")
	require.NoError(t, rejects.Save(path, nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetRows(rejects.SheetName)
	require.NoError(t, err)
	require.Equal(t, [][]string{{"Line", "Reason"}}, got)
}
