package rejects

import (
	"io"
	"os"
	"sort"

	gerrors "github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/services"
)

const SheetName = "Rejected"

// Build lays the rejected rows out on one sheet: line, reason, then every
// source column seen across the rows in alphabetical order.
func Build(rows []services.RejectedRow) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, err
	}

	columns := valueColumns(rows)
	header := make([]any, 0, len(columns)+2)
	header = append(header, "Line", "Reason")
	for _, c := range columns {
		header = append(header, c)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, gerrors.Wrap(err, "write header")
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := make([]any, 0, len(header))
		values = append(values, r.Line, r.Reason)
		for _, c := range columns {
			values = append(values, r.Values[c])
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, gerrors.Wrapf(err, "write line %d", r.Line)
		}
	}

	if len(rows) > 0 {
		last, err := excelize.CoordinatesToCellName(len(header), 1)
		if err != nil {
			return nil, err
		}
		if err := f.AutoFilter(SheetName, "A1:"+last, nil); err != nil {
			return nil, gerrors.Wrap(err, "set filter")
		}
	}
	return f, nil
}

func Write(w io.Writer, rows []services.RejectedRow) error {
	f, err := Build(rows)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

func Save(path string, rows []services.RejectedRow) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(file, rows); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func valueColumns(rows []services.RejectedRow) []string {
	seen := map[string]struct{}{}
	for _, r := range rows {
		for k := range r.Values {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
