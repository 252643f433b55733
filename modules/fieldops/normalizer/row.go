package normalizer

import (
	"fmt"
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

type Format string

const (
	FormatSiebel      Format = "Siebel"
	FormatEdge        Format = "Edge"
	FormatClosed      Format = "Closed"
	FormatTechProfile Format = "TechProfile"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatSiebel, FormatEdge, FormatClosed, FormatTechProfile:
		return f, nil
	default:
		return "", fmt.Errorf("unknown row format %q", s)
	}
}

// Record is one raw CSV record keyed by its header. Line is the 1-based line
// number of the record in the source file.
type Record struct {
	Line   int
	Values map[string]string
}

// Row is a record in canonical form. Fields never holds the coordinates;
// they live in Latitude and Longitude so an unknown position stays null.
type Row struct {
	Line      int
	Format    Format
	Fields    map[string]string
	Latitude  decimal.NullDecimal
	Longitude decimal.NullDecimal
	Raw       map[string]string
}

func (r Row) Get(field string) string {
	return r.Fields[field]
}

func (r Row) Has(field string) bool {
	return r.Fields[field] != ""
}

// Optional returns nil for an empty field.
func (r Row) Optional(field string) *string {
	v := r.Fields[field]
	if v == "" {
		return nil
	}
	return &v
}

func (r Row) Date(field string) (time.Time, bool) {
	return ParseDate(r.Fields[field])
}

// Values is the flattened form persisted in the "row" columns and compared
// between snapshots.
func (r Row) Values() map[string]string {
	out := maps.Clone(r.Fields)
	if out == nil {
		out = map[string]string{}
	}
	if r.Latitude.Valid {
		out[FieldLatitude] = r.Latitude.Decimal.String()
	}
	if r.Longitude.Valid {
		out[FieldLongitude] = r.Longitude.Decimal.String()
	}
	return out
}

// With returns a copy of the row with field set to value. An empty value
// removes the field.
func (r Row) With(field, value string) Row {
	fields := maps.Clone(r.Fields)
	if fields == nil {
		fields = map[string]string{}
	}
	if value == "" {
		delete(fields, field)
	} else {
		fields[field] = value
	}
	r.Fields = fields
	return r
}
