package sources

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	gerrors "github.com/go-faster/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/normalizer"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVReader splits a report export into header-keyed records. Exports that are
// not valid UTF-8 are decoded as Windows-1252.
type CSVReader struct{}

func NewCSVReader() *CSVReader {
	return &CSVReader{}
}

func (CSVReader) ReadRecords(ctx context.Context, r io.Reader) ([]normalizer.Record, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, gerrors.Wrap(err, "read report")
	}
	raw, err = sanitize(raw)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, gerrors.Wrap(err, "read header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var out []normalizer.Record
	for {
		if len(out)%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, gerrors.Wrap(err, "read record")
		}
		if blank(fields) {
			continue
		}
		line, _ := cr.FieldPos(0)
		values := make(map[string]string, len(header))
		for i, key := range header {
			if key == "" {
				continue
			}
			if i < len(fields) {
				values[key] = strings.TrimSpace(fields[i])
			} else {
				values[key] = ""
			}
		}
		out = append(out, normalizer.Record{Line: line, Values: values})
	}
	return out, nil
}

// sanitize strips the byte order mark and NUL bytes and repairs legacy encodings.
func sanitize(raw []byte) ([]byte, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	raw = bytes.ReplaceAll(raw, []byte{0}, nil)
	if utf8.Valid(raw) {
		return raw, nil
	}
	decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), raw)
	if err != nil {
		return nil, gerrors.Wrap(err, "decode windows-1252")
	}
	return decoded, nil
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
