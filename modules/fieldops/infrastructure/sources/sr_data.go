package sources

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/jszwec/csvutil"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/services"
)

// ParseServiceRegions decodes a service-region reference export. Rows are kept
// only for hsp; an empty HSP column is read as hsp. Later duplicates of a
// service region win.
func ParseServiceRegions(r io.Reader, hsp string) ([]services.ServiceRegion, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, gerrors.Wrap(err, "read service regions")
	}
	raw, err = sanitize(raw)
	if err != nil {
		return nil, err
	}

	dec, err := csvutil.NewDecoder(csv.NewReader(bytes.NewReader(raw)))
	if err != nil {
		if gerrors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, gerrors.Wrap(err, "create service region decoder")
	}
	dec.Map = func(field, _ string, _ any) string {
		return strings.TrimSpace(field)
	}

	var rows []services.ServiceRegion
	if err := dec.Decode(&rows); err != nil {
		return nil, gerrors.Wrap(err, "decode service regions")
	}

	index := make(map[string]int, len(rows))
	out := make([]services.ServiceRegion, 0, len(rows))
	for _, sr := range rows {
		sr.ServiceRegion = strings.TrimSpace(sr.ServiceRegion)
		if sr.ServiceRegion == "" {
			continue
		}
		sr.HSP = strings.TrimSpace(sr.HSP)
		if sr.HSP == "" {
			sr.HSP = hsp
		}
		if sr.HSP != hsp {
			continue
		}
		if i, ok := index[sr.ServiceRegion]; ok {
			out[i] = sr
			continue
		}
		index[sr.ServiceRegion] = len(out)
		out = append(out, sr)
	}
	return out, nil
}
