package sources

import (
	"sync"

	"github.com/ringsaturn/tzf"
)

// TimezoneFinder resolves IANA zone names from coordinates. The polygon data
// is loaded on first use.
type TimezoneFinder struct {
	finder func() (tzf.F, error)
}

func NewTimezoneFinder() *TimezoneFinder {
	return &TimezoneFinder{finder: sync.OnceValues(tzf.NewDefaultFinder)}
}

func (t *TimezoneFinder) TimezoneAt(lat, lng float64) (string, bool) {
	f, err := t.finder()
	if err != nil {
		return "", false
	}
	name := f.GetTimezoneName(lng, lat)
	return name, name != ""
}
