package company

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Company struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// DataSource is one analytics feed owned by a W2 company.
type DataSource struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
	Service   string    `json:"service"`
	Timezone  string    `json:"timezone"`
}

// Location resolves the IANA zone used for day buckets, falling back to
// fallback when the data source has none configured.
func (d DataSource) Location(fallback string) (*time.Location, error) {
	name := strings.TrimSpace(d.Timezone)
	if name == "" {
		name = fallback
	}
	return time.LoadLocation(name)
}
