package employee

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleTech    Role = "Tech"
	RoleManager Role = "Manager"
)

type Employee struct {
	ID                  uuid.UUID         `json:"id"`
	CompanyID           uuid.UUID         `json:"company_id"`
	ExternalID          string            `json:"external_id"`
	AlternateExternalID *string           `json:"alternate_external_id,omitempty"`
	Role                Role              `json:"role"`
	Name                *string           `json:"name,omitempty"`
	PhoneNumber         *string           `json:"phone_number,omitempty"`
	Skills              *string           `json:"skills,omitempty"`
	Schedule            *string           `json:"schedule,omitempty"`
	Timezone            *string           `json:"timezone,omitempty"`
	StartLocationID     *uuid.UUID        `json:"start_location_id,omitempty"`
	TerminatedAt        *time.Time        `json:"terminated_at,omitempty"`
	DataSourceID        *uuid.UUID        `json:"data_source_id,omitempty"`
	Row                 map[string]string `json:"row,omitempty"`
}

func (e Employee) DisplayName() string {
	if e.Name != nil && *e.Name != "" {
		return *e.Name
	}
	return e.ExternalID
}

func (e Employee) IsTerminated() bool {
	return e.TerminatedAt != nil
}
