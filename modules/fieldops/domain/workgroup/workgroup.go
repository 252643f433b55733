package workgroup

import (
	"fmt"

	"github.com/google/uuid"
)

type Type string

const (
	TypeCompany       Type = "Company"
	TypeDivision      Type = "Division"
	TypeDMA           Type = "DMA"
	TypeOffice        Type = "Office"
	TypeServiceRegion Type = "Service Region"
	TypeTeam          Type = "Team"
	TypeTech          Type = "Tech"
)

// Hierarchy lists the types from the root of the org chart down.
var Hierarchy = []Type{
	TypeCompany,
	TypeDivision,
	TypeDMA,
	TypeOffice,
	TypeServiceRegion,
	TypeTeam,
	TypeTech,
}

// ServiceRegionTypes are the groups derived from the service-region reference data.
var ServiceRegionTypes = []Type{TypeServiceRegion, TypeDMA, TypeOffice, TypeDivision}

func (t Type) Rank() (int, bool) {
	for i, h := range Hierarchy {
		if h == t {
			return i, true
		}
	}
	return 0, false
}

func (t Type) Valid() bool {
	_, ok := t.Rank()
	return ok
}

func (t Type) IsServiceRegionType() bool {
	for _, s := range ServiceRegionTypes {
		if s == t {
			return true
		}
	}
	return false
}

func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown work group type %q", s)
	}
	return t, nil
}

// Key is the natural key of a work group.
type Key struct {
	CompanyID  uuid.UUID
	Type       Type
	ExternalID string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.CompanyID, k.Type, k.ExternalID)
}

type WorkGroup struct {
	ID         uuid.UUID `json:"id"`
	CompanyID  uuid.UUID `json:"company_id"`
	Type       Type      `json:"type"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Order      int       `json:"order"`
}

// New builds an unsaved work group whose order mirrors the rank of its type.
func New(key Key, name string) (WorkGroup, error) {
	rank, ok := key.Type.Rank()
	if !ok {
		return WorkGroup{}, fmt.Errorf("unknown work group type %q", key.Type)
	}
	return WorkGroup{
		CompanyID:  key.CompanyID,
		Type:       key.Type,
		ExternalID: key.ExternalID,
		Name:       name,
		Order:      rank,
	}, nil
}

func (w WorkGroup) Key() Key {
	return Key{CompanyID: w.CompanyID, Type: w.Type, ExternalID: w.ExternalID}
}
