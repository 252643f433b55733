package sdcr

import (
	"time"

	"github.com/google/uuid"
)

// DataPoint is one same-day-closure fact for an activity on a snapshot date.
type DataPoint struct {
	ID           uuid.UUID         `json:"id"`
	TechID       *uuid.UUID        `json:"tech_id,omitempty"`
	ExternalID   string            `json:"external_id"`
	Date         time.Time         `json:"date"`
	Value        int               `json:"value"`
	Type         *string           `json:"type,omitempty"`
	DwellingType *string           `json:"dwelling_type,omitempty"`
	Row          map[string]string `json:"row"`
	DataImportID *uuid.UUID        `json:"data_import_id,omitempty"`
	WorkGroupIDs []uuid.UUID       `json:"work_group_ids"`
}

// Key identifies the point that a re-import replaces.
type Key struct {
	ExternalID string
	Date       string
}

const dateLayout = "2006-01-02"

func (p DataPoint) Key() Key {
	return Key{ExternalID: p.ExternalID, Date: p.Date.Format(dateLayout)}
}
