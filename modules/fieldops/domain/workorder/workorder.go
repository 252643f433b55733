package workorder

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

type WorkOrder struct {
	ID         uuid.UUID         `json:"id"`
	CompanyID  uuid.UUID         `json:"company_id"`
	ExternalID string            `json:"external_id"`
	Date       *time.Time        `json:"date,omitempty"`
	Type       string            `json:"type"`
	Status     string            `json:"status"`
	Row        map[string]string `json:"row"`
}

// Lifespan is the half-open interval [Start, End) during which an appointment
// snapshot was current. A nil End means the snapshot is still current.
type Lifespan struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

func (l Lifespan) IsOpen() bool {
	return l.End == nil
}

func (l Lifespan) Contains(t time.Time) bool {
	if t.Before(l.Start) {
		return false
	}
	return l.End == nil || t.Before(*l.End)
}

// Overlaps reports whether the lifespan intersects [from, to).
func (l Lifespan) Overlaps(from, to time.Time) bool {
	if !from.Before(to) {
		return false
	}
	if l.End != nil && !l.End.After(from) {
		return false
	}
	return l.Start.Before(to)
}

type Appointment struct {
	ID             uuid.UUID         `json:"id"`
	WorkOrderID    uuid.UUID         `json:"work_order_id"`
	AssignedTechID *uuid.UUID        `json:"assigned_tech_id,omitempty"`
	Date           *time.Time        `json:"date,omitempty"`
	Status         string            `json:"status"`
	Row            map[string]string `json:"row"`
	Lifespan       Lifespan          `json:"lifespan"`
}

// SameSnapshot reports whether row describes the state this appointment already holds.
func (a Appointment) SameSnapshot(row map[string]string) bool {
	return maps.Equal(a.Row, row)
}
