package services

import (
	"context"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
)

// TemporalResolver finds the technician an activity was assigned to on a
// snapshot day by walking the appointment history.
type TemporalResolver struct {
	appointments AppointmentRepository
}

func NewTemporalResolver(appointments AppointmentRepository) *TemporalResolver {
	return &TemporalResolver{appointments: appointments}
}

// DayBucket returns [start of day, start of next day) of t in loc.
func DayBucket(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// ResolveTechAtSnapshot returns the assigned tech of the most recent
// appointment of the activity whose lifespan overlaps the snapshot's day.
// No overlapping appointment, or one without a tech, yields nil without error.
func (r *TemporalResolver) ResolveTechAtSnapshot(ctx context.Context, companyID uuid.UUID, externalID string, snapshot time.Time, loc *time.Location) (*uuid.UUID, error) {
	if externalID == "" {
		return nil, nil
	}
	from, to := DayBucket(snapshot, loc)
	appt, err := r.appointments.LatestOverlapping(ctx, companyID, externalID, from, to)
	if err != nil {
		return nil, gerrors.Wrapf(err, "resolve tech for %s at %s", externalID, from.Format(time.DateOnly))
	}
	if appt == nil || appt.AssignedTechID == nil {
		return nil, nil
	}
	id := *appt.AssignedTechID
	return &id, nil
}

// StartOfDayIn reads the calendar date of d as midnight in loc.
func StartOfDayIn(d time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}
