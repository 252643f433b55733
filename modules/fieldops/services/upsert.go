package services

import (
	"context"
	"fmt"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/employee"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/domain/geography"
	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/normalizer"
)

const upsertRaceRetries = 3

var errInsertRace = gerrors.New("employee insert lost a race")

// TimezoneLocator maps coordinates to an IANA zone name.
type TimezoneLocator interface {
	TimezoneAt(lat, lng float64) (string, bool)
}

// EmployeeScope is where upserted employees are recorded.
type EmployeeScope struct {
	CompanyID    uuid.UUID
	DataSourceID uuid.UUID
}

// UpsertEngine creates or patches employees by natural key.
type UpsertEngine struct {
	employees   EmployeeRepository
	geographies GeographyRepository
	timezones   TimezoneLocator
	locations   keyedStore[string, geography.Geography]
}

func NewUpsertEngine(employees EmployeeRepository, geographies GeographyRepository, timezones TimezoneLocator) *UpsertEngine {
	return &UpsertEngine{employees: employees, geographies: geographies, timezones: timezones}
}

// Upsert patches the employee matching key with the fields present in upd,
// inserting key and upd when none matches. An insert that loses a race for
// the natural key is retried as an update.
func (u *UpsertEngine) Upsert(ctx context.Context, key EmployeeKey, upd EmployeeUpdate) (*employee.Employee, error) {
	if key.ExternalID == "" {
		return nil, gerrors.New("upsert employee: external id is required")
	}

	var out *employee.Employee
	backoff := retry.WithMaxRetries(upsertRaceRetries, retry.NewConstant(time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		updated, err := u.employees.Update(ctx, key, upd)
		if err != nil {
			return err
		}
		if updated != nil {
			out = updated
			return nil
		}

		inserted, err := u.employees.Insert(ctx, key, upd)
		switch {
		case err != nil && isUniqueViolation(err):
			upsertRetries.Inc()
			return retry.RetryableError(err)
		case err != nil:
			return err
		case inserted == nil:
			upsertRetries.Inc()
			return retry.RetryableError(errInsertRace)
		}
		out = inserted
		return nil
	})
	if err != nil {
		return nil, gerrors.Wrapf(mapPgError(err), "upsert employee %s", key.ExternalID)
	}
	return out, nil
}

// UpsertTech records the technician of a tech profile row.
func (u *UpsertEngine) UpsertTech(ctx context.Context, scope EmployeeScope, row normalizer.Row) (*employee.Employee, error) {
	externalID := row.Get(normalizer.FieldTechID)
	if externalID == "" {
		return nil, expected("missing %s", normalizer.FieldTechUserID)
	}

	upd := EmployeeUpdate{
		InsertRole:          employee.RoleTech,
		AlternateExternalID: row.Optional(normalizer.FieldTechATTUID),
		Name:                row.Optional(normalizer.FieldTechName),
		PhoneNumber:         row.Optional(normalizer.FieldTechPhone),
		Skills:              row.Optional(normalizer.FieldSkillPackage),
		Schedule:            row.Optional(normalizer.FieldTechSchedule),
		DataSourceID:        &scope.DataSourceID,
		Row:                 row.Values(),
		ClearTerminatedAt:   true,
	}

	start := startLocation(row)
	if !start.IsEmpty() {
		loc, err := u.ensureLocation(ctx, start)
		if err != nil {
			return nil, err
		}
		upd.StartLocationID = &loc.ID
	}
	if start.HasCoordinates() && u.timezones != nil {
		if tz, ok := u.timezones.TimezoneAt(start.Latitude.Decimal.InexactFloat64(), start.Longitude.Decimal.InexactFloat64()); ok {
			upd.Timezone = &tz
		}
	}

	return u.Upsert(ctx, EmployeeKey{CompanyID: scope.CompanyID, ExternalID: externalID}, upd)
}

// UpsertSupervisor records the team supervisor of a tech profile row as a
// manager. Rows without a supervisor login yield nil.
func (u *UpsertEngine) UpsertSupervisor(ctx context.Context, scope EmployeeScope, row normalizer.Row) (*employee.Employee, error) {
	externalID := row.Get(normalizer.FieldSupervisorLogin)
	if externalID == "" {
		return nil, nil
	}
	role := employee.RoleManager
	upd := EmployeeUpdate{
		Role:              &role,
		InsertRole:        employee.RoleManager,
		Name:              row.Optional(normalizer.FieldTechSupervisor),
		PhoneNumber:       row.Optional(normalizer.FieldSupervisorPhone),
		DataSourceID:      &scope.DataSourceID,
		ClearTerminatedAt: true,
	}
	return u.Upsert(ctx, EmployeeKey{CompanyID: scope.CompanyID, ExternalID: externalID}, upd)
}

// MarkTerminated stamps terminatedAt on employees of the data source that the
// latest full roster did not mention.
func (u *UpsertEngine) MarkTerminated(ctx context.Context, dataSourceID uuid.UUID, keep []string, now time.Time) (int64, error) {
	n, err := u.employees.MarkTerminated(ctx, dataSourceID, keep, now)
	if err != nil {
		return 0, gerrors.Wrap(err, "mark terminated employees")
	}
	logWithFields(ctx, logrus.InfoLevel, "fieldops.employees.terminated", logrus.Fields{
		"data_source_id": dataSourceID.String(),
		"count":          n,
	})
	return n, nil
}

func startLocation(row normalizer.Row) geography.Geography {
	return geography.Geography{
		Type:          geography.TypeStartLocation,
		StreetAddress: row.Get(normalizer.FieldStartStreet),
		City:          row.Get(normalizer.FieldStartCity),
		State:         row.Get(normalizer.FieldStartState),
		Zipcode:       row.Get(normalizer.FieldStartZip),
		Latitude:      row.Latitude,
		Longitude:     row.Longitude,
	}
}

func locationKey(g geography.Geography) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s", g.Type, g.StreetAddress, g.Zipcode, g.City, g.State,
		g.Latitude.Decimal.String(), g.Longitude.Decimal.String())
}

func (u *UpsertEngine) ensureLocation(ctx context.Context, g geography.Geography) (*geography.Geography, error) {
	loc, _, err := u.locations.getOrCreate(ctx, locationKey(g), func(ctx context.Context) (*geography.Geography, error) {
		found, err := u.geographies.FindMatching(ctx, g)
		if err != nil || found != nil {
			return found, err
		}
		return u.geographies.Insert(ctx, g)
	})
	if err != nil {
		return nil, gerrors.Wrap(err, "ensure start location")
	}
	return loc, nil
}
