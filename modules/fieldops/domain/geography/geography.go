package geography

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const TypeStartLocation = "Start Location"

type Geography struct {
	ID            uuid.UUID           `json:"id"`
	Type          string              `json:"type"`
	StreetAddress string              `json:"street_address"`
	Zipcode       string              `json:"zipcode"`
	City          string              `json:"city"`
	State         string              `json:"state"`
	Latitude      decimal.NullDecimal `json:"latitude"`
	Longitude     decimal.NullDecimal `json:"longitude"`
}

func (g Geography) HasCoordinates() bool {
	return g.Latitude.Valid && g.Longitude.Valid
}

func (g Geography) IsEmpty() bool {
	return g.StreetAddress == "" && g.Zipcode == "" && g.City == "" && g.State == "" && !g.HasCoordinates()
}

// SameLocation reports whether two geographies describe the same place.
func (g Geography) SameLocation(other Geography) bool {
	return g.Type == other.Type &&
		g.StreetAddress == other.StreetAddress &&
		g.Zipcode == other.Zipcode &&
		g.City == other.City &&
		g.State == other.State &&
		nullEqual(g.Latitude, other.Latitude) &&
		nullEqual(g.Longitude, other.Longitude)
}

func nullEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}
