package geospatial

import (
	"fmt"
	"math"
	"strings"
)

const (
	earthRadiusKm = 6371.0
	kmPerMile     = 1.60934
)

// Unit selects the unit a distance is reported in.
type Unit string

const (
	Kilometers Unit = "km"
	Miles      Unit = "mi"
)

// ParseUnit accepts "km"/"mi" and a few long spellings.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "km", "kilometer", "kilometers", "kilometre", "kilometres":
		return Kilometers, nil
	case "mi", "mile", "miles":
		return Miles, nil
	default:
		return "", fmt.Errorf("unknown distance unit %q", s)
	}
}

// Valid reports whether u is a supported unit.
func (u Unit) Valid() bool {
	return u == Kilometers || u == Miles
}

// FromKm converts a distance in kilometers to u.
func (u Unit) FromKm(km float64) float64 {
	if u == Miles {
		return km / kmPerMile
	}
	return km
}

// ToMeters converts a distance expressed in u to meters.
func (u Unit) ToMeters(d float64) float64 {
	if u == Miles {
		return d * kmPerMile * 1000
	}
	return d * 1000
}

// Distance returns the great-circle distance between two points on a
// spherical Earth (R = 6371 km), in the requested unit.
//
// The result is symmetric, never negative and never NaN for valid
// coordinates: the haversine term is clamped to [0,1] so floating-point
// overshoot near antipodal points cannot push Sqrt(1-h) out of its domain.
func Distance(lat1, lon1, lat2, lon2 float64, unit Unit) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	h = math.Min(1, math.Max(0, h))

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return unit.FromKm(earthRadiusKm * c)
}

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return Distance(lat1, lon1, lat2, lon2, Kilometers) * 1000
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / 111320.0
	lonDelta := radiusMeters / (111320.0 * math.Cos(toRad(lat)))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
