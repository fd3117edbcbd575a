package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/samirrijal/geodrop/internal/pkg/geospatial"
)

// Coordinate is a WGS 84 position. It is a value type; copy it freely.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UnmarshalJSON requires both lat and lng. A missing key would otherwise
// decode as 0, which is a real position.
func (c *Coordinate) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var wire struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	if wire.Lat == nil || wire.Lng == nil {
		return fmt.Errorf("%w: position needs both lat and lng", ErrMalformedRequest)
	}
	c.Lat, c.Lng = *wire.Lat, *wire.Lng
	return nil
}

// Validate checks that the coordinate lies within the valid lat/lng ranges.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("lat must be within [-90, 90], got %v", c.Lat)
	}
	if math.IsNaN(c.Lng) || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("lng must be within [-180, 180], got %v", c.Lng)
	}
	return nil
}

// DistanceTo returns the great-circle distance from c to o.
func (c Coordinate) DistanceTo(o Coordinate, unit geospatial.Unit) float64 {
	return geospatial.Distance(c.Lat, c.Lng, o.Lat, o.Lng, unit)
}

// Cell returns the geohash cell containing c.
func (c Coordinate) Cell() string {
	return geospatial.Cell(c.Lat, c.Lng)
}

// RadiusPolicy is the maximum allowed distance between a claimant and an asset.
type RadiusPolicy struct {
	Threshold float64         `json:"radius"`
	Unit      geospatial.Unit `json:"unit"`
}

// Validate rejects non-positive thresholds and unknown units.
func (p RadiusPolicy) Validate() error {
	if math.IsNaN(p.Threshold) || p.Threshold <= 0 {
		return fmt.Errorf("radius threshold must be positive, got %v", p.Threshold)
	}
	if !p.Unit.Valid() {
		return fmt.Errorf("radius unit must be km or mi, got %q", p.Unit)
	}
	return nil
}

// Allows reports whether a distance, expressed in the policy's unit, is within the radius.
func (p RadiusPolicy) Allows(distance float64) bool {
	return distance <= p.Threshold
}

func (p RadiusPolicy) String() string {
	return fmt.Sprintf("%g%s", p.Threshold, p.Unit)
}
