package geospatial

import (
	"fmt"
	"strings"

	"github.com/mmcloughlin/geohash"
)

// CellPrecision is the geohash length used for event subjects and
// WebSocket subscriptions (~4.9km x 4.9km cells).
const CellPrecision uint = 5

// Cell returns the geohash cell containing the point at CellPrecision.
func Cell(lat, lon float64) string {
	return geohash.EncodeWithPrecision(lat, lon, CellPrecision)
}

// Encode returns the full-precision geohash of a point.
func Encode(lat, lon float64) string {
	return geohash.Encode(lat, lon)
}

// CellWithNeighbors returns the cell of a point followed by its 8 neighbors,
// so a subscriber just inside a cell edge still sees nearby events.
func CellWithNeighbors(lat, lon float64) []string {
	cell := Cell(lat, lon)
	return append([]string{cell}, geohash.Neighbors(cell)...)
}

// geohashAlphabet is the base32 alphabet geohashes are written in.
const geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// ValidateCell rejects anything that is not a lowercase geohash of exactly
// CellPrecision characters.
func ValidateCell(cell string) error {
	if uint(len(cell)) != CellPrecision {
		return fmt.Errorf("cell must be a %d-character geohash, got %q", CellPrecision, cell)
	}
	for _, r := range cell {
		if !strings.ContainsRune(geohashAlphabet, r) {
			return fmt.Errorf("cell %q contains %q, which is not a geohash character", cell, r)
		}
	}
	return nil
}
