package domain

import (
	"time"
)

// Asset is a location-bound collectible. ID is the token ID on the
// collection contract; Position is its fixed, authoritative location.
type Asset struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	ImageURL    string         `json:"image_url,omitempty"`
	Position    Coordinate     `json:"position"`
	Geohash     string         `json:"geohash,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Distance    *float64       `json:"distance,omitempty"` // computed field, meters
	CreatedAt   time.Time      `json:"created_at"`
}
