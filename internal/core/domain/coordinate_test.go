package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/samirrijal/geodrop/internal/core/domain"
)

func TestCoordinate_UnmarshalJSON(t *testing.T) {
	var c domain.Coordinate
	if err := json.Unmarshal([]byte(`{"lat":0,"lng":-73.9855}`), &c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Lat != 0 || c.Lng != -73.9855 {
		t.Errorf("unexpected coordinate %+v", c)
	}
}

func TestCoordinate_UnmarshalJSON_MissingKeys(t *testing.T) {
	bodies := []string{
		`{}`,
		`{"lng":0}`,
		`{"lat":51.5}`,
		`{"lat":null,"lng":0}`,
		`{"latitude":51.5,"longitude":-0.1}`,
	}
	for _, b := range bodies {
		var c domain.Coordinate
		err := json.Unmarshal([]byte(b), &c)
		if !errors.Is(err, domain.ErrMalformedRequest) {
			t.Errorf("%s: expected ErrMalformedRequest, got %v", b, err)
		}
	}
}

func TestCoordinate_UnmarshalJSON_NullPointer(t *testing.T) {
	var body struct {
		Position *domain.Coordinate `json:"position"`
	}
	if err := json.Unmarshal([]byte(`{"position":null}`), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Position != nil {
		t.Errorf("expected nil position, got %+v", body.Position)
	}
}
