package domain_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/samirrijal/geodrop/internal/core/domain"
	"github.com/samirrijal/geodrop/internal/pkg/geospatial"
)

const recipient = "0x1234567890abcdef1234567890ABCDEF12345678"

func validRequest() domain.ClaimRequest {
	return domain.ClaimRequest{
		AssetID:          "7",
		Recipient:        recipient,
		ClaimantPosition: &domain.Coordinate{Lat: 43.263, Lng: -2.935},
	}
}

func TestClaimRequest_Validate_OK(t *testing.T) {
	if err := validRequest().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClaimRequest_Validate_MissingUserPosition(t *testing.T) {
	req := validRequest()
	req.ClaimantPosition = nil

	err := req.Validate()
	if !errors.Is(err, domain.ErrMalformedRequest) {
		t.Fatalf("expected ErrMalformedRequest, got %v", err)
	}
	if !strings.Contains(err.Error(), "userPosition") {
		t.Errorf("expected message to name userPosition, got %q", err)
	}
}

func TestClaimRequest_Validate_CollectsProblems(t *testing.T) {
	req := domain.ClaimRequest{
		Recipient:        "not-an-address",
		ClaimantPosition: &domain.Coordinate{Lat: 91, Lng: 0},
		AssetPosition:    &domain.Coordinate{Lat: 0, Lng: 181},
	}
	err := req.Validate()
	if !errors.Is(err, domain.ErrMalformedRequest) {
		t.Fatalf("expected ErrMalformedRequest, got %v", err)
	}
	for _, want := range []string{"tokenId", "address", "userPosition", "nftPosition"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %q", want, err)
		}
	}
}

func TestCoordinate_Validate(t *testing.T) {
	bad := []domain.Coordinate{
		{Lat: -90.0001, Lng: 0},
		{Lat: 0, Lng: 180.5},
		{Lat: math.NaN(), Lng: 0},
		{Lat: 0, Lng: math.Inf(1)},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("expected %+v to be invalid", c)
		}
	}
	good := []domain.Coordinate{{Lat: 90, Lng: 180}, {Lat: -90, Lng: -180}, {}}
	for _, c := range good {
		if err := c.Validate(); err != nil {
			t.Errorf("expected %+v to be valid: %v", c, err)
		}
	}
}

func TestRadiusPolicy(t *testing.T) {
	p := domain.RadiusPolicy{Threshold: 0.1, Unit: geospatial.Miles}
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Allows(0.1) {
		t.Error("threshold itself should be allowed")
	}
	if p.Allows(0.1000001) {
		t.Error("distance above threshold should not be allowed")
	}
	if err := (domain.RadiusPolicy{Threshold: 0, Unit: geospatial.Miles}).Validate(); err == nil {
		t.Error("expected error for zero threshold")
	}
	if err := (domain.RadiusPolicy{Threshold: 1, Unit: "yd"}).Validate(); err == nil {
		t.Error("expected error for unknown unit")
	}
}

func TestClaimOutcome_States(t *testing.T) {
	cases := []struct {
		outcome domain.ClaimOutcome
		state   domain.ClaimState
	}{
		{domain.Eligible{}, domain.StateGranted},
		{domain.Ineligible{Reason: domain.ReasonOutOfRange}, domain.StateDenied},
		{domain.Claimed{}, domain.StateCompleted},
		{domain.Failed{Err: domain.ErrTimeout}, domain.StateFailed},
	}
	for _, c := range cases {
		if c.outcome.State() != c.state {
			t.Errorf("%s: expected state %s, got %s", c.outcome.Kind(), c.state, c.outcome.State())
		}
	}
}

func TestFailed_Unwrap(t *testing.T) {
	var err error = domain.Failed{Err: errors.Join(domain.ErrDownstreamFailure, errors.New("boom"))}
	if !errors.Is(err, domain.ErrDownstreamFailure) {
		t.Errorf("expected Failed to unwrap to ErrDownstreamFailure")
	}
}

func TestClaimRequest_KeyIgnoresAddressCase(t *testing.T) {
	a := validRequest()
	b := validRequest()
	b.Recipient = strings.ToUpper(b.Recipient[:2]) + strings.ToLower(b.Recipient[2:])
	if a.Key() != b.Key() {
		t.Errorf("expected equal keys, got %q and %q", a.Key(), b.Key())
	}
}
