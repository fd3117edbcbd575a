package usecases

import (
	"context"
	"fmt"

	"github.com/samirrijal/geodrop/internal/core/domain"
	"github.com/samirrijal/geodrop/internal/core/ports"
	"github.com/samirrijal/geodrop/internal/pkg/metrics"
)

// EvaluateHint computes the client-tier eligibility hint. It only drives UI
// state; nothing that authorizes a claim consumes its result.
func EvaluateHint(assetID string, claimant, asset domain.Coordinate, policy domain.RadiusPolicy) domain.Eligibility {
	d := claimant.DistanceTo(asset, policy.Unit)
	return domain.Eligibility{
		AssetID:  assetID,
		Eligible: policy.Allows(d),
		Distance: d,
		Unit:     policy.Unit,
		Radius:   policy.Threshold,
	}
}

// EligibilityService serves hints using its own radius, which may be looser
// than the claim radius.
type EligibilityService struct {
	assets ports.AssetRegistry
	policy domain.RadiusPolicy
}

// NewEligibilityService creates a new EligibilityService.
func NewEligibilityService(assets ports.AssetRegistry, policy domain.RadiusPolicy) *EligibilityService {
	return &EligibilityService{assets: assets, policy: policy}
}

// Policy returns the hint radius.
func (s *EligibilityService) Policy() domain.RadiusPolicy {
	return s.policy
}

// Check returns the hint for a claimant position against a registered asset.
func (s *EligibilityService) Check(ctx context.Context, assetID string, position domain.Coordinate) (*domain.Eligibility, error) {
	if assetID == "" {
		return nil, fmt.Errorf("%w: asset id is required", domain.ErrMalformedRequest)
	}
	if err := position.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedRequest, err)
	}

	asset, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, err
	}

	hint := EvaluateHint(asset.ID, position, asset.Position, s.policy)
	metrics.ObserveHint(hint.Eligible)
	return &hint, nil
}
