package workflows

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/geodrop/internal/core/domain"
	"github.com/samirrijal/geodrop/internal/core/ports"
)

// MintActivities holds the activity implementations for the mint workflow.
type MintActivities struct {
	Minter ports.Minter
}

// ClaimTo mints through the configured engine client.
func (a *MintActivities) ClaimTo(ctx context.Context, req domain.MintRequest) (*domain.Receipt, error) {
	receipt, err := a.Minter.Mint(ctx, req)
	if err == nil {
		return receipt, nil
	}
	if errors.Is(err, domain.ErrConfigurationMissing) {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeConfigurationMissing, err)
	}
	return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeDownstreamFailure, err)
}
