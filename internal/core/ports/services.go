package ports

import (
	"context"
	"time"

	"github.com/samirrijal/geodrop/internal/core/domain"
)

// Minter is the downstream minting action. It is opaque to the claim core:
// {assetId, recipient} in, a receipt or an error out.
type Minter interface {
	// Ready returns an error wrapping domain.ErrConfigurationMissing when the
	// minter lacks the settings it needs to run.
	Ready() error
	Mint(ctx context.Context, req domain.MintRequest) (*domain.Receipt, error)
}

// ClaimLocker is a distributed mutual-exclusion guard around a single mint.
type ClaimLocker interface {
	// Acquire takes the lock for key. ok is false when somebody else holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishClaimEvent(ctx context.Context, event *domain.ClaimEvent) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
