package http

import (
	"context"

	"github.com/samirrijal/geodrop/internal/core/usecases"
)

// Pinger is a backing store that /v1/ready checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ClaimFeed delivers raw claim event payloads for a subject.
type ClaimFeed interface {
	Subscribe(subject string, fn func(data []byte)) (unsubscribe func() error, err error)
	Connected() bool
}

// Dependencies holds all services needed by HTTP handlers.
// DB, Cache and Feed are optional.
type Dependencies struct {
	Assets      *usecases.AssetService
	Eligibility *usecases.EligibilityService
	Claims      *usecases.ClaimService
	Feed        ClaimFeed
	DB          Pinger
	Cache       Pinger
}
