package ports

import (
	"context"

	"github.com/samirrijal/geodrop/internal/core/domain"
)

// AssetRegistry resolves the authoritative record of an asset.
// Implementations return an error wrapping domain.ErrUnknownAsset when the
// ID is not registered.
type AssetRegistry interface {
	GetByID(ctx context.Context, id string) (*domain.Asset, error)
}

// AssetRepository persists assets.
type AssetRepository interface {
	AssetRegistry
	Upsert(ctx context.Context, asset *domain.Asset) error
	FindNearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]domain.Asset, error)
}
