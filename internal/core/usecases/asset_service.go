package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/geodrop/internal/core/domain"
	"github.com/samirrijal/geodrop/internal/core/ports"
	"github.com/samirrijal/geodrop/internal/pkg/metrics"
)

// AssetService handles asset lookups against the authoritative registry.
// It satisfies ports.AssetRegistry so the claim path can use the cached reader.
type AssetService struct {
	assets ports.AssetRepository
	cache  ports.CacheService
}

// NewAssetService creates a new AssetService.
func NewAssetService(assets ports.AssetRepository, cache ports.CacheService) *AssetService {
	return &AssetService{assets: assets, cache: cache}
}

func assetCacheKey(id string) string {
	return "assets:id:" + id
}

// GetByID returns a single asset. Asset positions are fixed, so a cached
// record is as authoritative as the database row.
func (s *AssetService) GetByID(ctx context.Context, id string) (*domain.Asset, error) {
	cacheKey := assetCacheKey(id)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var asset domain.Asset
			if err := json.Unmarshal(data, &asset); err == nil {
				metrics.CacheHits.WithLabelValues("asset").Inc()
				return &asset, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("asset").Inc()
	}

	asset, err := s.assets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(asset); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600) // 10 min for single asset
		}
	}

	return asset, nil
}

// FindNearby returns assets within radiusMeters of the given point, nearest first.
func (s *AssetService) FindNearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]domain.Asset, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if err := (domain.Coordinate{Lat: lat, Lng: lng}).Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedRequest, err)
	}

	cacheKey := fmt.Sprintf("assets:nearby:%.4f:%.4f:%.0f:%d", lat, lng, radiusMeters, limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var assets []domain.Asset
			if err := json.Unmarshal(data, &assets); err == nil {
				metrics.CacheHits.WithLabelValues("assets_nearby").Inc()
				return assets, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("assets_nearby").Inc()
	}

	assets, err := s.assets.FindNearby(ctx, lat, lng, radiusMeters, limit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(assets); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 60)
		}
	}

	return assets, nil
}

// Register stores an asset and drops its cached copy.
func (s *AssetService) Register(ctx context.Context, asset *domain.Asset) error {
	if asset.ID == "" {
		return fmt.Errorf("%w: asset id is required", domain.ErrMalformedRequest)
	}
	if err := asset.Position.Validate(); err != nil {
		return fmt.Errorf("%w: position: %v", domain.ErrMalformedRequest, err)
	}
	if err := s.assets.Upsert(ctx, asset); err != nil {
		return fmt.Errorf("upsert asset %s: %w", asset.ID, err)
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, assetCacheKey(asset.ID))
	}
	return nil
}
