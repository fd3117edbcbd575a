package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/geodrop/internal/core/domain"
	"github.com/samirrijal/geodrop/internal/pkg/geospatial"
)

// AssetRepo implements ports.AssetRepository with pgx and PostGIS.
type AssetRepo struct {
	db *DB
}

// NewAssetRepo creates a new AssetRepo.
func NewAssetRepo(db *DB) *AssetRepo {
	return &AssetRepo{db: db}
}

const assetColumns = `
	id, name, COALESCE(description, ''), COALESCE(image_url, ''),
	ST_Y(location::geometry) as lat,
	ST_X(location::geometry) as lng,
	geohash, COALESCE(metadata, '{}'), created_at`

func scanAsset(row pgx.Row, a *domain.Asset, extra ...any) error {
	dest := []any{
		&a.ID, &a.Name, &a.Description, &a.ImageURL,
		&a.Position.Lat, &a.Position.Lng,
		&a.Geohash, &a.Metadata, &a.CreatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

// Upsert inserts or updates an asset. The geohash column is derived from the position.
func (r *AssetRepo) Upsert(ctx context.Context, a *domain.Asset) error {
	hash := geospatial.Encode(a.Position.Lat, a.Position.Lng)
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO assets (id, name, description, image_url, location, geohash, metadata)
		VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description,
		    image_url = EXCLUDED.image_url, location = EXCLUDED.location,
		    geohash = EXCLUDED.geohash, metadata = EXCLUDED.metadata
	`, a.ID, a.Name, a.Description, a.ImageURL, a.Position.Lng, a.Position.Lat, hash, a.Metadata)
	if err != nil {
		return fmt.Errorf("upsert asset %s: %w", a.ID, err)
	}
	a.Geohash = hash
	return nil
}

// GetByID returns an asset by token ID. A missing row wraps domain.ErrUnknownAsset.
func (r *AssetRepo) GetByID(ctx context.Context, id string) (*domain.Asset, error) {
	var a domain.Asset
	err := scanAsset(r.db.Pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id), &a)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("asset %q: %w", id, domain.ErrUnknownAsset)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %q: %w", id, err)
	}
	return &a, nil
}

// FindNearby returns assets within radiusMeters using PostGIS ST_DWithin, nearest first.
func (r *AssetRepo) FindNearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]domain.Asset, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+assetColumns+`,
		       ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) as distance
		FROM assets
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance
		LIMIT $4
	`, lng, lat, radiusMeters, limit)
	if err != nil {
		return nil, fmt.Errorf("find nearby assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		var a domain.Asset
		var dist float64
		if err := scanAsset(rows, &a, &dist); err != nil {
			return nil, err
		}
		a.Distance = &dist
		assets = append(assets, a)
	}
	return assets, rows.Err()
}
