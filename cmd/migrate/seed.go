package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/samirrijal/geodrop/internal/adapters/postgres"
	"github.com/samirrijal/geodrop/internal/core/domain"
	"github.com/samirrijal/geodrop/internal/core/ports"
	"github.com/samirrijal/geodrop/internal/core/usecases"
)

// loadSeed reads a JSON array of assets. Every entry needs an id and a
// position with both lat and lng.
func loadSeed(path string) ([]domain.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var assets []domain.Asset
	if err := json.Unmarshal(data, &assets); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("%s has no assets", path)
	}
	return assets, nil
}

// registerAll upserts every asset and stops at the first failure.
func registerAll(ctx context.Context, repo ports.AssetRepository, assets []domain.Asset) error {
	svc := usecases.NewAssetService(repo, nil)
	for i := range assets {
		if err := svc.Register(ctx, &assets[i]); err != nil {
			return fmt.Errorf("asset %d: %w", i, err)
		}
		fmt.Printf("OK  %s %s (%s)\n", assets[i].ID, assets[i].Name, assets[i].Geohash)
	}
	return nil
}

func runSeed(ctx context.Context, db *postgres.DB, assets []domain.Asset) {
	if err := registerAll(ctx, postgres.NewAssetRepo(db), assets); err != nil {
		log.Fatalf("seed: %v", err)
	}
	log.Printf("%d assets registered", len(assets))
}
