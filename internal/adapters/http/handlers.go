package http

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geodrop/internal/core/domain"
	"github.com/samirrijal/geodrop/internal/pkg/logging"
)

// queryCoordinate reads the required lat and lng query parameters.
func queryCoordinate(c *fiber.Ctx) (domain.Coordinate, error) {
	latStr, lngStr := c.Query("lat"), c.Query("lng")
	if latStr == "" || lngStr == "" {
		return domain.Coordinate{}, errors.New("lat and lng are required")
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("lat: %w", err)
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("lng: %w", err)
	}
	pos := domain.Coordinate{Lat: lat, Lng: lng}
	if err := pos.Validate(); err != nil {
		return domain.Coordinate{}, err
	}
	return pos, nil
}

// NearbyAssetsHandler returns assets within a radius (meters) of a point.
func NearbyAssetsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pos, err := queryCoordinate(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		radius := c.QueryFloat("radius", 1000)
		limit := c.QueryInt("limit", 50)

		if radius <= 0 || radius > 50000 {
			return errBadRequest(c, "radius must be between 1 and 50000 meters")
		}
		if limit <= 0 || limit > 100 {
			limit = 50
		}

		assets, err := deps.Assets.FindNearby(c.UserContext(), pos.Lat, pos.Lng, radius, limit)
		if err != nil {
			logging.FromContext(c.UserContext()).Error("find nearby assets", "error", err)
			return errInternal(c, "could not load assets")
		}
		if assets == nil {
			assets = []domain.Asset{}
		}

		return c.JSON(assets)
	}
}

// GetAssetHandler returns a single asset by token ID.
func GetAssetHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		asset, err := deps.Assets.GetByID(c.UserContext(), c.Params("id"))
		if errors.Is(err, domain.ErrUnknownAsset) {
			return errNotFound(c, "asset not found")
		}
		if err != nil {
			logging.FromContext(c.UserContext()).Error("get asset", "error", err)
			return errInternal(c, "could not load asset")
		}
		return c.JSON(asset)
	}
}

// EligibilityHandler returns the proximity hint for a position. It is
// informational; claims are decided server-side.
func EligibilityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pos, err := queryCoordinate(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		hint, err := deps.Eligibility.Check(c.UserContext(), c.Params("id"), pos)
		switch {
		case errors.Is(err, domain.ErrMalformedRequest):
			return errBadRequest(c, err.Error())
		case errors.Is(err, domain.ErrUnknownAsset):
			return errNotFound(c, "asset not found")
		case err != nil:
			logging.FromContext(c.UserContext()).Error("eligibility check", "error", err)
			return errInternal(c, "could not evaluate eligibility")
		}
		return c.JSON(hint)
	}
}

// PolicyHandler returns the hint and claim radii.
func PolicyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"claim": deps.Claims.Policy(),
			"hint":  deps.Eligibility.Policy(),
		})
	}
}
