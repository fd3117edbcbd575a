package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Claim and eligibility responses are never cached.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		path := c.Path()
		if path == "/api/mintNFT" || path == "/v1/claims" {
			c.Set("Cache-Control", "no-store")
			return err
		}

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := string(c.Response().Header.Peek(fiber.HeaderCacheControl)); existing != "" {
			return err
		}

		var ttl string
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "no-cache"
		case path == "/metrics":
			ttl = "no-cache"
		case strings.HasSuffix(path, "/eligibility"):
			ttl = "private, no-store" // depends on the caller's position
		case strings.HasPrefix(path, "/v1/assets/nearby"):
			ttl = "public, max-age=60"
		case strings.HasPrefix(path, "/v1/assets/"):
			ttl = "public, max-age=600"
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
