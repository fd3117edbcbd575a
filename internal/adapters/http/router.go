package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/geodrop/internal/pkg/metrics"
)

// readTimeout bounds the read-only endpoints. Claims are bounded by the
// mint timeout inside the claim service.
const readTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Request-scoped logger
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// Claims. Every method is routed so non-POST requests get the 405 body.
	claim := ClaimHandler(deps)
	app.All("/api/mintNFT", claim)
	app.All("/v1/claims", claim)

	// Read API: 120 requests per minute per IP, 15s per request
	readLimiter := limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	})

	v1 := app.Group("/v1", readLimiter)
	v1.Get("/policy", PolicyHandler(deps))
	v1.Get("/assets/nearby", timeout.NewWithContext(NearbyAssetsHandler(deps), readTimeout))
	v1.Get("/assets/:id", timeout.NewWithContext(GetAssetHandler(deps), readTimeout))
	v1.Get("/assets/:id/eligibility", timeout.NewWithContext(EligibilityHandler(deps), readTimeout))

	// GraphQL
	app.Post("/graphql", readLimiter, timeout.NewWithContext(GraphQLHandler(deps), readTimeout))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	if deps.Feed != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(WebSocketHandler(deps.Feed)))
	}
}
