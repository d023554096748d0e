package api

import (
	"mspace-gateway/internal/auth"
	"mspace-gateway/internal/observability"
	"mspace-gateway/internal/rate"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func SetupRoutes(
	app *fiber.App,
	logger *zap.Logger,
	metrics *observability.Metrics,
	handlers *Handlers,
	authService *auth.Service,
	rateLimiter *rate.Limiter,
) {
	SetupMiddleware(app, logger, metrics)

	// Health endpoints (no auth required)
	app.Get("/healthz", handlers.Health)
	app.Get("/readyz", handlers.Ready)

	if metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	// Channel endpoints. One POST per channel; the action field selects
	// the operation.
	v1 := app.Group("/v1", authService.RequireAPIKey(), RateLimit(logger, rateLimiter))
	v1.Post("/sms", handlers.SMS)
	v1.Post("/ussd", handlers.USSD)
	v1.Post("/voice", handlers.Voice)
	v1.Post("/airtime", handlers.Airtime)
}
