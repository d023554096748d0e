package api

import (
	"fmt"
	"time"

	"mspace-gateway/internal/auth"
	"mspace-gateway/internal/observability"
	"mspace-gateway/internal/rate"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

func SetupMiddleware(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics) {
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(requestid.New())

	// Permissive CORS on every response; OPTIONS preflight short-circuits
	// here before auth or business logic.
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key,Idempotency-Key",
	}))

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()

		logger.Info("http_request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("request_id", c.Get("X-Request-ID")),
		)

		if metrics != nil {
			metrics.HTTPRequestsTotal.WithLabelValues(
				c.Method(), c.Path(), fmt.Sprintf("%d", status),
			).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(
				c.Method(), c.Path(), fmt.Sprintf("%d", status),
			).Observe(duration.Seconds())
		}

		return err
	})
}

// RateLimit guards the dispatch routes. Registered after auth on the v1
// group so the account is already in the request context.
func RateLimit(logger *zap.Logger, rateLimiter *rate.Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		account, err := auth.AccountFromContext(c)
		if err != nil {
			return c.Next()
		}

		allowed, retryAfter, err := rateLimiter.Allow(c.Context(), account.ID)
		if err != nil {
			logger.Error("rate limiting error", zap.Error(err))
			return fail(c, fiber.StatusInternalServerError, "rate limiting error")
		}

		if !allowed {
			c.Set("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
			return fail(c, fiber.StatusTooManyRequests, "rate limit exceeded")
		}

		return c.Next()
	}
}
