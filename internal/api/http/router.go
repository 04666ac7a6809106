package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Stagnxzione/ra-userbot/internal/api/http/handlers"
	"github.com/Stagnxzione/ra-userbot/internal/auth"
	"github.com/Stagnxzione/ra-userbot/internal/observability"
)

// Deps are the cross-cutting dependencies of the middlewares.
type Deps struct {
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Timeout time.Duration
}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	WebApp         *handlers.WebAppHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Get)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)
	api.Post("/from_webapp", cfg.WebApp.FromWebApp)
}

// NewApp builds the fiber application with middlewares and routes attached.
func NewApp(name string, deps Deps, cfg RouteConfig) *fiber.App {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	app := fiber.New(fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, deps.Logger, deps.Metrics, deps.Timeout)
	RegisterRoutes(app, cfg)
	return app
}
