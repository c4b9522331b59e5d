package edge

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/verid-io/verid/internal/api/middleware"
	"github.com/verid-io/verid/internal/config"
	"github.com/verid-io/verid/internal/domain"
)

// Router is the browser-facing Edge Gateway HTTP surface.
type Router struct {
	app     *fiber.App
	logger  *slog.Logger
	cfg     *config.EdgeConfig
	handler *EnduserHandler
}

func NewRouter(cfg *config.EdgeConfig, logger *slog.Logger, handler *EnduserHandler) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Verid Edge Gateway",
		// Base64 inflates images by a third; leave headroom for three of them
		BodyLimit: int(cfg.MaxUploadBytes()) * 6,
	})

	return &Router{
		app:     app,
		logger:  logger,
		cfg:     cfg,
		handler: handler,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(middleware.Timeout(time.Duration(r.cfg.RequestTimeout) * time.Second))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.cfg.CORSAllowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	r.app.Get("/health", r.handler.Health)

	// Legacy enduser contract
	v2 := r.app.Group("/v2/enduser")
	v2.Post("/verify", r.handler.Verify)

	// Canonical routes pass straight through to the Inference Gateway
	r.app.All("/api/v1/*", r.forward)
}

// forward proxies a canonical API call to the Inference Gateway unchanged.
func (r *Router) forward(c *fiber.Ctx) error {
	target := r.cfg.GatewayURL + c.OriginalURL()
	if err := proxy.Do(c, target); err != nil {
		return domain.ErrBackendFailure.WithError(err)
	}
	c.Response().Header.Del(fiber.HeaderServer)
	return nil
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	return r.app.Shutdown()
}
