package api

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"

	"github.com/verid-io/verid/internal/api/docs"
	"github.com/verid-io/verid/internal/api/handler"
	"github.com/verid-io/verid/internal/api/middleware"
	"github.com/verid-io/verid/internal/config"
)

// Dependencies are the services the router exposes over HTTP.
type Dependencies struct {
	Verification handler.VerificationService
	Liveness     handler.LivenessService
	Stages       handler.StageReadiness
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	cfg         *config.Config
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Verid Inference Gateway",
		// Three document images plus multipart framing
		BodyLimit: int(cfg.MaxUploadBytes()) * 4,
	})

	return &Router{
		app:    app,
		logger: logger,
		cfg:    cfg,
		deps:   deps,
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

	// Swagger documentation
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	v1 := r.app.Group("/api/v1")

	// Health endpoint
	healthHandler := handler.NewHealthHandler(r.deps.Stages)
	v1.Get("/health", healthHandler.Health)

	// Verification is expensive; rate limit per client
	r.rateLimiter = middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	v1.Use(r.rateLimiter.Handler())

	// KYC routes
	kycHandler := handler.NewKYCHandler(r.deps.Verification, r.cfg.MaxUploadBytes(), r.logger)
	kyc := v1.Group("/kyc")
	kyc.Post("/verify", kycHandler.Verify)
	kyc.Post("/ocr", kycHandler.ExtractOCR)

	// Liveness routes
	livenessHandler := handler.NewLivenessHandler(r.deps.Liveness, r.logger)
	liveness := v1.Group("/liveness")
	liveness.Get("/challenge", livenessHandler.Challenge)
	liveness.Post("/verify", livenessHandler.Verify)
	liveness.Post("/detect", livenessHandler.Detect)
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
