// Package http exposes the progression engine as a REST API on fiber.
package http

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/pulsepet/progression/internal/application/progression"
	"github.com/pulsepet/progression/internal/interface/http/handlers"
	"github.com/pulsepet/progression/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// BodyLimit - maximum request body size in bytes.
	BodyLimit int

	// AllowedOrigins - CORS origins; empty disables CORS.
	AllowedOrigins []string

	// APIKeyHeader - header name for API key authentication.
	APIKeyHeader string

	// APIKeys - keys accepted on administrative routes (user reset).
	APIKeys []string

	// DisableReset - do not mount the user reset route.
	DisableReset bool
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BodyLimit:    1 << 20,
		APIKeyHeader: "X-API-Key",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains everything the handlers need.
type Dependencies struct {
	Engine  *progression.Engine
	Updater handlers.HealthUpdater
	Health  *handlers.HealthChecker
	Logger  *logger.Logger

	// Features enables the flag admin routes; they are mounted only when
	// API keys are configured.
	Features handlers.FeatureAdmin
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config Config
	app    *fiber.App
	log    *logger.Logger
}

// NewServer creates a fiber app with middleware and routes.
func NewServer(config Config, deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Component("http"))
	if deps.Health == nil {
		deps.Health = handlers.NewHealthChecker("")
	}

	app := fiber.New(fiber.Config{
		AppName:               "progression",
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		IdleTimeout:           config.IdleTimeout,
		BodyLimit:             config.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          handlers.ErrorHandler(log),
		// Route params outlive the handler as event user ids and lock keys.
		Immutable: true,
	})

	s := &Server{config: config, app: app, log: log}
	s.setupMiddleware()
	s.setupRoutes(deps)
	return s
}

func (s *Server) setupMiddleware() {
	s.app.Use(recover.New())
	s.app.Use(handlers.RequestID(s.log))
	s.app.Use(handlers.RequestLogger(s.log))

	if len(s.config.AllowedOrigins) > 0 {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins:  strings.Join(s.config.AllowedOrigins, ","),
			AllowMethods:  "GET,POST,DELETE,OPTIONS",
			AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + handlers.HeaderRequestID + ", " + s.config.APIKeyHeader,
			ExposeHeaders: handlers.HeaderRequestID,
			MaxAge:        86400,
		}))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupRoutes(deps Dependencies) {
	s.app.Get("/health", deps.Health.Handler)
	s.app.Get("/healthz", deps.Health.Handler)

	auth := handlers.NewAPIKeyAuth(s.config.APIKeyHeader, s.config.APIKeys).Middleware()
	var admin fiber.Handler
	if !s.config.DisableReset {
		admin = auth
	}
	api := s.app.Group("/api/v1")
	handlers.NewProgressionHandler(deps.Engine, deps.Updater).Register(api, admin)

	if deps.Features != nil && len(s.config.APIKeys) > 0 {
		handlers.NewFeatureHandler(deps.Features).Register(api, auth)
	}
}

// App returns the underlying fiber app (used by tests).
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", logger.String("address", s.config.Address()))
	return s.app.Listen(s.config.Address())
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down")
	return s.app.ShutdownWithContext(ctx)
}
