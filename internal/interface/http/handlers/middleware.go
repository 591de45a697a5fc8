package handlers

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pulsepet/progression/pkg/logger"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

const localRequestID = "request_id"

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST ID & LOGGING
// ══════════════════════════════════════════════════════════════════════════════

// RequestID reuses an incoming X-Request-ID or generates a UUID, echoes it in
// the response and stores a request-scoped logger in the user context.
func RequestID(log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(HeaderRequestID, id)
		c.Locals(localRequestID, id)
		c.SetUserContext(logger.WithContext(c.UserContext(), log.With(logger.RequestID(id))))
		return c.Next()
	}
}

// RequestIDFrom returns the id assigned by RequestID.
func RequestIDFrom(c *fiber.Ctx) string {
	id, _ := c.Locals(localRequestID).(string)
	return id
}

// RequestLogger logs every request with status and latency.
func RequestLogger(log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// Let the app error handler write the response so the status is final.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		fields := []logger.Field{
			logger.RequestID(RequestIDFrom(c)),
			logger.String("method", c.Method()),
			logger.String("path", c.Path()),
			logger.Int("status", status),
			logger.Duration("latency", time.Since(start)),
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			log.Error("http request", fields...)
		case status >= fiber.StatusBadRequest:
			log.Warn("http request", fields...)
		default:
			log.Debug("http request", fields...)
		}
		return nil
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// APIKeyAuth guards administrative routes with static API keys.
type APIKeyAuth struct {
	headerName string
	validKeys  map[string]bool
	mu         sync.RWMutex
}

// NewAPIKeyAuth creates a new API key authenticator. With no keys every
// request passes.
func NewAPIKeyAuth(headerName string, keys []string) *APIKeyAuth {
	validKeys := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key != "" {
			validKeys[key] = true
		}
	}
	return &APIKeyAuth{headerName: headerName, validKeys: validKeys}
}

// IsValid checks if an API key is valid.
func (a *APIKeyAuth) IsValid(key string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.validKeys[key]
}

func (a *APIKeyAuth) enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.validKeys) > 0
}

// Middleware checks the API key header, falling back to a Bearer token.
func (a *APIKeyAuth) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !a.enabled() {
			return c.Next()
		}

		key := c.Get(a.headerName)
		if key == "" {
			if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if key == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error: "missing_api_key", Message: "API key is required",
			})
		}
		if !a.IsValid(key) {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error: "invalid_api_key", Message: "Invalid API key",
			})
		}
		return c.Next()
	}
}
