package messaging

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/pkg/logger"
	"github.com/pulsepet/progression/pkg/retry"
)

// Middleware wraps a handler.
type Middleware func(shared.EventHandler) shared.EventHandler

// Chain applies middlewares so that the first one is the outermost.
func Chain(h shared.EventHandler, mws ...Middleware) shared.EventHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Recover turns a handler panic into an error.
func Recover(log *logger.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("event handler panic",
						logger.String("event_type", string(event.EventType())),
						logger.Any("panic", r),
						logger.String("stack", string(debug.Stack())),
					)
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			return next(event)
		}
	}
}

// Retry re-runs a failing handler with the given retrier. Handlers are
// expected to be idempotent per event id.
func Retry(r *retry.Retrier) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			return r.Do(context.Background(), func(context.Context) error {
				return next(event)
			})
		}
	}
}
