package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/kv"
	"github.com/pulsepet/progression/pkg/circuitbreaker"
	"github.com/pulsepet/progression/pkg/logger"
	"github.com/pulsepet/progression/pkg/retry"
)

// Status is the outcome of a Load.
type Status int

const (
	StatusFound Status = iota
	StatusAbsent
	StatusCorrupt
	StatusUnavailable
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusAbsent:
		return "absent"
	case StatusCorrupt:
		return "corrupt"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Gateway reads and writes envelopes through a kv.Store.
// Writes are retried with backoff; all store calls go through a circuit
// breaker so a dead backend fails fast.
type Gateway struct {
	store   kv.Store
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
	now     func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRetrier overrides the write retrier.
func WithRetrier(r *retry.Retrier) Option {
	return func(g *Gateway) { g.retrier = r }
}

// WithBreaker overrides the circuit breaker.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(g *Gateway) { g.breaker = cb }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// WithClock sets the clock used for SavedAt.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// NewGateway creates a Gateway over store.
func NewGateway(store kv.Store, opts ...Option) *Gateway {
	g := &Gateway{
		store:   store,
		retrier: retry.StoreWriteRetrier(),
		log:     logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.breaker == nil {
		log := g.log
		g.breaker = circuitbreaker.New("blob-store",
			circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
				log.Warn("store circuit state changed",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()),
				)
			}),
		)
	}
	return g
}

// Load reads key into dest. validate (optional) runs after decoding; a
// validation error makes the blob corrupt. The returned error is non-nil
// only for StatusCorrupt and StatusUnavailable and describes the cause.
func (g *Gateway) Load(ctx context.Context, key string, schema int, dest any, validate func() error) (Status, error) {
	var (
		data  []byte
		found bool
	)
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		data, found, err = g.store.Get(ctx, key)
		return err
	})
	if err != nil {
		g.log.Error("store read failed", logger.StoreKey(key), logger.Err(err))
		return StatusUnavailable, shared.WrapError("blob", "Load", shared.ErrStorage, "read failed", err)
	}
	if !found {
		return StatusAbsent, nil
	}

	if err := Decode(data, schema, dest); err != nil {
		g.log.Warn("stored blob rejected", logger.StoreKey(key), logger.Err(err))
		return StatusCorrupt, shared.WrapError("blob", "Load", shared.ErrCorrupted, "decode failed", err)
	}
	if validate != nil {
		if err := validate(); err != nil {
			g.log.Warn("stored blob failed validation", logger.StoreKey(key), logger.Err(err))
			return StatusCorrupt, shared.WrapError("blob", "Load", shared.ErrCorrupted, "validation failed", err)
		}
	}
	return StatusFound, nil
}

// Save encodes v and writes it with retries.
func (g *Gateway) Save(ctx context.Context, key string, schema int, v any) error {
	data, err := Encode(schema, v, g.now())
	if err != nil {
		return shared.WrapError("blob", "Save", shared.ErrInvalidInput, "encode failed", err)
	}
	return g.write(ctx, "Save", key, func(ctx context.Context) error {
		return g.store.Set(ctx, key, data)
	})
}

// Remove deletes key with retries.
func (g *Gateway) Remove(ctx context.Context, key string) error {
	return g.write(ctx, "Remove", key, func(ctx context.Context) error {
		return g.store.Remove(ctx, key)
	})
}

func (g *Gateway) write(ctx context.Context, op, key string, fn func(context.Context) error) error {
	attempts := 0
	err := g.retrier.Do(ctx, func(ctx context.Context) error {
		attempts++
		err := g.breaker.Execute(ctx, fn)
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, kv.ErrEmptyKey) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		g.log.Error("store write failed",
			logger.Operation(op),
			logger.StoreKey(key),
			logger.Int("attempts", attempts),
			logger.Err(err),
		)
		return shared.WrapError("blob", op, shared.ErrStorage, fmt.Sprintf("write %q failed", key), err)
	}
	return nil
}
