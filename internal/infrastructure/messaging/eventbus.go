// Package messaging delivers progression events (unlocks, milestones, completed
// challenges) from the engine to in-process subscribers such as the notifier.
package messaging

import (
	"errors"
	"sync"
	"time"

	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/pkg/logger"
)

// Errors returned by the bus.
var (
	ErrBusClosed  = errors.New("event bus is closed")
	ErrNilHandler = errors.New("handler cannot be nil")
	ErrNilEvent   = errors.New("event cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// BUS
// ══════════════════════════════════════════════════════════════════════════════

// Bus is an in-process publish/subscribe bus implementing shared.EventPublisher.
//
// In synchronous mode Publish returns after every handler has run, in the
// caller's goroutine. In async mode handlers run on a bounded pool and Close
// waits for them to drain.
type Bus struct {
	mu       sync.RWMutex
	byType   map[shared.EventType][]shared.EventHandler
	catchAll []shared.EventHandler

	async   bool
	slots   chan struct{}
	closeCh chan struct{}
	closed  bool
	wg      sync.WaitGroup

	log   *logger.Logger
	stats *Stats
}

// Options configures a Bus.
type Options struct {
	// Async runs handlers on a worker pool instead of inline.
	Async bool

	// Workers bounds concurrent async handlers.
	Workers int

	Logger *logger.Logger
}

// DefaultOptions returns the synchronous configuration used by the engine.
func DefaultOptions() Options {
	return Options{Workers: 8}
}

// NewBus creates a bus.
func NewBus(opts Options) *Bus {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	return &Bus{
		byType:  make(map[shared.EventType][]shared.EventHandler),
		async:   opts.Async,
		slots:   make(chan struct{}, opts.Workers),
		closeCh: make(chan struct{}),
		log:     opts.Logger.With(logger.Component("event_bus")),
		stats:   newStats(),
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	b.byType[eventType] = append(b.byType[eventType], handler)
	return nil
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	b.catchAll = append(b.catchAll, handler)
	return nil
}

// Publish delivers the event. Handler failures are logged and counted, never
// returned: a broken subscriber must not fail the progression update.
func (b *Bus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	typed := b.byType[event.EventType()]
	handlers := make([]shared.EventHandler, 0, len(typed)+len(b.catchAll))
	handlers = append(handlers, typed...)
	handlers = append(handlers, b.catchAll...)
	b.mu.RUnlock()

	b.stats.published(event.EventType())
	if len(handlers) == 0 {
		return nil
	}

	for _, h := range handlers {
		if b.async {
			b.dispatch(event, h)
			continue
		}
		b.run(event, h)
	}
	return nil
}

func (b *Bus) dispatch(event shared.Event, h shared.EventHandler) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		select {
		case b.slots <- struct{}{}:
			defer func() { <-b.slots }()
		case <-b.closeCh:
			return
		}
		b.run(event, h)
	}()
}

func (b *Bus) run(event shared.Event, h shared.EventHandler) {
	start := time.Now()
	err := h(event)
	b.stats.handled(err == nil)
	if err != nil {
		b.log.Error("event handler failed",
			logger.String("event_type", string(event.EventType())),
			logger.UserID(event.AggregateID()),
			logger.Duration("duration", time.Since(start)),
			logger.Err(err),
		)
	}
}

// Close stops accepting events and waits for in-flight async handlers.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	b.mu.Unlock()

	b.wg.Wait()
	b.log.Info("event bus closed")
	return nil
}

// Stats returns a snapshot of delivery counters.
func (b *Bus) Stats() StatsSnapshot {
	return b.stats.snapshot()
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS
// ══════════════════════════════════════════════════════════════════════════════

// Stats counts bus activity.
type Stats struct {
	mu        sync.Mutex
	byType    map[shared.EventType]int64
	succeeded int64
	failed    int64
}

// StatsSnapshot is a copy of the counters.
type StatsSnapshot struct {
	Published map[shared.EventType]int64 `json:"published"`
	Succeeded int64                      `json:"succeeded"`
	Failed    int64                      `json:"failed"`
}

func newStats() *Stats {
	return &Stats{byType: make(map[shared.EventType]int64)}
}

func (s *Stats) published(t shared.EventType) {
	s.mu.Lock()
	s.byType[t]++
	s.mu.Unlock()
}

func (s *Stats) handled(ok bool) {
	s.mu.Lock()
	if ok {
		s.succeeded++
	} else {
		s.failed++
	}
	s.mu.Unlock()
}

func (s *Stats) snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := StatsSnapshot{
		Published: make(map[shared.EventType]int64, len(s.byType)),
		Succeeded: s.succeeded,
		Failed:    s.failed,
	}
	for k, v := range s.byType {
		out.Published[k] = v
	}
	return out
}
