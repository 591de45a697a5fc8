// Package progression содержит прикладные сервисы движка прогрессии:
// достижения, серии, недельные вызовы и косметику. Каждый сервис работает
// по схеме "прочитать - изменить - сохранить" поверх своего репозитория.
//
// Сбой хранилища не прерывает конвейер: чтения возвращают состояние по
// умолчанию, изменения превращаются в "без изменений в этом цикле".
package progression

import (
	"context"
	"time"

	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// OPTIONS
// ══════════════════════════════════════════════════════════════════════════════

type options struct {
	clock     shared.Clock
	log       *logger.Logger
	publisher shared.EventPublisher
}

// Option настраивает сервис.
type Option func(*options)

// WithClock подменяет источник времени.
func WithClock(c shared.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithPublisher задаёт шину для исходящих событий разблокировки.
func WithPublisher(p shared.EventPublisher) Option {
	return func(o *options) { o.publisher = p }
}

func buildOptions(component string, opts []Option) options {
	o := options{clock: shared.SystemClock, log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	o.log = o.log.With(logger.Component(component))
	return o
}

func (o options) now() time.Time { return o.clock().UTC() }

// publish отправляет событие; ошибка шины только логируется.
func (o options) publish(event shared.Event) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(event); err != nil {
		o.log.Warn("event publish failed",
			logger.String("event_type", string(event.EventType())),
			logger.UserID(event.AggregateID()),
			logger.Err(err),
		)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LOAD POLICY
// ══════════════════════════════════════════════════════════════════════════════

// loadStatus - итог чтения пользовательского состояния.
type loadStatus int

const (
	// statusLoaded - состояние прочитано.
	statusLoaded loadStatus = iota
	// statusFresh - состояния нет или оно повреждено; используется значение
	// по умолчанию, которое перезапишет blob при следующем сохранении.
	statusFresh
	// statusUnavailable - хранилище недоступно; изменения пропускаются.
	statusUnavailable
)

// writable возвращает true, если поверх состояния можно выполнять изменения.
func (s loadStatus) writable() bool { return s != statusUnavailable }

// loadOrDefault читает состояние и применяет политику деградации.
func loadOrDefault[T any](
	ctx context.Context,
	o options,
	op, userID string,
	load func(context.Context, string) (*T, error),
	def func() *T,
) (*T, loadStatus) {
	state, err := load(ctx, userID)
	switch {
	case err == nil:
		return state, statusLoaded
	case shared.IsNotFound(err):
		return def(), statusFresh
	case shared.IsCorrupted(err):
		o.log.Warn("stored state is corrupt, starting from defaults",
			logger.Operation(op), logger.UserID(userID), logger.Err(err))
		return def(), statusFresh
	default:
		o.log.Error("storage read failed, no progression change this cycle",
			logger.Operation(op), logger.UserID(userID), logger.Err(err))
		return def(), statusUnavailable
	}
}

// saveOrLog сохраняет состояние. Ошибка уже прошла повторы в шлюзе хранилища
// и здесь только логируется: изменение считается потерянным.
func saveOrLog(ctx context.Context, o options, op, userID string, save func(context.Context) error) bool {
	if err := save(ctx); err != nil {
		o.log.Error("storage write lost",
			logger.Operation(op), logger.UserID(userID), logger.Err(err))
		return false
	}
	return true
}

func requireUser(domain, op, userID string) error {
	if userID == "" {
		return shared.NewDomainError(domain, op, shared.ErrEmptyUserID, "user id is required")
	}
	return nil
}

