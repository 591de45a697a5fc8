// Package notification forwards progression events to delivery channels
// (structured log, Redis pub/sub) for the external display queue.
package notification

import (
	"context"
	"errors"
	"time"

	"github.com/pulsepet/progression/internal/domain/notification"
	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/pkg/logger"
)

// Subscriber is the part of the event bus the notifier needs.
type Subscriber interface {
	Subscribe(eventType shared.EventType, handler shared.EventHandler) error
}

// NotifiedEvents are the event types forwarded to the display layer.
var NotifiedEvents = []shared.EventType{
	shared.EventAchievementUnlocked,
	shared.EventStreakMilestone,
	shared.EventCosmeticUnlocked,
	shared.EventChallengeCompleted,
}

// Notifier converts events into notifications and fans them out.
type Notifier struct {
	channels []notification.Channel
	timeout  time.Duration
	log      *logger.Logger
}

// NewNotifier creates a notifier over the given channels.
func NewNotifier(log *logger.Logger, channels ...notification.Channel) *Notifier {
	if log == nil {
		log = logger.Nop()
	}
	return &Notifier{
		channels: channels,
		timeout:  5 * time.Second,
		log:      log.With(logger.Component("notifier")),
	}
}

// Attach subscribes the notifier to every notified event type.
func (n *Notifier) Attach(bus Subscriber, wrap func(shared.EventHandler) shared.EventHandler) error {
	h := shared.EventHandler(n.Handle)
	if wrap != nil {
		h = wrap(h)
	}
	for _, t := range NotifiedEvents {
		if err := bus.Subscribe(t, h); err != nil {
			return err
		}
	}
	return nil
}

// Handle delivers one event to all channels. The returned error joins the
// failures of individual channels.
func (n *Notifier) Handle(event shared.Event) error {
	msg, ok := notification.FromEvent(event)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	var errs []error
	for _, ch := range n.channels {
		res := ch.Send(ctx, msg)
		if !res.Success {
			n.log.Warn("notification delivery failed",
				logger.String("channel", string(res.Channel)),
				logger.UserID(msg.UserID),
				logger.String("kind", string(msg.Kind)),
				logger.Err(res.Error),
			)
			errs = append(errs, res.Error)
		}
	}
	return errors.Join(errs...)
}

// ══════════════════════════════════════════════════════════════════════════════
// CHANNELS
// ══════════════════════════════════════════════════════════════════════════════

// LogChannel writes notifications to the structured log.
type LogChannel struct {
	log *logger.Logger
	now func() time.Time
}

// NewLogChannel creates a LogChannel.
func NewLogChannel(log *logger.Logger) *LogChannel {
	return &LogChannel{log: log, now: time.Now}
}

func (c *LogChannel) Type() notification.ChannelType { return notification.ChannelLog }

func (c *LogChannel) Send(_ context.Context, n *notification.Notification) notification.DeliveryResult {
	c.log.Info("progression notification",
		logger.UserID(n.UserID),
		logger.String("kind", string(n.Kind)),
		logger.String("title", n.Title),
		logger.String("rarity", n.Rarity),
		logger.String("icon", n.Icon),
		logger.String("priority", n.Priority.String()),
	)
	return notification.Succeeded(notification.ChannelLog, c.now())
}

// MessagePublisher publishes a JSON-encodable message. Implemented by the
// Redis publisher.
type MessagePublisher interface {
	Publish(ctx context.Context, message any) error
}

// PubSubChannel publishes notifications to a pub/sub topic.
type PubSubChannel struct {
	pub MessagePublisher
	now func() time.Time
}

// NewPubSubChannel creates a PubSubChannel.
func NewPubSubChannel(pub MessagePublisher) *PubSubChannel {
	return &PubSubChannel{pub: pub, now: time.Now}
}

func (c *PubSubChannel) Type() notification.ChannelType { return notification.ChannelRedis }

func (c *PubSubChannel) Send(ctx context.Context, n *notification.Notification) notification.DeliveryResult {
	if err := c.pub.Publish(ctx, n); err != nil {
		return notification.Failed(notification.ChannelRedis, err)
	}
	return notification.Succeeded(notification.ChannelRedis, c.now())
}
