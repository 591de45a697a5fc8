// Package notification описывает уведомления о событиях прогрессии,
// которые движок передаёт внешнему слою отображения. Сама очередь показа
// живёт вне движка.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsepet/progression/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHANNEL TYPE
// ══════════════════════════════════════════════════════════════════════════════

// ChannelType - тип канала доставки.
type ChannelType string

const (
	// ChannelLog - запись в структурированный лог.
	ChannelLog ChannelType = "log"

	// ChannelRedis - публикация в Redis pub/sub.
	ChannelRedis ChannelType = "redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRIORITY
// ══════════════════════════════════════════════════════════════════════════════

// Priority - важность уведомления для слоя отображения.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityNormal
	PriorityHigh
)

// String возвращает строковое представление.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	}
	return "unknown"
}

// priorityForRarity: эпические и легендарные награды показываются первыми.
func priorityForRarity(rarity string) Priority {
	switch rarity {
	case "epic", "legendary":
		return PriorityHigh
	case "rare":
		return PriorityNormal
	}
	return PriorityLow
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// Notification - сообщение для слоя отображения.
type Notification struct {
	// ID совпадает с id исходного события.
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      shared.EventType `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body,omitempty"`
	Rarity    string           `json:"rarity,omitempty"`
	Icon      string           `json:"icon,omitempty"`
	Priority  Priority         `json:"priority"`
	CreatedAt time.Time        `json:"created_at"`
}

// FromEvent строит уведомление из события прогрессии.
// Второе значение false для событий, о которых пользователю не сообщают.
func FromEvent(event shared.Event) (*Notification, bool) {
	n := &Notification{
		ID:        event.EventID(),
		UserID:    event.AggregateID(),
		Kind:      event.EventType(),
		CreatedAt: event.OccurredAt(),
		Priority:  PriorityLow,
	}

	switch e := event.(type) {
	case shared.AchievementUnlockedEvent:
		n.Title = e.Name
		n.Rarity = e.Rarity
		n.Icon = e.Icon
		n.Priority = priorityForRarity(e.Rarity)
		if len(e.Cosmetics) > 0 {
			n.Body = fmt.Sprintf("Новых предметов: %d", len(e.Cosmetics))
		}
	case shared.StreakMilestoneEvent:
		n.Title = fmt.Sprintf("Серия %d дней", e.Days)
		n.Icon = "icon_flame"
		n.Priority = PriorityNormal
	case shared.CosmeticUnlockedEvent:
		n.Title = e.Name
		n.Body = e.Category
		n.Rarity = e.Rarity
		n.Priority = priorityForRarity(e.Rarity)
	case shared.ChallengeCompletedEvent:
		n.Title = e.Title
		n.Body = fmt.Sprintf("+%d бонусных очков", e.BonusPoints)
		n.Icon = "icon_flag"
		n.Priority = PriorityNormal
	default:
		return nil, false
	}
	return n, true
}

// ══════════════════════════════════════════════════════════════════════════════
// DELIVERY
// ══════════════════════════════════════════════════════════════════════════════

// DeliveryResult - результат доставки по одному каналу.
type DeliveryResult struct {
	Channel     ChannelType
	Success     bool
	DeliveredAt time.Time
	Error       error
}

// Succeeded создаёт успешный результат.
func Succeeded(ch ChannelType, at time.Time) DeliveryResult {
	return DeliveryResult{Channel: ch, Success: true, DeliveredAt: at}
}

// Failed создаёт неуспешный результат.
func Failed(ch ChannelType, err error) DeliveryResult {
	return DeliveryResult{Channel: ch, Error: err}
}

// Channel - канал доставки уведомлений.
type Channel interface {
	Type() ChannelType
	Send(ctx context.Context, n *Notification) DeliveryResult
}
