package shared

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event.
type EventType string

// Unlock events consumed by the notification/display collaborator.
const (
	EventAchievementUnlocked EventType = "achievement.unlocked"
	EventStreakMilestone     EventType = "streak.milestone"
	EventCosmeticUnlocked    EventType = "cosmetic.unlocked"
	EventChallengeCompleted  EventType = "challenge.completed"
	EventChallengesRotated   EventType = "challenge.rotated"
)

// Event is the base interface for all domain events.
type Event interface {
	EventID() string
	EventType() EventType
	OccurredAt() time.Time
	// AggregateID is the user whose progression produced the event.
	AggregateID() string
}

// EventHandler handles a published event.
type EventHandler func(event Event) error

// EventPublisher publishes domain events. Implemented by the messaging layer.
type EventPublisher interface {
	Publish(event Event) error
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
}

func (e BaseEvent) EventID() string        { return e.ID }
func (e BaseEvent) EventType() EventType   { return e.Type }
func (e BaseEvent) OccurredAt() time.Time  { return e.Timestamp }
func (e BaseEvent) AggregateID() string    { return e.UserID }

// NewBaseEvent creates a new base event with a fresh id.
func NewBaseEvent(eventType EventType, userID string, at time.Time) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: at.UTC(),
		UserID:    userID,
	}
}

// AchievementUnlockedEvent is emitted on the first unlock of an achievement.
type AchievementUnlockedEvent struct {
	BaseEvent
	AchievementID string   `json:"achievement_id"`
	Name          string   `json:"name"`
	Rarity        string   `json:"rarity"`
	Icon          string   `json:"icon"`
	Cosmetics     []string `json:"cosmetics,omitempty"`
}

// StreakMilestoneEvent is emitted when the streak exactly hits a milestone.
type StreakMilestoneEvent struct {
	BaseEvent
	Days          int    `json:"days"`
	AchievementID string `json:"achievement_id"`
}

// CosmeticUnlockedEvent is emitted when a cosmetic first enters the inventory.
type CosmeticUnlockedEvent struct {
	BaseEvent
	CosmeticID string `json:"cosmetic_id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	Rarity     string `json:"rarity"`
}

// ChallengeCompletedEvent is emitted once per completed challenge.
type ChallengeCompletedEvent struct {
	BaseEvent
	ChallengeID string `json:"challenge_id"`
	Title       string `json:"title"`
	BonusPoints int    `json:"bonus_points"`
}

// ChallengesRotatedEvent is emitted after a new weekly set is generated.
type ChallengesRotatedEvent struct {
	BaseEvent
	WeekStart    string   `json:"week_start"`
	ChallengeIDs []string `json:"challenge_ids"`
}
