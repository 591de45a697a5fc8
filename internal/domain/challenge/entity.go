// Package challenge содержит модель персонализированных недельных вызовов:
// шаблоны, генерацию целей по истории здоровья и подсчёт прогресса.
package challenge

import (
	"fmt"
	"math"
	"time"

	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/pkg/timeutil"
)

// ChallengesPerWeek - сколько вызовов выдаётся на неделю.
const ChallengesPerWeek = 3

// ObjectiveType - класс метрики, которую измеряет вызов.
type ObjectiveType string

const (
	ObjectiveSteps    ObjectiveType = "steps"
	ObjectiveSleep    ObjectiveType = "sleep"
	ObjectiveHRV      ObjectiveType = "hrv"
	ObjectiveStreak   ObjectiveType = "streak"
	ObjectiveCombined ObjectiveType = "combined"
)

// Scoring - способ подсчёта прогресса по недельным данным.
type Scoring string

const (
	ScoringWeeklyTotal   Scoring = "weekly_total"   // сумма за неделю
	ScoringDailyMax      Scoring = "daily_max"      // лучший день недели
	ScoringDaysMeeting   Scoring = "days_meeting"   // дни с метрикой не ниже порога
	ScoringWeeklyAverage Scoring = "weekly_average" // среднее по дням с данными
	ScoringStreakLength  Scoring = "streak_length"  // длина серии внутри недели
	ScoringCombinedDays  Scoring = "combined_days"  // дни, где выполнены оба порога
)

// Objective - цель вызова с уже подставленными персональными значениями.
type Objective struct {
	Type    ObjectiveType `json:"type"`
	Scoring Scoring       `json:"scoring"`
	Target  float64       `json:"target"`
	Unit    string        `json:"unit"`

	// DailyThreshold - дневной порог для подсчёта "засчитанных" дней.
	DailyThreshold float64 `json:"daily_threshold,omitempty"`

	// SleepThreshold - второй порог комбинированного вызова (часы сна).
	SleepThreshold float64 `json:"sleep_threshold,omitempty"`
}

// Reward - награда за выполнение.
type Reward struct {
	BonusPoints   int    `json:"bonus_points"`
	AchievementID string `json:"achievement_id,omitempty"`
}

// Challenge - вызов на конкретную неделю.
type Challenge struct {
	ID          string    `json:"id"`
	TemplateID  string    `json:"template_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Objective   Objective `json:"objective"`
	Reward      Reward    `json:"reward"`
	WeekStart   time.Time `json:"week_start"`
	WeekEnd     time.Time `json:"week_end"`

	Progress    float64    `json:"progress"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ChallengeID строит стабильный идентификатор templateID_YYYY-MM-DD.
func ChallengeID(templateID string, weekStart time.Time) string {
	return templateID + "_" + timeutil.DateKey(weekStart)
}

// SetProgress устанавливает прогресс, ограничивая его целью.
// Для выполненного вызова ничего не меняет и возвращает false.
// Возвращает true, если цель достигнута.
func (c *Challenge) SetProgress(value float64) bool {
	if c.Completed {
		return false
	}
	if value < 0 {
		value = 0
	}
	if value >= c.Objective.Target {
		c.Progress = c.Objective.Target
		return true
	}
	c.Progress = value
	return false
}

// Complete отмечает вызов выполненным. Повторный вызов ничего не меняет
// и возвращает false.
func (c *Challenge) Complete(at time.Time) bool {
	if c.Completed {
		return false
	}
	c.Completed = true
	c.Progress = c.Objective.Target
	t := at.UTC()
	c.CompletedAt = &t
	return true
}

// Percentage - прогресс в процентах (0..100).
func (c Challenge) Percentage() int {
	if c.Objective.Target <= 0 {
		return 100
	}
	return int(math.Round(math.Min(c.Progress/c.Objective.Target, 1) * 100))
}

// IsActiveAt возвращает true, если момент t попадает в неделю вызова.
func (c Challenge) IsActiveAt(t time.Time) bool {
	return !t.Before(c.WeekStart) && !t.After(c.WeekEnd)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

// State - вызовы пользователя на текущую неделю и накопленные итоги.
type State struct {
	// WeekStart - ключ понедельника недели активных вызовов.
	WeekStart  string      `json:"week_start"`
	Challenges []Challenge `json:"challenges"`

	// BonusPoints - сумма бонусных очков за все выполненные вызовы.
	BonusPoints int `json:"bonus_points"`

	// CompletedCount - количество выполненных вызовов за всё время.
	CompletedCount int `json:"completed_count"`

	// ChampionWeek - неделя, за которую уже выдан бонус "все вызовы".
	ChampionWeek string `json:"champion_week,omitempty"`
}

// NewState создаёт пустое состояние.
func NewState() *State {
	return &State{Challenges: []Challenge{}}
}

// Find ищет вызов по id.
func (s *State) Find(id string) (*Challenge, bool) {
	for i := range s.Challenges {
		if s.Challenges[i].ID == id {
			return &s.Challenges[i], true
		}
	}
	return nil, false
}

// AllCompleted возвращает true, если все вызовы недели выполнены.
func (s *State) AllCompleted() bool {
	if len(s.Challenges) == 0 {
		return false
	}
	for _, c := range s.Challenges {
		if !c.Completed {
			return false
		}
	}
	return true
}

// IsCurrentWeek возвращает true, если вызовы выданы на неделю момента now.
func (s *State) IsCurrentWeek(now time.Time) bool {
	return len(s.Challenges) > 0 && s.WeekStart == timeutil.DateKey(timeutil.StartOfWeek(now))
}

// Replace заменяет вызовы новой недели. Итоги сохраняются.
func (s *State) Replace(weekStart time.Time, challenges []Challenge) {
	s.WeekStart = timeutil.DateKey(weekStart)
	s.Challenges = challenges
}

// Validate проверяет структурную целостность состояния.
func (s *State) Validate() error {
	if s.Challenges == nil {
		return errCorrupt("challenge list is missing")
	}
	if s.BonusPoints < 0 || s.CompletedCount < 0 {
		return errCorrupt("negative totals")
	}
	if len(s.Challenges) > 0 && !timeutil.IsValidDateKey(s.WeekStart) {
		return errCorrupt("invalid week start")
	}
	seen := make(map[string]struct{}, len(s.Challenges))
	for _, c := range s.Challenges {
		if c.ID == "" {
			return errCorrupt("challenge without id")
		}
		if _, dup := seen[c.ID]; dup {
			return errCorrupt(fmt.Sprintf("duplicate challenge %q", c.ID))
		}
		seen[c.ID] = struct{}{}
		if c.Objective.Target <= 0 {
			return errCorrupt(fmt.Sprintf("challenge %q has non-positive target", c.ID))
		}
		if c.Progress < 0 || c.Progress > c.Objective.Target {
			return errCorrupt(fmt.Sprintf("challenge %q progress out of range", c.ID))
		}
		if c.Completed && c.CompletedAt == nil {
			return errCorrupt(fmt.Sprintf("challenge %q completed without timestamp", c.ID))
		}
	}
	return nil
}

func errCorrupt(msg string) error {
	return shared.NewDomainError("challenge", "Validate", shared.ErrCorrupted, msg)
}

// ErrChallengeNotFound - обращение к неизвестному вызову.
func ErrChallengeNotFound(id string) error {
	return shared.NotFoundf("challenge", "Find", "challenge %q not found", id)
}
