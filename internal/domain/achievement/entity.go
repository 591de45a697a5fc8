// Package achievement содержит каталог достижений и пользовательское
// состояние поверх него: отметки о получении и прогресс.
package achievement

import (
	"math"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Category - категория достижения.
type Category string

const (
	CategoryHealthMilestone     Category = "health_milestone"
	CategoryStreakReward        Category = "streak_reward"
	CategoryChallengeCompletion Category = "challenge_completion"
	CategoryExploration         Category = "exploration"
	CategorySpecialEvent        Category = "special_event"
)

// IsValid проверяет категорию.
func (c Category) IsValid() bool {
	switch c {
	case CategoryHealthMilestone, CategoryStreakReward, CategoryChallengeCompletion,
		CategoryExploration, CategorySpecialEvent:
		return true
	}
	return false
}

// Rarity - редкость. Порядок: common < rare < epic < legendary.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Rank возвращает порядковый номер редкости (0 для неизвестной).
func (r Rarity) Rank() int {
	switch r {
	case RarityCommon:
		return 1
	case RarityRare:
		return 2
	case RarityEpic:
		return 3
	case RarityLegendary:
		return 4
	}
	return 0
}

// IsValid проверяет редкость.
func (r Rarity) IsValid() bool { return r.Rank() > 0 }

// ConditionType - метрика или событие, по которому проверяется условие.
type ConditionType string

const (
	// Прямые числовые метрики (проверяются в CheckMilestone).
	ConditionSteps      ConditionType = "steps"
	ConditionSleepHours ConditionType = "sleep_hours"
	ConditionHRV        ConditionType = "hrv_ms"

	// Нематрические условия (UnlockByCondition).
	ConditionStreakDays          ConditionType = "streak_days"
	ConditionChallengesCompleted ConditionType = "challenges_completed"
	ConditionEvolutionCount      ConditionType = "evolution_count"
	ConditionAllWeeklyChallenges ConditionType = "all_weekly_challenges"
	ConditionCustom              ConditionType = "custom"

	// ConditionChallengeReward выдаётся только напрямую по id из награды вызова.
	ConditionChallengeReward ConditionType = "challenge_reward"
)

// IsMetric возвращает true для прямых числовых метрик.
func (t ConditionType) IsMetric() bool {
	return t == ConditionSteps || t == ConditionSleepHours || t == ConditionHRV
}

// Comparison - оператор сравнения.
type Comparison string

const (
	CompareGTE         Comparison = "gte"
	CompareEQ          Comparison = "eq"
	CompareConsecutive Comparison = "consecutive"
)

// Condition - условие разблокировки.
type Condition struct {
	Type       ConditionType `json:"type"`
	Threshold  float64       `json:"threshold"`
	Comparison Comparison    `json:"comparison"`
}

// Satisfied проверяет условие для значения.
// "consecutive" трактуется как пороговое сравнение (>=): значение уже
// является длиной непрерывной серии, которую считает вызывающий.
func (c Condition) Satisfied(value float64) bool {
	switch c.Comparison {
	case CompareEQ:
		return value == c.Threshold
	case CompareGTE, CompareConsecutive:
		return value >= c.Threshold
	}
	return false
}

// Achievement - неизменяемая запись каталога.
type Achievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Category    Category  `json:"category"`
	Rarity      Rarity    `json:"rarity"`
	Condition   Condition `json:"condition"`

	// CosmeticRewards - идентификаторы косметики, выдаваемой при получении.
	CosmeticRewards []string `json:"cosmetic_rewards,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// USER STATE
// ══════════════════════════════════════════════════════════════════════════════

// Progress - прогресс по одному достижению.
type Progress struct {
	Current    float64 `json:"current"`
	Target     float64 `json:"target"`
	Percentage int     `json:"percentage"`
}

// NewProgress считает процент: round(current/target*100), ограничено [0,100].
func NewProgress(current, target float64) Progress {
	p := Progress{Current: current, Target: target}
	if target <= 0 {
		p.Percentage = 100
		return p
	}
	pct := int(math.Round(current / target * 100))
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	p.Percentage = pct
	return p
}

// State - пользовательский слой над каталогом.
type State struct {
	// Unlocked - время получения по id достижения.
	Unlocked map[string]time.Time `json:"unlocked"`

	// Progress - прогресс по id достижения.
	Progress map[string]Progress `json:"progress"`
}

// NewState создаёт пустое состояние.
func NewState() *State {
	return &State{
		Unlocked: make(map[string]time.Time),
		Progress: make(map[string]Progress),
	}
}

// IsUnlocked возвращает true, если достижение уже получено.
func (s *State) IsUnlocked(id string) bool {
	_, ok := s.Unlocked[id]
	return ok
}

// Unlock отмечает достижение полученным. Возвращает false, если оно уже было
// получено: повторная разблокировка ничего не меняет.
func (s *State) Unlock(a Achievement, at time.Time) bool {
	if s.IsUnlocked(a.ID) {
		return false
	}
	s.Unlocked[a.ID] = at.UTC()
	target := a.Condition.Threshold
	s.Progress[a.ID] = Progress{Current: target, Target: target, Percentage: 100}
	return true
}

// Validate проверяет структурную целостность состояния.
func (s *State) Validate(catalog *Catalog) error {
	if s.Unlocked == nil || s.Progress == nil {
		return errMissingMaps
	}
	for id, at := range s.Unlocked {
		if _, ok := catalog.Get(id); !ok {
			return errUnknownID(id)
		}
		if at.IsZero() {
			return errZeroUnlock(id)
		}
	}
	for id, p := range s.Progress {
		if _, ok := catalog.Get(id); !ok {
			return errUnknownID(id)
		}
		if p.Percentage < 0 || p.Percentage > 100 {
			return errBadPercentage(id)
		}
	}
	return nil
}

// Earned - полученное достижение вместе со временем получения.
type Earned struct {
	Achievement Achievement `json:"achievement"`
	UnlockedAt  time.Time   `json:"unlocked_at"`
}

// View - запись каталога с пользовательским слоем (для чтения/фильтрации).
type View struct {
	Achievement
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
	Progress   Progress   `json:"progress"`
}

// IsUnlocked возвращает true, если достижение получено.
func (v View) IsUnlocked() bool { return v.UnlockedAt != nil }
