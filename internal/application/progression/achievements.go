package progression

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsepet/progression/internal/domain/achievement"
	"github.com/pulsepet/progression/internal/domain/health"
	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT MANAGER
// ══════════════════════════════════════════════════════════════════════════════

// UnlockResult - результат разблокировки одного достижения.
type UnlockResult struct {
	Achievement achievement.Achievement `json:"achievement"`
	UnlockedAt  time.Time               `json:"unlocked_at"`

	// CosmeticsUnlocked - id косметики, которую вызывающий должен передать
	// в инвентарь. Пусто при повторной разблокировке.
	CosmeticsUnlocked []string `json:"cosmetics_unlocked"`

	IsNewUnlock bool `json:"is_new_unlock"`
}

// AchievementManager владеет пользовательским слоем над каталогом достижений.
// Косметику он не трогает: награды возвращаются вызывающему.
type AchievementManager struct {
	repo    achievement.Repository
	catalog *achievement.Catalog
	opts    options
}

// NewAchievementManager создаёт менеджер. nil-каталог заменяется каталогом
// по умолчанию.
func NewAchievementManager(repo achievement.Repository, catalog *achievement.Catalog, opts ...Option) *AchievementManager {
	if catalog == nil {
		catalog = achievement.DefaultCatalog()
	}
	return &AchievementManager{
		repo:    repo,
		catalog: catalog,
		opts:    buildOptions("achievements", opts),
	}
}

// Catalog возвращает каталог менеджера.
func (m *AchievementManager) Catalog() *achievement.Catalog { return m.catalog }

func (m *AchievementManager) load(ctx context.Context, op, userID string) (*achievement.State, loadStatus) {
	return loadOrDefault(ctx, m.opts, op, userID, m.repo.Load, achievement.NewState)
}

// CheckMilestone разблокирует метрические достижения, условие которых
// выполнено метриками дня. Для ещё не полученных метрических достижений
// обновляется прогресс (лучшее значение).
func (m *AchievementManager) CheckMilestone(ctx context.Context, userID string, metrics health.DailyMetrics) ([]UnlockResult, error) {
	if err := requireUser("achievement", "CheckMilestone", userID); err != nil {
		return nil, err
	}

	values := map[achievement.ConditionType]float64{
		achievement.ConditionSteps: float64(metrics.Steps),
	}
	if metrics.HasSleep() {
		values[achievement.ConditionSleepHours] = metrics.Sleep()
	}
	if metrics.HasHRV() {
		values[achievement.ConditionHRV] = metrics.HRVValue()
	}

	return m.unlockMatching(ctx, "CheckMilestone", userID, func(a achievement.Achievement) (float64, bool) {
		if !a.Condition.Type.IsMetric() {
			return 0, false
		}
		v, ok := values[a.Condition.Type]
		return v, ok
	})
}

// UnlockByCondition проверяет все ещё не полученные достижения с условием
// данного типа против значения value.
func (m *AchievementManager) UnlockByCondition(ctx context.Context, userID string, condition achievement.ConditionType, value float64) ([]UnlockResult, error) {
	if err := requireUser("achievement", "UnlockByCondition", userID); err != nil {
		return nil, err
	}
	if condition == achievement.ConditionChallengeReward {
		return nil, shared.NewDomainError("achievement", "UnlockByCondition", shared.ErrInvalidInput,
			"challenge reward achievements are granted by id")
	}

	return m.unlockMatching(ctx, "UnlockByCondition", userID, func(a achievement.Achievement) (float64, bool) {
		return value, a.Condition.Type == condition
	})
}

// unlockMatching - общий проход по каталогу. match возвращает значение для
// сравнения и признак того, что запись участвует в проверке.
func (m *AchievementManager) unlockMatching(
	ctx context.Context,
	op, userID string,
	match func(achievement.Achievement) (float64, bool),
) ([]UnlockResult, error) {
	state, status := m.load(ctx, op, userID)
	if !status.writable() {
		return nil, nil
	}

	now := m.opts.now()
	var results []UnlockResult
	changed := false

	for _, a := range m.catalog.All() {
		if state.IsUnlocked(a.ID) {
			continue
		}
		value, ok := match(a)
		if !ok {
			continue
		}
		if a.Condition.Satisfied(value) {
			state.Unlock(a, now)
			results = append(results, newUnlock(a, now))
			changed = true
			continue
		}
		if a.Condition.Type.IsMetric() {
			prev := state.Progress[a.ID]
			if value > prev.Current {
				state.Progress[a.ID] = achievement.NewProgress(value, a.Condition.Threshold)
				changed = true
			}
		}
	}

	if !changed {
		return results, nil
	}
	if !saveOrLog(ctx, m.opts, op, userID, func(ctx context.Context) error {
		return m.repo.Save(ctx, userID, state)
	}) {
		return nil, nil
	}

	for _, r := range results {
		m.announce(userID, r)
	}
	return results, nil
}

// UnlockAchievement разблокирует достижение по id. Повторный вызов
// возвращает прежнюю запись с IsNewUnlock=false и ничего не меняет.
func (m *AchievementManager) UnlockAchievement(ctx context.Context, userID, id string) (UnlockResult, error) {
	if err := requireUser("achievement", "UnlockAchievement", userID); err != nil {
		return UnlockResult{}, err
	}
	a, ok := m.catalog.Get(id)
	if !ok {
		return UnlockResult{}, achievement.ErrAchievementNotFound(id)
	}

	state, status := m.load(ctx, "UnlockAchievement", userID)
	if at, earned := state.Unlocked[id]; earned {
		return UnlockResult{Achievement: a, UnlockedAt: at, CosmeticsUnlocked: []string{}}, nil
	}
	if !status.writable() {
		return UnlockResult{Achievement: a, CosmeticsUnlocked: []string{}}, nil
	}

	now := m.opts.now()
	state.Unlock(a, now)
	if !saveOrLog(ctx, m.opts, "UnlockAchievement", userID, func(ctx context.Context) error {
		return m.repo.Save(ctx, userID, state)
	}) {
		return UnlockResult{Achievement: a, CosmeticsUnlocked: []string{}}, nil
	}

	res := newUnlock(a, now)
	m.announce(userID, res)
	return res, nil
}

// UpdateProgress пересчитывает процент без разблокировки.
// Для полученного достижения возвращает сохранённые 100%.
func (m *AchievementManager) UpdateProgress(ctx context.Context, userID, id string, current float64) (achievement.Progress, error) {
	if err := requireUser("achievement", "UpdateProgress", userID); err != nil {
		return achievement.Progress{}, err
	}
	a, ok := m.catalog.Get(id)
	if !ok {
		return achievement.Progress{}, achievement.ErrAchievementNotFound(id)
	}

	state, status := m.load(ctx, "UpdateProgress", userID)
	if state.IsUnlocked(id) {
		return state.Progress[id], nil
	}

	p := achievement.NewProgress(current, a.Condition.Threshold)
	if !status.writable() {
		return p, nil
	}
	state.Progress[id] = p
	saveOrLog(ctx, m.opts, "UpdateProgress", userID, func(ctx context.Context) error {
		return m.repo.Save(ctx, userID, state)
	})
	return p, nil
}

// Statistics возвращает сводку: всего получено, процент, самое редкое и
// recentN последних.
func (m *AchievementManager) Statistics(ctx context.Context, userID string, recentN int) (achievement.Statistics, error) {
	if err := requireUser("achievement", "Statistics", userID); err != nil {
		return achievement.Statistics{}, err
	}
	state, _ := m.load(ctx, "Statistics", userID)
	return achievement.ComputeStatistics(m.catalog, state, recentN), nil
}

// List возвращает проекцию каталога с пользовательским слоем.
func (m *AchievementManager) List(ctx context.Context, userID string, f achievement.Filter) ([]achievement.View, error) {
	if err := requireUser("achievement", "List", userID); err != nil {
		return nil, err
	}
	state, _ := m.load(ctx, "List", userID)
	return achievement.Project(m.catalog, state, f), nil
}

// Reset удаляет состояние достижений пользователя.
func (m *AchievementManager) Reset(ctx context.Context, userID string) error {
	if err := m.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("reset achievements: %w", err)
	}
	return nil
}

func newUnlock(a achievement.Achievement, at time.Time) UnlockResult {
	rewards := make([]string, len(a.CosmeticRewards))
	copy(rewards, a.CosmeticRewards)
	return UnlockResult{Achievement: a, UnlockedAt: at, CosmeticsUnlocked: rewards, IsNewUnlock: true}
}

func (m *AchievementManager) announce(userID string, r UnlockResult) {
	m.opts.log.Info("achievement unlocked",
		logger.UserID(userID),
		logger.AchievementID(r.Achievement.ID),
		logger.String("rarity", string(r.Achievement.Rarity)),
	)
	m.opts.publish(shared.AchievementUnlockedEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventAchievementUnlocked, userID, r.UnlockedAt),
		AchievementID: r.Achievement.ID,
		Name:          r.Achievement.Name,
		Rarity:        string(r.Achievement.Rarity),
		Icon:          r.Achievement.Icon,
		Cosmetics:     r.CosmeticsUnlocked,
	})
}
