package progression

import (
	"context"
	"errors"

	"github.com/pulsepet/progression/internal/domain/achievement"
	"github.com/pulsepet/progression/internal/domain/challenge"
	"github.com/pulsepet/progression/internal/domain/cosmetic"
	"github.com/pulsepet/progression/internal/domain/health"
	"github.com/pulsepet/progression/internal/domain/streak"
	"github.com/pulsepet/progression/pkg/logger"
)

// Repositories - хранилища всех подсистем движка.
type Repositories struct {
	Achievements achievement.Repository
	Streaks      streak.Repository
	Challenges   challenge.Repository
	Cosmetics    cosmetic.Repository
	History      health.HistoryRepository
	Directory    health.UserDirectory
}

// Catalogs - статические каталоги. Пустые поля заменяются каталогами
// по умолчанию.
type Catalogs struct {
	Achievements *achievement.Catalog
	Cosmetics    *cosmetic.Catalog
	Templates    []challenge.Template
}

// Engine собирает четыре компонента и маршрутизатор наград в один граф
// зависимостей. Глобального состояния нет: каждый Engine независим.
type Engine struct {
	Achievements *AchievementManager
	Streaks      *StreakTracker
	Challenges   *ChallengeTracker
	Cosmetics    *CosmeticInventory
	Rewards      *RewardRouter

	History   health.HistoryRepository
	Directory health.UserDirectory

	opts options
}

// NewEngine строит движок.
func NewEngine(repos Repositories, catalogs Catalogs, opts ...Option) *Engine {
	o := buildOptions("engine", opts)

	achievements := NewAchievementManager(repos.Achievements, catalogs.Achievements, opts...)
	cosmetics := NewCosmeticInventory(repos.Cosmetics, catalogs.Cosmetics, opts...)
	rewards := NewRewardRouter(achievements, cosmetics, o.log)
	streaks := NewStreakTracker(repos.Streaks, rewards, opts...)
	challenges := NewChallengeTracker(repos.Challenges, challenge.NewGenerator(catalogs.Templates), streaks, rewards, opts...)

	return &Engine{
		Achievements: achievements,
		Streaks:      streaks,
		Challenges:   challenges,
		Cosmetics:    cosmetics,
		Rewards:      rewards,
		History:      repos.History,
		Directory:    repos.Directory,
		opts:         o,
	}
}

// LoadHistory читает скользящую историю метрик. Отсутствие и повреждение
// дают пустую историю, недоступность хранилища возвращается ошибкой.
func (e *Engine) LoadHistory(ctx context.Context, userID string) ([]health.DailyMetrics, error) {
	if e.History == nil {
		return []health.DailyMetrics{}, nil
	}
	h, status := loadOrDefault(ctx, e.opts, "LoadHistory", userID,
		func(ctx context.Context, id string) (*[]health.DailyMetrics, error) {
			h, err := e.History.Load(ctx, id)
			if err != nil {
				return nil, err
			}
			return &h, nil
		},
		func() *[]health.DailyMetrics { return &[]health.DailyMetrics{} },
	)
	if !status.writable() {
		return *h, errHistoryUnavailable
	}
	return *h, nil
}

var errHistoryUnavailable = errors.New("health history is unavailable")

// ResetUser удаляет всё состояние прогрессии пользователя и убирает его из
// реестра. Ошибки отдельных подсистем объединяются.
func (e *Engine) ResetUser(ctx context.Context, userID string) error {
	if err := requireUser("engine", "ResetUser", userID); err != nil {
		return err
	}

	errs := []error{
		e.Achievements.Reset(ctx, userID),
		e.Streaks.Reset(ctx, userID),
		e.Challenges.Reset(ctx, userID),
		e.Cosmetics.Reset(ctx, userID),
	}
	if e.History != nil {
		errs = append(errs, e.History.Delete(ctx, userID))
	}
	if e.Directory != nil {
		errs = append(errs, e.Directory.Remove(ctx, userID))
	}

	err := errors.Join(errs...)
	if err != nil {
		e.opts.log.Error("user reset incomplete", logger.UserID(userID), logger.Err(err))
		return err
	}
	e.opts.log.Info("user progression reset", logger.UserID(userID))
	return nil
}
