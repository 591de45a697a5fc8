package progression

import (
	"context"

	"github.com/pulsepet/progression/internal/domain/achievement"
	"github.com/pulsepet/progression/internal/domain/cosmetic"
	"github.com/pulsepet/progression/internal/domain/health"
	"github.com/pulsepet/progression/pkg/logger"
)

// RewardGranter выдаёт косметику по id наград.
type RewardGranter interface {
	GrantRewards(ctx context.Context, userID string, ids []string) ([]cosmetic.Cosmetic, error)
}

// RewardRouter разблокирует достижения и пересылает их косметические награды
// в инвентарь. Это UnlockSink для серий и вызовов: менеджер достижений
// остаётся листом и не знает о косметике.
type RewardRouter struct {
	achievements *AchievementManager
	cosmetics    RewardGranter
	log          *logger.Logger
}

// NewRewardRouter создаёт маршрутизатор наград.
func NewRewardRouter(achievements *AchievementManager, cosmetics RewardGranter, log *logger.Logger) *RewardRouter {
	if log == nil {
		log = logger.Nop()
	}
	return &RewardRouter{
		achievements: achievements,
		cosmetics:    cosmetics,
		log:          log.With(logger.Component("rewards")),
	}
}

// CheckMilestone проверяет метрические достижения и выдаёт их награды.
func (r *RewardRouter) CheckMilestone(ctx context.Context, userID string, metrics health.DailyMetrics) ([]UnlockResult, error) {
	results, err := r.achievements.CheckMilestone(ctx, userID, metrics)
	if err != nil {
		return nil, err
	}
	r.forward(ctx, userID, results...)
	return results, nil
}

// UnlockAchievement разблокирует достижение по id и выдаёт его награды.
func (r *RewardRouter) UnlockAchievement(ctx context.Context, userID, id string) (UnlockResult, error) {
	res, err := r.achievements.UnlockAchievement(ctx, userID, id)
	if err != nil {
		return res, err
	}
	r.forward(ctx, userID, res)
	return res, nil
}

// UnlockByCondition разблокирует достижения по условию и выдаёт их награды.
func (r *RewardRouter) UnlockByCondition(ctx context.Context, userID string, condition achievement.ConditionType, value float64) ([]UnlockResult, error) {
	results, err := r.achievements.UnlockByCondition(ctx, userID, condition, value)
	if err != nil {
		return nil, err
	}
	r.forward(ctx, userID, results...)
	return results, nil
}

func (r *RewardRouter) forward(ctx context.Context, userID string, results ...UnlockResult) {
	if r.cosmetics == nil {
		return
	}
	var ids []string
	for _, res := range results {
		if res.IsNewUnlock {
			ids = append(ids, res.CosmeticsUnlocked...)
		}
	}
	if len(ids) == 0 {
		return
	}
	if _, err := r.cosmetics.GrantRewards(ctx, userID, ids); err != nil {
		r.log.Error("cosmetic reward forwarding failed",
			logger.UserID(userID), logger.Any("cosmetics", ids), logger.Err(err))
	}
}
