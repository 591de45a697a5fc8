package progression

import (
	"context"
	"fmt"

	"github.com/pulsepet/progression/internal/domain/achievement"
	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/internal/domain/streak"
	"github.com/pulsepet/progression/pkg/logger"
)

// UnlockSink - точка разблокировки достижений для серий и вызовов.
// Реализуется RewardRouter, который пересылает награды в инвентарь.
type UnlockSink interface {
	UnlockAchievement(ctx context.Context, userID, id string) (UnlockResult, error)
	UnlockByCondition(ctx context.Context, userID string, condition achievement.ConditionType, value float64) ([]UnlockResult, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// StreakTracker ведёт непрерывную серию "хороших" дней.
type StreakTracker struct {
	repo streak.Repository
	sink UnlockSink
	opts options
}

// NewStreakTracker создаёт трекер. sink может быть nil: тогда вехи только
// публикуются событиями.
func NewStreakTracker(repo streak.Repository, sink UnlockSink, opts ...Option) *StreakTracker {
	return &StreakTracker{repo: repo, sink: sink, opts: buildOptions("streaks", opts)}
}

// load читает состояние. Если счётчики отсутствуют или повреждены, состояние
// восстанавливается из сохранённой истории дней. Второе значение true,
// если состояние было пересчитано и его нужно сохранить.
func (t *StreakTracker) load(ctx context.Context, op, userID string) (*streak.State, bool, loadStatus) {
	state, err := t.repo.Load(ctx, userID)
	switch {
	case err == nil:
		return state, false, statusLoaded
	case shared.IsNotFound(err), shared.IsCorrupted(err):
	default:
		t.opts.log.Error("storage read failed, no progression change this cycle",
			logger.Operation(op), logger.UserID(userID), logger.Err(err))
		return streak.NewState(), false, statusUnavailable
	}

	corrupt := shared.IsCorrupted(err)
	history, herr := t.repo.LoadHistory(ctx, userID)
	switch {
	case herr == nil && len(history) > 0:
		replayed := streak.Replay(history)
		t.opts.log.Warn("streak state rebuilt from history",
			logger.Operation(op), logger.UserID(userID),
			logger.Int("days", len(history)),
			logger.Int("current", replayed.Current),
			logger.Bool("was_corrupt", corrupt),
		)
		return replayed, true, statusFresh
	case herr == nil, shared.IsNotFound(herr), shared.IsCorrupted(herr):
		if corrupt {
			t.opts.log.Warn("streak state is corrupt and no history is retained, resetting",
				logger.Operation(op), logger.UserID(userID), logger.Err(err))
		}
		return streak.NewState(), corrupt, statusFresh
	default:
		t.opts.log.Error("streak history read failed, no progression change this cycle",
			logger.Operation(op), logger.UserID(userID), logger.Err(herr))
		return streak.NewState(), false, statusUnavailable
	}
}

// RecordDailyProgress учитывает день date (YYYY-MM-DD) с признаком met.
// При точном достижении вехи разблокирует её достижение через UnlockSink.
func (t *StreakTracker) RecordDailyProgress(ctx context.Context, userID, date string, met bool) (streak.RecordResult, error) {
	if err := requireUser("streak", "RecordDailyProgress", userID); err != nil {
		return streak.RecordResult{}, err
	}

	state, recovered, status := t.load(ctx, "RecordDailyProgress", userID)
	if !status.writable() {
		return streak.RecordResult{}, nil
	}

	res, err := state.Record(date, met)
	if err != nil {
		return streak.RecordResult{}, err
	}
	if res.Ignored && !recovered {
		return res, nil
	}

	if !saveOrLog(ctx, t.opts, "RecordDailyProgress", userID, func(ctx context.Context) error {
		return t.repo.Save(ctx, userID, state)
	}) {
		return streak.RecordResult{}, nil
	}

	if res.WasReset {
		t.opts.log.Info("streak reset",
			logger.UserID(userID),
			logger.Int("previous", res.PreviousStreak),
			logger.Int("current", res.NewStreak),
		)
	}
	if res.MilestoneReached != nil {
		t.reachMilestone(ctx, userID, *res.MilestoneReached)
	}
	return res, nil
}

func (t *StreakTracker) reachMilestone(ctx context.Context, userID string, m streak.Milestone) {
	t.opts.log.Info("streak milestone reached",
		logger.UserID(userID),
		logger.Int("days", m.Days),
		logger.AchievementID(m.AchievementID),
	)
	t.opts.publish(shared.StreakMilestoneEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventStreakMilestone, userID, t.opts.now()),
		Days:          m.Days,
		AchievementID: m.AchievementID,
	})

	if t.sink == nil {
		return
	}
	if _, err := t.sink.UnlockAchievement(ctx, userID, m.AchievementID); err != nil {
		t.opts.log.Error("milestone unlock failed",
			logger.UserID(userID), logger.AchievementID(m.AchievementID), logger.Err(err))
	}
}

// Current возвращает текущее состояние серии (с восстановлением из истории,
// но без сохранения).
func (t *StreakTracker) Current(ctx context.Context, userID string) (*streak.State, error) {
	if err := requireUser("streak", "Current", userID); err != nil {
		return nil, err
	}
	state, _, _ := t.load(ctx, "Current", userID)
	return state, nil
}

// Reset удаляет состояние серии пользователя.
func (t *StreakTracker) Reset(ctx context.Context, userID string) error {
	if err := t.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("reset streak: %w", err)
	}
	return nil
}
