package progression

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsepet/progression/internal/domain/achievement"
	"github.com/pulsepet/progression/internal/domain/challenge"
	"github.com/pulsepet/progression/internal/domain/health"
	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/internal/domain/streak"
	"github.com/pulsepet/progression/pkg/logger"
	"github.com/pulsepet/progression/pkg/timeutil"
)

// StreakReader - доступ к текущей серии для вызовов типа "streak".
type StreakReader interface {
	Current(ctx context.Context, userID string) (*streak.State, error)
}

// CompletionResult - итог выполнения вызова.
type CompletionResult struct {
	Challenge challenge.Challenge `json:"challenge"`

	// IsNewCompletion false для уже выполненного вызова.
	IsNewCompletion bool `json:"is_new_completion"`
	BonusPoints     int  `json:"bonus_points"`

	// WeeklyChampion - этим выполнением закрыты все вызовы недели.
	WeeklyChampion bool `json:"weekly_champion"`
}

// ProgressReport - итог пересчёта прогресса всех вызовов.
type ProgressReport struct {
	Challenges []challenge.Challenge `json:"challenges"`
	Completed  []CompletionResult    `json:"completed"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeTracker генерирует недельные вызовы и ведёт их прогресс.
type ChallengeTracker struct {
	repo      challenge.Repository
	generator *challenge.Generator
	streaks   StreakReader
	sink      UnlockSink
	opts      options
}

// NewChallengeTracker создаёт трекер. nil-генератор заменяется генератором
// с шаблонами по умолчанию.
func NewChallengeTracker(repo challenge.Repository, gen *challenge.Generator, streaks StreakReader, sink UnlockSink, opts ...Option) *ChallengeTracker {
	if gen == nil {
		gen = challenge.NewGenerator(nil)
	}
	return &ChallengeTracker{
		repo:      repo,
		generator: gen,
		streaks:   streaks,
		sink:      sink,
		opts:      buildOptions("challenges", opts),
	}
}

func (t *ChallengeTracker) load(ctx context.Context, op, userID string) (*challenge.State, loadStatus) {
	return loadOrDefault(ctx, t.opts, op, userID, t.repo.Load, challenge.NewState)
}

func (t *ChallengeTracker) save(ctx context.Context, op, userID string, state *challenge.State) bool {
	return saveOrLog(ctx, t.opts, op, userID, func(ctx context.Context) error {
		return t.repo.Save(ctx, userID, state)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// GENERATION
// ══════════════════════════════════════════════════════════════════════════════

// GenerateWeeklyChallenges строит вызовы текущей недели по истории метрик и
// заменяет ими сохранённые. Прогресс вызовов с тем же id переносится, поэтому
// повторная генерация в ту же неделю не обнуляет и не дублирует награды.
func (t *ChallengeTracker) GenerateWeeklyChallenges(ctx context.Context, userID string, history []health.DailyMetrics) ([]challenge.Challenge, error) {
	if err := requireUser("challenge", "GenerateWeeklyChallenges", userID); err != nil {
		return nil, err
	}
	state, status := t.load(ctx, "GenerateWeeklyChallenges", userID)
	if !status.writable() {
		return nil, nil
	}
	return t.rotate(ctx, userID, state, history)
}

// EnsureCurrentWeek генерирует вызовы, только если сохранённые относятся к
// прошлой неделе или отсутствуют. Второе значение true, если был новый набор.
func (t *ChallengeTracker) EnsureCurrentWeek(ctx context.Context, userID string, history []health.DailyMetrics) ([]challenge.Challenge, bool, error) {
	if err := requireUser("challenge", "EnsureCurrentWeek", userID); err != nil {
		return nil, false, err
	}
	state, status := t.load(ctx, "EnsureCurrentWeek", userID)
	if !status.writable() {
		return nil, false, nil
	}
	if state.IsCurrentWeek(t.opts.now()) {
		return state.Challenges, false, nil
	}
	out, err := t.rotate(ctx, userID, state, history)
	return out, out != nil, err
}

func (t *ChallengeTracker) rotate(ctx context.Context, userID string, state *challenge.State, history []health.DailyMetrics) ([]challenge.Challenge, error) {
	now := t.opts.now()
	generated := t.generator.Generate(userID, history, now)

	sameWeek := state.IsCurrentWeek(now)
	for i := range generated {
		if !sameWeek {
			break
		}
		if prev, ok := state.Find(generated[i].ID); ok {
			generated[i].Progress = prev.Progress
			generated[i].Completed = prev.Completed
			generated[i].CompletedAt = prev.CompletedAt
		}
	}

	weekStart := timeutil.StartOfWeek(now)
	state.Replace(weekStart, generated)
	if !t.save(ctx, "GenerateWeeklyChallenges", userID, state) {
		return nil, nil
	}

	ids := make([]string, len(generated))
	for i, c := range generated {
		ids[i] = c.ID
	}
	t.opts.log.Info("weekly challenges generated",
		logger.UserID(userID),
		logger.String("week_start", state.WeekStart),
		logger.Any("challenges", ids),
	)
	t.opts.publish(shared.ChallengesRotatedEvent{
		BaseEvent:    shared.NewBaseEvent(shared.EventChallengesRotated, userID, now),
		WeekStart:    state.WeekStart,
		ChallengeIDs: ids,
	})
	return generated, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// UpdateAllChallengeProgress пересчитывает прогресс активных невыполненных
// вызовов по метрикам недели. today - ключ текущего дня. Вызовы, достигшие
// цели, выполняются.
func (t *ChallengeTracker) UpdateAllChallengeProgress(ctx context.Context, userID, today string, week []health.DailyMetrics) (ProgressReport, error) {
	report := ProgressReport{Challenges: []challenge.Challenge{}, Completed: []CompletionResult{}}
	if err := requireUser("challenge", "UpdateAllChallengeProgress", userID); err != nil {
		return report, err
	}
	day, err := timeutil.ParseDateKey(today)
	if err != nil {
		return report, shared.WrapError("challenge", "UpdateAllChallengeProgress", shared.ErrInvalidFormat,
			fmt.Sprintf("invalid date key %q", today), err)
	}

	state, status := t.load(ctx, "UpdateAllChallengeProgress", userID)
	if !status.writable() {
		return report, nil
	}
	report.Challenges = state.Challenges

	streakLen := t.currentStreak(ctx, userID)
	now := t.opts.now()
	changed := false
	var completed []*challenge.Challenge

	for i := range state.Challenges {
		c := &state.Challenges[i]
		if c.Completed || !c.IsActiveAt(day) {
			continue
		}
		value := challenge.Evaluate(*c, week, today, streakLen)
		before := c.Progress
		reached := c.SetProgress(value)
		if c.Progress != before {
			changed = true
		}
		if reached {
			completed = append(completed, c)
		}
	}

	results := make([]CompletionResult, 0, len(completed))
	for _, c := range completed {
		results = append(results, t.markComplete(state, c, now))
		changed = true
	}

	if !changed {
		return report, nil
	}
	if !t.save(ctx, "UpdateAllChallengeProgress", userID, state) {
		return ProgressReport{Challenges: []challenge.Challenge{}, Completed: []CompletionResult{}}, nil
	}

	for _, r := range results {
		t.distribute(ctx, userID, state, r)
	}
	report.Challenges = state.Challenges
	report.Completed = results
	return report, nil
}

// UpdateChallengeProgress задаёт прогресс вызова напрямую. Значение
// ограничивается целью; достижение цели выполняет вызов.
func (t *ChallengeTracker) UpdateChallengeProgress(ctx context.Context, userID, id string, progress float64) (challenge.Challenge, error) {
	if err := requireUser("challenge", "UpdateChallengeProgress", userID); err != nil {
		return challenge.Challenge{}, err
	}
	state, status := t.load(ctx, "UpdateChallengeProgress", userID)
	c, ok := state.Find(id)
	if !ok {
		if !status.writable() {
			return challenge.Challenge{}, nil
		}
		return challenge.Challenge{}, challenge.ErrChallengeNotFound(id)
	}
	if c.Completed {
		return *c, nil
	}

	var result *CompletionResult
	if c.SetProgress(progress) {
		r := t.markComplete(state, c, t.opts.now())
		result = &r
	}
	if !t.save(ctx, "UpdateChallengeProgress", userID, state) {
		return challenge.Challenge{}, nil
	}
	if result != nil {
		t.distribute(ctx, userID, state, *result)
	}
	return *c, nil
}

// CompleteChallenge выполняет вызов. Повторный вызов ничего не меняет и
// возвращает IsNewCompletion=false.
func (t *ChallengeTracker) CompleteChallenge(ctx context.Context, userID, id string) (CompletionResult, error) {
	if err := requireUser("challenge", "CompleteChallenge", userID); err != nil {
		return CompletionResult{}, err
	}
	state, status := t.load(ctx, "CompleteChallenge", userID)
	c, ok := state.Find(id)
	if !ok {
		if !status.writable() {
			return CompletionResult{}, nil
		}
		return CompletionResult{}, challenge.ErrChallengeNotFound(id)
	}
	if c.Completed {
		return CompletionResult{Challenge: *c}, nil
	}

	res := t.markComplete(state, c, t.opts.now())
	if !t.save(ctx, "CompleteChallenge", userID, state) {
		return CompletionResult{}, nil
	}
	t.distribute(ctx, userID, state, res)
	return res, nil
}

// Current возвращает сохранённые вызовы и итоги пользователя.
func (t *ChallengeTracker) Current(ctx context.Context, userID string) (*challenge.State, error) {
	if err := requireUser("challenge", "Current", userID); err != nil {
		return nil, err
	}
	state, _ := t.load(ctx, "Current", userID)
	return state, nil
}

// Reset удаляет вызовы пользователя.
func (t *ChallengeTracker) Reset(ctx context.Context, userID string) error {
	if err := t.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("reset challenges: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION
// ══════════════════════════════════════════════════════════════════════════════

// markComplete меняет только состояние: выполнение, очки, счётчик и отметку
// чемпиона недели. Побочные эффекты выполняет distribute после сохранения.
func (t *ChallengeTracker) markComplete(state *challenge.State, c *challenge.Challenge, at time.Time) CompletionResult {
	c.Complete(at)
	state.BonusPoints += c.Reward.BonusPoints
	state.CompletedCount++

	res := CompletionResult{IsNewCompletion: true, BonusPoints: c.Reward.BonusPoints}
	if state.AllCompleted() && state.ChampionWeek != state.WeekStart {
		state.ChampionWeek = state.WeekStart
		res.WeeklyChampion = true
	}
	res.Challenge = *c
	return res
}

func (t *ChallengeTracker) distribute(ctx context.Context, userID string, state *challenge.State, r CompletionResult) {
	c := r.Challenge
	t.opts.log.Info("challenge completed",
		logger.UserID(userID),
		logger.ChallengeID(c.ID),
		logger.Int("bonus_points", r.BonusPoints),
		logger.Bool("weekly_champion", r.WeeklyChampion),
	)
	t.opts.publish(shared.ChallengeCompletedEvent{
		BaseEvent:   shared.NewBaseEvent(shared.EventChallengeCompleted, userID, t.opts.now()),
		ChallengeID: c.ID,
		Title:       c.Title,
		BonusPoints: r.BonusPoints,
	})

	if t.sink == nil {
		return
	}
	if id := c.Reward.AchievementID; id != "" {
		if _, err := t.sink.UnlockAchievement(ctx, userID, id); err != nil {
			t.logUnlockError(userID, c.ID, err)
		}
	}
	if _, err := t.sink.UnlockByCondition(ctx, userID, achievement.ConditionChallengesCompleted, float64(state.CompletedCount)); err != nil {
		t.logUnlockError(userID, c.ID, err)
	}
	if r.WeeklyChampion {
		if _, err := t.sink.UnlockByCondition(ctx, userID, achievement.ConditionAllWeeklyChallenges, 1); err != nil {
			t.logUnlockError(userID, c.ID, err)
		}
	}
}

func (t *ChallengeTracker) logUnlockError(userID, challengeID string, err error) {
	t.opts.log.Error("challenge reward unlock failed",
		logger.UserID(userID), logger.ChallengeID(challengeID), logger.Err(err))
}

func (t *ChallengeTracker) currentStreak(ctx context.Context, userID string) int {
	if t.streaks == nil {
		return 0
	}
	s, err := t.streaks.Current(ctx, userID)
	if err != nil || s == nil {
		return 0
	}
	return s.Current
}
