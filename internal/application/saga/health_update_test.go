package saga

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsepet/progression/internal/application/progression"
	"github.com/pulsepet/progression/internal/domain/achievement"
	"github.com/pulsepet/progression/internal/domain/cosmetic"
	"github.com/pulsepet/progression/internal/domain/health"
	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/blob"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/kv"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/progress"
)

var now = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func newSaga(t *testing.T) (*HealthUpdateSaga, *progression.Engine) {
	t.Helper()
	gw := blob.NewGateway(kv.NewMemoryStore())
	achievements := achievement.DefaultCatalog()
	cosmetics := cosmetic.DefaultCatalog()
	clock := shared.FixedClock(now)

	engine := progression.NewEngine(
		progression.Repositories{
			Achievements: progress.NewAchievementRepository(gw, achievements),
			Streaks:      progress.NewStreakRepository(gw, nil),
			Challenges:   progress.NewChallengeRepository(gw),
			Cosmetics:    progress.NewCosmeticRepository(gw, cosmetics),
			History:      progress.NewHealthHistoryRepository(gw),
			Directory:    progress.NewDirectory(gw),
		},
		progression.Catalogs{Achievements: achievements, Cosmetics: cosmetics},
		progression.WithClock(clock),
	)
	return NewHealthUpdateSaga(engine, clock, nil), engine
}

func intPtr(v int) *int { return &v }

func TestExecute_FullFlow(t *testing.T) {
	ctx := context.Background()
	s, engine := newSaga(t)

	res, err := s.Execute(ctx, HealthUpdate{
		UserID:         "u1",
		Today:          health.DailyMetrics{Date: "2026-03-04", Steps: 12000, SleepHours: health.Float(8.5)},
		Qualifying:     true,
		EvolutionCount: intPtr(1),
	})
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"steps_5000", achievement.IDSteps10000, "sleep_8h", achievement.IDFirstEvolution},
		res.NewUnlocks())
	assert.Equal(t, 1, res.Streak.NewStreak)
	assert.True(t, res.ChallengesRotated)
	assert.Len(t, res.Challenges.Challenges, 3)
	assert.Equal(t, now, res.ProcessedAt)

	history, err := engine.LoadHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 12000, history[0].Steps)

	users, err := engine.Directory.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)

	inv, err := engine.Cosmetics.Inventory(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, inv.Items, 4, "sneakers, crown, nightcap, meadow")
}

func TestExecute_RepeatedDayIsQuiet(t *testing.T) {
	ctx := context.Background()
	s, engine := newSaga(t)
	update := HealthUpdate{
		UserID:     "u1",
		Today:      health.DailyMetrics{Date: "2026-03-04", Steps: 6000},
		Qualifying: true,
	}

	_, err := s.Execute(ctx, update)
	require.NoError(t, err)

	update.Today.Steps = 7000
	res, err := s.Execute(ctx, update)
	require.NoError(t, err)
	assert.Empty(t, res.NewUnlocks())
	assert.True(t, res.Streak.Ignored)
	assert.Equal(t, 1, res.Streak.NewStreak)
	assert.False(t, res.ChallengesRotated)

	history, err := engine.LoadHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 7000, history[0].Steps, "same day replaces the stored entry")
}

func TestExecute_WeekFromHistory(t *testing.T) {
	ctx := context.Background()
	s, engine := newSaga(t)

	for _, day := range []string{"2026-03-01", "2026-03-02", "2026-03-03"} {
		require.NoError(t, engine.History.Save(ctx, "u1", health.Merge(mustHistory(t, engine), health.DailyMetrics{Date: day, Steps: 9000}, 30)))
	}

	_, err := s.Execute(ctx, HealthUpdate{UserID: "u1", Today: health.DailyMetrics{Date: "2026-03-04", Steps: 9000}})
	require.NoError(t, err)

	week := weekOf(mustHistory(t, engine), "2026-03-04")
	dates := make([]string, 0, len(week))
	for _, d := range week {
		dates = append(dates, d.Date)
	}
	assert.Equal(t, []string{"2026-03-02", "2026-03-03", "2026-03-04"}, dates)
}

func mustHistory(t *testing.T, engine *progression.Engine) []health.DailyMetrics {
	t.Helper()
	h, err := engine.LoadHistory(context.Background(), "u1")
	require.NoError(t, err)
	return h
}

func TestExecute_Validation(t *testing.T) {
	s, _ := newSaga(t)
	ctx := context.Background()

	_, err := s.Execute(ctx, HealthUpdate{Today: health.DailyMetrics{Date: "2026-03-04"}})
	assert.ErrorIs(t, err, shared.ErrEmptyUserID)

	_, err = s.Execute(ctx, HealthUpdate{UserID: "u1", Today: health.DailyMetrics{Date: "04.03.2026"}})
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)

	_, err = s.Execute(ctx, HealthUpdate{UserID: "u1", Today: health.DailyMetrics{Date: "2026-03-04", Steps: -1}})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = s.Execute(ctx, HealthUpdate{UserID: "u1", Today: health.DailyMetrics{Date: "2026-03-04"}, EvolutionCount: intPtr(-2)})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestExecute_CancelledContext(t *testing.T) {
	s, _ := newSaga(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Execute(ctx, HealthUpdate{UserID: "u1", Today: health.DailyMetrics{Date: "2026-03-04"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecute_SerializesPerUser(t *testing.T) {
	ctx := context.Background()
	s, engine := newSaga(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i%2)
			_, err := s.Execute(ctx, HealthUpdate{
				UserID:     user,
				Today:      health.DailyMetrics{Date: "2026-03-04", Steps: 11000 + i},
				Qualifying: true,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, s.locks.size())
	for _, user := range []string{"u0", "u1"} {
		stats, err := engine.Achievements.Statistics(ctx, user, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.TotalEarned, "steps_5000 and steps_10000 once for %s", user)

		state, err := engine.Streaks.Current(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, 1, state.Current)
	}
}

func TestUserLocks_ReleaseRemovesEntry(t *testing.T) {
	l := newUserLocks()
	release := l.acquire("a")
	assert.Equal(t, 1, l.size())
	release()
	assert.Zero(t, l.size())
}

func TestExecute_StepGateSkipsEvolution(t *testing.T) {
	ctx := context.Background()
	s, _ := newSaga(t)
	s.WithStepGate(func(step HealthUpdateStep, userID string) bool {
		return step != StepEvolution
	})

	res, err := s.Execute(ctx, HealthUpdate{
		UserID:         "u1",
		Today:          health.DailyMetrics{Date: "2026-03-04", Steps: 1000},
		Qualifying:     true,
		EvolutionCount: intPtr(1),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Evolution)
	assert.NotContains(t, res.NewUnlocks(), achievement.IDFirstEvolution)
	assert.Equal(t, 1, res.Streak.NewStreak)
}
