package challenge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsepet/progression/internal/domain/health"
	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/pkg/timeutil"
)

// Среда, 4 марта 2026; неделя начинается в понедельник 2 марта.
var now = time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)

func weekDay(n int) string {
	return timeutil.DateKey(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n))
}

func history(steps int, sleep, hrv float64, days int) []health.DailyMetrics {
	out := make([]health.DailyMetrics, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, health.DailyMetrics{
			Date:       timeutil.DateKey(now.AddDate(0, 0, -days+i)),
			Steps:      steps,
			SleepHours: health.Float(sleep),
			HRV:        health.Float(hrv),
		})
	}
	return out
}

func mustTemplate(t *testing.T, id string) Template {
	t.Helper()
	tpl, ok := FindTemplate(DefaultTemplates, id)
	require.True(t, ok, id)
	return tpl
}

func TestPersonalize_ScalesWithAverage(t *testing.T) {
	tpl := mustTemplate(t, "steps_daily_goal")
	weekStart := timeutil.StartOfWeek(now)

	base := Personalize(tpl, health.ComputeAverages(history(8000, 7, 40, 10)), weekStart)
	double := Personalize(tpl, health.ComputeAverages(history(16000, 7, 40, 10)), weekStart)

	assert.Equal(t, 10400.0, base.Objective.Target)
	assert.Equal(t, 2*base.Objective.Target, double.Objective.Target)
	assert.Equal(t, "steps_daily_goal_2026-03-02", base.ID)
	assert.Contains(t, base.Description, "10400")
}

func TestPersonalize_WeeklyTotalMultipliesBySeven(t *testing.T) {
	tpl := mustTemplate(t, "steps_weekly_total")
	c := Personalize(tpl, health.ComputeAverages(history(10000, 7, 40, 5)), now)
	assert.Equal(t, 77000.0, c.Objective.Target)
	assert.Equal(t, timeutil.StartOfWeek(now), c.WeekStart)
	assert.Equal(t, timeutil.EndOfWeek(now), c.WeekEnd)
}

func TestPersonalize_SleepKeepsOneDecimal(t *testing.T) {
	tpl := mustTemplate(t, "sleep_weekly_avg")
	c := Personalize(tpl, health.ComputeAverages(history(8000, 8, 40, 5)), now)
	assert.Equal(t, 8.4, c.Objective.Target)
	assert.Contains(t, c.Description, "8.4")
}

func TestPersonalize_CountTemplates(t *testing.T) {
	avg := health.ComputeAverages(history(9000, 7.5, 50, 7))

	c := Personalize(mustTemplate(t, "steps_consistency"), avg, now)
	assert.Equal(t, 5.0, c.Objective.Target)
	assert.Equal(t, 9000.0, c.Objective.DailyThreshold)

	c = Personalize(mustTemplate(t, "combined_balance"), avg, now)
	assert.Equal(t, 3.0, c.Objective.Target)
	assert.Equal(t, 9000.0, c.Objective.DailyThreshold)
	assert.Equal(t, 7.5, c.Objective.SleepThreshold)
}

func TestPersonalize_DefaultsWithoutHistory(t *testing.T) {
	c := Personalize(mustTemplate(t, "steps_daily_goal"), health.ComputeAverages(nil), now)
	assert.Equal(t, 9750.0, c.Objective.Target) // 7500 × 1.3
}

func TestGenerator_SelectsThreeDiverse(t *testing.T) {
	g := NewGenerator(nil)
	challenges := g.Generate("user-1", history(9000, 7, 45, 14), now)
	require.Len(t, challenges, ChallengesPerWeek)

	types := map[ObjectiveType]bool{}
	ids := map[string]bool{}
	for _, c := range challenges {
		types[c.Objective.Type] = true
		ids[c.ID] = true
		assert.Equal(t, timeutil.StartOfWeek(now), c.WeekStart)
	}
	assert.Len(t, types, ChallengesPerWeek)
	assert.Len(t, ids, ChallengesPerWeek)
}

func TestGenerator_IsDeterministic(t *testing.T) {
	g := NewGenerator(nil)
	h := history(9000, 7, 45, 14)
	a := g.Generate("user-1", h, now)
	b := g.Generate("user-1", h, now.Add(24*time.Hour))
	assert.Equal(t, a, b)
}

func TestGenerator_OnlyStepHistory(t *testing.T) {
	g := NewGenerator(nil)
	h := []health.DailyMetrics{{Date: weekDay(-1), Steps: 6000}}

	for _, user := range []string{"a", "b", "c", "d", "e"} {
		challenges := g.Generate(user, h, now)
		require.Len(t, challenges, ChallengesPerWeek)
		for _, c := range challenges {
			assert.Contains(t, []ObjectiveType{ObjectiveSteps, ObjectiveStreak}, c.Objective.Type,
				"sleep/hrv templates need history")
		}
	}
}

func TestGenerator_NoHistoryStillFillsThree(t *testing.T) {
	challenges := NewGenerator(nil).Generate("user-1", nil, now)
	require.Len(t, challenges, ChallengesPerWeek)

	hasStreak := false
	for _, c := range challenges {
		if c.Objective.Type == ObjectiveStreak {
			hasStreak = true
		}
	}
	assert.True(t, hasStreak, "the always-eligible template is preferred first")
}

func TestEligible(t *testing.T) {
	avg := health.Averages{HasSteps: true}
	assert.True(t, Eligible(mustTemplate(t, "steps_daily_goal"), avg))
	assert.False(t, Eligible(mustTemplate(t, "sleep_quality"), avg))
	assert.False(t, Eligible(mustTemplate(t, "combined_balance"), avg))
	assert.True(t, Eligible(mustTemplate(t, "streak_keeper"), avg))
}

func TestChallenge_ProgressClampsAndCompletes(t *testing.T) {
	c := Challenge{Objective: Objective{Target: 100}}

	assert.False(t, c.SetProgress(40))
	assert.Equal(t, 40.0, c.Progress)
	assert.Equal(t, 40, c.Percentage())

	assert.True(t, c.SetProgress(250))
	assert.Equal(t, 100.0, c.Progress)

	assert.True(t, c.Complete(now))
	assert.False(t, c.Complete(now.Add(time.Hour)))
	assert.Equal(t, now, *c.CompletedAt)

	assert.False(t, c.SetProgress(10))
	assert.Equal(t, 100.0, c.Progress, "completed challenge rejects updates")
}

func TestEvaluate(t *testing.T) {
	week := []health.DailyMetrics{
		{Date: weekDay(-1), Steps: 50000, SleepHours: health.Float(10)}, // прошлая неделя
		{Date: weekDay(0), Steps: 8000, SleepHours: health.Float(7.0), HRV: health.Float(50)},
		{Date: weekDay(1), Steps: 12000, SleepHours: health.Float(8.5)},
		{Date: weekDay(2), Steps: 4000, SleepHours: health.Float(6.0), HRV: health.Float(40)},
	}
	today := weekDay(2)
	base := Challenge{WeekStart: timeutil.StartOfWeek(now), WeekEnd: timeutil.EndOfWeek(now)}

	with := func(obj Objective) Challenge {
		c := base
		c.Objective = obj
		return c
	}

	assert.Equal(t, 24000.0, Evaluate(with(Objective{Type: ObjectiveSteps, Scoring: ScoringWeeklyTotal}), week, today, 0))
	assert.Equal(t, 12000.0, Evaluate(with(Objective{Type: ObjectiveSteps, Scoring: ScoringDailyMax}), week, today, 0))
	assert.Equal(t, 2.0, Evaluate(with(Objective{Type: ObjectiveSteps, Scoring: ScoringDaysMeeting, DailyThreshold: 8000}), week, today, 0))
	assert.Equal(t, 7.2, Evaluate(with(Objective{Type: ObjectiveSleep, Scoring: ScoringWeeklyAverage}), week, today, 0))
	assert.Equal(t, 45.0, Evaluate(with(Objective{Type: ObjectiveHRV, Scoring: ScoringWeeklyAverage}), week, today, 0))
	assert.Equal(t, 1.0, Evaluate(with(Objective{Type: ObjectiveHRV, Scoring: ScoringDaysMeeting, DailyThreshold: 45}), week, today, 0))
	assert.Equal(t, 2.0, Evaluate(with(Objective{Type: ObjectiveCombined, Scoring: ScoringCombinedDays,
		DailyThreshold: 8000, SleepThreshold: 7}), week, today, 0))

	streakObj := with(Objective{Type: ObjectiveStreak, Scoring: ScoringStreakLength})
	assert.Equal(t, 3.0, Evaluate(streakObj, week, today, 20), "capped by days elapsed in the week")
	assert.Equal(t, 2.0, Evaluate(streakObj, week, today, 2))
}

func TestState_AllCompletedAndValidate(t *testing.T) {
	s := NewState()
	assert.False(t, s.AllCompleted())
	assert.False(t, s.IsCurrentWeek(now))

	challenges := NewGenerator(nil).Generate("u", nil, now)
	s.Replace(timeutil.StartOfWeek(now), challenges)
	require.NoError(t, s.Validate())
	assert.True(t, s.IsCurrentWeek(now))
	assert.False(t, s.IsCurrentWeek(now.AddDate(0, 0, 7)))

	for i := range s.Challenges {
		s.Challenges[i].Complete(now)
	}
	assert.True(t, s.AllCompleted())

	c, ok := s.Find(challenges[0].ID)
	require.True(t, ok)
	assert.True(t, c.Completed)

	s.Challenges[0].Progress = s.Challenges[0].Objective.Target + 1
	assert.True(t, shared.IsCorrupted(s.Validate()))
}
