package challenge

import (
	"math"

	"github.com/pulsepet/progression/internal/domain/health"
	"github.com/pulsepet/progression/pkg/timeutil"
)

// Evaluate считает прогресс вызова по дням его недели.
// week - дневные метрики (дни вне недели вызова отбрасываются),
// today - ключ текущего дня, streak - текущая длина серии.
func Evaluate(c Challenge, week []health.DailyMetrics, today string, streak int) float64 {
	days := inWeek(c, week)
	obj := c.Objective

	switch obj.Scoring {
	case ScoringWeeklyTotal:
		var sum float64
		for _, d := range days {
			sum += metricValue(obj.Type, d)
		}
		return sum

	case ScoringDailyMax:
		var best float64
		for _, d := range days {
			best = math.Max(best, metricValue(obj.Type, d))
		}
		return best

	case ScoringDaysMeeting:
		n := 0
		for _, d := range days {
			if hasMetric(obj.Type, d) && metricValue(obj.Type, d) >= obj.DailyThreshold {
				n++
			}
		}
		return float64(n)

	case ScoringWeeklyAverage:
		var sum float64
		n := 0
		for _, d := range days {
			if hasMetric(obj.Type, d) {
				sum += metricValue(obj.Type, d)
				n++
			}
		}
		if n == 0 {
			return 0
		}
		return roundTarget(sum/float64(n), obj.Type == ObjectiveSleep)

	case ScoringCombinedDays:
		n := 0
		for _, d := range days {
			if float64(d.Steps) >= obj.DailyThreshold && d.HasSleep() && d.Sleep() >= obj.SleepThreshold {
				n++
			}
		}
		return float64(n)

	case ScoringStreakLength:
		elapsed := 0
		if k, err := timeutil.DaysBetweenKeys(timeutil.DateKey(c.WeekStart), today); err == nil {
			elapsed = k + 1
		}
		if elapsed < 0 {
			elapsed = 0
		}
		if elapsed > 7 {
			elapsed = 7
		}
		return float64(min(streak, elapsed))
	}
	return 0
}

func inWeek(c Challenge, week []health.DailyMetrics) []health.DailyMetrics {
	out := make([]health.DailyMetrics, 0, len(week))
	seen := make(map[string]bool, len(week))
	for _, d := range health.Recent(week, 0) {
		t, err := timeutil.ParseDateKey(d.Date)
		if err != nil || !c.IsActiveAt(t) || seen[d.Date] {
			continue
		}
		seen[d.Date] = true
		out = append(out, d)
	}
	return out
}

func hasMetric(o ObjectiveType, d health.DailyMetrics) bool {
	switch o {
	case ObjectiveSleep:
		return d.HasSleep()
	case ObjectiveHRV:
		return d.HasHRV()
	default:
		return true
	}
}

func metricValue(o ObjectiveType, d health.DailyMetrics) float64 {
	switch o {
	case ObjectiveSleep:
		return d.Sleep()
	case ObjectiveHRV:
		return d.HRVValue()
	default:
		return float64(d.Steps)
	}
}
