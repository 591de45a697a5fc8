package challenge

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/pulsepet/progression/internal/domain/health"
	"github.com/pulsepet/progression/pkg/timeutil"
)

// Generator выбирает и персонализирует недельные вызовы.
type Generator struct {
	templates []Template
}

// NewGenerator создаёт генератор над каталогом шаблонов.
// Пустой каталог заменяется DefaultTemplates.
func NewGenerator(templates []Template) *Generator {
	if len(templates) == 0 {
		templates = DefaultTemplates
	}
	cp := make([]Template, len(templates))
	copy(cp, templates)
	return &Generator{templates: cp}
}

// Templates возвращает копию каталога.
func (g *Generator) Templates() []Template {
	out := make([]Template, len(g.templates))
	copy(out, g.templates)
	return out
}

// Generate строит ChallengesPerWeek вызовов на неделю момента now.
// Выбор детерминирован для пары (userID, неделя).
func (g *Generator) Generate(userID string, history []health.DailyMetrics, now time.Time) []Challenge {
	avg := health.ComputeAverages(history)
	weekStart := timeutil.StartOfWeek(now)

	selected := g.Select(avg, weekSeed(userID, weekStart))
	out := make([]Challenge, 0, len(selected))
	for _, t := range selected {
		out = append(out, Personalize(t, avg, weekStart))
	}
	return out
}

// Select выбирает шаблоны в три прохода:
//  1. доступные шаблоны, по одному на каждый тип цели;
//  2. остальные доступные;
//  3. остальные шаблоны каталога (цели считаются от значений по умолчанию).
//
// Метрический шаблон доступен, только если по метрике есть история.
func (g *Generator) Select(avg health.Averages, seed uint64) []Template {
	order := make([]int, len(g.templates))
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	picked := make(map[int]bool, ChallengesPerWeek)
	usedTypes := make(map[ObjectiveType]bool)
	out := make([]Template, 0, ChallengesPerWeek)

	take := func(i int) {
		picked[i] = true
		usedTypes[g.templates[i].Objective] = true
		out = append(out, g.templates[i])
	}

	for _, i := range order {
		if len(out) == ChallengesPerWeek {
			return out
		}
		t := g.templates[i]
		if Eligible(t, avg) && !usedTypes[t.Objective] {
			take(i)
		}
	}
	for _, i := range order {
		if len(out) == ChallengesPerWeek {
			return out
		}
		if !picked[i] && Eligible(g.templates[i], avg) {
			take(i)
		}
	}
	for _, i := range order {
		if len(out) == ChallengesPerWeek {
			return out
		}
		if !picked[i] {
			take(i)
		}
	}
	return out
}

// Eligible возвращает true, если у пользователя есть история по метрикам шаблона.
func Eligible(t Template, avg health.Averages) bool {
	switch t.Objective {
	case ObjectiveSteps:
		return avg.HasSteps
	case ObjectiveSleep:
		return avg.HasSleep
	case ObjectiveHRV:
		return avg.HasHRV
	case ObjectiveCombined:
		return avg.HasSteps && avg.HasSleep
	case ObjectiveStreak:
		return true
	}
	return false
}

// Personalize подставляет персональные значения в шаблон.
func Personalize(t Template, avg health.Averages, weekStart time.Time) Challenge {
	weekStart = timeutil.StartOfWeek(weekStart)
	obj := Objective{Type: t.Objective, Scoring: t.Scoring, Unit: t.Unit}
	base := averageFor(t.Objective, avg)
	sleep := t.Objective == ObjectiveSleep

	switch t.Scoring {
	case ScoringWeeklyTotal:
		obj.Target = roundTarget(base*7*t.Multiplier, sleep)
	case ScoringDailyMax, ScoringWeeklyAverage:
		obj.Target = roundTarget(base*t.Multiplier, sleep)
	case ScoringDaysMeeting:
		obj.DailyThreshold = roundTarget(base*t.Multiplier, sleep)
		obj.Target = float64(t.DaysTarget)
	case ScoringCombinedDays:
		obj.DailyThreshold = roundTarget(avg.Steps*t.Multiplier, false)
		obj.SleepThreshold = roundTarget(avg.SleepHours*t.Multiplier, true)
		obj.Target = float64(t.DaysTarget)
	case ScoringStreakLength:
		obj.Target = float64(t.DaysTarget)
	}
	if obj.Target <= 0 {
		obj.Target = 1
	}

	return Challenge{
		ID:          ChallengeID(t.ID, weekStart),
		TemplateID:  t.ID,
		Title:       t.Title,
		Description: render(t.Description, obj, sleep),
		Objective:   obj,
		Reward:      Reward{BonusPoints: t.BonusPoints, AchievementID: t.AchievementID},
		WeekStart:   weekStart,
		WeekEnd:     timeutil.EndOfWeek(weekStart),
	}
}

func averageFor(o ObjectiveType, avg health.Averages) float64 {
	switch o {
	case ObjectiveSleep:
		return avg.SleepHours
	case ObjectiveHRV:
		return avg.HRV
	default:
		return avg.Steps
	}
}

// roundTarget округляет до целого, а часы сна - до одного знака.
func roundTarget(v float64, oneDecimal bool) float64 {
	if oneDecimal {
		return math.Round(v*10) / 10
	}
	return math.Round(v)
}

func render(text string, obj Objective, sleep bool) string {
	counted := obj.Scoring == ScoringDaysMeeting || obj.Scoring == ScoringCombinedDays ||
		obj.Scoring == ScoringStreakLength
	target := formatNumber(obj.Target, sleep && !counted)
	threshold := formatNumber(obj.DailyThreshold, sleep)
	r := strings.NewReplacer(PlaceholderTarget, target, PlaceholderThreshold, threshold)
	return r.Replace(text)
}

func formatNumber(v float64, oneDecimal bool) string {
	if oneDecimal {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', 0, 64)
}

func weekSeed(userID string, weekStart time.Time) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	_, _ = h.Write([]byte(timeutil.DateKey(weekStart)))
	return h.Sum64()
}
