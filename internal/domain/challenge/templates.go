package challenge

import (
	"github.com/pulsepet/progression/internal/domain/achievement"
)

// Template - запись каталога шаблонов.
//
// Для шаблонов с подсчётом дней (ScoringDaysMeeting, ScoringCombinedDays)
// персонализируется дневной порог, а цель - фиксированное число дней DaysTarget.
// Для остальных цель = round(среднее × Multiplier), недельные суммы
// предварительно умножаются на 7.
type Template struct {
	ID          string
	Title       string
	Description string
	Objective   ObjectiveType
	Scoring     Scoring
	Unit        string
	Multiplier  float64
	DaysTarget  int
	BonusPoints int

	// AchievementID - достижение, выдаваемое при выполнении (опционально).
	AchievementID string
}

// Плейсхолдеры в Title/Description.
const (
	PlaceholderTarget    = "{target}"
	PlaceholderThreshold = "{threshold}"
)

// DefaultTemplates - статический каталог шаблонов.
var DefaultTemplates = []Template{
	{ID: "steps_weekly_total", Title: "Неделя в движении",
		Description: "Пройдите {target} шагов за неделю",
		Objective:   ObjectiveSteps, Scoring: ScoringWeeklyTotal, Unit: "steps",
		Multiplier: 1.1, BonusPoints: 150, AchievementID: achievement.IDStepMaster},
	{ID: "steps_daily_goal", Title: "Рекордный день",
		Description: "Пройдите {target} шагов за один день",
		Objective:   ObjectiveSteps, Scoring: ScoringDailyMax, Unit: "steps",
		Multiplier: 1.3, BonusPoints: 100},
	{ID: "steps_consistency", Title: "Стабильный шаг",
		Description: "Проходите не меньше {threshold} шагов в {target} дней недели",
		Objective:   ObjectiveSteps, Scoring: ScoringDaysMeeting, Unit: "days",
		Multiplier: 1.0, DaysTarget: 5, BonusPoints: 120},
	{ID: "sleep_weekly_avg", Title: "Выспаться",
		Description: "Спите в среднем {target} ч за неделю",
		Objective:   ObjectiveSleep, Scoring: ScoringWeeklyAverage, Unit: "hours",
		Multiplier: 1.05, BonusPoints: 120, AchievementID: achievement.IDSleepSage},
	{ID: "sleep_quality", Title: "Качественный сон",
		Description: "Спите не меньше {threshold} ч в {target} ночей",
		Objective:   ObjectiveSleep, Scoring: ScoringDaysMeeting, Unit: "days",
		Multiplier: 1.05, DaysTarget: 4, BonusPoints: 100},
	{ID: "hrv_weekly_avg", Title: "Ровный пульс",
		Description: "Держите средний HRV на уровне {target} мс",
		Objective:   ObjectiveHRV, Scoring: ScoringWeeklyAverage, Unit: "ms",
		Multiplier: 1.1, BonusPoints: 130, AchievementID: achievement.IDHeartWhisperer},
	{ID: "hrv_steady", Title: "Восстановление",
		Description: "HRV не ниже {threshold} мс в {target} дней",
		Objective:   ObjectiveHRV, Scoring: ScoringDaysMeeting, Unit: "days",
		Multiplier: 1.0, DaysTarget: 4, BonusPoints: 100},
	{ID: "streak_keeper", Title: "Хранитель серии",
		Description: "Держите серию хороших дней {target} дней этой недели",
		Objective:   ObjectiveStreak, Scoring: ScoringStreakLength, Unit: "days",
		DaysTarget: 5, BonusPoints: 110},
	{ID: "combined_balance", Title: "Баланс",
		Description: "{target} дня с {threshold} шагами и полноценным сном",
		Objective:   ObjectiveCombined, Scoring: ScoringCombinedDays, Unit: "days",
		Multiplier: 1.0, DaysTarget: 3, BonusPoints: 140},
}

// FindTemplate ищет шаблон по id.
func FindTemplate(templates []Template, id string) (Template, bool) {
	for _, t := range templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}
