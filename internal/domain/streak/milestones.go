package streak

import "github.com/pulsepet/progression/internal/domain/achievement"

// Milestone - порог длины серии и достижение за него.
type Milestone struct {
	Days          int    `json:"days"`
	AchievementID string `json:"achievement_id"`
}

// Milestones - статическая таблица порогов.
var Milestones = []Milestone{
	{Days: 7, AchievementID: achievement.IDStreak7},
	{Days: 14, AchievementID: achievement.IDStreak14},
	{Days: 30, AchievementID: achievement.IDStreak30},
	{Days: 60, AchievementID: achievement.IDStreak60},
	{Days: 90, AchievementID: achievement.IDStreak90},
}

// MilestoneFor ищет порог, точно равный days. Превышение порога не считается.
func MilestoneFor(days int) (Milestone, bool) {
	for _, m := range Milestones {
		if m.Days == days {
			return m, true
		}
	}
	return Milestone{}, false
}

// NextMilestone возвращает ближайший порог больше days.
func NextMilestone(days int) (Milestone, bool) {
	for _, m := range Milestones {
		if m.Days > days {
			return m, true
		}
	}
	return Milestone{}, false
}
