package achievement

import (
	"math"
	"sort"
)

// Status - фильтр по статусу получения.
type Status string

const (
	StatusAll    Status = ""
	StatusEarned Status = "earned"
	StatusLocked Status = "locked"
)

// Filter - проекция каталога для чтения. Пустые поля не фильтруют.
type Filter struct {
	Category Category
	Status   Status
	Rarity   Rarity
}

// Project строит представления каталога с пользовательским слоем.
func Project(catalog *Catalog, state *State, f Filter) []View {
	var out []View
	for _, a := range catalog.All() {
		if f.Category != "" && a.Category != f.Category {
			continue
		}
		if f.Rarity != "" && a.Rarity != f.Rarity {
			continue
		}

		v := View{Achievement: a}
		if at, ok := state.Unlocked[a.ID]; ok {
			at := at
			v.UnlockedAt = &at
		}
		if p, ok := state.Progress[a.ID]; ok {
			v.Progress = p
		} else {
			v.Progress = NewProgress(0, a.Condition.Threshold)
		}

		switch f.Status {
		case StatusEarned:
			if !v.IsUnlocked() {
				continue
			}
		case StatusLocked:
			if v.IsUnlocked() {
				continue
			}
		}
		out = append(out, v)
	}
	return out
}

// Statistics - сводка по достижениям пользователя.
type Statistics struct {
	TotalEarned          int      `json:"total_earned"`
	TotalAvailable       int      `json:"total_available"`
	CompletionPercentage int      `json:"completion_percentage"`
	Rarest               *Earned  `json:"rarest,omitempty"`
	Recent               []Earned `json:"recent"`
}

// ComputeStatistics считает статистику. Самое редкое - наибольшая редкость,
// ничьи разрешаются порядком каталога. Recent - последние n по времени.
func ComputeStatistics(catalog *Catalog, state *State, recentN int) Statistics {
	stats := Statistics{TotalAvailable: catalog.Len(), Recent: []Earned{}}

	earned := make([]Earned, 0, len(state.Unlocked))
	for _, a := range catalog.All() {
		at, ok := state.Unlocked[a.ID]
		if !ok {
			continue
		}
		earned = append(earned, Earned{Achievement: a, UnlockedAt: at})
	}
	stats.TotalEarned = len(earned)

	if stats.TotalAvailable > 0 {
		stats.CompletionPercentage = int(math.Round(float64(stats.TotalEarned) / float64(stats.TotalAvailable) * 100))
	}

	// earned уже в порядке каталога: строгое ">" сохраняет первую запись.
	for i := range earned {
		if stats.Rarest == nil || earned[i].Achievement.Rarity.Rank() > stats.Rarest.Achievement.Rarity.Rank() {
			e := earned[i]
			stats.Rarest = &e
		}
	}

	if recentN > 0 {
		recent := make([]Earned, len(earned))
		copy(recent, earned)
		sort.SliceStable(recent, func(i, j int) bool {
			return recent[i].UnlockedAt.After(recent[j].UnlockedAt)
		})
		if len(recent) > recentN {
			recent = recent[:recentN]
		}
		stats.Recent = recent
	}

	return stats
}
