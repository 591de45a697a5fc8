// Package health описывает входные биометрические данные, которые питают
// движок прогрессии: суточные метрики и скользящие средние по истории.
package health

import (
	"sort"

	"github.com/pulsepet/progression/pkg/timeutil"
)

// Значения по умолчанию, когда у пользователя ещё нет истории.
const (
	DefaultSteps      = 7500.0
	DefaultSleepHours = 7.0
	DefaultHRV        = 40.0

	// AverageWindowDays - сколько последних дней участвует в средних.
	AverageWindowDays = 14

	// HistoryRetentionDays - сколько дней хранится в rolling history.
	HistoryRetentionDays = 30
)

// DailyMetrics - метрики за один календарный день (UTC).
type DailyMetrics struct {
	// Date - ключ дня в формате YYYY-MM-DD.
	Date string `json:"date"`

	// Steps - количество шагов.
	Steps int `json:"steps"`

	// SleepHours - часы сна (nil, если нет данных).
	SleepHours *float64 `json:"sleep_hours,omitempty"`

	// HRV - вариабельность сердечного ритма в мс (nil, если нет данных).
	HRV *float64 `json:"hrv_ms,omitempty"`
}

// HasSleep возвращает true, если за день есть данные о сне.
func (m DailyMetrics) HasSleep() bool { return m.SleepHours != nil }

// HasHRV возвращает true, если за день есть данные HRV.
func (m DailyMetrics) HasHRV() bool { return m.HRV != nil }

// Sleep возвращает часы сна или 0.
func (m DailyMetrics) Sleep() float64 {
	if m.SleepHours == nil {
		return 0
	}
	return *m.SleepHours
}

// HRVValue возвращает HRV или 0.
func (m DailyMetrics) HRVValue() float64 {
	if m.HRV == nil {
		return 0
	}
	return *m.HRV
}

// Float - помощник для построения опциональных значений.
func Float(v float64) *float64 { return &v }

// Averages - средние значения пользователя по трём метрикам.
type Averages struct {
	Steps      float64
	SleepHours float64
	HRV        float64

	// Флаги наличия истории по каждой метрике.
	HasSteps bool
	HasSleep bool
	HasHRV   bool
}

// ComputeAverages считает средние по последним AverageWindowDays дням.
// Метрики без данных получают значения по умолчанию.
func ComputeAverages(history []DailyMetrics) Averages {
	recent := Recent(history, AverageWindowDays)

	avg := Averages{
		Steps:      DefaultSteps,
		SleepHours: DefaultSleepHours,
		HRV:        DefaultHRV,
	}

	var stepsSum, sleepSum, hrvSum float64
	var stepsN, sleepN, hrvN int
	for _, d := range recent {
		if d.Steps > 0 {
			stepsSum += float64(d.Steps)
			stepsN++
		}
		if d.HasSleep() {
			sleepSum += d.Sleep()
			sleepN++
		}
		if d.HasHRV() {
			hrvSum += d.HRVValue()
			hrvN++
		}
	}

	if stepsN > 0 {
		avg.Steps = stepsSum / float64(stepsN)
		avg.HasSteps = true
	}
	if sleepN > 0 {
		avg.SleepHours = sleepSum / float64(sleepN)
		avg.HasSleep = true
	}
	if hrvN > 0 {
		avg.HRV = hrvSum / float64(hrvN)
		avg.HasHRV = true
	}

	return avg
}

// Recent возвращает последние n дней истории, отсортированные по дате.
// Записи с некорректной датой отбрасываются.
func Recent(history []DailyMetrics, n int) []DailyMetrics {
	valid := make([]DailyMetrics, 0, len(history))
	for _, d := range history {
		if timeutil.IsValidDateKey(d.Date) {
			valid = append(valid, d)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Date < valid[j].Date
	})
	if n > 0 && len(valid) > n {
		valid = valid[len(valid)-n:]
	}
	return valid
}

// Merge вставляет или заменяет день в истории и обрезает её до limit дней.
func Merge(history []DailyMetrics, day DailyMetrics, limit int) []DailyMetrics {
	out := make([]DailyMetrics, 0, len(history)+1)
	replaced := false
	for _, d := range history {
		if d.Date == day.Date {
			out = append(out, day)
			replaced = true
			continue
		}
		out = append(out, d)
	}
	if !replaced {
		out = append(out, day)
	}
	return Recent(out, limit)
}
