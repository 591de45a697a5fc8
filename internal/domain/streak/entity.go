// Package streak содержит модель непрерывной серии "хороших" дней питомца.
//
// Серия считается по календарным дням UTC. День засчитывается, если
// пользователь достиг положительного дневного порога (qualifying day).
// Состояние хранит ограниченную историю дней, из которой счётчики можно
// пересчитать заново, если сохранённые данные повреждены.
package streak

import (
	"fmt"
	"sort"

	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/pkg/timeutil"
)

// HistoryLimit - сколько последних дней хранится в истории.
const HistoryLimit = 90

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

// DayRecord - запись истории за один день.
type DayRecord struct {
	// Date - ключ дня YYYY-MM-DD (UTC).
	Date string `json:"date"`

	// Met - выполнен ли дневной критерий.
	Met bool `json:"met"`

	// Count - значение серии после учёта этого дня.
	Count int `json:"count"`
}

// State - состояние серии пользователя.
type State struct {
	Current  int    `json:"current"`
	Longest  int    `json:"longest"`
	LastDate string `json:"last_date"`

	// History хранится отдельным blob-ом и служит для восстановления.
	History []DayRecord `json:"-"`
}

// NewState создаёт пустое состояние.
func NewState() *State {
	return &State{History: []DayRecord{}}
}

// RecordResult - результат учёта одного дня.
type RecordResult struct {
	PreviousStreak int  `json:"previous_streak"`
	NewStreak      int  `json:"new_streak"`
	WasReset       bool `json:"was_reset"`

	// MilestoneReached заполнен, если серия ровно достигла порога.
	MilestoneReached *Milestone `json:"milestone_reached,omitempty"`

	// Ignored - день уже учтён или лежит раньше последнего записанного.
	Ignored bool `json:"ignored,omitempty"`
}

// Record учитывает день date с признаком met.
//
// Правила непрерывности:
//   - первая запись: 1 если критерий выполнен, иначе 0;
//   - тот же день, что и последний записанный: счётчик не меняется;
//   - следующий календарный день и критерий выполнен: +1;
//   - пропуск или невыполненный критерий: 1 если выполнен, иначе 0.
//
// Дни раньше последнего записанного игнорируются.
func (s *State) Record(date string, met bool) (RecordResult, error) {
	if !timeutil.IsValidDateKey(date) {
		return RecordResult{}, shared.NewDomainError("streak", "Record", shared.ErrInvalidFormat,
			fmt.Sprintf("invalid date key %q", date))
	}

	res := RecordResult{PreviousStreak: s.Current, NewStreak: s.Current}

	if s.LastDate != "" {
		gap, err := timeutil.DaysBetweenKeys(s.LastDate, date)
		if err != nil {
			return RecordResult{}, shared.WrapError("streak", "Record", shared.ErrCorrupted,
				"last date is not a day key", err)
		}
		if gap <= 0 {
			res.Ignored = true
			return res, nil
		}
		switch {
		case gap == 1 && met:
			res.NewStreak = s.Current + 1
		case met:
			res.NewStreak = 1
		default:
			res.NewStreak = 0
		}
	} else if met {
		res.NewStreak = 1
	} else {
		res.NewStreak = 0
	}

	res.WasReset = res.PreviousStreak > 0 && res.NewStreak != res.PreviousStreak+1

	s.Current = res.NewStreak
	if s.Current > s.Longest {
		s.Longest = s.Current
	}
	s.LastDate = date
	s.History = append(s.History, DayRecord{Date: date, Met: met, Count: s.Current})
	if len(s.History) > HistoryLimit {
		s.History = append([]DayRecord(nil), s.History[len(s.History)-HistoryLimit:]...)
	}

	if m, ok := MilestoneFor(res.NewStreak); ok && res.NewStreak != res.PreviousStreak {
		res.MilestoneReached = &m
	}
	return res, nil
}

// Validate проверяет структурную целостность состояния.
func (s *State) Validate() error {
	switch {
	case s.Current < 0:
		return errCorrupt("negative current streak")
	case s.Longest < s.Current:
		return errCorrupt("longest streak below current")
	case s.LastDate != "" && !timeutil.IsValidDateKey(s.LastDate):
		return errCorrupt("invalid last date")
	case s.LastDate == "" && s.Current != 0:
		return errCorrupt("streak without last date")
	}
	return nil
}

// ValidateHistory проверяет историю: корректные даты, строгий порядок,
// неотрицательные счётчики и ограничение длины.
func ValidateHistory(history []DayRecord) error {
	if len(history) > HistoryLimit {
		return errCorrupt("history exceeds limit")
	}
	prev := ""
	for _, r := range history {
		if !timeutil.IsValidDateKey(r.Date) {
			return errCorrupt(fmt.Sprintf("invalid history date %q", r.Date))
		}
		if r.Count < 0 {
			return errCorrupt("negative history count")
		}
		if prev != "" && r.Date <= prev {
			return errCorrupt("history is not ordered")
		}
		prev = r.Date
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RECOVERY
// ══════════════════════════════════════════════════════════════════════════════

// Replay пересчитывает состояние с нуля по истории, применяя те же правила,
// что и Record. Записи с некорректной датой отбрасываются, повторы одного
// дня учитываются один раз (первая запись). Пустая история даёт NewState.
func Replay(history []DayRecord) *State {
	records := make([]DayRecord, 0, len(history))
	for _, r := range history {
		if timeutil.IsValidDateKey(r.Date) {
			records = append(records, r)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date < records[j].Date
	})

	s := NewState()
	for _, r := range records {
		// Ошибка невозможна: даты уже проверены.
		_, _ = s.Record(r.Date, r.Met)
	}
	return s
}

func errCorrupt(msg string) error {
	return shared.NewDomainError("streak", "Validate", shared.ErrCorrupted, msg)
}
