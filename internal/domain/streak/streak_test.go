package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsepet/progression/internal/domain/achievement"
	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/pkg/timeutil"
)

func day(n int) string {
	return timeutil.DateKey(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n))
}

func TestRecord_FirstDay(t *testing.T) {
	s := NewState()
	res, err := s.Record(day(0), true)
	require.NoError(t, err)
	assert.Equal(t, 0, res.PreviousStreak)
	assert.Equal(t, 1, res.NewStreak)
	assert.False(t, res.WasReset)

	s = NewState()
	res, err = s.Record(day(0), false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.NewStreak)
	assert.Equal(t, day(0), s.LastDate)
}

func TestRecord_ConsecutiveDays(t *testing.T) {
	for _, n := range []int{1, 5, 13, 45} {
		s := NewState()
		for i := 0; i < n; i++ {
			_, err := s.Record(day(i), true)
			require.NoError(t, err)
		}
		assert.Equal(t, n, s.Current)
		assert.Equal(t, n, s.Longest)
	}
}

func TestRecord_SameDayIsNoop(t *testing.T) {
	s := NewState()
	_, _ = s.Record(day(0), true)
	_, _ = s.Record(day(1), true)

	res, err := s.Record(day(1), false)
	require.NoError(t, err)
	assert.True(t, res.Ignored)
	assert.Equal(t, 2, res.NewStreak)
	assert.Equal(t, 2, s.Current)
	assert.Len(t, s.History, 2)
}

func TestRecord_BackdatedIsIgnored(t *testing.T) {
	s := NewState()
	_, _ = s.Record(day(5), true)

	res, err := s.Record(day(3), true)
	require.NoError(t, err)
	assert.True(t, res.Ignored)
	assert.Equal(t, day(5), s.LastDate)
}

func TestRecord_GapResets(t *testing.T) {
	build := func() *State {
		s := NewState()
		for i := 0; i < 4; i++ {
			_, _ = s.Record(day(i), true)
		}
		return s
	}

	s := build()
	res, err := s.Record(day(5), true)
	require.NoError(t, err)
	assert.Equal(t, 4, res.PreviousStreak)
	assert.Equal(t, 1, res.NewStreak)
	assert.True(t, res.WasReset)
	assert.Equal(t, 4, s.Longest)

	s = build()
	res, err = s.Record(day(4), false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.NewStreak)
	assert.True(t, res.WasReset)

	s = build()
	res, err = s.Record(day(6), false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.NewStreak)
	assert.True(t, res.WasReset)
}

func TestRecord_ZeroStreakIsNotReset(t *testing.T) {
	s := NewState()
	_, _ = s.Record(day(0), false)
	res, err := s.Record(day(3), true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewStreak)
	assert.False(t, res.WasReset)
}

func TestRecord_InvalidDate(t *testing.T) {
	s := NewState()
	_, err := s.Record("2026/01/01", true)
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func TestRecord_MilestoneFiresOnExactMatch(t *testing.T) {
	s := NewState()
	var fired []string
	for i := 0; i < 10; i++ {
		res, err := s.Record(day(i), true)
		require.NoError(t, err)
		if res.MilestoneReached != nil {
			fired = append(fired, res.MilestoneReached.AchievementID)
		}
	}
	assert.Equal(t, []string{achievement.IDStreak7}, fired)
}

func TestRecord_ThirtyDayScenario(t *testing.T) {
	s := NewState()
	var milestoneDays []int
	for i := 1; i <= 30; i++ {
		res, err := s.Record(day(i), true)
		require.NoError(t, err)
		if res.MilestoneReached != nil && res.MilestoneReached.AchievementID == achievement.IDStreak30 {
			milestoneDays = append(milestoneDays, i)
		}
	}
	assert.Equal(t, 30, s.Current)
	assert.Equal(t, 30, s.Longest)
	assert.Equal(t, []int{30}, milestoneDays)
}

func TestRecord_HistoryIsCapped(t *testing.T) {
	s := NewState()
	for i := 0; i < HistoryLimit+15; i++ {
		_, _ = s.Record(day(i), i%10 != 0)
	}
	require.Len(t, s.History, HistoryLimit)
	assert.Equal(t, day(HistoryLimit+14), s.History[len(s.History)-1].Date)
	assert.NoError(t, ValidateHistory(s.History))
}

func TestReplay_MatchesLiveState(t *testing.T) {
	live := NewState()
	pattern := []bool{true, true, true, false, true, true, true, true, true}
	for i, met := range pattern {
		_, _ = live.Record(day(i), met)
	}
	// Пропуск дня.
	_, _ = live.Record(day(len(pattern)+1), true)

	// Порядок записей не важен.
	shuffled := append([]DayRecord(nil), live.History...)
	shuffled[0], shuffled[len(shuffled)-1] = shuffled[len(shuffled)-1], shuffled[0]

	recovered := Replay(shuffled)
	assert.Equal(t, live.Current, recovered.Current)
	assert.Equal(t, live.Longest, recovered.Longest)
	assert.Equal(t, live.LastDate, recovered.LastDate)
	assert.Equal(t, live.History, recovered.History)
}

func TestReplay_EmptyHistory(t *testing.T) {
	s := Replay(nil)
	assert.Equal(t, 0, s.Current)
	assert.Equal(t, "", s.LastDate)
	assert.NoError(t, s.Validate())
}

func TestReplay_DropsInvalidDates(t *testing.T) {
	s := Replay([]DayRecord{
		{Date: day(0), Met: true},
		{Date: "garbage", Met: true},
		{Date: day(1), Met: true},
	})
	assert.Equal(t, 2, s.Current)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, NewState().Validate())
	assert.Error(t, (&State{Current: -1}).Validate())
	assert.Error(t, (&State{Current: 5, Longest: 3, LastDate: day(0)}).Validate())
	assert.Error(t, (&State{Current: 1, Longest: 1, LastDate: "bad"}).Validate())
	assert.Error(t, (&State{Current: 2, Longest: 2}).Validate())
}

func TestNextMilestone(t *testing.T) {
	m, ok := NextMilestone(7)
	require.True(t, ok)
	assert.Equal(t, 14, m.Days)

	_, ok = NextMilestone(90)
	assert.False(t, ok)
}
