package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateKey_UsesUTC(t *testing.T) {
	almaty := time.FixedZone("ALMT", 5*3600)
	local := time.Date(2026, 3, 5, 2, 0, 0, 0, almaty)
	assert.Equal(t, "2026-03-04", DateKey(local))
}

func TestParseDateKey(t *testing.T) {
	d, err := ParseDateKey("2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), d)

	for _, bad := range []string{"", "2026-3-4", "04.03.2026", "2026-02-30"} {
		assert.False(t, IsValidDateKey(bad), bad)
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 2, 28, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 3, 1, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysBetween(a, b))
	assert.Equal(t, -1, DaysBetween(b, a))
	assert.True(t, IsConsecutiveDay(a, b))

	n, err := DaysBetweenKeys("2026-03-01", "2026-03-31")
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	_, err = DaysBetweenKeys("bad", "2026-03-31")
	assert.Error(t, err)
}

func TestWeekBoundaries(t *testing.T) {
	tests := []struct {
		day  time.Time
		want string
	}{
		{time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), "2026-03-02"},   // Monday
		{time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC), "2026-03-02"},  // Wednesday
		{time.Date(2026, 3, 8, 23, 59, 0, 0, time.UTC), "2026-03-02"}, // Sunday
		{time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), "2026-03-09"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DateKey(StartOfWeek(tt.day)), tt.day.String())
	}

	assert.Equal(t, time.Date(2026, 3, 8, 23, 59, 59, 0, time.UTC), EndOfWeek(tests[1].day))
	assert.True(t, IsSameWeek(tests[0].day, tests[2].day))
	assert.False(t, IsSameWeek(tests[2].day, tests[3].day))
}
