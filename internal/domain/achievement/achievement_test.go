package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsepet/progression/internal/domain/shared"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestCondition_Satisfied(t *testing.T) {
	tests := []struct {
		name  string
		cond  Condition
		value float64
		want  bool
	}{
		{"gte below", Condition{Threshold: 10, Comparison: CompareGTE}, 9, false},
		{"gte equal", Condition{Threshold: 10, Comparison: CompareGTE}, 10, true},
		{"eq exact", Condition{Threshold: 3, Comparison: CompareEQ}, 3, true},
		{"eq above", Condition{Threshold: 3, Comparison: CompareEQ}, 4, false},
		{"consecutive behaves as gte", Condition{Threshold: 7, Comparison: CompareConsecutive}, 8, true},
		{"unknown comparison", Condition{Threshold: 1, Comparison: "lt"}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Satisfied(tt.value))
		})
	}
}

func TestNewProgress(t *testing.T) {
	assert.Equal(t, 50, NewProgress(5000, 10000).Percentage)
	assert.Equal(t, 100, NewProgress(12000, 10000).Percentage)
	assert.Equal(t, 0, NewProgress(-5, 10).Percentage)
	assert.Equal(t, 33, NewProgress(1, 3).Percentage)
	assert.Equal(t, 100, NewProgress(0, 0).Percentage)
}

func TestState_UnlockIsMonotonic(t *testing.T) {
	catalog := DefaultCatalog()
	a, ok := catalog.Get(IDSteps10000)
	require.True(t, ok)

	s := NewState()
	assert.True(t, s.Unlock(a, t0))
	assert.Equal(t, 100, s.Progress[a.ID].Percentage)

	assert.False(t, s.Unlock(a, t0.Add(time.Hour)))
	assert.Equal(t, t0, s.Unlocked[a.ID], "second unlock must keep the original timestamp")
	assert.Len(t, s.Unlocked, 1)
}

func TestState_Validate(t *testing.T) {
	catalog := DefaultCatalog()

	s := NewState()
	require.NoError(t, s.Validate(catalog))

	s.Unlocked["no_such_badge"] = t0
	assert.True(t, shared.IsCorrupted(s.Validate(catalog)))

	s = NewState()
	s.Progress[IDSteps10000] = Progress{Percentage: 140}
	assert.True(t, shared.IsCorrupted(s.Validate(catalog)))

	assert.True(t, shared.IsCorrupted((&State{}).Validate(catalog)))
}

func TestCatalog_RejectsDuplicates(t *testing.T) {
	defs := []Achievement{
		{ID: "a", Category: CategoryExploration, Rarity: RarityCommon},
		{ID: "a", Category: CategoryExploration, Rarity: RarityCommon},
	}
	_, err := NewCatalog(defs)
	assert.Error(t, err)
}

func TestProject_Filters(t *testing.T) {
	catalog := DefaultCatalog()
	s := NewState()
	a, _ := catalog.Get(IDStreak7)
	s.Unlock(a, t0)

	earned := Project(catalog, s, Filter{Status: StatusEarned})
	require.Len(t, earned, 1)
	assert.Equal(t, IDStreak7, earned[0].ID)
	assert.True(t, earned[0].IsUnlocked())

	locked := Project(catalog, s, Filter{Status: StatusLocked})
	assert.Len(t, locked, catalog.Len()-1)

	streaks := Project(catalog, s, Filter{Category: CategoryStreakReward})
	assert.Len(t, streaks, 5)
	for _, v := range streaks {
		assert.Equal(t, CategoryStreakReward, v.Category)
	}

	legendary := Project(catalog, s, Filter{Rarity: RarityLegendary, Status: StatusLocked})
	for _, v := range legendary {
		assert.Equal(t, RarityLegendary, v.Rarity)
		assert.False(t, v.IsUnlocked())
	}
}

func TestComputeStatistics(t *testing.T) {
	catalog := DefaultCatalog()
	s := NewState()

	stats := ComputeStatistics(catalog, s, 3)
	assert.Equal(t, 0, stats.TotalEarned)
	assert.Nil(t, stats.Rarest)
	assert.Empty(t, stats.Recent)

	for i, id := range []string{"steps_5000", IDStreak14, "hrv_60", IDStreak30} {
		a, ok := catalog.Get(id)
		require.True(t, ok)
		s.Unlock(a, t0.Add(time.Duration(i)*time.Hour))
	}

	stats = ComputeStatistics(catalog, s, 2)
	assert.Equal(t, 4, stats.TotalEarned)
	assert.Equal(t, catalog.Len(), stats.TotalAvailable)
	assert.Equal(t, 21, stats.CompletionPercentage)

	require.NotNil(t, stats.Rarest)
	assert.Equal(t, IDStreak30, stats.Rarest.Achievement.ID)

	require.Len(t, stats.Recent, 2)
	assert.Equal(t, IDStreak30, stats.Recent[0].Achievement.ID)
	assert.Equal(t, "hrv_60", stats.Recent[1].Achievement.ID)
}

func TestComputeStatistics_RarestTieUsesCatalogOrder(t *testing.T) {
	catalog := DefaultCatalog()
	s := NewState()

	// Оба rare; hrv_60 стоит в каталоге раньше streak_14.
	b, _ := catalog.Get(IDStreak14)
	s.Unlock(b, t0)
	a, _ := catalog.Get("hrv_60")
	s.Unlock(a, t0.Add(time.Hour))

	stats := ComputeStatistics(catalog, s, 5)
	require.NotNil(t, stats.Rarest)
	assert.Equal(t, "hrv_60", stats.Rarest.Achievement.ID)
}
