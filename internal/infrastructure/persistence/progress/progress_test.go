package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsepet/progression/internal/domain/achievement"
	"github.com/pulsepet/progression/internal/domain/cosmetic"
	"github.com/pulsepet/progression/internal/domain/health"
	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/internal/domain/streak"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/blob"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/kv"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newGateway() (*kv.MemoryStore, *blob.Gateway) {
	store := kv.NewMemoryStore()
	return store, blob.NewGateway(store)
}

func TestAchievementRepository(t *testing.T) {
	ctx := context.Background()
	store, gw := newGateway()
	catalog := achievement.DefaultCatalog()
	repo := NewAchievementRepository(gw, catalog)

	_, err := repo.Load(ctx, "u1")
	assert.True(t, shared.IsNotFound(err))

	s := achievement.NewState()
	a, _ := catalog.Get(achievement.IDSteps10000)
	s.Unlock(a, t0)
	require.NoError(t, repo.Save(ctx, "u1", s))

	got, err := repo.Load(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.IsUnlocked(achievement.IDSteps10000))
	assert.True(t, t0.Equal(got.Unlocked[achievement.IDSteps10000]))

	// Blob с неизвестным достижением проходит checksum, но не валидацию.
	bad := achievement.NewState()
	bad.Unlocked["retired_badge"] = t0
	require.NoError(t, gw.Save(ctx, kv.UserKey("u1", kv.SubsystemAchievements), SchemaAchievements, bad))
	_, err = repo.Load(ctx, "u1")
	assert.True(t, shared.IsCorrupted(err))

	require.NoError(t, repo.Delete(ctx, "u1"))
	assert.Equal(t, 0, store.Len())
}

func TestStreakRepository_StoresHistorySeparately(t *testing.T) {
	ctx := context.Background()
	store, gw := newGateway()
	repo := NewStreakRepository(gw, nil)

	s := streak.NewState()
	_, _ = s.Record("2026-03-01", true)
	_, _ = s.Record("2026-03-02", true)
	require.NoError(t, repo.Save(ctx, "u1", s))
	assert.Equal(t, 2, store.Len())

	got, err := repo.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Current)
	assert.Len(t, got.History, 2)

	// Ломаем счётчики: история остаётся доступной для восстановления.
	require.NoError(t, store.Set(ctx, kv.UserKey("u1", kv.SubsystemStreak), []byte("{}")))
	_, err = repo.Load(ctx, "u1")
	assert.True(t, shared.IsCorrupted(err))

	history, err := repo.LoadHistory(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, streak.Replay(history).Current)

	require.NoError(t, repo.Delete(ctx, "u1"))
	assert.Equal(t, 0, store.Len())
}

func TestCosmeticRepository_RejectsUnownedEquip(t *testing.T) {
	ctx := context.Background()
	_, gw := newGateway()
	repo := NewCosmeticRepository(gw, cosmetic.DefaultCatalog())

	inv := cosmetic.NewInventory()
	inv.Equipped[cosmetic.CategoryHat] = "hat_crown"
	require.NoError(t, repo.Save(ctx, "u1", inv))

	_, err := repo.Load(ctx, "u1")
	assert.True(t, shared.IsCorrupted(err))
}

func TestHealthHistoryRepository_TrimsToRetention(t *testing.T) {
	ctx := context.Background()
	_, gw := newGateway()
	repo := NewHealthHistoryRepository(gw)

	var history []health.DailyMetrics
	for i := 0; i < health.HistoryRetentionDays+10; i++ {
		history = append(history, health.DailyMetrics{
			Date:  t0.AddDate(0, 0, i).Format("2006-01-02"),
			Steps: 1000 + i,
		})
	}
	require.NoError(t, repo.Save(ctx, "u1", history))

	got, err := repo.Load(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, health.HistoryRetentionDays)
	assert.Equal(t, history[len(history)-1], got[len(got)-1])
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	_, gw := newGateway()
	dir := NewDirectory(gw)

	ids, err := dir.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, id := range []string{"carol", "alice", "bob", "alice"} {
		require.NoError(t, dir.Add(ctx, id))
	}
	ids, err = dir.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, ids)

	require.NoError(t, dir.Remove(ctx, "bob"))
	require.NoError(t, dir.Remove(ctx, "nobody"))
	ids, _ = dir.List(ctx)
	assert.Equal(t, []string{"alice", "carol"}, ids)

	assert.ErrorIs(t, dir.Add(ctx, ""), shared.ErrEmptyUserID)
}
