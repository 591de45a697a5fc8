package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsepet/progression/internal/domain/challenge"
	"github.com/pulsepet/progression/internal/domain/health"
	"github.com/pulsepet/progression/pkg/logger"
)

type staticUsers struct {
	users []string
	err   error
}

func (s staticUsers) List(context.Context) ([]string, error) { return s.users, s.err }

type fakeHistory struct{ failFor string }

func (f fakeHistory) LoadHistory(_ context.Context, userID string) ([]health.DailyMetrics, error) {
	if userID == f.failFor {
		return nil, errors.New("storage unavailable")
	}
	return []health.DailyMetrics{{Date: "2026-03-01", Steps: 9000}}, nil
}

type fakeRotator struct {
	mu      sync.Mutex
	current map[string]bool
	seen    []string
}

func (f *fakeRotator) EnsureCurrentWeek(_ context.Context, userID string, history []health.DailyMetrics) ([]challenge.Challenge, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, userID)
	if f.current[userID] {
		return []challenge.Challenge{{ID: "x"}}, false, nil
	}
	f.current[userID] = true
	return []challenge.Challenge{{ID: "x"}}, true, nil
}

func newJob(users UserLister, history HistoryLoader, rotator ChallengeRotator) *RotateChallengesJob {
	cfg := DefaultRotateChallengesConfig()
	cfg.Concurrency = 3
	return NewRotateChallengesJob(users, history, rotator, logger.Nop(), cfg)
}

func TestRotateChallenges_RotatesStaleUsersOnly(t *testing.T) {
	rotator := &fakeRotator{current: map[string]bool{"u2": true}}
	job := newJob(staticUsers{users: []string{"u1", "u2", "u3"}}, fakeHistory{}, rotator)

	require.NoError(t, job.Run(context.Background()))

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.TotalUsers)
	assert.Equal(t, 2, stats.Rotated)
	assert.Equal(t, 1, stats.Current)
	assert.Zero(t, stats.Failed)
	assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, rotator.seen)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 3, job.LastStats().Current)
}

func TestRotateChallenges_CountsFailures(t *testing.T) {
	rotator := &fakeRotator{current: map[string]bool{}}
	job := newJob(staticUsers{users: []string{"u1", "broken"}}, fakeHistory{failFor: "broken"}, rotator)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, job.LastStats().Failed)
	assert.NotContains(t, rotator.seen, "broken")

	job = newJob(staticUsers{users: []string{"broken"}}, fakeHistory{failFor: "broken"}, rotator)
	assert.Error(t, job.Run(context.Background()))
}

func TestRotateChallenges_DirectoryError(t *testing.T) {
	job := newJob(staticUsers{err: errors.New("down")}, fakeHistory{}, &fakeRotator{current: map[string]bool{}})
	assert.Error(t, job.Run(context.Background()))
}

func TestRotateChallenges_Metadata(t *testing.T) {
	job := newJob(staticUsers{}, fakeHistory{}, &fakeRotator{current: map[string]bool{}})
	assert.Equal(t, "rotate_weekly_challenges", job.Name())
	assert.NotEmpty(t, job.Description())
	require.NoError(t, job.Run(context.Background()))
	assert.Zero(t, job.LastStats().TotalUsers)
}
