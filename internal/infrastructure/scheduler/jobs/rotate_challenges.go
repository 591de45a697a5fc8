// Package jobs contains the scheduled progression jobs.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulsepet/progression/internal/domain/challenge"
	"github.com/pulsepet/progression/internal/domain/health"
	"github.com/pulsepet/progression/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROTATE CHALLENGES JOB
// ══════════════════════════════════════════════════════════════════════════════

// RotateChallengesJob walks every known user at the start of the week and
// generates that week's challenges for users still holding last week's set.
// Users who were already rotated by a health update are skipped.
type RotateChallengesJob struct {
	directory UserLister
	history   HistoryLoader
	rotator   ChallengeRotator
	log       *logger.Logger
	config    RotateChallengesConfig

	lastStats atomic.Pointer[RotateStats]
}

// UserLister lists known user ids.
type UserLister interface {
	List(ctx context.Context) ([]string, error)
}

// HistoryLoader loads the rolling health history of a user.
type HistoryLoader interface {
	LoadHistory(ctx context.Context, userID string) ([]health.DailyMetrics, error)
}

// ChallengeRotator generates the current week's challenges when needed.
type ChallengeRotator interface {
	EnsureCurrentWeek(ctx context.Context, userID string, history []health.DailyMetrics) ([]challenge.Challenge, bool, error)
}

// RotateChallengesConfig contains configuration for the rotation job.
type RotateChallengesConfig struct {
	// Concurrency is the number of users processed in parallel.
	Concurrency int

	// Timeout is the maximum duration for one run.
	Timeout time.Duration

	// MaxFailureRate fails the run when exceeded (0..1).
	MaxFailureRate float64
}

// DefaultRotateChallengesConfig returns default configuration.
func DefaultRotateChallengesConfig() RotateChallengesConfig {
	return RotateChallengesConfig{
		Concurrency:    8,
		Timeout:        10 * time.Minute,
		MaxFailureRate: 0.5,
	}
}

// RotateStats summarizes one run.
type RotateStats struct {
	StartedAt  time.Time
	Duration   time.Duration
	TotalUsers int
	Rotated    int
	Current    int
	Failed     int
}

// NewRotateChallengesJob creates the rotation job.
func NewRotateChallengesJob(
	directory UserLister,
	history HistoryLoader,
	rotator ChallengeRotator,
	log *logger.Logger,
	config RotateChallengesConfig,
) *RotateChallengesJob {
	if log == nil {
		log = logger.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.MaxFailureRate <= 0 {
		config.MaxFailureRate = 0.5
	}
	return &RotateChallengesJob{
		directory: directory,
		history:   history,
		rotator:   rotator,
		log:       log.With(logger.Component("rotate_challenges")),
		config:    config,
	}
}

// Name returns the job name.
func (j *RotateChallengesJob) Name() string {
	return "rotate_weekly_challenges"
}

// Description returns a human-readable description.
func (j *RotateChallengesJob) Description() string {
	return "Generates the new week's challenges for every known user"
}

// Run executes the rotation.
func (j *RotateChallengesJob) Run(ctx context.Context) error {
	stats := &RotateStats{StartedAt: time.Now()}
	defer func() {
		stats.Duration = time.Since(stats.StartedAt)
		j.lastStats.Store(stats)
	}()

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	users, err := j.directory.List(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	stats.TotalUsers = len(users)
	if len(users) == 0 {
		return nil
	}

	j.rotateConcurrently(ctx, users, stats)

	j.log.Info("weekly rotation finished",
		logger.Int("total", stats.TotalUsers),
		logger.Int("rotated", stats.Rotated),
		logger.Int("current", stats.Current),
		logger.Int("failed", stats.Failed),
	)

	if ctx.Err() != nil {
		return fmt.Errorf("rotation interrupted: %w", ctx.Err())
	}
	if rate := float64(stats.Failed) / float64(stats.TotalUsers); rate > j.config.MaxFailureRate {
		return fmt.Errorf("rotation failed for %d of %d users", stats.Failed, stats.TotalUsers)
	}
	return nil
}

func (j *RotateChallengesJob) rotateConcurrently(ctx context.Context, users []string, stats *RotateStats) {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		semaphore = make(chan struct{}, j.config.Concurrency)
	)

	for _, userID := range users {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		default:
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(userID string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			rotated, err := j.rotateUser(ctx, userID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				stats.Failed++
				j.log.Error("challenge rotation failed", logger.UserID(userID), logger.Err(err))
			case rotated:
				stats.Rotated++
			default:
				stats.Current++
			}
		}(userID)
	}

	wg.Wait()
}

func (j *RotateChallengesJob) rotateUser(ctx context.Context, userID string) (bool, error) {
	history, err := j.history.LoadHistory(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load history: %w", err)
	}
	_, rotated, err := j.rotator.EnsureCurrentWeek(ctx, userID, history)
	if err != nil {
		return false, fmt.Errorf("ensure current week: %w", err)
	}
	return rotated, nil
}

// LastStats returns the statistics of the last run, or nil.
func (j *RotateChallengesJob) LastStats() *RotateStats {
	return j.lastStats.Load()
}
