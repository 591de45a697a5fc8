package progress

import (
	"context"

	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/internal/domain/streak"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/blob"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/kv"
	"github.com/pulsepet/progression/pkg/logger"
)

// StreakRepository implements streak.Repository. Counters and the day
// history live under separate keys.
type StreakRepository struct {
	gw  *blob.Gateway
	log *logger.Logger
}

// NewStreakRepository creates the repository.
func NewStreakRepository(gw *blob.Gateway, log *logger.Logger) *StreakRepository {
	if log == nil {
		log = logger.Nop()
	}
	return &StreakRepository{gw: gw, log: log.With(logger.Component("streak_repository"))}
}

// Load reads the counters and attaches the history. A missing or broken
// history next to valid counters is replaced by an empty one; a failed
// history read fails the whole load so the next Save cannot truncate it.
func (r *StreakRepository) Load(ctx context.Context, userID string) (*streak.State, error) {
	s, err := load(ctx, r.gw, "streak", kv.UserKey(userID, kv.SubsystemStreak), SchemaStreak,
		func(s *streak.State) error { return s.Validate() })
	if err != nil {
		return nil, err
	}

	history, err := r.LoadHistory(ctx, userID)
	switch {
	case err == nil:
	case shared.IsNotFound(err), shared.IsCorrupted(err):
		r.log.Debug("streak history unavailable, starting empty", logger.UserID(userID), logger.Err(err))
		history = []streak.DayRecord{}
	default:
		return nil, err
	}
	s.History = history
	return s, nil
}

// LoadHistory reads the retained day history.
func (r *StreakRepository) LoadHistory(ctx context.Context, userID string) ([]streak.DayRecord, error) {
	h, err := load(ctx, r.gw, "streak", kv.UserKey(userID, kv.SubsystemStreakHistory), SchemaStreakHistory,
		func(h *[]streak.DayRecord) error { return streak.ValidateHistory(*h) })
	if err != nil {
		return nil, err
	}
	return *h, nil
}

// Save writes the history first, then the counters, so counters never
// point past the retained history.
func (r *StreakRepository) Save(ctx context.Context, userID string, state *streak.State) error {
	history := state.History
	if history == nil {
		history = []streak.DayRecord{}
	}
	if err := r.gw.Save(ctx, kv.UserKey(userID, kv.SubsystemStreakHistory), SchemaStreakHistory, history); err != nil {
		return err
	}
	return r.gw.Save(ctx, kv.UserKey(userID, kv.SubsystemStreak), SchemaStreak, state)
}

// Delete removes both blobs.
func (r *StreakRepository) Delete(ctx context.Context, userID string) error {
	if err := r.gw.Remove(ctx, kv.UserKey(userID, kv.SubsystemStreak)); err != nil {
		return err
	}
	return r.gw.Remove(ctx, kv.UserKey(userID, kv.SubsystemStreakHistory))
}
