package progress

import (
	"context"

	"github.com/pulsepet/progression/internal/domain/challenge"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/blob"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/kv"
)

// ChallengeRepository implements challenge.Repository.
type ChallengeRepository struct {
	gw *blob.Gateway
}

// NewChallengeRepository creates the repository.
func NewChallengeRepository(gw *blob.Gateway) *ChallengeRepository {
	return &ChallengeRepository{gw: gw}
}

// Load reads the user's weekly challenges.
func (r *ChallengeRepository) Load(ctx context.Context, userID string) (*challenge.State, error) {
	return load(ctx, r.gw, "challenge", kv.UserKey(userID, kv.SubsystemChallenges), SchemaChallenges,
		func(s *challenge.State) error { return s.Validate() })
}

// Save writes the user's weekly challenges.
func (r *ChallengeRepository) Save(ctx context.Context, userID string, state *challenge.State) error {
	return r.gw.Save(ctx, kv.UserKey(userID, kv.SubsystemChallenges), SchemaChallenges, state)
}

// Delete removes the user's weekly challenges.
func (r *ChallengeRepository) Delete(ctx context.Context, userID string) error {
	return r.gw.Remove(ctx, kv.UserKey(userID, kv.SubsystemChallenges))
}
