package progress

import (
	"context"

	"github.com/pulsepet/progression/internal/domain/achievement"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/blob"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/kv"
)

// AchievementRepository implements achievement.Repository.
type AchievementRepository struct {
	gw      *blob.Gateway
	catalog *achievement.Catalog
}

// NewAchievementRepository creates the repository. The catalog is used to
// reject blobs that reference unknown achievements.
func NewAchievementRepository(gw *blob.Gateway, catalog *achievement.Catalog) *AchievementRepository {
	return &AchievementRepository{gw: gw, catalog: catalog}
}

// Load reads the user's achievement state.
func (r *AchievementRepository) Load(ctx context.Context, userID string) (*achievement.State, error) {
	return load(ctx, r.gw, "achievement", kv.UserKey(userID, kv.SubsystemAchievements), SchemaAchievements,
		func(s *achievement.State) error { return s.Validate(r.catalog) })
}

// Save writes the user's achievement state.
func (r *AchievementRepository) Save(ctx context.Context, userID string, state *achievement.State) error {
	return r.gw.Save(ctx, kv.UserKey(userID, kv.SubsystemAchievements), SchemaAchievements, state)
}

// Delete removes the user's achievement state.
func (r *AchievementRepository) Delete(ctx context.Context, userID string) error {
	return r.gw.Remove(ctx, kv.UserKey(userID, kv.SubsystemAchievements))
}
