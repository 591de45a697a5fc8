package progress

import (
	"context"

	"github.com/pulsepet/progression/internal/domain/cosmetic"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/blob"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/kv"
)

// CosmeticRepository implements cosmetic.Repository.
type CosmeticRepository struct {
	gw      *blob.Gateway
	catalog *cosmetic.Catalog
}

// NewCosmeticRepository creates the repository.
func NewCosmeticRepository(gw *blob.Gateway, catalog *cosmetic.Catalog) *CosmeticRepository {
	return &CosmeticRepository{gw: gw, catalog: catalog}
}

// Load reads the user's inventory.
func (r *CosmeticRepository) Load(ctx context.Context, userID string) (*cosmetic.Inventory, error) {
	return load(ctx, r.gw, "cosmetic", kv.UserKey(userID, kv.SubsystemCosmetics), SchemaCosmetics,
		func(inv *cosmetic.Inventory) error { return inv.Validate(r.catalog) })
}

// Save writes the user's inventory.
func (r *CosmeticRepository) Save(ctx context.Context, userID string, inv *cosmetic.Inventory) error {
	return r.gw.Save(ctx, kv.UserKey(userID, kv.SubsystemCosmetics), SchemaCosmetics, inv)
}

// Delete removes the user's inventory.
func (r *CosmeticRepository) Delete(ctx context.Context, userID string) error {
	return r.gw.Remove(ctx, kv.UserKey(userID, kv.SubsystemCosmetics))
}
