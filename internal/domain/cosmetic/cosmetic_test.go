package cosmetic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsepet/progression/internal/domain/shared"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func item(t *testing.T, c *Catalog, id string) Cosmetic {
	t.Helper()
	it, ok := c.Get(id)
	require.True(t, ok, id)
	return it
}

func TestCategory_LayerIndex(t *testing.T) {
	for i, cat := range Categories {
		assert.Equal(t, i, cat.LayerIndex())
	}
	assert.Equal(t, -1, Category("shoes").LayerIndex())
}

func TestCatalog_LayersMatchCategory(t *testing.T) {
	for _, c := range DefaultCatalog().All() {
		assert.Equal(t, c.Category.LayerIndex(), c.Render.Layer, c.ID)
		assert.True(t, len(c.Render.Pixels) > 0 || c.Render.Override != "", c.ID)
	}

	_, err := NewCatalog([]Cosmetic{{ID: "x", Category: CategoryHat, Rarity: RarityCommon, Render: RenderPayload{Layer: 0}}})
	assert.Error(t, err)
}

func TestInventory_AddIsIdempotent(t *testing.T) {
	inv := NewInventory()
	assert.True(t, inv.Add("hat_crown", t0))
	assert.False(t, inv.Add("hat_crown", t0.Add(time.Hour)))
	assert.Len(t, inv.Owned, 1)

	at, ok := inv.UnlockedAt("hat_crown")
	require.True(t, ok)
	assert.Equal(t, t0, at)
}

func TestInventory_EquipRequiresOwnership(t *testing.T) {
	catalog := DefaultCatalog()
	inv := NewInventory()

	_, err := inv.Equip(item(t, catalog, "hat_crown"))
	assert.ErrorIs(t, err, shared.ErrNotOwned)
	assert.Empty(t, inv.Equipped)
}

func TestInventory_EquipReplacesSlot(t *testing.T) {
	catalog := DefaultCatalog()
	inv := NewInventory()
	inv.Add("hat_crown", t0)
	inv.Add("hat_wizard", t0)

	prev, err := inv.Equip(item(t, catalog, "hat_crown"))
	require.NoError(t, err)
	assert.Empty(t, prev)

	prev, err = inv.Equip(item(t, catalog, "hat_wizard"))
	require.NoError(t, err)
	assert.Equal(t, "hat_crown", prev)
	assert.Len(t, inv.Equipped, 1)
	assert.Equal(t, "hat_wizard", inv.Equipped[CategoryHat])
}

func TestInventory_UnequipOnlyExactItem(t *testing.T) {
	catalog := DefaultCatalog()
	inv := NewInventory()
	inv.Add("hat_crown", t0)
	inv.Add("hat_wizard", t0)
	_, _ = inv.Equip(item(t, catalog, "hat_crown"))

	assert.False(t, inv.Unequip(item(t, catalog, "hat_wizard")))
	assert.Equal(t, "hat_crown", inv.Equipped[CategoryHat])

	assert.True(t, inv.Unequip(item(t, catalog, "hat_crown")))
	assert.Empty(t, inv.Equipped)
	assert.False(t, inv.Unequip(item(t, catalog, "hat_crown")))
}

func TestCompose_SortedByLayer(t *testing.T) {
	catalog := DefaultCatalog()
	inv := NewInventory()
	for _, id := range []string{"theme_zen", "hat_crown", "accessory_scarf", "background_night", "color_rose"} {
		inv.Add(id, t0)
		_, err := inv.Equip(item(t, catalog, id))
		require.NoError(t, err)
	}

	layers := Compose(catalog, inv.Equipped)
	require.Len(t, layers, 5)
	for i, l := range layers {
		assert.Equal(t, i, l.Index)
		assert.Equal(t, Categories[i], l.Category)
	}
}

func TestCompose_HatThenBackground(t *testing.T) {
	catalog := DefaultCatalog()
	inv := NewInventory()
	inv.Add("hat_crown", t0)
	inv.Add("background_summit", t0)
	_, _ = inv.Equip(item(t, catalog, "hat_crown"))
	_, _ = inv.Equip(item(t, catalog, "background_summit"))

	layers := Compose(catalog, inv.Equipped)
	require.Len(t, layers, 2)
	assert.Equal(t, "background_summit", layers[0].Cosmetic.ID)
	assert.Equal(t, "hat_crown", layers[1].Cosmetic.ID)
}

func TestPreview_DoesNotMutate(t *testing.T) {
	catalog := DefaultCatalog()
	inv := NewInventory()
	inv.Add("hat_crown", t0)
	inv.Add("color_rose", t0)
	_, _ = inv.Equip(item(t, catalog, "hat_crown"))
	_, _ = inv.Equip(item(t, catalog, "color_rose"))

	// Кандидат не обязан принадлежать пользователю.
	layers := Preview(catalog, inv, item(t, catalog, "hat_halo"))
	require.Len(t, layers, 2)
	assert.Equal(t, "color_rose", layers[0].Cosmetic.ID)
	assert.Equal(t, "hat_halo", layers[1].Cosmetic.ID)

	assert.Equal(t, "hat_crown", inv.Equipped[CategoryHat])
	assert.False(t, inv.Owns("hat_halo"))
}

func TestInventory_Validate(t *testing.T) {
	catalog := DefaultCatalog()

	inv := NewInventory()
	inv.Add("hat_crown", t0)
	inv.Equipped[CategoryHat] = "hat_crown"
	require.NoError(t, inv.Validate(catalog))

	inv.Equipped[CategoryColor] = "hat_crown"
	assert.True(t, shared.IsCorrupted(inv.Validate(catalog)))

	inv = NewInventory()
	inv.Equipped[CategoryHat] = "hat_crown"
	assert.True(t, shared.IsCorrupted(inv.Validate(catalog)), "equipped but not owned")

	inv = NewInventory()
	inv.Owned = append(inv.Owned, Owned{ID: "ghost", UnlockedAt: t0})
	assert.True(t, shared.IsCorrupted(inv.Validate(catalog)))
}
