package progression

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsepet/progression/internal/domain/cosmetic"
	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/pkg/logger"
)

// OwnedItem - предмет инвентаря вместе с данными каталога.
type OwnedItem struct {
	Cosmetic   cosmetic.Cosmetic `json:"cosmetic"`
	UnlockedAt time.Time         `json:"unlocked_at"`
	Equipped   bool              `json:"equipped"`
}

// InventoryView - инвентарь для чтения.
type InventoryView struct {
	Items    []OwnedItem                  `json:"items"`
	Equipped map[cosmetic.Category]string `json:"equipped"`
}

// EquipResult - итог экипировки.
type EquipResult struct {
	Equipped string `json:"equipped"`

	// Replaced - предмет, снятый из того же слота (пусто, если слот был свободен).
	Replaced string `json:"replaced,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// COSMETIC INVENTORY
// ══════════════════════════════════════════════════════════════════════════════

// CosmeticInventory владеет инвентарём и экипировкой и собирает слои
// для отрисовки питомца.
type CosmeticInventory struct {
	repo    cosmetic.Repository
	catalog *cosmetic.Catalog
	opts    options
}

// NewCosmeticInventory создаёт сервис. nil-каталог заменяется каталогом
// по умолчанию.
func NewCosmeticInventory(repo cosmetic.Repository, catalog *cosmetic.Catalog, opts ...Option) *CosmeticInventory {
	if catalog == nil {
		catalog = cosmetic.DefaultCatalog()
	}
	return &CosmeticInventory{repo: repo, catalog: catalog, opts: buildOptions("cosmetics", opts)}
}

// Catalog возвращает каталог косметики.
func (s *CosmeticInventory) Catalog() *cosmetic.Catalog { return s.catalog }

func (s *CosmeticInventory) load(ctx context.Context, op, userID string) (*cosmetic.Inventory, loadStatus) {
	return loadOrDefault(ctx, s.opts, op, userID, s.repo.Load, cosmetic.NewInventory)
}

func (s *CosmeticInventory) save(ctx context.Context, op, userID string, inv *cosmetic.Inventory) bool {
	return saveOrLog(ctx, s.opts, op, userID, func(ctx context.Context) error {
		return s.repo.Save(ctx, userID, inv)
	})
}

func (s *CosmeticInventory) lookup(id string) (cosmetic.Cosmetic, error) {
	c, ok := s.catalog.Get(id)
	if !ok {
		return cosmetic.Cosmetic{}, cosmetic.ErrCosmeticNotFound(id)
	}
	return c, nil
}

// AddToInventory выдаёт предмет. Повторная выдача игнорируется и
// возвращает false.
func (s *CosmeticInventory) AddToInventory(ctx context.Context, userID, id string) (bool, error) {
	if err := requireUser("cosmetic", "AddToInventory", userID); err != nil {
		return false, err
	}
	c, err := s.lookup(id)
	if err != nil {
		return false, err
	}
	added, err := s.grant(ctx, "AddToInventory", userID, []cosmetic.Cosmetic{c})
	return len(added) == 1, err
}

// GrantRewards выдаёт предметы по списку id из награды достижения.
// Неизвестные id пропускаются. Возвращает только впервые выданные предметы.
func (s *CosmeticInventory) GrantRewards(ctx context.Context, userID string, ids []string) ([]cosmetic.Cosmetic, error) {
	if err := requireUser("cosmetic", "GrantRewards", userID); err != nil {
		return nil, err
	}
	items := make([]cosmetic.Cosmetic, 0, len(ids))
	for _, id := range ids {
		c, ok := s.catalog.Get(id)
		if !ok {
			s.opts.log.Warn("reward references unknown cosmetic",
				logger.UserID(userID), logger.CosmeticID(id))
			continue
		}
		items = append(items, c)
	}
	if len(items) == 0 {
		return []cosmetic.Cosmetic{}, nil
	}
	return s.grant(ctx, "GrantRewards", userID, items)
}

func (s *CosmeticInventory) grant(ctx context.Context, op, userID string, items []cosmetic.Cosmetic) ([]cosmetic.Cosmetic, error) {
	inv, status := s.load(ctx, op, userID)
	if !status.writable() {
		return []cosmetic.Cosmetic{}, nil
	}

	now := s.opts.now()
	added := make([]cosmetic.Cosmetic, 0, len(items))
	for _, c := range items {
		if inv.Add(c.ID, now) {
			added = append(added, c)
		}
	}
	if len(added) == 0 {
		return added, nil
	}
	if !s.save(ctx, op, userID, inv) {
		return []cosmetic.Cosmetic{}, nil
	}

	for _, c := range added {
		s.opts.log.Info("cosmetic unlocked", logger.UserID(userID), logger.CosmeticID(c.ID))
		s.opts.publish(shared.CosmeticUnlockedEvent{
			BaseEvent:  shared.NewBaseEvent(shared.EventCosmeticUnlocked, userID, now),
			CosmeticID: c.ID,
			Name:       c.Name,
			Category:   string(c.Category),
			Rarity:     string(c.Rarity),
		})
	}
	return added, nil
}

// Equip надевает принадлежащий пользователю предмет, заменяя предмет той же
// категории. Без владения возвращает shared.ErrNotOwned.
func (s *CosmeticInventory) Equip(ctx context.Context, userID, id string) (EquipResult, error) {
	if err := requireUser("cosmetic", "Equip", userID); err != nil {
		return EquipResult{}, err
	}
	c, err := s.lookup(id)
	if err != nil {
		return EquipResult{}, err
	}

	inv, status := s.load(ctx, "Equip", userID)
	if !status.writable() {
		return EquipResult{}, nil
	}
	prev, err := inv.Equip(c)
	if err != nil {
		return EquipResult{}, err
	}
	if prev == c.ID {
		return EquipResult{Equipped: c.ID}, nil
	}
	if !s.save(ctx, "Equip", userID, inv) {
		return EquipResult{}, nil
	}
	return EquipResult{Equipped: c.ID, Replaced: prev}, nil
}

// Unequip снимает предмет, только если именно он надет. Возвращает true,
// если слот освобождён.
func (s *CosmeticInventory) Unequip(ctx context.Context, userID, id string) (bool, error) {
	if err := requireUser("cosmetic", "Unequip", userID); err != nil {
		return false, err
	}
	c, err := s.lookup(id)
	if err != nil {
		return false, err
	}

	inv, status := s.load(ctx, "Unequip", userID)
	if !status.writable() || !inv.Unequip(c) {
		return false, nil
	}
	return s.save(ctx, "Unequip", userID, inv), nil
}

// Layers возвращает надетые предметы по возрастанию индекса слоя.
func (s *CosmeticInventory) Layers(ctx context.Context, userID string) ([]cosmetic.Layer, error) {
	if err := requireUser("cosmetic", "Layers", userID); err != nil {
		return nil, err
	}
	inv, _ := s.load(ctx, "Layers", userID)
	return cosmetic.Compose(s.catalog, inv.Equipped), nil
}

// PreviewLayers возвращает композицию, в которой слот категории кандидата
// занят кандидатом. Кандидат может быть и не получен. Состояние не меняется.
func (s *CosmeticInventory) PreviewLayers(ctx context.Context, userID, candidateID string) ([]cosmetic.Layer, error) {
	if err := requireUser("cosmetic", "PreviewLayers", userID); err != nil {
		return nil, err
	}
	c, err := s.lookup(candidateID)
	if err != nil {
		return nil, err
	}
	inv, _ := s.load(ctx, "PreviewLayers", userID)
	return cosmetic.Preview(s.catalog, inv, c), nil
}

// Inventory возвращает полученные предметы в порядке получения.
func (s *CosmeticInventory) Inventory(ctx context.Context, userID string) (InventoryView, error) {
	if err := requireUser("cosmetic", "Inventory", userID); err != nil {
		return InventoryView{}, err
	}
	inv, _ := s.load(ctx, "Inventory", userID)

	view := InventoryView{
		Items:    make([]OwnedItem, 0, len(inv.Owned)),
		Equipped: inv.Equipped,
	}
	for _, o := range inv.Owned {
		c, ok := s.catalog.Get(o.ID)
		if !ok {
			continue
		}
		view.Items = append(view.Items, OwnedItem{
			Cosmetic:   c,
			UnlockedAt: o.UnlockedAt,
			Equipped:   inv.Equipped[c.Category] == c.ID,
		})
	}
	return view, nil
}

// Reset удаляет инвентарь пользователя.
func (s *CosmeticInventory) Reset(ctx context.Context, userID string) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("reset cosmetics: %w", err)
	}
	return nil
}
