// Package cosmetic содержит каталог косметики питомца, инвентарь
// пользователя и сборку слоёв для отрисовки.
package cosmetic

import (
	"fmt"
	"time"

	"github.com/pulsepet/progression/internal/domain/shared"
)

// Category - категория косметики. У каждой категории фиксированный слой.
type Category string

const (
	CategoryBackground Category = "background"
	CategoryColor      Category = "color"
	CategoryAccessory  Category = "accessory"
	CategoryHat        Category = "hat"
	CategoryTheme      Category = "theme"
)

// Categories - все категории в порядке отрисовки (от заднего плана).
var Categories = []Category{
	CategoryBackground,
	CategoryColor,
	CategoryAccessory,
	CategoryHat,
	CategoryTheme,
}

// LayerIndex возвращает индекс слоя категории или -1 для неизвестной.
func (c Category) LayerIndex() int {
	switch c {
	case CategoryBackground:
		return 0
	case CategoryColor:
		return 1
	case CategoryAccessory:
		return 2
	case CategoryHat:
		return 3
	case CategoryTheme:
		return 4
	}
	return -1
}

// IsValid проверяет категорию.
func (c Category) IsValid() bool { return c.LayerIndex() >= 0 }

// Rarity - редкость предмета.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// IsValid проверяет редкость.
func (r Rarity) IsValid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// Offset - смещение слоя относительно спрайта питомца.
type Offset struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pixel - точка пиксельного спрайта.
type Pixel struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
}

// RenderPayload - данные для отрисовки: либо пиксели, либо токен
// переопределения цвета/темы.
type RenderPayload struct {
	Layer    int     `json:"layer"`
	Offset   Offset  `json:"offset"`
	Pixels   []Pixel `json:"pixels,omitempty"`
	Override string  `json:"override,omitempty"`
}

// Cosmetic - запись каталога.
type Cosmetic struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Category Category      `json:"category"`
	Rarity   Rarity        `json:"rarity"`
	Render   RenderPayload `json:"render"`

	// UnlockAchievementID - справочно: за какое достижение выдаётся.
	UnlockAchievementID string `json:"unlock_achievement_id,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// INVENTORY
// ══════════════════════════════════════════════════════════════════════════════

// Owned - принадлежащий пользователю предмет.
type Owned struct {
	ID         string    `json:"id"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// Inventory - набор предметов пользователя и экипировка
// (не больше одного предмета на категорию).
type Inventory struct {
	Owned    []Owned             `json:"owned"`
	Equipped map[Category]string `json:"equipped"`
}

// NewInventory создаёт пустой инвентарь.
func NewInventory() *Inventory {
	return &Inventory{
		Owned:    []Owned{},
		Equipped: make(map[Category]string),
	}
}

// Owns возвращает true, если предмет есть в инвентаре.
func (inv *Inventory) Owns(id string) bool {
	_, ok := inv.find(id)
	return ok
}

// UnlockedAt возвращает время получения предмета.
func (inv *Inventory) UnlockedAt(id string) (time.Time, bool) {
	o, ok := inv.find(id)
	if !ok {
		return time.Time{}, false
	}
	return o.UnlockedAt, true
}

func (inv *Inventory) find(id string) (Owned, bool) {
	for _, o := range inv.Owned {
		if o.ID == id {
			return o, true
		}
	}
	return Owned{}, false
}

// Add добавляет предмет. Повторная выдача игнорируется и возвращает false.
func (inv *Inventory) Add(id string, at time.Time) bool {
	if inv.Owns(id) {
		return false
	}
	inv.Owned = append(inv.Owned, Owned{ID: id, UnlockedAt: at.UTC()})
	return true
}

// Equip надевает предмет, заменяя прежний в той же категории.
// Возвращает id заменённого предмета (пусто, если слот был свободен).
func (inv *Inventory) Equip(c Cosmetic) (string, error) {
	if !inv.Owns(c.ID) {
		return "", shared.NewDomainError("cosmetic", "Equip", shared.ErrNotOwned,
			fmt.Sprintf("cosmetic %q is not owned", c.ID))
	}
	prev := inv.Equipped[c.Category]
	inv.Equipped[c.Category] = c.ID
	return prev, nil
}

// Unequip снимает предмет, только если именно он надет в своей категории.
func (inv *Inventory) Unequip(c Cosmetic) bool {
	if inv.Equipped[c.Category] != c.ID {
		return false
	}
	delete(inv.Equipped, c.Category)
	return true
}

// Validate проверяет инвентарь против каталога.
func (inv *Inventory) Validate(catalog *Catalog) error {
	if inv.Owned == nil || inv.Equipped == nil {
		return errCorrupt("inventory collections are missing")
	}
	seen := make(map[string]struct{}, len(inv.Owned))
	for _, o := range inv.Owned {
		if _, ok := catalog.Get(o.ID); !ok {
			return errCorrupt(fmt.Sprintf("unknown cosmetic %q", o.ID))
		}
		if _, dup := seen[o.ID]; dup {
			return errCorrupt(fmt.Sprintf("duplicate cosmetic %q", o.ID))
		}
		seen[o.ID] = struct{}{}
	}
	for cat, id := range inv.Equipped {
		c, ok := catalog.Get(id)
		if !ok || c.Category != cat {
			return errCorrupt(fmt.Sprintf("equipped %q does not match slot %q", id, cat))
		}
		if _, owned := seen[id]; !owned {
			return errCorrupt(fmt.Sprintf("equipped %q is not owned", id))
		}
	}
	return nil
}

func errCorrupt(msg string) error {
	return shared.NewDomainError("cosmetic", "Validate", shared.ErrCorrupted, msg)
}

// ErrCosmeticNotFound - обращение к неизвестному предмету.
func ErrCosmeticNotFound(id string) error {
	return shared.NotFoundf("cosmetic", "Find", "cosmetic %q not found", id)
}
