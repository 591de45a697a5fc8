package cosmetic

import "fmt"

func pixels(color string, pts ...[2]int) []Pixel {
	out := make([]Pixel, 0, len(pts))
	for _, p := range pts {
		out = append(out, Pixel{X: p[0], Y: p[1], Color: color})
	}
	return out
}

func background(id, name string, r Rarity, override, achievementID string) Cosmetic {
	return Cosmetic{ID: id, Name: name, Category: CategoryBackground, Rarity: r,
		Render:              RenderPayload{Layer: CategoryBackground.LayerIndex(), Override: override},
		UnlockAchievementID: achievementID}
}

func color(id, name string, r Rarity, override, achievementID string) Cosmetic {
	return Cosmetic{ID: id, Name: name, Category: CategoryColor, Rarity: r,
		Render:              RenderPayload{Layer: CategoryColor.LayerIndex(), Override: override},
		UnlockAchievementID: achievementID}
}

func theme(id, name string, r Rarity, override, achievementID string) Cosmetic {
	return Cosmetic{ID: id, Name: name, Category: CategoryTheme, Rarity: r,
		Render:              RenderPayload{Layer: CategoryTheme.LayerIndex(), Override: override},
		UnlockAchievementID: achievementID}
}

func sprite(id, name string, cat Category, r Rarity, off Offset, px []Pixel, achievementID string) Cosmetic {
	return Cosmetic{ID: id, Name: name, Category: cat, Rarity: r,
		Render:              RenderPayload{Layer: cat.LayerIndex(), Offset: off, Pixels: px},
		UnlockAchievementID: achievementID}
}

// DefaultDefinitions - статический каталог косметики.
var DefaultDefinitions = []Cosmetic{
	// Backgrounds
	background("background_summit", "Вершина", RarityEpic, "bg_summit", "steps_20000"),
	background("background_aurora", "Северное сияние", RarityEpic, "bg_aurora", "streak_30"),
	background("background_podium", "Пьедестал", RarityRare, "bg_podium", "weekly_champion"),
	background("background_night", "Звёздная ночь", RarityRare, "bg_night", "sleep_sage"),
	background("background_meadow", "Луг", RarityRare, "bg_meadow", "first_evolution"),

	// Colors
	color("color_rose", "Розовый", RarityRare, "#f4a6b8", "hrv_60"),
	color("color_sunset", "Закат", RarityRare, "#ff8c5a", "streak_14"),
	color("color_gold", "Золото", RarityEpic, "#ffd447", "challenge_veteran"),
	color("color_ocean", "Океан", RarityRare, "#3a8fd8", "heart_whisperer"),

	// Accessories
	sprite("accessory_sneakers", "Кроссовки", CategoryAccessory, RarityCommon, Offset{X: 0, Y: 12},
		pixels("#e94f37", [2]int{3, 0}, [2]int{4, 0}, [2]int{11, 0}, [2]int{12, 0}), "steps_5000"),
	sprite("accessory_scarf", "Шарф", CategoryAccessory, RarityCommon, Offset{X: 0, Y: 8},
		pixels("#c0392b", [2]int{5, 0}, [2]int{6, 0}, [2]int{7, 0}, [2]int{8, 0}, [2]int{8, 1}), "streak_7"),
	sprite("accessory_medal", "Медаль", CategoryAccessory, RarityCommon, Offset{X: 7, Y: 9},
		pixels("#f1c40f", [2]int{0, 0}, [2]int{1, 0}, [2]int{0, 1}, [2]int{1, 1}), "first_challenge"),
	sprite("accessory_headband", "Повязка", CategoryAccessory, RarityRare, Offset{X: 2, Y: 3},
		pixels("#2ecc71", [2]int{0, 0}, [2]int{1, 0}, [2]int{2, 0}, [2]int{3, 0}, [2]int{4, 0}), "step_master"),

	// Hats
	sprite("hat_crown", "Корона", CategoryHat, RarityRare, Offset{X: 4, Y: -4},
		pixels("#f5c518", [2]int{0, 2}, [2]int{1, 0}, [2]int{2, 2}, [2]int{3, 0}, [2]int{4, 2}), "steps_10000"),
	sprite("hat_nightcap", "Ночной колпак", CategoryHat, RarityCommon, Offset{X: 4, Y: -5},
		pixels("#5d6d7e", [2]int{0, 3}, [2]int{1, 2}, [2]int{2, 1}, [2]int{3, 0}), "sleep_8h"),
	sprite("hat_wizard", "Шляпа мага", CategoryHat, RarityEpic, Offset{X: 3, Y: -6},
		pixels("#6c3483", [2]int{2, 0}, [2]int{1, 1}, [2]int{2, 1}, [2]int{3, 1}, [2]int{0, 2}, [2]int{4, 2}), "streak_30"),
	sprite("hat_halo", "Нимб", CategoryHat, RarityLegendary, Offset{X: 4, Y: -3},
		pixels("#fff6a9", [2]int{0, 0}, [2]int{1, 0}, [2]int{2, 0}, [2]int{3, 0}), "streak_90"),
	sprite("hat_party", "Праздничный колпак", CategoryHat, RarityLegendary, Offset{X: 5, Y: -5},
		pixels("#e84393", [2]int{1, 0}, [2]int{0, 1}, [2]int{1, 1}, [2]int{2, 1}), "early_adopter"),

	// Themes
	theme("theme_ember", "Угли", RarityEpic, "theme_ember", "streak_60"),
	theme("theme_cosmic", "Космос", RarityLegendary, "theme_cosmic", "streak_90"),
	theme("theme_zen", "Дзен", RarityLegendary, "theme_zen", "evolution_expert"),
}

// Catalog - индексированный каталог косметики.
type Catalog struct {
	entries []Cosmetic
	index   map[string]int
}

// NewCatalog строит каталог и проверяет записи: уникальные id, известная
// категория и слой, совпадающий с категорией.
func NewCatalog(defs []Cosmetic) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Cosmetic, len(defs)),
		index:   make(map[string]int, len(defs)),
	}
	copy(c.entries, defs)
	for i, item := range c.entries {
		if item.ID == "" {
			return nil, fmt.Errorf("cosmetic catalog: entry %d has empty id", i)
		}
		if _, dup := c.index[item.ID]; dup {
			return nil, fmt.Errorf("cosmetic catalog: duplicate id %q", item.ID)
		}
		if !item.Category.IsValid() || !item.Rarity.IsValid() {
			return nil, fmt.Errorf("cosmetic catalog: %q has invalid category or rarity", item.ID)
		}
		if item.Render.Layer != item.Category.LayerIndex() {
			return nil, fmt.Errorf("cosmetic catalog: %q layer %d does not match category %q",
				item.ID, item.Render.Layer, item.Category)
		}
		c.index[item.ID] = i
	}
	return c, nil
}

// DefaultCatalog возвращает каталог по умолчанию.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultDefinitions)
	if err != nil {
		panic(err)
	}
	return c
}

// Get ищет предмет по id.
func (c *Catalog) Get(id string) (Cosmetic, bool) {
	i, ok := c.index[id]
	if !ok {
		return Cosmetic{}, false
	}
	return c.entries[i], true
}

// All возвращает копию каталога.
func (c *Catalog) All() []Cosmetic {
	out := make([]Cosmetic, len(c.entries))
	copy(out, c.entries)
	return out
}
