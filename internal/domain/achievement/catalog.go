package achievement

import (
	"fmt"

	"github.com/pulsepet/progression/internal/domain/shared"
)

// Идентификаторы, на которые ссылаются другие компоненты.
const (
	IDSteps10000      = "steps_10000"
	IDFirstChallenge  = "first_challenge"
	IDWeeklyChampion  = "weekly_champion"
	IDFirstEvolution  = "first_evolution"
	IDStreak7         = "streak_7"
	IDStreak14        = "streak_14"
	IDStreak30        = "streak_30"
	IDStreak60        = "streak_60"
	IDStreak90        = "streak_90"
	IDStepMaster      = "step_master"
	IDSleepSage       = "sleep_sage"
	IDHeartWhisperer  = "heart_whisperer"
	IDChallengeVet    = "challenge_veteran"
	IDEvolutionExpert = "evolution_expert"
)

// DefaultDefinitions - статический каталог достижений.
// Порядок записей значим: он разрешает ничьи в статистике.
var DefaultDefinitions = []Achievement{
	// Health milestones
	{ID: "steps_5000", Name: "Первые шаги", Description: "Пройти 5 000 шагов за день", Icon: "icon_steps_bronze",
		Category: CategoryHealthMilestone, Rarity: RarityCommon,
		Condition:       Condition{Type: ConditionSteps, Threshold: 5000, Comparison: CompareGTE},
		CosmeticRewards: []string{"accessory_sneakers"}},
	{ID: IDSteps10000, Name: "Десять тысяч", Description: "Пройти 10 000 шагов за день", Icon: "icon_steps_silver",
		Category: CategoryHealthMilestone, Rarity: RarityRare,
		Condition:       Condition{Type: ConditionSteps, Threshold: 10000, Comparison: CompareGTE},
		CosmeticRewards: []string{"hat_crown"}},
	{ID: "steps_20000", Name: "Марафонец", Description: "Пройти 20 000 шагов за день", Icon: "icon_steps_gold",
		Category: CategoryHealthMilestone, Rarity: RarityEpic,
		Condition:       Condition{Type: ConditionSteps, Threshold: 20000, Comparison: CompareGTE},
		CosmeticRewards: []string{"background_summit"}},
	{ID: "sleep_8h", Name: "Соня", Description: "Спать 8 часов и больше", Icon: "icon_moon",
		Category: CategoryHealthMilestone, Rarity: RarityCommon,
		Condition:       Condition{Type: ConditionSleepHours, Threshold: 8, Comparison: CompareGTE},
		CosmeticRewards: []string{"hat_nightcap"}},
	{ID: "hrv_60", Name: "Спокойное сердце", Description: "HRV 60 мс и выше", Icon: "icon_heart",
		Category: CategoryHealthMilestone, Rarity: RarityRare,
		Condition:       Condition{Type: ConditionHRV, Threshold: 60, Comparison: CompareGTE},
		CosmeticRewards: []string{"color_rose"}},

	// Streak rewards
	{ID: IDStreak7, Name: "Неделя огня", Description: "7 хороших дней подряд", Icon: "icon_flame_1",
		Category: CategoryStreakReward, Rarity: RarityCommon,
		Condition:       Condition{Type: ConditionStreakDays, Threshold: 7, Comparison: CompareConsecutive},
		CosmeticRewards: []string{"accessory_scarf"}},
	{ID: IDStreak14, Name: "Две недели", Description: "14 хороших дней подряд", Icon: "icon_flame_2",
		Category: CategoryStreakReward, Rarity: RarityRare,
		Condition:       Condition{Type: ConditionStreakDays, Threshold: 14, Comparison: CompareConsecutive},
		CosmeticRewards: []string{"color_sunset"}},
	{ID: IDStreak30, Name: "Железная воля", Description: "30 хороших дней подряд", Icon: "icon_flame_3",
		Category: CategoryStreakReward, Rarity: RarityEpic,
		Condition:       Condition{Type: ConditionStreakDays, Threshold: 30, Comparison: CompareConsecutive},
		CosmeticRewards: []string{"hat_wizard", "background_aurora"}},
	{ID: IDStreak60, Name: "Привычка", Description: "60 хороших дней подряд", Icon: "icon_flame_4",
		Category: CategoryStreakReward, Rarity: RarityEpic,
		Condition:       Condition{Type: ConditionStreakDays, Threshold: 60, Comparison: CompareConsecutive},
		CosmeticRewards: []string{"theme_ember"}},
	{ID: IDStreak90, Name: "Легенда", Description: "90 хороших дней подряд", Icon: "icon_flame_5",
		Category: CategoryStreakReward, Rarity: RarityLegendary,
		Condition:       Condition{Type: ConditionStreakDays, Threshold: 90, Comparison: CompareConsecutive},
		CosmeticRewards: []string{"theme_cosmic", "hat_halo"}},

	// Challenge completion
	{ID: IDFirstChallenge, Name: "Вызов принят", Description: "Выполнить первый недельный вызов", Icon: "icon_flag",
		Category: CategoryChallengeCompletion, Rarity: RarityCommon,
		Condition:       Condition{Type: ConditionChallengesCompleted, Threshold: 1, Comparison: CompareGTE},
		CosmeticRewards: []string{"accessory_medal"}},
	{ID: IDChallengeVet, Name: "Ветеран", Description: "Выполнить 10 недельных вызовов", Icon: "icon_flag_gold",
		Category: CategoryChallengeCompletion, Rarity: RarityEpic,
		Condition:       Condition{Type: ConditionChallengesCompleted, Threshold: 10, Comparison: CompareGTE},
		CosmeticRewards: []string{"color_gold"}},
	{ID: IDWeeklyChampion, Name: "Чемпион недели", Description: "Выполнить все вызовы недели", Icon: "icon_trophy",
		Category: CategoryChallengeCompletion, Rarity: RarityRare,
		Condition:       Condition{Type: ConditionAllWeeklyChallenges, Threshold: 1, Comparison: CompareGTE},
		CosmeticRewards: []string{"background_podium"}},
	{ID: IDStepMaster, Name: "Мастер шагов", Description: "Выполнить недельный вызов по шагам", Icon: "icon_boot",
		Category: CategoryChallengeCompletion, Rarity: RarityRare,
		Condition:       Condition{Type: ConditionChallengeReward, Threshold: 1, Comparison: CompareEQ},
		CosmeticRewards: []string{"accessory_headband"}},
	{ID: IDSleepSage, Name: "Мудрец сна", Description: "Выполнить недельный вызов по сну", Icon: "icon_pillow",
		Category: CategoryChallengeCompletion, Rarity: RarityRare,
		Condition:       Condition{Type: ConditionChallengeReward, Threshold: 1, Comparison: CompareEQ},
		CosmeticRewards: []string{"background_night"}},
	{ID: IDHeartWhisperer, Name: "Слушающий сердце", Description: "Выполнить недельный вызов по HRV", Icon: "icon_pulse",
		Category: CategoryChallengeCompletion, Rarity: RarityRare,
		Condition:       Condition{Type: ConditionChallengeReward, Threshold: 1, Comparison: CompareEQ},
		CosmeticRewards: []string{"color_ocean"}},

	// Exploration
	{ID: IDFirstEvolution, Name: "Первая эволюция", Description: "Питомец эволюционировал впервые", Icon: "icon_egg",
		Category: CategoryExploration, Rarity: RarityRare,
		Condition:       Condition{Type: ConditionEvolutionCount, Threshold: 1, Comparison: CompareGTE},
		CosmeticRewards: []string{"background_meadow"}},
	{ID: IDEvolutionExpert, Name: "Эволюционист", Description: "Три эволюции питомца", Icon: "icon_dna",
		Category: CategoryExploration, Rarity: RarityLegendary,
		Condition:       Condition{Type: ConditionEvolutionCount, Threshold: 3, Comparison: CompareGTE},
		CosmeticRewards: []string{"theme_zen"}},

	// Special events
	{ID: "early_adopter", Name: "Первопроходец", Description: "С нами с самого начала", Icon: "icon_star",
		Category: CategorySpecialEvent, Rarity: RarityLegendary,
		Condition:       Condition{Type: ConditionCustom, Threshold: 1, Comparison: CompareEQ},
		CosmeticRewards: []string{"hat_party"}},
}

// Catalog - индексированный неизменяемый каталог.
type Catalog struct {
	entries []Achievement
	index   map[string]int
}

// NewCatalog строит каталог и проверяет уникальность и корректность записей.
func NewCatalog(defs []Achievement) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Achievement, len(defs)),
		index:   make(map[string]int, len(defs)),
	}
	copy(c.entries, defs)
	for i, a := range c.entries {
		if a.ID == "" {
			return nil, fmt.Errorf("achievement catalog: entry %d has empty id", i)
		}
		if _, dup := c.index[a.ID]; dup {
			return nil, fmt.Errorf("achievement catalog: duplicate id %q", a.ID)
		}
		if !a.Category.IsValid() || !a.Rarity.IsValid() {
			return nil, fmt.Errorf("achievement catalog: %q has invalid category or rarity", a.ID)
		}
		c.index[a.ID] = i
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

// Get ищет достижение по id.
func (c *Catalog) Get(id string) (Achievement, bool) {
	i, ok := c.index[id]
	if !ok {
		return Achievement{}, false
	}
	return c.entries[i], true
}

// Order возвращает позицию в каталоге (для разрешения ничьих).
func (c *Catalog) Order(id string) int {
	if i, ok := c.index[id]; ok {
		return i
	}
	return len(c.entries)
}

// All возвращает копию всех записей в порядке каталога.
func (c *Catalog) All() []Achievement {
	out := make([]Achievement, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len возвращает размер каталога.
func (c *Catalog) Len() int { return len(c.entries) }

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var errMissingMaps = shared.NewDomainError("achievement", "Validate", shared.ErrCorrupted, "state maps are missing")

func errUnknownID(id string) error {
	return shared.NewDomainError("achievement", "Validate", shared.ErrCorrupted,
		fmt.Sprintf("unknown achievement id %q", id))
}

func errZeroUnlock(id string) error {
	return shared.NewDomainError("achievement", "Validate", shared.ErrCorrupted,
		fmt.Sprintf("achievement %q has zero unlock time", id))
}

func errBadPercentage(id string) error {
	return shared.NewDomainError("achievement", "Validate", shared.ErrCorrupted,
		fmt.Sprintf("achievement %q has percentage out of range", id))
}

// ErrAchievementNotFound - обращение к неизвестному id.
func ErrAchievementNotFound(id string) error {
	return shared.NotFoundf("achievement", "Find", "achievement %q not found", id)
}
