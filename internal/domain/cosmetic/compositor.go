package cosmetic

import "sort"

// Layer - один слой итоговой композиции.
type Layer struct {
	Index    int      `json:"index"`
	Category Category `json:"category"`
	Cosmetic Cosmetic `json:"cosmetic"`
}

// Compose собирает надетые предметы в список слоёв по возрастанию индекса
// слоя: фон рисуется первым, тема последней. Неизвестные id пропускаются.
func Compose(catalog *Catalog, equipped map[Category]string) []Layer {
	layers := make([]Layer, 0, len(equipped))
	for cat, id := range equipped {
		item, ok := catalog.Get(id)
		if !ok || item.Category != cat {
			continue
		}
		layers = append(layers, Layer{Index: cat.LayerIndex(), Category: cat, Cosmetic: item})
	}
	sort.SliceStable(layers, func(i, j int) bool {
		return layers[i].Index < layers[j].Index
	})
	return layers
}

// Preview собирает композицию, в которой слот категории кандидата занят
// кандидатом. Инвентарь не изменяется.
func Preview(catalog *Catalog, inv *Inventory, candidate Cosmetic) []Layer {
	equipped := make(map[Category]string, len(inv.Equipped)+1)
	for cat, id := range inv.Equipped {
		equipped[cat] = id
	}
	equipped[candidate.Category] = candidate.ID
	return Compose(catalog, equipped)
}
