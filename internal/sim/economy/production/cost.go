package production

// Band is the commodity-specific clamp for price beliefs.
type Band struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type Input struct {
	Commodity string `json:"commodity"`
	Quantity  int    `json:"quantity"`
}

// Recipe is one way of producing a commodity.
type Recipe struct {
	Output string  `json:"output"`
	Inputs []Input `json:"inputs"`
}

// CostModel estimates minimum sell prices from production chains.
// Commodities with no recipe fall back to their heuristic band.
type CostModel struct {
	Recipes  map[string][]Recipe // output commodity -> recipes
	Fallback map[string]Band     // heuristic bands for chainless commodities
	Markup   float64             // applied per chain level, > 1
	Spread   float64             // band width factor, > 1
}

// MinPrice returns the estimated production cost of a commodity: the
// cheapest input chain, recursively, times the markup. Chains can be
// circular in catalog data; a visited set breaks the recursion and the
// commodity falls back to its heuristic band.
func (m CostModel) MinPrice(commodity string) float64 {
	return m.minPrice(commodity, map[string]bool{})
}

func (m CostModel) minPrice(commodity string, visited map[string]bool) float64 {
	if visited[commodity] {
		return m.fallbackMin(commodity)
	}
	recipes := m.Recipes[commodity]
	if len(recipes) == 0 {
		return m.fallbackMin(commodity)
	}
	visited[commodity] = true
	defer delete(visited, commodity)

	cheapest := -1.0
	for _, r := range recipes {
		cost := 0.0
		for _, in := range r.Inputs {
			cost += float64(in.Quantity) * m.minPrice(in.Commodity, visited)
		}
		if cheapest < 0 || cost < cheapest {
			cheapest = cost
		}
	}
	if cheapest < 0 {
		return m.fallbackMin(commodity)
	}
	return cheapest * m.markup()
}

// PriceBand returns the belief clamp for a commodity.
func (m CostModel) PriceBand(commodity string) Band {
	if len(m.Recipes[commodity]) == 0 {
		if b, ok := m.Fallback[commodity]; ok {
			return b
		}
	}
	min := m.MinPrice(commodity)
	if min <= 0 {
		if b, ok := m.Fallback[commodity]; ok {
			return b
		}
		min = 1
	}
	return Band{Min: min, Max: min * m.spread()}
}

func (m CostModel) fallbackMin(commodity string) float64 {
	if b, ok := m.Fallback[commodity]; ok {
		return b.Min
	}
	return 1
}

func (m CostModel) markup() float64 {
	if m.Markup <= 1 {
		return 1.25
	}
	return m.Markup
}

func (m CostModel) spread() float64 {
	if m.Spread <= 1 {
		return 4
	}
	return m.Spread
}
