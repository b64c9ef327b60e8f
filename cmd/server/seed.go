package main

import (
	"log"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/catalogs"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/production"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/world"
)

// seedDemoEconomy populates a fresh world with a small working supply
// chain: extractors at the edges, refiners in the middle, and a player
// faction with one ship.
func seedDemoEconomy(w *world.World, cats *catalogs.Catalogs, logger *log.Logger) {
	miners := w.AddFaction("Teegarden Mining Guild", false, 20000)
	agri := w.AddFaction("Gaia Agricultural Combine", false, 30000)
	industry := w.AddFaction("Barnard Industrial Consortium", false, 30000)
	player := w.AddFaction("Player", true, 10000)

	w.AddField("sec-teegarden", "ICE")
	w.AddField("sec-ross", "ORE")
	w.AddField("sec-barnard", "SILICA")

	extractor := func(commodity string, rate int) production.Module {
		return production.Module{
			ID:   "extract_" + commodity,
			Name: commodity + " extractor",
			PAC:  production.PAC{commodity: {Produces: rate}},
		}
	}

	type site struct {
		name     string
		faction  string
		sector   string
		capacity int
		money    float64
		modules  []production.Module
		stock    map[string]int
	}
	sites := []site{
		{
			name: "Teegarden Ice Works", faction: miners.ID, sector: "sec-teegarden",
			capacity: 600, money: 5000,
			modules: []production.Module{extractor("ICE", 4)},
			stock:   map[string]int{"ICE": 120},
		},
		{
			name: "Ross Ore Rig", faction: miners.ID, sector: "sec-ross",
			capacity: 600, money: 5000,
			modules: []production.Module{extractor("ORE", 3), extractor("SILICA", 2)},
			stock:   map[string]int{"ORE": 80, "SILICA": 40},
		},
		{
			name: "Gaia Hydroponics", faction: agri.ID, sector: "sec-gaia",
			capacity: 500, money: 8000,
			modules: []production.Module{
				moduleFromRecipe(cats, "water_from_ice", 2),
				moduleFromRecipe(cats, "food_from_water", 1),
			},
			stock: map[string]int{"ICE": 40},
		},
		{
			name: "Barnard Refinery", faction: industry.ID, sector: "sec-barnard",
			capacity: 500, money: 8000,
			modules: []production.Module{
				moduleFromRecipe(cats, "metals_from_ore", 2),
				moduleFromRecipe(cats, "fuel_from_ice", 1),
			},
			stock: map[string]int{"ORE": 60, "ICE": 20},
		},
		{
			name: "Barnard Fabricator", faction: industry.ID, sector: "sec-barnard",
			capacity: 400, money: 10000,
			modules: []production.Module{
				moduleFromRecipe(cats, "electronics", 1),
				moduleFromRecipe(cats, "hull_plates", 1),
			},
			stock: map[string]int{"METALS": 20, "SILICA": 20},
		},
	}
	for _, s := range sites {
		f := w.AddFacility(s.name, s.faction, s.sector, s.capacity, s.money, s.modules)
		for c, n := range s.stock {
			_, _ = f.Storage.AddStock(c, n, true)
		}
	}

	w.AddShip("Merchant One", player.ID, "sec-gaia", 100)
	w.AddShip("Guild Hauler", miners.ID, "sec-teegarden", 150)

	logger.Printf("seeded demo economy: %d factions, %d sites", 4, len(sites))
}

// moduleFromRecipe turns a catalog recipe into a production module with
// the given parallelism.
func moduleFromRecipe(cats *catalogs.Catalogs, recipeID string, scale int) production.Module {
	r, ok := cats.Recipes.ByID[recipeID]
	if !ok {
		return production.Module{ID: recipeID, PAC: production.PAC{}}
	}
	if scale <= 0 {
		scale = 1
	}
	pac := production.PAC{}
	for _, in := range r.Inputs {
		cur := pac[in.Commodity]
		cur.Consumes += in.Quantity * scale
		pac[in.Commodity] = cur
	}
	out := pac[r.Output]
	out.Produces += r.OutputQty * scale
	pac[r.Output] = out
	return production.Module{ID: r.RecipeID, Name: r.RecipeID, PAC: pac}
}
