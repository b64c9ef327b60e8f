package catalogs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy"
)

func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"commodities.json": `[
			{"id":"ICE","name":"Water Ice","min_price":1,"max_price":6},
			{"id":"WATER","name":"Purified Water","min_price":2,"max_price":10},
			{"id":"FOOD","name":"Food Rations","min_price":6,"max_price":30}
		]`,
		"recipes.json": `[
			{"recipe_id":"water_from_ice","output":"WATER","output_qty":2,"inputs":[{"commodity":"ICE","quantity":1}]},
			{"recipe_id":"food_from_water","output":"FOOD","output_qty":1,"inputs":[{"commodity":"WATER","quantity":2}]}
		]`,
		"universe.json": `{
			"sectors":[{"id":"sec-a","name":"A"},{"id":"sec-b","name":"B"}],
			"links":[["sec-a","sec-b"]]
		}`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoad(t *testing.T) {
	c, err := Load(writeFixtures(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Commodities.Palette) != 3 || c.Commodities.Palette[0] != "FOOD" {
		t.Fatalf("palette wrong: %v", c.Commodities.Palette)
	}
	if c.Commodities.Index["ICE"] != 1 {
		t.Fatalf("index wrong: %v", c.Commodities.Index)
	}
	if c.Commodities.Digest == "" || c.Commodities.PaletteDigest == "" || c.Recipes.Digest == "" || c.Universe.Digest == "" {
		t.Fatalf("missing digests")
	}
	if len(c.Recipes.ByOutput["WATER"]) != 1 {
		t.Fatalf("recipes by output wrong")
	}
	if len(c.Universe.Sectors) != 2 || len(c.Universe.Links) != 1 {
		t.Fatalf("universe wrong: %+v", c.Universe)
	}
}

func TestLoadRejectsUnknownReferences(t *testing.T) {
	dir := writeFixtures(t)
	bad := `[{"recipe_id":"r","output":"FOOD","output_qty":1,"inputs":[{"commodity":"NOPE","quantity":1}]}]`
	if err := os.WriteFile(filepath.Join(dir, "recipes.json"), []byte(bad), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected unknown-input error")
	}
}

func TestLoadRejectsFractionalQuantities(t *testing.T) {
	cases := []struct {
		name    string
		recipes string
	}{
		{"fractional input", `[{"recipe_id":"r","output":"FOOD","output_qty":1,"inputs":[{"commodity":"ICE","quantity":0.5}]}]`},
		{"fractional output", `[{"recipe_id":"r","output":"FOOD","output_qty":1.5,"inputs":[{"commodity":"ICE","quantity":1}]}]`},
	}
	for _, tc := range cases {
		dir := writeFixtures(t)
		if err := os.WriteFile(filepath.Join(dir, "recipes.json"), []byte(tc.recipes), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		_, err := Load(dir)
		if !errors.Is(err, economy.ErrNonIntegerQuantity) {
			t.Fatalf("%s: expected ErrNonIntegerQuantity, got %v", tc.name, err)
		}
	}
}

func TestCostModelFromCatalogs(t *testing.T) {
	c, err := Load(writeFixtures(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	m := c.CostModel(1.25, 4)
	// ICE is chainless: fallback band.
	if b := m.PriceBand("ICE"); b.Min != 1 || b.Max != 6 {
		t.Fatalf("ICE band wrong: %+v", b)
	}
	// WATER = 1 ICE * 1 * 1.25.
	if got := m.MinPrice("WATER"); got != 1.25 {
		t.Fatalf("WATER min price wrong: %v", got)
	}
	// FOOD = 2 WATER * 1.25 = 3.125.
	if got := m.MinPrice("FOOD"); got != 3.125 {
		t.Fatalf("FOOD min price wrong: %v", got)
	}
}
