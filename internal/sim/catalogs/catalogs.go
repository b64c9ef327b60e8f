package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/production"
)

type Catalogs struct {
	Commodities CommodityCatalog
	Recipes     RecipeCatalog
	Universe    UniverseCatalog
}

type CommodityCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]CommodityDef
	Digest        string
	PaletteDigest string
}

type CommodityDef struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Min  float64 `json:"min_price"`
	Max  float64 `json:"max_price"`
}

type RecipeCatalog struct {
	ByID     map[string]RecipeDef
	ByOutput map[string][]RecipeDef
	Digest   string
}

type RecipeDef struct {
	RecipeID  string           `json:"recipe_id"`
	Output    string           `json:"output"`
	OutputQty int              `json:"output_qty"`
	Inputs    []CommodityCount `json:"inputs"`
}

type CommodityCount struct {
	Commodity string `json:"commodity"`
	Quantity  int    `json:"quantity"`
}

type UniverseCatalog struct {
	Sectors []SectorDef `json:"sectors"`
	Links   [][2]string `json:"links"`
	Digest  string
}

type SectorDef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadCommodities(filepath.Join(configDir, "commodities.json"), &c.Commodities); err != nil {
		return nil, err
	}
	if err := loadRecipes(filepath.Join(configDir, "recipes.json"), &c.Recipes, c.Commodities); err != nil {
		return nil, err
	}
	if err := loadUniverse(filepath.Join(configDir, "universe.json"), &c.Universe); err != nil {
		return nil, err
	}
	return &c, nil
}

// CostModel builds the price-band estimator from the catalogs. Chainless
// commodities fall back to their catalog band.
func (c *Catalogs) CostModel(markup, spread float64) production.CostModel {
	m := production.CostModel{
		Recipes:  map[string][]production.Recipe{},
		Fallback: map[string]production.Band{},
		Markup:   markup,
		Spread:   spread,
	}
	for id, d := range c.Commodities.Defs {
		m.Fallback[id] = production.Band{Min: d.Min, Max: d.Max}
	}
	for output, defs := range c.Recipes.ByOutput {
		for _, d := range defs {
			r := production.Recipe{Output: output}
			for _, in := range d.Inputs {
				r.Inputs = append(r.Inputs, production.Input{Commodity: in.Commodity, Quantity: in.Quantity})
			}
			m.Recipes[output] = append(m.Recipes[output], r)
		}
	}
	return m
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadCommodities(path string, out *CommodityCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []CommodityDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("commodities.json: %w", err)
	}
	out.Defs = map[string]CommodityDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("commodities.json: empty id")
		}
		if d.Min <= 0 || d.Max < d.Min {
			return fmt.Errorf("commodities.json: %s: bad price band [%v, %v]", d.ID, d.Min, d.Max)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

// Recipes are decoded with float quantities so a fractional value in the
// file surfaces as ErrNonIntegerQuantity instead of a generic json error.
type rawRecipe struct {
	RecipeID  string     `json:"recipe_id"`
	Output    string     `json:"output"`
	OutputQty float64    `json:"output_qty"`
	Inputs    []rawCount `json:"inputs"`
}

type rawCount struct {
	Commodity string  `json:"commodity"`
	Quantity  float64 `json:"quantity"`
}

func loadRecipes(path string, out *RecipeCatalog, commodities CommodityCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []rawRecipe
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("recipes.json: %w", err)
	}
	out.ByID = map[string]RecipeDef{}
	out.ByOutput = map[string][]RecipeDef{}
	for _, rr := range defs {
		if rr.RecipeID == "" {
			return fmt.Errorf("recipes.json: empty recipe_id")
		}
		if _, ok := commodities.Defs[rr.Output]; !ok {
			return fmt.Errorf("recipes.json: %s: unknown output %q", rr.RecipeID, rr.Output)
		}
		outQty, err := economy.CheckQuantity(rr.OutputQty)
		if err != nil {
			return fmt.Errorf("recipes.json: %s: output_qty %v: %w", rr.RecipeID, rr.OutputQty, err)
		}
		if outQty == 0 {
			return fmt.Errorf("recipes.json: %s: output_qty must be positive", rr.RecipeID)
		}
		r := RecipeDef{RecipeID: rr.RecipeID, Output: rr.Output, OutputQty: outQty}
		for _, in := range rr.Inputs {
			if _, ok := commodities.Defs[in.Commodity]; !ok {
				return fmt.Errorf("recipes.json: %s: unknown input %q", rr.RecipeID, in.Commodity)
			}
			qty, err := economy.CheckQuantity(in.Quantity)
			if err != nil {
				return fmt.Errorf("recipes.json: %s: input %s quantity %v: %w", rr.RecipeID, in.Commodity, in.Quantity, err)
			}
			if qty == 0 {
				return fmt.Errorf("recipes.json: %s: input quantity must be positive", rr.RecipeID)
			}
			r.Inputs = append(r.Inputs, CommodityCount{Commodity: in.Commodity, Quantity: qty})
		}
		out.ByID[r.RecipeID] = r
		out.ByOutput[r.Output] = append(out.ByOutput[r.Output], r)
	}
	return nil
}

func loadUniverse(path string, out *UniverseCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("universe.json: %w", err)
	}
	seen := map[string]bool{}
	for _, s := range out.Sectors {
		if s.ID == "" {
			return fmt.Errorf("universe.json: empty sector id")
		}
		if seen[s.ID] {
			return fmt.Errorf("universe.json: duplicate sector %q", s.ID)
		}
		seen[s.ID] = true
	}
	for _, l := range out.Links {
		if !seen[l[0]] || !seen[l[1]] {
			return fmt.Errorf("universe.json: link %v references unknown sector", l)
		}
	}
	return nil
}
