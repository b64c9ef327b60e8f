package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	// Scheduler cooldowns. Offer refresh runs faster than price
	// adjustment.
	OfferRefreshTicks    int `yaml:"offer_refresh_ticks"`
	PriceAdjustTicks     int `yaml:"price_adjust_ticks"`
	ProductionCycleTicks int `yaml:"production_cycle_ticks"`

	// Pricing.
	Markup           float64 `yaml:"markup"`
	Spread           float64 `yaml:"spread"`
	FillShrink       float64 `yaml:"fill_shrink"`
	MeanReversion    float64 `yaml:"mean_reversion"`
	NeighborhoodHops int     `yaml:"neighborhood_hops"`

	// Trade and relations.
	TradeRelationThreshold float64 `yaml:"trade_relation_threshold"`
	PlayerRelationNudge    float64 `yaml:"player_relation_nudge"`
	JournalCap             int     `yaml:"journal_cap"`

	// Mining.
	MiningYieldPerTick int `yaml:"mining_yield_per_tick"`
}

// Default is the tuning used when no file is given; tests run on it.
func Default() Tuning {
	return Tuning{
		ProtocolVersion:        "1",
		TickRateHz:             10,
		SnapshotEveryTicks:     600,
		OfferRefreshTicks:      20,
		PriceAdjustTicks:       100,
		ProductionCycleTicks:   50,
		Markup:                 1.25,
		Spread:                 4,
		FillShrink:             0.9,
		MeanReversion:          0.3,
		NeighborhoodHops:       2,
		TradeRelationThreshold: -50,
		PlayerRelationNudge:    0.5,
		JournalCap:             256,
		MiningYieldPerTick:     2,
	}
}

func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
