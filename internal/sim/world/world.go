// Package world implements the authoritative single-threaded sector
// economy. All state is owned by the world loop goroutine; every mutating
// call must run on it. Each tick runs the systems in a fixed order so
// identical inputs yield identical state digests.
package world

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync/atomic"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/catalogs"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/production"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/settlement"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/tuning"
)

type Config struct {
	ID   string
	Seed int64
	Tune tuning.Tuning
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg  Config
	tune tuning.Tuning

	costModel production.CostModel

	tick atomic.Uint64

	sectors map[string]*Sector
	hops    map[string]map[string]int

	factions     map[string]*Faction
	facilities   map[string]*Facility
	ships        map[string]*Ship
	fields       map[string]*Field
	transactions map[string]*settlement.Transaction

	nextFactionNum  atomic.Uint64
	nextFacilityNum atomic.Uint64
	nextShipNum     atomic.Uint64
	nextFieldNum    atomic.Uint64
	nextTxNum       atomic.Uint64
	nextOrderNum    atomic.Uint64

	// Tick-scoped correlation sequence, reset at each tick boundary.
	corrSeq uint64

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	tradeLogger TradeLogger

	// Optional snapshot sink (may be nil). Snapshot writing is off-thread.
	snapshotSink chan<- ExportedSnapshot

	stats Stats
	// Last published copy of stats. The metrics endpoint reads it from
	// HTTP goroutines, so it must never observe w.stats mid-mutation.
	statsView atomic.Value
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type TradeLogger interface {
	WriteTrade(entry TradeLogEntry) error
}

type TickLogEntry struct {
	Tick   uint64 `json:"tick"`
	Trades int    `json:"trades,omitempty"`
	Digest string `json:"digest"`
}

type TradeLogEntry struct {
	Tick          uint64  `json:"tick"`
	TransactionID string  `json:"transaction_id"`
	CorrelationID uint64  `json:"correlation_id"`
	Initiator     string  `json:"initiator"`
	Trader        string  `json:"trader"`
	Commodity     string  `json:"commodity"`
	Quantity      int     `json:"quantity"`
	Price         float64 `json:"price"`
	Type          string  `json:"type"`
}

// Stats are cumulative counters read by the metrics endpoint.
type Stats struct {
	Ticks          uint64
	TradesSettled  uint64
	TradesAborted  uint64
	TradeVolume    float64
	UnitsProduced  uint64
	UnitsMined     uint64
	UnitsDiscarded uint64
}

func New(cfg Config) *World {
	if cfg.Tune.TickRateHz == 0 {
		cfg.Tune = tuning.Default()
	}
	w := &World{
		cfg:          cfg,
		tune:         cfg.Tune,
		costModel:    production.CostModel{Markup: cfg.Tune.Markup, Spread: cfg.Tune.Spread},
		sectors:      map[string]*Sector{},
		hops:         map[string]map[string]int{},
		factions:     map[string]*Faction{},
		facilities:   map[string]*Facility{},
		ships:        map[string]*Ship{},
		fields:       map[string]*Field{},
		transactions: map[string]*settlement.Transaction{},
	}
	w.publishStats()
	return w
}

// NewFromCatalogs builds a world with the universe graph and cost model
// taken from the loaded catalogs.
func NewFromCatalogs(cfg Config, cats *catalogs.Catalogs) *World {
	w := New(cfg)
	w.costModel = cats.CostModel(w.tune.Markup, w.tune.Spread)
	for _, s := range cats.Universe.Sectors {
		w.AddSector(s.ID, s.Name)
	}
	for _, l := range cats.Universe.Links {
		w.LinkSectors(l[0], l[1])
	}
	return w
}

func (w *World) Tick() uint64          { return w.tick.Load() }
func (w *World) Tuning() tuning.Tuning { return w.tune }

// Stats returns the last published counter snapshot. Safe to call from
// any goroutine; the world loop publishes after every batch of
// mutations.
func (w *World) Stats() Stats { return w.statsView.Load().(Stats) }

func (w *World) publishStats() { w.statsView.Store(w.stats) }

func (w *World) SetTickLogger(l TickLogger)                { w.tickLogger = l }
func (w *World) SetTradeLogger(l TradeLogger)              { w.tradeLogger = l }
func (w *World) SetSnapshotSink(c chan<- ExportedSnapshot) { w.snapshotSink = c }

// SetCostModel overrides the catalog-derived price band estimator.
func (w *World) SetCostModel(m production.CostModel) { w.costModel = m }

// Band returns the belief clamp for a commodity.
func (w *World) Band(commodity string) production.Band {
	return w.costModel.PriceBand(commodity)
}

// Step advances the world one tick. Systems run in a fixed order:
// production, offer refresh, price adjustment, order execution. The
// resulting state digest goes to the tick log.
func (w *World) Step() (tick uint64, digest string) {
	nowTick := w.tick.Load()
	w.corrSeq = 0
	tradesBefore := w.stats.TradesSettled

	w.systemProduction(nowTick)
	w.systemOffers(nowTick)
	w.systemPricing(nowTick)
	w.systemOrders(nowTick)

	w.stats.Ticks++

	digest = w.stateDigest(nowTick)
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:   nowTick,
			Trades: int(w.stats.TradesSettled - tradesBefore),
			Digest: digest,
		})
	}

	if w.snapshotSink != nil && nowTick != 0 && w.tune.SnapshotEveryTicks > 0 &&
		nowTick%uint64(w.tune.SnapshotEveryTicks) == 0 {
		snap := w.ExportSnapshot(nowTick)
		select {
		case w.snapshotSink <- snap:
		default:
			// Drop snapshot if sink is backed up.
		}
	}

	w.publishStats()
	w.tick.Add(1)
	return nowTick, digest
}

// stateDigest hashes the exported snapshot. encoding/json writes map keys
// in sorted order, so equal states produce equal digests.
func (w *World) stateDigest(nowTick uint64) string {
	snap := w.ExportSnapshot(nowTick)
	raw, err := json.Marshal(snap)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func (w *World) nextCorrelation() uint64 {
	w.corrSeq++
	return w.corrSeq
}
