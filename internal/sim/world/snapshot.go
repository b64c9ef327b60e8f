package world

import (
	"sort"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/persistence/snapshot"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/budget"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/pricing"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/production"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/settlement"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/storage"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/orders"
)

type ExportedSnapshot = snapshot.WorldV1

// ExportSnapshot serializes the whole world. Every slice is emitted in
// sorted id order so the snapshot doubles as digest input. Maps and
// pointers are deep-copied: the snapshot writer encodes off the world
// loop, so the exported value must not share memory with live state.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.WorldV1 {
	snap := snapshot.WorldV1{
		Header:   snapshot.Header{Version: 1, WorldID: w.cfg.ID, Tick: nowTick},
		Seed:     w.cfg.Seed,
		TickRate: w.tune.TickRateHz,
		Stats: snapshot.StatsV1{
			Ticks:          w.stats.Ticks,
			TradesSettled:  w.stats.TradesSettled,
			TradesAborted:  w.stats.TradesAborted,
			TradeVolume:    w.stats.TradeVolume,
			UnitsProduced:  w.stats.UnitsProduced,
			UnitsMined:     w.stats.UnitsMined,
			UnitsDiscarded: w.stats.UnitsDiscarded,
		},
		Counters: snapshot.CountersV1{
			NextFaction:     w.nextFactionNum.Load(),
			NextFacility:    w.nextFacilityNum.Load(),
			NextShip:        w.nextShipNum.Load(),
			NextField:       w.nextFieldNum.Load(),
			NextTransaction: w.nextTxNum.Load(),
			NextOrder:       w.nextOrderNum.Load(),
		},
	}

	sectorIDs := make([]string, 0, len(w.sectors))
	for id := range w.sectors {
		sectorIDs = append(sectorIDs, id)
	}
	sort.Strings(sectorIDs)
	for _, id := range sectorIDs {
		s := w.sectors[id]
		links := append([]string(nil), s.Links...)
		sort.Strings(links)
		snap.Sectors = append(snap.Sectors, snapshot.SectorV1{ID: s.ID, Name: s.Name, Links: links})
	}

	factionIDs := make([]string, 0, len(w.factions))
	for id := range w.factions {
		factionIDs = append(factionIDs, id)
	}
	sort.Strings(factionIDs)
	for _, id := range factionIDs {
		f := w.factions[id]
		snap.Factions = append(snap.Factions, snapshot.FactionV1{
			ID: f.ID, Name: f.Name, Player: f.Player,
			Budget:    f.Budget.Export(),
			Relations: cloneRelations(f.Relations),
		})
	}

	for _, id := range w.sortedFacilityIDs() {
		f := w.facilities[id]
		fv := snapshot.FacilityV1{
			ID: f.ID, Name: f.Name, FactionID: f.FactionID, SectorID: f.SectorID,
			Storage:        f.Storage.Export(),
			Budget:         f.Budget.Export(),
			Book:           f.Book.Export(),
			Journal:        f.Journal.Entries(),
			LastAdjustTick: f.lastAdjustTick,
		}
		for _, m := range f.Modules {
			mv := snapshot.ModuleV1{ID: m.ID, Name: m.Name, PAC: map[string]snapshot.RateV1{}}
			for c, r := range m.PAC {
				mv.PAC[c] = snapshot.RateV1{Produces: r.Produces, Consumes: r.Consumes}
			}
			fv.Modules = append(fv.Modules, mv)
		}
		snap.Facilities = append(snap.Facilities, fv)
	}

	for _, id := range w.sortedShipIDs() {
		s := w.ships[id]
		snap.Ships = append(snap.Ships, snapshot.ShipV1{
			ID: s.ID, Name: s.Name, FactionID: s.FactionID,
			SectorID: s.SectorID, DockedAt: s.DockedAt,
			Storage: s.Storage.Export(),
			Journal: s.Journal.Entries(),
			Order:   cloneOrder(s.Order),
		})
	}

	fieldIDs := make([]string, 0, len(w.fields))
	for id := range w.fields {
		fieldIDs = append(fieldIDs, id)
	}
	sort.Strings(fieldIDs)
	for _, id := range fieldIDs {
		f := w.fields[id]
		snap.Fields = append(snap.Fields, snapshot.FieldV1{ID: f.ID, SectorID: f.SectorID, Commodity: f.Commodity})
	}

	txIDs := make([]string, 0, len(w.transactions))
	for id := range w.transactions {
		txIDs = append(txIDs, id)
	}
	sort.Strings(txIDs)
	for _, id := range txIDs {
		tx := *w.transactions[id]
		tx.Items = append([]settlement.Item(nil), tx.Items...)
		snap.Transactions = append(snap.Transactions, tx)
	}

	return snap
}

func cloneRelations(rel map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(rel))
	for k, v := range rel {
		out[k] = v
	}
	return out
}

func cloneOrder(o *orders.Order) *orders.Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Steps = append([]orders.Step(nil), o.Steps...)
	return &cp
}

// FromSnapshot rebuilds a world from a snapshot. Ledger counters come
// back verbatim; pricing rngs are reseeded from the world seed.
func FromSnapshot(cfg Config, snap snapshot.WorldV1) *World {
	w := New(cfg)
	w.tick.Store(snap.Header.Tick)

	w.stats = Stats{
		Ticks:          snap.Stats.Ticks,
		TradesSettled:  snap.Stats.TradesSettled,
		TradesAborted:  snap.Stats.TradesAborted,
		TradeVolume:    snap.Stats.TradeVolume,
		UnitsProduced:  snap.Stats.UnitsProduced,
		UnitsMined:     snap.Stats.UnitsMined,
		UnitsDiscarded: snap.Stats.UnitsDiscarded,
	}
	w.publishStats()
	w.nextFactionNum.Store(snap.Counters.NextFaction)
	w.nextFacilityNum.Store(snap.Counters.NextFacility)
	w.nextShipNum.Store(snap.Counters.NextShip)
	w.nextFieldNum.Store(snap.Counters.NextField)
	w.nextTxNum.Store(snap.Counters.NextTransaction)
	w.nextOrderNum.Store(snap.Counters.NextOrder)

	for _, sv := range snap.Sectors {
		w.sectors[sv.ID] = &Sector{ID: sv.ID, Name: sv.Name, Links: append([]string(nil), sv.Links...)}
	}
	w.rebuildHops()

	for _, fv := range snap.Factions {
		f := &Faction{
			ID: fv.ID, Name: fv.Name, Player: fv.Player,
			Budget:    budget.FromSnapshot(fv.Budget),
			Relations: cloneRelations(fv.Relations),
		}
		w.factions[f.ID] = f
	}

	for i, fv := range snap.Facilities {
		f := &Facility{
			ID: fv.ID, Name: fv.Name, FactionID: fv.FactionID, SectorID: fv.SectorID,
			Storage:        storage.FromSnapshot(fv.Storage),
			Budget:         budget.FromSnapshot(fv.Budget),
			Book:           pricing.NewBook(cfg.Seed ^ int64(i+1)),
			Journal:        economy.NewJournal(w.tune.JournalCap),
			lastAdjustTick: fv.LastAdjustTick,
		}
		f.Book.Restore(fv.Book)
		f.Journal.Restore(fv.Journal)
		for _, mv := range fv.Modules {
			pac := production.PAC{}
			for c, r := range mv.PAC {
				pac[c] = production.Rate{Produces: r.Produces, Consumes: r.Consumes}
			}
			f.Modules = append(f.Modules, production.Module{ID: mv.ID, Name: mv.Name, PAC: pac})
		}
		f.Compound = production.Compound(f.Modules)
		w.facilities[f.ID] = f
	}

	for _, sv := range snap.Ships {
		s := &Ship{
			ID: sv.ID, Name: sv.Name, FactionID: sv.FactionID,
			SectorID: sv.SectorID, DockedAt: sv.DockedAt,
			Storage: storage.FromSnapshot(sv.Storage),
			Journal: economy.NewJournal(w.tune.JournalCap),
			Order:   cloneOrder(sv.Order),
		}
		s.Journal.Restore(sv.Journal)
		w.ships[s.ID] = s
	}

	for _, fv := range snap.Fields {
		w.fields[fv.ID] = &Field{ID: fv.ID, SectorID: fv.SectorID, Commodity: fv.Commodity}
	}

	for i := range snap.Transactions {
		tx := snap.Transactions[i]
		w.transactions[tx.ID] = &tx
	}

	return w
}
