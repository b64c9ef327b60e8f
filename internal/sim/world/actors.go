package world

import (
	"fmt"
	"sort"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/budget"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/pricing"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/production"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/storage"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/orders"
)

type Sector struct {
	ID    string
	Name  string
	Links []string
}

// Faction owns a shared budget its ships trade from and a relations score
// per counterpart faction.
type Faction struct {
	ID        string
	Name      string
	Player    bool
	Budget    *budget.Budget
	Relations map[string]float64
}

// Facility is a stationary producer/trader docked-to entity.
type Facility struct {
	ID        string
	Name      string
	FactionID string
	SectorID  string

	Modules  []production.Module
	Compound production.PAC

	Storage *storage.Storage
	Budget  *budget.Budget
	Book    *pricing.Book
	Journal *economy.Journal

	lastAdjustTick uint64
}

// Ship is a mobile cargo actor. Its trades draw on the owning faction's
// budget; only cargo is its own.
type Ship struct {
	ID        string
	Name      string
	FactionID string
	SectorID  string
	DockedAt  string

	Storage *storage.Storage
	Journal *economy.Journal

	Order *orders.Order
}

// Field is a minable deposit in a sector.
type Field struct {
	ID        string
	SectorID  string
	Commodity string
}

func (w *World) AddSector(id, name string) *Sector {
	s := &Sector{ID: id, Name: name}
	w.sectors[id] = s
	w.rebuildHops()
	return s
}

func (w *World) LinkSectors(a, b string) {
	sa, sb := w.sectors[a], w.sectors[b]
	if sa == nil || sb == nil {
		return
	}
	sa.Links = append(sa.Links, b)
	sb.Links = append(sb.Links, a)
	w.rebuildHops()
}

// rebuildHops precomputes all-pairs hop distances by BFS from each
// sector. The universe graph is small and changes rarely.
func (w *World) rebuildHops() {
	w.hops = map[string]map[string]int{}
	for id := range w.sectors {
		dist := map[string]int{id: 0}
		queue := []string{id}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, next := range w.sectors[cur].Links {
				if _, seen := dist[next]; seen {
					continue
				}
				dist[next] = dist[cur] + 1
				queue = append(queue, next)
			}
		}
		w.hops[id] = dist
	}
}

// Hops returns the gate distance between two sectors, or -1 if
// unreachable.
func (w *World) Hops(from, to string) int {
	d, ok := w.hops[from][to]
	if !ok {
		return -1
	}
	return d
}

// nextHop returns the neighbor of from that lies on a shortest path to
// to, ties broken by sector id for determinism.
func (w *World) nextHop(from, to string) (string, bool) {
	target := w.Hops(from, to)
	if target <= 0 {
		return "", false
	}
	links := append([]string(nil), w.sectors[from].Links...)
	sort.Strings(links)
	for _, n := range links {
		if w.Hops(n, to) == target-1 {
			return n, true
		}
	}
	return "", false
}

func (w *World) AddFaction(name string, player bool, money float64) *Faction {
	f := &Faction{
		ID:        fmt.Sprintf("FN%d", w.nextFactionNum.Add(1)),
		Name:      name,
		Player:    player,
		Budget:    budget.New(),
		Relations: map[string]float64{},
	}
	if money > 0 {
		_ = f.Budget.ChangeMoney(money, w.tick.Load(), "founding")
	}
	w.factions[f.ID] = f
	return f
}

// AddFacility creates a facility with the given production modules.
// Quotas for consumed commodities default to twenty production cycles of
// input so the buy side has a target to fill toward.
func (w *World) AddFacility(name, factionID, sectorID string, capacity int, money float64, modules []production.Module) *Facility {
	f := &Facility{
		ID:        fmt.Sprintf("FC%d", w.nextFacilityNum.Add(1)),
		Name:      name,
		FactionID: factionID,
		SectorID:  sectorID,
		Modules:   modules,
		Compound:  production.Compound(modules),
		Storage:   storage.New(capacity),
		Budget:    budget.New(),
		Journal:   economy.NewJournal(w.tune.JournalCap),
	}
	f.Book = pricing.NewBook(w.cfg.Seed ^ int64(w.nextFacilityNum.Load()))
	if money > 0 {
		_ = f.Budget.ChangeMoney(money, w.tick.Load(), "founding")
	}
	for c, r := range f.Compound {
		if r.Consumes > 0 {
			f.Storage.SetQuota(c, r.Consumes*20)
		}
	}
	w.facilities[f.ID] = f
	return f
}

// AddModule extends a facility and recomputes its compound rates.
func (w *World) AddModule(facilityID string, m production.Module) {
	f := w.facilities[facilityID]
	if f == nil {
		return
	}
	f.Modules = append(f.Modules, m)
	f.Compound = production.Compound(f.Modules)
	for c, r := range f.Compound {
		if r.Consumes > 0 && f.Storage.Quota(c) == 0 {
			f.Storage.SetQuota(c, r.Consumes*20)
		}
	}
}

func (w *World) AddShip(name, factionID, sectorID string, capacity int) *Ship {
	s := &Ship{
		ID:        fmt.Sprintf("SH%d", w.nextShipNum.Add(1)),
		Name:      name,
		FactionID: factionID,
		SectorID:  sectorID,
		Storage:   storage.New(capacity),
		Journal:   economy.NewJournal(w.tune.JournalCap),
	}
	w.ships[s.ID] = s
	return s
}

func (w *World) AddField(sectorID, commodity string) *Field {
	f := &Field{
		ID:        fmt.Sprintf("FD%d", w.nextFieldNum.Add(1)),
		SectorID:  sectorID,
		Commodity: commodity,
	}
	w.fields[f.ID] = f
	return f
}

func (w *World) Faction(id string) *Faction   { return w.factions[id] }
func (w *World) Facility(id string) *Facility { return w.facilities[id] }
func (w *World) Ship(id string) *Ship         { return w.ships[id] }
func (w *World) Field(id string) *Field       { return w.fields[id] }

// FacilityIDs returns facility ids in the per-tick iteration order.
func (w *World) FacilityIDs() []string { return w.sortedFacilityIDs() }

// Relation is symmetric in storage: both factions keep their own score.
func (w *World) Relation(a, b string) float64 {
	fa := w.factions[a]
	if fa == nil {
		return 0
	}
	return fa.Relations[b]
}

func (w *World) nudgeRelation(a, b string, delta float64) {
	if fa := w.factions[a]; fa != nil {
		fa.Relations[b] += delta
	}
	if fb := w.factions[b]; fb != nil {
		fb.Relations[a] += delta
	}
}

// tradeAllowed is the relation gate of the acceptance rule.
func (w *World) tradeAllowed(a, b string) bool {
	if a == b {
		return true
	}
	return w.Relation(a, b) >= w.tune.TradeRelationThreshold &&
		w.Relation(b, a) >= w.tune.TradeRelationThreshold
}

// sortedFacilityIDs and sortedShipIDs fix the per-tick iteration order.
func (w *World) sortedFacilityIDs() []string {
	ids := make([]string, 0, len(w.facilities))
	for id := range w.facilities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *World) sortedShipIDs() []string {
	ids := make([]string, 0, len(w.ships))
	for id := range w.ships {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
