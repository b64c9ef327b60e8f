package world

import (
	"sort"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/pricing"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/orders"
)

// systemProduction runs one production cycle on every facility whose
// inputs are on hand. Outputs fill up to capacity; the unfilled remainder
// is discarded, not queued.
func (w *World) systemProduction(nowTick uint64) {
	if w.tune.ProductionCycleTicks <= 0 || nowTick == 0 ||
		nowTick%uint64(w.tune.ProductionCycleTicks) != 0 {
		return
	}
	for _, id := range w.sortedFacilityIDs() {
		f := w.facilities[id]
		if len(f.Compound) == 0 {
			continue
		}
		ready := true
		for c, r := range f.Compound {
			if r.Consumes > 0 && f.Storage.AvailableStock(c) < r.Consumes {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		for _, c := range f.Compound.Commodities() {
			r := f.Compound[c]
			if r.Consumes > 0 {
				if err := f.Storage.RemoveStock(c, r.Consumes); err != nil {
					break
				}
			}
		}
		for _, c := range f.Compound.Commodities() {
			r := f.Compound[c]
			if r.Produces > 0 {
				rest, _ := f.Storage.AddStock(c, r.Produces, false)
				w.stats.UnitsProduced += uint64(r.Produces - rest)
				w.stats.UnitsDiscarded += uint64(rest)
			}
		}
	}
}

// systemOffers recomputes offer quantity and direction for every facility
// on the short cooldown.
func (w *World) systemOffers(nowTick uint64) {
	if w.tune.OfferRefreshTicks <= 0 || nowTick == 0 ||
		nowTick%uint64(w.tune.OfferRefreshTicks) != 0 {
		return
	}
	for _, id := range w.sortedFacilityIDs() {
		f := w.facilities[id]
		for _, c := range f.tradedCommodities() {
			r := f.Compound[c]
			f.Book.RefreshOffer(c, w.Band(c), pricing.OfferInputs{
				Stock:          f.Storage.Stock(c),
				AvailableStock: f.Storage.AvailableStock(c),
				Quota:          f.Storage.Quota(c),
				Surplus:        f.Compound.Surplus(c),
				Consumes:       r.Consumes,
				HasProduction:  len(f.Modules) > 0,
				HasQuota:       f.Storage.Quota(c) > 0,
			})
		}
	}
}

// tradedCommodities is the union of a facility's production table, stock
// and quotas, in stable order.
func (f *Facility) tradedCommodities() []string {
	set := map[string]bool{}
	for c := range f.Compound {
		set[c] = true
	}
	for _, st := range f.Storage.StockList() {
		set[st.Commodity] = true
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// systemPricing runs the belief adjustment cycle on the long cooldown.
func (w *World) systemPricing(nowTick uint64) {
	if w.tune.PriceAdjustTicks <= 0 || nowTick == 0 ||
		nowTick%uint64(w.tune.PriceAdjustTicks) != 0 {
		return
	}
	params := pricing.Params{FillShrink: w.tune.FillShrink, MeanReversion: w.tune.MeanReversion}
	for _, id := range w.sortedFacilityIDs() {
		f := w.facilities[id]
		for _, no := range f.Book.Offers() {
			avg, hasAvg := w.neighborhoodAverage(f, no.Commodity)
			f.Book.Adjust(no.Commodity, pricing.AdjustInputs{
				Band:         w.Band(no.Commodity),
				TradedSince:  f.Journal.TradedSince(no.Commodity, no.Offer.Type, f.lastAdjustTick),
				OfferedQty:   no.Offer.Quantity,
				NeighborAvg:  avg,
				HasNeighbors: hasAvg,
				CurrentPrice: no.Offer.Price,
				Role:         no.Offer.Type,
				Params:       params,
			})
		}
		f.lastAdjustTick = nowTick
	}
}

// neighborhoodAverage is the mean posted price for a commodity over other
// facilities within the tuned hop radius.
func (w *World) neighborhoodAverage(f *Facility, commodity string) (float64, bool) {
	total, n := 0.0, 0
	for _, id := range w.sortedFacilityIDs() {
		other := w.facilities[id]
		if other == f {
			continue
		}
		d := w.Hops(f.SectorID, other.SectorID)
		if d < 0 || d > w.tune.NeighborhoodHops {
			continue
		}
		if o, ok := other.Book.Offer(commodity); ok && o.Active {
			total += o.Price
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return total / float64(n), true
}

// systemOrders executes every ship's current order step.
func (w *World) systemOrders(nowTick uint64) {
	for _, id := range w.sortedShipIDs() {
		s := w.ships[id]
		if s.Order == nil {
			continue
		}
		w.stepShip(s, nowTick)
		if s.Order != nil && s.Order.Done() {
			s.Order = nil
		}
	}
}

// stepShip advances through zero-cost step transitions and performs at
// most one tick-consuming action.
func (w *World) stepShip(s *Ship, nowTick uint64) {
	for guard := 0; guard <= len(s.Order.Steps); guard++ {
		step, ok := s.Order.CurrentStep()
		if !ok {
			return
		}
		in := orders.StepInput{Kind: step.Kind}
		switch step.Kind {
		case orders.KindMove, orders.KindTeleport:
			in.AtTargetSector = s.SectorID == step.TargetSector
		case orders.KindDock:
			if f := w.facilities[step.TargetID]; f != nil {
				in.TargetReached = f.SectorID == s.SectorID
			}
			in.Docked = s.DockedAt == step.TargetID
		case orders.KindTrade:
			in.Docked = s.DockedAt == step.TargetID
		case orders.KindMine:
			in.CargoFull = s.Storage.AvailableSpace() == 0
		case orders.KindHold:
			in.HoldRemaining = step.HoldTicks
		}

		switch orders.DecideStep(in) {
		case orders.DecisionAdvance:
			s.Order.Advance()
			continue
		case orders.DecisionWait:
			switch step.Kind {
			case orders.KindMove:
				w.moveShip(s, step.TargetSector)
			case orders.KindHold:
				s.Order.Steps[s.Order.Current].HoldTicks--
			}
			return
		case orders.DecisionDock:
			s.DockedAt = step.TargetID
			return
		case orders.DecisionTeleport:
			s.SectorID = step.TargetSector
			s.DockedAt = ""
			return
		case orders.DecisionSettle:
			if !w.settleAtDock(s, step.TransactionID, nowTick) {
				w.abortTransaction(step.TransactionID)
			}
			s.Order.Advance()
			return
		case orders.DecisionMine:
			w.mineTick(s, step)
			return
		}
	}
}

func (w *World) moveShip(s *Ship, target string) {
	next, ok := w.nextHop(s.SectorID, target)
	if !ok {
		return
	}
	s.SectorID = next
	s.DockedAt = ""
}

func (w *World) mineTick(s *Ship, step orders.Step) {
	f := w.fields[step.FieldID]
	if f == nil || f.SectorID != s.SectorID {
		return
	}
	commodity := step.Commodity
	if commodity == "" {
		commodity = f.Commodity
	}
	rest, err := s.Storage.AddStock(commodity, w.tune.MiningYieldPerTick, false)
	if err != nil {
		return
	}
	w.stats.UnitsMined += uint64(w.tune.MiningYieldPerTick - rest)
}
