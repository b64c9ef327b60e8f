// Package pricing implements per-actor trade offers backed by price
// beliefs. A belief is a [low, high] interval per commodity; posted prices
// are sampled from it and the interval drifts with observed trade flow,
// always clamped to the commodity's cost-derived band.
package pricing

import (
	"math/rand"
	"sort"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/production"
)

type Belief struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

type Offer struct {
	Active   bool              `json:"active"`
	Price    float64           `json:"price"`
	Quantity int               `json:"quantity"`
	Type     economy.OfferType `json:"type"`
}

// Params tune the adjustment cycle. Zero values fall back to defaults.
type Params struct {
	FillShrink    float64 // interval width kept when an offer is not moving
	MeanReversion float64 // pull toward the neighborhood average on sales
}

func (p Params) fillShrink() float64 {
	if p.FillShrink <= 0 || p.FillShrink >= 1 {
		return 0.9
	}
	return p.FillShrink
}

func (p Params) meanReversion() float64 {
	if p.MeanReversion <= 0 || p.MeanReversion >= 1 {
		return 0.3
	}
	return p.MeanReversion
}

// Book is one actor's offer table and beliefs. Not safe for concurrent
// use; owned by the world loop.
type Book struct {
	beliefs map[string]*Belief
	offers  map[string]Offer
	rng     *rand.Rand
}

func NewBook(seed int64) *Book {
	return &Book{
		beliefs: map[string]*Belief{},
		offers:  map[string]Offer{},
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (b *Book) Offer(commodity string) (Offer, bool) {
	o, ok := b.offers[commodity]
	return o, ok
}

// Offers returns active offers in commodity order.
func (b *Book) Offers() []NamedOffer {
	out := make([]NamedOffer, 0, len(b.offers))
	for c, o := range b.offers {
		if !o.Active {
			continue
		}
		out = append(out, NamedOffer{Commodity: c, Offer: o})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Commodity < out[j].Commodity })
	return out
}

type NamedOffer struct {
	Commodity string `json:"commodity"`
	Offer     Offer  `json:"offer"`
}

// ConsumeQuantity reduces an offer after a settled trade; the offer
// deactivates when exhausted.
func (b *Book) ConsumeQuantity(commodity string, qty int) {
	o, ok := b.offers[commodity]
	if !ok {
		return
	}
	o.Quantity -= qty
	if o.Quantity <= 0 {
		o.Quantity = 0
		o.Active = false
	}
	b.offers[commodity] = o
}

// Belief returns the belief for a commodity, seeding it across the full
// band on first use.
func (b *Book) Belief(commodity string, band production.Band) *Belief {
	bl := b.beliefs[commodity]
	if bl == nil {
		bl = &Belief{Low: band.Min, High: band.Max}
		b.beliefs[commodity] = bl
	}
	return bl
}

// SamplePrice draws the next posted price uniformly from the belief.
func (b *Book) SamplePrice(commodity string, band production.Band) float64 {
	bl := b.Belief(commodity, band)
	if bl.High <= bl.Low {
		return bl.Low
	}
	return bl.Low + b.rng.Float64()*(bl.High-bl.Low)
}

// OfferInputs is the stock/production snapshot an offer is sized from.
type OfferInputs struct {
	Stock          int
	AvailableStock int
	Quota          int
	Surplus        int // produces - consumes per production cycle
	Consumes       int // per production cycle
	HasProduction  bool
	HasQuota       bool
}

// RefreshOffer recomputes quantity and direction from current stock vs
// quota and production surplus sign. A pure cargo hold (no production, no
// quota) offers exactly its available stock for sale and buys nothing.
func (b *Book) RefreshOffer(commodity string, band production.Band, in OfferInputs) Offer {
	var o Offer
	switch {
	case !in.HasProduction && !in.HasQuota:
		o = Offer{Type: economy.Sell, Quantity: in.AvailableStock}
	case in.Surplus > 0:
		// Keep two cycles of own consumption as a working buffer.
		o = Offer{Type: economy.Sell, Quantity: in.Stock - 2*in.Consumes}
	default:
		o = Offer{Type: economy.Buy, Quantity: in.Quota - in.Stock}
	}
	if o.Quantity <= 0 {
		o.Quantity = 0
		o.Active = false
		b.offers[commodity] = o
		return o
	}
	o.Active = true
	o.Price = b.SamplePrice(commodity, band)
	b.offers[commodity] = o
	return o
}

// AdjustInputs feed one adjustment cycle for a single commodity/role.
type AdjustInputs struct {
	Band          production.Band
	TradedSince   int     // units sold (seller role) or bought (buyer role) since last cycle
	OfferedQty    int     // quantity that was on offer over the window
	NeighborAvg   float64 // average posted price over reachable markets
	HasNeighbors  bool
	CurrentPrice  float64
	Role          economy.OfferType
	Params        Params
}

// Adjust runs one belief adjustment cycle. With no realized trades the
// interval shrinks toward a fill-ratio-weighted midpoint (down for an
// unmoving sell offer, up for an unfilled buy offer). With trades it
// translates toward or away from the neighborhood average. Bounds are
// clamped to the band and forcibly re-widened if they converge.
func (b *Book) Adjust(commodity string, in AdjustInputs) Belief {
	bl := b.Belief(commodity, in.Band)
	width := bl.High - bl.Low

	if in.TradedSince <= 0 {
		fill := 0.0
		if in.OfferedQty > 0 {
			fill = float64(in.TradedSince) / float64(in.OfferedQty)
		}
		if fill < 0 {
			fill = 0
		}
		if fill > 1 {
			fill = 1
		}
		// Seller midpoint sits at the fill ratio (no fill -> low end);
		// buyer is mirrored (no fill -> high end).
		pos := fill
		if in.Role == economy.Buy {
			pos = 1 - fill
		}
		mid := bl.Low + width*pos
		half := width * in.Params.fillShrink() / 2
		bl.Low = mid - half
		bl.High = mid + half
	} else if in.HasNeighbors {
		shift := in.Params.meanReversion() * (in.NeighborAvg - in.CurrentPrice)
		bl.Low += shift
		bl.High += shift
	}

	clampBelief(bl, in.Band)
	return *bl
}

func clampBelief(bl *Belief, band production.Band) {
	// A large shift can carry both bounds past the same edge, so each
	// bound is clamped into [Min, Max] independently.
	bl.Low = clamp(bl.Low, band.Min, band.Max)
	bl.High = clamp(bl.High, band.Min, band.Max)
	if bl.Low <= bl.High && bl.High-bl.Low > minBeliefWidth(band) {
		return
	}
	// Converged or crossed: re-widen around the midpoint to avoid
	// deadlocked pricing.
	mid := (bl.Low + bl.High) / 2
	half := (band.Max - band.Min) * 0.1
	if half <= 0 {
		bl.Low, bl.High = band.Min, band.Max
		return
	}
	bl.Low = clamp(mid-half, band.Min, band.Max)
	bl.High = clamp(mid+half, band.Min, band.Max)
	if bl.Low > bl.High {
		bl.Low = bl.High
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minBeliefWidth(band production.Band) float64 {
	return (band.Max - band.Min) * 0.01
}

// Snapshot serializes beliefs and offers.
type Snapshot struct {
	Beliefs map[string]Belief `json:"beliefs,omitempty"`
	Offers  map[string]Offer  `json:"offers,omitempty"`
}

func (b *Book) Export() Snapshot {
	snap := Snapshot{Beliefs: map[string]Belief{}, Offers: map[string]Offer{}}
	for c, bl := range b.beliefs {
		snap.Beliefs[c] = *bl
	}
	for c, o := range b.offers {
		snap.Offers[c] = o
	}
	return snap
}

func (b *Book) Restore(snap Snapshot) {
	for c, bl := range snap.Beliefs {
		cp := bl
		b.beliefs[c] = &cp
	}
	for c, o := range snap.Offers {
		b.offers[c] = o
	}
}
