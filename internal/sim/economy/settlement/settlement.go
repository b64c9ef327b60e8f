// Package settlement implements the two-sided trade protocol: a proposed
// transaction is first allocated (up to four ledger reservations across
// both parties' budgets and storages, all-or-nothing), then either
// accepted once the parties are docked together (reservations released,
// money and goods actually move, journals appended) or aborted
// (reservations released, nothing moves).
package settlement

import (
	"errors"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/budget"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/pricing"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/storage"
)

var (
	ErrNoOffer         = errors.New("no active offer for commodity")
	ErrPriceMismatch   = errors.New("price does not match posted offer")
	ErrRelationTooLow  = errors.New("faction relation below trade threshold")
	ErrMixedDirections = errors.New("transaction mixes buy and sell items")
	ErrNotAllocated    = errors.New("transaction has no allocations")
)

// Item is one commodity line of a transaction. Type is the customer's
// side: Buy means the customer takes goods from the trader.
type Item struct {
	Commodity string            `json:"commodity"`
	Quantity  int               `json:"quantity"`
	Price     float64           `json:"price"`
	Type      economy.OfferType `json:"type"`
}

// Side records the ledger ids one party holds for a pending transaction.
// Weak references: the owning ledgers know the amounts.
type Side struct {
	HasBudget  bool   `json:"hasBudget,omitempty"`
	Budget     uint32 `json:"budget,omitempty"`
	HasStorage bool   `json:"hasStorage,omitempty"`
	Storage    uint32 `json:"storage,omitempty"`
}

type Allocations struct {
	Trader   Side `json:"trader"`
	Customer Side `json:"customer"`
}

// Transaction is a trade intent between the initiating actor (customer)
// and the offer holder (trader), plus the allocation record populated by
// Allocate.
type Transaction struct {
	ID            string      `json:"id"`
	Items         []Item      `json:"items"`
	Initiator     string      `json:"initiator"`
	Trader        string      `json:"trader"`
	FactionID     string      `json:"factionId"`
	CorrelationID uint64      `json:"correlationId"`
	Allocations   Allocations `json:"allocations"`
	Allocated     bool        `json:"allocated"`
}

// NewTransaction validates the intent. All items must share a direction;
// a mixed basket would need more than one reservation per ledger and is
// split by the caller into one transaction per direction.
func NewTransaction(id string, correlation uint64, initiator, trader, factionID string, items []Item) (*Transaction, error) {
	if len(items) == 0 {
		return nil, economy.ErrNegativeQuantity
	}
	typ := items[0].Type
	for _, it := range items {
		if it.Type != economy.Buy && it.Type != economy.Sell {
			return nil, economy.ErrInvalidOfferType
		}
		if it.Type != typ {
			return nil, ErrMixedDirections
		}
		if it.Quantity <= 0 {
			return nil, economy.ErrNegativeQuantity
		}
		if it.Price < 0 {
			return nil, economy.ErrNegativeQuantity
		}
	}
	return &Transaction{
		ID:            id,
		Items:         items,
		Initiator:     initiator,
		Trader:        trader,
		FactionID:     factionID,
		CorrelationID: correlation,
	}, nil
}

// Type is the customer's direction, uniform across items.
func (t *Transaction) Type() economy.OfferType { return t.Items[0].Type }

// Total is the money the customer pays (Buy) or receives (Sell).
func (t *Transaction) Total() float64 {
	total := 0.0
	for _, it := range t.Items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

// Amounts is the per-commodity quantity map moved by this transaction.
func (t *Transaction) Amounts() map[string]int {
	out := make(map[string]int, len(t.Items))
	for _, it := range t.Items {
		out[it.Commodity] += it.Quantity
	}
	return out
}

// Party bundles one actor's economic pools. Budget or Storage may be nil
// for degenerate actors (a facility with no cargo modules); a leg that
// would need the missing pool fails allocation.
type Party struct {
	ID      string
	Budget  *budget.Budget
	Storage *storage.Storage
	Journal *economy.Journal
}

// OfferBook is the slice of a pricing book settlement needs: the posted
// offer to validate against and quantity consumption on acceptance.
type OfferBook interface {
	Offer(commodity string) (pricing.Offer, bool)
	ConsumeQuantity(commodity string, qty int)
}

// Allocate validates the transaction against the trader's posted offers
// and reserves every leg on both parties. On any failure the reservations
// already made by this call are released before returning, so a failed
// call leaves no trace on either ledger.
func Allocate(t *Transaction, customer, trader Party, offers OfferBook, relationOK bool) error {
	if t.Allocated {
		return nil
	}
	if !relationOK {
		return ErrRelationTooLow
	}
	if err := checkAccepted(t, offers); err != nil {
		return err
	}

	amounts := t.Amounts()
	total := t.Total()
	var undo []func()
	fail := func(err error) error {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		t.Allocations = Allocations{}
		return err
	}

	payer := customer
	paySide := &t.Allocations.Customer
	if t.Type() == economy.Sell {
		payer = trader
		paySide = &t.Allocations.Trader
	}

	if payer.Budget == nil {
		return fail(economy.ErrInsufficientMoney)
	}
	id, err := payer.Budget.Reserve(total)
	if err != nil {
		return fail(err)
	}
	paySide.HasBudget, paySide.Budget = true, id
	undo = append(undo, func() { payer.Budget.MustRelease(id) })

	src, dst := trader, customer
	srcSide, dstSide := &t.Allocations.Trader, &t.Allocations.Customer
	if t.Type() == economy.Sell {
		src, dst = customer, trader
		srcSide, dstSide = &t.Allocations.Customer, &t.Allocations.Trader
	}

	if src.Storage == nil {
		return fail(economy.ErrInsufficientStock)
	}
	outID, err := src.Storage.ReserveOutgoing(amounts)
	if err != nil {
		return fail(err)
	}
	srcSide.HasStorage, srcSide.Storage = true, outID
	undo = append(undo, func() { src.Storage.MustRelease(outID) })

	if dst.Storage == nil {
		return fail(economy.ErrInsufficientSpace)
	}
	inID, err := dst.Storage.ReserveIncoming(amounts)
	if err != nil {
		return fail(err)
	}
	dstSide.HasStorage, dstSide.Storage = true, inID

	t.Allocated = true
	return nil
}

// checkAccepted is the offer holder's acceptance rule. The customer must
// take the opposite side of an active offer, at the posted price, for no
// more than the offered quantity.
func checkAccepted(t *Transaction, offers OfferBook) error {
	for _, it := range t.Items {
		o, ok := offers.Offer(it.Commodity)
		if !ok || !o.Active {
			return ErrNoOffer
		}
		if o.Type == it.Type {
			return economy.ErrInvalidOfferType
		}
		if it.Quantity > o.Quantity {
			return economy.ErrExceededOfferQuantity
		}
		if it.Price != o.Price {
			return ErrPriceMismatch
		}
	}
	return nil
}

// Accept finalizes an allocated transaction: releases the reservations,
// moves money and goods, consumes the trader's offer quantities, and
// appends a journal entry on both sides. Missing allocations at this
// point are a lifecycle bug and panic via MustRelease.
//
// The move phase is all-or-nothing: the incoming reservation may have
// been granted against space an outgoing reservation was about to free,
// so an individual AddStock can still refuse even though allocation
// succeeded. On any failure every completed move is undone and both
// parties end up exactly as Abort would leave them.
func Accept(t *Transaction, customer, trader Party, offers OfferBook, nowTick uint64) error {
	if !t.Allocated {
		return ErrNotAllocated
	}
	releaseAll(t, customer, trader)
	t.Allocated = false

	amounts := t.Amounts()
	src, dst := trader, customer
	payer, payee := customer.Budget, trader.Budget
	if t.Type() == economy.Sell {
		src, dst = customer, trader
		payer, payee = trader.Budget, customer.Budget
	}

	var undo []func()
	fail := func(err error) error {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		return err
	}

	for c, n := range amounts {
		if err := src.Storage.RemoveStock(c, n); err != nil {
			return fail(err)
		}
		undo = append(undo, func() { _, _ = src.Storage.AddStock(c, n, true) })
		if _, err := dst.Storage.AddStock(c, n, true); err != nil {
			return fail(err)
		}
		undo = append(undo, func() { _ = dst.Storage.RemoveStock(c, n) })
	}
	if err := budget.Transfer(t.Total(), nowTick, payer, payee, "trade:"+t.ID); err != nil {
		return fail(err)
	}
	for _, it := range t.Items {
		offers.ConsumeQuantity(it.Commodity, it.Quantity)
		if customer.Journal != nil {
			customer.Journal.Add(economy.TradeEntry{
				Commodity: it.Commodity, Quantity: it.Quantity, Price: it.Price,
				Type: it.Type, Counterparty: trader.ID, Tick: nowTick,
			})
		}
		if trader.Journal != nil {
			trader.Journal.Add(economy.TradeEntry{
				Commodity: it.Commodity, Quantity: it.Quantity, Price: it.Price,
				Type: opposite(it.Type), Counterparty: customer.ID, Tick: nowTick,
			})
		}
	}
	return nil
}

// Abort releases every reservation of an allocated transaction without
// moving anything. Called on order cancellation and on trade refusal
// after travel.
func Abort(t *Transaction, customer, trader Party) error {
	if !t.Allocated {
		return ErrNotAllocated
	}
	releaseAll(t, customer, trader)
	t.Allocated = false
	return nil
}

func releaseAll(t *Transaction, customer, trader Party) {
	release := func(p Party, s Side) {
		if s.HasBudget {
			p.Budget.MustRelease(s.Budget)
		}
		if s.HasStorage {
			p.Storage.MustRelease(s.Storage)
		}
	}
	release(customer, t.Allocations.Customer)
	release(trader, t.Allocations.Trader)
	t.Allocations = Allocations{}
}

func opposite(t economy.OfferType) economy.OfferType {
	if t == economy.Buy {
		return economy.Sell
	}
	return economy.Buy
}
