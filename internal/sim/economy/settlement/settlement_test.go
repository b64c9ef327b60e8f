package settlement

import (
	"errors"
	"testing"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/budget"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/pricing"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/production"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/storage"
)

func newParty(t *testing.T, id string, money float64, capacity int) Party {
	t.Helper()
	p := Party{
		ID:      id,
		Budget:  budget.New(),
		Storage: storage.New(capacity),
		Journal: economy.NewJournal(0),
	}
	if money > 0 {
		if err := p.Budget.ChangeMoney(money, 0, "seed"); err != nil {
			t.Fatalf("seed money: %v", err)
		}
	}
	return p
}

// sellBook posts a deterministic sell offer of qty units at the given
// price (a degenerate one-point band pins the sampled price).
func sellBook(commodity string, qty int, price float64) *pricing.Book {
	b := pricing.NewBook(1)
	b.RefreshOffer(commodity, production.Band{Min: price, Max: price}, pricing.OfferInputs{
		Stock: qty, AvailableStock: qty,
	})
	return b
}

func buyBook(commodity string, qty int, price float64) *pricing.Book {
	b := pricing.NewBook(1)
	b.RefreshOffer(commodity, production.Band{Min: price, Max: price}, pricing.OfferInputs{
		Stock: 0, Quota: qty, Surplus: -1, HasProduction: true, HasQuota: true,
	})
	return b
}

func mustTx(t *testing.T, items []Item) *Transaction {
	t.Helper()
	tx, err := NewTransaction("T1", 1, "ship", "station", "F1", items)
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	return tx
}

func TestBuyAllocateAcceptMovesGoodsAndMoney(t *testing.T) {
	customer := newParty(t, "ship", 1000, 40)
	trader := newParty(t, "station", 0, 100)
	if _, err := trader.Storage.AddStock("FOOD", 50, true); err != nil {
		t.Fatalf("stock trader: %v", err)
	}
	book := sellBook("FOOD", 50, 10)

	tx := mustTx(t, []Item{{Commodity: "FOOD", Quantity: 20, Price: 10, Type: economy.Buy}})
	if err := Allocate(tx, customer, trader, book, true); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if !tx.Allocated || !tx.Allocations.Customer.HasBudget || !tx.Allocations.Customer.HasStorage || !tx.Allocations.Trader.HasStorage {
		t.Fatalf("allocation record incomplete: %+v", tx.Allocations)
	}
	if customer.Budget.Available() != 800 {
		t.Fatalf("expected 800 available, got %v", customer.Budget.Available())
	}
	if trader.Storage.AvailableStock("FOOD") != 30 {
		t.Fatalf("expected 30 available stock, got %d", trader.Storage.AvailableStock("FOOD"))
	}
	if customer.Storage.AvailableSpace() != 20 {
		t.Fatalf("expected 20 available space, got %d", customer.Storage.AvailableSpace())
	}

	if err := Accept(tx, customer, trader, book, 5); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if customer.Budget.Money() != 800 || trader.Budget.Money() != 200 {
		t.Fatalf("money wrong: customer=%v trader=%v", customer.Budget.Money(), trader.Budget.Money())
	}
	if customer.Storage.Stock("FOOD") != 20 || trader.Storage.Stock("FOOD") != 30 {
		t.Fatalf("stock wrong: customer=%d trader=%d", customer.Storage.Stock("FOOD"), trader.Storage.Stock("FOOD"))
	}
	if n := customer.Budget.AllocationCount() + customer.Storage.AllocationCount() +
		trader.Budget.AllocationCount() + trader.Storage.AllocationCount(); n != 0 {
		t.Fatalf("expected no live allocations after accept, got %d", n)
	}
	if o, _ := book.Offer("FOOD"); o.Quantity != 30 {
		t.Fatalf("expected offer reduced to 30, got %d", o.Quantity)
	}
	if len(customer.Journal.Entries()) != 1 || len(trader.Journal.Entries()) != 1 {
		t.Fatalf("expected one journal entry per side")
	}
	if e := trader.Journal.Entries()[0]; e.Type != economy.Sell || e.Counterparty != "ship" {
		t.Fatalf("trader journal entry wrong: %+v", e)
	}
}

func TestSellDirectionTraderPays(t *testing.T) {
	customer := newParty(t, "ship", 0, 40)
	trader := newParty(t, "station", 500, 100)
	if _, err := customer.Storage.AddStock("ORE", 30, true); err != nil {
		t.Fatalf("stock customer: %v", err)
	}
	book := buyBook("ORE", 30, 5)

	tx := mustTx(t, []Item{{Commodity: "ORE", Quantity: 30, Price: 5, Type: economy.Sell}})
	if err := Allocate(tx, customer, trader, book, true); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if !tx.Allocations.Trader.HasBudget || !tx.Allocations.Trader.HasStorage || !tx.Allocations.Customer.HasStorage {
		t.Fatalf("allocation record wrong for sell: %+v", tx.Allocations)
	}
	if trader.Budget.Available() != 350 {
		t.Fatalf("expected 350 available, got %v", trader.Budget.Available())
	}

	if err := Accept(tx, customer, trader, book, 3); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if customer.Budget.Money() != 150 || trader.Budget.Money() != 350 {
		t.Fatalf("money wrong: customer=%v trader=%v", customer.Budget.Money(), trader.Budget.Money())
	}
	if trader.Storage.Stock("ORE") != 30 || customer.Storage.Stock("ORE") != 0 {
		t.Fatalf("stock wrong after sell")
	}
}

func TestAllocateAllOrNothing(t *testing.T) {
	// Customer can pay but has no cargo space; the earlier budget and
	// trader-storage reservations must be rolled back.
	customer := newParty(t, "ship", 1000, 0)
	trader := newParty(t, "station", 0, 100)
	if _, err := trader.Storage.AddStock("FOOD", 50, true); err != nil {
		t.Fatalf("stock trader: %v", err)
	}
	book := sellBook("FOOD", 50, 10)

	tx := mustTx(t, []Item{{Commodity: "FOOD", Quantity: 20, Price: 10, Type: economy.Buy}})
	err := Allocate(tx, customer, trader, book, true)
	if !errors.Is(err, economy.ErrInsufficientSpace) {
		t.Fatalf("expected ErrInsufficientSpace, got %v", err)
	}
	if tx.Allocated {
		t.Fatalf("transaction must not be marked allocated")
	}
	if customer.Budget.AllocationCount() != 0 || trader.Storage.AllocationCount() != 0 {
		t.Fatalf("partial reservations leaked: budget=%d storage=%d",
			customer.Budget.AllocationCount(), trader.Storage.AllocationCount())
	}
	if customer.Budget.Available() != 1000 {
		t.Fatalf("expected full budget back, got %v", customer.Budget.Available())
	}
}

func TestAcceptanceRuleRejections(t *testing.T) {
	customer := newParty(t, "ship", 1000, 40)
	trader := newParty(t, "station", 0, 100)
	if _, err := trader.Storage.AddStock("FOOD", 50, true); err != nil {
		t.Fatalf("stock trader: %v", err)
	}
	book := sellBook("FOOD", 50, 10)

	cases := []struct {
		name  string
		items []Item
		want  error
	}{
		{"over quantity", []Item{{Commodity: "FOOD", Quantity: 60, Price: 10, Type: economy.Buy}}, economy.ErrExceededOfferQuantity},
		{"price mismatch", []Item{{Commodity: "FOOD", Quantity: 10, Price: 9, Type: economy.Buy}}, ErrPriceMismatch},
		{"same direction", []Item{{Commodity: "FOOD", Quantity: 10, Price: 10, Type: economy.Sell}}, economy.ErrInvalidOfferType},
		{"no offer", []Item{{Commodity: "ICE", Quantity: 10, Price: 10, Type: economy.Buy}}, ErrNoOffer},
	}
	for _, tc := range cases {
		tx := mustTx(t, tc.items)
		if err := Allocate(tx, customer, trader, book, true); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	tx := mustTx(t, []Item{{Commodity: "FOOD", Quantity: 10, Price: 10, Type: economy.Buy}})
	if err := Allocate(tx, customer, trader, book, false); !errors.Is(err, ErrRelationTooLow) {
		t.Fatalf("expected ErrRelationTooLow, got %v", err)
	}
}

func TestMixedDirectionsRejectedAtConstruction(t *testing.T) {
	_, err := NewTransaction("T1", 1, "ship", "station", "F1", []Item{
		{Commodity: "FOOD", Quantity: 1, Price: 1, Type: economy.Buy},
		{Commodity: "ORE", Quantity: 1, Price: 1, Type: economy.Sell},
	})
	if !errors.Is(err, ErrMixedDirections) {
		t.Fatalf("expected ErrMixedDirections, got %v", err)
	}
}

func TestAbortReleasesEverything(t *testing.T) {
	customer := newParty(t, "ship", 1000, 40)
	trader := newParty(t, "station", 0, 100)
	if _, err := trader.Storage.AddStock("FOOD", 50, true); err != nil {
		t.Fatalf("stock trader: %v", err)
	}
	book := sellBook("FOOD", 50, 10)

	tx := mustTx(t, []Item{{Commodity: "FOOD", Quantity: 20, Price: 10, Type: economy.Buy}})
	if err := Allocate(tx, customer, trader, book, true); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := Abort(tx, customer, trader); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if customer.Budget.Available() != 1000 || trader.Storage.AvailableStock("FOOD") != 50 {
		t.Fatalf("abort did not restore availability")
	}
	if customer.Budget.Money() != 1000 || trader.Storage.Stock("FOOD") != 50 {
		t.Fatalf("abort moved something")
	}
	if err := Abort(tx, customer, trader); !errors.Is(err, ErrNotAllocated) {
		t.Fatalf("double abort must fail, got %v", err)
	}
}

func TestFailedAcceptRollsBackLikeAbort(t *testing.T) {
	// The trader sits at capacity with an outgoing reservation from an
	// unrelated pending sale. Incoming allocation counts that headroom,
	// but at accept time the space is not yet free, so the stock move
	// must fail and leave both parties exactly as an abort would:
	// nothing destroyed, nothing paid.
	customer := newParty(t, "ship", 0, 40)
	trader := newParty(t, "station", 500, 100)
	if _, err := customer.Storage.AddStock("ORE", 10, true); err != nil {
		t.Fatalf("stock customer: %v", err)
	}
	if _, err := trader.Storage.AddStock("FOOD", 100, true); err != nil {
		t.Fatalf("stock trader: %v", err)
	}
	if _, err := trader.Storage.ReserveOutgoing(map[string]int{"FOOD": 10}); err != nil {
		t.Fatalf("reserve outgoing: %v", err)
	}
	book := buyBook("ORE", 10, 5)

	tx := mustTx(t, []Item{{Commodity: "ORE", Quantity: 10, Price: 5, Type: economy.Sell}})
	if err := Allocate(tx, customer, trader, book, true); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	err := Accept(tx, customer, trader, book, 7)
	if !errors.Is(err, economy.ErrInsufficientSpace) {
		t.Fatalf("expected ErrInsufficientSpace, got %v", err)
	}
	if customer.Storage.Stock("ORE") != 10 {
		t.Fatalf("customer stock not restored: %d", customer.Storage.Stock("ORE"))
	}
	if got := trader.Storage.TotalStock(); got != 100 {
		t.Fatalf("trader total stock changed: %d", got)
	}
	if customer.Budget.Money() != 0 || trader.Budget.Money() != 500 {
		t.Fatalf("money moved on failed accept: customer=%v trader=%v",
			customer.Budget.Money(), trader.Budget.Money())
	}
	// Only the unrelated outgoing reservation survives.
	if trader.Storage.AllocationCount() != 1 || customer.Storage.AllocationCount() != 0 ||
		trader.Budget.AllocationCount() != 0 {
		t.Fatalf("reservations leaked: trader=%d customer=%d budget=%d",
			trader.Storage.AllocationCount(), customer.Storage.AllocationCount(),
			trader.Budget.AllocationCount())
	}
	if tx.Allocated {
		t.Fatalf("transaction still marked allocated")
	}
}

func TestPendingAllocationBlocksSecondClaim(t *testing.T) {
	// Two actors plan against the same stock across ticks; the first
	// reservation must shrink what the second allocate call can claim.
	a := newParty(t, "shipA", 1000, 100)
	b := newParty(t, "shipB", 1000, 100)
	trader := newParty(t, "station", 0, 100)
	if _, err := trader.Storage.AddStock("FOOD", 50, true); err != nil {
		t.Fatalf("stock trader: %v", err)
	}
	book := sellBook("FOOD", 50, 10)

	tx1 := mustTx(t, []Item{{Commodity: "FOOD", Quantity: 50, Price: 10, Type: economy.Buy}})
	if err := Allocate(tx1, a, trader, book, true); err != nil {
		t.Fatalf("first allocate: %v", err)
	}
	tx2 := mustTx(t, []Item{{Commodity: "FOOD", Quantity: 10, Price: 10, Type: economy.Buy}})
	err := Allocate(tx2, b, trader, book, true)
	if !errors.Is(err, economy.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}
