package storage

import (
	"errors"
	"testing"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy"
)

func TestAddRemoveRoundTrip(t *testing.T) {
	s := New(100)
	if rest, err := s.AddStock("FOOD", 30, true); err != nil || rest != 0 {
		t.Fatalf("add: rest=%d err=%v", rest, err)
	}
	if err := s.RemoveStock("FOOD", 30); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if s.Stock("FOOD") != 0 || s.TotalStock() != 0 {
		t.Fatalf("round trip left stock behind: %d", s.Stock("FOOD"))
	}
	if s.AvailableSpace() != 100 {
		t.Fatalf("expected space 100, got %d", s.AvailableSpace())
	}
}

func TestExactAddFailsWithoutSpace(t *testing.T) {
	s := New(10)
	if _, err := s.AddStock("ORE", 11, true); !errors.Is(err, economy.ErrInsufficientSpace) {
		t.Fatalf("expected ErrInsufficientSpace, got %v", err)
	}
	if s.Stock("ORE") != 0 {
		t.Fatalf("failed exact add mutated stock")
	}
}

func TestPartialAddReturnsRemainder(t *testing.T) {
	s := New(10)
	rest, err := s.AddStock("ORE", 14, false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if rest != 4 {
		t.Fatalf("expected remainder 4, got %d", rest)
	}
	if s.Stock("ORE") != 10 || s.AvailableSpace() != 0 {
		t.Fatalf("partial fill wrong: stock=%d space=%d", s.Stock("ORE"), s.AvailableSpace())
	}
}

func TestRemoveRespectsOutgoingReservations(t *testing.T) {
	s := New(100)
	s.AddStock("FOOD", 10, true)
	if _, err := s.ReserveOutgoing(map[string]int{"FOOD": 8}); err != nil {
		t.Fatalf("reserve outgoing: %v", err)
	}
	if err := s.RemoveStock("FOOD", 3); !errors.Is(err, economy.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if err := s.RemoveStock("FOOD", 2); err != nil {
		t.Fatalf("remove within availability: %v", err)
	}
}

// The worked example from the storage design: capacity 100, 10 food in
// stock, incoming 5 food + 5 fuel, outgoing 9 food.
func TestDerivedAvailability(t *testing.T) {
	s := New(100)
	if _, err := s.AddStock("FOOD", 10, true); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.ReserveIncoming(map[string]int{"FOOD": 5}); err != nil {
		t.Fatalf("incoming food: %v", err)
	}
	if _, err := s.ReserveIncoming(map[string]int{"FUEL": 5}); err != nil {
		t.Fatalf("incoming fuel: %v", err)
	}
	if _, err := s.ReserveOutgoing(map[string]int{"FOOD": 9}); err != nil {
		t.Fatalf("outgoing food: %v", err)
	}
	if got := s.AvailableStock("FOOD"); got != 1 {
		t.Fatalf("availableStock food: expected 1, got %d", got)
	}
	if got := s.AvailableStock("FUEL"); got != 0 {
		t.Fatalf("availableStock fuel: expected 0, got %d", got)
	}
	if got := s.AvailableSpace(); got != 80 {
		t.Fatalf("availableSpace: expected 80, got %d", got)
	}
}

func TestIncomingRejectedOverCapacity(t *testing.T) {
	s := New(20)
	s.AddStock("FOOD", 15, true)
	if _, err := s.ReserveIncoming(map[string]int{"FOOD": 6}); !errors.Is(err, economy.ErrInsufficientSpace) {
		t.Fatalf("expected ErrInsufficientSpace, got %v", err)
	}
	if s.AllocationCount() != 0 {
		t.Fatalf("failed reserve left allocation")
	}
	// Outgoing reservations give headroom back to incoming validation.
	if _, err := s.ReserveOutgoing(map[string]int{"FOOD": 6}); err != nil {
		t.Fatalf("outgoing: %v", err)
	}
	if _, err := s.ReserveIncoming(map[string]int{"FOOD": 6}); err != nil {
		t.Fatalf("incoming after outgoing headroom: %v", err)
	}
}

func TestOutgoingRejectedOverAvailability(t *testing.T) {
	s := New(100)
	s.AddStock("ORE", 10, true)
	if _, err := s.ReserveOutgoing(map[string]int{"ORE": 8}); err != nil {
		t.Fatalf("first outgoing: %v", err)
	}
	if _, err := s.ReserveOutgoing(map[string]int{"ORE": 3}); !errors.Is(err, economy.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	// Pending incoming counts toward outgoing availability.
	if _, err := s.ReserveIncoming(map[string]int{"ORE": 3}); err != nil {
		t.Fatalf("incoming: %v", err)
	}
	if _, err := s.ReserveOutgoing(map[string]int{"ORE": 3}); err != nil {
		t.Fatalf("outgoing backed by pending incoming: %v", err)
	}
}

func TestReleaseReturnsAvailability(t *testing.T) {
	s := New(50)
	s.AddStock("FOOD", 20, true)
	in, err := s.ReserveIncoming(map[string]int{"FOOD": 10})
	if err != nil {
		t.Fatalf("incoming: %v", err)
	}
	out, err := s.ReserveOutgoing(map[string]int{"FOOD": 15})
	if err != nil {
		t.Fatalf("outgoing: %v", err)
	}
	if s.AvailableSpace() != 20 || s.AvailableStock("FOOD") != 5 {
		t.Fatalf("pre-release availability wrong: space=%d stock=%d", s.AvailableSpace(), s.AvailableStock("FOOD"))
	}
	if _, err := s.Release(in); err != nil {
		t.Fatalf("release incoming: %v", err)
	}
	if _, err := s.Release(out); err != nil {
		t.Fatalf("release outgoing: %v", err)
	}
	if s.AvailableSpace() != 30 || s.AvailableStock("FOOD") != 20 {
		t.Fatalf("post-release availability wrong: space=%d stock=%d", s.AvailableSpace(), s.AvailableStock("FOOD"))
	}
	if s.AllocationCount() != 0 {
		t.Fatalf("allocations leaked")
	}
}

func TestNegativeQuantitiesRejected(t *testing.T) {
	s := New(10)
	if _, err := s.AddStock("FOOD", -1, true); !errors.Is(err, economy.ErrNegativeQuantity) {
		t.Fatalf("add: expected ErrNegativeQuantity, got %v", err)
	}
	if _, err := s.ReserveIncoming(map[string]int{"FOOD": -2}); !errors.Is(err, economy.ErrNegativeQuantity) {
		t.Fatalf("incoming: expected ErrNegativeQuantity, got %v", err)
	}
	if _, err := s.ReserveOutgoing(map[string]int{"FOOD": -2}); !errors.Is(err, economy.ErrNegativeQuantity) {
		t.Fatalf("outgoing: expected ErrNegativeQuantity, got %v", err)
	}
}

func TestInvariantsHoldAcrossSequences(t *testing.T) {
	s := New(40)
	check := func(step string) {
		t.Helper()
		if s.AvailableSpace() < 0 {
			t.Fatalf("%s: availableSpace < 0", step)
		}
		for _, st := range s.StockList() {
			if s.AvailableStock(st.Commodity) < 0 {
				t.Fatalf("%s: availableStock[%s] < 0", step, st.Commodity)
			}
		}
	}
	var ids []uint32
	s.AddStock("FOOD", 25, true)
	check("add")
	for i := 0; i < 6; i++ {
		if id, err := s.ReserveOutgoing(map[string]int{"FOOD": 4}); err == nil {
			ids = append(ids, id)
		}
		check("outgoing")
		if id, err := s.ReserveIncoming(map[string]int{"FUEL": 3}); err == nil {
			ids = append(ids, id)
		}
		check("incoming")
	}
	for _, id := range ids {
		if _, err := s.Release(id); err != nil {
			t.Fatalf("release %d: %v", id, err)
		}
		check("release")
	}
	if s.AvailableSpace() != 15 || s.AvailableStock("FOOD") != 25 {
		t.Fatalf("final availability wrong: space=%d food=%d", s.AvailableSpace(), s.AvailableStock("FOOD"))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := New(60)
	s.AddStock("FOOD", 12, true)
	s.SetQuota("FOOD", 30)
	id, err := s.ReserveOutgoing(map[string]int{"FOOD": 5})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	restored := FromSnapshot(s.Export())
	if restored.Capacity() != 60 || restored.Stock("FOOD") != 12 || restored.Quota("FOOD") != 30 {
		t.Fatalf("restored fields wrong")
	}
	if restored.AvailableStock("FOOD") != 7 {
		t.Fatalf("restored availability wrong: %d", restored.AvailableStock("FOOD"))
	}
	if _, err := restored.Release(id); err != nil {
		t.Fatalf("release restored allocation: %v", err)
	}
	// Counter must continue after the snapshotted id.
	next, err := restored.ReserveIncoming(map[string]int{"FOOD": 1})
	if err != nil {
		t.Fatalf("reserve after restore: %v", err)
	}
	if next <= id {
		t.Fatalf("allocation id reused after restore: %d <= %d", next, id)
	}
}
