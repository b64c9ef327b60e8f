package storage

import "github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/ledger"

// Snapshot is the serialized form of a Storage. Allocation ids and the
// ledger counter are carried verbatim so ids are never reused after a
// reload.
type Snapshot struct {
	Capacity    int                  `json:"capacity"`
	Stock       map[string]int       `json:"stock,omitempty"`
	Quota       map[string]int       `json:"quota,omitempty"`
	Counter     uint32               `json:"counter"`
	Allocations []AllocationSnapshot `json:"allocations,omitempty"`
}

type AllocationSnapshot struct {
	ID        uint32         `json:"id"`
	Direction Direction      `json:"direction"`
	Amount    map[string]int `json:"amount"`
}

func (s *Storage) Export() Snapshot {
	snap := Snapshot{
		Capacity: s.capacity,
		Stock:    map[string]int{},
		Quota:    map[string]int{},
		Counter:  s.allocs.Counter(),
	}
	for c, n := range s.stock {
		snap.Stock[c] = n
	}
	for c, n := range s.quota {
		snap.Quota[c] = n
	}
	for _, a := range s.allocs.Allocations() {
		amount := map[string]int{}
		for c, n := range a.Amount.Amount {
			amount[c] = n
		}
		snap.Allocations = append(snap.Allocations, AllocationSnapshot{
			ID:        a.ID,
			Direction: a.Amount.Direction,
			Amount:    amount,
		})
	}
	return snap
}

func FromSnapshot(snap Snapshot) *Storage {
	s := New(snap.Capacity)
	for c, n := range snap.Stock {
		s.stock[c] = n
	}
	for c, n := range snap.Quota {
		s.quota[c] = n
	}
	allocs := make([]ledger.Allocation[Transfer], 0, len(snap.Allocations))
	for _, a := range snap.Allocations {
		allocs = append(allocs, ledger.Allocation[Transfer]{
			ID:     a.ID,
			Amount: Transfer{Amount: a.Amount, Direction: a.Direction},
		})
	}
	s.allocs.Restore(snap.Counter, allocs)
	s.recompute()
	return s
}
