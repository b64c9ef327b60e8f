// Package budget implements a money pool with ledger-backed reservations.
// ChangeMoney is the only way to mutate the balance; reservations hold
// part of it for a pending trade without moving anything.
package budget

import (
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/ledger"
)

// Entry is one money mutation, kept for auditing and pricing feedback.
type Entry struct {
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason,omitempty"`
	Tick   uint64  `json:"tick"`
}

type Budget struct {
	money  float64
	allocs ledger.Ledger[float64]

	available float64

	journal    []Entry
	journalCap int
}

const defaultJournalCap = 128

func New() *Budget {
	return &Budget{journalCap: defaultJournalCap}
}

func (b *Budget) Money() float64 { return b.money }

// Available is money minus reservations. It is used only for validating
// new reservations and spend decisions, never mutated directly.
func (b *Budget) Available() float64 { return b.available }

// ChangeMoney applies a delta to the balance and appends a journal entry.
// It fails if the resulting balance would be negative.
func (b *Budget) ChangeMoney(delta float64, nowTick uint64, reason string) error {
	if b.money+delta < 0 {
		return economy.ErrNegativeBudget
	}
	b.money += delta
	b.journal = append(b.journal, Entry{Delta: delta, Reason: reason, Tick: nowTick})
	if len(b.journal) > b.journalCap {
		b.journal = b.journal[len(b.journal)-b.journalCap:]
	}
	b.recompute()
	return nil
}

// Reserve holds amount against the available balance.
func (b *Budget) Reserve(amount float64) (uint32, error) {
	if amount < 0 {
		return 0, economy.ErrNegativeQuantity
	}
	a, err := b.allocs.Reserve(amount, func(ledger.Allocation[float64]) error {
		total := 0.0
		for _, al := range b.allocs.Allocations() {
			total += al.Amount
		}
		if total > b.money {
			return economy.ErrInsufficientMoney
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	b.recompute()
	return a.ID, nil
}

func (b *Budget) Release(id uint32) (float64, error) {
	a, err := b.allocs.Release(id)
	if err != nil {
		return 0, err
	}
	b.recompute()
	return a.Amount, nil
}

func (b *Budget) MustRelease(id uint32) float64 {
	a := b.allocs.MustRelease(id)
	b.recompute()
	return a.Amount
}

func (b *Budget) AllocationCount() int { return b.allocs.Len() }

// Journal returns the bounded mutation log, oldest first.
func (b *Budget) Journal() []Entry { return b.journal }

// Transfer moves amount from source to target. It is two ChangeMoney legs,
// not atomic across a crash; a validation error on the first leg leaves
// both budgets untouched, which is why settlement aborts before any
// transfer is attempted.
func Transfer(amount float64, nowTick uint64, source, target *Budget, reason string) error {
	if amount < 0 {
		return economy.ErrNegativeQuantity
	}
	if err := source.ChangeMoney(-amount, nowTick, reason); err != nil {
		return err
	}
	return target.ChangeMoney(amount, nowTick, reason)
}

func (b *Budget) recompute() {
	total := 0.0
	for _, a := range b.allocs.Allocations() {
		total += a.Amount
	}
	b.available = b.money - total
}

// Snapshot carries the balance and the live reservations, counter
// verbatim.
type Snapshot struct {
	Money       float64              `json:"money"`
	Counter     uint32               `json:"counter"`
	Allocations []AllocationSnapshot `json:"allocations,omitempty"`
	Journal     []Entry              `json:"journal,omitempty"`
}

type AllocationSnapshot struct {
	ID     uint32  `json:"id"`
	Amount float64 `json:"amount"`
}

func (b *Budget) Export() Snapshot {
	snap := Snapshot{Money: b.money, Counter: b.allocs.Counter()}
	for _, a := range b.allocs.Allocations() {
		snap.Allocations = append(snap.Allocations, AllocationSnapshot{ID: a.ID, Amount: a.Amount})
	}
	snap.Journal = append(snap.Journal, b.journal...)
	return snap
}

func FromSnapshot(snap Snapshot) *Budget {
	b := New()
	b.money = snap.Money
	allocs := make([]ledger.Allocation[float64], 0, len(snap.Allocations))
	for _, a := range snap.Allocations {
		allocs = append(allocs, ledger.Allocation[float64]{ID: a.ID, Amount: a.Amount})
	}
	b.allocs.Restore(snap.Counter, allocs)
	b.journal = append(b.journal, snap.Journal...)
	b.recompute()
	return b
}
