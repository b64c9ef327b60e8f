// Package storage implements per-commodity stock with a hard capacity and
// ledger-backed incoming/outgoing reservations. A reservation promises
// space (incoming) or stock (outgoing) to a pending trade without moving
// anything; derived availability is recomputed on every mutation so the
// invariants availableSpace >= 0 and availableStock[c] >= 0 hold after
// every call.
package storage

import (
	"sort"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/ledger"
)

type Direction string

const (
	Incoming Direction = "INCOMING"
	Outgoing Direction = "OUTGOING"
)

// Transfer is the payload of a storage allocation.
type Transfer struct {
	Amount    map[string]int
	Direction Direction
}

type Storage struct {
	capacity int
	stock    map[string]int
	quota    map[string]int

	allocs ledger.Ledger[Transfer]

	// Derived caches, rebuilt by recompute() on every mutation.
	availableStock map[string]int
	availableSpace int
}

func New(capacity int) *Storage {
	s := &Storage{
		capacity:       capacity,
		stock:          map[string]int{},
		quota:          map[string]int{},
		availableStock: map[string]int{},
	}
	s.recompute()
	return s
}

func (s *Storage) Capacity() int { return s.capacity }

// AddCapacity grows (or shrinks) capacity, e.g. when a storage module is
// added to a facility. Shrinking below committed stock is the caller's
// bug; availability simply clamps at zero.
func (s *Storage) AddCapacity(delta int) {
	s.capacity += delta
	s.recompute()
}

func (s *Storage) Stock(commodity string) int { return s.stock[commodity] }

// StockList returns non-zero stock in commodity order.
func (s *Storage) StockList() []Stack {
	out := make([]Stack, 0, len(s.stock))
	for c, n := range s.stock {
		if n > 0 {
			out = append(out, Stack{Commodity: c, Quantity: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Commodity < out[j].Commodity })
	return out
}

type Stack struct {
	Commodity string `json:"commodity"`
	Quantity  int    `json:"quantity"`
}

func (s *Storage) Quota(commodity string) int { return s.quota[commodity] }

func (s *Storage) SetQuota(commodity string, n int) {
	if n <= 0 {
		delete(s.quota, commodity)
		return
	}
	s.quota[commodity] = n
}

func (s *Storage) TotalStock() int {
	total := 0
	for _, n := range s.stock {
		total += n
	}
	return total
}

// AvailableStock is stock minus outgoing reservations, floored at zero.
func (s *Storage) AvailableStock(commodity string) int { return s.availableStock[commodity] }

// AvailableSpace is capacity minus total stock minus incoming
// reservations, floored at zero (incoming validated against outgoing
// headroom can briefly exceed raw space).
func (s *Storage) AvailableSpace() int { return s.availableSpace }

// AddStock puts qty units of a commodity into storage. With exact set, the
// call fails with ErrInsufficientSpace when there is not enough available
// space; otherwise it fills up to capacity and returns the unfilled
// remainder (the partial-fill path used by production and mining).
func (s *Storage) AddStock(commodity string, qty int, exact bool) (rest int, err error) {
	if qty < 0 {
		return 0, economy.ErrNegativeQuantity
	}
	space := s.availableSpace
	if exact && space < qty {
		return qty, economy.ErrInsufficientSpace
	}
	fill := qty
	if fill > space {
		fill = space
	}
	if fill > 0 {
		s.stock[commodity] += fill
		s.recompute()
	}
	return qty - fill, nil
}

// RemoveStock takes qty units out of storage. Stock promised to an
// outgoing reservation is not removable.
func (s *Storage) RemoveStock(commodity string, qty int) error {
	if qty < 0 {
		return economy.ErrNegativeQuantity
	}
	if s.availableStock[commodity] < qty {
		return economy.ErrInsufficientStock
	}
	s.stock[commodity] -= qty
	if s.stock[commodity] <= 0 {
		delete(s.stock, commodity)
	}
	s.recompute()
	return nil
}

// ReserveIncoming promises space for a future delivery. The validator runs
// against the pool including the candidate: total stock plus all incoming
// reservations must fit into capacity, with outgoing reservations giving
// their headroom back.
func (s *Storage) ReserveIncoming(amount map[string]int) (uint32, error) {
	cleaned, err := cleanAmount(amount)
	if err != nil {
		return 0, err
	}
	a, err := s.allocs.Reserve(Transfer{Amount: cleaned, Direction: Incoming}, func(ledger.Allocation[Transfer]) error {
		in, out := s.reservedTotals()
		if s.TotalStock()+in-out > s.capacity {
			return economy.ErrInsufficientSpace
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.recompute()
	return a.ID, nil
}

// ReserveOutgoing promises stock for a future pickup. Per commodity the
// promise must not exceed current stock minus prior outgoing promises plus
// pending incoming deliveries.
func (s *Storage) ReserveOutgoing(amount map[string]int) (uint32, error) {
	cleaned, err := cleanAmount(amount)
	if err != nil {
		return 0, err
	}
	a, err := s.allocs.Reserve(Transfer{Amount: cleaned, Direction: Outgoing}, func(ledger.Allocation[Transfer]) error {
		for c := range cleaned {
			in, out := s.reservedCommodity(c)
			if s.stock[c]-out+in < 0 {
				return economy.ErrInsufficientStock
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.recompute()
	return a.ID, nil
}

// Release returns a reservation's amounts to availability.
func (s *Storage) Release(id uint32) (Transfer, error) {
	a, err := s.allocs.Release(id)
	if err != nil {
		return Transfer{}, err
	}
	s.recompute()
	return a.Amount, nil
}

// MustRelease panics on a stale id; used by order-cancellation paths where
// a missing allocation means leaked bookkeeping.
func (s *Storage) MustRelease(id uint32) Transfer {
	a := s.allocs.MustRelease(id)
	s.recompute()
	return a.Amount
}

func (s *Storage) AllocationCount() int { return s.allocs.Len() }

func (s *Storage) reservedTotals() (incoming, outgoing int) {
	for _, a := range s.allocs.Allocations() {
		for _, n := range a.Amount.Amount {
			switch a.Amount.Direction {
			case Incoming:
				incoming += n
			case Outgoing:
				outgoing += n
			}
		}
	}
	return incoming, outgoing
}

func (s *Storage) reservedCommodity(commodity string) (incoming, outgoing int) {
	for _, a := range s.allocs.Allocations() {
		n := a.Amount.Amount[commodity]
		if n == 0 {
			continue
		}
		switch a.Amount.Direction {
		case Incoming:
			incoming += n
		case Outgoing:
			outgoing += n
		}
	}
	return incoming, outgoing
}

func (s *Storage) recompute() {
	in := 0
	for k := range s.availableStock {
		delete(s.availableStock, k)
	}
	outByCommodity := map[string]int{}
	for _, a := range s.allocs.Allocations() {
		for c, n := range a.Amount.Amount {
			switch a.Amount.Direction {
			case Incoming:
				in += n
			case Outgoing:
				outByCommodity[c] += n
			}
		}
	}
	for c, n := range s.stock {
		avail := n - outByCommodity[c]
		if avail < 0 {
			avail = 0
		}
		s.availableStock[c] = avail
	}
	space := s.capacity - s.TotalStock() - in
	if space < 0 {
		space = 0
	}
	s.availableSpace = space
}

func cleanAmount(amount map[string]int) (map[string]int, error) {
	cleaned := map[string]int{}
	for c, n := range amount {
		if n < 0 {
			return nil, economy.ErrNegativeQuantity
		}
		if n > 0 {
			cleaned[c] = n
		}
	}
	return cleaned, nil
}
