// Package ledger implements the generic reservation primitive shared by
// commodity storage and money budgets. A Ledger hands out Allocations
// against a resource pool; the pool stays untouched until the reservation
// is either released back or converted into a real transfer by the caller.
package ledger

import "errors"

// ErrAllocationNotFound signals a release of an id that does not exist.
// This is a lifecycle bug upstream (double release or stale id), not a
// normal business condition.
var ErrAllocationNotFound = errors.New("allocation not found")

type Allocation[T any] struct {
	ID     uint32
	Amount T
}

// Ledger assigns monotonically increasing ids, never reused. The zero
// value is ready to use. Not safe for concurrent use; all mutation happens
// on the world loop goroutine.
type Ledger[T any] struct {
	nextID uint32
	allocs []Allocation[T]
}

// Reserve appends a candidate allocation and commits it only if validate
// returns nil. The validator runs with the candidate already in the pool,
// so validation and insertion are a single atomic step from the caller's
// point of view. On failure the candidate is removed and its id is burned.
func (l *Ledger[T]) Reserve(amount T, validate func(candidate Allocation[T]) error) (Allocation[T], error) {
	l.nextID++
	a := Allocation[T]{ID: l.nextID, Amount: amount}
	l.allocs = append(l.allocs, a)
	if err := validate(a); err != nil {
		l.allocs = l.allocs[:len(l.allocs)-1]
		return Allocation[T]{}, err
	}
	return a, nil
}

// Release removes the allocation with the given id and returns it.
// Releasing a nonexistent id is an error by design.
func (l *Ledger[T]) Release(id uint32) (Allocation[T], error) {
	for i, a := range l.allocs {
		if a.ID == id {
			l.allocs = append(l.allocs[:i], l.allocs[i+1:]...)
			return a, nil
		}
	}
	return Allocation[T]{}, ErrAllocationNotFound
}

// MustRelease is Release for internal lifecycle paths where a missing id
// means the caller has already lost track of its reservations.
func (l *Ledger[T]) MustRelease(id uint32) Allocation[T] {
	a, err := l.Release(id)
	if err != nil {
		panic("ledger: double release of allocation")
	}
	return a
}

func (l *Ledger[T]) Get(id uint32) (Allocation[T], bool) {
	for _, a := range l.allocs {
		if a.ID == id {
			return a, true
		}
	}
	return Allocation[T]{}, false
}

// Allocations returns the live backing slice in id order. Callers must not
// mutate it.
func (l *Ledger[T]) Allocations() []Allocation[T] { return l.allocs }

func (l *Ledger[T]) Len() int { return len(l.allocs) }

// Counter reports the last assigned id. Snapshots must serialize it
// verbatim to avoid id collisions on reload.
func (l *Ledger[T]) Counter() uint32 { return l.nextID }

// Restore rebuilds ledger state from a snapshot.
func (l *Ledger[T]) Restore(counter uint32, allocs []Allocation[T]) {
	l.nextID = counter
	l.allocs = append([]Allocation[T](nil), allocs...)
}
