package world

import (
	"errors"
	"fmt"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/settlement"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/orders"
)

var (
	ErrUnknownActor  = errors.New("unknown actor")
	ErrOrderActive   = errors.New("ship already has an active order")
	ErrNoTransaction = errors.New("unknown transaction")
)

// shipParties resolves the two sides of a ship-to-facility trade. The
// ship pays from its faction's budget; the facility from its own.
func (w *World) shipParties(s *Ship, f *Facility) (customer, trader settlement.Party, ok bool) {
	fn := w.factions[s.FactionID]
	if fn == nil {
		return customer, trader, false
	}
	customer = settlement.Party{ID: s.ID, Budget: fn.Budget, Storage: s.Storage, Journal: s.Journal}
	trader = settlement.Party{ID: f.ID, Budget: f.Budget, Storage: f.Storage, Journal: f.Journal}
	return customer, trader, true
}

// ProposeTransaction reserves a trade against a facility's posted offers
// and returns the move, dock, trade steps that will complete it. A nil
// error means both sides are fully allocated; nothing moves until the
// ship docks and the trade step settles.
func (w *World) ProposeTransaction(shipID, facilityID string, items []settlement.Item) (*orders.Order, error) {
	s := w.ships[shipID]
	f := w.facilities[facilityID]
	if s == nil || f == nil {
		return nil, ErrUnknownActor
	}
	customer, trader, ok := w.shipParties(s, f)
	if !ok {
		return nil, ErrUnknownActor
	}

	tx, err := settlement.NewTransaction(
		fmt.Sprintf("TX%d", w.nextTxNum.Add(1)),
		w.nextCorrelation(),
		s.ID, f.ID, s.FactionID,
		items,
	)
	if err != nil {
		return nil, err
	}
	relationOK := w.tradeAllowed(s.FactionID, f.FactionID)
	if err := settlement.Allocate(tx, customer, trader, f.Book, relationOK); err != nil {
		return nil, err
	}
	w.transactions[tx.ID] = tx

	o := &orders.Order{
		ID:          fmt.Sprintf("OR%d", w.nextOrderNum.Add(1)),
		OwnerID:     s.ID,
		Steps:       orders.TradeLeg(f.SectorID, f.ID, tx.ID),
		StartedTick: w.tick.Load(),
	}
	return o, nil
}

// AssignOrder puts an order on a ship, appending to an active order's
// remaining steps when one exists.
func (w *World) AssignOrder(shipID string, o *orders.Order) error {
	s := w.ships[shipID]
	if s == nil {
		return ErrUnknownActor
	}
	if s.Order == nil {
		s.Order = o
		return nil
	}
	s.Order.Steps = append(s.Order.Steps, o.Steps...)
	return nil
}

// settleAtDock finalizes a transaction once docking is confirmed. False
// means blocked; the caller decides whether to abort.
func (w *World) settleAtDock(s *Ship, txID string, nowTick uint64) bool {
	tx := w.transactions[txID]
	if tx == nil {
		return false
	}
	f := w.facilities[tx.Trader]
	if f == nil || s.DockedAt != f.ID {
		return false
	}
	customer, trader, ok := w.shipParties(s, f)
	if !ok {
		return false
	}
	if err := settlement.Accept(tx, customer, trader, f.Book, nowTick); err != nil {
		return false
	}
	delete(w.transactions, txID)

	w.stats.TradesSettled++
	for _, it := range tx.Items {
		w.stats.TradeVolume += it.Price * float64(it.Quantity)
		if w.tradeLogger != nil {
			_ = w.tradeLogger.WriteTrade(TradeLogEntry{
				Tick:          nowTick,
				TransactionID: tx.ID,
				CorrelationID: tx.CorrelationID,
				Initiator:     tx.Initiator,
				Trader:        tx.Trader,
				Commodity:     it.Commodity,
				Quantity:      it.Quantity,
				Price:         it.Price,
				Type:          string(it.Type),
			})
		}
	}

	w.afterTrade(s.FactionID, f.FactionID)
	return true
}

// SettleAtDock is the external entry point for order-execution
// collaborators driving settlement themselves.
func (w *World) SettleAtDock(shipID, txID string) bool {
	s := w.ships[shipID]
	if s == nil {
		return false
	}
	ok := w.settleAtDock(s, txID, w.tick.Load())
	w.publishStats()
	return ok
}

// afterTrade nudges relations when the player faction took part.
func (w *World) afterTrade(a, b string) {
	if a == b {
		return
	}
	fa, fb := w.factions[a], w.factions[b]
	if fa == nil || fb == nil {
		return
	}
	if fa.Player || fb.Player {
		w.nudgeRelation(a, b, w.tune.PlayerRelationNudge)
	}
}

// abortTransaction releases a transaction's reservations and drops it.
func (w *World) abortTransaction(txID string) {
	tx := w.transactions[txID]
	if tx == nil {
		return
	}
	s := w.ships[tx.Initiator]
	f := w.facilities[tx.Trader]
	if s != nil && f != nil && tx.Allocated {
		if customer, trader, ok := w.shipParties(s, f); ok {
			_ = settlement.Abort(tx, customer, trader)
		}
	}
	delete(w.transactions, txID)
	w.stats.TradesAborted++
}

// CancelOrder removes a ship's order mid-flight. Every allocation behind
// a still-pending trade step is released; skipping this would leak
// reserved stock and money permanently.
func (w *World) CancelOrder(shipID string) error {
	s := w.ships[shipID]
	if s == nil {
		return ErrUnknownActor
	}
	if s.Order == nil {
		return nil
	}
	for _, txID := range s.Order.PendingTransactions() {
		w.abortTransaction(txID)
	}
	s.Order = nil
	w.publishStats()
	return nil
}

// RemoveShip releases everything the ship holds before deletion.
func (w *World) RemoveShip(shipID string) error {
	if err := w.CancelOrder(shipID); err != nil {
		return err
	}
	delete(w.ships, shipID)
	return nil
}

// PendingTransactions returns live transaction ids, for tests and
// debugging endpoints.
func (w *World) PendingTransactions() int { return len(w.transactions) }
