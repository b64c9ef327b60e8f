// Package orders holds the step sequences ships execute and the pure
// per-tick decision logic for the current step. The world owns movement
// and settlement; this package only decides what should happen next from
// a snapshot of the relevant state.
package orders

type Kind string

const (
	KindMove     Kind = "MOVE"
	KindDock     Kind = "DOCK"
	KindTrade    Kind = "TRADE"
	KindMine     Kind = "MINE"
	KindHold     Kind = "HOLD"
	KindTeleport Kind = "TELEPORT"
)

type Step struct {
	Kind Kind `json:"kind"`

	// MOVE/TELEPORT
	TargetSector string `json:"targetSector,omitempty"`

	// DOCK/TRADE
	TargetID string `json:"targetId,omitempty"`

	// TRADE
	TransactionID string `json:"transactionId,omitempty"`

	// MINE
	FieldID   string `json:"fieldId,omitempty"`
	Commodity string `json:"commodity,omitempty"`

	// HOLD
	HoldTicks int `json:"holdTicks,omitempty"`
}

// Order is a ship's active step sequence. Current indexes the step being
// executed; steps before it are done.
type Order struct {
	ID          string `json:"id"`
	OwnerID     string `json:"ownerId"`
	Steps       []Step `json:"steps"`
	Current     int    `json:"current"`
	StartedTick uint64 `json:"startedTick"`
}

func (o *Order) Done() bool { return o.Current >= len(o.Steps) }

func (o *Order) CurrentStep() (Step, bool) {
	if o.Done() {
		return Step{}, false
	}
	return o.Steps[o.Current], true
}

func (o *Order) Advance() { o.Current++ }

// PendingTransactions lists transaction ids of trade steps that have not
// executed yet. Cancellation must abort each of them so their
// reservations are released.
func (o *Order) PendingTransactions() []string {
	var out []string
	for i := o.Current; i < len(o.Steps); i++ {
		if o.Steps[i].Kind == KindTrade && o.Steps[i].TransactionID != "" {
			out = append(out, o.Steps[i].TransactionID)
		}
	}
	return out
}

type StepDecision string

const (
	DecisionWait     StepDecision = "WAIT"
	DecisionAdvance  StepDecision = "ADVANCE"
	DecisionDock     StepDecision = "DOCK"
	DecisionSettle   StepDecision = "SETTLE"
	DecisionTeleport StepDecision = "TELEPORT"
	DecisionMine     StepDecision = "MINE"
)

type StepInput struct {
	Kind           Kind
	AtTargetSector bool
	TargetReached  bool // movement sub-system confirms arrival at target entity
	Docked         bool // dock state equals the step's target
	CargoFull      bool
	HoldRemaining  int
}

// DecideStep maps the current step plus the actor's movement/dock state
// to the action the world should take this tick. A trade step never
// settles before the dock state matches its target.
func DecideStep(in StepInput) StepDecision {
	switch in.Kind {
	case KindMove:
		if in.AtTargetSector {
			return DecisionAdvance
		}
		return DecisionWait
	case KindTeleport:
		if in.AtTargetSector {
			return DecisionAdvance
		}
		return DecisionTeleport
	case KindDock:
		if in.Docked {
			return DecisionAdvance
		}
		if in.TargetReached {
			return DecisionDock
		}
		return DecisionWait
	case KindTrade:
		if in.Docked {
			return DecisionSettle
		}
		return DecisionWait
	case KindMine:
		if in.CargoFull {
			return DecisionAdvance
		}
		return DecisionMine
	case KindHold:
		if in.HoldRemaining <= 0 {
			return DecisionAdvance
		}
		return DecisionWait
	}
	return DecisionWait
}

// TradeLeg builds the canonical move, dock, trade step triple toward one
// counterparty.
func TradeLeg(sector, targetID, transactionID string) []Step {
	return []Step{
		{Kind: KindMove, TargetSector: sector},
		{Kind: KindDock, TargetID: targetID},
		{Kind: KindTrade, TargetID: targetID, TransactionID: transactionID},
	}
}
