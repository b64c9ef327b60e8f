package orders

import "testing"

func TestDecideStep(t *testing.T) {
	cases := []struct {
		name string
		in   StepInput
		want StepDecision
	}{
		{"move waits in transit", StepInput{Kind: KindMove}, DecisionWait},
		{"move advances on arrival", StepInput{Kind: KindMove, AtTargetSector: true}, DecisionAdvance},
		{"teleport fires when away", StepInput{Kind: KindTeleport}, DecisionTeleport},
		{"teleport advances once there", StepInput{Kind: KindTeleport, AtTargetSector: true}, DecisionAdvance},
		{"dock waits until reached", StepInput{Kind: KindDock}, DecisionWait},
		{"dock docks when reached", StepInput{Kind: KindDock, TargetReached: true}, DecisionDock},
		{"dock advances when docked", StepInput{Kind: KindDock, Docked: true}, DecisionAdvance},
		{"trade blocked until docked", StepInput{Kind: KindTrade, TargetReached: true}, DecisionWait},
		{"trade settles when docked", StepInput{Kind: KindTrade, Docked: true}, DecisionSettle},
		{"mine until full", StepInput{Kind: KindMine}, DecisionMine},
		{"mine advances when full", StepInput{Kind: KindMine, CargoFull: true}, DecisionAdvance},
		{"hold waits", StepInput{Kind: KindHold, HoldRemaining: 3}, DecisionWait},
		{"hold advances at zero", StepInput{Kind: KindHold}, DecisionAdvance},
	}
	for _, tc := range cases {
		if got := DecideStep(tc.in); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestOrderProgressAndPendingTransactions(t *testing.T) {
	o := &Order{ID: "O1", OwnerID: "ship"}
	o.Steps = append(o.Steps, TradeLeg("sec-b", "stationB", "T1")...)
	o.Steps = append(o.Steps, TradeLeg("sec-a", "stationA", "T2")...)

	if got := o.PendingTransactions(); len(got) != 2 || got[0] != "T1" || got[1] != "T2" {
		t.Fatalf("expected [T1 T2], got %v", got)
	}

	// Walk past the first leg.
	for i := 0; i < 3; i++ {
		o.Advance()
	}
	if got := o.PendingTransactions(); len(got) != 1 || got[0] != "T2" {
		t.Fatalf("expected [T2] after first leg, got %v", got)
	}
	step, ok := o.CurrentStep()
	if !ok || step.Kind != KindMove || step.TargetSector != "sec-a" {
		t.Fatalf("expected move to sec-a, got %+v ok=%v", step, ok)
	}

	for i := 0; i < 3; i++ {
		o.Advance()
	}
	if !o.Done() {
		t.Fatalf("expected done")
	}
	if _, ok := o.CurrentStep(); ok {
		t.Fatalf("done order must have no current step")
	}
	if got := o.PendingTransactions(); len(got) != 0 {
		t.Fatalf("expected no pending transactions, got %v", got)
	}
}
