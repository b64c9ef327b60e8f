package protocol

import (
	"testing"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/settlement"
)

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrBadRequest,
		ErrNoOffer,
		ErrPriceMismatch,
		ErrExceedsOffer,
		ErrNoResource,
		ErrRelation,
		ErrInvalidTarget,
		ErrConflict,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestCodeForError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{settlement.ErrNoOffer, ErrNoOffer},
		{settlement.ErrPriceMismatch, ErrPriceMismatch},
		{settlement.ErrRelationTooLow, ErrRelation},
		{economy.ErrExceededOfferQuantity, ErrExceedsOffer},
		{economy.ErrInsufficientStock, ErrNoResource},
		{economy.ErrInsufficientSpace, ErrNoResource},
		{economy.ErrInsufficientMoney, ErrNoResource},
		{economy.ErrNegativeQuantity, ErrBadRequest},
		{settlement.ErrMixedDirections, ErrBadRequest},
	}
	for _, tc := range cases {
		if got := CodeForError(tc.err); got != tc.want {
			t.Fatalf("CodeForError(%v): expected %s, got %s", tc.err, tc.want, got)
		}
		if !IsKnownCode(CodeForError(tc.err)) {
			t.Fatalf("unregistered code for %v", tc.err)
		}
	}
}
