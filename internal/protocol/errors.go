package protocol

import (
	"errors"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/ledger"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/settlement"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Trade layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNoOffer       = "E_NO_OFFER"
	ErrPriceMismatch = "E_PRICE_MISMATCH"
	ErrExceedsOffer  = "E_EXCEEDS_OFFER"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrRelation      = "E_RELATION"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrConflict      = "E_CONFLICT"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrNoOffer:         {},
	ErrPriceMismatch:   {},
	ErrExceedsOffer:    {},
	ErrNoResource:      {},
	ErrRelation:        {},
	ErrInvalidTarget:   {},
	ErrConflict:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeForError maps a simulation error to its wire code.
func CodeForError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, settlement.ErrNoOffer):
		return ErrNoOffer
	case errors.Is(err, settlement.ErrPriceMismatch):
		return ErrPriceMismatch
	case errors.Is(err, economy.ErrExceededOfferQuantity):
		return ErrExceedsOffer
	case errors.Is(err, settlement.ErrRelationTooLow):
		return ErrRelation
	case errors.Is(err, economy.ErrInsufficientStock),
		errors.Is(err, economy.ErrInsufficientSpace),
		errors.Is(err, economy.ErrInsufficientMoney),
		errors.Is(err, economy.ErrNegativeBudget):
		return ErrNoResource
	case errors.Is(err, economy.ErrNegativeQuantity),
		errors.Is(err, economy.ErrNonIntegerQuantity),
		errors.Is(err, economy.ErrInvalidOfferType),
		errors.Is(err, settlement.ErrMixedDirections):
		return ErrBadRequest
	case errors.Is(err, ledger.ErrAllocationNotFound):
		return ErrConflict
	default:
		return ErrInternal
	}
}
