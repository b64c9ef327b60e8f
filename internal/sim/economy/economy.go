// Package economy holds the shared vocabulary of the economic core:
// commodity ids, offer types, the validation error taxonomy, and the
// trade journal entry appended on every settled trade.
package economy

import "errors"

type OfferType string

const (
	Buy  OfferType = "BUY"
	Sell OfferType = "SELL"
)

// Validation failures raised at the offending call. None are retried
// automatically; the caller decides whether to abort or propagate.
var (
	ErrNegativeQuantity      = errors.New("negative quantity")
	ErrNonIntegerQuantity    = errors.New("non-integer quantity")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrInsufficientSpace     = errors.New("insufficient space")
	ErrNegativeBudget        = errors.New("budget would go negative")
	ErrInsufficientMoney     = errors.New("insufficient money")
	ErrInvalidOfferType      = errors.New("invalid offer type")
	ErrExceededOfferQuantity = errors.New("exceeded offer quantity")
)

// CheckQuantity validates a quantity coming from an external boundary
// (catalog JSON, offer input). Fractional and negative values are rejected
// before they can reach a ledger.
func CheckQuantity(q float64) (int, error) {
	if q < 0 {
		return 0, ErrNegativeQuantity
	}
	n := int(q)
	if float64(n) != q {
		return 0, ErrNonIntegerQuantity
	}
	return n, nil
}

// TradeEntry is one completed trade from the owning actor's perspective.
// The pricing adjustment cycle reads quantities sold/bought since its last
// run from these entries.
type TradeEntry struct {
	Commodity    string    `json:"commodity"`
	Quantity     int       `json:"quantity"`
	Price        float64   `json:"price"`
	Type         OfferType `json:"type"` // the owning actor's side
	Counterparty string    `json:"counterparty"`
	Tick         uint64    `json:"tick"`
}
