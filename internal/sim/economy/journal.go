package economy

// Journal is a bounded log of an actor's completed trades, oldest first.
// Settlement appends to it on both sides of every accepted trade; the
// pricing adjustment cycle reads fill quantities from it.
type Journal struct {
	entries []TradeEntry
	cap     int
}

const defaultJournalCap = 256

func NewJournal(cap int) *Journal {
	if cap <= 0 {
		cap = defaultJournalCap
	}
	return &Journal{cap: cap}
}

func (j *Journal) Add(e TradeEntry) {
	j.entries = append(j.entries, e)
	if len(j.entries) > j.cap {
		j.entries = j.entries[len(j.entries)-j.cap:]
	}
}

func (j *Journal) Entries() []TradeEntry { return j.entries }

// TradedSince sums quantities for a commodity and side at or after the
// given tick.
func (j *Journal) TradedSince(commodity string, typ OfferType, sinceTick uint64) int {
	total := 0
	for _, e := range j.entries {
		if e.Tick < sinceTick || e.Commodity != commodity || e.Type != typ {
			continue
		}
		total += e.Quantity
	}
	return total
}

// Restore replaces the journal contents, used on snapshot load.
func (j *Journal) Restore(entries []TradeEntry) {
	j.entries = append(j.entries[:0], entries...)
	if len(j.entries) > j.cap {
		j.entries = j.entries[len(j.entries)-j.cap:]
	}
}
