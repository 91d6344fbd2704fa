package deck

import "fmt"

// CardSet is a 52-bit set over the canonical card ordering, used for cheap
// duplicate detection when assembling hole cards and boards.
type CardSet uint64

// NewCardSet builds a set from cards, failing on invalid or duplicate entries
func NewCardSet(cards ...Card) (CardSet, error) {
	var set CardSet
	for _, c := range cards {
		if !c.Valid() {
			return 0, fmt.Errorf("invalid card %v", c)
		}
		if set.Contains(c) {
			return 0, fmt.Errorf("duplicate card %s", c)
		}
		set = set.Add(c)
	}
	return set, nil
}

// Add returns the set with the card included
func (s CardSet) Add(c Card) CardSet {
	return s | 1<<uint(c.Index())
}

// Contains reports whether the card is in the set
func (s CardSet) Contains(c Card) bool {
	return s&(1<<uint(c.Index())) != 0
}

// Count returns the number of cards in the set
func (s CardSet) Count() int {
	n := 0
	for v := uint64(s); v != 0; v &= v - 1 {
		n++
	}
	return n
}
