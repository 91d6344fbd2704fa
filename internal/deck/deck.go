package deck

import (
	"fmt"
	rand "math/rand/v2"
)

// Deck represents a deck of playing cards. The random source is injected so
// that training runs replay identically from a seed.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// NewDeck creates a new standard 52-card deck drawing randomness from rng
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{
		cards: make([]Card, 0, 52),
		rng:   rng,
	}
	d.fill()
	return d
}

// NewDeckWithout creates a deck missing the excluded cards, for sampling
// completions of a partially known hand. Fails on invalid or duplicate
// exclusions.
func NewDeckWithout(rng *rand.Rand, excluded ...Card) (*Deck, error) {
	set, err := NewCardSet(excluded...)
	if err != nil {
		return nil, fmt.Errorf("excluded cards: %w", err)
	}
	d := &Deck{
		cards: make([]Card, 0, 52-len(excluded)),
		rng:   rng,
	}
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			c := NewCard(suit, rank)
			if !set.Contains(c) {
				d.cards = append(d.cards, c)
			}
		}
	}
	return d, nil
}

func (d *Deck) fill() {
	d.cards = d.cards[:0]
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards = append(d.cards, NewCard(suit, rank))
		}
	}
}

// Shuffle randomizes the order of cards in the deck
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal removes and returns the top card from the deck
func (d *Deck) Deal() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, true
}

// DealN deals exactly n cards from the deck. Requesting more cards than
// remain is an error, never a silent truncation.
func (d *Deck) DealN(n int) ([]Card, error) {
	if n < 0 {
		return nil, fmt.Errorf("deal %d cards: negative count", n)
	}
	if n > len(d.cards) {
		return nil, fmt.Errorf("deal %d cards: only %d remaining", n, len(d.cards))
	}
	cards := make([]Card, n)
	copy(cards, d.cards[:n])
	d.cards = d.cards[n:]
	return cards, nil
}

// CardsRemaining returns the number of cards left in the deck
func (d *Deck) CardsRemaining() int {
	return len(d.cards)
}

// IsEmpty returns true if the deck has no cards left
func (d *Deck) IsEmpty() bool {
	return len(d.cards) == 0
}

// Reset restores the deck to a full 52-card deck and shuffles it
func (d *Deck) Reset() {
	d.fill()
	d.Shuffle()
}
