package evaluator

import (
	"fmt"

	poker "github.com/paulhankin/poker"

	"github.com/kevsman/pokerplayer-sub002/internal/deck"
)

// PaulHankin evaluates hands through github.com/paulhankin/poker, a
// table-driven 5/7-card evaluator. Scores are int16 where bigger is better
// and ties compare exactly equal, which is all the trainer needs.
type PaulHankin struct{}

// NewPaulHankin returns the default hand evaluator
func NewPaulHankin() *PaulHankin {
	return &PaulHankin{}
}

// Evaluate ranks the best five-card hand from hole+board
func (e *PaulHankin) Evaluate(hole, board []deck.Card) (Rank, error) {
	total := len(hole) + len(board)
	if total < 5 || total > 7 {
		return Rank{}, fmt.Errorf("evaluate %d cards: want 5 to 7", total)
	}

	combined := make([]deck.Card, 0, total)
	combined = append(combined, hole...)
	combined = append(combined, board...)
	if _, err := deck.NewCardSet(combined...); err != nil {
		return Rank{}, fmt.Errorf("evaluate: %w", err)
	}

	cards := make([]poker.Card, total)
	for i, c := range combined {
		lc, err := toLibCard(c)
		if err != nil {
			return Rank{}, fmt.Errorf("evaluate: %w", err)
		}
		cards[i] = lc
	}

	var value int16
	switch total {
	case 7:
		var a7 [7]poker.Card
		copy(a7[:], cards)
		value = poker.Eval7(&a7)
	case 5:
		var a5 [5]poker.Card
		copy(a5[:], cards)
		value = poker.Eval5(&a5)
	default:
		value = bestFiveOfSix(cards)
	}

	desc := ""
	if d, err := poker.Describe(cards); err == nil {
		desc = d
	}

	return Rank{Value: value, Description: desc}, nil
}

// Compare returns -1, 0 or 1 as a ranks below, ties or beats b
func (e *PaulHankin) Compare(a, b Rank) int {
	return CompareValues(a.Value, b.Value)
}

// bestFiveOfSix scores a 6-card hand by evaluating every 5-card subset
func bestFiveOfSix(cards []poker.Card) int16 {
	var five [5]poker.Card
	best := int16(-1)
	for skip := 0; skip < 6; skip++ {
		k := 0
		for i, c := range cards {
			if i == skip {
				continue
			}
			five[k] = c
			k++
		}
		if score := poker.Eval5(&five); score > best {
			best = score
		}
	}
	return best
}

// toLibCard converts to the library representation. The library ranks aces
// as 1 while we rank them 14.
func toLibCard(c deck.Card) (poker.Card, error) {
	var zero poker.Card

	var s poker.Suit
	switch c.Suit {
	case deck.Clubs:
		s = poker.Club
	case deck.Diamonds:
		s = poker.Diamond
	case deck.Hearts:
		s = poker.Heart
	case deck.Spades:
		s = poker.Spade
	default:
		return zero, fmt.Errorf("invalid suit in card %v", c)
	}

	var r poker.Rank
	switch {
	case c.Rank == deck.Ace:
		r = poker.Rank(1)
	case c.Rank >= deck.Two && c.Rank <= deck.King:
		r = poker.Rank(c.Rank)
	default:
		return zero, fmt.Errorf("invalid rank in card %v", c)
	}

	card, err := poker.MakeCard(s, r)
	if err != nil {
		return zero, fmt.Errorf("make card %s: %w", c, err)
	}
	return card, nil
}
