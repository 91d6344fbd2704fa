// Package evaluator defines the hand-evaluation oracle the training engine
// consumes. The engine never ranks hands itself; it hands completed boards to
// an Evaluator and works with the opaque, totally ordered ranks that come
// back.
package evaluator

import (
	"github.com/kevsman/pokerplayer-sub002/internal/deck"
)

// Rank is an evaluated poker hand. Value is comparable only against ranks
// produced by the same Evaluator: a larger Value beats a smaller one, and
// equal Values are exact ties (kickers included, the ordering is total).
type Rank struct {
	Value       int16
	Description string
}

// Evaluator ranks the best five-card hand available from hole cards plus
// board. Implementations must reject malformed input (wrong card counts,
// duplicates) rather than guess.
type Evaluator interface {
	// Evaluate ranks hole+board. The combined cards must number 5, 6 or 7
	// and contain no duplicates.
	Evaluate(hole, board []deck.Card) (Rank, error)

	// Compare returns -1, 0 or 1 as a ranks below, ties or beats b.
	Compare(a, b Rank) int
}

// CompareValues orders two rank values without an Evaluator at hand.
func CompareValues(a, b int16) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
