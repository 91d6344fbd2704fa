// Package equity estimates win/tie probabilities for a hold'em hand by
// Monte Carlo simulation over the unseen portion of the deck.
package equity

import (
	"errors"
	rand "math/rand/v2"

	"github.com/kevsman/pokerplayer-sub002/internal/deck"
)

// ErrInsufficientData reports that no sample could be completed, usually
// because the remaining deck cannot cover the requested opponents and board.
// It is deliberately distinct from a zero-equity result: a hand that always
// loses still produces valid samples.
var ErrInsufficientData = errors.New("equity: no valid samples")

// Result is an equity estimate. Equity is WinProb plus half TieProb, the
// expected share of the pot. Samples counts the simulations that completed;
// skipped samples are excluded from the probabilities.
type Result struct {
	WinProb float64
	TieProb float64
	Equity  float64
	Samples int
}

// Oracle estimates hand equity against a number of opponents holding random
// cards. Implementations are stateless; the caller supplies the random
// source so runs stay reproducible.
type Oracle interface {
	// Estimate simulates the hand to completion `samples` times. hole must
	// be exactly two cards, board at most five, all distinct. Samples that
	// cannot be dealt from the remaining deck are skipped; if every sample
	// is skipped the zero Result is returned alongside ErrInsufficientData.
	Estimate(hole, board []deck.Card, opponents, samples int, rng *rand.Rand) (Result, error)
}

func newResult(wins, ties, valid int) Result {
	if valid == 0 {
		return Result{}
	}
	win := float64(wins) / float64(valid)
	tie := float64(ties) / float64(valid)
	return Result{
		WinProb: win,
		TieProb: tie,
		Equity:  win + tie/2,
		Samples: valid,
	}
}
