package equity

import (
	"context"
	"fmt"
	rand "math/rand/v2"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kevsman/pokerplayer-sub002/internal/deck"
	"github.com/kevsman/pokerplayer-sub002/internal/evaluator"
	"github.com/kevsman/pokerplayer-sub002/internal/randutil"
)

// parallelThreshold is the sample count above which the work is split across
// workers; below it the goroutine overhead outweighs the simulation cost.
const parallelThreshold = 500

// maxWorkers caps the worker pool; returns diminish past this.
const maxWorkers = 8

// scratch pool for the per-sample candidate shuffles
var candidatesPool = sync.Pool{
	New: func() any {
		s := make([]deck.Card, 0, 52)
		return &s
	},
}

// MonteCarlo is the CPU reference Oracle. Each sample deals the opponents
// and the board completion without replacement from the unseen deck and
// scores the showdown through the consumed evaluator.
type MonteCarlo struct {
	eval evaluator.Evaluator
}

// NewMonteCarlo creates an oracle backed by the given hand evaluator
func NewMonteCarlo(eval evaluator.Evaluator) *MonteCarlo {
	return &MonteCarlo{eval: eval}
}

// Estimate implements Oracle
func (mc *MonteCarlo) Estimate(hole, board []deck.Card, opponents, samples int, rng *rand.Rand) (Result, error) {
	if err := validateInput(hole, board, opponents, samples); err != nil {
		return Result{}, err
	}

	available, err := unseenCards(hole, board)
	if err != nil {
		return Result{}, err
	}

	var wins, ties, valid int
	if samples >= parallelThreshold {
		wins, ties, valid, err = mc.runParallel(hole, board, available, opponents, samples, rng)
	} else {
		wins, ties, valid, err = mc.runWorker(hole, board, available, opponents, samples, rng)
	}
	if err != nil {
		return Result{}, err
	}
	if valid == 0 {
		return Result{}, ErrInsufficientData
	}
	return newResult(wins, ties, valid), nil
}

func validateInput(hole, board []deck.Card, opponents, samples int) error {
	if len(hole) != 2 {
		return fmt.Errorf("equity: hero needs exactly 2 hole cards, got %d", len(hole))
	}
	if len(board) > 5 {
		return fmt.Errorf("equity: board holds at most 5 cards, got %d", len(board))
	}
	if opponents < 1 {
		return fmt.Errorf("equity: need at least one opponent, got %d", opponents)
	}
	if samples < 1 {
		return fmt.Errorf("equity: need at least one sample, got %d", samples)
	}
	return nil
}

// unseenCards returns the deck minus hero and board, verifying no duplicates
func unseenCards(hole, board []deck.Card) ([]deck.Card, error) {
	known := make([]deck.Card, 0, len(hole)+len(board))
	known = append(known, hole...)
	known = append(known, board...)

	set, err := deck.NewCardSet(known...)
	if err != nil {
		return nil, fmt.Errorf("equity: %w", err)
	}

	available := make([]deck.Card, 0, 52-len(known))
	for suit := deck.Spades; suit <= deck.Clubs; suit++ {
		for rank := deck.Two; rank <= deck.Ace; rank++ {
			c := deck.NewCard(suit, rank)
			if !set.Contains(c) {
				available = append(available, c)
			}
		}
	}
	return available, nil
}

// runWorker simulates sequentially on the calling goroutine
func (mc *MonteCarlo) runWorker(hole, board, available []deck.Card, opponents, samples int, rng *rand.Rand) (wins, ties, valid int, err error) {
	boardNeeded := 5 - len(board)
	dealNeeded := 2*opponents + boardNeeded

	finalBoard := make([]deck.Card, 5)
	copy(finalBoard, board)
	oppHole := make([]deck.Card, 2)

	scratchPtr := candidatesPool.Get().(*[]deck.Card)
	scratch := append((*scratchPtr)[:0], available...)
	defer func() {
		*scratchPtr = scratch
		candidatesPool.Put(scratchPtr)
	}()

	for i := 0; i < samples; i++ {
		if dealNeeded > len(scratch) {
			continue // not enough unseen cards; skip, do not count
		}

		// Partial Fisher-Yates: move dealNeeded random cards to the front
		for j := 0; j < dealNeeded; j++ {
			k := j + rng.IntN(len(scratch)-j)
			scratch[j], scratch[k] = scratch[k], scratch[j]
		}

		copy(finalBoard[len(board):], scratch[2*opponents:dealNeeded])

		heroRank, evalErr := mc.eval.Evaluate(hole, finalBoard)
		if evalErr != nil {
			return 0, 0, 0, fmt.Errorf("equity: hero evaluation: %w", evalErr)
		}

		// Hero wins only by beating every opponent; a tie with the best
		// opponent splits the pot. outcome is the minimum comparison.
		outcome := 1
		for o := 0; o < opponents; o++ {
			copy(oppHole, scratch[2*o:2*o+2])
			oppRank, evalErr := mc.eval.Evaluate(oppHole, finalBoard)
			if evalErr != nil {
				return 0, 0, 0, fmt.Errorf("equity: opponent evaluation: %w", evalErr)
			}
			if c := mc.eval.Compare(heroRank, oppRank); c < outcome {
				outcome = c
			}
			if outcome == -1 {
				break
			}
		}

		switch outcome {
		case 1:
			wins++
		case 0:
			ties++
		}
		valid++
	}
	return wins, ties, valid, nil
}

// runParallel fans the samples out over an errgroup worker pool. Each worker
// draws from an independent RNG seeded by the caller's stream so results
// stay reproducible for a fixed seed and worker count.
func (mc *MonteCarlo) runParallel(hole, board, available []deck.Card, opponents, samples int, rng *rand.Rand) (int, int, int, error) {
	workers := runtime.NumCPU()
	if workers > maxWorkers {
		workers = maxWorkers
	}
	if workers < 1 {
		workers = 1
	}

	type tally struct{ wins, ties, valid int }

	perWorker := samples / workers
	remainder := samples % workers
	results := make([]tally, workers)

	g, _ := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		share := perWorker
		if w < remainder {
			share++
		}
		seed := rng.Int64()
		idx := w
		g.Go(func() error {
			workerRng := randutil.New(seed)
			wins, ties, valid, err := mc.runWorker(hole, board, available, opponents, share, workerRng)
			if err != nil {
				return err
			}
			results[idx] = tally{wins, ties, valid}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, 0, err
	}

	var wins, ties, valid int
	for _, r := range results {
		wins += r.wins
		ties += r.ties
		valid += r.valid
	}
	return wins, ties, valid, nil
}
