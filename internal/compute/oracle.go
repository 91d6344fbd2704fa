package compute

import (
	"context"
	"fmt"
	rand "math/rand/v2"

	"github.com/kevsman/pokerplayer-sub002/internal/deck"
	"github.com/kevsman/pokerplayer-sub002/internal/equity"
)

// Oracle adapts a Backend to equity.Oracle so bucket estimates run on
// whichever backend training selected.
type Oracle struct {
	ctx     context.Context
	backend Backend
}

// NewOracle wraps backend as an equity oracle. The context bounds every
// estimate issued through the adapter.
func NewOracle(ctx context.Context, backend Backend) *Oracle {
	return &Oracle{ctx: ctx, backend: backend}
}

// Estimate implements equity.Oracle. The caller's random stream seeds the
// backend batch, keeping fixed-seed runs reproducible across backends.
func (o *Oracle) Estimate(hole, board []deck.Card, opponents, samples int, rng *rand.Rand) (equity.Result, error) {
	req := EquityRequest{
		Hands:     [][]deck.Card{hole},
		Board:     board,
		Opponents: opponents,
		Samples:   samples,
		Seed:      rng.Int64(),
	}
	results, err := o.backend.BatchEquity(o.ctx, req)
	if err != nil {
		return equity.Result{}, err
	}
	if len(results) != 1 {
		return equity.Result{}, fmt.Errorf("compute: backend returned %d results for one hand", len(results))
	}
	return results[0], nil
}
