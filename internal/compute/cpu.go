package compute

import (
	"context"
	"errors"
	"fmt"

	"github.com/kevsman/pokerplayer-sub002/internal/equity"
	"github.com/kevsman/pokerplayer-sub002/internal/randutil"
)

// CPUBackend runs every batch in-process on the calling goroutine. It is
// the reference implementation that remote backends are validated against.
type CPUBackend struct {
	oracle equity.Oracle
}

// NewCPU creates the in-process backend around the given equity oracle.
func NewCPU(oracle equity.Oracle) *CPUBackend {
	return &CPUBackend{oracle: oracle}
}

// Name implements Backend
func (b *CPUBackend) Name() string { return "cpu" }

// BatchEquity implements Backend
func (b *CPUBackend) BatchEquity(ctx context.Context, req EquityRequest) ([]equity.Result, error) {
	results := make([]equity.Result, len(req.Hands))
	for i, hole := range req.Hands {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng := randutil.New(randutil.Derive(req.Seed, uint64(i)))
		res, err := b.oracle.Estimate(hole, req.Board, req.Opponents, req.Samples, rng)
		if err != nil {
			return nil, fmt.Errorf("compute: equity for hand %d: %w", i, err)
		}
		results[i] = res
	}
	return results, nil
}

// BatchRegretUpdate implements Backend
func (b *CPUBackend) BatchRegretUpdate(ctx context.Context, updates []RegretUpdate) ([]RegretResult, error) {
	results := make([]RegretResult, len(updates))
	for i, u := range updates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := applyRegretUpdate(u)
		if err != nil {
			return nil, fmt.Errorf("compute: update %d (%s): %w", i, u.Key, err)
		}
		results[i] = res
	}
	return results, nil
}

// Close implements Backend
func (b *CPUBackend) Close() error { return nil }

// applyRegretUpdate advances one node's accumulators: each regret moves by
// opponent reach times the action's edge over the node expectation, each
// strategy sum by own reach times the probability the strategy played it.
func applyRegretUpdate(u RegretUpdate) (RegretResult, error) {
	n := len(u.Strategy)
	if n == 0 {
		return RegretResult{}, errors.New("empty strategy vector")
	}
	if len(u.Utilities) != n || len(u.Regrets) != n || len(u.StrategySums) != n {
		return RegretResult{}, fmt.Errorf("action vectors disagree: strategy %d, utilities %d, regrets %d, strategy sums %d",
			n, len(u.Utilities), len(u.Regrets), len(u.StrategySums))
	}

	var nodeUtility float64
	for i, p := range u.Strategy {
		nodeUtility += p * u.Utilities[i]
	}

	out := RegretResult{
		Key:          u.Key,
		Regrets:      make([]float64, n),
		StrategySums: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		out.Regrets[i] = u.Regrets[i] + u.OpponentReach*(u.Utilities[i]-nodeUtility)
		out.StrategySums[i] = u.StrategySums[i] + u.OwnReach*u.Strategy[i]
	}
	return out, nil
}
