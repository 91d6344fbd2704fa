// Package runtime exposes trained strategies to a live decision component:
// strategy table lookups when the situation was learned during training,
// an equity-shaped fallback when it was not.
package runtime

import (
	"errors"
	"fmt"
	"math"
	rand "math/rand/v2"

	"github.com/kevsman/pokerplayer-sub002/internal/abstraction"
	"github.com/kevsman/pokerplayer-sub002/internal/deck"
	"github.com/kevsman/pokerplayer-sub002/internal/equity"
	"github.com/kevsman/pokerplayer-sub002/solver"
)

// DefaultFallbackSamples is the Monte Carlo budget for a single live
// decision when no trained entry covers the situation.
const DefaultFallbackSamples = 200

// minActionWeight floors every fallback weight. Only folding when a free
// check is available drops to zero.
const minActionWeight = 0.05

// Policy answers action-weight queries from a loaded strategy table,
// falling back to a live equity estimate for uncovered situations.
type Policy struct {
	table    *solver.StrategyTable
	bucketer *abstraction.HandBucketer
	oracle   equity.Oracle
	samples  int
}

// NewPolicy wraps a strategy table. The oracle drives both the hand
// bucketer, rebuilt from the table's abstraction metadata so lookups
// bucket hands exactly as training did, and the live fallback estimates.
func NewPolicy(table *solver.StrategyTable, oracle equity.Oracle) (*Policy, error) {
	if table == nil {
		return nil, errors.New("runtime: nil strategy table")
	}
	if oracle == nil {
		return nil, errors.New("runtime: nil oracle")
	}
	meta := table.Abstraction
	if meta.BoardBuckets != abstraction.BoardBucketCount {
		return nil, fmt.Errorf("runtime: table uses %d board buckets, this build maps %d",
			meta.BoardBuckets, abstraction.BoardBucketCount)
	}
	bucketer, err := abstraction.NewHandBucketer(oracle, meta.HandCeilings, meta.BucketSamples, meta.BucketSeed)
	if err != nil {
		return nil, fmt.Errorf("runtime: table abstraction: %w", err)
	}
	return &Policy{
		table:    table,
		bucketer: bucketer,
		oracle:   oracle,
		samples:  DefaultFallbackSamples,
	}, nil
}

// Load reads a strategy table from disk and wraps it.
func Load(path string, oracle equity.Oracle) (*Policy, error) {
	table, err := solver.LoadStrategyTable(path)
	if err != nil {
		return nil, err
	}
	return NewPolicy(table, oracle)
}

// Table returns the underlying strategy table.
func (p *Policy) Table() *solver.StrategyTable {
	return p.table
}

// Lookup returns the trained distribution for an already-bucketed
// situation, if one was learned.
func (p *Policy) Lookup(street, handBucket, boardBucket int, actions []string) (map[string]float64, bool) {
	return p.table.Lookup(street, handBucket, boardBucket, actions)
}

// Weights maps a concrete situation to action weights: the trained row
// when the abstraction covers it, otherwise a strength-shaped fallback
// from a live equity estimate. The returned map always sums to one.
func (p *Policy) Weights(hole, community []deck.Card, street, opponents int, actions []string, rng *rand.Rand) (map[string]float64, error) {
	if len(actions) == 0 {
		return nil, errors.New("runtime: no actions to weigh")
	}
	if opponents < 1 {
		return nil, fmt.Errorf("runtime: opponents must be positive, got %d", opponents)
	}
	handBucket, err := p.bucketer.BucketHand(hole, community, street, opponents)
	if err != nil {
		return nil, err
	}
	boardBucket := abstraction.BucketBoard(community, street)
	if weights, ok := p.Lookup(street, handBucket, boardBucket, actions); ok {
		return weights, nil
	}
	return p.fallbackWeights(hole, community, street, opponents, actions, rng)
}

// fallbackWeights shapes a distribution from hand strength alone: strong
// hands lean toward raising, weak hands toward folding, middling hands
// toward the passive line.
func (p *Policy) fallbackWeights(hole, community []deck.Card, street, opponents int, actions []string, rng *rand.Rand) (map[string]float64, error) {
	var strength float64
	if street == 0 {
		if len(hole) != 2 {
			return nil, fmt.Errorf("runtime: need 2 hole cards, got %d", len(hole))
		}
		strength = deck.PreflopPercentile(hole[0], hole[1])
	} else {
		res, err := p.oracle.Estimate(hole, community, opponents, p.samples, rng)
		if err != nil {
			return nil, fmt.Errorf("runtime: fallback estimate: %w", err)
		}
		strength = res.WinProb
	}

	canCheck := false
	for _, a := range actions {
		if a == "check" {
			canCheck = true
		}
	}

	weights := make(map[string]float64, len(actions))
	total := 0.0
	for _, a := range actions {
		w := 1 - math.Abs(strength-actionScore(a))
		if w < minActionWeight {
			w = minActionWeight
		}
		if a == "fold" && canCheck {
			w = 0
		}
		weights[a] = w
		total += w
	}
	for a := range weights {
		weights[a] /= total
	}
	return weights, nil
}

// actionScore places each action on the same 0..1 axis as hand strength.
func actionScore(action string) float64 {
	switch action {
	case "fold":
		return 0
	case "check", "call":
		return 0.5
	case "raise":
		return 1
	default:
		return 0.5
	}
}
