package solver

import (
	rand "math/rand/v2"
	"sort"

	"github.com/kevsman/pokerplayer-sub002/internal/abstraction"
	"github.com/kevsman/pokerplayer-sub002/internal/compute"
	"github.com/kevsman/pokerplayer-sub002/internal/game"
)

// traversalContext carries the per-target state of one external-sampling
// pass over a dealt hand.
type traversalContext struct {
	target  int
	sampler *rand.Rand
	stats   *TraversalStats
	onPath  map[string]struct{}
	pending []pendingUpdate
}

// pendingUpdate pairs a node with the update submitted for it, so the
// batched result can be folded back in against the submitted base.
type pendingUpdate struct {
	node   *Node
	update compute.RegretUpdate
}

// traverse walks the betting tree for one target player and returns the
// full payoff vector of the subtree. The target explores every legal
// action; every other seat plays one action sampled from its current
// strategy. ownReach is the probability the target's strategy assigns to
// the path so far, othersReach the probability the sampled opponents
// assigned to it.
func (t *Trainer) traverse(ctx *traversalContext, st *game.State, depth int, ownReach, othersReach float64) ([]float64, error) {
	ctx.stats.NodesVisited++
	if depth > ctx.stats.MaxDepth {
		ctx.stats.MaxDepth = depth
	}

	if st.IsTerminal() {
		ctx.stats.TerminalNodes++
		return st.Payoffs(t.eval)
	}

	// Safeguards. A betting state revisited on the current path, or a
	// branch past the depth or history caps, scores zero for everyone and
	// is counted; the traversal always terminates.
	if depth >= t.cfg.MaxDepth || len(st.History) >= t.cfg.MaxHistory {
		t.cycleCutoffs.Add(1)
		return make([]float64, len(st.Players)), nil
	}
	fp := st.Fingerprint()
	if _, ok := ctx.onPath[fp]; ok {
		t.cycleCutoffs.Add(1)
		return make([]float64, len(st.Players)), nil
	}
	ctx.onPath[fp] = struct{}{}
	defer delete(ctx.onPath, fp)

	actions := sortedByName(st.LegalActions())
	names := game.ActionNames(actions)

	street := int(st.Street)
	hole := st.Players[st.Actor].Hole
	community := st.Community()
	handBucket, err := t.bucketer.BucketHand(hole, community, street, st.ActiveCount()-1)
	if err != nil {
		return nil, err
	}
	key := abstraction.NewInfoSetKey(street, handBucket, abstraction.BucketBoard(community, street), st.History, names)

	node, err := t.nodes.Get(key)
	if err != nil {
		return nil, err
	}
	strategy := node.Strategy()

	if st.Actor == ctx.target {
		utilities := make([]float64, len(actions))
		expected := make([]float64, len(st.Players))
		for i, action := range actions {
			child, err := st.Apply(action)
			if err != nil {
				return nil, err
			}
			payoffs, err := t.traverse(ctx, child, depth+1, ownReach*strategy[i], othersReach)
			if err != nil {
				return nil, err
			}
			utilities[i] = payoffs[ctx.target]
			for p, v := range payoffs {
				expected[p] += strategy[i] * v
			}
		}

		regrets, strategySums := node.accumulators()
		ctx.pending = append(ctx.pending, pendingUpdate{node: node, update: compute.RegretUpdate{
			Key:           key.String(),
			Regrets:       regrets,
			StrategySums:  strategySums,
			Strategy:      strategy,
			Utilities:     utilities,
			OwnReach:      ownReach,
			OpponentReach: othersReach,
		}})
		return expected, nil
	}

	idx, prob := sampleStrategyIndex(strategy, ctx.sampler)
	child, err := st.Apply(actions[idx])
	if err != nil {
		return nil, err
	}
	return t.traverse(ctx, child, depth+1, ownReach, othersReach*prob)
}

// sortedByName puts legal actions in the key's canonical order so strategy
// vectors line up with the node's action list.
func sortedByName(actions []game.Action) []game.Action {
	out := make([]game.Action, len(actions))
	copy(out, actions)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// sampleStrategyIndex draws an action index proportionally to the strategy
// vector, returning the index and the probability it was drawn with.
// Degenerate vectors fall back to a uniform draw.
func sampleStrategyIndex(strategy []float64, rng *rand.Rand) (int, float64) {
	total := 0.0
	for _, v := range strategy {
		if v > 0 {
			total += v
		}
	}
	if total <= 0 {
		idx := rng.IntN(len(strategy))
		return idx, 1.0 / float64(len(strategy))
	}
	r := rng.Float64() * total
	acc := 0.0
	for i, v := range strategy {
		if v <= 0 {
			continue
		}
		acc += v
		if r <= acc {
			return i, v / total
		}
	}
	return len(strategy) - 1, strategy[len(strategy)-1] / total
}
