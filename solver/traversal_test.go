package solver

import (
	rand "math/rand/v2"
	"testing"

	"github.com/kevsman/pokerplayer-sub002/internal/abstraction"
	"github.com/kevsman/pokerplayer-sub002/internal/deck"
	"github.com/kevsman/pokerplayer-sub002/internal/equity"
	"github.com/kevsman/pokerplayer-sub002/internal/game"
	"github.com/kevsman/pokerplayer-sub002/internal/randutil"
)

// stubOracle pins every hand's estimated strength so traversal tests run
// without Monte Carlo work.
type stubOracle struct{ win float64 }

func (o stubOracle) Estimate(hole, board []deck.Card, opponents, samples int, rng *rand.Rand) (equity.Result, error) {
	return equity.Result{WinProb: o.win, Equity: o.win, Samples: samples}, nil
}

func newTestTrainer(t *testing.T, cfg TrainingConfig) *Trainer {
	t.Helper()
	bucketer, err := abstraction.NewHandBucketer(stubOracle{win: 0.5}, []float64{1.0}, 1, cfg.Seed)
	if err != nil {
		t.Fatalf("new bucketer: %v", err)
	}
	trainer, err := NewTrainer(game.DefaultRules(), cfg, Dependencies{Bucketer: bucketer})
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}
	return trainer
}

func TestTraverseCutsRepeatedState(t *testing.T) {
	cfg := DefaultTrainingConfig()
	cfg.Seed = 11
	trainer := newTestTrainer(t, cfg)

	rng := randutil.New(5)
	st, err := game.NewState(trainer.rules, 0, rng)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}

	stats := TraversalStats{}
	tctx := &traversalContext{
		target:  st.Actor,
		sampler: rng,
		stats:   &stats,
		onPath:  map[string]struct{}{st.Fingerprint(): {}},
	}

	payoffs, err := trainer.traverse(tctx, st, 0, 1, 1)
	if err != nil {
		t.Fatalf("traverse: %v", err)
	}
	for seat, v := range payoffs {
		if v != 0 {
			t.Fatalf("expected zero payoff for seat %d, got %v", seat, v)
		}
	}
	if got := trainer.cycleCutoffs.Load(); got != 1 {
		t.Fatalf("expected one cutoff, got %d", got)
	}
	if len(tctx.pending) != 0 {
		t.Fatalf("expected no pending updates, got %d", len(tctx.pending))
	}
}

func TestTraverseDepthCapCountsCutoffs(t *testing.T) {
	cfg := DefaultTrainingConfig()
	cfg.Seed = 9
	cfg.MaxDepth = 1
	trainer := newTestTrainer(t, cfg)

	rng := randutil.New(9)
	st, err := game.NewState(trainer.rules, 0, rng)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}

	tctx := &traversalContext{
		target:  st.Actor,
		sampler: rng,
		stats:   &TraversalStats{},
		onPath:  make(map[string]struct{}),
	}

	if _, err := trainer.traverse(tctx, st, 0, 1, 1); err != nil {
		t.Fatalf("traverse: %v", err)
	}
	if trainer.cycleCutoffs.Load() == 0 {
		t.Fatalf("expected the depth cap to cut at least one branch")
	}
	if len(tctx.pending) != 1 {
		t.Fatalf("expected one pending update for the root decision, got %d", len(tctx.pending))
	}
}

func TestTraverseCollectsTargetUpdates(t *testing.T) {
	cfg := DefaultTrainingConfig()
	cfg.Seed = 21
	trainer := newTestTrainer(t, cfg)

	rng := randutil.New(21)
	st, err := game.NewState(trainer.rules, 0, rng)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}

	tctx := &traversalContext{
		target:  st.Actor,
		sampler: rng,
		stats:   &TraversalStats{},
		onPath:  make(map[string]struct{}),
	}

	if _, err := trainer.traverse(tctx, st, 0, 1, 1); err != nil {
		t.Fatalf("traverse: %v", err)
	}
	if len(tctx.pending) == 0 {
		t.Fatalf("expected pending updates for the target's decisions")
	}
	for _, p := range tctx.pending {
		n := len(p.update.Strategy)
		if len(p.update.Utilities) != n || len(p.update.Regrets) != n || len(p.update.StrategySums) != n {
			t.Fatalf("vector lengths disagree for %s", p.update.Key)
		}
		if p.update.OwnReach <= 0 || p.update.OwnReach > 1 {
			t.Fatalf("own reach %v out of range for %s", p.update.OwnReach, p.update.Key)
		}
		if p.update.OpponentReach <= 0 || p.update.OpponentReach > 1 {
			t.Fatalf("opponent reach %v out of range for %s", p.update.OpponentReach, p.update.Key)
		}
		if _, err := abstraction.ParseInfoSetKey(p.update.Key); err != nil {
			t.Fatalf("pending key %q does not parse: %v", p.update.Key, err)
		}
	}
}

func TestSortedByNameCanonicalOrder(t *testing.T) {
	sorted := sortedByName([]game.Action{game.Raise, game.Fold, game.Call})
	names := game.ActionNames(sorted)
	want := []string{"call", "fold", "raise"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, names)
		}
	}
}

func TestSampleStrategyIndexFollowsStrategy(t *testing.T) {
	rng := randutil.New(3)
	for i := 0; i < 50; i++ {
		idx, prob := sampleStrategyIndex([]float64{0, 1, 0}, rng)
		if idx != 1 || prob != 1 {
			t.Fatalf("expected index 1 with probability 1, got %d %v", idx, prob)
		}
	}
}

func TestSampleStrategyIndexUniformFallback(t *testing.T) {
	rng := randutil.New(3)
	counts := make([]int, 3)
	for i := 0; i < 300; i++ {
		idx, prob := sampleStrategyIndex([]float64{0, 0, 0}, rng)
		if abs(prob-1.0/3.0) > 1e-9 {
			t.Fatalf("expected uniform probability, got %v", prob)
		}
		counts[idx]++
	}
	for i, c := range counts {
		if c == 0 {
			t.Fatalf("index %d never sampled", i)
		}
	}
}
