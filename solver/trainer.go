// Package solver trains approximate-equilibrium betting strategies for the
// abstracted hold'em game with external-sampling Monte Carlo CFR. A Trainer
// owns the node table, traverses sampled deals, batches regret updates
// through a compute backend, and exports the averaged strategies.
package solver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kevsman/pokerplayer-sub002/internal/abstraction"
	"github.com/kevsman/pokerplayer-sub002/internal/compute"
	"github.com/kevsman/pokerplayer-sub002/internal/equity"
	"github.com/kevsman/pokerplayer-sub002/internal/evaluator"
	"github.com/kevsman/pokerplayer-sub002/internal/game"
	"github.com/kevsman/pokerplayer-sub002/internal/randutil"
)

// TraversalStats captures instrumentation for one training iteration.
type TraversalStats struct {
	NodesVisited  int64         `json:"nodes_visited"`
	TerminalNodes int64         `json:"terminal_nodes"`
	MaxDepth      int           `json:"max_depth"`
	IterationTime time.Duration `json:"iteration_time"`
}

// Progress is emitted periodically during a run. CheckpointErr carries a
// failed checkpoint or export write; the run continues and retries at the
// next checkpoint boundary.
type Progress struct {
	Iteration     int
	NodeCount     int
	Stats         TraversalStats
	CheckpointErr error
}

// Dependencies are the pluggable collaborators of a Trainer. Nil fields
// select the defaults: a PaulHankin evaluator, an in-process CPU backend
// over that evaluator, and a bucketer with the default abstraction seeded
// from the training seed.
type Dependencies struct {
	Bucketer  *abstraction.HandBucketer
	Evaluator evaluator.Evaluator
	Backend   compute.Backend
}

// Trainer runs external-sampling MCCFR over the abstracted game.
type Trainer struct {
	rules    game.Rules
	cfg      TrainingConfig
	bucketer *abstraction.HandBucketer
	eval     evaluator.Evaluator
	backend  compute.Backend
	nodes    *NodeTable

	iteration atomic.Int64
	statsMu   sync.Mutex
	stats     TraversalStats

	cycleCutoffs      atomic.Int64
	persistenceErrors atomic.Int64

	runID     string
	startedAt time.Time
}

// NewTrainer constructs a trainer for the given game rules and training
// configuration.
func NewTrainer(rules game.Rules, cfg TrainingConfig, deps Dependencies) (*Trainer, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	eval := deps.Evaluator
	if eval == nil {
		eval = evaluator.NewPaulHankin()
	}
	backend := deps.Backend
	if backend == nil {
		backend = compute.NewCPU(equity.NewMonteCarlo(eval))
	}
	bucketer := deps.Bucketer
	if bucketer == nil {
		var err error
		bucketer, err = abstraction.NewHandBucketer(
			compute.NewOracle(context.Background(), backend),
			abstraction.DefaultHandCeilings, abstraction.DefaultBucketSamples, cfg.Seed)
		if err != nil {
			return nil, err
		}
	}

	return &Trainer{
		rules:     rules,
		cfg:       cfg,
		bucketer:  bucketer,
		eval:      eval,
		backend:   backend,
		nodes:     NewNodeTable(),
		runID:     uuid.NewString(),
		startedAt: time.Now(),
	}, nil
}

// Run executes the configured number of iterations. The progress callback,
// when non-nil, fires on the configured cadence, on every failed
// checkpoint, and once at the end. Cancellation is honored between
// iterations: the running iteration finishes, its updates land, and a
// final checkpoint is written when checkpoints are configured.
func (t *Trainer) Run(ctx context.Context, progress func(Progress)) error {
	batch := t.cfg.Iterations / 100
	if batch == 0 {
		batch = 1
	}
	if t.cfg.ProgressEvery > 0 {
		batch = t.cfg.ProgressEvery
	}

	for i := int(t.iteration.Load()); i < t.cfg.Iterations; i++ {
		select {
		case <-ctx.Done():
			if t.checkpointsEnabled() {
				if err := t.SaveCheckpoint(t.cfg.CheckpointPath); err != nil {
					t.persistenceErrors.Add(1)
				}
			}
			return ctx.Err()
		default:
		}

		start := time.Now()
		stats, err := t.runIteration(i)
		if err != nil {
			return err
		}
		stats.IterationTime = time.Since(start)
		t.setStats(stats)
		iter := int(t.iteration.Add(1))

		var checkpointErr error
		if t.checkpointsEnabled() && iter%t.cfg.CheckpointEvery == 0 {
			checkpointErr = t.checkpoint()
		}

		if progress != nil && (iter%batch == 0 || checkpointErr != nil) {
			progress(Progress{Iteration: iter, NodeCount: t.nodes.Size(), Stats: stats, CheckpointErr: checkpointErr})
		}
	}

	var checkpointErr error
	if t.checkpointsEnabled() {
		checkpointErr = t.checkpoint()
	}
	if progress != nil {
		progress(Progress{Iteration: int(t.iteration.Load()), NodeCount: t.nodes.Size(), Stats: t.Stats(), CheckpointErr: checkpointErr})
	}
	return nil
}

// runIteration deals the iteration's hands and traverses each once per
// target seat. Every random stream in the iteration derives from the run
// seed and the iteration number, so iteration i produces the same deals
// and samples whether it runs fresh or after a checkpoint resume.
func (t *Trainer) runIteration(iter int) (TraversalStats, error) {
	parallel := t.cfg.ParallelTables
	iterSeed := randutil.Derive(t.cfg.Seed, uint64(iter))

	statsSlice := make([]TraversalStats, parallel)
	errs := make([]error, parallel)

	var wg sync.WaitGroup
	for tbl := 0; tbl < parallel; tbl++ {
		wg.Add(1)
		go func(tbl int) {
			defer wg.Done()
			errs[tbl] = t.runTable(randutil.Derive(iterSeed, uint64(tbl)), &statsSlice[tbl])
		}(tbl)
	}
	wg.Wait()

	aggregated := TraversalStats{}
	for tbl := 0; tbl < parallel; tbl++ {
		if errs[tbl] != nil {
			return TraversalStats{}, errs[tbl]
		}
		aggregated.NodesVisited += statsSlice[tbl].NodesVisited
		aggregated.TerminalNodes += statsSlice[tbl].TerminalNodes
		if statsSlice[tbl].MaxDepth > aggregated.MaxDepth {
			aggregated.MaxDepth = statsSlice[tbl].MaxDepth
		}
	}
	return aggregated, nil
}

// runTable deals one hand and traverses it for every target seat. The
// trainer's updates flush after each target so later targets play against
// the regrets the earlier ones just learned.
func (t *Trainer) runTable(seed int64, stats *TraversalStats) error {
	rng := randutil.New(seed)
	button := rng.IntN(t.rules.Players)
	st, err := game.NewState(t.rules, button, rng)
	if err != nil {
		return err
	}

	for target := 0; target < t.rules.Players; target++ {
		tctx := &traversalContext{
			target:  target,
			sampler: rng,
			stats:   stats,
			onPath:  make(map[string]struct{}),
		}
		if _, err := t.traverse(tctx, st, 0, 1.0, 1.0); err != nil {
			return err
		}
		if err := t.flushUpdates(tctx.pending); err != nil {
			return err
		}
	}
	return nil
}

// flushUpdates submits a traversal's accumulated updates as one batch and
// folds the returned sums back into the nodes as deltas against the
// submitted bases. Backend calls run on a background context; cancellation
// is honored at iteration boundaries so accumulated updates always land.
func (t *Trainer) flushUpdates(pending []pendingUpdate) error {
	if len(pending) == 0 {
		return nil
	}
	updates := make([]compute.RegretUpdate, len(pending))
	for i, p := range pending {
		updates[i] = p.update
	}

	results, err := t.backend.BatchRegretUpdate(context.Background(), updates)
	if err != nil {
		return err
	}
	if len(results) != len(pending) {
		return fmt.Errorf("solver: backend returned %d results for %d updates", len(results), len(pending))
	}

	for i, r := range results {
		p := pending[i]
		if len(r.Regrets) != len(p.update.Regrets) || len(r.StrategySums) != len(p.update.StrategySums) {
			return fmt.Errorf("solver: update %d (%s): result vector lengths changed", i, r.Key)
		}
		regretDelta := make([]float64, len(r.Regrets))
		for j := range regretDelta {
			regretDelta[j] = r.Regrets[j] - p.update.Regrets[j]
		}
		strategyDelta := make([]float64, len(r.StrategySums))
		for j := range strategyDelta {
			strategyDelta[j] = r.StrategySums[j] - p.update.StrategySums[j]
		}
		p.node.addDeltas(regretDelta, strategyDelta)
	}
	return nil
}

func (t *Trainer) checkpointsEnabled() bool {
	return t.cfg.CheckpointPath != "" && t.cfg.CheckpointEvery > 0
}

// checkpoint writes a snapshot, and the strategy table alongside it when
// configured. Failures are counted and surfaced through Progress; the next
// boundary retries.
func (t *Trainer) checkpoint() error {
	if err := t.SaveCheckpoint(t.cfg.CheckpointPath); err != nil {
		t.persistenceErrors.Add(1)
		return err
	}
	if t.cfg.ExportOnCheckpoint && t.cfg.ExportPath != "" {
		table, err := t.BuildStrategyTable()
		if err == nil {
			err = table.Save(t.cfg.ExportPath)
		}
		if err != nil {
			t.persistenceErrors.Add(1)
			return err
		}
	}
	return nil
}

func (t *Trainer) setStats(stats TraversalStats) {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	t.stats = stats
}

// Stats returns the most recent iteration's traversal statistics.
func (t *Trainer) Stats() TraversalStats {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.stats
}

// Iteration returns the number of completed iterations.
func (t *Trainer) Iteration() int64 {
	return t.iteration.Load()
}

// SetTotalIterations raises the run's iteration target, typically after
// resuming from a checkpoint. The target cannot drop below iterations
// already completed.
func (t *Trainer) SetTotalIterations(n int) error {
	current := int(t.iteration.Load())
	if n < current {
		return fmt.Errorf("solver: total iterations %d less than completed %d", n, current)
	}
	t.cfg.Iterations = n
	return nil
}

// TrainingConfig returns the effective configuration, defaults applied.
func (t *Trainer) TrainingConfig() TrainingConfig {
	return t.cfg
}

func (t *Trainer) SetProgressEvery(n int) {
	if n < 0 {
		n = 0
	}
	t.cfg.ProgressEvery = n
}

// RunID identifies this run in checkpoints, exports and logs. A resumed
// run keeps the ID of the run it continues.
func (t *Trainer) RunID() string {
	return t.runID
}

func (t *Trainer) abstractionMeta() AbstractionMeta {
	return AbstractionMeta{
		HandCeilings:  t.bucketer.Ceilings(),
		BucketSamples: t.bucketer.Samples(),
		BucketSeed:    t.bucketer.Seed(),
		BoardBuckets:  abstraction.BoardBucketCount,
	}
}
