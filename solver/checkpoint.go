package solver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kevsman/pokerplayer-sub002/internal/abstraction"
	"github.com/kevsman/pokerplayer-sub002/internal/compute"
	"github.com/kevsman/pokerplayer-sub002/internal/equity"
	"github.com/kevsman/pokerplayer-sub002/internal/evaluator"
	"github.com/kevsman/pokerplayer-sub002/internal/fileutil"
	"github.com/kevsman/pokerplayer-sub002/internal/game"
)

const checkpointFileVersion = 1

// checkpointSnapshot is the on-disk form of a paused run: everything
// needed to continue exactly where the interrupted run stopped. Node keys
// keep their betting history, unlike strategy table keys, because regrets
// are still being learned per decision point.
type checkpointSnapshot struct {
	Version     int                     `json:"version"`
	RunID       string                  `json:"run_id"`
	Iteration   int64                   `json:"iteration"`
	Rules       game.Rules              `json:"rules"`
	Training    TrainingConfig          `json:"training"`
	Abstraction AbstractionMeta         `json:"abstraction"`
	Nodes       map[string]nodeSnapshot `json:"nodes"`
	Counters    ReportCounters          `json:"counters"`
	Stats       TraversalStats          `json:"stats"`
}

type nodeSnapshot struct {
	Actions      []string  `json:"actions"`
	Regrets      []float64 `json:"regrets"`
	StrategySums []float64 `json:"strategy_sums"`
}

// EnableCheckpoints configures the trainer to write checkpoints every n
// iterations. Typically used after resuming, to redirect snapshots of the
// continued run.
func (t *Trainer) EnableCheckpoints(path string, every int) {
	t.cfg.CheckpointPath = path
	t.cfg.CheckpointEvery = every
}

// EnableExport configures the strategy table written at the end of the
// run, and at every checkpoint when onCheckpoint is set.
func (t *Trainer) EnableExport(path string, onCheckpoint bool) {
	t.cfg.ExportPath = path
	t.cfg.ExportOnCheckpoint = onCheckpoint
}

// SaveCheckpoint writes a snapshot of the trainer state to path. Nodes are
// snapshotted one at a time under their own locks, so a checkpoint never
// stalls concurrent tables globally.
func (t *Trainer) SaveCheckpoint(path string) error {
	if path == "" {
		return errors.New("solver: checkpoint path required")
	}
	snap := t.buildCheckpoint()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("solver: create checkpoint dir: %w", err)
	}
	if err := fileutil.WriteJSONAtomic(path, snap, 0o644); err != nil {
		return fmt.Errorf("solver: write checkpoint: %w", err)
	}
	return nil
}

func (t *Trainer) buildCheckpoint() *checkpointSnapshot {
	entries := t.nodes.Entries()
	nodes := make(map[string]nodeSnapshot, len(entries))
	for key, node := range entries {
		nodes[key] = node.snapshot()
	}
	return &checkpointSnapshot{
		Version:     checkpointFileVersion,
		RunID:       t.runID,
		Iteration:   t.iteration.Load(),
		Rules:       t.rules,
		Training:    t.cfg,
		Abstraction: t.abstractionMeta(),
		Nodes:       nodes,
		Counters:    t.counters(),
		Stats:       t.Stats(),
	}
}

// LoadTrainerFromCheckpoint restores a trainer from a snapshot written by
// SaveCheckpoint. The restored trainer keeps the original run ID and
// continues from the recorded iteration; because every iteration derives
// its random streams from the seed and the iteration number, it deals
// exactly the hands the interrupted run would have dealt.
//
// A nil deps.Bucketer is rebuilt from the snapshot's abstraction metadata,
// so resuming does not require remembering the original bucketing
// parameters. A caller-provided bucketer must match them exactly.
func LoadTrainerFromCheckpoint(path string, deps Dependencies) (*Trainer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap checkpointSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("solver: decode checkpoint: %w", err)
	}
	if snap.Version != checkpointFileVersion {
		return nil, fmt.Errorf("solver: unsupported checkpoint version %d", snap.Version)
	}

	if deps.Bucketer == nil {
		if deps.Evaluator == nil {
			deps.Evaluator = evaluator.NewPaulHankin()
		}
		if deps.Backend == nil {
			deps.Backend = compute.NewCPU(equity.NewMonteCarlo(deps.Evaluator))
		}
		deps.Bucketer, err = abstraction.NewHandBucketer(
			compute.NewOracle(context.Background(), deps.Backend),
			snap.Abstraction.HandCeilings, snap.Abstraction.BucketSamples, snap.Abstraction.BucketSeed)
		if err != nil {
			return nil, fmt.Errorf("solver: checkpoint abstraction: %w", err)
		}
	}

	trainer, err := NewTrainer(snap.Rules, snap.Training, deps)
	if err != nil {
		return nil, fmt.Errorf("solver: checkpoint config: %w", err)
	}
	if meta := trainer.abstractionMeta(); !meta.equal(snap.Abstraction) {
		return nil, fmt.Errorf("solver: checkpoint abstraction %+v does not match trainer abstraction %+v",
			snap.Abstraction, meta)
	}

	for key, ns := range snap.Nodes {
		parsed, err := abstraction.ParseInfoSetKey(key)
		if err != nil {
			return nil, fmt.Errorf("solver: checkpoint node %s: %w", key, err)
		}
		node, err := nodeFromSnapshot(parsed, ns)
		if err != nil {
			return nil, fmt.Errorf("solver: checkpoint node %s: %w", key, err)
		}
		trainer.nodes.insert(node)
	}

	trainer.runID = snap.RunID
	trainer.iteration.Store(snap.Iteration)
	trainer.setStats(snap.Stats)
	trainer.cycleCutoffs.Store(snap.Counters.CycleCutoffs)
	trainer.persistenceErrors.Store(snap.Counters.PersistenceErrors)
	return trainer, nil
}
