package solver

import "errors"

const (
	defaultMaxDepth   = 256
	defaultMaxHistory = 64
)

// TrainingConfig aggregates the parameters that control a training run.
// Zero values for ParallelTables, MaxDepth and MaxHistory select the
// defaults at construction time.
type TrainingConfig struct {
	// Iterations is the number of sampled hands to train on. Zero is legal
	// and produces an empty but valid run.
	Iterations int

	// Seed fixes every random stream of the run. Two runs with the same
	// seed and configuration learn identical strategies.
	Seed int64

	// ParallelTables traverses this many independent deals per iteration
	// against the shared node table. The default of 1 keeps iterations
	// fully sequential and reproducible.
	ParallelTables int

	// MaxDepth bounds recursion depth within one traversal.
	MaxDepth int

	// MaxHistory bounds the per-street betting history length a traversal
	// expands before cutting the branch off.
	MaxHistory int

	// ProgressEvery emits a progress callback every n iterations. Zero
	// picks a cadence of roughly one percent of the run.
	ProgressEvery int

	// CheckpointPath and CheckpointEvery enable periodic snapshots of the
	// trainer state. CheckpointEvery counts iterations.
	CheckpointPath  string
	CheckpointEvery int

	// ExportPath names the strategy table file. With ExportOnCheckpoint
	// set, the table is also written at every checkpoint.
	ExportPath         string
	ExportOnCheckpoint bool
}

// DefaultTrainingConfig returns a configuration for local experimentation.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Iterations:     1000,
		Seed:           1,
		ParallelTables: 1,
		MaxDepth:       defaultMaxDepth,
		MaxHistory:     defaultMaxHistory,
	}
}

// Validate ensures the training parameters are safe to use.
func (c TrainingConfig) Validate() error {
	if c.Iterations < 0 {
		return errors.New("iterations cannot be negative")
	}
	if c.ParallelTables < 0 {
		return errors.New("parallel tables cannot be negative")
	}
	if c.MaxDepth < 0 {
		return errors.New("max depth cannot be negative")
	}
	if c.MaxHistory < 0 {
		return errors.New("max history cannot be negative")
	}
	if c.ProgressEvery < 0 {
		return errors.New("progress interval cannot be negative")
	}
	if c.CheckpointEvery < 0 {
		return errors.New("checkpoint interval cannot be negative")
	}
	if c.CheckpointEvery > 0 && c.CheckpointPath == "" {
		return errors.New("checkpoint interval requires a checkpoint path")
	}
	if c.ExportOnCheckpoint && c.ExportPath == "" {
		return errors.New("export on checkpoint requires an export path")
	}
	return nil
}

// withDefaults fills zero-valued fields with their defaults.
func (c TrainingConfig) withDefaults() TrainingConfig {
	if c.ParallelTables == 0 {
		c.ParallelTables = 1
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = defaultMaxDepth
	}
	if c.MaxHistory == 0 {
		c.MaxHistory = defaultMaxHistory
	}
	return c
}
