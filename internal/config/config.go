// Package config loads training run configuration from HCL files. A
// missing file yields the defaults; a present file must carry all four
// blocks, with unset fields backfilled from the defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/kevsman/pokerplayer-sub002/internal/abstraction"
	"github.com/kevsman/pokerplayer-sub002/internal/game"
	"github.com/kevsman/pokerplayer-sub002/solver"
)

// Config represents a complete training run configuration
type Config struct {
	Game     GameConfig     `hcl:"game,block"`
	Training TrainingConfig `hcl:"training,block"`
	Equity   EquityConfig   `hcl:"equity,block"`
	Compute  ComputeConfig  `hcl:"compute,block"`
}

// GameConfig describes the abstracted game being trained
type GameConfig struct {
	Players       int     `hcl:"players,optional"`
	SmallBlind    int     `hcl:"small_blind,optional"`
	BigBlind      int     `hcl:"big_blind,optional"`
	StartingStack int     `hcl:"starting_stack,optional"`
	RaiseCap      int     `hcl:"raise_cap,optional"`
	RaiseFraction float64 `hcl:"raise_fraction,optional"`
}

// TrainingConfig controls the solver run
type TrainingConfig struct {
	Iterations         int    `hcl:"iterations,optional"`
	Seed               int64  `hcl:"seed,optional"`
	ParallelTables     int    `hcl:"parallel_tables,optional"`
	MaxDepth           int    `hcl:"max_depth,optional"`
	MaxHistory         int    `hcl:"max_history,optional"`
	ProgressEvery      int    `hcl:"progress_every,optional"`
	CheckpointPath     string `hcl:"checkpoint_path,optional"`
	CheckpointEvery    int    `hcl:"checkpoint_every,optional"`
	ExportPath         string `hcl:"export_path,optional"`
	ExportOnCheckpoint bool   `hcl:"export_on_checkpoint,optional"`
}

// EquityConfig sizes the Monte Carlo hand abstraction
type EquityConfig struct {
	BucketSamples int       `hcl:"bucket_samples,optional"`
	HandCeilings  []float64 `hcl:"hand_ceilings,optional"`
}

// ComputeConfig selects the batch compute backend
type ComputeConfig struct {
	Backend        string `hcl:"backend,optional"`
	RemoteURL      string `hcl:"remote_url,optional"`
	TimeoutSeconds int    `hcl:"timeout_seconds,optional"`
}

// DefaultConfig returns the configuration a run without a config file uses.
func DefaultConfig() *Config {
	rules := game.DefaultRules()
	training := solver.DefaultTrainingConfig()
	return &Config{
		Game: GameConfig{
			Players:       rules.Players,
			SmallBlind:    rules.SmallBlind,
			BigBlind:      rules.BigBlind,
			StartingStack: rules.StartingStack,
			RaiseCap:      rules.RaiseCap,
			RaiseFraction: rules.RaiseFraction,
		},
		Training: TrainingConfig{
			Iterations:     training.Iterations,
			Seed:           training.Seed,
			ParallelTables: training.ParallelTables,
			MaxDepth:       training.MaxDepth,
			MaxHistory:     training.MaxHistory,
		},
		Equity: EquityConfig{
			BucketSamples: abstraction.DefaultBucketSamples,
			HandCeilings:  append([]float64(nil), abstraction.DefaultHandCeilings...),
		},
		Compute: ComputeConfig{
			Backend:        "cpu",
			TimeoutSeconds: 30,
		},
	}
}

// LoadConfig loads a training configuration from an HCL file. A missing
// file is not an error; it returns the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	applyDefaults(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyDefaults(config *Config) {
	defaults := DefaultConfig()

	if config.Game.Players == 0 {
		config.Game.Players = defaults.Game.Players
	}
	if config.Game.SmallBlind == 0 {
		config.Game.SmallBlind = defaults.Game.SmallBlind
	}
	if config.Game.BigBlind == 0 {
		config.Game.BigBlind = defaults.Game.BigBlind
	}
	if config.Game.StartingStack == 0 {
		config.Game.StartingStack = defaults.Game.StartingStack
	}
	if config.Game.RaiseCap == 0 {
		config.Game.RaiseCap = defaults.Game.RaiseCap
	}
	if config.Game.RaiseFraction == 0 {
		config.Game.RaiseFraction = defaults.Game.RaiseFraction
	}

	if config.Training.Iterations == 0 {
		config.Training.Iterations = defaults.Training.Iterations
	}
	if config.Training.Seed == 0 {
		config.Training.Seed = defaults.Training.Seed
	}
	if config.Training.ParallelTables == 0 {
		config.Training.ParallelTables = defaults.Training.ParallelTables
	}
	if config.Training.MaxDepth == 0 {
		config.Training.MaxDepth = defaults.Training.MaxDepth
	}
	if config.Training.MaxHistory == 0 {
		config.Training.MaxHistory = defaults.Training.MaxHistory
	}

	if config.Equity.BucketSamples == 0 {
		config.Equity.BucketSamples = defaults.Equity.BucketSamples
	}
	if len(config.Equity.HandCeilings) == 0 {
		config.Equity.HandCeilings = defaults.Equity.HandCeilings
	}

	if config.Compute.Backend == "" {
		config.Compute.Backend = defaults.Compute.Backend
	}
	if config.Compute.TimeoutSeconds == 0 {
		config.Compute.TimeoutSeconds = defaults.Compute.TimeoutSeconds
	}
}

// Validate checks the configuration as a whole: the game rules, the
// training parameters, the abstraction shape and the backend selection.
func (c *Config) Validate() error {
	if err := c.Rules().Validate(); err != nil {
		return err
	}
	if err := c.TrainingConfig().Validate(); err != nil {
		return err
	}
	if err := abstraction.ValidateCeilings(c.Equity.HandCeilings); err != nil {
		return err
	}
	if c.Equity.BucketSamples <= 0 {
		return errors.New("config: bucket samples must be positive")
	}
	switch c.Compute.Backend {
	case "cpu":
	case "remote":
		if c.Compute.RemoteURL == "" {
			return errors.New("config: remote backend requires remote_url")
		}
	default:
		return fmt.Errorf("config: unknown compute backend %q", c.Compute.Backend)
	}
	if c.Compute.TimeoutSeconds < 0 {
		return errors.New("config: timeout cannot be negative")
	}
	return nil
}

// Rules maps the game block onto the engine's rule set.
func (c *Config) Rules() game.Rules {
	return game.Rules{
		Players:       c.Game.Players,
		SmallBlind:    c.Game.SmallBlind,
		BigBlind:      c.Game.BigBlind,
		StartingStack: c.Game.StartingStack,
		RaiseCap:      c.Game.RaiseCap,
		RaiseFraction: c.Game.RaiseFraction,
	}
}

// TrainingConfig maps the training block onto the solver's configuration.
func (c *Config) TrainingConfig() solver.TrainingConfig {
	return solver.TrainingConfig{
		Iterations:         c.Training.Iterations,
		Seed:               c.Training.Seed,
		ParallelTables:     c.Training.ParallelTables,
		MaxDepth:           c.Training.MaxDepth,
		MaxHistory:         c.Training.MaxHistory,
		ProgressEvery:      c.Training.ProgressEvery,
		CheckpointPath:     c.Training.CheckpointPath,
		CheckpointEvery:    c.Training.CheckpointEvery,
		ExportPath:         c.Training.ExportPath,
		ExportOnCheckpoint: c.Training.ExportOnCheckpoint,
	}
}

// Timeout returns the configured remote request timeout.
func (c ComputeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
