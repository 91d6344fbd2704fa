package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	charmlog "github.com/charmbracelet/log"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kevsman/pokerplayer-sub002/internal/abstraction"
	"github.com/kevsman/pokerplayer-sub002/internal/compute"
	"github.com/kevsman/pokerplayer-sub002/internal/config"
	"github.com/kevsman/pokerplayer-sub002/internal/deck"
	"github.com/kevsman/pokerplayer-sub002/internal/equity"
	"github.com/kevsman/pokerplayer-sub002/internal/evaluator"
	"github.com/kevsman/pokerplayer-sub002/internal/game"
	"github.com/kevsman/pokerplayer-sub002/internal/randutil"
	"github.com/kevsman/pokerplayer-sub002/internal/tui"
	"github.com/kevsman/pokerplayer-sub002/solver"
)

var cli struct {
	Debug bool `help:"enable debug logging"`

	Train   TrainCmd   `cmd:"" help:"run MCCFR training and export a strategy table"`
	Eval    EvalCmd    `cmd:"" help:"summarize an exported strategy table"`
	Inspect InspectCmd `cmd:"" help:"browse a strategy table interactively"`
	Odds    OddsCmd    `cmd:"" help:"estimate equity for a hand against random opponents"`
	Serve   ServeCmd   `cmd:"" help:"host the batch compute service for remote trainers"`
}

type TrainCmd struct {
	Config          string `help:"path to HCL config file" default:"trainer.hcl"`
	Out             string `help:"path to write the strategy table (overrides config)"`
	Iterations      int    `help:"number of MCCFR iterations (overrides config)" default:"0"`
	Seed            int64  `help:"random seed (overrides config)" default:"0"`
	Parallel        int    `help:"number of concurrent tables (overrides config)" default:"0"`
	CheckpointPath  string `help:"path to write periodic checkpoints (overrides config)"`
	CheckpointEvery int    `help:"checkpoint interval in iterations (overrides config)" default:"0"`
	ProgressEvery   int    `help:"log progress every N iterations (0 => iterations/100)" default:"0"`
	ResumeFrom      string `help:"resume training from checkpoint file"`
	CPUProfile      string `help:"write CPU profile to file"`
}

type EvalCmd struct {
	Table   string `help:"path to strategy table" required:""`
	Samples int    `help:"number of sampled entries to log" default:"5"`
}

type InspectCmd struct {
	Table   string `help:"path to strategy table" required:""`
	LogFile string `help:"write inspector logs to file"`
}

type OddsCmd struct {
	Hand      string `arg:"" help:"hero hole cards, e.g. AsKh"`
	Board     string `short:"b" help:"community cards, e.g. Td7s8h"`
	Opponents int    `help:"number of random opponents" default:"1"`
	Samples   int    `short:"i" help:"number of Monte Carlo samples" default:"20000"`
	Seed      int64  `help:"random seed; 0 uses a time seed" default:"0"`
}

type ServeCmd struct {
	Addr string `help:"listen address" default:":8080"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("trainer"),
		kong.Description("CFR poker training tooling"),
		kong.UsageOnError(),
	)

	setupLogger(cli.Debug)

	switch ctx.Command() {
	case "train":
		if err := cli.Train.Run(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("training failed")
		}
	case "eval":
		if err := cli.Eval.Run(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("evaluation failed")
		}
	case "inspect":
		if err := cli.Inspect.Run(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("inspection failed")
		}
	case "odds <hand>":
		if err := cli.Odds.Run(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("odds failed")
		}
	case "serve":
		if err := cli.Serve.Run(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("serve failed")
		}
	default:
		log.Fatal().Msgf("unknown command: %s", ctx.Command())
	}
}

func setupLogger(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
}

func (cmd *TrainCmd) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(cmd.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Iterations > 0 {
		cfg.Training.Iterations = cmd.Iterations
	}
	if cmd.Seed != 0 {
		cfg.Training.Seed = cmd.Seed
	}
	if cmd.Parallel > 0 {
		cfg.Training.ParallelTables = cmd.Parallel
	}
	if cmd.CheckpointPath != "" {
		cfg.Training.CheckpointPath = cmd.CheckpointPath
	}
	if cmd.CheckpointEvery > 0 {
		cfg.Training.CheckpointEvery = cmd.CheckpointEvery
	}
	if cmd.ProgressEvery > 0 {
		cfg.Training.ProgressEvery = cmd.ProgressEvery
	}
	if cmd.Out != "" {
		cfg.Training.ExportPath = cmd.Out
	}
	if cfg.Training.ExportPath == "" {
		cfg.Training.ExportPath = "strategy.json"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Set up CPU profiling if requested
	if cmd.CPUProfile != "" {
		f, err := os.Create(cmd.CPUProfile)
		if err != nil {
			return fmt.Errorf("create cpu profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		log.Info().Str("path", cmd.CPUProfile).Msg("CPU profiling enabled")
	}

	deps, cleanup, err := buildDependencies(ctx, cfg, cmd.ResumeFrom == "")
	if err != nil {
		return err
	}
	defer cleanup()

	var trainer *solver.Trainer
	if cmd.ResumeFrom != "" {
		trainer, err = solver.LoadTrainerFromCheckpoint(cmd.ResumeFrom, deps)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
		if cmd.Iterations > 0 {
			if err := trainer.SetTotalIterations(cmd.Iterations); err != nil {
				return err
			}
		}
		if cmd.CheckpointPath != "" && cmd.CheckpointEvery > 0 {
			trainer.EnableCheckpoints(cmd.CheckpointPath, cmd.CheckpointEvery)
		}
		if cmd.ProgressEvery > 0 {
			trainer.SetProgressEvery(cmd.ProgressEvery)
		}
		if cmd.Out != "" {
			trainer.EnableExport(cmd.Out, trainer.TrainingConfig().ExportOnCheckpoint)
		}
		trainCfg := trainer.TrainingConfig()
		log.Info().
			Str("run_id", trainer.RunID()).
			Int("iterations", trainCfg.Iterations).
			Int64("resume_iteration", trainer.Iteration()).
			Int("parallel", trainCfg.ParallelTables).
			Str("checkpoint", cmd.ResumeFrom).
			Msg("resuming training run")
	} else {
		trainer, err = solver.NewTrainer(cfg.Rules(), cfg.TrainingConfig(), deps)
		if err != nil {
			return err
		}
		log.Info().
			Str("run_id", trainer.RunID()).
			Int("iterations", cfg.Training.Iterations).
			Int("players", cfg.Game.Players).
			Int("parallel", cfg.Training.ParallelTables).
			Int64("seed", cfg.Training.Seed).
			Str("backend", cfg.Compute.Backend).
			Msg("starting training run")
	}

	progress := func(p solver.Progress) {
		if p.CheckpointErr != nil {
			log.Warn().Err(p.CheckpointErr).Msg("checkpoint failed; retrying at next boundary")
		}
		log.Info().
			Int("iteration", p.Iteration).
			Int("infosets", p.NodeCount).
			Int64("nodes", p.Stats.NodesVisited).
			Int64("terminals", p.Stats.TerminalNodes).
			Int("max_depth", p.Stats.MaxDepth).
			Dur("iter_time", p.Stats.IterationTime).
			Msg("progress")
	}

	runErr := trainer.Run(ctx, progress)
	if runErr != nil {
		if !errors.Is(runErr, context.Canceled) {
			return runErr
		}
		log.Warn().Msg("training interrupted; exporting partial strategies")
	}

	report := trainer.Report()
	log.Info().
		Str("run_id", report.RunID).
		Str("backend", report.Backend).
		Int("iterations", report.Iterations).
		Int("infosets", report.InfoSets).
		Dur("duration", report.Duration).
		Int64("cycle_cutoffs", report.Counters.CycleCutoffs).
		Int64("persistence_errors", report.Counters.PersistenceErrors).
		Uint64("accelerator_failures", report.AcceleratorFailures).
		Float64("bucket_hit_rate", report.BucketHitRate).
		Msg("training completed")

	table, err := trainer.BuildStrategyTable()
	if err != nil {
		return fmt.Errorf("build strategy table: %w", err)
	}
	out := trainer.TrainingConfig().ExportPath
	if err := table.Save(out); err != nil {
		return fmt.Errorf("save strategy table: %w", err)
	}
	log.Info().Str("path", out).Int("entries", len(table.Entries)).Msg("strategy table saved")
	return nil
}

// buildDependencies assembles the evaluator, compute backend and, for
// fresh runs, the hand bucketer. Resumed runs rebuild the bucketer from
// checkpoint metadata instead, so it is skipped here. The cleanup closes
// the remote connection when one was dialed.
func buildDependencies(ctx context.Context, cfg *config.Config, withBucketer bool) (solver.Dependencies, func(), error) {
	eval := evaluator.NewPaulHankin()
	cpu := compute.NewCPU(equity.NewMonteCarlo(eval))

	backend := compute.Backend(cpu)
	cleanup := func() {}
	if cfg.Compute.Backend == "remote" {
		logger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{ReportTimestamp: true})
		remote, err := compute.DialRemote(ctx, cfg.Compute.RemoteURL, compute.RemoteOptions{
			Timeout: cfg.Compute.Timeout(),
			Logger:  logger,
		})
		if err != nil {
			return solver.Dependencies{}, nil, fmt.Errorf("dial accelerator: %w", err)
		}
		backend = compute.NewFallback(remote, cpu, logger)
		cleanup = func() { _ = remote.Close() }
	}

	deps := solver.Dependencies{Evaluator: eval, Backend: backend}
	if withBucketer {
		bucketer, err := abstraction.NewHandBucketer(
			compute.NewOracle(ctx, backend),
			cfg.Equity.HandCeilings, cfg.Equity.BucketSamples, cfg.Training.Seed)
		if err != nil {
			cleanup()
			return solver.Dependencies{}, nil, err
		}
		deps.Bucketer = bucketer
	}
	return deps, cleanup, nil
}

func (cmd *EvalCmd) Run(ctx context.Context) error {
	table, err := solver.LoadStrategyTable(cmd.Table)
	if err != nil {
		return fmt.Errorf("load strategy table: %w", err)
	}

	log.Info().
		Str("run_id", table.RunID).
		Str("generated", table.GeneratedAt.Format(time.RFC3339)).
		Int("iterations", table.Iterations).
		Int("entries", len(table.Entries)).
		Msg("strategy table loaded")

	keys := make([]string, 0, len(table.Entries))
	perStreet := make(map[int]int)
	totalWeight := 0.0
	totalActions := 0
	for key, entry := range table.Entries {
		keys = append(keys, key)
		perStreet[streetOf(key)]++
		totalWeight += entry.Weight
		totalActions += len(entry.Actions)
	}
	sort.Strings(keys)

	for street := int(game.Preflop); street <= int(game.River); street++ {
		log.Info().
			Str("street", game.Street(street).String()).
			Int("entries", perStreet[street]).
			Msg("street coverage")
	}
	if len(keys) > 0 {
		log.Info().
			Float64("avg_actions", float64(totalActions)/float64(len(keys))).
			Float64("total_weight", totalWeight).
			Msg("coverage summary")
	}

	if cmd.Samples <= 0 || len(keys) == 0 {
		return nil
	}
	step := len(keys) / cmd.Samples
	if step < 1 {
		step = 1
	}
	for i := 0; i < len(keys) && i/step < cmd.Samples; i += step {
		entry := table.Entries[keys[i]]
		log.Info().
			Str("key", keys[i]).
			Strs("actions", entry.Actions).
			Floats64("probabilities", entry.Probabilities).
			Float64("weight", entry.Weight).
			Msg("sampled strategy")
	}
	return nil
}

// streetOf extracts the leading street component of a table key.
func streetOf(key string) int {
	head, _, ok := strings.Cut(key, "|")
	if !ok {
		return -1
	}
	street, err := strconv.Atoi(head)
	if err != nil {
		return -1
	}
	return street
}

func (cmd *InspectCmd) Run(ctx context.Context) error {
	table, err := solver.LoadStrategyTable(cmd.Table)
	if err != nil {
		return fmt.Errorf("load strategy table: %w", err)
	}

	logOut := io.Writer(io.Discard)
	if cmd.LogFile != "" {
		f, err := os.OpenFile(cmd.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer func() { _ = f.Close() }()
		logOut = f
	}
	logger := charmlog.New(logOut)
	if cli.Debug {
		logger.SetLevel(charmlog.DebugLevel)
	}

	program := tea.NewProgram(tui.NewInspector(table, logger), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run inspector: %w", err)
	}
	return nil
}

func (cmd *OddsCmd) Run(ctx context.Context) error {
	hole, err := deck.ParseCards(cmd.Hand)
	if err != nil {
		return fmt.Errorf("parse hand: %w", err)
	}
	if len(hole) != 2 {
		return fmt.Errorf("hand must contain exactly 2 cards, got %d", len(hole))
	}
	var board []deck.Card
	if cmd.Board != "" {
		board, err = deck.ParseCards(cmd.Board)
		if err != nil {
			return fmt.Errorf("parse board: %w", err)
		}
		if len(board) > 5 {
			return fmt.Errorf("board cannot have more than 5 cards, got %d", len(board))
		}
	}
	if cmd.Opponents < 1 {
		return fmt.Errorf("opponents must be positive, got %d", cmd.Opponents)
	}

	seed := cmd.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	oracle := equity.NewMonteCarlo(evaluator.NewPaulHankin())
	start := time.Now()
	res, err := oracle.Estimate(hole, board, cmd.Opponents, cmd.Samples, randutil.New(seed))
	if err != nil {
		return err
	}

	fmt.Printf("hand:    %s\n", deck.FormatCards(hole))
	if len(board) > 0 {
		fmt.Printf("board:   %s\n", deck.FormatCards(board))
	}
	fmt.Printf("win:     %6.2f%%\n", res.WinProb*100)
	fmt.Printf("tie:     %6.2f%%\n", res.TieProb*100)
	fmt.Printf("equity:  %6.2f%%\n", res.Equity*100)
	fmt.Printf("samples: %d in %s\n", res.Samples, time.Since(start).Round(time.Millisecond))
	return nil
}

func (cmd *ServeCmd) Run(ctx context.Context) error {
	logger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{ReportTimestamp: true})
	backend := compute.NewCPU(equity.NewMonteCarlo(evaluator.NewPaulHankin()))

	mux := http.NewServeMux()
	mux.Handle("/compute", compute.NewHandler(backend, logger))
	srv := &http.Server{Addr: cmd.Addr, Handler: mux}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", cmd.Addr).Msg("compute service listening")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
