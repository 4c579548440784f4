package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pthm-cable/canopy/components"
	"github.com/pthm-cable/canopy/config"
	"github.com/pthm-cable/canopy/game"
	"github.com/pthm-cable/canopy/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	cellsPath := flag.String("cells", "", "JSON file of initial cell records keyed by \"x,y\"")
	resumePath := flag.String("resume", "", "Snapshot file to resume from (replaces -cells)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, config and snapshots")
	maxTime := flag.Float64("max-time", 200, "Stop once simulated time reaches this value")
	seed := flag.Int64("seed", 0, "Scenario seed (0 = use config)")
	workers := flag.Int("workers", -1, "Worker goroutines (-1 = use config, 0 = GOMAXPROCS)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	printMap := flag.Bool("print", false, "Print the final grid as a character map")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	if *seed != 0 {
		cfg.Scenario.Seed = *seed
	}
	if *workers >= 0 {
		cfg.Parallel.Workers = *workers
	}

	opts := game.Options{
		OutputDir: *outputDir,
		LogStats:  *logStats,
		Logger:    logger,
	}

	if *cellsPath != "" {
		f, err := os.Open(*cellsPath)
		if err != nil {
			slog.Error("failed to open cell records", "error", err)
			os.Exit(1)
		}
		opts.Records, err = components.DecodeCellRecords(f)
		f.Close()
		if err != nil {
			slog.Error("invalid cell records", "path", *cellsPath, "error", err)
			os.Exit(1)
		}
	}

	if *resumePath != "" {
		snap, err := telemetry.LoadSnapshot(*resumePath)
		if err != nil {
			slog.Error("failed to load snapshot", "error", err)
			os.Exit(1)
		}
		opts.Resume = snap
	}

	sim, err := game.NewSimulation(cfg, opts)
	if err != nil {
		slog.Error("failed to build simulation", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting simulation",
		"grid", cfg.Grid,
		"seed", cfg.Scenario.Seed,
		"max_time", *maxTime,
		"records", len(opts.Records),
		"resumed", opts.Resume != nil,
	)

	runErr := sim.RunUntil(ctx, *maxTime)
	if runErr != nil {
		slog.Error("simulation stopped", "error", runErr, "time", sim.Grid().Time())
	}

	if err := sim.SaveFinal(); err != nil {
		slog.Error("failed to save final snapshot", "error", err)
	}
	if *printMap {
		if err := sim.WriteMap(os.Stderr); err != nil {
			slog.Error("failed to print map", "error", err)
		}
	}

	final := telemetry.ComputeStepStats(sim.Grid().Steps(), sim.Grid().Time(), sim.Grid().States())
	slog.Info("simulation finished",
		"stats", final,
		"anomalies", sim.Anomalies(),
		"output_dir", *outputDir,
	)

	if err := sim.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
		os.Exit(1)
	}
	if runErr != nil {
		os.Exit(1)
	}
}
