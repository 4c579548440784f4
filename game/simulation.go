package game

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/pthm-cable/canopy/components"
	"github.com/pthm-cable/canopy/config"
	"github.com/pthm-cable/canopy/systems"
	"github.com/pthm-cable/canopy/telemetry"
)

// Options configures a Simulation beyond the loaded configuration.
type Options struct {
	OutputDir string                                       // Empty disables file output
	Records   map[components.GridPos]components.PlantState // Explicit initial cells
	Resume    *telemetry.Snapshot                          // Restores cells and clock, replacing Records
	LogStats  bool                                         // Log stats and perf on every flush
	Logger    *slog.Logger
}

// anomalyCounter counts anomalies reported by the rule and logs each one.
type anomalyCounter struct {
	count atomic.Int64
	log   systems.LogSink
}

func (a *anomalyCounter) ReportAnomaly(an systems.Anomaly) {
	a.count.Add(1)
	a.log.ReportAnomaly(an)
}

// Simulation runs the plant growth rule over a configured grid and records
// telemetry.
type Simulation struct {
	cfg  *config.Config
	grid *Grid[components.PlantState]
	rule *systems.PlantGrowthRule

	anomalies *anomalyCounter
	collector *telemetry.Collector
	bookmarks *telemetry.BookmarkDetector
	perf      *telemetry.PerfCollector
	output    *telemetry.OutputManager

	logger    *slog.Logger
	logStats  bool
	lastStats telemetry.StepStats
}

// NewSimulation builds the grid from cfg and opts and opens the output
// directory. The caller must Close the simulation.
func NewSimulation(cfg *config.Config, opts Options) (*Simulation, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	table, err := systems.NewSpeciesTable(cfg.Species)
	if err != nil {
		return nil, fmt.Errorf("building species table: %w", err)
	}
	anomalies := &anomalyCounter{log: systems.LogSink{Logger: logger}}
	rule := systems.NewPlantGrowthRule(table, cfg.Rule, anomalies)

	records := opts.Records
	if opts.Resume != nil {
		if opts.Resume.Width != cfg.Grid.Width || opts.Resume.Height != cfg.Grid.Height {
			return nil, fmt.Errorf("snapshot grid %dx%d does not match configured %dx%d",
				opts.Resume.Width, opts.Resume.Height, cfg.Grid.Width, cfg.Grid.Height)
		}
		if records, err = opts.Resume.States(); err != nil {
			return nil, fmt.Errorf("restoring snapshot: %w", err)
		}
	}

	scenario, err := NewScenario(cfg, records)
	if err != nil {
		return nil, fmt.Errorf("building scenario: %w", err)
	}

	topo := Topology{
		Width:   cfg.Grid.Width,
		Height:  cfg.Grid.Height,
		Offsets: cfg.Derived.NeighborOffsets,
		Wrap:    cfg.Grid.Wrap,
	}
	grid, err := NewGrid[components.PlantState](topo, rule, cfg.Parallel.Workers, cfg.Parallel.Threshold, scenario.Cell)
	if err != nil {
		return nil, err
	}

	output, err := telemetry.NewOutputManager(opts.OutputDir, cfg.Telemetry.GridLog)
	if err != nil {
		grid.Close()
		return nil, err
	}
	if err := output.WriteConfig(cfg); err != nil {
		grid.Close()
		return nil, multierr.Append(err, output.Close())
	}

	s := &Simulation{
		cfg:       cfg,
		grid:      grid,
		rule:      rule,
		anomalies: anomalies,
		collector: telemetry.NewCollector(cfg.Telemetry.StatsEvery),
		bookmarks: telemetry.NewBookmarkDetector(grid.Len(), 10),
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.StatsEvery),
		output:    output,
		logger:    logger,
		logStats:  opts.LogStats,
	}
	grid.SetPerf(s.perf)

	if opts.Resume != nil {
		grid.SetClock(opts.Resume.Time, opts.Resume.Step)
		s.collector.StartWindow(opts.Resume.Step)
	}

	// The grid log starts with the initial states.
	if err := output.WriteGrid(grid.Time(), grid.Positions(), grid.States()); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// Step advances the grid once and records telemetry. Output errors are
// returned after the step has been applied.
func (s *Simulation) Step() error {
	s.perf.StartStep()
	s.grid.Step()

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	next := s.grid.Current()
	s.collector.RecordStep(s.grid.Previous(), next)

	var err error
	if s.output.GridLogEnabled() {
		err = multierr.Append(err, s.output.WriteGrid(s.grid.Time(), s.grid.Positions(), next))
	}
	if s.collector.ShouldFlush(s.grid.Steps()) {
		err = multierr.Append(err, s.flushTelemetry(next))
	}
	s.perf.EndStep()
	return err
}

// RunUntil steps until simulated time reaches maxTime or ctx is done.
func (s *Simulation) RunUntil(ctx context.Context, maxTime float64) error {
	for s.grid.Time() < maxTime {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}

// flushTelemetry summarises the window, writes it out and handles bookmarks.
func (s *Simulation) flushTelemetry(states []components.PlantState) error {
	stats := telemetry.ComputeStepStats(s.grid.Steps(), s.grid.Time(), states)
	stats = s.collector.Flush(stats, s.anomalies.count.Load())
	s.lastStats = stats
	perfStats := s.perf.Stats()

	if s.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	var err error
	err = multierr.Append(err, s.output.WriteStats(stats))
	err = multierr.Append(err, s.output.WritePerf(perfStats, stats.Step))

	for _, bm := range s.bookmarks.Check(stats) {
		if s.logStats {
			bm.LogBookmark()
		}
		if s.cfg.Telemetry.Snapshots {
			err = multierr.Append(err, s.saveSnapshot(&bm))
		}
	}
	return err
}

// SaveFinal writes a snapshot of the current grid to the output directory.
func (s *Simulation) SaveFinal() error {
	return s.saveSnapshot(nil)
}

func (s *Simulation) saveSnapshot(bookmark *telemetry.Bookmark) error {
	if s.output == nil {
		return nil
	}
	snapshot := s.Snapshot()
	snapshot.Bookmark = bookmark

	path, err := telemetry.SaveSnapshot(snapshot, filepath.Join(s.output.Dir(), "snapshots"))
	if err != nil {
		return err
	}
	s.logger.Info("snapshot saved", "path", path, "step", snapshot.Step)
	return nil
}

// Snapshot captures the current grid.
func (s *Simulation) Snapshot() *telemetry.Snapshot {
	return telemetry.NewSnapshot(
		s.cfg.Scenario.Seed,
		s.cfg.Grid.Width, s.cfg.Grid.Height,
		s.grid.Steps(), s.grid.Time(),
		s.grid.Positions(), s.grid.States(),
	)
}

// Grid returns the underlying grid.
func (s *Simulation) Grid() *Grid[components.PlantState] { return s.grid }

// Rule returns the transition rule.
func (s *Simulation) Rule() *systems.PlantGrowthRule { return s.rule }

// Anomalies returns the number of anomalies reported so far.
func (s *Simulation) Anomalies() int64 { return s.anomalies.count.Load() }

// LastStats returns the most recently flushed stats.
func (s *Simulation) LastStats() telemetry.StepStats { return s.lastStats }

// Close stops the worker pool and closes output files.
func (s *Simulation) Close() error {
	s.grid.Close()
	return s.output.Close()
}
