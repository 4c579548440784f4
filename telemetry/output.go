package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"go.uber.org/multierr"

	"github.com/pthm-cable/canopy/components"
	"github.com/pthm-cable/canopy/config"
)

// CellLogRecord is one row of the grid log: a cell's state at a point in
// simulated time.
type CellLogRecord struct {
	Time      float64 `csv:"time"`
	Cell      string  `csv:"cell"`
	Species   string  `csv:"species"`
	Height    int     `csv:"height"`
	Water     float64 `csv:"water"`
	Sunlight  float64 `csv:"sunlight"`
	Nitrogen  float64 `csv:"nitrogen"`
	Potassium float64 `csv:"potassium"`
}

// NewCellLogRecord flattens a cell state for the grid log.
func NewCellLogRecord(simTime float64, pos components.GridPos, s components.PlantState) CellLogRecord {
	return CellLogRecord{
		Time:      simTime,
		Cell:      pos.String(),
		Species:   s.Species.String(),
		Height:    s.Height,
		Water:     s.Current.Water,
		Sunlight:  s.Current.Sunlight,
		Nitrogen:  s.Current.Nitrogen,
		Potassium: s.Current.Potassium,
	}
}

// OutputManager handles run output: stats, perf and the grid log as CSV.
type OutputManager struct {
	dir       string
	statsFile *os.File
	perfFile  *os.File
	gridFile  *os.File // nil unless the grid log is enabled

	// Track if headers have been written
	statsHeaderWritten bool
	perfHeaderWritten  bool
	gridHeaderWritten  bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string, gridLog bool) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "stats.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating stats.csv: %w", err)
	}
	om.statsFile = f

	f, err = os.Create(filepath.Join(dir, "perf.csv"))
	if err != nil {
		om.statsFile.Close()
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	if gridLog {
		f, err = os.Create(filepath.Join(dir, "grid_log.csv"))
		if err != nil {
			om.statsFile.Close()
			om.perfFile.Close()
			return nil, fmt.Errorf("creating grid_log.csv: %w", err)
		}
		om.gridFile = f
	}

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteStats writes a stats record to stats.csv.
func (om *OutputManager) WriteStats(stats StepStats) error {
	if om == nil {
		return nil
	}
	if err := writeCSV([]StepStats{stats}, om.statsFile, &om.statsHeaderWritten); err != nil {
		return fmt.Errorf("writing stats: %w", err)
	}
	return nil
}

// WritePerf writes a performance record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int) error {
	if om == nil {
		return nil
	}
	if err := writeCSV([]PerfStatsCSV{stats.ToCSV(windowEnd)}, om.perfFile, &om.perfHeaderWritten); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// GridLogEnabled reports whether WriteGrid records anything.
func (om *OutputManager) GridLogEnabled() bool {
	return om != nil && om.gridFile != nil
}

// WriteGrid appends every cell's state at simTime to grid_log.csv.
func (om *OutputManager) WriteGrid(simTime float64, positions []components.GridPos, states []components.PlantState) error {
	if !om.GridLogEnabled() {
		return nil
	}
	records := make([]CellLogRecord, len(states))
	for i := range states {
		records[i] = NewCellLogRecord(simTime, positions[i], states[i])
	}
	if err := writeCSV(records, om.gridFile, &om.gridHeaderWritten); err != nil {
		return fmt.Errorf("writing grid log: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var err error
	for _, f := range []*os.File{om.statsFile, om.perfFile, om.gridFile} {
		if f != nil {
			err = multierr.Append(err, f.Close())
		}
	}
	return err
}

// writeCSV marshals records, including the header only on the first write.
func writeCSV[T any](records []T, f *os.File, headerWritten *bool) error {
	if *headerWritten {
		return gocsv.MarshalWithoutHeaders(records, f)
	}
	if err := gocsv.Marshal(records, f); err != nil {
		return err
	}
	*headerWritten = true
	return nil
}
