// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/canopy/components"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Neighborhood names accepted in grid.neighborhood.
const (
	NeighborhoodMoore      = "moore"
	NeighborhoodVonNeumann = "von_neumann"
)

// Config holds all simulation configuration parameters.
type Config struct {
	Grid      GridConfig      `yaml:"grid"`
	Rule      RuleConfig      `yaml:"rule"`
	Species   []SpeciesConfig `yaml:"species"`
	Cell      CellConfig      `yaml:"cell"`
	Scenario  ScenarioConfig  `yaml:"scenario"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Parallel  ParallelConfig  `yaml:"parallel"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// GridConfig holds the host grid topology.
type GridConfig struct {
	Width        int    `yaml:"width"`
	Height       int    `yaml:"height"`
	Neighborhood string `yaml:"neighborhood"` // moore (8 cells) or von_neumann (4 cells)
	Wrap         bool   `yaml:"wrap"`         // Toroidal edges
}

// RuleConfig holds the transition rule constants.
type RuleConfig struct {
	DiffusionFraction float64 `yaml:"diffusion_fraction"` // Share of each neighbour difference pulled per step
	OutputDelay       float64 `yaml:"output_delay"`       // Time units before a new state is visible
}

// SpeciesConfig is one species table entry.
type SpeciesConfig struct {
	Name                string `yaml:"name"`
	SeedHeightThreshold int    `yaml:"seed_height_threshold"` // Minimum height to cast a viable seed
	MaxHeight           int    `yaml:"max_height"`            // Growth ceiling
}

// CellConfig holds the resource vectors given to cells without an explicit record.
type CellConfig struct {
	Current           components.Resources `yaml:"current_resources"`
	Max               components.Resources `yaml:"max_resources"`
	Produced          components.Resources `yaml:"produced_resources"`
	RequiredToSurvive components.Resources `yaml:"required_to_survive"`
	RequiredToGrow    components.Resources `yaml:"required_to_grow"`
}

// ScenarioConfig holds initial-condition generation parameters.
type ScenarioConfig struct {
	Seed      int64            `yaml:"seed"`
	Fertility FertilityConfig  `yaml:"fertility"`
	Plantings []PlantingConfig `yaml:"plantings"`
}

// FertilityConfig shapes the noise field that scales per-cell capacity and production.
type FertilityConfig struct {
	Strength float64 `yaml:"strength"` // 0 disables; factor range is [1-strength, 1+strength]
	Scale    float64 `yaml:"scale"`    // Noise frequency in cells
	Octaves  int     `yaml:"octaves"`
}

// PlantingConfig places a plant at scenario start.
type PlantingConfig struct {
	X       int                `yaml:"x"`
	Y       int                `yaml:"y"`
	Species components.Species `yaml:"species"`
	Height  int                `yaml:"height"`
}

// TelemetryConfig holds output parameters.
type TelemetryConfig struct {
	StatsEvery int  `yaml:"stats_every"` // Steps between stats records
	GridLog    bool `yaml:"grid_log"`    // Write every cell every step
	Snapshots  bool `yaml:"snapshots"`   // Save the grid when a bookmark triggers
}

// ParallelConfig holds worker pool parameters.
type ParallelConfig struct {
	Workers   int `yaml:"workers"`   // 0 = GOMAXPROCS
	Threshold int `yaml:"threshold"` // Minimum cell count for parallel evaluation
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	NeighborOffsets []components.GridPos // Relative positions of neighbours
	CellCount       int
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	cfg, err := Parse(nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return Parse(data)
}

// Parse merges the given YAML document over the embedded defaults and
// validates the result.
func Parse(data []byte) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if len(data) > 0 {
		// Unmarshal into same struct - only overwrites fields present in file.
		// Lists (species, plantings) are replaced wholesale.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Compute derived values
	cfg.computeDerived()

	return cfg, nil
}

// Validate reports every structural problem in the configuration.
// Species table semantics are checked where the table is built.
func (c *Config) Validate() error {
	var err error
	if c.Grid.Width <= 0 || c.Grid.Height <= 0 {
		err = multierr.Append(err, fmt.Errorf("grid dimensions must be positive, got %dx%d", c.Grid.Width, c.Grid.Height))
	}
	switch c.Grid.Neighborhood {
	case NeighborhoodMoore, NeighborhoodVonNeumann:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown neighborhood %q", c.Grid.Neighborhood))
	}
	if !(c.Rule.DiffusionFraction > 0 && c.Rule.DiffusionFraction <= 1) {
		err = multierr.Append(err, fmt.Errorf("rule.diffusion_fraction must be in (0,1], got %g", c.Rule.DiffusionFraction))
	}
	if !(c.Rule.OutputDelay > 0) || math.IsInf(c.Rule.OutputDelay, 1) {
		err = multierr.Append(err, fmt.Errorf("rule.output_delay must be positive and finite, got %g", c.Rule.OutputDelay))
	}
	if e := c.DefaultCell().Validate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("cell: %w", e))
	}
	if !(c.Scenario.Fertility.Strength >= 0 && c.Scenario.Fertility.Strength <= 1) {
		err = multierr.Append(err, fmt.Errorf("scenario.fertility.strength must be in [0,1], got %g", c.Scenario.Fertility.Strength))
	}
	if s := c.Scenario.Fertility.Scale; math.IsNaN(s) || math.IsInf(s, 0) {
		err = multierr.Append(err, fmt.Errorf("scenario.fertility.scale must be finite, got %g", s))
	}
	for i, p := range c.Scenario.Plantings {
		if p.X < 0 || p.Y < 0 || p.X >= c.Grid.Width || p.Y >= c.Grid.Height {
			err = multierr.Append(err, fmt.Errorf("planting %d at %d,%d is outside the grid", i, p.X, p.Y))
		}
		if p.Species == components.SpeciesNone {
			err = multierr.Append(err, fmt.Errorf("planting %d has no species", i))
		}
		if p.Height < 0 {
			err = multierr.Append(err, fmt.Errorf("planting %d has negative height", i))
		}
	}
	if c.Telemetry.StatsEvery < 1 {
		err = multierr.Append(err, fmt.Errorf("telemetry.stats_every must be >= 1, got %d", c.Telemetry.StatsEvery))
	}
	if c.Parallel.Workers < 0 {
		err = multierr.Append(err, fmt.Errorf("parallel.workers must be >= 0, got %d", c.Parallel.Workers))
	}
	return err
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.CellCount = c.Grid.Width * c.Grid.Height
	c.Derived.NeighborOffsets = c.Derived.NeighborOffsets[:0]
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if c.Grid.Neighborhood == NeighborhoodVonNeumann && dx != 0 && dy != 0 {
				continue
			}
			c.Derived.NeighborOffsets = append(c.Derived.NeighborOffsets, components.GridPos{X: dx, Y: dy})
		}
	}
}

// DefaultCell returns the empty cell state described by the cell section.
func (c *Config) DefaultCell() components.PlantState {
	return components.PlantState{
		Current:           c.Cell.Current,
		Max:               c.Cell.Max,
		Produced:          c.Cell.Produced,
		RequiredToSurvive: c.Cell.RequiredToSurvive,
		RequiredToGrow:    c.Cell.RequiredToGrow,
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
