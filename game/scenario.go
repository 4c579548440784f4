package game

import (
	"fmt"
	"math"
	"slices"

	"github.com/ojrac/opensimplex-go"
	"go.uber.org/multierr"

	"github.com/pthm-cable/canopy/components"
	"github.com/pthm-cable/canopy/config"
)

// fertilityField is fractal simplex noise that scales a cell's capacity and
// production. A nil field is uniform.
type fertilityField struct {
	noise    opensimplex.Noise
	freq     float64
	octaves  int
	strength float64
}

func newFertilityField(fc config.FertilityConfig, seed int64) *fertilityField {
	if fc.Strength == 0 {
		return nil
	}
	scale := fc.Scale
	if scale <= 0 {
		scale = 16
	}
	return &fertilityField{
		noise:    opensimplex.New(seed),
		freq:     1 / scale,
		octaves:  max(fc.Octaves, 1),
		strength: fc.Strength,
	}
}

// Factor returns the multiplier at pos, in [1-strength, 1+strength].
func (f *fertilityField) Factor(pos components.GridPos) float64 {
	if f == nil {
		return 1
	}
	x, y := float64(pos.X), float64(pos.Y)

	sum, norm := 0.0, 0.0
	amp, freq := 0.5, f.freq
	for o := 0; o < f.octaves; o++ {
		sum += amp * f.noise.Eval2(x*freq, y*freq)
		norm += amp
		freq *= 2
		amp *= 0.5
	}
	n := math.Max(-1, math.Min(1, sum/norm))
	return 1 + f.strength*n
}

// Scenario builds the initial state of every cell. Explicit records take
// precedence over plantings, which take precedence over the configured
// default cell scaled by fertility.
type Scenario struct {
	base      components.PlantState
	fertility *fertilityField
	plantings map[components.GridPos]config.PlantingConfig
	records   map[components.GridPos]components.PlantState
}

// NewScenario validates records against the grid bounds and prepares the
// scenario. Every out-of-bounds record is reported.
func NewScenario(cfg *config.Config, records map[components.GridPos]components.PlantState) (*Scenario, error) {
	positions := make([]components.GridPos, 0, len(records))
	for pos := range records {
		positions = append(positions, pos)
	}
	slices.SortFunc(positions, func(a, b components.GridPos) int {
		if a.Y != b.Y {
			return a.Y - b.Y
		}
		return a.X - b.X
	})

	var err error
	for _, pos := range positions {
		if pos.X < 0 || pos.Y < 0 || pos.X >= cfg.Grid.Width || pos.Y >= cfg.Grid.Height {
			err = multierr.Append(err, fmt.Errorf("cell %s is outside the %dx%d grid", pos, cfg.Grid.Width, cfg.Grid.Height))
		}
	}
	if err != nil {
		return nil, err
	}

	plantings := make(map[components.GridPos]config.PlantingConfig, len(cfg.Scenario.Plantings))
	for _, p := range cfg.Scenario.Plantings {
		plantings[components.GridPos{X: p.X, Y: p.Y}] = p
	}

	return &Scenario{
		base:      cfg.DefaultCell(),
		fertility: newFertilityField(cfg.Scenario.Fertility, cfg.Scenario.Seed),
		plantings: plantings,
		records:   records,
	}, nil
}

// Cell returns the initial state at pos.
func (s *Scenario) Cell(pos components.GridPos) components.PlantState {
	if st, ok := s.records[pos]; ok {
		return st
	}

	st := s.base
	f := s.fertility.Factor(pos)
	st.Max = st.Max.Scale(f)
	st.Produced = st.Produced.Scale(f)
	st.Current = st.Current.Min(st.Max)

	if p, ok := s.plantings[pos]; ok {
		st.Species = p.Species
		st.Height = p.Height
	}
	return st
}
