package components

import (
	"fmt"
	"math"

	"go.uber.org/multierr"
)

// PlantState is the full state of one grid cell: its resource stocks, its
// site parameters and the plant occupying it.
// Cells own their state exclusively; neighbours only ever see copies.
type PlantState struct {
	Current  Resources // Stock, updated every step
	Max      Resources // Carrying capacity (site fertility)
	Produced Resources // Autogenous production per step

	// Thresholds are stored per cell so an empty cell keeps them
	// while waiting for a seed.
	RequiredToSurvive Resources
	RequiredToGrow    Resources

	Species Species
	Height  int
}

// Empty reports whether no plant occupies the cell.
func (s PlantState) Empty() bool {
	return s.Species == SpeciesNone
}

// Clear resets the occupancy to the empty state.
func (s *PlantState) Clear() {
	s.Species = SpeciesNone
	s.Height = 0
}

// Validate checks the structural invariants of a state supplied from
// outside the rule. All problems are reported together.
func (s PlantState) Validate() error {
	var err error
	vectors := []struct {
		name string
		v    Resources
	}{
		{"current_resources", s.Current},
		{"max_resources", s.Max},
		{"produced_resources", s.Produced},
		{"required_to_survive", s.RequiredToSurvive},
		{"required_to_grow", s.RequiredToGrow},
	}
	for _, vec := range vectors {
		for i, c := range vec.v.Components() {
			switch {
			case math.IsNaN(c) || math.IsInf(c, 0):
				err = multierr.Append(err, fmt.Errorf("%s.%s is not finite (%g)", vec.name, ResourceNames[i], c))
			case c < 0:
				err = multierr.Append(err, fmt.Errorf("%s.%s is negative (%g)", vec.name, ResourceNames[i], c))
			}
		}
	}
	if !s.Max.AtLeast(s.Current) {
		err = multierr.Append(err, fmt.Errorf("current_resources %v exceed max_resources %v", s.Current, s.Max))
	}
	if !s.Species.Valid() {
		err = multierr.Append(err, fmt.Errorf("invalid species %d", uint8(s.Species)))
	}
	if s.Height < 0 {
		err = multierr.Append(err, fmt.Errorf("height is negative (%d)", s.Height))
	}
	if s.Species == SpeciesNone && s.Height != 0 {
		err = multierr.Append(err, fmt.Errorf("empty cell has height %d", s.Height))
	}
	return err
}

// String formats the state for logs.
func (s PlantState) String() string {
	return fmt.Sprintf("<%s h=%d cur=%v>", s.Species, s.Height, s.Current)
}
