package systems

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/pthm-cable/canopy/components"
	"github.com/pthm-cable/canopy/config"
)

// SpeciesTraits holds the per-species constants consulted by the growth rule.
type SpeciesTraits struct {
	SeedHeightThreshold int // Minimum height for a plant to seed neighbours
	MaxHeight           int // Growth ceiling
}

// SpeciesTable is an immutable lookup from species to traits.
// It is built once before simulation and shared freely between goroutines.
type SpeciesTable struct {
	traits [components.NumSpecies]SpeciesTraits
	known  [components.NumSpecies]bool
}

// NewSpeciesTable builds the table from configuration entries. Every
// occupying species must be listed exactly once; nothing is defaulted.
func NewSpeciesTable(entries []config.SpeciesConfig) (*SpeciesTable, error) {
	t := &SpeciesTable{}
	var err error
	for _, e := range entries {
		sp, perr := components.ParseSpecies(e.Name)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("species table: %w", perr))
			continue
		}
		if sp == components.SpeciesNone {
			err = multierr.Append(err, fmt.Errorf("species table: %q cannot have traits", e.Name))
			continue
		}
		if t.known[sp] {
			err = multierr.Append(err, fmt.Errorf("species table: duplicate entry for %s", sp))
			continue
		}
		if e.SeedHeightThreshold < 0 {
			err = multierr.Append(err, fmt.Errorf("species table: %s seed_height_threshold is negative", sp))
		}
		if e.MaxHeight < 1 {
			err = multierr.Append(err, fmt.Errorf("species table: %s max_height must be >= 1", sp))
		}
		t.traits[sp] = SpeciesTraits{SeedHeightThreshold: e.SeedHeightThreshold, MaxHeight: e.MaxHeight}
		t.known[sp] = true
	}
	for _, sp := range components.OccupyingSpecies() {
		if !t.known[sp] {
			err = multierr.Append(err, fmt.Errorf("species table: missing entry for %s", sp))
		}
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Traits returns the traits for s. ok is false for the empty species and
// for values outside the enumeration.
func (t *SpeciesTable) Traits(s components.Species) (SpeciesTraits, bool) {
	if int(s) >= len(t.known) || !t.known[s] {
		return SpeciesTraits{}, false
	}
	return t.traits[s], true
}
