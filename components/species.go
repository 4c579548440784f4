package components

import "fmt"

// Species identifies the plant occupying a cell.
// Declaration order is the seed preemption order: later species win.
type Species uint8

const (
	SpeciesNone Species = iota // Empty cell, open for colonization
	SpeciesLocust
	SpeciesPine
	SpeciesOak
)

// NumSpecies counts the enumeration values, SpeciesNone included.
const NumSpecies = int(SpeciesOak) + 1

var speciesNames = [...]string{"none", "locust", "pine", "oak"}

// OccupyingSpecies lists every species a cell can hold, in rank order.
func OccupyingSpecies() []Species {
	return []Species{SpeciesLocust, SpeciesPine, SpeciesOak}
}

// Rank returns the preemption rank of s. Higher ranks override lower ones
// when several seeds compete for the same empty cell.
func (s Species) Rank() int {
	switch s {
	case SpeciesLocust:
		return 1
	case SpeciesPine:
		return 2
	case SpeciesOak:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the declared species.
func (s Species) Valid() bool {
	return int(s) < len(speciesNames)
}

// String returns the lowercase species name.
func (s Species) String() string {
	if s.Valid() {
		return speciesNames[s]
	}
	return fmt.Sprintf("species(%d)", uint8(s))
}

// ParseSpecies resolves a species name. Unknown names are an error; there is
// no fallback species.
func ParseSpecies(name string) (Species, error) {
	for i, n := range speciesNames {
		if n == name {
			return Species(i), nil
		}
	}
	return SpeciesNone, fmt.Errorf("unknown species %q", name)
}

// MarshalText encodes the species by name for YAML and JSON.
func (s Species) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid species %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a species name.
func (s *Species) UnmarshalText(text []byte) error {
	parsed, err := ParseSpecies(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
