package game

import (
	"bufio"
	"io"

	"github.com/pthm-cable/canopy/components"
)

// speciesGlyphs maps species to map characters; fully grown plants use the
// upper-case form.
var speciesGlyphs = [components.NumSpecies][2]byte{
	components.SpeciesNone:   {'.', '.'},
	components.SpeciesLocust: {'l', 'L'},
	components.SpeciesPine:   {'p', 'P'},
	components.SpeciesOak:    {'o', 'O'},
}

// WriteMap draws the grid as one character per cell, one row per line.
func (s *Simulation) WriteMap(w io.Writer) error {
	bw := bufio.NewWriter(w)
	topo := s.grid.Topology()
	states := s.grid.States()
	table := s.rule.Species()

	for y := 0; y < topo.Height; y++ {
		for x := 0; x < topo.Width; x++ {
			st := states[y*topo.Width+x]
			glyph := byte('?')
			if st.Species.Valid() {
				grown := 0
				if traits, ok := table.Traits(st.Species); ok && st.Height >= traits.MaxHeight {
					grown = 1
				}
				glyph = speciesGlyphs[st.Species][grown]
			}
			bw.WriteByte(glyph)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
