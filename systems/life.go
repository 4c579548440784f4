package systems

import "github.com/pthm-cable/canopy/components"

// LifeRule is Conway's Game of Life expressed as a local cell rule: a live
// cell survives with two or three live neighbours, a dead cell is born with
// exactly three.
type LifeRule struct{}

var _ Rule[components.LifeState] = LifeRule{}

// Transition computes the next life state.
func (LifeRule) Transition(self components.LifeState, neighbors Neighborhood[components.LifeState]) components.LifeState {
	live := 0
	for _, n := range neighbors {
		if n.Alive {
			live++
		}
	}
	if self.Alive {
		return components.LifeState{Alive: live == 2 || live == 3}
	}
	return components.LifeState{Alive: live == 3}
}

// OutputDelay is one time unit.
func (LifeRule) OutputDelay(components.LifeState) float64 { return 1 }
