// Package game hosts local cell rules on a rectangular grid: it owns the
// cell entities, captures neighbour snapshots, evaluates the rule for every
// cell and advances simulated time.
package game

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/canopy/components"
	"github.com/pthm-cable/canopy/systems"
	"github.com/pthm-cable/canopy/telemetry"
)

// Topology describes the grid shape and neighbourhood.
type Topology struct {
	Width, Height int
	Offsets       []components.GridPos // Relative neighbour positions, self excluded
	Wrap          bool                 // Toroidal edges
}

// Grid stores one state of type S per cell in an ECS world and steps the
// whole grid synchronously with a rule.
type Grid[S any] struct {
	topo Topology
	rule systems.Rule[S]

	world      *ecs.World
	cellMapper *ecs.Map2[components.GridPos, S]
	cellFilter *ecs.Filter2[components.GridPos, S]
	stateMap   *ecs.Map1[S]

	cells     []ecs.Entity         // Row-major
	positions []components.GridPos // Row-major
	neighbors [][]int32            // Neighbour indices per cell

	// Step buffers: snapshot is read-only during compute, next is written
	// by exactly one worker per slot.
	snapshot []S
	next     []S

	parallel *parallelState[S]
	perf     *telemetry.PerfCollector // nil disables phase timing

	time    float64
	steps   int
	stepped bool // Step has run since construction
}

// NewGrid creates a grid and populates every cell with init(pos).
func NewGrid[S any](topo Topology, rule systems.Rule[S], workers, threshold int, init func(components.GridPos) S) (*Grid[S], error) {
	if topo.Width <= 0 || topo.Height <= 0 {
		return nil, fmt.Errorf("grid dimensions must be positive, got %dx%d", topo.Width, topo.Height)
	}
	world := ecs.NewWorld()
	n := topo.Width * topo.Height

	g := &Grid[S]{
		topo:       topo,
		rule:       rule,
		world:      world,
		cellMapper: ecs.NewMap2[components.GridPos, S](world),
		cellFilter: ecs.NewFilter2[components.GridPos, S](world),
		stateMap:   ecs.NewMap1[S](world),
		cells:      make([]ecs.Entity, n),
		positions:  make([]components.GridPos, n),
		neighbors:  make([][]int32, n),
		snapshot:   make([]S, n),
		next:       make([]S, n),
		parallel:   newParallelState[S](workers, threshold),
	}

	for y := 0; y < topo.Height; y++ {
		for x := 0; x < topo.Width; x++ {
			i := y*topo.Width + x
			pos := components.GridPos{X: x, Y: y}
			state := init(pos)
			g.positions[i] = pos
			g.cells[i] = g.cellMapper.NewEntity(&pos, &state)
		}
	}
	g.buildNeighbors()

	return g, nil
}

// buildNeighbors resolves every cell's neighbour offsets to cell indices.
func (g *Grid[S]) buildNeighbors() {
	w, h := g.topo.Width, g.topo.Height
	for i, pos := range g.positions {
		list := make([]int32, 0, len(g.topo.Offsets))
		for _, off := range g.topo.Offsets {
			nx, ny := pos.X+off.X, pos.Y+off.Y
			if g.topo.Wrap {
				nx = modInt(nx, w)
				ny = modInt(ny, h)
			} else if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			j := int32(ny*w + nx)
			if int(j) == i {
				continue
			}
			list = append(list, j)
		}
		g.neighbors[i] = list
	}
}

// Step advances every cell by one transition and returns the simulated time
// elapsed, the largest output delay reported for the new states.
func (g *Grid[S]) Step() float64 {
	n := len(g.cells)

	// Phase A: Build snapshots (single-threaded)
	g.perf.StartPhase(telemetry.PhaseSnapshot)
	for i, e := range g.cells {
		g.snapshot[i] = *g.stateMap.Get(e)
	}

	// Phase B: Compute - choose single or parallel based on cell count
	g.perf.StartPhase(telemetry.PhaseCompute)
	if n < g.parallel.threshold || g.parallel.numWorkers == 1 {
		g.computeChunk(0, n, &g.parallel.scratches[0])
	} else {
		g.computeParallel(n)
	}

	// Phase C: Apply (single-threaded, preserves determinism)
	g.perf.StartPhase(telemetry.PhaseApply)
	var delay float64
	for i, e := range g.cells {
		*g.stateMap.Get(e) = g.next[i]
		delay = max(delay, g.rule.OutputDelay(g.next[i]))
	}

	g.time += delay
	g.steps++
	g.stepped = true
	return delay
}

// Previous returns the states at the start of the last step, row-major.
// The slice is reused by the next Step.
func (g *Grid[S]) Previous() []S { return g.snapshot }

// Current returns the states produced by the last step, row-major.
// Before the first step it is empty. The slice is reused by the next Step.
func (g *Grid[S]) Current() []S {
	if !g.stepped {
		return nil
	}
	return g.next
}

// States returns a copy of every cell's state, row-major.
func (g *Grid[S]) States() []S {
	out := make([]S, len(g.cells))
	for i, e := range g.cells {
		out[i] = *g.stateMap.Get(e)
	}
	return out
}

// At returns the state of the cell at pos.
func (g *Grid[S]) At(pos components.GridPos) (S, bool) {
	i, ok := g.index(pos)
	if !ok {
		var zero S
		return zero, false
	}
	return *g.stateMap.Get(g.cells[i]), true
}

// Set replaces the state of the cell at pos.
func (g *Grid[S]) Set(pos components.GridPos, s S) error {
	i, ok := g.index(pos)
	if !ok {
		return fmt.Errorf("cell %s is outside the %dx%d grid", pos, g.topo.Width, g.topo.Height)
	}
	*g.stateMap.Get(g.cells[i]) = s
	return nil
}

// Each calls fn for every cell in storage order.
func (g *Grid[S]) Each(fn func(pos components.GridPos, s S)) {
	query := g.cellFilter.Query()
	for query.Next() {
		pos, s := query.Get()
		fn(*pos, *s)
	}
}

// Positions returns the cell positions, row-major.
func (g *Grid[S]) Positions() []components.GridPos { return g.positions }

// NeighborsOf returns the positions adjacent to pos.
func (g *Grid[S]) NeighborsOf(pos components.GridPos) []components.GridPos {
	i, ok := g.index(pos)
	if !ok {
		return nil
	}
	out := make([]components.GridPos, len(g.neighbors[i]))
	for k, j := range g.neighbors[i] {
		out[k] = g.positions[j]
	}
	return out
}

// SetPerf attaches a collector timing each step's phases. The caller
// brackets steps with StartStep and EndStep.
func (g *Grid[S]) SetPerf(p *telemetry.PerfCollector) { g.perf = p }

// SetClock restores the simulated time and step count, for resumed runs.
func (g *Grid[S]) SetClock(simTime float64, steps int) {
	g.time = simTime
	g.steps = steps
}

// Time returns the simulated time.
func (g *Grid[S]) Time() float64 { return g.time }

// Steps returns the number of steps taken.
func (g *Grid[S]) Steps() int { return g.steps }

// Len returns the number of cells.
func (g *Grid[S]) Len() int { return len(g.cells) }

// Topology returns the grid shape.
func (g *Grid[S]) Topology() Topology { return g.topo }

// Close stops the worker pool.
func (g *Grid[S]) Close() {
	g.parallel.stopWorkers()
}

func (g *Grid[S]) index(pos components.GridPos) (int, bool) {
	if pos.X < 0 || pos.Y < 0 || pos.X >= g.topo.Width || pos.Y >= g.topo.Height {
		return 0, false
	}
	return pos.Y*g.topo.Width + pos.X, true
}
