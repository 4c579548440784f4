package systems

import (
	"fmt"

	"github.com/pthm-cable/canopy/components"
	"github.com/pthm-cable/canopy/config"
)

// debugAssertions enables internal consistency panics. Tests turn it on.
var debugAssertions = false

// PlantGrowthRule is the multi-resource plant population rule: resources
// diffuse between neighbours, every cell produces and is capped, empty cells
// are colonised by the strongest viable seed and occupied cells die, grow or
// merely survive depending on their stock.
type PlantGrowthRule struct {
	species  *SpeciesTable
	fraction float64
	delay    float64
	sink     AnomalySink
}

var _ Rule[components.PlantState] = (*PlantGrowthRule)(nil)

// NewPlantGrowthRule creates the rule. A nil sink logs anomalies to slog.Default().
func NewPlantGrowthRule(table *SpeciesTable, rc config.RuleConfig, sink AnomalySink) *PlantGrowthRule {
	if sink == nil {
		sink = LogSink{}
	}
	return &PlantGrowthRule{
		species:  table,
		fraction: rc.DiffusionFraction,
		delay:    rc.OutputDelay,
		sink:     sink,
	}
}

// Species returns the table the rule consults.
func (r *PlantGrowthRule) Species() *SpeciesTable { return r.species }

// Transition computes the next state of a cell.
func (r *PlantGrowthRule) Transition(self components.PlantState, neighbors Neighborhood[components.PlantState]) components.PlantState {
	next := self
	bestSeed := components.SpeciesNone

	// Diffusion and seed competition. Every neighbour pulls against the
	// step-start stock, so the per-neighbour updates are independent.
	var inflow components.Resources
	for _, pos := range neighbors.Positions() {
		n := neighbors[pos]
		inflow = inflow.Add(self.Current.DiffuseToward(n.Current, r.fraction))

		if self.Empty() && r.viableSeed(n) && n.Species.Rank() > bestSeed.Rank() {
			bestSeed = n.Species
		}
	}
	next.Current = next.Current.Add(inflow)

	// Autogenous production
	next.Current = next.Current.Add(next.Produced)

	// Carrying capacity, then non-negativity
	next.Current = next.Current.Min(next.Max)
	clamped, idx := next.Current.ClampNonNegative()
	for _, i := range idx {
		r.sink.ReportAnomaly(Anomaly{
			Kind:     AnomalyNegativeStock,
			Resource: components.ResourceNames[i],
			Value:    next.Current.Components()[i],
			Species:  next.Species,
		})
	}
	next.Current = clamped

	if next.Empty() {
		next.Species = bestSeed
		next.Height = 0
		return next
	}

	traits, ok := r.species.Traits(next.Species)
	if !ok {
		r.sink.ReportAnomaly(Anomaly{Kind: AnomalyUnknownSpecies, Species: next.Species})
		return next
	}

	switch {
	case next.Current.AnyBelow(next.RequiredToSurvive):
		// Starved: the cell is freed without consuming anything
		next.Clear()
	case next.Height >= traits.MaxHeight:
		// Fully grown: stable, no upkeep
	case next.Current.AtLeast(next.RequiredToGrow):
		next.Current = consume(next.Current, next.RequiredToGrow)
		next.Height++
	default:
		next.Current = consume(next.Current, next.RequiredToSurvive)
	}
	return next
}

// OutputDelay reports the constant delay before a new state is visible.
func (r *PlantGrowthRule) OutputDelay(components.PlantState) float64 {
	return r.delay
}

// viableSeed reports whether an occupied neighbour is tall enough to seed.
func (r *PlantGrowthRule) viableSeed(n components.PlantState) bool {
	if n.Empty() {
		return false
	}
	traits, ok := r.species.Traits(n.Species)
	if !ok {
		r.sink.ReportAnomaly(Anomaly{Kind: AnomalyUnknownSpecies, Species: n.Species})
		return false
	}
	return n.Height >= traits.SeedHeightThreshold
}

// consume subtracts a requirement the caller has already checked is covered.
func consume(stock, req components.Resources) components.Resources {
	if debugAssertions && !stock.AtLeast(req) {
		panic(fmt.Sprintf("consume: stock %v does not cover %v", stock, req))
	}
	return stock.Sub(req)
}
