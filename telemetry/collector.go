package telemetry

import (
	"github.com/pthm-cable/canopy/components"
)

// Collector accumulates cell events over a window of steps.
type Collector struct {
	every int // Steps per window

	// Window counters (reset each flush)
	colonized int
	died      int
	grew      int

	windowStart int
}

// NewCollector creates a collector that flushes every `every` steps.
func NewCollector(every int) *Collector {
	if every < 1 {
		every = 1
	}
	return &Collector{every: every}
}

// StartWindow begins the current window at step, for resumed runs.
func (c *Collector) StartWindow(step int) {
	c.windowStart = step
}

// RecordStep classifies each cell's transition between prev and next.
// Both slices are row-major over the same grid.
func (c *Collector) RecordStep(prev, next []components.PlantState) {
	for i := range next {
		p, n := &prev[i], &next[i]
		switch {
		case p.Empty() && !n.Empty():
			c.colonized++
		case !p.Empty() && n.Empty():
			c.died++
		case !n.Empty() && n.Height > p.Height:
			c.grew++
		}
	}
}

// ShouldFlush returns true if the window is complete at this step.
func (c *Collector) ShouldFlush(step int) bool {
	return step-c.windowStart >= c.every
}

// Flush attaches the window's event counts to stats and resets the window.
func (c *Collector) Flush(stats StepStats, anomalies int64) StepStats {
	stats.Colonized = c.colonized
	stats.Died = c.died
	stats.Grew = c.grew
	stats.Anomalies = anomalies

	c.colonized = 0
	c.died = 0
	c.grew = 0
	c.windowStart = stats.Step
	return stats
}
