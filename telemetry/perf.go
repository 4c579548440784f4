package telemetry

import (
	"log/slog"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Phase identifies one timed part of a grid step.
type Phase int

// Step phases, in execution order.
const (
	PhaseSnapshot Phase = iota
	PhaseCompute
	PhaseApply
	PhaseTelemetry
	numPhases
)

var phaseNames = [numPhases]string{"snapshot", "compute", "apply", "telemetry"}

func (p Phase) String() string {
	if p < 0 || p >= numPhases {
		return "unknown"
	}
	return phaseNames[p]
}

// PerfCollector keeps the last windowSize step timings in a ring. A nil
// collector ignores every call.
type PerfCollector struct {
	steps  []float64 // step durations in nanoseconds
	phases [][numPhases]time.Duration
	next   int
	filled int

	stepStart  time.Time
	phaseStart time.Time
	current    Phase
	inPhase    bool
	pending    [numPhases]time.Duration
}

// NewPerfCollector creates a collector averaging over windowSize steps.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		steps:  make([]float64, windowSize),
		phases: make([][numPhases]time.Duration, windowSize),
	}
}

// StartStep begins timing a new step.
func (p *PerfCollector) StartStep() {
	if p == nil {
		return
	}
	p.stepStart = time.Now()
	p.pending = [numPhases]time.Duration{}
	p.inPhase = false
}

// StartPhase closes the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase Phase) {
	if p == nil {
		return
	}
	now := p.closePhase()
	p.phaseStart = now
	p.current = phase
	p.inPhase = true
}

func (p *PerfCollector) closePhase() time.Time {
	now := time.Now()
	if p.inPhase && p.current >= 0 && p.current < numPhases {
		p.pending[p.current] += now.Sub(p.phaseStart)
	}
	return now
}

// EndStep closes the running phase and stores the step in the ring.
func (p *PerfCollector) EndStep() {
	if p == nil {
		return
	}
	now := p.closePhase()
	p.inPhase = false

	p.steps[p.next] = float64(now.Sub(p.stepStart))
	p.phases[p.next] = p.pending
	p.next = (p.next + 1) % len(p.steps)
	p.filled = min(p.filled+1, len(p.steps))
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgStepDuration time.Duration
	MinStepDuration time.Duration
	MaxStepDuration time.Duration

	PhaseAvg [numPhases]time.Duration
	PhasePct [numPhases]float64 // Share of the average step

	StepsPerSecond float64
}

// Stats aggregates the steps currently held in the ring.
func (p *PerfCollector) Stats() PerfStats {
	var out PerfStats
	if p == nil || p.filled == 0 {
		return out
	}

	window := p.steps[:p.filled]
	n := time.Duration(p.filled)
	out.AvgStepDuration = time.Duration(floats.Sum(window)) / n
	out.MinStepDuration = time.Duration(floats.Min(window))
	out.MaxStepDuration = time.Duration(floats.Max(window))

	for _, sample := range p.phases[:p.filled] {
		for ph, d := range sample {
			out.PhaseAvg[ph] += d
		}
	}
	for ph := range out.PhaseAvg {
		out.PhaseAvg[ph] /= n
		if out.AvgStepDuration > 0 {
			out.PhasePct[ph] = float64(out.PhaseAvg[ph]) / float64(out.AvgStepDuration) * 100
		}
	}
	if out.AvgStepDuration > 0 {
		out.StepsPerSecond = float64(time.Second) / float64(out.AvgStepDuration)
	}
	return out
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_step_us", s.AvgStepDuration.Microseconds(),
		"min_step_us", s.MinStepDuration.Microseconds(),
		"max_step_us", s.MaxStepDuration.Microseconds(),
		"steps_per_sec", int(s.StepsPerSecond),
	}
	for ph, pct := range s.PhasePct {
		if pct > 0.1 {
			attrs = append(attrs, Phase(ph).String()+"_pct", int(pct*10)/10.0)
		}
	}
	slog.Info("perf", attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd    int     `csv:"window_end"`
	AvgStepUS    int64   `csv:"avg_step_us"`
	MinStepUS    int64   `csv:"min_step_us"`
	MaxStepUS    int64   `csv:"max_step_us"`
	StepsPerSec  float64 `csv:"steps_per_sec"`
	SnapshotPct  float64 `csv:"snapshot_pct"`
	ComputePct   float64 `csv:"compute_pct"`
	ApplyPct     float64 `csv:"apply_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(windowEnd int) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:    windowEnd,
		AvgStepUS:    s.AvgStepDuration.Microseconds(),
		MinStepUS:    s.MinStepDuration.Microseconds(),
		MaxStepUS:    s.MaxStepDuration.Microseconds(),
		StepsPerSec:  s.StepsPerSecond,
		SnapshotPct:  s.PhasePct[PhaseSnapshot],
		ComputePct:   s.PhasePct[PhaseCompute],
		ApplyPct:     s.PhasePct[PhaseApply],
		TelemetryPct: s.PhasePct[PhaseTelemetry],
	}
}
