package systems

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/pthm-cable/canopy/components"
)

// Neighborhood maps each neighbour's position to a read-only copy of its
// state taken at the start of the step.
type Neighborhood[S any] map[components.GridPos]S

// Positions returns the neighbour positions in row-major order so callers
// can fold over neighbours with a stable floating-point summation order.
func (n Neighborhood[S]) Positions() []components.GridPos {
	keys := make([]components.GridPos, 0, len(n))
	for k := range n {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b components.GridPos) int {
		if c := cmp.Compare(a.Y, b.Y); c != 0 {
			return c
		}
		return cmp.Compare(a.X, b.X)
	})
	return keys
}

// Rule is a local cell computation: the next state of a cell from its own
// state and its neighbours' snapshot, plus the delay before that state
// becomes visible. Implementations must be pure and safe for concurrent use.
type Rule[S any] interface {
	Transition(self S, neighbors Neighborhood[S]) S
	OutputDelay(state S) float64
}

// AnomalyKind classifies a reported numeric anomaly.
type AnomalyKind uint8

const (
	AnomalyNegativeStock  AnomalyKind = iota // Resource below zero after diffusion/production
	AnomalyUnknownSpecies                    // Species with no table entry
)

func (k AnomalyKind) String() string {
	switch k {
	case AnomalyNegativeStock:
		return "negative_stock"
	case AnomalyUnknownSpecies:
		return "unknown_species"
	default:
		return "unknown"
	}
}

// Anomaly describes an input defect the rule corrected without failing.
type Anomaly struct {
	Kind     AnomalyKind
	Resource string // Resource name for stock anomalies
	Value    float64
	Species  components.Species
}

// AnomalySink receives anomalies. It is called from worker goroutines.
type AnomalySink interface {
	ReportAnomaly(Anomaly)
}

// LogSink writes anomalies to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

// ReportAnomaly logs the anomaly at warn level.
func (s LogSink) ReportAnomaly(a Anomaly) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("cell anomaly",
		"kind", a.Kind.String(),
		"resource", a.Resource,
		"value", a.Value,
		"species", a.Species.String(),
	)
}
