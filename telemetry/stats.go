// Package telemetry summarises grid steps into population and resource
// statistics and writes them, along with the per-cell grid log, to disk.
package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/canopy/components"
)

// StepStats holds aggregated statistics for the grid after one step.
type StepStats struct {
	Step int     `csv:"step"`
	Time float64 `csv:"time"`

	// Population
	Occupied int `csv:"occupied"`
	Empty    int `csv:"empty"`
	Locust   int `csv:"locust"`
	Pine     int `csv:"pine"`
	Oak      int `csv:"oak"`

	// Events since the previous flush
	Colonized int `csv:"colonized"`
	Died      int `csv:"died"`
	Grew      int `csv:"grew"`

	// Height distribution over occupied cells
	HeightMean float64 `csv:"height_mean"`
	HeightP50  float64 `csv:"height_p50"`
	HeightP90  float64 `csv:"height_p90"`
	HeightMax  float64 `csv:"height_max"`

	// Resource means over all cells
	WaterMean     float64 `csv:"water_mean"`
	SunlightMean  float64 `csv:"sunlight_mean"`
	NitrogenMean  float64 `csv:"nitrogen_mean"`
	PotassiumMean float64 `csv:"potassium_mean"`
	TotalStock    float64 `csv:"total_stock"`

	Anomalies int64 `csv:"anomalies"`
}

// Percentile returns the p-th percentile (0-1) of a sorted slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeHeightStats calculates mean, median, p90 and max from plant heights.
func ComputeHeightStats(values []float64) (mean, p50, p90, maxH float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean = stat.Mean(sorted, nil)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)
	maxH = floats.Max(sorted)
	return mean, p50, p90, maxH
}

// ComputeStepStats summarises the grid states after a step. Event counts and
// the anomaly total are filled in by the Collector.
func ComputeStepStats(step int, simTime float64, states []components.PlantState) StepStats {
	s := StepStats{Step: step, Time: simTime}
	if len(states) == 0 {
		return s
	}

	heights := make([]float64, 0, len(states))
	stock := make([][]float64, components.NumResources)
	for k := range stock {
		stock[k] = make([]float64, len(states))
	}

	for i := range states {
		st := &states[i]
		switch st.Species {
		case components.SpeciesLocust:
			s.Locust++
		case components.SpeciesPine:
			s.Pine++
		case components.SpeciesOak:
			s.Oak++
		}
		if st.Empty() {
			s.Empty++
		} else {
			s.Occupied++
			heights = append(heights, float64(st.Height))
		}
		for k, v := range st.Current.Components() {
			stock[k][i] = v
		}
	}

	s.HeightMean, s.HeightP50, s.HeightP90, s.HeightMax = ComputeHeightStats(heights)

	s.WaterMean = stat.Mean(stock[0], nil)
	s.SunlightMean = stat.Mean(stock[1], nil)
	s.NitrogenMean = stat.Mean(stock[2], nil)
	s.PotassiumMean = stat.Mean(stock[3], nil)
	for _, col := range stock {
		s.TotalStock += floats.Sum(col)
	}
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s StepStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("step", s.Step),
		slog.Float64("time", s.Time),
		slog.Int("occupied", s.Occupied),
		slog.Int("locust", s.Locust),
		slog.Int("pine", s.Pine),
		slog.Int("oak", s.Oak),
		slog.Int("colonized", s.Colonized),
		slog.Int("died", s.Died),
		slog.Int("grew", s.Grew),
		slog.Float64("height_mean", s.HeightMean),
		slog.Float64("total_stock", s.TotalStock),
		slog.Int64("anomalies", s.Anomalies),
	)
}

// LogStats outputs the stats via slog.
func (s StepStats) LogStats() {
	slog.Info("stats",
		"step", s.Step,
		"time", s.Time,
		"occupied", s.Occupied,
		"empty", s.Empty,
		"locust", s.Locust,
		"pine", s.Pine,
		"oak", s.Oak,
		"colonized", s.Colonized,
		"died", s.Died,
		"grew", s.Grew,
		"height_mean", s.HeightMean,
		"height_p90", s.HeightP90,
		"water_mean", s.WaterMean,
		"total_stock", s.TotalStock,
		"anomalies", s.Anomalies,
	)
}
