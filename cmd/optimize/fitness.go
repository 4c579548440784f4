package main

import (
	"io"
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/canopy/components"
	"github.com/pthm-cable/canopy/config"
	"github.com/pthm-cable/canopy/game"
	"github.com/pthm-cable/canopy/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	maxTime    float64
	seeds      []int64
	baseConfig *config.Config
	logger     *slog.Logger

	mu          sync.Mutex
	lastQuality float64 // quality from most recent Evaluate call
	lastSurvive float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTime float64, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		maxTime:    maxTime,
		seeds:      seeds,
		baseConfig: baseCfg,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// LastSurvival returns the mean coexistence time from the most recent evaluation.
func (fe *FitnessEvaluator) LastSurvival() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastSurvive
}

// runResult holds the results from a single simulation run.
type runResult struct {
	survivalTime float64               // time of the first extinction, or maxTime
	windows      []telemetry.StepStats // one entry per stats flush
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]runResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(x, s)
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalQuality, totalSurvival float64
	for i := range results {
		q := computeQuality(results[i].windows, fe.baseConfig.Derived.CellCount)
		totalFitness += computeFitness(results[i].survivalTime, q)
		totalQuality += q
		totalSurvival += results[i].survivalTime
	}

	n := float64(len(fe.seeds))
	fe.mu.Lock()
	fe.lastQuality = totalQuality / n
	fe.lastSurvive = totalSurvival / n
	fe.mu.Unlock()

	return totalFitness / n
}

// runSimulation plays one seed until maxTime or until a species that was
// present dies out.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) runResult {
	cfg := *fe.baseConfig
	fe.params.ApplyToConfig(&cfg, fe.baseConfig, x)
	cfg.Scenario.Seed = seed
	// Seeds already run concurrently.
	cfg.Parallel.Workers = 1

	sim, err := game.NewSimulation(&cfg, game.Options{Logger: fe.logger})
	if err != nil {
		return runResult{}
	}
	defer sim.Close()

	var result runResult
	present := speciesPresent(telemetry.ComputeStepStats(0, 0, sim.Grid().States()))
	every := cfg.Telemetry.StatsEvery

	for sim.Grid().Time() < fe.maxTime {
		if err := sim.Step(); err != nil {
			break
		}
		if sim.Grid().Steps()%every != 0 {
			continue
		}
		stats := sim.LastStats()
		result.windows = append(result.windows, stats)
		now := speciesPresent(stats)
		for i := range present {
			if present[i] && !now[i] {
				result.survivalTime = sim.Grid().Time()
				return result
			}
		}
	}
	result.survivalTime = fe.maxTime
	return result
}

// speciesPresent reports which occupying species have at least one plant,
// in locust, pine, oak order.
func speciesPresent(s telemetry.StepStats) [3]bool {
	return [3]bool{s.Locust > 0, s.Pine > 0, s.Oak > 0}
}

// computeFitness calculates the scalar fitness (lower = better).
// Formula: -(survivalTime × (1.0 + 0.5 × quality))
// Coexistence time dominates; quality separates runs that all last to the cap.
func computeFitness(survivalTime, quality float64) float64 {
	return -(survivalTime * (1.0 + 0.5*quality))
}

// Quality component weights.
const (
	qualityWeightDiversity = 0.5
	qualityWeightCover     = 0.3
	qualityWeightStability = 0.2

	qualityWarmupWindows = 2 // skip first N windows while seedlings spread
	qualityTargetCover   = 0.7
)

// computeQuality scores a run ∈ [0, 1] from its stats windows: evenness of
// the species mix, canopy cover near the target and steady occupancy.
func computeQuality(windows []telemetry.StepStats, cells int) float64 {
	if len(windows) <= qualityWarmupWindows || cells <= 0 {
		return 0
	}
	valid := windows[qualityWarmupWindows:]

	var diversitySum, coverSum float64
	occupied := make([]float64, 0, len(valid))
	maxEntropy := math.Log(float64(len(components.OccupyingSpecies())))

	for _, w := range valid {
		occupied = append(occupied, float64(w.Occupied))
		if w.Occupied == 0 {
			continue
		}
		shares := []float64{
			float64(w.Locust) / float64(w.Occupied),
			float64(w.Pine) / float64(w.Occupied),
			float64(w.Oak) / float64(w.Occupied),
		}
		diversitySum += stat.Entropy(shares) / maxEntropy

		cover := float64(w.Occupied) / float64(cells)
		d := (cover - qualityTargetCover) / 0.25
		coverSum += math.Exp(-d * d)
	}

	n := float64(len(valid))
	stability := 0.0
	if len(occupied) >= 2 {
		if mean, std := stat.MeanStdDev(occupied, nil); mean > 0 {
			cv := std / mean
			stability = math.Exp(-cv * cv * 10)
		}
	}

	quality := qualityWeightDiversity*diversitySum/n +
		qualityWeightCover*coverSum/n +
		qualityWeightStability*stability
	return clamp01(quality)
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	return min(max(x, 0), 1)
}
