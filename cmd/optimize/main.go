// Command optimize searches rule and resource parameters with CMA-ES for
// configurations where every planted species coexists for as long as possible.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/canopy/config"
)

// evalLog appends one CSV row per evaluation and remembers the best one.
type evalLog struct {
	w      *csv.Writer
	params *ParamVector

	count       int
	bestFitness float64
	bestParams  []float64
}

func newEvalLog(f *os.File, params *ParamVector) (*evalLog, error) {
	l := &evalLog{w: csv.NewWriter(f), params: params, bestFitness: 1e18}
	header := []string{"eval", "fitness", "survival", "quality"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	if err := l.w.Write(header); err != nil {
		return nil, err
	}
	l.w.Flush()
	return l, l.w.Error()
}

// record logs the clamped values, the ones the runs actually used.
func (l *evalLog) record(values []float64, fitness, survival, quality float64) error {
	l.count++
	if fitness < l.bestFitness {
		l.bestFitness = fitness
		l.bestParams = values
	}
	row := []string{
		strconv.Itoa(l.count),
		strconv.FormatFloat(fitness, 'f', 4, 64),
		strconv.FormatFloat(survival, 'f', 2, 64),
		strconv.FormatFloat(quality, 'f', 4, 64),
	}
	for _, v := range values {
		row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
	}
	if err := l.w.Write(row); err != nil {
		return err
	}
	l.w.Flush()
	return l.w.Error()
}

// formatDuration formats a duration as HhMMmSSs or MmSSs for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	maxTime := flag.Float64("max-time", 500, "Simulated time per run (cap)")
	seeds := flag.Int("seeds", 3, "Number of scenario seeds per evaluation")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	if *outputDir == "" {
		fatal("-output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fatal("failed to create output directory", "error", err)
	}
	if err := config.Init(*configPath); err != nil {
		fatal("failed to load config", "error", err)
	}
	baseCfg := config.Cfg()
	params := NewParamVector()

	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000) + baseCfg.Scenario.Seed
	}
	evaluator := NewFitnessEvaluator(params, *maxTime, evalSeeds, baseCfg)

	logFile, err := os.Create(filepath.Join(*outputDir, "optimize_log.csv"))
	if err != nil {
		fatal("failed to create log file", "error", err)
	}
	defer logFile.Close()
	evals, err := newEvalLog(logFile, params)
	if err != nil {
		fatal("failed to write log header", "error", err)
	}

	startTime := time.Now()
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			values := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(values)
			survival, quality := evaluator.LastSurvival(), evaluator.LastQuality()
			if err := evals.record(values, fitness, survival, quality); err != nil {
				slog.Warn("failed to log evaluation", "error", err)
			}

			elapsed := time.Since(startTime)
			remaining := time.Duration(*maxEvals-evals.count) * (elapsed / time.Duration(evals.count))
			slog.Info("eval",
				"n", evals.count,
				"of", *maxEvals,
				"coexisted", survival,
				"quality", quality,
				"best", evals.bestFitness,
				"elapsed", formatDuration(elapsed),
				"eta", formatDuration(remaining),
			)
			return fitness
		},
	}

	dim := params.Dim()
	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}
	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // Sequential; seeds run in parallel inside Evaluate
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	slog.Info("starting CMA-ES",
		"params", dim,
		"population", popSize,
		"max_evals", *maxEvals,
		"seeds", *seeds,
		"max_time", *maxTime,
	)

	initX := params.Normalize(params.Clamp(params.ExtractFromConfig(baseCfg)))
	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}

	// The best point may come from any evaluation, not just the final one.
	best := evals.bestParams
	if best == nil && result != nil {
		best = params.Clamp(params.Denormalize(result.X))
	}
	if best == nil {
		fatal("no evaluations completed")
	}

	attrs := []any{"evals", evals.count, "fitness", evals.bestFitness, "took", formatDuration(time.Since(startTime))}
	for i, spec := range params.Specs {
		attrs = append(attrs, spec.Name, best[i])
	}
	slog.Info("optimization complete", attrs...)

	bestCfg := *baseCfg
	params.ApplyToConfig(&bestCfg, baseCfg, best)

	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		fatal("failed to write best config", "error", err)
	}
	slog.Info("best config saved", "path", configOutPath)
}
