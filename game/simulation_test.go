package game

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/canopy/components"
	"github.com/pthm-cable/canopy/config"
	"github.com/pthm-cable/canopy/telemetry"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// randomRecords fills every cell with a valid random state.
func randomRecords(cfg *config.Config, rng *rand.Rand) map[components.GridPos]components.PlantState {
	maxHeight := map[components.Species]int{}
	for _, sc := range cfg.Species {
		sp, _ := components.ParseSpecies(sc.Name)
		maxHeight[sp] = sc.MaxHeight
	}
	vec := func(lo, hi float64) components.Resources {
		f := func() float64 { return lo + rng.Float64()*(hi-lo) }
		return components.Resources{Water: f(), Sunlight: f(), Nitrogen: f(), Potassium: f()}
	}

	out := map[components.GridPos]components.PlantState{}
	for y := 0; y < cfg.Grid.Height; y++ {
		for x := 0; x < cfg.Grid.Width; x++ {
			st := components.PlantState{
				Max:               vec(20, 60),
				Produced:          vec(0, 4),
				RequiredToSurvive: vec(0.5, 2),
				RequiredToGrow:    vec(2, 6),
			}
			st.Current = vec(0, 20).Min(st.Max)
			if sp := components.Species(rng.IntN(components.NumSpecies)); sp != components.SpeciesNone {
				st.Species = sp
				st.Height = rng.IntN(maxHeight[sp] + 1)
			}
			out[components.GridPos{X: x, Y: y}] = st
		}
	}
	return out
}

func checkInvariants(t *testing.T, cfg *config.Config, states []components.PlantState, step int) {
	t.Helper()
	maxHeight := map[components.Species]int{}
	for _, sc := range cfg.Species {
		sp, _ := components.ParseSpecies(sc.Name)
		maxHeight[sp] = sc.MaxHeight
	}
	for i, st := range states {
		if !st.Max.AtLeast(st.Current) {
			t.Fatalf("step %d cell %d: stock %v exceeds capacity %v", step, i, st.Current, st.Max)
		}
		if st.Current.AnyBelow(components.Resources{}) {
			t.Fatalf("step %d cell %d: negative stock %v", step, i, st.Current)
		}
		if st.Empty() && st.Height != 0 {
			t.Fatalf("step %d cell %d: empty cell with height %d", step, i, st.Height)
		}
		if !st.Empty() && st.Height > maxHeight[st.Species] {
			t.Fatalf("step %d cell %d: %v taller than %d", step, i, st, maxHeight[st.Species])
		}
	}
}

func TestSimulationInvariantsOverManySteps(t *testing.T) {
	for _, hood := range []string{config.NeighborhoodVonNeumann, config.NeighborhoodMoore} {
		t.Run(hood, func(t *testing.T) {
			cfg := mustParse(t, "grid: { width: 20, height: 15, neighborhood: "+hood+" }\nscenario:\n  plantings: []\n")
			rng := rand.New(rand.NewPCG(3, 5))

			sim, err := NewSimulation(cfg, Options{Records: randomRecords(cfg, rng), Logger: quietLogger()})
			if err != nil {
				t.Fatal(err)
			}
			defer sim.Close()

			for step := 1; step <= 60; step++ {
				if err := sim.Step(); err != nil {
					t.Fatal(err)
				}
				checkInvariants(t, cfg, sim.Grid().Current(), step)
			}
		})
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	cfg := mustParse(t, "grid: { width: 24, height: 18, neighborhood: moore, wrap: true }\nscenario:\n  plantings: []\n")
	records := randomRecords(cfg, rand.New(rand.NewPCG(11, 13)))

	run := func(workers, threshold int) ([]components.PlantState, int64) {
		c := *cfg
		c.Parallel = config.ParallelConfig{Workers: workers, Threshold: threshold}
		sim, err := NewSimulation(&c, Options{Records: records, Logger: quietLogger()})
		if err != nil {
			t.Fatal(err)
		}
		defer sim.Close()
		if err := sim.RunUntil(context.Background(), 25); err != nil {
			t.Fatal(err)
		}
		return sim.Grid().States(), sim.Anomalies()
	}

	serial, serialAnomalies := run(1, 0)
	parallel, parallelAnomalies := run(4, 1)

	for i := range serial {
		if serial[i] != parallel[i] {
			t.Fatalf("cell %d differs: serial %v, parallel %v", i, serial[i], parallel[i])
		}
	}
	if serialAnomalies != parallelAnomalies {
		t.Errorf("anomalies: serial %d, parallel %d", serialAnomalies, parallelAnomalies)
	}
}

func TestPlantingsSpread(t *testing.T) {
	cfg := mustParse(t, `
grid: { width: 12, height: 12 }
scenario:
  fertility: { strength: 0 }
  plantings:
    - { x: 6, y: 6, species: locust, height: 10 }
`)
	sim, err := NewSimulation(cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer sim.Close()

	if err := sim.Step(); err != nil {
		t.Fatal(err)
	}
	// A tall locust seeds its four empty neighbours in one step.
	for _, p := range []components.GridPos{{X: 6, Y: 5}, {X: 5, Y: 6}, {X: 7, Y: 6}, {X: 6, Y: 7}} {
		st, _ := sim.Grid().At(p)
		if st.Species != components.SpeciesLocust || st.Height != 0 {
			t.Errorf("cell %s = %v, want a locust seedling", p, st)
		}
	}
	if st, _ := sim.Grid().At(components.GridPos{X: 7, Y: 7}); !st.Empty() {
		t.Errorf("diagonal cell should stay empty under von neumann, got %v", st)
	}
}

func TestRunUntilWritesOutputAndResumes(t *testing.T) {
	dir := t.TempDir()
	cfg := mustParse(t, `
grid: { width: 6, height: 4 }
scenario:
  plantings:
    - { x: 2, y: 2, species: oak, height: 20 }
telemetry: { stats_every: 5, grid_log: true, snapshots: false }
`)

	sim, err := NewSimulation(cfg, Options{OutputDir: dir, Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.RunUntil(context.Background(), 20); err != nil {
		t.Fatal(err)
	}
	if sim.Grid().Steps() != 20 || sim.Grid().Time() != 20 {
		t.Errorf("steps/time = %d/%v, want 20/20", sim.Grid().Steps(), sim.Grid().Time())
	}
	if got := sim.LastStats().Step; got != 20 {
		t.Errorf("last stats step = %d, want 20", got)
	}
	if err := sim.SaveFinal(); err != nil {
		t.Fatal(err)
	}
	final := sim.Grid().States()
	if err := sim.Close(); err != nil {
		t.Fatal(err)
	}

	countLines := func(name string) int {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		return len(strings.Split(strings.TrimSpace(string(data)), "\n"))
	}
	if n := countLines("stats.csv"); n != 5 {
		t.Errorf("stats.csv has %d lines, want header + 4", n)
	}
	if n := countLines("grid_log.csv"); n != 1+24*21 {
		t.Errorf("grid_log.csv has %d lines, want header + 24 cells x 21 times", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Error(err)
	}

	snap, err := telemetry.LoadSnapshot(filepath.Join(dir, "snapshots", "snapshot_20.json"))
	if err != nil {
		t.Fatal(err)
	}
	resumed, err := NewSimulation(cfg, Options{Resume: snap, Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	defer resumed.Close()
	if resumed.Grid().Steps() != 20 || resumed.Grid().Time() != 20 {
		t.Errorf("resumed clock = %d/%v", resumed.Grid().Steps(), resumed.Grid().Time())
	}
	for i, st := range resumed.Grid().States() {
		if st != final[i] {
			t.Fatalf("resumed cell %d = %v, want %v", i, st, final[i])
		}
	}
}

func TestResumeRejectsMismatchedGrid(t *testing.T) {
	cfg := mustParse(t, "grid: { width: 6, height: 4 }\nscenario:\n  plantings: []\n")
	snap := &telemetry.Snapshot{Version: telemetry.SnapshotVersion, Width: 5, Height: 4}
	if _, err := NewSimulation(cfg, Options{Resume: snap}); err == nil {
		t.Fatal("expected grid mismatch error")
	}
}

func TestRunUntilStopsOnCancel(t *testing.T) {
	cfg := mustParse(t, "grid: { width: 4, height: 4 }\nscenario:\n  plantings: []\n")
	sim, err := NewSimulation(cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer sim.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sim.RunUntil(ctx, 100); !errors.Is(err, context.Canceled) {
		t.Fatalf("RunUntil = %v, want context.Canceled", err)
	}
	if sim.Grid().Steps() != 0 {
		t.Errorf("no step should run after cancel, got %d", sim.Grid().Steps())
	}
}

func TestWriteMap(t *testing.T) {
	cfg := mustParse(t, `
grid: { width: 3, height: 2 }
scenario:
  plantings:
    - { x: 0, y: 0, species: oak, height: 80 }
    - { x: 2, y: 1, species: pine, height: 1 }
`)
	sim, err := NewSimulation(cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer sim.Close()

	var b strings.Builder
	if err := sim.WriteMap(&b); err != nil {
		t.Fatal(err)
	}
	if want := "O..\n..p\n"; b.String() != want {
		t.Errorf("map = %q, want %q", b.String(), want)
	}
}
