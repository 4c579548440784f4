package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/canopy/components"
)

func TestDefaultsLoad(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	if cfg.Rule.DiffusionFraction != 0.25 {
		t.Errorf("diffusion fraction = %v, want 0.25", cfg.Rule.DiffusionFraction)
	}
	if cfg.Rule.OutputDelay != 1 {
		t.Errorf("output delay = %v, want 1", cfg.Rule.OutputDelay)
	}
	if len(cfg.Species) != 3 {
		t.Fatalf("expected 3 species entries, got %d", len(cfg.Species))
	}
	if cfg.Scenario.Plantings[2].Species != components.SpeciesOak {
		t.Errorf("third planting species = %v, want oak", cfg.Scenario.Plantings[2].Species)
	}
	if got := len(cfg.Derived.NeighborOffsets); got != 4 {
		t.Errorf("von neumann neighbourhood should have 4 offsets, got %d", got)
	}
	if cfg.Derived.CellCount != cfg.Grid.Width*cfg.Grid.Height {
		t.Errorf("cell count = %d", cfg.Derived.CellCount)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("grid:\n  neighborhood: moore\n  width: 10\n  height: 10\nscenario:\n  plantings: []\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(cfg.Derived.NeighborOffsets); got != 8 {
		t.Errorf("moore neighbourhood should have 8 offsets, got %d", got)
	}
	// Untouched keys keep their defaults.
	if cfg.Rule.DiffusionFraction != 0.25 {
		t.Errorf("diffusion fraction lost its default: %v", cfg.Rule.DiffusionFraction)
	}
	if len(cfg.Scenario.Plantings) != 0 {
		t.Errorf("plantings should be replaced, got %d", len(cfg.Scenario.Plantings))
	}
}

func TestParseReportsAllProblems(t *testing.T) {
	_, err := Parse([]byte(`
grid:
  width: 0
  neighborhood: hex
rule:
  output_delay: 0
scenario:
  plantings:
    - { x: 500, y: 0, species: oak, height: 1 }
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"grid dimensions", "hex", "output_delay", "outside the grid"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q should mention %q", msg, want)
		}
	}
}

func TestParseRejectsUnknownSpeciesName(t *testing.T) {
	_, err := Parse([]byte("scenario:\n  plantings:\n    - { x: 1, y: 1, species: birch, height: 1 }\n"))
	if err == nil || !strings.Contains(err.Error(), "birch") {
		t.Fatalf("expected unknown species error, got %v", err)
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Grid.Width = 12
	cfg.Scenario.Plantings = nil

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "name: oak") {
		t.Errorf("written config missing species table:\n%s", data)
	}

	back, err := Load(path)
	if err != nil {
		t.Fatalf("reloading config: %v", err)
	}
	if back.Grid.Width != 12 {
		t.Errorf("width = %d, want 12", back.Grid.Width)
	}
	if back.Cell != cfg.Cell {
		t.Errorf("cell section changed on round trip")
	}
}

func TestCfgPanicsBeforeInit(t *testing.T) {
	saved := global
	global = nil
	defer func() {
		global = saved
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Cfg()
}

func TestParseRejectsNonFiniteValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"diffusion nan", "rule: { diffusion_fraction: .nan }", "diffusion_fraction"},
		{"diffusion inf", "rule: { diffusion_fraction: .inf }", "diffusion_fraction"},
		{"output delay nan", "rule: { output_delay: .nan }", "output_delay"},
		{"output delay inf", "rule: { output_delay: .inf }", "output_delay"},
		{"fertility strength nan", "scenario: { fertility: { strength: .nan } }", "fertility.strength"},
		{"fertility scale nan", "scenario: { fertility: { scale: .nan } }", "fertility.scale"},
		{"current nan", "cell: { current_resources: { water: .nan } }", "current_resources.water"},
		{"max inf", "cell: { max_resources: { sunlight: .inf } }", "max_resources.sunlight"},
		{"produced nan", "cell: { produced_resources: { water: .nan } }", "produced_resources.water"},
		{"survive nan", "cell: { required_to_survive: { nitrogen: .nan } }", "required_to_survive.nitrogen"},
		{"grow -inf", "cell: { required_to_grow: { potassium: -.inf } }", "required_to_grow.potassium"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestDefaultCellIsFinite(t *testing.T) {
	cell := Default().DefaultCell()
	for _, v := range [][4]float64{cell.Current.Components(), cell.Max.Components(), cell.Produced.Components()} {
		for _, c := range v {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				t.Fatalf("default cell has non-finite component %v", c)
			}
		}
	}
}

func TestMustInit(t *testing.T) {
	saved := global
	defer func() { global = saved }()

	MustInit("")
	if Cfg().Grid.Width != Default().Grid.Width {
		t.Errorf("MustInit should load the defaults")
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for a missing config file")
		}
	}()
	MustInit(filepath.Join(t.TempDir(), "missing.yaml"))
}
