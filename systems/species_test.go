package systems

import (
	"strings"
	"testing"

	"github.com/pthm-cable/canopy/components"
	"github.com/pthm-cable/canopy/config"
)

func TestSpeciesTableFromDefaults(t *testing.T) {
	table, err := NewSpeciesTable(config.Cfg().Species)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		species   components.Species
		seed, max int
	}{
		{components.SpeciesLocust, 8, 40},
		{components.SpeciesPine, 12, 60},
		{components.SpeciesOak, 20, 80},
	}
	for _, tt := range tests {
		traits, ok := table.Traits(tt.species)
		if !ok {
			t.Errorf("%v missing from table", tt.species)
			continue
		}
		if traits.SeedHeightThreshold != tt.seed || traits.MaxHeight != tt.max {
			t.Errorf("%v traits = %+v, want seed %d max %d", tt.species, traits, tt.seed, tt.max)
		}
	}

	if _, ok := table.Traits(components.SpeciesNone); ok {
		t.Error("empty species should have no traits")
	}
	if _, ok := table.Traits(components.Species(200)); ok {
		t.Error("out of range species should have no traits")
	}
}

func TestSpeciesTableFailsClosed(t *testing.T) {
	tests := []struct {
		name    string
		entries []config.SpeciesConfig
		want    string
	}{
		{
			name: "missing species",
			entries: []config.SpeciesConfig{
				{Name: "locust", SeedHeightThreshold: 1, MaxHeight: 2},
				{Name: "pine", SeedHeightThreshold: 1, MaxHeight: 2},
			},
			want: "missing entry for oak",
		},
		{
			name: "unknown name",
			entries: []config.SpeciesConfig{
				{Name: "locust", SeedHeightThreshold: 1, MaxHeight: 2},
				{Name: "pine", SeedHeightThreshold: 1, MaxHeight: 2},
				{Name: "oak", SeedHeightThreshold: 1, MaxHeight: 2},
				{Name: "maple", SeedHeightThreshold: 1, MaxHeight: 2},
			},
			want: "maple",
		},
		{
			name: "duplicate",
			entries: []config.SpeciesConfig{
				{Name: "locust", SeedHeightThreshold: 1, MaxHeight: 2},
				{Name: "locust", SeedHeightThreshold: 1, MaxHeight: 2},
				{Name: "pine", SeedHeightThreshold: 1, MaxHeight: 2},
				{Name: "oak", SeedHeightThreshold: 1, MaxHeight: 2},
			},
			want: "duplicate",
		},
		{
			name: "none has no traits",
			entries: []config.SpeciesConfig{
				{Name: "none", SeedHeightThreshold: 1, MaxHeight: 2},
				{Name: "locust", SeedHeightThreshold: 1, MaxHeight: 2},
				{Name: "pine", SeedHeightThreshold: 1, MaxHeight: 2},
				{Name: "oak", SeedHeightThreshold: 1, MaxHeight: 2},
			},
			want: "cannot have traits",
		},
		{
			name: "bad thresholds",
			entries: []config.SpeciesConfig{
				{Name: "locust", SeedHeightThreshold: -1, MaxHeight: 2},
				{Name: "pine", SeedHeightThreshold: 1, MaxHeight: 0},
				{Name: "oak", SeedHeightThreshold: 1, MaxHeight: 2},
			},
			want: "max_height",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewSpeciesTable(tt.entries)
			if err == nil {
				t.Fatal("expected error")
			}
			if table != nil {
				t.Error("table should be nil on error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}
