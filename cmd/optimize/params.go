// Package main provides CMA-ES calibration of grid parameters for long-lived
// multi-species coexistence.
package main

import (
	"slices"

	"github.com/pthm-cable/canopy/components"
	"github.com/pthm-cable/canopy/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// Resource vectors are tuned as a single multiplier over the base config so
// their per-resource ratios survive calibration.
const (
	idxDiffusion = iota
	idxProducedScale
	idxSurviveScale
	idxGrowScale
	idxFertility
	idxLocustSeed
	idxPineSeed
	idxOakSeed
)

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "diffusion_fraction", Path: "rule.diffusion_fraction", Min: 0.02, Max: 0.25, Default: 0.25},
			{Name: "produced_scale", Path: "cell.produced_resources", Min: 0.25, Max: 3.0, Default: 1.0},
			{Name: "survive_scale", Path: "cell.required_to_survive", Min: 0.25, Max: 3.0, Default: 1.0},
			{Name: "grow_scale", Path: "cell.required_to_grow", Min: 0.25, Max: 3.0, Default: 1.0},
			{Name: "fertility_strength", Path: "scenario.fertility.strength", Min: 0, Max: 0.9, Default: 0.4},
			{Name: "locust_seed_height", Path: "species.locust.seed_height_threshold", Min: 1, Max: 40, Default: 8},
			{Name: "pine_seed_height", Path: "species.pine.seed_height_threshold", Min: 1, Max: 60, Default: 12},
			{Name: "oak_seed_height", Path: "species.oak.seed_height_threshold", Min: 1, Max: 80, Default: 20},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes parameter values into cfg. Scales are relative to
// base, which must be the config the defaults were extracted from. The
// species table is copied so cfg never aliases base.
func (pv *ParamVector) ApplyToConfig(cfg, base *config.Config, values []float64) {
	clamped := pv.Clamp(values)

	cfg.Rule.DiffusionFraction = clamped[idxDiffusion]
	cfg.Cell.Produced = base.Cell.Produced.Scale(clamped[idxProducedScale])
	cfg.Cell.RequiredToSurvive = base.Cell.RequiredToSurvive.Scale(clamped[idxSurviveScale])
	cfg.Cell.RequiredToGrow = base.Cell.RequiredToGrow.Scale(clamped[idxGrowScale])
	cfg.Scenario.Fertility.Strength = clamped[idxFertility]

	cfg.Species = slices.Clone(base.Species)
	for i := range cfg.Species {
		sc := &cfg.Species[i]
		var idx int
		switch sp, _ := components.ParseSpecies(sc.Name); sp {
		case components.SpeciesLocust:
			idx = idxLocustSeed
		case components.SpeciesPine:
			idx = idxPineSeed
		case components.SpeciesOak:
			idx = idxOakSeed
		default:
			continue
		}
		// A seed threshold above the ceiling would make the species sterile.
		sc.SeedHeightThreshold = min(int(clamped[idx]+0.5), sc.MaxHeight)
	}
}

// ExtractFromConfig extracts current parameter values from a Config struct.
// Scales are reported relative to cfg itself, so they are always 1.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	v := pv.DefaultVector()
	v[idxDiffusion] = cfg.Rule.DiffusionFraction
	v[idxProducedScale] = 1
	v[idxSurviveScale] = 1
	v[idxGrowScale] = 1
	v[idxFertility] = cfg.Scenario.Fertility.Strength
	for _, sc := range cfg.Species {
		switch sp, _ := components.ParseSpecies(sc.Name); sp {
		case components.SpeciesLocust:
			v[idxLocustSeed] = float64(sc.SeedHeightThreshold)
		case components.SpeciesPine:
			v[idxPineSeed] = float64(sc.SeedHeightThreshold)
		case components.SpeciesOak:
			v[idxOakSeed] = float64(sc.SeedHeightThreshold)
		}
	}
	return v
}
