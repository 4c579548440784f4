// Package components defines the cell state types shared by the transition
// rules and the ECS host.
package components

import "fmt"

// NumResources is the number of resource kinds tracked per cell.
const NumResources = 4

// ResourceNames lists the resource components in field order.
var ResourceNames = [NumResources]string{"water", "sunlight", "nitrogen", "potassium"}

// Resources is a fixed-size vector of per-cell resource stocks.
type Resources struct {
	Water     float64 `json:"water" yaml:"water"`
	Sunlight  float64 `json:"sunlight" yaml:"sunlight"`
	Nitrogen  float64 `json:"nitrogen" yaml:"nitrogen"`
	Potassium float64 `json:"potassium" yaml:"potassium"`
}

// ResourcesFrom builds a vector from its array form.
func ResourcesFrom(v [NumResources]float64) Resources {
	return Resources{Water: v[0], Sunlight: v[1], Nitrogen: v[2], Potassium: v[3]}
}

// Components returns the vector as an array in ResourceNames order.
func (r Resources) Components() [NumResources]float64 {
	return [NumResources]float64{r.Water, r.Sunlight, r.Nitrogen, r.Potassium}
}

// Add returns r + o.
func (r Resources) Add(o Resources) Resources {
	return Resources{
		Water:     r.Water + o.Water,
		Sunlight:  r.Sunlight + o.Sunlight,
		Nitrogen:  r.Nitrogen + o.Nitrogen,
		Potassium: r.Potassium + o.Potassium,
	}
}

// Sub returns r - o.
func (r Resources) Sub(o Resources) Resources {
	return Resources{
		Water:     r.Water - o.Water,
		Sunlight:  r.Sunlight - o.Sunlight,
		Nitrogen:  r.Nitrogen - o.Nitrogen,
		Potassium: r.Potassium - o.Potassium,
	}
}

// Scale returns r with every component multiplied by k.
func (r Resources) Scale(k float64) Resources {
	return Resources{
		Water:     r.Water * k,
		Sunlight:  r.Sunlight * k,
		Nitrogen:  r.Nitrogen * k,
		Potassium: r.Potassium * k,
	}
}

// Min returns the elementwise minimum of r and o.
func (r Resources) Min(o Resources) Resources {
	return Resources{
		Water:     min(r.Water, o.Water),
		Sunlight:  min(r.Sunlight, o.Sunlight),
		Nitrogen:  min(r.Nitrogen, o.Nitrogen),
		Potassium: min(r.Potassium, o.Potassium),
	}
}

// Max returns the elementwise maximum of r and o.
func (r Resources) Max(o Resources) Resources {
	return Resources{
		Water:     max(r.Water, o.Water),
		Sunlight:  max(r.Sunlight, o.Sunlight),
		Nitrogen:  max(r.Nitrogen, o.Nitrogen),
		Potassium: max(r.Potassium, o.Potassium),
	}
}

// DiffuseToward returns the weighted difference fraction*(o-r): the amount
// that moves r a fraction of the way toward o.
func (r Resources) DiffuseToward(o Resources, fraction float64) Resources {
	return o.Sub(r).Scale(fraction)
}

// AtLeast reports whether every component of r is >= the matching component of o.
func (r Resources) AtLeast(o Resources) bool {
	return r.Water >= o.Water &&
		r.Sunlight >= o.Sunlight &&
		r.Nitrogen >= o.Nitrogen &&
		r.Potassium >= o.Potassium
}

// AnyBelow reports whether any component of r is strictly less than o's.
func (r Resources) AnyBelow(o Resources) bool {
	return !r.AtLeast(o)
}

// ClampNonNegative zeroes negative components. It also returns the
// indices (in ResourceNames order) that were clamped.
func (r Resources) ClampNonNegative() (Resources, []int) {
	v := r.Components()
	var clamped []int
	for i := range v {
		if v[i] < 0 {
			v[i] = 0
			clamped = append(clamped, i)
		}
	}
	if clamped == nil {
		return r, nil
	}
	return ResourcesFrom(v), clamped
}

// Sum returns the total of all components.
func (r Resources) Sum() float64 {
	return r.Water + r.Sunlight + r.Nitrogen + r.Potassium
}

// String formats the vector as <water,sunlight,nitrogen,potassium>.
func (r Resources) String() string {
	return fmt.Sprintf("<%g,%g,%g,%g>", r.Water, r.Sunlight, r.Nitrogen, r.Potassium)
}
