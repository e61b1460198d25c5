package rack

import "math"

// Parameter is one named, bounded scalar of a node. Every write is clamped
// to [Min, Max].
type Parameter struct {
	Name    string
	Min     float64
	Max     float64
	Default float64
	Unit    string // optional display unit, e.g. "Hz"

	value float64
}

func newParameter(name string, def, min, max float64, unit string) *Parameter {
	if min > max {
		min, max = max, min
	}
	p := &Parameter{Name: name, Min: min, Max: max, Unit: unit}
	p.Default = p.clamp(def)
	p.value = p.Default
	return p
}

func (p *Parameter) Value() float64 {
	return p.value
}

// set stores the clamped value and returns it. NaN leaves the value as is.
func (p *Parameter) set(v float64) float64 {
	if math.IsNaN(v) {
		return p.value
	}
	p.value = p.clamp(v)
	return p.value
}

func (p *Parameter) clamp(v float64) float64 {
	return Clamp(v, p.Min, p.Max)
}

// Normalized returns the value mapped linearly to 0..1.
func (p *Parameter) Normalized() float64 {
	if p.Max == p.Min {
		return 0
	}
	return (p.value - p.Min) / (p.Max - p.Min)
}

// Denormalize maps 0..1 linearly to the parameter range, clamped.
func (p *Parameter) Denormalize(n float64) float64 {
	return p.clamp(p.Min + Clamp(n, 0, 1)*(p.Max-p.Min))
}
