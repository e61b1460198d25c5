package native

import (
	"slices"

	"github.com/viterin/vek/vek32"
	"github.com/vsariola/rack"
)

type (
	// Param is an automatable value. Its per-sample value is the automation
	// curve plus the sum of all signals connected to it, clamped to its
	// nominal range.
	Param struct {
		ctx      *Context
		id       uint64
		value    float64
		min, max float64
		events   []event
		sources  []*node
		values   []float32
		mod      []float32
		rendered uint64
	}

	event struct {
		ramp  bool
		start float64 // ramps begin at the previous event or at scheduling time
		time  float64
		value float64
	}
)

func newParam(c *Context, def, min, max float64) *Param {
	return &Param{
		ctx:    c,
		id:     c.newID(),
		value:  rack.Clamp(def, min, max),
		min:    min,
		max:    max,
		values: make([]float32, BlockSize),
		mod:    make([]float32, BlockSize),
	}
}

func (p *Param) NativeID() uint64 { return p.id }
func (p *Param) owner() *Context  { return p.ctx }
func (p *Param) Min() float64     { return p.min }
func (p *Param) Max() float64     { return p.max }

// Value returns the automation value at the current time, without
// modulation.
func (p *Param) Value() float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.valueAt(p.ctx.time())
}

// SetValue sets the value now. With automation scheduled, it acts as
// SetValueAtTime at the current time.
func (p *Param) SetValue(v float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	v = rack.Clamp(v, p.min, p.max)
	if len(p.events) > 0 {
		p.insert(event{time: p.ctx.time(), value: v})
		return
	}
	p.value = v
}

func (p *Param) SetValueAtTime(v, t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.insert(event{time: t, value: rack.Clamp(v, p.min, p.max)})
}

func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	start := p.ctx.time()
	if i := p.lastBefore(t); i >= 0 {
		start = p.events[i].time
	}
	p.insert(event{ramp: true, start: start, time: t, value: rack.Clamp(v, p.min, p.max)})
}

// CancelScheduledValues drops every event at or after t.
func (p *Param) CancelScheduledValues(t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.events = slices.DeleteFunc(p.events, func(e event) bool { return e.time >= t })
}

func (p *Param) lastBefore(t float64) int {
	i := -1
	for j, e := range p.events {
		if e.time <= t {
			i = j
		}
	}
	return i
}

func (p *Param) insert(e event) {
	i := p.lastBefore(e.time) + 1
	p.events = slices.Insert(p.events, i, e)
}

func (p *Param) valueAt(t float64) float64 {
	v := p.value
	for _, e := range p.events {
		if e.time > t {
			if e.ramp && t >= e.start && e.time > e.start {
				v += (e.value - v) * (t - e.start) / (e.time - e.start)
			}
			break
		}
		v = e.value
	}
	return v
}

func (p *Param) attach(src *node) error {
	if !slices.Contains(p.sources, src) {
		p.sources = append(p.sources, src)
	}
	return nil
}

func (p *Param) detach(src *node) bool {
	i := slices.Index(p.sources, src)
	if i < 0 {
		return false
	}
	p.sources = slices.Delete(p.sources, i, i+1)
	return true
}

// block returns the per-sample values for the block starting at the
// current context time. Called with the context lock held.
func (p *Param) block(block uint64) []float32 {
	if p.rendered == block {
		return p.values
	}
	p.rendered = block
	t0 := p.ctx.time()
	if len(p.events) == 0 {
		for i := range p.values {
			p.values[i] = float32(p.value)
		}
	} else {
		dt := 1 / p.ctx.sampleRate
		for i := range p.values {
			p.values[i] = float32(p.valueAt(t0 + float64(i)*dt))
		}
	}
	if len(p.sources) > 0 {
		mix(block, p.sources, p.mod)
		vek32.Add_Inplace(p.values, p.mod)
		lo, hi := float32(p.min), float32(p.max)
		for i, v := range p.values {
			p.values[i] = min(max(v, lo), hi)
		}
	}
	return p.values
}
