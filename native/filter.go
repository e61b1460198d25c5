package native

import (
	"math"

	"github.com/vsariola/rack"
)

type (
	// FilterStage is a second-order RBJ cookbook filter. Coefficients are
	// recomputed once per block from the first sample of its params. Gain
	// is kept for shelving and peaking types, which are not implemented.
	FilterStage struct {
		node
		frequency *Param
		q         *Param
		gain      *Param
		typ       rack.FilterType
		d0, d1    float64
	}

	// coefficients are normalized so that a0 = 1.
	coefficients struct {
		b0, b1, b2 float64
		a1, a2     float64
	}
)

func newFilterStage(c *Context) *FilterStage {
	f := &FilterStage{typ: rack.Lowpass}
	f.init(c, f, true)
	f.frequency = newParam(c, 350, 0, c.sampleRate/2)
	f.q = newParam(c, 1, -maxParam, maxParam)
	f.gain = newParam(c, 0, -maxParam, maxParam)
	return f
}

func (f *FilterStage) Frequency() rack.AudioParam { return f.frequency }
func (f *FilterStage) Q() rack.AudioParam         { return f.q }
func (f *FilterStage) Gain() rack.AudioParam      { return f.gain }

func (f *FilterStage) Type() rack.FilterType {
	f.ctx.mu.Lock()
	defer f.ctx.mu.Unlock()
	return f.typ
}

// SetType ignores unknown filter types.
func (f *FilterStage) SetType(t rack.FilterType) {
	if !t.Valid() {
		return
	}
	f.ctx.mu.Lock()
	defer f.ctx.mu.Unlock()
	f.typ = t
}

// process runs Direct Form II Transposed.
func (f *FilterStage) process(block uint64, in, out []float32) {
	freq := float64(f.frequency.block(block)[0])
	q := float64(f.q.block(block)[0])
	c := design(f.typ, freq, q, f.ctx.sampleRate)
	for i, v := range in {
		x := float64(v)
		y := c.b0*x + f.d0
		f.d0 = c.b1*x - c.a1*y + f.d1
		f.d1 = c.b2*x - c.a2*y
		out[i] = float32(y)
	}
	if math.IsNaN(f.d0) || math.IsInf(f.d0, 0) || math.IsNaN(f.d1) || math.IsInf(f.d1, 0) {
		f.d0, f.d1 = 0, 0
	}
}

// design computes RBJ biquad coefficients. Frequencies outside (0, nyquist)
// yield a pass-through or mute depending on the type, and q is floored to
// a small positive value.
func design(t rack.FilterType, freq, q, sampleRate float64) coefficients {
	nyquist := sampleRate / 2
	if freq <= 0 || freq >= nyquist {
		return edge(t, freq <= 0)
	}
	q = max(q, 1e-4)
	w0 := 2 * math.Pi * freq / sampleRate
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * q)
	var b0, b1, b2 float64
	a0, a1, a2 := 1+alpha, -2*cw, 1-alpha
	switch t {
	case rack.Highpass:
		b0 = (1 + cw) / 2
		b1 = -(1 + cw)
		b2 = (1 + cw) / 2
	case rack.Bandpass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
	case rack.Notch:
		b0 = 1
		b1 = -2 * cw
		b2 = 1
	default:
		b0 = (1 - cw) / 2
		b1 = 1 - cw
		b2 = (1 - cw) / 2
	}
	return coefficients{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

func edge(t rack.FilterType, atZero bool) coefficients {
	pass := coefficients{b0: 1}
	mute := coefficients{}
	switch t {
	case rack.Lowpass:
		if atZero {
			return mute
		}
		return pass
	case rack.Highpass:
		if atZero {
			return pass
		}
		return mute
	case rack.Bandpass:
		return mute
	default:
		return pass
	}
}
