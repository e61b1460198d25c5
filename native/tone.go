package native

import (
	"fmt"
	"math"

	"github.com/vsariola/rack"
)

const maxParam = math.MaxFloat32

// ToneGenerator is a one-shot periodic oscillator: once stopped it cannot be
// started again, a new generator has to be created instead.
type ToneGenerator struct {
	node
	frequency *Param
	detune    *Param
	waveform  rack.Waveform
	phase     float64

	started, stopped bool
	startAt, stopAt  float64
}

func newToneGenerator(c *Context) *ToneGenerator {
	t := &ToneGenerator{waveform: rack.Sine}
	t.init(c, t, false)
	nyquist := c.sampleRate / 2
	t.frequency = newParam(c, 440, -nyquist, nyquist)
	t.detune = newParam(c, 0, -153600, 153600)
	return t
}

func (t *ToneGenerator) Frequency() rack.AudioParam { return t.frequency }
func (t *ToneGenerator) Detune() rack.AudioParam    { return t.detune }

func (t *ToneGenerator) Waveform() rack.Waveform {
	t.ctx.mu.Lock()
	defer t.ctx.mu.Unlock()
	return t.waveform
}

// SetWaveform ignores unknown waveforms.
func (t *ToneGenerator) SetWaveform(w rack.Waveform) {
	if !w.Valid() {
		return
	}
	t.ctx.mu.Lock()
	defer t.ctx.mu.Unlock()
	t.waveform = w
}

// Start schedules the generator to sound from when (context time).
func (t *ToneGenerator) Start(when float64) error {
	t.ctx.mu.Lock()
	defer t.ctx.mu.Unlock()
	if t.started {
		return fmt.Errorf("start tone generator %d: %w", t.id, ErrAlreadyStarted)
	}
	t.started = true
	t.startAt = max(when, 0)
	return nil
}

// Stop schedules the generator to go silent from when. Stopping again
// reschedules.
func (t *ToneGenerator) Stop(when float64) error {
	t.ctx.mu.Lock()
	defer t.ctx.mu.Unlock()
	if !t.started {
		return fmt.Errorf("stop tone generator %d: %w", t.id, ErrNotStarted)
	}
	t.stopped = true
	t.stopAt = max(when, 0)
	return nil
}

func (t *ToneGenerator) process(block uint64, _, out []float32) {
	freq := t.frequency.block(block)
	detune := t.detune.block(block)
	sr := t.ctx.sampleRate
	t0 := t.ctx.time()
	for i := range out {
		now := t0 + float64(i)/sr
		if !t.started || now < t.startAt || (t.stopped && now >= t.stopAt) {
			out[i] = 0
			continue
		}
		f := float64(freq[i])
		if d := detune[i]; d != 0 {
			f *= math.Exp2(float64(d) / 1200)
		}
		out[i] = float32(shape(t.waveform, t.phase))
		t.phase += f / sr
		t.phase -= math.Floor(t.phase)
	}
}

// shape evaluates one period of w at phase in [0,1).
func shape(w rack.Waveform, phase float64) float64 {
	switch w {
	case rack.Square:
		if phase < 0.5 {
			return 1
		}
		return -1
	case rack.Sawtooth:
		return 2*phase - 1
	case rack.Triangle:
		return 1 - 4*math.Abs(phase-0.5)
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}
