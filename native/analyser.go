package native

import (
	"math"

	"github.com/viterin/vek/vek32"
)

const DefaultFFTSize = 2048

// Analyser passes audio through and keeps a ring of the latest samples.
type Analyser struct {
	node
	ring  []float32
	pos   int
	tmp   []float32
	rms   float32
	peak  float32
	fresh bool
}

func newAnalyser(c *Context, fftSize int) *Analyser {
	a := &Analyser{
		ring: make([]float32, fftSize),
		tmp:  make([]float32, fftSize),
	}
	a.init(c, a, true)
	return a
}

func (a *Analyser) FFTSize() int { return len(a.ring) }

func (a *Analyser) process(_ uint64, in, out []float32) {
	copy(out, in)
	for _, v := range in {
		a.ring[a.pos] = v
		a.pos = (a.pos + 1) % len(a.ring)
	}
	a.fresh = false
}

// TimeDomainData copies the latest samples, oldest first, into dst and
// returns how many were copied.
func (a *Analyser) TimeDomainData(dst []float32) int {
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()
	return a.timeDomain(dst)
}

func (a *Analyser) timeDomain(dst []float32) int {
	n := min(len(dst), len(a.ring))
	start := (a.pos + len(a.ring) - n) % len(a.ring)
	for i := 0; i < n; i++ {
		dst[i] = a.ring[(start+i)%len(a.ring)]
	}
	return n
}

// Level returns the RMS and absolute peak of the latest FFTSize samples.
func (a *Analyser) Level() (rms, peak float32) {
	a.ctx.mu.Lock()
	defer a.ctx.mu.Unlock()
	if a.fresh {
		return a.rms, a.peak
	}
	buf := a.tmp[:a.timeDomain(a.tmp)]
	if len(buf) == 0 {
		a.rms, a.peak = 0, 0
		a.fresh = true
		return 0, 0
	}
	// vek operands must not overlap.
	a.rms = float32(math.Sqrt(float64(vek32.Dot(buf, buf) / float32(len(buf)))))
	vek32.Abs_Inplace(buf)
	a.peak = vek32.Max(buf)
	a.fresh = true
	return a.rms, a.peak
}
