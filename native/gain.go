package native

import (
	"github.com/viterin/vek/vek32"
	"github.com/vsariola/rack"
)

type GainStage struct {
	node
	gain *Param
}

func newGainStage(c *Context) *GainStage {
	g := &GainStage{}
	g.init(c, g, true)
	g.gain = newParam(c, 1, -maxParam, maxParam)
	return g
}

func (g *GainStage) Gain() rack.AudioParam { return g.gain }

func (g *GainStage) process(block uint64, in, out []float32) {
	vek32.Mul_Into(out, in, g.gain.block(block))
}
