package rack_test

import (
	"testing"

	"github.com/vsariola/rack"
	"github.com/vsariola/rack/native"
)

// gainKind is a minimal node kind: one gain stage exposed as input "in" and
// output "out", with a "level" parameter in [0, 2].
type gainKind struct {
	ac       rack.AudioContext
	gain     rack.GainStage
	changes  []float64
	starts   int
	stops    int
	disposed int
}

func (k *gainKind) Initialize(n *rack.Node) error {
	var err error
	if k.gain, err = k.ac.NewGainStage(); err != nil {
		return err
	}
	if _, err := n.CreateInput("in", k.gain); err != nil {
		return err
	}
	if _, err := n.CreateOutput("out", k.gain); err != nil {
		return err
	}
	_, err = n.CreateParameter("level", 1, 0, 2, "")
	return err
}

func (k *gainKind) OnParameterChange(name string, value float64) {
	k.changes = append(k.changes, value)
	k.gain.Gain().SetValue(value)
}

func (k *gainKind) OnStart(float64) { k.starts++ }
func (k *gainKind) OnStop(float64)  { k.stops++ }
func (k *gainKind) OnDispose()      { k.disposed++ }

func newContext() *native.Context {
	return native.NewContext(rack.ContextOptions{SampleRate: 8000, Channels: 1})
}

func newGainNode(t *testing.T, ac rack.AudioContext, id string) (*rack.Node, *gainKind) {
	t.Helper()
	k := &gainKind{ac: ac}
	n, err := rack.NewNode("gain", k, rack.NodeOptions{ID: id})
	if err != nil {
		t.Fatalf("could not create node %v: %v", id, err)
	}
	return n, k
}

// newGraph registers one gain node per id.
func newGraph(t *testing.T, opts rack.GraphOptions, ids ...string) (*rack.PatchGraph, *native.Context) {
	t.Helper()
	ac := newContext()
	g := rack.NewPatchGraph(opts)
	for _, id := range ids {
		n, _ := newGainNode(t, ac, id)
		if err := g.RegisterNode(n); err != nil {
			t.Fatalf("could not register %v: %v", id, err)
		}
	}
	return g, ac
}
