package native

import (
	"fmt"
	"slices"

	"github.com/viterin/vek/vek32"
	"github.com/vsariola/rack"
)

type (
	// processor computes one block of output from one block of mixed input.
	processor interface {
		process(block uint64, in, out []float32)
	}

	// sink is anything a primitive output can be connected to.
	sink interface {
		rack.Receiver
		owner() *Context
		attach(src *node) error
		detach(src *node) bool
	}

	// node is the pull-graph vertex shared by every primitive.
	node struct {
		ctx      *Context
		id       uint64
		self     processor
		hasInput bool
		sources  []*node
		targets  []sink
		in, out  []float32
		rendered uint64
		busy     bool
	}
)

// silence is read, never written.
var silence = make([]float32, BlockSize)

func (n *node) init(c *Context, self processor, hasInput bool) {
	n.ctx = c
	n.id = c.newID()
	n.self = self
	n.hasInput = hasInput
	n.in = make([]float32, BlockSize)
	n.out = make([]float32, BlockSize)
}

func (n *node) NativeID() uint64 { return n.id }
func (n *node) owner() *Context  { return n.ctx }

// Connect routes this primitive's output into dst, which must be a
// primitive or param of the same context. Connecting twice is a no-op.
func (n *node) Connect(dst rack.Receiver) error {
	s, ok := dst.(sink)
	if !ok {
		return fmt.Errorf("connect %d: unsupported receiver %T", n.id, dst)
	}
	if s.owner() != n.ctx {
		return fmt.Errorf("connect %d -> %d: %w", n.id, dst.NativeID(), ErrForeignReceiver)
	}
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	if err := s.attach(n); err != nil {
		return fmt.Errorf("connect %d -> %d: %w", n.id, dst.NativeID(), err)
	}
	if !slices.Contains(n.targets, s) {
		n.targets = append(n.targets, s)
	}
	return nil
}

func (n *node) Disconnect(dst rack.Receiver) error {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	i := slices.IndexFunc(n.targets, func(s sink) bool { return s.NativeID() == dst.NativeID() })
	if i < 0 {
		return fmt.Errorf("disconnect %d -> %d: %w", n.id, dst.NativeID(), ErrNotConnected)
	}
	n.targets[i].detach(n)
	n.targets = slices.Delete(n.targets, i, i+1)
	return nil
}

func (n *node) DisconnectAll() {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	for _, s := range n.targets {
		s.detach(n)
	}
	n.targets = nil
}

func (n *node) attach(src *node) error {
	if !n.hasInput {
		return ErrNoInput
	}
	if !slices.Contains(n.sources, src) {
		n.sources = append(n.sources, src)
	}
	return nil
}

func (n *node) detach(src *node) bool {
	i := slices.Index(n.sources, src)
	if i < 0 {
		return false
	}
	n.sources = slices.Delete(n.sources, i, i+1)
	return true
}

// pull renders the node once per block. A node reached again while it is
// being rendered closes a cycle; that back edge yields silence.
func (n *node) pull(block uint64) []float32 {
	if n.rendered == block {
		return n.out
	}
	if n.busy {
		return silence
	}
	n.busy = true
	mix(block, n.sources, n.in)
	n.self.process(block, n.in, n.out)
	n.busy = false
	n.rendered = block
	return n.out
}

func mix(block uint64, sources []*node, dst []float32) {
	clear(dst)
	for _, s := range sources {
		vek32.Add_Inplace(dst, s.pull(block))
	}
}

// Destination is the context's final sink; its output is what Render
// returns.
type Destination struct {
	node
}

func (d *Destination) process(_ uint64, in, out []float32) { copy(out, in) }
