// Package native is a software implementation of the audio processing
// context the rack drives: tone generators, gain stages, biquad filters and
// analysers wired into a pull graph and rendered block by block.
package native

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vsariola/rack"
)

// BlockSize is the number of frames rendered per graph pull.
const BlockSize = 128

var (
	ErrClosed          = errors.New("audio context is closed")
	ErrForeignReceiver = errors.New("receiver belongs to another audio context")
	ErrNoInput         = errors.New("primitive has no signal input")
	ErrNotConnected    = errors.New("primitives are not connected")
	ErrAlreadyStarted  = errors.New("tone generator already started")
	ErrNotStarted      = errors.New("tone generator not started")
)

type (
	// Context renders a graph of primitives. It is safe to mutate the graph
	// from one goroutine while another (the audio device) calls Render.
	Context struct {
		mu         sync.Mutex
		sampleRate float64
		channels   int
		frame      int64
		block      uint64
		state      rack.ContextState
		nextID     uint64
		dest       *Destination
		current    []float32
		blockPos   int
		logger     *slog.Logger

		listenerMu    sync.Mutex
		listeners     map[int]func(rack.ContextState)
		listenerOrder []int
		nextListener  int
	}

	Option func(*Context)
)

func WithLogger(l *slog.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// NewContext creates a running context. Zero options fall back to
// rack.DefaultSampleRate and rack.DefaultChannels.
func NewContext(opts rack.ContextOptions, options ...Option) *Context {
	if opts.SampleRate <= 0 {
		opts.SampleRate = rack.DefaultSampleRate
	}
	if opts.Channels <= 0 {
		opts.Channels = rack.DefaultChannels
	}
	c := &Context{
		sampleRate: opts.SampleRate,
		channels:   opts.Channels,
		state:      rack.StateRunning,
		listeners:  map[int]func(rack.ContextState){},
		logger:     slog.Default().With("component", "native"),
	}
	for _, o := range options {
		o(c)
	}
	c.dest = &Destination{}
	c.dest.init(c, c.dest, true)
	return c
}

// Factory returns a rack.ContextFactory creating offline contexts.
func Factory(options ...Option) rack.ContextFactory {
	return func(ctx context.Context, opts rack.ContextOptions) (rack.AudioContext, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewContext(opts, options...), nil
	}
}

func (c *Context) SampleRate() float64 { return c.sampleRate }
func (c *Context) Channels() int       { return c.channels }

// CurrentTime returns the number of rendered seconds.
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time()
}

func (c *Context) time() float64 { return float64(c.frame) / c.sampleRate }

func (c *Context) State() rack.ContextState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Context) Resume() error  { return c.transition(rack.StateRunning) }
func (c *Context) Suspend() error { return c.transition(rack.StateSuspended) }

func (c *Context) Close() error {
	c.mu.Lock()
	if c.state == rack.StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = rack.StateClosed
	c.mu.Unlock()
	c.notify(rack.StateClosed)
	return nil
}

func (c *Context) transition(s rack.ContextState) error {
	c.mu.Lock()
	if c.state == rack.StateClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == s {
		c.mu.Unlock()
		return nil
	}
	c.state = s
	c.mu.Unlock()
	c.notify(s)
	return nil
}

// OnStateChange registers f; callbacks run without any context lock held.
func (c *Context) OnStateChange(f func(rack.ContextState)) (cancel func()) {
	c.listenerMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = f
	c.listenerOrder = append(c.listenerOrder, id)
	c.listenerMu.Unlock()
	return func() {
		c.listenerMu.Lock()
		defer c.listenerMu.Unlock()
		delete(c.listeners, id)
		for i, v := range c.listenerOrder {
			if v == id {
				c.listenerOrder = append(c.listenerOrder[:i], c.listenerOrder[i+1:]...)
				break
			}
		}
	}
}

func (c *Context) notify(s rack.ContextState) {
	c.listenerMu.Lock()
	fs := make([]func(rack.ContextState), 0, len(c.listenerOrder))
	for _, id := range c.listenerOrder {
		fs = append(fs, c.listeners[id])
	}
	c.listenerMu.Unlock()
	for _, f := range fs {
		f(s)
	}
}

func (c *Context) Destination() rack.Primitive { return c.dest }

func (c *Context) NewToneGenerator() (rack.ToneGenerator, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return newToneGenerator(c), nil
}

func (c *Context) NewGainStage() (rack.GainStage, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return newGainStage(c), nil
}

func (c *Context) NewFilterStage() (rack.FilterStage, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return newFilterStage(c), nil
}

func (c *Context) NewAnalyser() (rack.Analyser, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return newAnalyser(c, DefaultFFTSize), nil
}

func (c *Context) checkOpen() error {
	if c.State() == rack.StateClosed {
		return fmt.Errorf("create primitive: %w", ErrClosed)
	}
	return nil
}

func (c *Context) newID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return c.nextID
}

// Render fills dst with interleaved frames for all channels, pulling the
// graph one block at a time; a block is consumed across calls when dst is
// not a multiple of BlockSize, so graph changes made between calls are heard
// only from the next block on. When the context is not running, dst is
// filled with silence and time does not advance.
func (c *Context) Render(dst []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != rack.StateRunning {
		clear(dst)
		return
	}
	frames := len(dst) / c.channels
	for i := 0; i < frames; i++ {
		if c.blockPos == len(c.current) {
			c.block++
			c.current = c.dest.pull(c.block)
			c.blockPos = 0
		}
		v := c.current[c.blockPos]
		for ch := 0; ch < c.channels; ch++ {
			dst[i*c.channels+ch] = v
		}
		c.blockPos++
		c.frame++
	}
	clear(dst[frames*c.channels:])
}

// RenderFrames renders the given number of frames into a new buffer.
func (c *Context) RenderFrames(frames int) []float32 {
	buf := make([]float32, frames*c.channels)
	c.Render(buf)
	return buf
}
