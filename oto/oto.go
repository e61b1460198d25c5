// Package oto plays a native audio context on the default audio device.
package oto

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/vsariola/rack"
	"github.com/vsariola/rack/native"
)

type (
	// DeviceContext is a native.Context whose output is pulled by the audio
	// device. Suspending pauses the device player.
	DeviceContext struct {
		*native.Context
		player *oto.Player
		logger *slog.Logger
	}

	// reader adapts native.Context.Render to the io.Reader oto pulls from.
	reader struct {
		ctx       *native.Context
		channels  int
		floats    []float32
		tmpBuffer []byte
	}
)

// oto allows a single device context per process.
var (
	device     *oto.Context
	deviceOpts oto.NewContextOptions
	deviceErr  error
	deviceMu   sync.Mutex
)

const bytesPerSample = 4

var latencyBufferSizes = map[rack.LatencyHint]int{
	rack.LatencyInteractive: 10,
	rack.LatencyBalanced:    40,
	rack.LatencyPlayback:    100,
}

// Factory returns a rack.ContextFactory that opens the audio device.
func Factory(logger *slog.Logger) rack.ContextFactory {
	if logger == nil {
		logger = slog.Default().With("component", "oto")
	}
	return func(ctx context.Context, opts rack.ContextOptions) (rack.AudioContext, error) {
		return NewContext(ctx, opts, logger)
	}
}

// NewContext opens the device (once per process) and starts a player
// rendering a new native context.
func NewContext(ctx context.Context, opts rack.ContextOptions, logger *slog.Logger) (*DeviceContext, error) {
	if logger == nil {
		logger = slog.Default().With("component", "oto")
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = rack.DefaultSampleRate
	}
	if opts.Channels <= 0 {
		opts.Channels = rack.DefaultChannels
	}
	dev, err := openDevice(ctx, opts)
	if err != nil {
		return nil, err
	}
	nc := native.NewContext(opts, native.WithLogger(logger))
	r := &reader{ctx: nc, channels: opts.Channels}
	player := dev.NewPlayer(r)
	player.Play()
	logger.Info("audio device opened", "sampleRate", opts.SampleRate, "channels", opts.Channels, "latencyHint", opts.LatencyHint)
	return &DeviceContext{Context: nc, player: player, logger: logger}, nil
}

func openDevice(ctx context.Context, opts rack.ContextOptions) (*oto.Context, error) {
	deviceMu.Lock()
	defer deviceMu.Unlock()
	if device != nil {
		if deviceOpts.SampleRate != int(opts.SampleRate) || deviceOpts.ChannelCount != opts.Channels {
			return nil, fmt.Errorf("audio device already open at %d Hz, %d channels", deviceOpts.SampleRate, deviceOpts.ChannelCount)
		}
		return device, nil
	}
	if deviceErr != nil {
		return nil, deviceErr
	}
	ms, ok := latencyBufferSizes[opts.LatencyHint]
	if !ok {
		ms = latencyBufferSizes[rack.LatencyInteractive]
	}
	o := oto.NewContextOptions{
		SampleRate:   int(opts.SampleRate),
		ChannelCount: opts.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(ms) * time.Millisecond,
	}
	c, ready, err := oto.NewContext(&o)
	if err != nil {
		deviceErr = fmt.Errorf("cannot create oto context: %w", err)
		return nil, deviceErr
	}
	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	device, deviceOpts = c, o
	return c, nil
}

func (d *DeviceContext) Resume() error {
	if err := d.Context.Resume(); err != nil {
		return err
	}
	d.player.Play()
	return nil
}

func (d *DeviceContext) Suspend() error {
	if err := d.Context.Suspend(); err != nil {
		return err
	}
	d.player.Pause()
	return nil
}

// Close stops the player; the device itself stays open for the process.
func (d *DeviceContext) Close() error {
	if err := d.Context.Close(); err != nil {
		return err
	}
	if err := d.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	d.logger.Info("audio device player closed")
	return nil
}

// Read implements io.Reader for the oto player.
func (r *reader) Read(p []byte) (int, error) {
	frames := len(p) / (bytesPerSample * r.channels)
	n := frames * r.channels
	if cap(r.floats) < n {
		r.floats = make([]float32, n)
	}
	r.floats = r.floats[:n]
	r.ctx.Render(r.floats)
	// we reuse the old capacity tmpBuffer by setting its length to zero
	r.tmpBuffer = FloatBufferToFloat32LE(r.floats, r.tmpBuffer[:0])
	return copy(p, r.tmpBuffer), nil
}
