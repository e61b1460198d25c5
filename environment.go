package rack

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type (
	// Environment owns the single native audio context of a session. It is
	// created uninitialized; Initialize creates the native context and Close
	// releases it, after which Initialize can create a fresh one.
	//
	// Native state notifications may arrive from the audio device goroutine,
	// so the handle guards its fields with a mutex. Callers should still
	// serialize Initialize/Resume/Suspend/Close among themselves.
	Environment struct {
		factory ContextFactory
		opts    ContextOptions
		logger  *slog.Logger

		mu             sync.Mutex
		native         AudioContext
		state          EnvironmentState
		cancelNative   func()
		listeners      []stateListener
		nextListenerID int
	}

	EnvironmentState string

	stateListener struct {
		id int
		f  func(EnvironmentState)
	}

	EnvironmentOption func(*Environment)
)

const (
	EnvUninitialized EnvironmentState = "uninitialized"
	EnvRunning       EnvironmentState = "running"
	EnvSuspended     EnvironmentState = "suspended"
	EnvClosed        EnvironmentState = "closed"
)

const (
	DefaultSampleRate = 44100
	DefaultChannels   = 2
)

func WithEnvironmentLogger(l *slog.Logger) EnvironmentOption {
	return func(e *Environment) { e.logger = l }
}

// NewEnvironment returns an uninitialized environment that will create its
// native context with factory. Zero option fields get defaults.
func NewEnvironment(factory ContextFactory, opts ContextOptions, options ...EnvironmentOption) *Environment {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.LatencyHint == "" {
		opts.LatencyHint = LatencyInteractive
	}
	if opts.Channels <= 0 {
		opts.Channels = DefaultChannels
	}
	e := &Environment{
		factory: factory,
		opts:    opts,
		state:   EnvUninitialized,
		logger:  slog.Default().With("component", "environment"),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Initialize creates the native context, or returns the existing one.
func (e *Environment) Initialize(ctx context.Context) (AudioContext, error) {
	e.mu.Lock()
	if e.native != nil {
		n := e.native
		e.mu.Unlock()
		return n, nil
	}
	e.mu.Unlock()
	if e.factory == nil {
		return nil, fmt.Errorf("%w: no context factory", ErrInitialization)
	}
	native, err := e.factory(ctx, e.opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	e.mu.Lock()
	if e.native != nil { // lost a race with a concurrent Initialize
		existing := e.native
		e.mu.Unlock()
		if err := native.Close(); err != nil {
			e.logger.Warn("closing surplus native context failed", "err", err)
		}
		return existing, nil
	}
	e.native = native
	e.state = EnvironmentState(native.State())
	e.mu.Unlock()
	cancel := native.OnStateChange(e.nativeStateChanged)
	e.mu.Lock()
	if e.native == native {
		e.cancelNative = cancel
	} else { // closed before the subscription landed
		cancel()
	}
	e.mu.Unlock()
	e.logger.Info("audio environment initialized", "sampleRate", native.SampleRate(), "latencyHint", e.opts.LatencyHint, "state", e.State())
	e.notify(e.State())
	return native, nil
}

func (e *Environment) nativeStateChanged(s ContextState) {
	e.mu.Lock()
	if e.native == nil {
		e.mu.Unlock()
		return
	}
	e.state = EnvironmentState(s)
	e.mu.Unlock()
	e.notify(EnvironmentState(s))
}

// Resume resumes a suspended context; it is a no-op in any other state.
func (e *Environment) Resume(ctx context.Context) error {
	native, state, err := e.current()
	if err != nil {
		return err
	}
	if state != EnvSuspended {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := native.Resume(); err != nil {
		return fmt.Errorf("resume audio context: %w", err)
	}
	return nil
}

// Suspend suspends a running context; it is a no-op in any other state.
func (e *Environment) Suspend(ctx context.Context) error {
	native, state, err := e.current()
	if err != nil {
		return err
	}
	if state != EnvRunning {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := native.Suspend(); err != nil {
		return fmt.Errorf("suspend audio context: %w", err)
	}
	return nil
}

// Close releases the native context and returns the environment to the
// uninitialized state. Closing an uninitialized environment does nothing.
func (e *Environment) Close(ctx context.Context) error {
	e.mu.Lock()
	native := e.native
	e.mu.Unlock()
	if native == nil {
		return nil
	}
	var closeErr error
	if native.State() != StateClosed {
		closeErr = native.Close()
	}
	var cancel func()
	e.mu.Lock()
	if e.native == native { // a concurrent Close may have won
		cancel = e.cancelNative
		e.cancelNative = nil
		e.native = nil
		e.state = EnvUninitialized
	}
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if closeErr != nil {
		return fmt.Errorf("close audio context: %w", closeErr)
	}
	e.logger.Info("audio environment closed")
	return nil
}

// Context returns the native context, or ErrNotInitialized.
func (e *Environment) Context() (AudioContext, error) {
	native, _, err := e.current()
	return native, err
}

func (e *Environment) State() EnvironmentState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CurrentTime returns the native context time in seconds, or 0 when
// uninitialized.
func (e *Environment) CurrentTime() float64 {
	native, _, err := e.current()
	if err != nil {
		return 0
	}
	return native.CurrentTime()
}

// SampleRate returns the sample rate of the native context, or the
// configured one when uninitialized.
func (e *Environment) SampleRate() float64 {
	native, _, err := e.current()
	if err != nil {
		return e.opts.SampleRate
	}
	return native.SampleRate()
}

func (e *Environment) Options() ContextOptions {
	return e.opts
}

// OnStateChange registers f to be called with every new state. Callbacks run
// in registration order. The returned function unsubscribes f.
func (e *Environment) OnStateChange(f func(EnvironmentState)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextListenerID
	e.nextListenerID++
	e.listeners = append(e.listeners, stateListener{id: id, f: f})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, l := range e.listeners {
			if l.id == id {
				e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

func (e *Environment) notify(s EnvironmentState) {
	e.mu.Lock()
	listeners := make([]stateListener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()
	for _, l := range listeners {
		l.f(s)
	}
}

func (e *Environment) current() (AudioContext, EnvironmentState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.native == nil {
		return nil, e.state, ErrNotInitialized
	}
	return e.native, e.state, nil
}
