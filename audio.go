package rack

import "context"

type (
	// AudioContext is the native audio processing context. The rack never
	// renders audio itself; it only creates, connects and automates the
	// primitives an AudioContext hands out.
	AudioContext interface {
		SampleRate() float64
		CurrentTime() float64
		State() ContextState
		Resume() error
		Suspend() error
		Close() error
		// OnStateChange registers a callback for state transitions reported by
		// the native side. The returned function removes the callback.
		OnStateChange(func(ContextState)) (cancel func())

		Destination() Primitive
		NewToneGenerator() (ToneGenerator, error)
		NewGainStage() (GainStage, error)
		NewFilterStage() (FilterStage, error)
		NewAnalyser() (Analyser, error)
	}

	// ContextFactory creates a native context. Drivers (e.g. the oto device
	// driver or the offline renderer) provide one to the Environment.
	ContextFactory func(ctx context.Context, opts ContextOptions) (AudioContext, error)

	ContextOptions struct {
		SampleRate  float64
		LatencyHint LatencyHint
		Channels    int
	}

	ContextState string
	LatencyHint  string
	Waveform     string
	FilterType   string

	// Receiver is a native endpoint that accepts a signal: the input of a
	// primitive or an automatable parameter.
	Receiver interface {
		NativeID() uint64
	}

	// Primitive is a native processing block with one signal input and one
	// signal output.
	Primitive interface {
		Receiver
		Connect(dst Receiver) error
		Disconnect(dst Receiver) error
		DisconnectAll()
	}

	// AudioParam is a native, automatable scalar. Signals connected to it are
	// added to its value.
	AudioParam interface {
		Receiver
		Value() float64
		SetValue(v float64)
		SetValueAtTime(v, t float64)
		LinearRampToValueAtTime(v, t float64)
		CancelScheduledValues(t float64)
	}

	ToneGenerator interface {
		Primitive
		Frequency() AudioParam
		Detune() AudioParam
		Waveform() Waveform
		SetWaveform(w Waveform)
		// Start and Stop are one-shot: a generator cannot be restarted once
		// started, and both fail when called out of order.
		Start(when float64) error
		Stop(when float64) error
	}

	GainStage interface {
		Primitive
		Gain() AudioParam
	}

	FilterStage interface {
		Primitive
		Frequency() AudioParam
		Q() AudioParam
		Gain() AudioParam
		Type() FilterType
		SetType(t FilterType)
	}

	// Analyser passes its input through unchanged and keeps the most recent
	// FFTSize samples for inspection.
	Analyser interface {
		Primitive
		FFTSize() int
		TimeDomainData(dst []float32) int
		Level() (rms, peak float32)
	}
)

const (
	StateRunning   ContextState = "running"
	StateSuspended ContextState = "suspended"
	StateClosed    ContextState = "closed"
)

const (
	LatencyInteractive LatencyHint = "interactive"
	LatencyBalanced    LatencyHint = "balanced"
	LatencyPlayback    LatencyHint = "playback"
)

const (
	Sine     Waveform = "sine"
	Square   Waveform = "square"
	Sawtooth Waveform = "sawtooth"
	Triangle Waveform = "triangle"
)

// Waveforms lists the waveforms a tone generator supports, in display order.
var Waveforms = []Waveform{Sine, Square, Sawtooth, Triangle}

const (
	Lowpass  FilterType = "lowpass"
	Highpass FilterType = "highpass"
	Bandpass FilterType = "bandpass"
	Notch    FilterType = "notch"
)

var FilterTypes = []FilterType{Lowpass, Highpass, Bandpass, Notch}

// Valid reports whether w is one of Waveforms.
func (w Waveform) Valid() bool {
	for _, v := range Waveforms {
		if v == w {
			return true
		}
	}
	return false
}

func (f FilterType) Valid() bool {
	for _, v := range FilterTypes {
		if v == f {
			return true
		}
	}
	return false
}
