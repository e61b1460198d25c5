package modules

import (
	"fmt"

	"github.com/vsariola/rack"
)

// fmDepth is the frequency deviation in Hz of a full-scale signal on the fm
// input.
const fmDepth = 100

// Oscillator is a tone generator with level control. Native tone generators
// are one-shot, so every restart after a stop swaps in a fresh generator
// behind the same fm input and output gain stages.
type Oscillator struct {
	*rack.Module
	ac       rack.AudioContext
	node     *rack.Node
	tone     rack.ToneGenerator
	used     bool
	fm       rack.GainStage
	out      rack.GainStage
	waveform rack.Waveform
}

func NewOscillator(b Builder, cfg rack.ModuleConfig) (*Oscillator, error) {
	o := &Oscillator{ac: b.Context, waveform: rack.Sine}
	cfg = withDefaults(cfg, "Voltage controlled oscillator", "#4a7ab5", 8)
	if _, err := rack.NewModule(b.Graph, KindOscillator, o, cfg); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Oscillator) Initialize(n *rack.Node) error {
	o.node = n
	var err error
	if o.fm, err = o.ac.NewGainStage(); err != nil {
		return err
	}
	o.fm.Gain().SetValue(fmDepth)
	if o.out, err = o.ac.NewGainStage(); err != nil {
		return err
	}
	if err := o.newTone(); err != nil {
		return err
	}
	if _, err := n.CreateInput("fm", o.fm); err != nil {
		return err
	}
	if _, err := n.CreateOutput("output", o.out); err != nil {
		return err
	}
	if _, err := n.CreateParameter("frequency", 440, 20, 20000, "Hz"); err != nil {
		return err
	}
	if _, err := n.CreateParameter("detune", 0, -1200, 1200, "cents"); err != nil {
		return err
	}
	if _, err := n.CreateParameter("level", 0.5, 0, 1, ""); err != nil {
		return err
	}
	o.out.Gain().SetValue(0.5)
	return nil
}

// newTone creates a generator configured from the current parameters and
// wires it between the fm and output stages.
func (o *Oscillator) newTone() error {
	tone, err := o.ac.NewToneGenerator()
	if err != nil {
		return err
	}
	tone.SetWaveform(o.waveform)
	if v, ok := o.node.ParameterValue("frequency"); ok {
		tone.Frequency().SetValue(v)
	}
	if v, ok := o.node.ParameterValue("detune"); ok {
		tone.Detune().SetValue(v)
	}
	if err := tone.Connect(o.out); err != nil {
		return fmt.Errorf("wire tone generator: %w", err)
	}
	if err := o.fm.Connect(tone.Frequency()); err != nil {
		tone.DisconnectAll()
		return fmt.Errorf("wire fm input: %w", err)
	}
	if o.tone != nil {
		if err := o.fm.Disconnect(o.tone.Frequency()); err != nil {
			o.node.Logger().Warn("unwiring old tone generator failed", "err", err)
		}
		o.tone.DisconnectAll()
	}
	o.tone = tone
	o.used = false
	return nil
}

func (o *Oscillator) DefineUI(m *rack.Module) error {
	o.Module = m
	b := &build{m: m}
	b.knob("frequency", "FREQ", 60, 80, rack.KnobLarge)
	b.knob("detune", "FINE", 30, 160, rack.KnobSmall)
	b.knob("level", "LEVEL", 90, 160, rack.KnobSmall)
	b.selector(rack.NewSwitch("waveform", "WAVE", waveformOptions()...), 60, 220)
	b.led(rack.LED{ID: "active", Label: "ON", Color: "#3f3", X: 105, Y: 20})
	b.input("fm", "FM", 30, 320)
	b.output("output", "OUT", 90, 320)
	return b.err
}

func waveformOptions() []string {
	ret := make([]string, len(rack.Waveforms))
	for i, w := range rack.Waveforms {
		ret[i] = string(w)
	}
	return ret
}

func (o *Oscillator) OnParameterChange(name string, value float64) {
	switch name {
	case "frequency":
		o.tone.Frequency().SetValue(value)
	case "detune":
		o.tone.Detune().SetValue(value)
	case "level":
		o.out.Gain().SetValue(value)
	}
}

func (o *Oscillator) OnStart(when float64) {
	if o.used {
		if err := o.newTone(); err != nil {
			o.node.Logger().Warn("recreating tone generator failed", "err", err)
			return
		}
	}
	o.used = true
	if err := o.tone.Start(when); err != nil {
		o.node.Logger().Warn("starting tone generator failed", "err", err)
	}
}

func (o *Oscillator) OnStop(when float64) {
	if err := o.tone.Stop(when); err != nil {
		o.node.Logger().Warn("stopping tone generator failed", "err", err)
	}
}

func (o *Oscillator) OnActivate()   { o.SetLEDState("active", true) }
func (o *Oscillator) OnDeactivate() { o.SetLEDState("active", false) }

func (o *Oscillator) OnSwitchChange(s rack.Switch, value string) {
	if s.ID != "waveform" {
		return
	}
	o.waveform = rack.Waveform(value)
	o.tone.SetWaveform(o.waveform)
}

func (o *Oscillator) OnDispose() {
	if o.used {
		if err := o.tone.Stop(0); err != nil {
			o.node.Logger().Debug("stopping tone generator on dispose", "err", err)
		}
	}
	o.tone.DisconnectAll()
	o.fm.DisconnectAll()
	o.out.DisconnectAll()
}

func (o *Oscillator) SaveState(state map[string]string) {
	state["waveform"] = string(o.waveform)
}

func (o *Oscillator) RestoreState(state map[string]string) error {
	if w, ok := state["waveform"]; ok {
		return o.SetWaveform(rack.Waveform(w))
	}
	return nil
}

// Waveform returns the current waveform.
func (o *Oscillator) Waveform() rack.Waveform { return o.waveform }

// SetWaveform changes the waveform through the waveform switch, so the
// panel and the generator stay in sync. Existing connections are kept.
func (o *Oscillator) SetWaveform(w rack.Waveform) error {
	return o.SetSwitch("waveform", string(w))
}

// Frequency returns the frequency parameter in Hz.
func (o *Oscillator) Frequency() float64 {
	v, _ := o.ParameterValue("frequency")
	return v
}
