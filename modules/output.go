package modules

import (
	"sync"
	"time"

	"github.com/vsariola/rack"
)

const clipThreshold = 0.99

// Output routes its input through a volume stage and an analyser to the
// context destination. While active it meters the signal periodically and
// drives the level and clip LEDs.
type Output struct {
	*rack.Module
	ac       rack.AudioContext
	node     *rack.Node
	volume   rack.GainStage
	analyser rack.Analyser
	interval time.Duration
	muted    bool

	meter *rack.RepeatingTask

	levelMu   sync.Mutex
	rms, peak float64
}

func NewOutput(b Builder, cfg rack.ModuleConfig) (*Output, error) {
	o := &Output{ac: b.Context, interval: b.meterInterval()}
	cfg = withDefaults(cfg, "Audio output", "#333333", 6)
	if _, err := rack.NewModule(b.Graph, KindOutput, o, cfg); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Output) Initialize(n *rack.Node) error {
	o.node = n
	var err error
	if o.volume, err = o.ac.NewGainStage(); err != nil {
		return err
	}
	if o.analyser, err = o.ac.NewAnalyser(); err != nil {
		return err
	}
	o.volume.Gain().SetValue(0)
	if err := o.volume.Connect(o.analyser); err != nil {
		return err
	}
	if err := o.analyser.Connect(o.ac.Destination()); err != nil {
		return err
	}
	if _, err := n.CreateInput("input", o.volume); err != nil {
		return err
	}
	_, err = n.CreateParameter("volume", 0.7, 0, 1, "")
	return err
}

func (o *Output) DefineUI(m *rack.Module) error {
	o.Module = m
	b := &build{m: m}
	b.knob("volume", "VOL", 45, 90, rack.KnobLarge)
	b.selector(rack.NewSwitch("mute", "MUTE", "off", "on"), 45, 170)
	b.led(rack.LED{ID: "level", Label: "LVL", Color: "#3f3", X: 25, Y: 30})
	b.led(rack.LED{ID: "clip", Label: "CLIP", Color: "#f33", X: 65, Y: 30})
	b.display(rack.Display{ID: "meter", Kind: rack.DisplayMeter, X: 15, Y: 210, Width: 60, Height: 80})
	b.input("input", "IN", 45, 320)
	return b.err
}

// applyGain sets the native volume: silent unless active and unmuted.
func (o *Output) applyGain() {
	v := 0.0
	if o.node.IsActive() && !o.muted {
		v, _ = o.node.ParameterValue("volume")
	}
	o.volume.Gain().SetValue(v)
}

func (o *Output) OnParameterChange(name string, _ float64) {
	if name == "volume" {
		o.applyGain()
	}
}

func (o *Output) OnStart(float64) { o.applyGain() }
func (o *Output) OnStop(float64)  { o.applyGain() }

func (o *Output) OnSwitchChange(s rack.Switch, value string) {
	if s.ID != "mute" {
		return
	}
	o.muted = value == "on"
	o.applyGain()
}

func (o *Output) OnActivate() {
	o.meter.Stop()
	o.meter = rack.Every(o.interval, func(time.Time) { o.measure() })
}

func (o *Output) OnDeactivate() {
	o.meter.Stop()
	o.meter = nil
	o.setLevel(0, 0)
	o.SetLEDLevel("level", false, 0)
	o.SetLEDState("clip", false)
}

func (o *Output) OnDispose() {
	o.meter.Stop()
	o.meter = nil
	o.volume.DisconnectAll()
	o.analyser.DisconnectAll()
}

func (o *Output) measure() {
	rms, peak := o.analyser.Level()
	o.setLevel(float64(rms), float64(peak))
	db := rack.GainToDB(float64(rms))
	intensity := (db - rack.MinDecibels) / -rack.MinDecibels
	o.SetLEDLevel("level", db > rack.MinDecibels, intensity)
	o.SetLEDState("clip", float64(peak) >= clipThreshold)
}

func (o *Output) setLevel(rms, peak float64) {
	o.levelMu.Lock()
	o.rms, o.peak = rms, peak
	o.levelMu.Unlock()
}

// Level returns the most recently metered RMS and peak amplitude.
func (o *Output) Level() (rms, peak float64) {
	o.levelMu.Lock()
	defer o.levelMu.Unlock()
	return o.rms, o.peak
}

// LevelDB returns the most recently metered RMS level in decibels.
func (o *Output) LevelDB() float64 {
	rms, _ := o.Level()
	return rack.GainToDB(rms)
}

// Measure meters the signal immediately, outside the periodic task.
func (o *Output) Measure() { o.measure() }

// Metering reports whether the metering task is running.
func (o *Output) Metering() bool {
	if o.meter == nil {
		return false
	}
	select {
	case <-o.meter.Done():
		return false
	default:
		return true
	}
}
