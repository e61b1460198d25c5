package modules

import (
	"github.com/vsariola/rack"
)

// VCA multiplies its input by the gain parameter plus the cv signal.
type VCA struct {
	*rack.Module
	ac   rack.AudioContext
	gain rack.GainStage
	cv   rack.GainStage
}

func NewVCA(b Builder, cfg rack.ModuleConfig) (*VCA, error) {
	v := &VCA{ac: b.Context}
	cfg = withDefaults(cfg, "Voltage controlled amplifier", "#5fa85f", 4)
	if _, err := rack.NewModule(b.Graph, KindVCA, v, cfg); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *VCA) Initialize(n *rack.Node) error {
	var err error
	if v.gain, err = v.ac.NewGainStage(); err != nil {
		return err
	}
	if v.cv, err = v.ac.NewGainStage(); err != nil {
		return err
	}
	if err := v.cv.Connect(v.gain.Gain()); err != nil {
		return err
	}
	v.gain.Gain().SetValue(0.5)
	if _, err := n.CreateInput("input", v.gain); err != nil {
		return err
	}
	if _, err := n.CreateInput("cv", v.cv); err != nil {
		return err
	}
	if _, err := n.CreateOutput("output", v.gain); err != nil {
		return err
	}
	_, err = n.CreateParameter("gain", 0.5, 0, 1, "")
	return err
}

func (v *VCA) DefineUI(m *rack.Module) error {
	v.Module = m
	b := &build{m: m}
	b.knob("gain", "GAIN", 30, 90, rack.KnobMedium)
	b.led(rack.LED{ID: "level", Label: "LVL", Param: "gain", Color: "#fc3", X: 30, Y: 40})
	b.input("input", "IN", 30, 240)
	b.input("cv", "CV", 30, 280)
	b.output("output", "OUT", 30, 320)
	if b.err == nil {
		m.SetLEDLevel("level", true, 0.5)
	}
	return b.err
}

func (v *VCA) OnParameterChange(name string, value float64) {
	if name == "gain" {
		v.gain.Gain().SetValue(value)
	}
}

func (v *VCA) OnDispose() {
	v.cv.DisconnectAll()
	v.gain.DisconnectAll()
}
