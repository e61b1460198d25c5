package modules

import (
	"github.com/vsariola/rack"
)

// cutoffDepth is the cutoff shift in Hz of a full-scale signal on the
// cutoff input.
const cutoffDepth = 1000

type Filter struct {
	*rack.Module
	ac     rack.AudioContext
	filter rack.FilterStage
	cutoff rack.GainStage
	typ    rack.FilterType
}

func NewFilter(b Builder, cfg rack.ModuleConfig) (*Filter, error) {
	f := &Filter{ac: b.Context, typ: rack.Lowpass}
	cfg = withDefaults(cfg, "Multimode filter", "#b5754a", 8)
	if _, err := rack.NewModule(b.Graph, KindFilter, f, cfg); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Filter) Initialize(n *rack.Node) error {
	var err error
	if f.filter, err = f.ac.NewFilterStage(); err != nil {
		return err
	}
	if f.cutoff, err = f.ac.NewGainStage(); err != nil {
		return err
	}
	f.cutoff.Gain().SetValue(cutoffDepth)
	if err := f.cutoff.Connect(f.filter.Frequency()); err != nil {
		return err
	}
	f.filter.SetType(f.typ)
	f.filter.Frequency().SetValue(1000)
	f.filter.Q().SetValue(1)
	if _, err := n.CreateInput("input", f.filter); err != nil {
		return err
	}
	if _, err := n.CreateInput("cutoff", f.cutoff); err != nil {
		return err
	}
	if _, err := n.CreateOutput("output", f.filter); err != nil {
		return err
	}
	if _, err := n.CreateParameter("cutoff", 1000, 20, 20000, "Hz"); err != nil {
		return err
	}
	if _, err := n.CreateParameter("resonance", 1, 0.1, 30, "Q"); err != nil {
		return err
	}
	return nil
}

func (f *Filter) DefineUI(m *rack.Module) error {
	f.Module = m
	b := &build{m: m}
	b.knob("cutoff", "CUTOFF", 60, 80, rack.KnobLarge)
	b.knob("resonance", "RES", 60, 170, rack.KnobMedium)
	b.selector(rack.NewSwitch("type", "TYPE", filterTypeOptions()...), 60, 230)
	b.input("input", "IN", 30, 320)
	b.input("cutoff", "CV", 30, 280)
	b.output("output", "OUT", 90, 320)
	return b.err
}

func filterTypeOptions() []string {
	ret := make([]string, len(rack.FilterTypes))
	for i, t := range rack.FilterTypes {
		ret[i] = string(t)
	}
	return ret
}

func (f *Filter) OnParameterChange(name string, value float64) {
	switch name {
	case "cutoff":
		f.filter.Frequency().SetValue(value)
	case "resonance":
		f.filter.Q().SetValue(value)
	}
}

func (f *Filter) OnSwitchChange(s rack.Switch, value string) {
	if s.ID != "type" {
		return
	}
	f.typ = rack.FilterType(value)
	f.filter.SetType(f.typ)
}

func (f *Filter) OnDispose() {
	f.cutoff.DisconnectAll()
	f.filter.DisconnectAll()
}

func (f *Filter) SaveState(state map[string]string) {
	state["type"] = string(f.typ)
}

func (f *Filter) RestoreState(state map[string]string) error {
	if t, ok := state["type"]; ok {
		return f.SetType(rack.FilterType(t))
	}
	return nil
}

func (f *Filter) Type() rack.FilterType { return f.typ }

func (f *Filter) SetType(t rack.FilterType) error {
	return f.SetSwitch("type", string(t))
}
