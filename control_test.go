package rack_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/vsariola/rack"
	"gitlab.com/gomidi/midi/v2"
)

func TestControlMapBind(t *testing.T) {
	g, ac := newGraph(t, rack.GraphOptions{})
	newPanel(t, g, ac, "p")
	c := rack.NewControlMap(g, nil)
	ctrl := rack.MIDIControl{Channel: 0, Control: 7}
	level := rack.ParamRef{Module: "p", Param: "level"}
	c.Bind(ctrl, level)
	if p, ok := c.Param(ctrl); !ok || p != level {
		t.Fatalf("Param(%v) = %v, %v", ctrl, p, ok)
	}
	other := rack.MIDIControl{Channel: 1, Control: 7}
	c.Bind(other, level)
	if _, ok := c.Param(ctrl); ok {
		t.Error("rebinding the parameter kept the old controller")
	}
	if got, _ := c.Control(level); got != other {
		t.Errorf("Control(level) = %v, want %v", got, other)
	}
	c.UnbindModule("p")
	if len(c.Bindings()) != 0 {
		t.Errorf("bindings left after UnbindModule: %v", c.Bindings())
	}
}

func TestControlMapHandle(t *testing.T) {
	g, ac := newGraph(t, rack.GraphOptions{})
	m, k := newPanel(t, g, ac, "p")
	c := rack.NewControlMap(g, nil)
	c.Bind(rack.MIDIControl{Channel: 2, Control: 10}, rack.ParamRef{Module: "p", Param: "level"})
	if !c.Handle(midi.ControlChange(2, 10, 127)) {
		t.Fatal("bound control change was not applied")
	}
	if v, _ := m.ParameterValue("level"); v != 2 {
		t.Errorf("level = %v, want the maximum 2", v)
	}
	if c.Handle(midi.ControlChange(2, 10, 127)) {
		t.Error("an unchanged value reported a change")
	}
	if c.Handle(midi.ControlChange(2, 11, 0)) {
		t.Error("an unbound controller changed something")
	}
	if c.Handle(midi.NoteOn(2, 60, 100)) {
		t.Error("a note on was treated as a control change")
	}
	if !c.Handle(midi.ControlChange(2, 10, 0)) {
		t.Fatal("control change to 0 was not applied")
	}
	if v, _ := m.ParameterValue("level"); v != 0 {
		t.Errorf("level = %v, want 0", v)
	}
	if len(k.changes) != 2 {
		t.Errorf("OnParameterChange called %d times, want 2", len(k.changes))
	}
	if s, _ := m.LEDState("lamp"); s.On {
		t.Error("bound LED still lit at zero level")
	}
}

func TestControlMapLearn(t *testing.T) {
	g, ac := newGraph(t, rack.GraphOptions{})
	newPanel(t, g, ac, "p")
	c := rack.NewControlMap(g, nil)
	if err := c.Learn(rack.ParamRef{Module: "x", Param: "level"}); !errors.Is(err, rack.ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
	if err := c.Learn(rack.ParamRef{Module: "p", Param: "nope"}); !errors.Is(err, rack.ErrParameterNotFound) {
		t.Errorf("expected ErrParameterNotFound, got %v", err)
	}
	if err := c.Learn(rack.ParamRef{Module: "p", Param: "level"}); err != nil {
		t.Fatal(err)
	}
	if !c.Learning() {
		t.Fatal("Learn not pending")
	}
	c.HandleControlChange(rack.MIDIControl{Channel: 0, Control: 1}, 64)
	if c.Learning() {
		t.Error("Learn still pending after a control change")
	}
	if p, ok := c.Param(rack.MIDIControl{Channel: 0, Control: 1}); !ok || p.Param != "level" {
		t.Errorf("learned binding = %v, %v", p, ok)
	}
}

func TestControlMapJSON(t *testing.T) {
	g, _ := newGraph(t, rack.GraphOptions{})
	c := rack.NewControlMap(g, nil)
	c.Bind(rack.MIDIControl{Channel: 1, Control: 2}, rack.ParamRef{Module: "b", Param: "x"})
	c.Bind(rack.MIDIControl{Channel: 0, Control: 9}, rack.ParamRef{Module: "a", Param: "y"})
	b, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	var decoded rack.ControlMap
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	bindings := decoded.Bindings()
	if len(bindings) != 2 || bindings[0].Param.Module != "a" || bindings[1].Param.Module != "b" {
		t.Errorf("decoded bindings %+v", bindings)
	}
}
