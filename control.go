package rack

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"gitlab.com/gomidi/midi/v2"
)

type (
	// ControlMap is a two-way map between MIDI controllers and module
	// parameters: one controller drives at most one parameter and vice versa.
	ControlMap struct {
		graph  *PatchGraph
		logger *slog.Logger

		mu       sync.Mutex
		controls map[MIDIControl]ParamRef
		params   map[ParamRef]MIDIControl
		learning *ParamRef
	}

	// MIDIControl identifies a controller; Channel is zero based.
	MIDIControl struct {
		Channel uint8 `json:"channel"`
		Control uint8 `json:"control"`
	}

	// ParamRef names a parameter of a registered module.
	ParamRef struct {
		Module string `json:"module"`
		Param  string `json:"param"`
	}

	ControlBinding struct {
		Control MIDIControl `json:"control"`
		Param   ParamRef    `json:"param"`
	}
)

func NewControlMap(graph *PatchGraph, logger *slog.Logger) *ControlMap {
	if logger == nil {
		logger = slog.Default().With("component", "controlmap")
	}
	return &ControlMap{
		graph:    graph,
		logger:   logger,
		controls: map[MIDIControl]ParamRef{},
		params:   map[ParamRef]MIDIControl{},
	}
}

// Bind links a controller to a parameter, dropping any previous binding of
// either.
func (c *ControlMap) Bind(ctrl MIDIControl, p ParamRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.link(ctrl, p)
}

func (c *ControlMap) link(ctrl MIDIControl, p ParamRef) {
	if c.controls == nil {
		c.controls = map[MIDIControl]ParamRef{}
		c.params = map[ParamRef]MIDIControl{}
	}
	if old, ok := c.controls[ctrl]; ok {
		delete(c.params, old)
	}
	if old, ok := c.params[p]; ok {
		delete(c.controls, old)
	}
	c.controls[ctrl] = p
	c.params[p] = ctrl
}

// Unbind removes the binding of a parameter, if any.
func (c *ControlMap) Unbind(p ParamRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctrl, ok := c.params[p]; ok {
		delete(c.params, p)
		delete(c.controls, ctrl)
	}
}

// UnbindModule removes every binding targeting a module.
func (c *ControlMap) UnbindModule(moduleID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p, ctrl := range c.params {
		if p.Module == moduleID {
			delete(c.params, p)
			delete(c.controls, ctrl)
		}
	}
}

func (c *ControlMap) Param(ctrl MIDIControl) (ParamRef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.controls[ctrl]
	return p, ok
}

func (c *ControlMap) Control(p ParamRef) (MIDIControl, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctrl, ok := c.params[p]
	return ctrl, ok
}

// Learn makes the next received control change bind to p. The parameter
// must exist.
func (c *ControlMap) Learn(p ParamRef) error {
	m, ok := c.graph.Module(p.Module)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, p.Module)
	}
	if _, ok := m.Parameter(p.Param); !ok {
		return fmt.Errorf("%w: %q on module %q", ErrParameterNotFound, p.Param, p.Module)
	}
	c.mu.Lock()
	c.learning = &p
	c.mu.Unlock()
	return nil
}

// Learning reports whether a Learn is pending.
func (c *ControlMap) Learning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.learning != nil
}

// Handle applies a MIDI message. Messages other than control changes are
// ignored; the return value tells whether a parameter was changed.
func (c *ControlMap) Handle(msg midi.Message) bool {
	var channel, control, value uint8
	if !msg.GetControlChange(&channel, &control, &value) {
		return false
	}
	return c.HandleControlChange(MIDIControl{Channel: channel, Control: control}, value)
}

// HandleControlChange maps value 0..127 onto the bound parameter's range.
func (c *ControlMap) HandleControlChange(ctrl MIDIControl, value uint8) bool {
	c.mu.Lock()
	if c.learning != nil {
		c.link(ctrl, *c.learning)
		c.logger.Info("bound MIDI controller", "channel", ctrl.Channel+1, "control", ctrl.Control, "module", c.learning.Module, "param", c.learning.Param)
		c.learning = nil
	}
	p, ok := c.controls[ctrl]
	c.mu.Unlock()
	if !ok {
		return false
	}
	m, ok := c.graph.Module(p.Module)
	if !ok {
		return false
	}
	param, ok := m.Parameter(p.Param)
	if !ok {
		return false
	}
	if value > 127 {
		value = 127
	}
	v := param.Denormalize(float64(value) / 127)
	if v == param.Value() {
		return false
	}
	if _, err := m.SetParameter(p.Param, v); err != nil {
		c.logger.Warn("MIDI control change failed", "module", p.Module, "param", p.Param, "err", err)
		return false
	}
	return true
}

// Bindings lists all bindings ordered by channel and controller.
func (c *ControlMap) Bindings() []ControlBinding {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := make([]ControlBinding, 0, len(c.controls))
	for ctrl, p := range c.controls {
		ret = append(ret, ControlBinding{Control: ctrl, Param: p})
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Control.less(ret[j].Control) })
	return ret
}

func (a MIDIControl) less(b MIDIControl) bool {
	if a.Channel != b.Channel {
		return a.Channel < b.Channel
	}
	return a.Control < b.Control
}

// marshal as a slice of bindings because json doesn't support maps with
// struct keys
func (c *ControlMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Bindings())
}

func (c *ControlMap) UnmarshalJSON(data []byte) error {
	var bindings []ControlBinding
	if err := json.Unmarshal(data, &bindings); err != nil {
		return err
	}
	for _, b := range bindings {
		c.Bind(b.Control, b.Param)
	}
	return nil
}
