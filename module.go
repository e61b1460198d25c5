package rack

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type (
	// Module is a Node placed on the rack, with a panel (UI) and an
	// activate/deactivate lifecycle layered on Start/Stop. Modules register
	// themselves with their PatchGraph when created.
	Module struct {
		*Node

		description string
		color       string
		size        int
		graph       *PatchGraph

		position Position
		ui       UI
		uiSealed bool
		active   bool

		ledMu     sync.Mutex
		ledStates map[string]LEDState
	}

	ModuleConfig struct {
		ID          string
		Name        string // defaults to the title-cased kind
		Description string
		Color       string
		Size        int // width in HP, defaults to DefaultModuleSize
		Position    PositionUpdate
		Logger      *slog.Logger
	}

	// Position places a module on the rack. Width and Height are in pixels.
	Position struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
		Row    RackRow `json:"row"`
		Slot   int     `json:"slot"`
	}

	// PositionUpdate is a partial Position; nil fields are left unchanged.
	PositionUpdate struct {
		X, Y, Width, Height *float64
		Row                 *RackRow
		Slot                *int
	}

	RackRow string

	LEDState struct {
		On        bool
		Intensity float64
	}

	// UIDefiner is an optional module hook, called once after the module is
	// registered, to declare the panel with the Add* methods.
	UIDefiner interface {
		DefineUI(m *Module) error
	}

	Activator interface {
		OnActivate()
		OnDeactivate()
	}

	KnobChangeHandler interface {
		OnKnobChange(k Knob, value float64)
	}

	SwitchChangeHandler interface {
		OnSwitchChange(s Switch, value string)
	}

	// LEDStateHandler receives LED changes; intensity is in 0..1.
	LEDStateHandler interface {
		OnLEDStateChange(l LED, on bool, intensity float64)
	}

	// LEDParameterHandler overrides how a parameter bound to an LED drives
	// it. Without it the LED shows the normalized parameter value.
	LEDParameterHandler interface {
		UpdateLEDFromParameter(l LED, value float64)
	}

	// PositionChangeHandler must not panic; position is presentational.
	PositionChangeHandler interface {
		OnPositionChange(p Position)
	}
)

const (
	RowTop    RackRow = "top"
	RowBottom RackRow = "bottom"
)

const (
	// PixelsPerHP converts module width in HP to panel pixels.
	PixelsPerHP       = 15
	ModuleHeight      = 380
	DefaultModuleSize = 8
)

// NewModule creates the node, registers it with graph and lets the
// implementation declare its UI.
func NewModule(graph *PatchGraph, kind string, impl NodeKind, cfg ModuleConfig) (*Module, error) {
	if graph == nil {
		return nil, fmt.Errorf("module %q: nil patch graph", kind)
	}
	if cfg.Name == "" {
		cfg.Name = cases.Title(language.English).String(kind)
	}
	if cfg.Size <= 0 {
		cfg.Size = DefaultModuleSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = graph.logger
	}
	node, err := NewNode(kind, impl, NodeOptions{ID: cfg.ID, Name: cfg.Name, Logger: logger})
	if err != nil {
		return nil, err
	}
	m := &Module{
		Node:        node,
		description: cfg.Description,
		color:       cfg.Color,
		size:        cfg.Size,
		graph:       graph,
		position: Position{
			Width:  float64(cfg.Size * PixelsPerHP),
			Height: ModuleHeight,
			Row:    RowTop,
		},
		ledStates: map[string]LEDState{},
	}
	m.position = m.position.merge(cfg.Position)
	if err := graph.registerModule(m); err != nil {
		node.Dispose()
		return nil, err
	}
	if d, ok := impl.(UIDefiner); ok {
		if err := d.DefineUI(m); err != nil {
			m.Dispose()
			return nil, fmt.Errorf("define UI of %s module %q: %w", kind, node.ID(), err)
		}
	}
	m.uiSealed = true
	return m, nil
}

func (m *Module) Description() string { return m.description }
func (m *Module) Color() string       { return m.color }

// Size returns the module width in HP.
func (m *Module) Size() int { return m.size }

// IsActive reports the module's activation flag.
func (m *Module) IsActive() bool { return m.active }

func (m *Module) Position() Position { return m.position }

// SetPosition merges u over the current position and notifies the module.
func (m *Module) SetPosition(u PositionUpdate) {
	m.position = m.position.merge(u)
	if h, ok := m.Impl().(PositionChangeHandler); ok {
		h.OnPositionChange(m.position)
	}
}

func (p Position) merge(u PositionUpdate) Position {
	if u.X != nil {
		p.X = *u.X
	}
	if u.Y != nil {
		p.Y = *u.Y
	}
	if u.Width != nil {
		p.Width = *u.Width
	}
	if u.Height != nil {
		p.Height = *u.Height
	}
	if u.Row != nil {
		p.Row = *u.Row
	}
	if u.Slot != nil {
		p.Slot = *u.Slot
	}
	return p
}

// Update returns a PositionUpdate setting every field of p.
func (p Position) Update() PositionUpdate {
	return PositionUpdate{X: &p.X, Y: &p.Y, Width: &p.Width, Height: &p.Height, Row: &p.Row, Slot: &p.Slot}
}

// UI returns a deep copy of the module panel.
func (m *Module) UI() UI { return m.ui.Copy() }

func (m *Module) AddKnob(k Knob) error {
	if err := m.checkUIOpen("knob", k.ID); err != nil {
		return err
	}
	m.ui.Knobs = append(m.ui.Knobs, k)
	return nil
}

func (m *Module) AddSwitch(s Switch) error {
	if err := m.checkUIOpen("switch", s.ID); err != nil {
		return err
	}
	if len(s.Options) == 0 {
		return fmt.Errorf("%w: switch %q has no options", ErrInvalidSwitchValue, s.ID)
	}
	if s.Value == "" {
		s.Value = s.Options[0]
	}
	if !s.Has(s.Value) {
		return fmt.Errorf("%w: %q not in %v for switch %q", ErrInvalidSwitchValue, s.Value, s.Options, s.ID)
	}
	s.Options = append([]string(nil), s.Options...)
	m.ui.Switches = append(m.ui.Switches, s)
	return nil
}

func (m *Module) AddLED(l LED) error {
	if err := m.checkUIOpen("LED", l.ID); err != nil {
		return err
	}
	m.ui.LEDs = append(m.ui.LEDs, l)
	return nil
}

func (m *Module) AddDisplay(d Display) error {
	if err := m.checkUIOpen("display", d.ID); err != nil {
		return err
	}
	m.ui.Displays = append(m.ui.Displays, d)
	return nil
}

// AddInputJack declares a jack for an input port; j.Type must be JackInput.
func (m *Module) AddInputJack(j Jack) error {
	if err := m.checkUIOpen("input jack", j.ID); err != nil {
		return err
	}
	if j.Type != JackInput {
		return fmt.Errorf("%w: jack %q has type %q, want %q", ErrInvalidJackType, j.ID, j.Type, JackInput)
	}
	if _, ok := m.Input(j.Port); !ok {
		return fmt.Errorf("%w: jack %q refers to input %q", ErrPortNotFound, j.ID, j.Port)
	}
	m.ui.InputJacks = append(m.ui.InputJacks, j)
	return nil
}

// AddOutputJack declares a jack for an output port; j.Type must be
// JackOutput.
func (m *Module) AddOutputJack(j Jack) error {
	if err := m.checkUIOpen("output jack", j.ID); err != nil {
		return err
	}
	if j.Type != JackOutput {
		return fmt.Errorf("%w: jack %q has type %q, want %q", ErrInvalidJackType, j.ID, j.Type, JackOutput)
	}
	if _, ok := m.Output(j.Port); !ok {
		return fmt.Errorf("%w: jack %q refers to output %q", ErrPortNotFound, j.ID, j.Port)
	}
	m.ui.OutputJacks = append(m.ui.OutputJacks, j)
	return nil
}

func (m *Module) checkUIOpen(what, id string) error {
	if m.uiSealed {
		return fmt.Errorf("%w: %s %q added after construction", ErrTopologySealed, what, id)
	}
	return nil
}

// Activate starts the module. Activating an active module does nothing.
func (m *Module) Activate() {
	if m.active || m.IsDisposed() {
		return
	}
	m.Start(0)
	m.active = true
	if a, ok := m.Impl().(Activator); ok {
		a.OnActivate()
	}
}

// Deactivate stops the module. Deactivating an inactive module does
// nothing.
func (m *Module) Deactivate() {
	if !m.active || m.IsDisposed() {
		return
	}
	m.Stop(0)
	m.active = false
	if a, ok := m.Impl().(Activator); ok {
		a.OnDeactivate()
	}
}

// SetParameter sets a node parameter and then updates every knob and LED
// bound to it.
func (m *Module) SetParameter(name string, value float64) (float64, error) {
	v, err := m.Node.SetParameter(name, value)
	if err != nil {
		return v, err
	}
	if h, ok := m.Impl().(KnobChangeHandler); ok {
		for _, k := range m.ui.Knobs {
			if k.Param == name {
				h.OnKnobChange(k, v)
			}
		}
	}
	for _, l := range m.ui.LEDs {
		if l.Param != name {
			continue
		}
		if h, ok := m.Impl().(LEDParameterHandler); ok {
			h.UpdateLEDFromParameter(l, v)
			continue
		}
		if p, ok := m.Parameter(name); ok {
			n := p.Normalized()
			m.SetLEDLevel(l.ID, n > 0, n)
		}
	}
	return v, nil
}

// SetSwitch selects option on the switch with the given id.
func (m *Module) SetSwitch(id, option string) error {
	for i := range m.ui.Switches {
		s := &m.ui.Switches[i]
		if s.ID != id {
			continue
		}
		if err := s.selectOption(option); err != nil {
			return err
		}
		if h, ok := m.Impl().(SwitchChangeHandler); ok {
			h.OnSwitchChange(*s, option)
		}
		return nil
	}
	return fmt.Errorf("%w: no switch %q on module %q", ErrInvalidSwitchValue, id, m.ID())
}

// SwitchValue returns the selected option of a switch.
func (m *Module) SwitchValue(id string) (string, bool) {
	for _, s := range m.ui.Switches {
		if s.ID == id {
			return s.Value, true
		}
	}
	return "", false
}

// SetLEDState turns an LED on or off at full intensity. Unknown ids are
// ignored.
func (m *Module) SetLEDState(id string, on bool) {
	m.SetLEDLevel(id, on, 1)
}

// SetLEDLevel sets an LED with an explicit intensity in 0..1. Unknown ids
// are ignored.
func (m *Module) SetLEDLevel(id string, on bool, intensity float64) {
	for _, l := range m.ui.LEDs {
		if l.ID != id {
			continue
		}
		intensity = Clamp(intensity, 0, 1)
		m.ledMu.Lock()
		m.ledStates[id] = LEDState{On: on, Intensity: intensity}
		m.ledMu.Unlock()
		if h, ok := m.Impl().(LEDStateHandler); ok {
			h.OnLEDStateChange(l, on, intensity)
		}
		return
	}
}

// LEDState returns the last state set for an LED.
func (m *Module) LEDState(id string) (LEDState, bool) {
	m.ledMu.Lock()
	defer m.ledMu.Unlock()
	s, ok := m.ledStates[id]
	return s, ok
}

// Dispose unregisters the module from its graph, removing all its
// connections, disposes the node and clears the panel.
func (m *Module) Dispose() {
	if _, ok := m.graph.Module(m.ID()); !ok && m.IsDisposed() {
		return
	}
	m.graph.UnregisterNode(m.ID())
	m.Node.Dispose()
	m.active = false
	m.ui = UI{}
	m.ledMu.Lock()
	m.ledStates = map[string]LEDState{}
	m.ledMu.Unlock()
}
