package rack

import (
	"fmt"
	"sort"
)

type (
	// ModuleState is the plain, persistable snapshot of a module.
	ModuleState struct {
		ID       string   `json:"id"`
		Kind     string   `json:"kind"`
		Name     string   `json:"name"`
		Position Position `json:"position"`
		// Parameters maps parameter names to values. Decoded documents may
		// contain non-numeric entries; Restore ignores them.
		Parameters map[string]any    `yaml:",flow" json:"parameters"`
		Switches   map[string]string `yaml:",omitempty" json:"switches,omitempty"`
		// State holds kind-specific fields saved by a StateSaver.
		State  map[string]string `yaml:",omitempty" json:"state,omitempty"`
		Active bool              `json:"active"`
	}

	// StateSaver is an optional module hook persisting kind-specific state
	// that is not a parameter or switch.
	StateSaver interface {
		SaveState(state map[string]string)
		RestoreState(state map[string]string) error
	}
)

// Serialize snapshots the module.
func (m *Module) Serialize() ModuleState {
	st := ModuleState{
		ID:         m.ID(),
		Kind:       m.Kind(),
		Name:       m.Name(),
		Position:   m.position,
		Parameters: make(map[string]any, len(m.paramOrder)),
		Active:     m.active,
	}
	for _, name := range m.paramOrder {
		st.Parameters[name] = m.params[name].Value()
	}
	if len(m.ui.Switches) > 0 {
		st.Switches = make(map[string]string, len(m.ui.Switches))
		for _, s := range m.ui.Switches {
			st.Switches[s.ID] = s.Value
		}
	}
	if s, ok := m.Impl().(StateSaver); ok {
		st.State = map[string]string{}
		s.SaveState(st.State)
		if len(st.State) == 0 {
			st.State = nil
		}
	}
	return st
}

// Restore applies a snapshot to a freshly constructed module: position,
// numeric parameters (through SetParameter), switches, kind-specific state
// and finally activation.
func (m *Module) Restore(st ModuleState) error {
	m.SetPosition(st.Position.Update())
	names := make([]string, 0, len(st.Parameters))
	for name := range st.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, ok := toFloat(st.Parameters[name])
		if !ok {
			m.Logger().Debug("ignoring non-numeric parameter", "param", name, "value", st.Parameters[name])
			continue
		}
		if _, err := m.SetParameter(name, v); err != nil {
			m.Logger().Warn("ignoring unknown parameter", "param", name, "err", err)
		}
	}
	for id, option := range st.Switches {
		if err := m.SetSwitch(id, option); err != nil {
			return fmt.Errorf("restore module %q: %w", m.ID(), err)
		}
	}
	if s, ok := m.Impl().(StateSaver); ok && st.State != nil {
		if err := s.RestoreState(st.State); err != nil {
			return fmt.Errorf("restore module %q: %w", m.ID(), err)
		}
	}
	if st.Active {
		m.Activate()
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}
