package rack

import "fmt"

type (
	// UI is the declarative panel of a module: what controls exist, where
	// they sit on the panel and which parameter or port each one is bound to.
	// Rendering it is left to the front end.
	UI struct {
		Knobs       []Knob    `yaml:",omitempty" json:"knobs,omitempty"`
		Switches    []Switch  `yaml:",omitempty" json:"switches,omitempty"`
		LEDs        []LED     `yaml:"leds,omitempty" json:"leds,omitempty"`
		Displays    []Display `yaml:",omitempty" json:"displays,omitempty"`
		InputJacks  []Jack    `yaml:"inputjacks,omitempty" json:"inputJacks,omitempty"`
		OutputJacks []Jack    `yaml:"outputjacks,omitempty" json:"outputJacks,omitempty"`
	}

	Knob struct {
		ID    string   `json:"id"`
		Label string   `json:"label"`
		Param string   `json:"param"` // parameter the knob controls
		X     float64  `json:"x"`
		Y     float64  `json:"y"`
		Size  KnobSize `json:"size,omitempty"`
	}

	KnobSize string

	// Switch selects one of a closed set of options.
	Switch struct {
		ID      string   `json:"id"`
		Label   string   `json:"label"`
		Options []string `json:"options"`
		Value   string   `json:"value"`
		X       float64  `json:"x"`
		Y       float64  `json:"y"`
	}

	LED struct {
		ID    string  `json:"id"`
		Label string  `json:"label,omitempty"`
		Param string  `json:"param,omitempty"` // optional parameter driving the LED
		Color string  `json:"color,omitempty"`
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
	}

	Display struct {
		ID     string      `json:"id"`
		Kind   DisplayKind `json:"kind"`
		X      float64     `json:"x"`
		Y      float64     `json:"y"`
		Width  float64     `json:"width"`
		Height float64     `json:"height"`
	}

	DisplayKind string

	Jack struct {
		ID    string   `json:"id"`
		Label string   `json:"label"`
		Port  string   `json:"port"` // input or output name on the node
		Type  JackType `json:"type"`
		X     float64  `json:"x"`
		Y     float64  `json:"y"`
	}

	JackType string
)

const (
	KnobSmall  KnobSize = "small"
	KnobMedium KnobSize = "medium"
	KnobLarge  KnobSize = "large"
)

const (
	DisplayText     DisplayKind = "text"
	DisplayWaveform DisplayKind = "waveform"
	DisplayMeter    DisplayKind = "meter"
)

const (
	JackInput  JackType = "input"
	JackOutput JackType = "output"
)

// NewSwitch returns a switch with the given options, selecting the first.
func NewSwitch(id, label string, options ...string) Switch {
	s := Switch{ID: id, Label: label, Options: append([]string(nil), options...)}
	if len(options) > 0 {
		s.Value = options[0]
	}
	return s
}

// Has reports whether option is one of the switch options.
func (s *Switch) Has(option string) bool {
	for _, o := range s.Options {
		if o == option {
			return true
		}
	}
	return false
}

func (s *Switch) selectOption(option string) error {
	if !s.Has(option) {
		return fmt.Errorf("%w: %q not in %v for switch %q", ErrInvalidSwitchValue, option, s.Options, s.ID)
	}
	s.Value = option
	return nil
}

// Copy makes a deep copy of the UI.
func (u *UI) Copy() UI {
	switches := make([]Switch, len(u.Switches))
	for i, s := range u.Switches {
		s.Options = append([]string(nil), s.Options...)
		switches[i] = s
	}
	return UI{
		Knobs:       append([]Knob{}, u.Knobs...),
		Switches:    switches,
		LEDs:        append([]LED{}, u.LEDs...),
		Displays:    append([]Display{}, u.Displays...),
		InputJacks:  append([]Jack{}, u.InputJacks...),
		OutputJacks: append([]Jack{}, u.OutputJacks...),
	}
}
