// Package modules implements the rack's concrete modules: oscillator,
// filter, VCA and output.
package modules

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/vsariola/rack"
)

type (
	// Builder creates modules on one patch graph, backed by one audio
	// context.
	Builder struct {
		Graph   *rack.PatchGraph
		Context rack.AudioContext
		// MeterInterval is the output module's level metering period;
		// DefaultMeterInterval when zero.
		MeterInterval time.Duration
		Logger        *slog.Logger
	}

	constructor func(b Builder, cfg rack.ModuleConfig) (*rack.Module, error)
)

const (
	KindOscillator = "oscillator"
	KindFilter     = "filter"
	KindVCA        = "vca"
	KindOutput     = "output"
)

const DefaultMeterInterval = 50 * time.Millisecond

var constructors = map[string]constructor{
	KindOscillator: func(b Builder, cfg rack.ModuleConfig) (*rack.Module, error) {
		o, err := NewOscillator(b, cfg)
		if err != nil {
			return nil, err
		}
		return o.Module, nil
	},
	KindFilter: func(b Builder, cfg rack.ModuleConfig) (*rack.Module, error) {
		f, err := NewFilter(b, cfg)
		if err != nil {
			return nil, err
		}
		return f.Module, nil
	},
	KindVCA: func(b Builder, cfg rack.ModuleConfig) (*rack.Module, error) {
		v, err := NewVCA(b, cfg)
		if err != nil {
			return nil, err
		}
		return v.Module, nil
	},
	KindOutput: func(b Builder, cfg rack.ModuleConfig) (*rack.Module, error) {
		o, err := NewOutput(b, cfg)
		if err != nil {
			return nil, err
		}
		return o.Module, nil
	},
}

// Kinds lists the module kinds New understands, sorted.
func Kinds() []string {
	ret := make([]string, 0, len(constructors))
	for k := range constructors {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// New creates a module of the given kind.
func (b Builder) New(kind string, cfg rack.ModuleConfig) (*rack.Module, error) {
	c, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", rack.ErrUnknownModuleKind, kind)
	}
	if b.Graph == nil || b.Context == nil {
		return nil, fmt.Errorf("new %s module: builder needs a graph and an audio context", kind)
	}
	if cfg.Logger == nil {
		cfg.Logger = b.Logger
	}
	return c(b, cfg)
}

// Deserialize rebuilds a module from its saved state: it is created with the
// saved id and name, then restored (position, parameters, switches,
// kind-specific state, activation).
func (b Builder) Deserialize(st rack.ModuleState) (*rack.Module, error) {
	m, err := b.New(st.Kind, rack.ModuleConfig{ID: st.ID, Name: st.Name})
	if err != nil {
		return nil, err
	}
	if err := m.Restore(st); err != nil {
		m.Dispose()
		return nil, err
	}
	return m, nil
}

// Load rebuilds a whole patch: modules first, then connections through the
// validating PatchGraph.Connect. A module that fails to load aborts the
// load and disposes the modules created so far; connections that are
// refused are skipped and reported in the returned error.
func (b Builder) Load(p rack.Patch) ([]*rack.Module, error) {
	var created []*rack.Module
	for _, st := range p.Modules {
		m, err := b.Deserialize(st)
		if err != nil {
			for _, c := range created {
				c.Dispose()
			}
			return nil, fmt.Errorf("load module %q: %w", st.ID, err)
		}
		created = append(created, m)
	}
	var errs []error
	for _, c := range p.Connections {
		if _, err := b.Graph.Connect(c.SourceID, c.SourceOutput, c.TargetID, c.TargetInput); err != nil {
			b.logger().Warn("skipping connection", "source", c.SourceID, "output", c.SourceOutput, "target", c.TargetID, "input", c.TargetInput, "err", err)
			errs = append(errs, err)
		}
	}
	return created, errors.Join(errs...)
}

func (b Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default().With("component", "modules")
}

func (b Builder) meterInterval() time.Duration {
	if b.MeterInterval > 0 {
		return b.MeterInterval
	}
	return DefaultMeterInterval
}

func withDefaults(cfg rack.ModuleConfig, description, color string, size int) rack.ModuleConfig {
	if cfg.Description == "" {
		cfg.Description = description
	}
	if cfg.Color == "" {
		cfg.Color = color
	}
	if cfg.Size == 0 {
		cfg.Size = size
	}
	return cfg
}

// build is the Add* sequence of a panel; the first error wins.
type build struct {
	m   *rack.Module
	err error
}

func (b *build) do(f func() error) {
	if b.err == nil {
		b.err = f()
	}
}

func (b *build) knob(id, label string, x, y float64, size rack.KnobSize) {
	b.do(func() error {
		return b.m.AddKnob(rack.Knob{ID: id, Label: label, Param: id, X: x, Y: y, Size: size})
	})
}

func (b *build) input(port, label string, x, y float64) {
	b.do(func() error {
		return b.m.AddInputJack(rack.Jack{ID: port + "-jack", Label: label, Port: port, Type: rack.JackInput, X: x, Y: y})
	})
}

func (b *build) output(port, label string, x, y float64) {
	b.do(func() error {
		return b.m.AddOutputJack(rack.Jack{ID: port + "-jack", Label: label, Port: port, Type: rack.JackOutput, X: x, Y: y})
	})
}

func (b *build) selector(s rack.Switch, x, y float64) {
	s.X, s.Y = x, y
	b.do(func() error { return b.m.AddSwitch(s) })
}

func (b *build) led(l rack.LED) {
	b.do(func() error { return b.m.AddLED(l) })
}

func (b *build) display(d rack.Display) {
	b.do(func() error { return b.m.AddDisplay(d) })
}
