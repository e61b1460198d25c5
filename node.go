package rack

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

type (
	// NodeKind is implemented by every concrete node. Initialize is called
	// exactly once from NewNode and must create the native primitives and
	// register every input, output and parameter the node will ever have.
	NodeKind interface {
		Initialize(n *Node) error
	}

	// ParameterChangeHandler is an optional NodeKind hook, called with the
	// clamped value after every SetParameter.
	ParameterChangeHandler interface {
		OnParameterChange(name string, value float64)
	}

	// StartStopper is an optional NodeKind hook driving the native
	// primitives on Start/Stop. Implementations should log native timing
	// errors instead of propagating them.
	StartStopper interface {
		OnStart(when float64)
		OnStop(when float64)
	}

	// Disposer is an optional NodeKind hook releasing native primitives.
	Disposer interface {
		OnDispose()
	}

	// Node wraps native primitives behind named inputs, outputs and bounded
	// parameters. The set of ports and parameters is fixed once NewNode
	// returns.
	//
	// Node is not safe for concurrent use.
	Node struct {
		id     string
		name   string
		kind   string
		impl   NodeKind
		logger *slog.Logger

		params      map[string]*Parameter
		paramOrder  []string
		inputs      map[string]*Input
		inputOrder  []string
		outputs     map[string]*Output
		outputOrder []string

		active   bool
		sealed   bool
		disposed bool
	}

	NodeOptions struct {
		// ID must be unique among registered nodes; generated when empty.
		ID     string
		Name   string
		Logger *slog.Logger
	}
)

// GenerateID returns a process-unique id of the form "<kind>-<random>".
// Collisions are not checked.
func GenerateID(kind string) string {
	return kind + "-" + uuid.NewString()[:8]
}

// NewNode creates a node of the given kind and runs impl.Initialize on it.
func NewNode(kind string, impl NodeKind, opts NodeOptions) (*Node, error) {
	if opts.ID == "" {
		opts.ID = GenerateID(kind)
	}
	if opts.Name == "" {
		opts.Name = opts.ID
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	n := &Node{
		id:      opts.ID,
		name:    opts.Name,
		kind:    kind,
		impl:    impl,
		logger:  opts.Logger.With("node", opts.ID),
		params:  map[string]*Parameter{},
		inputs:  map[string]*Input{},
		outputs: map[string]*Output{},
	}
	if impl != nil {
		if err := impl.Initialize(n); err != nil {
			return nil, fmt.Errorf("initialize %s node %q: %w", kind, opts.ID, err)
		}
	}
	n.sealed = true
	return n, nil
}

func (n *Node) ID() string           { return n.id }
func (n *Node) Name() string         { return n.name }
func (n *Node) Kind() string         { return n.kind }
func (n *Node) IsActive() bool       { return n.active }
func (n *Node) IsDisposed() bool     { return n.disposed }
func (n *Node) Logger() *slog.Logger { return n.logger }

// Impl returns the NodeKind the node was created with.
func (n *Node) Impl() NodeKind { return n.impl }

// CreateInput registers an input wrapping r. Only valid during Initialize.
func (n *Node) CreateInput(name string, r Receiver) (*Input, error) {
	if n.sealed {
		return nil, fmt.Errorf("%w: input %q", ErrTopologySealed, name)
	}
	if _, ok := n.inputs[name]; ok {
		return nil, fmt.Errorf("input %q already exists on node %q", name, n.id)
	}
	in := &Input{name: name, receiver: r}
	n.inputs[name] = in
	n.inputOrder = append(n.inputOrder, name)
	return in, nil
}

// CreateOutput registers an output wrapping p. Only valid during Initialize.
func (n *Node) CreateOutput(name string, p Primitive) (*Output, error) {
	if n.sealed {
		return nil, fmt.Errorf("%w: output %q", ErrTopologySealed, name)
	}
	if _, ok := n.outputs[name]; ok {
		return nil, fmt.Errorf("output %q already exists on node %q", name, n.id)
	}
	out := &Output{name: name, primitive: p}
	n.outputs[name] = out
	n.outputOrder = append(n.outputOrder, name)
	return out, nil
}

// CreateParameter registers a parameter with the given default and bounds.
// Only valid during Initialize.
func (n *Node) CreateParameter(name string, def, min, max float64, unit string) (*Parameter, error) {
	if n.sealed {
		return nil, fmt.Errorf("%w: parameter %q", ErrTopologySealed, name)
	}
	if _, ok := n.params[name]; ok {
		return nil, fmt.Errorf("parameter %q already exists on node %q", name, n.id)
	}
	p := newParameter(name, def, min, max, unit)
	n.params[name] = p
	n.paramOrder = append(n.paramOrder, name)
	return p, nil
}

// SetParameter clamps value to the parameter bounds, stores it and passes it
// to the node's OnParameterChange hook. It returns the stored value.
func (n *Node) SetParameter(name string, value float64) (float64, error) {
	p, ok := n.params[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q on node %q", ErrParameterNotFound, name, n.id)
	}
	v := p.set(value)
	if h, ok := n.impl.(ParameterChangeHandler); ok {
		h.OnParameterChange(name, v)
	}
	return v, nil
}

func (n *Node) Parameter(name string) (*Parameter, bool) {
	p, ok := n.params[name]
	return p, ok
}

// ParameterValue returns the current value of a parameter, or 0 and false.
func (n *Node) ParameterValue(name string) (float64, bool) {
	p, ok := n.params[name]
	if !ok {
		return 0, false
	}
	return p.Value(), true
}

func (n *Node) Input(name string) (*Input, bool) {
	in, ok := n.inputs[name]
	return in, ok
}

func (n *Node) Output(name string) (*Output, bool) {
	out, ok := n.outputs[name]
	return out, ok
}

// ParameterNames returns the parameter names in registration order.
func (n *Node) ParameterNames() []string { return append([]string(nil), n.paramOrder...) }
func (n *Node) InputNames() []string     { return append([]string(nil), n.inputOrder...) }
func (n *Node) OutputNames() []string    { return append([]string(nil), n.outputOrder...) }

// Connect links output outputName of n to input inputName of target. It
// performs no graph validation; use PatchGraph.Connect for that.
func (n *Node) Connect(outputName string, target *Node, inputName string) error {
	out, ok := n.outputs[outputName]
	if !ok {
		return fmt.Errorf("%w: output %q on node %q", ErrPortNotFound, outputName, n.id)
	}
	if target == nil {
		return fmt.Errorf("%w: input %q on nil node", ErrPortNotFound, inputName)
	}
	in, ok := target.inputs[inputName]
	if !ok {
		return fmt.Errorf("%w: input %q on node %q", ErrPortNotFound, inputName, target.id)
	}
	return out.connect(in)
}

// DisconnectAll disconnects every output of n from all its targets.
func (n *Node) DisconnectAll() error {
	var errs []error
	for _, name := range n.outputOrder {
		if err := n.outputs[name].disconnectAll(); err != nil {
			errs = append(errs, fmt.Errorf("output %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// DisconnectOutput disconnects one output from all its targets.
func (n *Node) DisconnectOutput(outputName string) error {
	out, ok := n.outputs[outputName]
	if !ok {
		return fmt.Errorf("%w: output %q on node %q", ErrPortNotFound, outputName, n.id)
	}
	return out.disconnectAll()
}

// DisconnectFrom removes exactly one edge. Nothing happens if the edge does
// not exist but both ports do.
func (n *Node) DisconnectFrom(outputName string, target *Node, inputName string) error {
	out, ok := n.outputs[outputName]
	if !ok {
		return fmt.Errorf("%w: output %q on node %q", ErrPortNotFound, outputName, n.id)
	}
	if target == nil {
		return fmt.Errorf("%w: input %q on nil node", ErrPortNotFound, inputName)
	}
	in, ok := target.inputs[inputName]
	if !ok {
		return fmt.Errorf("%w: input %q on node %q", ErrPortNotFound, inputName, target.id)
	}
	return out.disconnect(in)
}

// Start activates the node; calling it on an active node does nothing.
func (n *Node) Start(when float64) {
	if n.active || n.disposed {
		return
	}
	n.active = true
	if s, ok := n.impl.(StartStopper); ok {
		s.OnStart(when)
	}
}

// Stop deactivates the node; calling it on an inactive node does nothing.
func (n *Node) Stop(when float64) {
	if !n.active || n.disposed {
		return
	}
	n.active = false
	if s, ok := n.impl.(StartStopper); ok {
		s.OnStop(when)
	}
}

// Dispose disconnects all outputs, releases the native primitives and drops
// all ports and parameters. The node must not be used afterwards; disposing
// twice does nothing.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	if err := n.DisconnectAll(); err != nil {
		n.logger.Warn("disconnecting outputs during dispose failed", "err", err)
	}
	if d, ok := n.impl.(Disposer); ok {
		d.OnDispose()
	}
	n.params = map[string]*Parameter{}
	n.paramOrder = nil
	n.inputs = map[string]*Input{}
	n.inputOrder = nil
	n.outputs = map[string]*Output{}
	n.outputOrder = nil
	n.active = false
	n.disposed = true
}
