package rack

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

type (
	// PatchGraph is the registry of live nodes and the ledger of connections
	// between their ports. It validates every connection (existing nodes, one
	// producer per input, connection limit, no feedback loops) before
	// linking the native primitives.
	//
	// A PatchGraph is not safe for concurrent use; all mutation is expected
	// to happen on the UI goroutine.
	PatchGraph struct {
		nodes     map[string]*Node
		nodeOrder []string
		modules   map[string]*Module

		connections     map[string]*Connection
		connectionOrder []string

		maxConnections int
		logger         *slog.Logger
	}

	// Connection is a directed edge from an output port to an input port.
	Connection struct {
		ID           string `json:"id"`
		SourceID     string `yaml:"source" json:"source"`
		SourceOutput string `yaml:"output" json:"output"`
		TargetID     string `yaml:"target" json:"target"`
		TargetInput  string `yaml:"input" json:"input"`
		Connected    bool   `yaml:"-" json:"-"`
	}

	GraphOptions struct {
		MaxConnections int // defaults to DefaultMaxConnections
		Logger         *slog.Logger
	}

	// ConnectCheck is the result of CanConnect. Err holds the sentinel error
	// Connect would fail with.
	ConnectCheck struct {
		OK     bool
		Reason string
		Err    error
	}

	GraphStats struct {
		NodeCount       int
		ConnectionCount int
		MaxConnections  int
	}
)

const DefaultMaxConnections = 100

func NewPatchGraph(opts GraphOptions) *PatchGraph {
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = DefaultMaxConnections
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "patchgraph")
	}
	return &PatchGraph{
		nodes:          map[string]*Node{},
		modules:        map[string]*Module{},
		connections:    map[string]*Connection{},
		maxConnections: opts.MaxConnections,
		logger:         opts.Logger,
	}
}

// RegisterNode adds n to the registry.
func (g *PatchGraph) RegisterNode(n *Node) error {
	if n == nil {
		return errors.New("cannot register nil node")
	}
	if _, ok := g.nodes[n.ID()]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateNode, n.ID())
	}
	g.nodes[n.ID()] = n
	g.nodeOrder = append(g.nodeOrder, n.ID())
	return nil
}

func (g *PatchGraph) registerModule(m *Module) error {
	if err := g.RegisterNode(m.Node); err != nil {
		return err
	}
	g.modules[m.ID()] = m
	return nil
}

// UnregisterNode disconnects every connection touching id and removes the
// node. Unknown ids are ignored. Disconnect failures are logged, never
// returned.
func (g *PatchGraph) UnregisterNode(id string) {
	if _, ok := g.nodes[id]; !ok {
		return
	}
	g.DisconnectAllForNode(id)
	delete(g.nodes, id)
	delete(g.modules, id)
	for i, n := range g.nodeOrder {
		if n == id {
			g.nodeOrder = append(g.nodeOrder[:i], g.nodeOrder[i+1:]...)
			break
		}
	}
}

func (g *PatchGraph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns the registered nodes in registration order.
func (g *PatchGraph) Nodes() []*Node {
	ret := make([]*Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		ret = append(ret, g.nodes[id])
	}
	return ret
}

func (g *PatchGraph) Module(id string) (*Module, bool) {
	m, ok := g.modules[id]
	return m, ok
}

// Modules returns the registered modules in registration order.
func (g *PatchGraph) Modules() []*Module {
	ret := make([]*Module, 0, len(g.modules))
	for _, id := range g.nodeOrder {
		if m, ok := g.modules[id]; ok {
			ret = append(ret, m)
		}
	}
	return ret
}

// Connect validates and creates a connection, returning its id. Checks run
// in a fixed order: source exists, target exists, input is free, limit not
// reached, no feedback loop. A native failure while linking yields
// ErrConnectionFailed and leaves the ledger untouched.
func (g *PatchGraph) Connect(sourceID, sourceOutput, targetID, targetInput string) (string, error) {
	source, ok := g.nodes[sourceID]
	if !ok {
		return "", fmt.Errorf("%w: source %q", ErrNodeNotFound, sourceID)
	}
	target, ok := g.nodes[targetID]
	if !ok {
		return "", fmt.Errorf("%w: target %q", ErrNodeNotFound, targetID)
	}
	if c, ok := g.FindConnectionToInput(targetID, targetInput); ok {
		return "", fmt.Errorf("%w: %s.%s is fed by %s.%s", ErrInputAlreadyConnected, targetID, targetInput, c.SourceID, c.SourceOutput)
	}
	if len(g.connections) >= g.maxConnections {
		return "", fmt.Errorf("%w: %d", ErrConnectionLimit, g.maxConnections)
	}
	if g.reaches(targetID, sourceID) {
		return "", fmt.Errorf("%w: %s -> %s", ErrFeedbackLoop, sourceID, targetID)
	}
	if err := source.Connect(sourceOutput, target, targetInput); err != nil {
		return "", fmt.Errorf("%w: %s.%s -> %s.%s: %w", ErrConnectionFailed, sourceID, sourceOutput, targetID, targetInput, err)
	}
	c := &Connection{
		ID:           uuid.NewString(),
		SourceID:     sourceID,
		SourceOutput: sourceOutput,
		TargetID:     targetID,
		TargetInput:  targetInput,
		Connected:    true,
	}
	g.connections[c.ID] = c
	g.connectionOrder = append(g.connectionOrder, c.ID)
	g.logger.Debug("connected", "id", c.ID, "source", sourceID, "output", sourceOutput, "target", targetID, "input", targetInput)
	return c.ID, nil
}

// CanConnect reports whether Connect would succeed, without side effects.
// Unlike Connect it also checks that both ports exist.
func (g *PatchGraph) CanConnect(sourceID, sourceOutput, targetID, targetInput string) ConnectCheck {
	source, ok := g.nodes[sourceID]
	if !ok {
		return refuse(ErrNodeNotFound, "source node %q not found", sourceID)
	}
	target, ok := g.nodes[targetID]
	if !ok {
		return refuse(ErrNodeNotFound, "target node %q not found", targetID)
	}
	if _, ok := source.Output(sourceOutput); !ok {
		return refuse(ErrPortNotFound, "source node %q has no output %q", sourceID, sourceOutput)
	}
	if _, ok := target.Input(targetInput); !ok {
		return refuse(ErrPortNotFound, "target node %q has no input %q", targetID, targetInput)
	}
	if _, ok := g.FindConnectionToInput(targetID, targetInput); ok {
		return refuse(ErrInputAlreadyConnected, "input %q of %q is already connected", targetInput, targetID)
	}
	if len(g.connections) >= g.maxConnections {
		return refuse(ErrConnectionLimit, "connection limit of %d reached", g.maxConnections)
	}
	if g.reaches(targetID, sourceID) {
		return refuse(ErrFeedbackLoop, "connecting %q to %q would create a feedback loop", sourceID, targetID)
	}
	return ConnectCheck{OK: true}
}

func refuse(err error, format string, args ...any) ConnectCheck {
	return ConnectCheck{Reason: fmt.Sprintf(format, args...), Err: err}
}

// reaches reports whether there is a path from one node to another along
// existing connections. The traversal uses an explicit stack over an
// adjacency view built from the ledger, marking nodes as visited so it
// terminates even if the ledger already holds a cycle.
func (g *PatchGraph) reaches(from, to string) bool {
	if from == to {
		return true
	}
	adjacency := make(map[string][]string, len(g.nodes))
	for _, id := range g.connectionOrder {
		c := g.connections[id]
		adjacency[c.SourceID] = append(adjacency[c.SourceID], c.TargetID)
	}
	visited := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range adjacency[n] {
			if next == to {
				return true
			}
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// Disconnect removes a connection. If both endpoints still exist the native
// link is removed too; a native failure is logged and the ledger entry is
// removed regardless.
func (g *PatchGraph) Disconnect(connectionID string) error {
	c, ok := g.connections[connectionID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrConnectionNotFound, connectionID)
	}
	source, sok := g.nodes[c.SourceID]
	target, tok := g.nodes[c.TargetID]
	if sok && tok && c.Connected {
		if err := source.DisconnectFrom(c.SourceOutput, target, c.TargetInput); err != nil {
			g.logger.Warn("native disconnect failed", "id", c.ID, "err", err)
		}
	}
	c.Connected = false
	delete(g.connections, connectionID)
	for i, id := range g.connectionOrder {
		if id == connectionID {
			g.connectionOrder = append(g.connectionOrder[:i], g.connectionOrder[i+1:]...)
			break
		}
	}
	g.logger.Debug("disconnected", "id", connectionID)
	return nil
}

// DisconnectAllForNode removes every connection where id is the source or
// the target. Individual failures are logged and skipped.
func (g *PatchGraph) DisconnectAllForNode(id string) {
	for _, c := range g.ConnectionsForNode(id) {
		if err := g.Disconnect(c.ID); err != nil {
			g.logger.Warn("disconnect failed", "id", c.ID, "node", id, "err", err)
		}
	}
}

// Connection returns a copy of the connection with the given id.
func (g *PatchGraph) Connection(id string) (Connection, bool) {
	c, ok := g.connections[id]
	if !ok {
		return Connection{}, false
	}
	return *c, true
}

// Connections returns copies of all connections in creation order.
func (g *PatchGraph) Connections() []Connection {
	return g.filter(func(*Connection) bool { return true })
}

func (g *PatchGraph) ConnectionsForNode(id string) []Connection {
	return g.filter(func(c *Connection) bool { return c.SourceID == id || c.TargetID == id })
}

// OutputConnections returns the connections leaving node id, limited to one
// output when outputName is not empty.
func (g *PatchGraph) OutputConnections(id, outputName string) []Connection {
	return g.filter(func(c *Connection) bool {
		return c.SourceID == id && (outputName == "" || c.SourceOutput == outputName)
	})
}

// InputConnections returns the connections entering node id, limited to one
// input when inputName is not empty.
func (g *PatchGraph) InputConnections(id, inputName string) []Connection {
	return g.filter(func(c *Connection) bool {
		return c.TargetID == id && (inputName == "" || c.TargetInput == inputName)
	})
}

// FindConnectionToInput returns the single connection feeding an input.
func (g *PatchGraph) FindConnectionToInput(id, inputName string) (Connection, bool) {
	for _, cid := range g.connectionOrder {
		c := g.connections[cid]
		if c.TargetID == id && c.TargetInput == inputName {
			return *c, true
		}
	}
	return Connection{}, false
}

// FindConnectionFromOutput returns every connection fed by an output.
func (g *PatchGraph) FindConnectionFromOutput(id, outputName string) []Connection {
	return g.filter(func(c *Connection) bool { return c.SourceID == id && c.SourceOutput == outputName })
}

func (g *PatchGraph) filter(keep func(*Connection) bool) []Connection {
	ret := []Connection{}
	for _, id := range g.connectionOrder {
		if c := g.connections[id]; keep(c) {
			ret = append(ret, *c)
		}
	}
	return ret
}

// Clear disconnects everything and empties the registry. Registered nodes
// are not disposed.
func (g *PatchGraph) Clear() {
	for _, c := range g.Connections() {
		if err := g.Disconnect(c.ID); err != nil {
			g.logger.Warn("disconnect failed during clear", "id", c.ID, "err", err)
		}
	}
	g.nodes = map[string]*Node{}
	g.nodeOrder = nil
	g.modules = map[string]*Module{}
}

func (g *PatchGraph) Stats() GraphStats {
	return GraphStats{
		NodeCount:       len(g.nodes),
		ConnectionCount: len(g.connections),
		MaxConnections:  g.maxConnections,
	}
}

func (g *PatchGraph) MaxConnections() int { return g.maxConnections }
