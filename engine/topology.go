package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mfkiwl/blockstream/component"
	"github.com/mfkiwl/blockstream/errors"
)

// node pairs a block with its topology identity.
type node struct {
	name       string
	instanceID string
	block      component.Block
}

// Connection records a wired edge for inspection.
type Connection struct {
	From   string
	To     string
	DType  string
	Stream *component.Stream
}

// Topology is the wiring of a flow: named blocks plus the streams
// connecting them. Wiring happens before activation; the topology is not
// mutated while an engine is running it.
type Topology struct {
	mu          sync.Mutex
	nodes       map[string]*node
	order       []string
	connections []Connection
}

// NewTopology creates an empty topology.
func NewTopology() *Topology {
	return &Topology{
		nodes: make(map[string]*node),
	}
}

// AddBlock registers a block under a unique name within the flow.
func (t *Topology) AddBlock(name string, block component.Block) error {
	if name == "" || block == nil {
		return errors.WrapInvalid(
			fmt.Errorf("block registration requires a name and a block"),
			"Topology", "AddBlock", "argument check")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.nodes[name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrDuplicateBlock, name),
			"Topology", "AddBlock", "duplicate check")
	}

	t.nodes[name] = &node{
		name:       name,
		instanceID: uuid.NewString(),
		block:      block,
	}
	t.order = append(t.order, name)
	return nil
}

// Connect allocates a stream between two blocks and binds their ports.
// The element type comes from the producer's declared output port; the
// consumer must accept the same type.
func (t *Topology) Connect(from, to string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	src, ok := t.nodes[from]
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrBlockNotFound, from),
			"Topology", "Connect", "producer lookup")
	}
	dst, ok := t.nodes[to]
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrBlockNotFound, to),
			"Topology", "Connect", "consumer lookup")
	}

	producer, ok := src.block.(component.OutputBinder)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q has no stream output", errors.ErrPortNotBound, from),
			"Topology", "Connect", "producer capability check")
	}
	consumer, ok := dst.block.(component.InputBinder)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q has no stream input", errors.ErrPortNotBound, to),
			"Topology", "Connect", "consumer capability check")
	}

	dtypeName, err := streamDType(src.block)
	if err != nil {
		return errors.Wrap(err, "Topology", "Connect", fmt.Sprintf("output port of %q", from))
	}
	dtype, err := component.ParseDType(dtypeName)
	if err != nil {
		return errors.Wrap(err, "Topology", "Connect", "dtype parsing")
	}

	stream, err := component.NewStream(dtype, component.DefaultStreamBytes)
	if err != nil {
		return errors.Wrap(err, "Topology", "Connect", "stream allocation")
	}

	if err := producer.BindOutput(stream.Output("out", 0)); err != nil {
		return errors.Wrap(err, "Topology", "Connect", fmt.Sprintf("binding output of %q", from))
	}
	if err := consumer.BindInput(stream.Input("in")); err != nil {
		return errors.Wrap(err, "Topology", "Connect", fmt.Sprintf("binding input of %q", to))
	}

	t.connections = append(t.connections, Connection{
		From:   from,
		To:     to,
		DType:  dtypeName,
		Stream: stream,
	})
	return nil
}

// streamDType extracts the element type a block declares on its first
// stream output port.
func streamDType(b component.Block) (string, error) {
	for _, port := range b.OutputPorts() {
		if sp, ok := port.Config.(component.StreamPort); ok {
			return sp.DType, nil
		}
	}
	return "", fmt.Errorf("no stream output port declared")
}

// Block returns the named block.
func (t *Topology) Block(name string) (component.Block, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[name]
	if !ok {
		return nil, false
	}
	return n.block, true
}

// Names returns the block names in registration order.
func (t *Topology) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Connections returns the wired edges, sorted by producer name.
func (t *Topology) Connections() []Connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Connection, len(t.connections))
	copy(out, t.connections)
	sort.Slice(out, func(i, j int) bool { return out[i].From < out[j].From })
	return out
}

// InstanceID returns the unique run identifier assigned to a block.
func (t *Topology) InstanceID(name string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.nodes[name]; ok {
		return n.instanceID
	}
	return ""
}

// nodesInOrder returns the nodes in registration order. Callers must not
// retain the nodes across topology mutation.
func (t *Topology) nodesInOrder() []*node {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*node, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.nodes[name])
	}
	return out
}
