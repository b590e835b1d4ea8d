package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type edge struct {
	from, to string
}

// Pipeline is a DAG of nodes connected by bounded channels, driven by the
// single-threaded cooperative scheduler in scheduler.go. Total in-flight
// records are bounded by the sum of channel capacities.
type Pipeline struct {
	name     string
	runID    uuid.UUID
	nodes    []*Node
	byName   map[string]*Node
	channels []*Channel
	edges    []edge
	events   *Events
	cursor   int
	log      zerolog.Logger
}

// New creates an empty pipeline.
func New(name string, log zerolog.Logger) *Pipeline {
	runID := uuid.New()
	plog := log.With().Str("pipeline", name).Str("run_id", runID.String()).Logger()
	return &Pipeline{
		name:   name,
		runID:  runID,
		byName: make(map[string]*Node),
		events: NewEvents(plog),
		log:    plog,
	}
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// RunID identifies this pipeline instance in logs and events.
func (p *Pipeline) RunID() uuid.UUID { return p.runID }

// Events exposes the error/metrics egress stream.
func (p *Pipeline) Events() *Events { return p.events }

// Stats returns the current counter snapshot.
func (p *Pipeline) Stats() Stats { return p.events.Snapshot() }

// Node returns a node by name.
func (p *Pipeline) Node(name string) (*Node, bool) {
	n, ok := p.byName[name]
	return n, ok
}

// BuildNode constructs a node from its stage config and registers it.
func (p *Pipeline) BuildNode(cfg StageConfig) (*Node, error) {
	if _, exists := p.byName[cfg.Name]; exists {
		return nil, fmt.Errorf("duplicate node name %q", cfg.Name)
	}
	n, err := newNode(cfg)
	if err != nil {
		return nil, err
	}
	p.nodes = append(p.nodes, n)
	p.byName[cfg.Name] = n
	return n, nil
}

// Connect wires producer's output to consumer's intake through a new
// bounded channel. A producer has one logical output; a consumer may have
// several intakes (fan-in), with unspecified merge order.
func (p *Pipeline) Connect(producer, consumer *Node, capacity int) (*Channel, error) {
	if producer == nil || consumer == nil {
		return nil, errors.New("connect: nil node")
	}
	if p.byName[producer.name] != producer || p.byName[consumer.name] != consumer {
		return nil, errors.New("connect: node does not belong to this pipeline")
	}
	if producer.sink != nil {
		return nil, fmt.Errorf("connect: %q is a sink and has no output", producer.name)
	}
	if consumer.source != nil {
		return nil, fmt.Errorf("connect: %q is a source and has no intake", consumer.name)
	}
	if producer.out != nil {
		return nil, fmt.Errorf("connect: %q already has an output", producer.name)
	}
	ch, err := NewChannel(capacity)
	if err != nil {
		return nil, err
	}
	producer.out = ch
	consumer.ins = append(consumer.ins, ch)
	p.channels = append(p.channels, ch)
	p.edges = append(p.edges, edge{from: producer.name, to: consumer.name})
	return ch, nil
}

// AttachIntake gives a node a boundary intake channel for external Offer
// calls. Used when the pipeline is embedded and stepped cooperatively.
func (p *Pipeline) AttachIntake(n *Node, capacity int) (*Channel, error) {
	if n.source != nil {
		return nil, fmt.Errorf("attach intake: %q is a source", n.name)
	}
	if n.boundaryIn != nil {
		return nil, fmt.Errorf("attach intake: %q already has one", n.name)
	}
	ch, err := NewChannel(capacity)
	if err != nil {
		return nil, err
	}
	n.boundaryIn = ch
	n.ins = append(n.ins, ch)
	p.channels = append(p.channels, ch)
	return ch, nil
}

// AttachOutput gives a node a boundary output channel drained by Poll.
func (p *Pipeline) AttachOutput(n *Node, capacity int) (*Channel, error) {
	if n.sink != nil {
		return nil, fmt.Errorf("attach output: %q is a sink", n.name)
	}
	if n.out != nil {
		return nil, fmt.Errorf("attach output: %q already has an output", n.name)
	}
	ch, err := NewChannel(capacity)
	if err != nil {
		return nil, err
	}
	n.out = ch
	n.boundaryOut = true
	p.channels = append(p.channels, ch)
	return ch, nil
}

// Validate checks that every node is fully wired and the topology is
// acyclic. Cycle detection is Kahn's algorithm over the connected edges.
func (p *Pipeline) Validate() error {
	if len(p.nodes) == 0 {
		return errors.New("pipeline has no nodes")
	}
	for _, n := range p.nodes {
		switch {
		case n.source != nil:
			if n.out == nil {
				return fmt.Errorf("source node %q has no output", n.name)
			}
		case n.sink != nil:
			if len(n.ins) == 0 {
				return fmt.Errorf("sink node %q has no intake", n.name)
			}
		default:
			if len(n.ins) == 0 {
				return fmt.Errorf("node %q has no intake", n.name)
			}
			if n.out == nil {
				return fmt.Errorf("node %q has no output", n.name)
			}
		}
	}

	inDegree := make(map[string]int, len(p.nodes))
	dependents := make(map[string][]string)
	for _, n := range p.nodes {
		inDegree[n.name] = 0
	}
	for _, e := range p.edges {
		inDegree[e.to]++
		dependents[e.from] = append(dependents[e.from], e.to)
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}

	visited := 0
	for len(queue) > 0 {
		visited += len(queue)
		var next []string
		for _, name := range queue {
			for _, dep := range dependents[name] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		queue = next
	}
	if visited != len(p.nodes) {
		return fmt.Errorf("pipeline has a cycle: processed %d of %d nodes", visited, len(p.nodes))
	}
	return nil
}
