package engine

import (
	"errors"
	"fmt"

	"github.com/coffersTech/nanoflow/internal/record"
)

// NodeState is the cooperative scheduling state of a node.
type NodeState uint8

const (
	// StateIdle: nothing to do right now.
	StateIdle NodeState = iota
	// StateReady: intake has data and the output has capacity.
	StateReady
	// StateRunning: executing one bounded unit of work.
	StateRunning
	// StateSuspended: waiting on an external readiness signal (a source
	// whose external feed is currently empty).
	StateSuspended
	// StateStopped: terminal, after cancellation.
	StateStopped
)

func (s NodeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StageConfig describes one node: exactly one of Stage, Source or Sink.
type StageConfig struct {
	Name   string
	Stage  Stage
	Source Source
	Sink   Sink
}

// Node wraps one stage and exposes an intake and an output. A node never
// blocks: when it cannot make progress it yields back to the scheduler.
type Node struct {
	name   string
	stage  Stage
	source Source
	sink   Sink

	// ins are the intake channels. More than one means fan-in; merge
	// order across intakes is unspecified.
	ins      []*Channel
	inCursor int
	out      *Channel

	// boundaryIn/boundaryOut are edge channels for external Offer/Poll.
	boundaryIn   *Channel
	boundaryOut  bool
	intakeClosed bool

	state NodeState
}

func newNode(cfg StageConfig) (*Node, error) {
	if cfg.Name == "" {
		return nil, errors.New("node name must not be empty")
	}
	roles := 0
	if cfg.Stage != nil {
		roles++
	}
	if cfg.Source != nil {
		roles++
	}
	if cfg.Sink != nil {
		roles++
	}
	if roles != 1 {
		return nil, fmt.Errorf("node %q: exactly one of Stage, Source or Sink required", cfg.Name)
	}
	return &Node{name: cfg.Name, stage: cfg.Stage, source: cfg.Source, sink: cfg.Sink}, nil
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// State returns the current scheduling state.
func (n *Node) State() NodeState { return n.state }

// Offer hands a record to the node's boundary intake. Returns ErrFull when
// the intake is at capacity and ErrStopped after the node stopped or the
// intake was closed. Offer must run on the scheduling goroutine; external
// receivers feed the pipeline through a Mailbox source instead.
func (n *Node) Offer(rec *record.Record) error {
	if n.state == StateStopped || n.intakeClosed {
		return ErrStopped
	}
	if n.boundaryIn == nil {
		return fmt.Errorf("node %q has no boundary intake", n.name)
	}
	return n.boundaryIn.Enqueue(rec)
}

// CloseIntake marks the boundary intake as finished; buffered records
// still drain.
func (n *Node) CloseIntake() {
	n.intakeClosed = true
}

// Poll drains one record from the node's boundary output, or nil.
func (n *Node) Poll() *record.Record {
	if n.out == nil {
		return nil
	}
	rec, err := n.out.Dequeue()
	if err != nil {
		return nil
	}
	return rec
}

// ready reports whether the node can perform one unit of work.
func (n *Node) ready() bool {
	if n.state == StateStopped {
		return false
	}
	switch {
	case n.source != nil:
		if n.source.Exhausted() {
			return false
		}
		return n.out != nil && n.out.Free() > 0
	case n.sink != nil:
		return n.intakeLen() > 0
	default:
		return n.intakeLen() > 0 && n.out != nil && n.out.Free() > 0
	}
}

func (n *Node) intakeLen() int {
	total := 0
	for _, c := range n.ins {
		total += c.Len()
	}
	return total
}

// dequeue takes the next record, rotating fairly across fan-in intakes.
func (n *Node) dequeue() *record.Record {
	for i := 0; i < len(n.ins); i++ {
		c := n.ins[(n.inCursor+i)%len(n.ins)]
		if rec, err := c.Dequeue(); err == nil {
			n.inCursor = (n.inCursor + i + 1) % len(n.ins)
			return rec
		}
	}
	return nil
}

// step performs one bounded unit of work: one record in, zero or one
// record out, or a drop. It runs synchronously and never blocks; the
// caller has already verified readiness. Reports whether progress was
// made.
func (n *Node) step(ev *Events) bool {
	n.state = StateRunning
	switch {
	case n.source != nil:
		rec, ok := n.source.Pull()
		if !ok {
			if n.source.Exhausted() {
				n.state = StateIdle
			} else {
				n.state = StateSuspended
			}
			return false
		}
		// ready() guaranteed a free output slot.
		_ = n.out.Enqueue(rec)
		n.state = StateIdle
		return true

	case n.sink != nil:
		rec := n.dequeue()
		if rec == nil {
			n.state = StateIdle
			return false
		}
		ev.recordProcessed()
		if err := n.sink.Consume(rec); err != nil {
			ev.recordSinkError(n.name, err)
		} else {
			ev.recordDelivered()
		}
		n.state = StateIdle
		return true

	default:
		rec := n.dequeue()
		if rec == nil {
			n.state = StateIdle
			return false
		}
		ev.recordProcessed()
		out, err := n.stage.Process(rec)
		switch {
		case err != nil:
			ev.recordEvalError(n.name, err)
		case out == nil:
			ev.recordFiltered()
		default:
			_ = n.out.Enqueue(out)
		}
		n.state = StateIdle
		return true
	}
}

// stop transitions the node to its terminal state. It stops accepting new
// intake; in-flight records are accounted for by the scheduler.
func (n *Node) stop() {
	n.state = StateStopped
	n.intakeClosed = true
}
