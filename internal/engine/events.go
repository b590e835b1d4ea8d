package engine

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// EventKind classifies an engine event.
type EventKind uint8

const (
	// EventEvalError is a per-record evaluation failure.
	EventEvalError EventKind = iota
	// EventSinkError is a delivery failure at a sink.
	EventSinkError
	// EventCancelled reports records lost to cancellation (Count set).
	EventCancelled
)

func (k EventKind) String() string {
	switch k {
	case EventEvalError:
		return "eval_error"
	case EventSinkError:
		return "sink_error"
	case EventCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Event is one entry in the observable error/metrics stream.
type Event struct {
	Node  string
	Kind  EventKind
	Err   error
	Count int
}

const eventRingSize = 256

// Events is the error/metrics egress of a pipeline: aggregate counters plus
// a bounded ring of recent events. Per-record failures and drops are never
// silently discarded. Counters are atomics and the ring carries its own
// lock because this is an egress boundary: metrics collaborators read it
// from outside the scheduling goroutine.
type Events struct {
	processed  atomic.Int64
	filtered   atomic.Int64
	evalErrors atomic.Int64
	delivered  atomic.Int64
	cancelled  atomic.Int64

	mu    sync.Mutex
	ring  []Event
	head  int
	count int

	log zerolog.Logger
}

// Stats is a point-in-time snapshot of the counters.
type Stats struct {
	Processed         int64 `json:"processed"`
	Filtered          int64 `json:"filtered"`
	EvalErrors        int64 `json:"eval_errors"`
	Delivered         int64 `json:"delivered"`
	CancelledInFlight int64 `json:"cancelled_in_flight"`
}

// NewEvents creates the event stream for one pipeline run.
func NewEvents(log zerolog.Logger) *Events {
	return &Events{ring: make([]Event, eventRingSize), log: log}
}

func (e *Events) push(ev Event) {
	e.mu.Lock()
	if e.count == len(e.ring) {
		// Oldest event is overwritten; the counters stay exact.
		e.head = (e.head + 1) % len(e.ring)
		e.count--
	}
	e.ring[(e.head+e.count)%len(e.ring)] = ev
	e.count++
	e.mu.Unlock()
}

// Drain returns and clears the buffered events.
func (e *Events) Drain() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, 0, e.count)
	for i := 0; i < e.count; i++ {
		out = append(out, e.ring[(e.head+i)%len(e.ring)])
	}
	e.head = 0
	e.count = 0
	return out
}

// Snapshot returns the current counter values.
func (e *Events) Snapshot() Stats {
	return Stats{
		Processed:         e.processed.Load(),
		Filtered:          e.filtered.Load(),
		EvalErrors:        e.evalErrors.Load(),
		Delivered:         e.delivered.Load(),
		CancelledInFlight: e.cancelled.Load(),
	}
}

func (e *Events) recordProcessed() {
	e.processed.Add(1)
}

func (e *Events) recordFiltered() {
	e.filtered.Add(1)
}

func (e *Events) recordDelivered() {
	e.delivered.Add(1)
}

func (e *Events) recordEvalError(node string, err error) {
	e.evalErrors.Add(1)
	e.push(Event{Node: node, Kind: EventEvalError, Err: err})
	e.log.Warn().Str("node", node).Err(err).Msg("record dropped on evaluation error")
}

func (e *Events) recordSinkError(node string, err error) {
	e.push(Event{Node: node, Kind: EventSinkError, Err: err})
	e.log.Warn().Str("node", node).Err(err).Msg("sink delivery failed")
}

func (e *Events) recordCancelled(n int) {
	if n == 0 {
		return
	}
	e.cancelled.Add(int64(n))
	e.push(Event{Kind: EventCancelled, Count: n})
	e.log.Info().Int("in_flight", n).Msg("in-flight records dropped on cancellation")
}
