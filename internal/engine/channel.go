package engine

import (
	"errors"

	"github.com/coffersTech/nanoflow/internal/record"
)

// Control-flow signals. They drive scheduler backoff and are never
// surfaced as pipeline failures.
var (
	ErrFull  = errors.New("channel full")
	ErrEmpty = errors.New("channel empty")
)

// ErrStopped is returned when a record is offered to a stopped node or a
// closed mailbox.
var ErrStopped = errors.New("node stopped")

// Channel is a bounded FIFO ring buffer connecting a producer node's output
// to a consumer node's intake. Enqueue and Dequeue never block. The whole
// pipeline runs on one scheduling goroutine, so a Channel needs no locking.
type Channel struct {
	buf   []*record.Record
	head  int
	count int
}

// NewChannel creates a channel with the given fixed capacity.
func NewChannel(capacity int) (*Channel, error) {
	if capacity <= 0 {
		return nil, errors.New("channel capacity must be positive")
	}
	return &Channel{buf: make([]*record.Record, capacity)}, nil
}

// Enqueue appends a record, or returns ErrFull when at capacity. The caller
// keeps ownership of the record on failure and must retry later.
func (c *Channel) Enqueue(rec *record.Record) error {
	if c.count == len(c.buf) {
		return ErrFull
	}
	c.buf[(c.head+c.count)%len(c.buf)] = rec
	c.count++
	return nil
}

// Dequeue removes the oldest record, or returns ErrEmpty.
func (c *Channel) Dequeue() (*record.Record, error) {
	if c.count == 0 {
		return nil, ErrEmpty
	}
	rec := c.buf[c.head]
	c.buf[c.head] = nil
	c.head = (c.head + 1) % len(c.buf)
	c.count--
	return rec, nil
}

// Len returns the number of buffered records.
func (c *Channel) Len() int { return c.count }

// Cap returns the fixed capacity.
func (c *Channel) Cap() int { return len(c.buf) }

// Free returns the remaining capacity.
func (c *Channel) Free() int { return len(c.buf) - c.count }

// drain empties the channel, returning the number of records discarded.
// Used on cancellation to account for in-flight loss.
func (c *Channel) drain() int {
	n := c.count
	for i := range c.buf {
		c.buf[i] = nil
	}
	c.head = 0
	c.count = 0
	return n
}
