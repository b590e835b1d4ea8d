package engine

import (
	"sync"

	"github.com/coffersTech/nanoflow/internal/record"
)

// Mailbox is the ingress boundary adapter: external goroutines (receivers,
// HTTP handlers) hand records to the single-threaded core through it. It is
// the only synchronized ingress type in the engine and sits strictly at the
// pipeline edge; everything inside the scheduling loop is lock-free by
// construction.
type Mailbox struct {
	mu     sync.Mutex
	buf    []*record.Record
	head   int
	count  int
	closed bool
}

// NewMailbox creates a bounded mailbox.
func NewMailbox(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = 1
	}
	return &Mailbox{buf: make([]*record.Record, capacity)}
}

// Offer hands a record to the pipeline. Returns ErrFull when at capacity
// (the caller must retry or shed load) and ErrStopped after Close.
func (m *Mailbox) Offer(rec *record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStopped
	}
	if m.count == len(m.buf) {
		return ErrFull
	}
	m.buf[(m.head+m.count)%len(m.buf)] = rec
	m.count++
	return nil
}

// Close marks end of input. Buffered records still drain.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// Pull implements Source.
func (m *Mailbox) Pull() (*record.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == 0 {
		return nil, false
	}
	rec := m.buf[m.head]
	m.buf[m.head] = nil
	m.head = (m.head + 1) % len(m.buf)
	m.count--
	return rec, true
}

// Exhausted implements Source: closed and fully drained.
func (m *Mailbox) Exhausted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed && m.count == 0
}

// Len returns the number of buffered records.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}
