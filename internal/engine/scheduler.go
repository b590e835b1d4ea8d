package engine

import (
	"context"
	"errors"
	"time"
)

// pollInterval is how long Run parks when every runnable node is suspended
// on an external feed. Suspension never occupies the scheduling thread.
const pollInterval = 5 * time.Millisecond

// Step performs one scheduling turn: the next Ready node in round-robin
// order executes one bounded unit of work. Returns whether any node made
// progress. Round-robin selection keeps every Ready node within one full
// rotation of being chosen, so no node starves.
func (p *Pipeline) Step() bool {
	nn := len(p.nodes)
	start := p.cursor
	for i := 0; i < nn; i++ {
		idx := (start + i) % nn
		n := p.nodes[idx]
		if !n.ready() {
			continue
		}
		if n.step(p.events) {
			p.cursor = (idx + 1) % nn
			return true
		}
		// The node found nothing to do after all (a source whose feed
		// emptied between ready() and Pull()); keep scanning from the
		// same origin so no node is skipped this rotation.
	}
	return false
}

// Run validates the pipeline and drives it to completion: it returns nil
// once all sources are exhausted, all internal channels are drained and
// every node is idle (records parked in boundary output channels remain
// available to Poll). When the only runnable nodes are suspended on
// external feeds, Run parks briefly between polls instead of spinning.
//
// Cancelling the context stops every node, drops in-flight records
// (counted on the event stream) and returns the context error.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.log.Info().Int("nodes", len(p.nodes)).Int("channels", len(p.channels)).Msg("pipeline started")

	for {
		select {
		case <-ctx.Done():
			p.cancelRun()
			return ctx.Err()
		default:
		}

		if p.Step() {
			continue
		}
		if p.suspended() == 0 {
			break
		}

		timer := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.cancelRun()
			return ctx.Err()
		case <-timer.C:
		}
	}

	stats := p.events.Snapshot()
	p.log.Info().
		Int64("processed", stats.Processed).
		Int64("filtered", stats.Filtered).
		Int64("eval_errors", stats.EvalErrors).
		Int64("delivered", stats.Delivered).
		Msg("pipeline finished")
	return nil
}

// RunFor runs the pipeline with a boundary timeout, cancelling after d.
// Reaching the deadline is the expected outcome and is not an error.
func (p *Pipeline) RunFor(d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	err := p.Run(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// suspended counts nodes waiting on an external readiness signal. A node
// whose feed has meanwhile closed goes back to idle.
func (p *Pipeline) suspended() int {
	count := 0
	for _, n := range p.nodes {
		if n.state != StateSuspended {
			continue
		}
		if n.source != nil && n.source.Exhausted() {
			n.state = StateIdle
			continue
		}
		count++
	}
	return count
}

// cancelRun stops every node and accounts for in-flight loss.
func (p *Pipeline) cancelRun() {
	for _, n := range p.nodes {
		n.stop()
	}
	lost := 0
	for _, ch := range p.channels {
		lost += ch.drain()
	}
	p.events.recordCancelled(lost)
	p.log.Info().Msg("pipeline cancelled")
}
