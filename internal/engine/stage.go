package engine

import (
	"github.com/coffersTech/nanoflow/internal/pkg/flowql"
	"github.com/coffersTech/nanoflow/internal/record"
)

// Stage transforms one record synchronously. Returning (nil, nil) drops the
// record. A non-nil error is a per-record evaluation failure: the record is
// dropped, the error counted, and the pipeline continues.
type Stage interface {
	Process(rec *record.Record) (*record.Record, error)
}

// Source feeds a source node. Pull returns (nil, false) when no record is
// currently available; Exhausted reports permanent end of input. A source
// that is empty but not exhausted suspends its node until data arrives.
type Source interface {
	Pull() (*record.Record, bool)
	Exhausted() bool
}

// Sink consumes records at the end of the pipeline.
type Sink interface {
	Consume(rec *record.Record) error
}

// PlanStage executes a compiled flowql plan per record. The plan is
// immutable and shared read-only across all evaluations.
type PlanStage struct {
	plan *flowql.Plan
}

// NewPlanStage wraps a compiled plan as a pipeline stage.
func NewPlanStage(plan *flowql.Plan) *PlanStage {
	return &PlanStage{plan: plan}
}

func (s *PlanStage) Process(rec *record.Record) (*record.Record, error) {
	kept, err := s.plan.Execute(rec)
	if err != nil {
		return nil, err
	}
	if !kept {
		return nil, nil
	}
	return rec, nil
}

// SliceSource serves a fixed batch of records, then reports exhaustion.
type SliceSource struct {
	records []*record.Record
	next    int
}

func NewSliceSource(records []*record.Record) *SliceSource {
	return &SliceSource{records: records}
}

func (s *SliceSource) Pull() (*record.Record, bool) {
	if s.next >= len(s.records) {
		return nil, false
	}
	rec := s.records[s.next]
	s.records[s.next] = nil
	s.next++
	return rec, true
}

func (s *SliceSource) Exhausted() bool {
	return s.next >= len(s.records)
}

// GeneratorSource produces records on demand from a function. A negative
// limit means unbounded input.
type GeneratorSource struct {
	fn       func(i int) *record.Record
	limit    int
	produced int
}

func NewGeneratorSource(limit int, fn func(i int) *record.Record) *GeneratorSource {
	return &GeneratorSource{fn: fn, limit: limit}
}

func (s *GeneratorSource) Pull() (*record.Record, bool) {
	if s.Exhausted() {
		return nil, false
	}
	rec := s.fn(s.produced)
	s.produced++
	return rec, true
}

func (s *GeneratorSource) Exhausted() bool {
	return s.limit >= 0 && s.produced >= s.limit
}

// CollectorSink retains every delivered record, for tests and for draining
// to a snapshot on shutdown.
type CollectorSink struct {
	Records []*record.Record
}

func (s *CollectorSink) Consume(rec *record.Record) error {
	s.Records = append(s.Records, rec)
	return nil
}
