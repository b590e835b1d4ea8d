package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coffersTech/nanoflow/internal/engine"
	"github.com/coffersTech/nanoflow/internal/pkg/flowql"
	"github.com/coffersTech/nanoflow/internal/storage"
)

// Assembled is a built pipeline plus handles to its edge adapters: the
// mailboxes that feed it and the sinks that can be drained or flushed
// after the run.
type Assembled struct {
	Pipeline   *engine.Pipeline
	Mailboxes  map[string]*engine.Mailbox
	Collectors map[string]*engine.CollectorSink
	FileSinks  map[string]*storage.FileSink
}

// Build assembles and validates a runnable pipeline from the declaration.
// Query compilation failures (syntax, parse, compile errors) abort the
// build; no partial pipeline runs.
func (c *Config) Build(log zerolog.Logger) (*Assembled, error) {
	var schema flowql.Schema
	if len(c.Schema) > 0 {
		schema = make(flowql.Schema, len(c.Schema))
		for attr, kindName := range c.Schema {
			kind, err := parseKind(kindName)
			if err != nil {
				return nil, err
			}
			schema[attr] = kind
		}
	}

	asm := &Assembled{
		Pipeline:   engine.New(c.Pipeline, log),
		Mailboxes:  make(map[string]*engine.Mailbox),
		Collectors: make(map[string]*engine.CollectorSink),
		FileSinks:  make(map[string]*storage.FileSink),
	}

	for _, nc := range c.Nodes {
		cfg := engine.StageConfig{Name: nc.Name}
		switch {
		case nc.Source == SourceMailbox:
			mb := engine.NewMailbox(nc.Capacity)
			asm.Mailboxes[nc.Name] = mb
			cfg.Source = mb
		case nc.Source == SourceFile:
			src, err := storage.NewFileSource(nc.Path)
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", nc.Name, err)
			}
			cfg.Source = src
		case nc.Sink == SinkCollect:
			sink := &engine.CollectorSink{}
			asm.Collectors[nc.Name] = sink
			cfg.Sink = sink
		case nc.Sink == SinkFile:
			sink, err := storage.NewFileSink(nc.Path)
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", nc.Name, err)
			}
			asm.FileSinks[nc.Name] = sink
			cfg.Sink = sink
		default:
			plan, err := compileQuery(nc.Query, schema)
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", nc.Name, err)
			}
			cfg.Stage = engine.NewPlanStage(plan)
		}
		if _, err := asm.Pipeline.BuildNode(cfg); err != nil {
			return nil, err
		}
	}

	for _, e := range c.Edges {
		from, _ := asm.Pipeline.Node(e.From)
		to, _ := asm.Pipeline.Node(e.To)
		if _, err := asm.Pipeline.Connect(from, to, e.Capacity); err != nil {
			return nil, err
		}
	}

	if err := asm.Pipeline.Validate(); err != nil {
		return nil, err
	}
	return asm, nil
}

func compileQuery(src string, schema flowql.Schema) (*flowql.Plan, error) {
	q, err := flowql.Parse(src)
	if err != nil {
		return nil, err
	}
	return flowql.Compile(q, schema)
}
