package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/nanoflow/internal/record"
	"github.com/coffersTech/nanoflow/internal/storage"
)

const topologyYAML = `
pipeline: checkout
schema:
  status: string
  value: int
nodes:
  - name: intake
    source: mailbox
    capacity: 8
  - name: keep_ok
    query: 'Events | where status == "OK"'
  - name: flag_slow
    query: 'Events | extend slow = value > 100'
  - name: out
    sink: collect
edges:
  - from: intake
    to: keep_ok
  - from: keep_ok
    to: flag_slow
    capacity: 4
  - from: flag_slow
    to: out
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]byte(topologyYAML))
	require.NoError(t, err)

	assert.Equal(t, "checkout", cfg.Pipeline)
	require.Len(t, cfg.Nodes, 4)
	require.Len(t, cfg.Edges, 3)

	assert.Equal(t, 8, cfg.Nodes[0].Capacity)
	assert.Equal(t, 16, cfg.Edges[0].Capacity, "default edge capacity")
	assert.Equal(t, 4, cfg.Edges[1].Capacity, "explicit capacity wins")
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no nodes", "pipeline: p\nnodes: []\n"},
		{"nameless node", "nodes:\n  - sink: collect\n"},
		{"duplicate names", "nodes:\n  - name: a\n    sink: collect\n  - name: a\n    source: mailbox\n"},
		{"unknown source kind", "nodes:\n  - name: a\n    source: kafka\n"},
		{"unknown sink kind", "nodes:\n  - name: a\n    sink: s3\n"},
		{"file source without path", "nodes:\n  - name: a\n    source: file\n"},
		{"file sink without path", "nodes:\n  - name: a\n    sink: file\n"},
		{"two roles", "nodes:\n  - name: a\n    source: mailbox\n    sink: collect\n"},
		{"no role", "nodes:\n  - name: a\n"},
		{"edge to unknown node", "nodes:\n  - name: a\n    sink: collect\nedges:\n  - from: ghost\n    to: a\n"},
		{"bad schema kind", "schema:\n  f: float\nnodes:\n  - name: a\n    sink: collect\n"},
		{"not yaml", ":\n  - ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestBuildAndRun(t *testing.T) {
	cfg, err := Load([]byte(topologyYAML))
	require.NoError(t, err)

	asm, err := cfg.Build(zerolog.Nop())
	require.NoError(t, err)
	require.Contains(t, asm.Mailboxes, "intake")
	require.Contains(t, asm.Collectors, "out")

	mb := asm.Mailboxes["intake"]
	rows := []map[string]record.Value{
		{"status": record.String("OK"), "value": record.Int(250)},
		{"status": record.String("FAIL"), "value": record.Int(10)},
		{"status": record.String("OK"), "value": record.Int(20)},
	}
	for _, row := range rows {
		require.NoError(t, mb.Offer(record.FromMap(row)))
	}
	mb.Close()

	require.NoError(t, asm.Pipeline.Run(context.Background()))

	out := asm.Collectors["out"].Records
	require.Len(t, out, 2)
	slow, _ := out[0].Get("slow")
	assert.True(t, slow.Bool())
	slow, _ = out[1].Get("slow")
	assert.False(t, slow.Bool())

	stats := asm.Pipeline.Stats()
	assert.Equal(t, int64(2), stats.Delivered)
	assert.Equal(t, int64(1), stats.Filtered)
}

func TestBuildRejectsBadQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"syntax error", "Events | where a || b"},
		{"parse error", "Events | where"},
		{"compile error against schema", `Events | where missing == 1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Pipeline: "p",
				Schema:   map[string]string{"status": "string"},
				Nodes: []NodeConfig{
					{Name: "in", Source: SourceMailbox, Capacity: 1},
					{Name: "q", Query: tt.query},
					{Name: "out", Sink: SinkCollect},
				},
				Edges: []EdgeConfig{
					{From: "in", To: "q", Capacity: 1},
					{From: "q", To: "out", Capacity: 1},
				},
			}
			_, err := cfg.Build(zerolog.Nop())
			require.Error(t, err)
			assert.Contains(t, err.Error(), `node "q"`)
		})
	}
}

func TestBuildRejectsIncompleteWiring(t *testing.T) {
	cfg := &Config{
		Pipeline: "p",
		Nodes: []NodeConfig{
			{Name: "in", Source: SourceMailbox, Capacity: 1},
			{Name: "out", Sink: SinkCollect},
		},
		// No edges: the assembled pipeline fails engine validation.
	}
	_, err := cfg.Build(zerolog.Nop())
	require.Error(t, err)
}

func TestBuildFileSourceAndSink(t *testing.T) {
	dir := t.TempDir()

	// Seed a snapshot to replay.
	seed, err := storage.NewFileSink(dir)
	require.NoError(t, err)
	require.NoError(t, seed.Consume(record.FromMap(map[string]record.Value{
		"status": record.String("OK"),
	})))
	path, err := seed.Flush()
	require.NoError(t, err)

	outDir := filepath.Join(dir, "out")
	cfg := &Config{
		Pipeline: "replay",
		Nodes: []NodeConfig{
			{Name: "in", Source: SourceFile, Path: path},
			{Name: "out", Sink: SinkFile, Path: outDir},
		},
		Edges: []EdgeConfig{{From: "in", To: "out", Capacity: 4}},
	}
	require.NoError(t, cfg.Validate())

	asm, err := cfg.Build(zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, asm.Pipeline.Run(context.Background()))

	sink := asm.FileSinks["out"]
	require.Equal(t, 1, sink.Len())
	flushed, err := sink.Flush()
	require.NoError(t, err)
	assert.NotEmpty(t, flushed)
}
