package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/coffersTech/nanoflow/internal/record"
)

// Node source/sink kinds understood by the assembler.
const (
	SourceMailbox = "mailbox"
	SourceFile    = "file"
	SinkCollect   = "collect"
	SinkFile      = "file"
)

// Config describes a pipeline topology: nodes, the channels connecting
// them, and an optional record schema for static query checking.
type Config struct {
	Pipeline string            `yaml:"pipeline"`
	Schema   map[string]string `yaml:"schema"`
	Nodes    []NodeConfig      `yaml:"nodes"`
	Edges    []EdgeConfig      `yaml:"edges"`
}

// NodeConfig declares one node. Exactly one of Source, Sink or Query must
// be set.
type NodeConfig struct {
	Name     string `yaml:"name"`
	Source   string `yaml:"source,omitempty"` // mailbox | file
	Sink     string `yaml:"sink,omitempty"`   // collect | file
	Query    string `yaml:"query,omitempty"`  // flowql query text
	Path     string `yaml:"path,omitempty"`   // snapshot path (file source) or data dir (file sink)
	Capacity int    `yaml:"capacity,omitempty"`
}

// EdgeConfig declares one bounded channel between two nodes.
type EdgeConfig struct {
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Capacity int    `yaml:"capacity,omitempty"`
}

// Load parses a YAML topology.
func Load(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse pipeline config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads and parses a YAML topology file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// ApplyDefaults fills in default capacities.
func (c *Config) ApplyDefaults() {
	if c.Pipeline == "" {
		c.Pipeline = "nanoflow"
	}
	for i := range c.Nodes {
		if c.Nodes[i].Source == SourceMailbox && c.Nodes[i].Capacity == 0 {
			c.Nodes[i].Capacity = 64
		}
	}
	for i := range c.Edges {
		if c.Edges[i].Capacity == 0 {
			c.Edges[i].Capacity = 16
		}
	}
}

// Validate checks the declaration before any assembly happens.
func (c *Config) Validate() error {
	if len(c.Nodes) == 0 {
		return fmt.Errorf("pipeline %q declares no nodes", c.Pipeline)
	}
	names := make(map[string]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.Name == "" {
			return fmt.Errorf("pipeline %q has a node without a name", c.Pipeline)
		}
		if names[n.Name] {
			return fmt.Errorf("duplicate node name %q", n.Name)
		}
		names[n.Name] = true

		roles := 0
		if n.Source != "" {
			roles++
			if n.Source != SourceMailbox && n.Source != SourceFile {
				return fmt.Errorf("node %q: unknown source kind %q", n.Name, n.Source)
			}
			if n.Source == SourceFile && n.Path == "" {
				return fmt.Errorf("node %q: file source requires a path", n.Name)
			}
		}
		if n.Sink != "" {
			roles++
			if n.Sink != SinkCollect && n.Sink != SinkFile {
				return fmt.Errorf("node %q: unknown sink kind %q", n.Name, n.Sink)
			}
			if n.Sink == SinkFile && n.Path == "" {
				return fmt.Errorf("node %q: file sink requires a path", n.Name)
			}
		}
		if n.Query != "" {
			roles++
		}
		if roles != 1 {
			return fmt.Errorf("node %q: exactly one of source, sink or query required", n.Name)
		}
	}
	for _, e := range c.Edges {
		if !names[e.From] {
			return fmt.Errorf("edge references unknown node %q", e.From)
		}
		if !names[e.To] {
			return fmt.Errorf("edge references unknown node %q", e.To)
		}
		if e.Capacity <= 0 {
			return fmt.Errorf("edge %s -> %s: capacity must be positive", e.From, e.To)
		}
	}
	for attr, kind := range c.Schema {
		if _, err := parseKind(kind); err != nil {
			return fmt.Errorf("schema attribute %q: %w", attr, err)
		}
	}
	return nil
}

func parseKind(s string) (record.Kind, error) {
	switch s {
	case "bool":
		return record.KindBool, nil
	case "int":
		return record.KindInt, nil
	case "string":
		return record.KindString, nil
	default:
		return 0, fmt.Errorf("unknown value kind %q", s)
	}
}
