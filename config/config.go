// Package config loads flow definitions and runtime settings from JSON
// or YAML files and builds runnable topologies from a block registry.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mfkiwl/blockstream/component"
	"github.com/mfkiwl/blockstream/engine"
	"github.com/mfkiwl/blockstream/errors"
)

// maxConfigBytes bounds how much configuration we will read from disk.
const maxConfigBytes = 1 << 20

// BlockSpec declares one block instance in a flow.
type BlockSpec struct {
	Name   string          `json:"name" yaml:"name"`
	Type   string          `json:"type" yaml:"type"`
	Config json.RawMessage `json:"config,omitempty" yaml:"config,omitempty"`
}

// UnmarshalYAML decodes the block config mapping through JSON so the
// same RawMessage path serves both formats.
func (b *BlockSpec) UnmarshalYAML(node *yaml.Node) error {
	var aux struct {
		Name   string         `yaml:"name"`
		Type   string         `yaml:"type"`
		Config map[string]any `yaml:"config"`
	}
	if err := node.Decode(&aux); err != nil {
		return err
	}
	b.Name = aux.Name
	b.Type = aux.Type
	b.Config = nil
	if aux.Config != nil {
		data, err := json.Marshal(aux.Config)
		if err != nil {
			return err
		}
		b.Config = data
	}
	return nil
}

// ConnectionSpec declares one stream edge between two block instances.
type ConnectionSpec struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// EngineSpec tunes the scheduler. CycleBudget uses Go duration syntax,
// e.g. "100ms".
type EngineSpec struct {
	CycleBudget string  `json:"cycle_budget,omitempty" yaml:"cycle_budget,omitempty"`
	CycleRate   float64 `json:"cycle_rate,omitempty" yaml:"cycle_rate,omitempty"`
}

// Config is the complete application configuration: the flow wiring plus
// runtime settings.
type Config struct {
	Logging     LoggingSpec      `json:"logging,omitempty" yaml:"logging,omitempty"`
	MetricsPort int              `json:"metrics_port,omitempty" yaml:"metrics_port,omitempty"`
	Engine      EngineSpec       `json:"engine,omitempty" yaml:"engine,omitempty"`
	Blocks      []BlockSpec      `json:"blocks" yaml:"blocks"`
	Connections []ConnectionSpec `json:"connections,omitempty" yaml:"connections,omitempty"`
}

// LoggingSpec configures the process logger.
type LoggingSpec struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // json, text
}

// Load reads a config file, dispatching on extension: .yaml and .yml
// parse as YAML, everything else as JSON.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.WrapTransient(err, "config", "Load", "stat")
	}
	if info.Size() > maxConfigBytes {
		return nil, errors.WrapInvalid(
			fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigBytes),
			"config", "Load", "size check")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapTransient(err, "config", "Load", "read")
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load", "yaml parsing")
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load", "json parsing")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural requirements: unique block names, known
// references in connections, non-empty types.
func (c *Config) Validate() error {
	if len(c.Blocks) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: flow declares no blocks", errors.ErrMissingConfig),
			"Config", "Validate", "blocks check")
	}

	seen := make(map[string]bool, len(c.Blocks))
	for i, b := range c.Blocks {
		if b.Name == "" || b.Type == "" {
			return errors.WrapInvalid(
				fmt.Errorf("block %d requires name and type", i),
				"Config", "Validate", "block declaration check")
		}
		if seen[b.Name] {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %q", errors.ErrDuplicateBlock, b.Name),
				"Config", "Validate", "duplicate name check")
		}
		seen[b.Name] = true

		if len(b.Config) > 0 {
			if err := component.ValidateFactoryConfig(b.Config); err != nil {
				return errors.Wrap(err, "Config", "Validate",
					fmt.Sprintf("config of block %q", b.Name))
			}
		}
	}

	if c.Engine.CycleBudget != "" {
		if _, err := time.ParseDuration(c.Engine.CycleBudget); err != nil {
			return errors.WrapInvalid(err, "Config", "Validate", "cycle budget parsing")
		}
	}

	for _, conn := range c.Connections {
		if !seen[conn.From] {
			return errors.WrapInvalid(
				fmt.Errorf("%w: connection references %q", errors.ErrBlockNotFound, conn.From),
				"Config", "Validate", "connection producer check")
		}
		if !seen[conn.To] {
			return errors.WrapInvalid(
				fmt.Errorf("%w: connection references %q", errors.ErrBlockNotFound, conn.To),
				"Config", "Validate", "connection consumer check")
		}
	}
	return nil
}

// EngineOptions converts the engine section to scheduler options.
// Unset fields stay zero so the engine applies its defaults.
func (c *Config) EngineOptions() engine.Options {
	var budget time.Duration
	if c.Engine.CycleBudget != "" {
		budget, _ = time.ParseDuration(c.Engine.CycleBudget) // validated in Validate
	}
	return engine.Options{
		CycleBudget: budget,
		CycleRate:   c.Engine.CycleRate,
	}
}

// BuildTopology instantiates every declared block through the registry
// and wires the declared connections.
func (c *Config) BuildTopology(registry *component.Registry, deps component.Dependencies) (*engine.Topology, error) {
	topo := engine.NewTopology()

	for _, spec := range c.Blocks {
		block, err := registry.Create(spec.Type, spec.Config, deps)
		if err != nil {
			return nil, errors.Wrap(err, "Config", "BuildTopology",
				fmt.Sprintf("creating block %q", spec.Name))
		}
		if err := topo.AddBlock(spec.Name, block); err != nil {
			return nil, err
		}
	}

	for _, conn := range c.Connections {
		if err := topo.Connect(conn.From, conn.To); err != nil {
			return nil, errors.Wrap(err, "Config", "BuildTopology",
				fmt.Sprintf("connecting %q to %q", conn.From, conn.To))
		}
	}
	return topo, nil
}
