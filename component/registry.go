package component

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/mfkiwl/blockstream/errors"
)

// Factory creates a block instance from validated raw configuration and
// runtime dependencies.
type Factory func(rawConfig json.RawMessage, deps Dependencies) (Block, error)

// RegistrationConfig describes a registered block type
type RegistrationConfig struct {
	Name        string       // Registry key, e.g. "binary_file_source"
	Factory     Factory      // Constructor
	Schema      ConfigSchema // Configuration schema for discovery
	Type        string       // "source", "processor", "sink"
	Domain      string       // e.g. "file", "testers"
	Description string
	Version     string
}

// Registry maps block type names to factories. It is safe for concurrent
// use; registration normally happens at startup, lookups at flow build
// time.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]RegistrationConfig
}

// NewRegistry creates an empty block registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]RegistrationConfig),
	}
}

// RegisterWithConfig registers a block type. Duplicate names are rejected.
func (r *Registry) RegisterWithConfig(cfg RegistrationConfig) error {
	if cfg.Name == "" {
		return errors.WrapInvalid(
			fmt.Errorf("registration requires a name"),
			"Registry", "RegisterWithConfig", "name check")
	}
	if cfg.Factory == nil {
		return errors.WrapInvalid(
			fmt.Errorf("registration for %q requires a factory", cfg.Name),
			"Registry", "RegisterWithConfig", "factory check")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[cfg.Name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("block type %q already registered", cfg.Name),
			"Registry", "RegisterWithConfig", "duplicate check")
	}

	r.entries[cfg.Name] = cfg
	return nil
}

// Create instantiates a block of the named type. The raw config passes
// through the security gate before reaching the factory.
func (r *Registry) Create(name string, rawConfig json.RawMessage, deps Dependencies) (Block, error) {
	r.mu.RLock()
	cfg, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrBlockNotFound, name),
			"Registry", "Create", "type lookup")
	}

	if err := ValidateFactoryConfig(rawConfig); err != nil {
		return nil, errors.Wrap(err, "Registry", "Create", "config validation")
	}

	block, err := cfg.Factory(rawConfig, deps)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "Create", fmt.Sprintf("factory %q", name))
	}
	return block, nil
}

// Get returns the registration for a block type
func (r *Registry) Get(name string) (RegistrationConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.entries[name]
	return cfg, ok
}

// List returns all registered type names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schemas returns the config schema of every registered type
func (r *Registry) Schemas() map[string]ConfigSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make(map[string]ConfigSchema, len(r.entries))
	for name, cfg := range r.entries {
		schemas[name] = cfg.Schema
	}
	return schemas
}
