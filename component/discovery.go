// Package component defines the Block interface and related types
package component

import (
	"time"
)

// Block defines the interface for blocks that can be discovered and
// inspected by the engine and management layer. This interface enables
// dynamic discovery of block capabilities, configuration, and health.
//
// Blocks implementing this interface can be:
// - Source blocks: produce elements from external resources (files, fds)
// - Processor blocks: transform elements
// - Sink blocks: consume elements into external resources
type Block interface {
	// Meta returns basic block information
	Meta() Metadata

	// InputPorts returns the ports this block accepts data on
	InputPorts() []Port

	// OutputPorts returns the ports this block produces data on
	OutputPorts() []Port

	// ConfigSchema returns the configuration schema for this block
	ConfigSchema() ConfigSchema

	// Health returns current health status
	Health() HealthStatus

	// DataFlow returns current data flow metrics
	DataFlow() FlowMetrics
}

// Metadata describes what a block is
type Metadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "source", "processor", "sink"
	Description string `json:"description"`
	Version     string `json:"version"`
}

// ConfigSchema describes the configuration parameters for a block
type ConfigSchema struct {
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

// PropertySchema describes a single configuration property
type PropertySchema struct {
	Type        string   `json:"type"` // "string", "int", "bool", "float", "enum"
	Description string   `json:"description"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`    // Valid string values
	Category    string   `json:"category,omitempty"` // "basic" or "advanced"
}

// HealthStatus describes the current health state of a block
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// FlowMetrics describes the current data flow through a block
type FlowMetrics struct {
	ElementsPerSecond float64   `json:"elements_per_second"`
	BytesPerSecond    float64   `json:"bytes_per_second"`
	ErrorRate         float64   `json:"error_rate"`
	LastActivity      time.Time `json:"last_activity"`
}
