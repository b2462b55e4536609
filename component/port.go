package component

import "fmt"

// Direction for data flow
type Direction string

// Direction constants for port data flow
const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Port describes any I/O interface
type Port struct {
	Name        string    `json:"name"`
	Direction   Direction `json:"direction"`
	Required    bool      `json:"required"`
	Description string    `json:"description"`
	Config      Portable  `json:"config"`
}

// Portable interface - minimal, no Get prefix (Go idiomatic)
type Portable interface {
	ResourceID() string // Unique identifier for conflict detection
	IsExclusive() bool  // Whether multiple blocks can share
	Type() string       // Port type identifier
}

// FilePort - file system access
type FilePort struct {
	Path string `json:"path"`
}

// ResourceID returns unique identifier for file ports
func (f FilePort) ResourceID() string {
	return fmt.Sprintf("file:%s", f.Path)
}

// IsExclusive returns false as multiple blocks can read files
func (f FilePort) IsExclusive() bool {
	return false
}

// Type returns the port type identifier
func (f FilePort) Type() string {
	return "file"
}

// StreamPort - in-process element stream between blocks
type StreamPort struct {
	DType string `json:"dtype"`
}

// ResourceID returns unique identifier for stream ports
func (s StreamPort) ResourceID() string {
	return fmt.Sprintf("stream:%s", s.DType)
}

// IsExclusive returns true; a stream connects exactly one producer to one consumer
func (s StreamPort) IsExclusive() bool {
	return true
}

// Type returns the port type identifier
func (s StreamPort) Type() string {
	return "stream"
}

// DescriptorPort - an externally owned OS file descriptor
type DescriptorPort struct {
	FD int `json:"fd"`
}

// ResourceID returns unique identifier for descriptor ports
func (d DescriptorPort) ResourceID() string {
	return fmt.Sprintf("fd:%d", d.FD)
}

// IsExclusive returns true; a descriptor has a single owner
func (d DescriptorPort) IsExclusive() bool {
	return true
}

// Type returns the port type identifier
func (d DescriptorPort) Type() string {
	return "fd"
}
