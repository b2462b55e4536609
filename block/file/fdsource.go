package file

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mfkiwl/blockstream/component"
	"github.com/mfkiwl/blockstream/errors"
	"github.com/mfkiwl/blockstream/pkg/fdwait"
)

// DescriptorConfig holds configuration for the descriptor source and sink
type DescriptorConfig struct {
	DType string `json:"dtype" schema:"type:string,description:Element type,category:basic,required"`
	FD    int    `json:"fd"    schema:"type:int,description:Already-open OS file descriptor to adopt,category:basic,required"`
}

// Validate implements component.Validatable for secure config validation
func (c *DescriptorConfig) Validate() error {
	if c.DType != "" {
		if _, err := component.ParseDType(c.DType); err != nil {
			return errors.Wrap(err, "DescriptorConfig", "Validate", "dtype validation")
		}
	}
	if c.FD < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("descriptor %d is negative", c.FD),
			"DescriptorConfig", "Validate", "fd check")
	}
	return nil
}

// descriptorSchema defines the configuration schema for descriptor blocks
var descriptorSchema = component.GenerateConfigSchema(reflect.TypeOf(DescriptorConfig{}))

// DescriptorSource streams typed elements from an already-open file
// descriptor, typically a pipe or socket handed over by a parent process.
// The block takes ownership: Deactivate closes the descriptor.
//
// There is no path and no rewind. End of data is an idle steady state.
type DescriptorSource struct {
	name   string
	dtype  component.DType
	fd     int
	logger *component.Logger

	mu     sync.Mutex
	handle *handle
	state  component.State

	out *component.OutputPort

	startTime   time.Time
	elementsOut atomic.Int64
	bytesOut    atomic.Int64
}

var _ component.Block = (*DescriptorSource)(nil)
var _ component.Activatable = (*DescriptorSource)(nil)
var _ component.Worker = (*DescriptorSource)(nil)
var _ component.OutputBinder = (*DescriptorSource)(nil)

// NewDescriptorSource creates a descriptor source over the given fd. The
// descriptor is not touched until Activate.
func NewDescriptorSource(name string, dtypeName string, fd int, logger *component.Logger) (*DescriptorSource, error) {
	dtype, err := component.ParseDType(dtypeName)
	if err != nil {
		return nil, errors.Wrap(err, "DescriptorSource", "NewDescriptorSource", "dtype parsing")
	}
	if name == "" {
		name = "file-descriptor-source"
	}
	if logger == nil {
		logger = component.NewLogger(name, nil)
	}
	return &DescriptorSource{
		name:      name,
		dtype:     dtype,
		fd:        fd,
		logger:    logger,
		state:     component.StateCreated,
		startTime: time.Now(),
	}, nil
}

// BindOutput attaches the output stream port.
func (s *DescriptorSource) BindOutput(p *component.OutputPort) error {
	if p.DType() != s.dtype {
		return errors.WrapFatal(
			fmt.Errorf("%w: port %s, source %s", errors.ErrTypeMismatch, p.DType(), s.dtype),
			"DescriptorSource", "BindOutput", "dtype check")
	}
	s.out = p
	return nil
}

// Activate adopts the descriptor. A negative descriptor is a
// configuration error.
func (s *DescriptorSource) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := adopt(s.fd, s.name)
	if h == nil {
		s.state = component.StateFailed
		return errors.WrapInvalid(
			fmt.Errorf("%w: descriptor %d", errors.ErrInvalidConfig, s.fd),
			"DescriptorSource", "Activate", "descriptor check")
	}
	s.handle = h
	s.state = component.StateActive
	return nil
}

// Deactivate closes the adopted descriptor. Idempotent.
func (s *DescriptorSource) Deactivate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle.Valid() {
		if err := s.handle.Close(); err != nil {
			s.logger.Warn("close failed", "fd", s.fd, "error", err)
		}
	}
	s.handle = nil
	s.state = component.StateInactive
	return nil
}

// Work runs one cycle: bounded readiness wait, one read, whole-element
// production. End of stream and read failures are both idle yields; the
// descriptor stays open until Deactivate.
func (s *DescriptorSource) Work(cycle *component.WorkContext) component.WorkStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.handle.Valid() || s.out == nil {
		return component.WorkYield
	}

	buf := s.out.Buffer()
	if len(buf) == 0 {
		return component.WorkYield
	}

	ready, err := fdwait.Readable(s.handle.Fd(), cycle.Budget)
	if err != nil {
		s.logger.Error("readiness wait failed", err, "fd", s.fd, "errno", errnoValue(err))
		return component.WorkYield
	}
	if !ready {
		return component.WorkYield
	}

	n, err := s.handle.Read(buf)
	switch {
	case err == io.EOF || (n == 0 && err == nil):
		return component.WorkYield
	case err != nil:
		s.logger.Error("read failed", err, "fd", s.fd, "errno", errnoValue(err))
		return component.WorkYield
	default:
		elements := n / s.dtype.Size()
		if elements == 0 {
			return component.WorkYield
		}
		s.out.Produce(elements)
		s.elementsOut.Add(int64(elements))
		s.bytesOut.Add(int64(n))
		return component.WorkProgress
	}
}

// Meta returns the block metadata
func (s *DescriptorSource) Meta() component.Metadata {
	return component.Metadata{
		Name:        s.name,
		Type:        "source",
		Description: fmt.Sprintf("Descriptor source reading %s elements from fd %d", s.dtype, s.fd),
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this block (none)
func (s *DescriptorSource) InputPorts() []component.Port { return []component.Port{} }

// OutputPorts returns the output ports for this block
func (s *DescriptorSource) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "out",
			Direction:   component.DirectionOutput,
			Required:    true,
			Description: "Typed element stream read from the descriptor",
			Config:      component.DescriptorPort{FD: s.fd},
		},
	}
}

// ConfigSchema returns the configuration schema for this block
func (s *DescriptorSource) ConfigSchema() component.ConfigSchema { return descriptorSchema }

// Health returns the current health status of the block
func (s *DescriptorSource) Health() component.HealthStatus {
	s.mu.Lock()
	active := s.state == component.StateActive
	s.mu.Unlock()

	return component.HealthStatus{
		Healthy:    active,
		LastCheck:  time.Now(),
		ErrorCount: s.logger.ErrorCount(),
		LastError:  s.logger.LastError(),
		Uptime:     time.Since(s.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (s *DescriptorSource) DataFlow() component.FlowMetrics {
	return flowSnapshot(s.startTime, s.elementsOut.Load(), s.bytesOut.Load(), s.logger.ErrorCount())
}

// DescriptorSink writes typed elements to an already-open file
// descriptor. The block takes ownership: Deactivate closes it.
type DescriptorSink struct {
	name   string
	dtype  component.DType
	fd     int
	logger *component.Logger

	mu     sync.Mutex
	handle *handle
	state  component.State

	in *component.InputPort

	startTime  time.Time
	elementsIn atomic.Int64
	bytesIn    atomic.Int64
}

var _ component.Block = (*DescriptorSink)(nil)
var _ component.Activatable = (*DescriptorSink)(nil)
var _ component.Worker = (*DescriptorSink)(nil)
var _ component.InputBinder = (*DescriptorSink)(nil)

// NewDescriptorSink creates a descriptor sink over the given fd.
func NewDescriptorSink(name string, dtypeName string, fd int, logger *component.Logger) (*DescriptorSink, error) {
	dtype, err := component.ParseDType(dtypeName)
	if err != nil {
		return nil, errors.Wrap(err, "DescriptorSink", "NewDescriptorSink", "dtype parsing")
	}
	if name == "" {
		name = "file-descriptor-sink"
	}
	if logger == nil {
		logger = component.NewLogger(name, nil)
	}
	return &DescriptorSink{
		name:      name,
		dtype:     dtype,
		fd:        fd,
		logger:    logger,
		state:     component.StateCreated,
		startTime: time.Now(),
	}, nil
}

// BindInput attaches the input stream port.
func (s *DescriptorSink) BindInput(p *component.InputPort) error {
	if p.DType() != s.dtype {
		return errors.WrapFatal(
			fmt.Errorf("%w: port %s, sink %s", errors.ErrTypeMismatch, p.DType(), s.dtype),
			"DescriptorSink", "BindInput", "dtype check")
	}
	s.in = p
	return nil
}

// Activate adopts the descriptor.
func (s *DescriptorSink) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := adopt(s.fd, s.name)
	if h == nil {
		s.state = component.StateFailed
		return errors.WrapInvalid(
			fmt.Errorf("%w: descriptor %d", errors.ErrInvalidConfig, s.fd),
			"DescriptorSink", "Activate", "descriptor check")
	}
	s.handle = h
	s.state = component.StateActive
	return nil
}

// Deactivate closes the adopted descriptor. Idempotent.
func (s *DescriptorSink) Deactivate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle.Valid() {
		if err := s.handle.Close(); err != nil {
			s.logger.Warn("close failed", "fd", s.fd, "error", err)
		}
	}
	s.handle = nil
	s.state = component.StateInactive
	return nil
}

// Work runs one cycle: bounded writability wait, one write, whole-element
// consumption.
func (s *DescriptorSink) Work(cycle *component.WorkContext) component.WorkStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.handle.Valid() || s.in == nil {
		return component.WorkYield
	}

	pending := s.in.Buffer()
	if len(pending) == 0 {
		return component.WorkYield
	}

	ready, err := fdwait.Writable(s.handle.Fd(), cycle.Budget)
	if err != nil {
		s.logger.Error("readiness wait failed", err, "fd", s.fd, "errno", errnoValue(err))
		return component.WorkYield
	}
	if !ready {
		return component.WorkYield
	}

	n, err := s.handle.Write(pending)
	if err != nil {
		s.logger.Error("write failed", err, "fd", s.fd, "errno", errnoValue(err))
		return component.WorkYield
	}

	elements := n / s.dtype.Size()
	if elements == 0 {
		return component.WorkYield
	}
	s.in.Consume(elements)
	s.elementsIn.Add(int64(elements))
	s.bytesIn.Add(int64(n))
	return component.WorkProgress
}

// Meta returns the block metadata
func (s *DescriptorSink) Meta() component.Metadata {
	return component.Metadata{
		Name:        s.name,
		Type:        "sink",
		Description: fmt.Sprintf("Descriptor sink writing %s elements to fd %d", s.dtype, s.fd),
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this block
func (s *DescriptorSink) InputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "in",
			Direction:   component.DirectionInput,
			Required:    true,
			Description: "Typed element stream written to the descriptor",
			Config:      component.DescriptorPort{FD: s.fd},
		},
	}
}

// OutputPorts returns the output ports for this block (none)
func (s *DescriptorSink) OutputPorts() []component.Port { return []component.Port{} }

// ConfigSchema returns the configuration schema for this block
func (s *DescriptorSink) ConfigSchema() component.ConfigSchema { return descriptorSchema }

// Health returns the current health status of the block
func (s *DescriptorSink) Health() component.HealthStatus {
	s.mu.Lock()
	active := s.state == component.StateActive
	s.mu.Unlock()

	return component.HealthStatus{
		Healthy:    active,
		LastCheck:  time.Now(),
		ErrorCount: s.logger.ErrorCount(),
		LastError:  s.logger.LastError(),
		Uptime:     time.Since(s.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (s *DescriptorSink) DataFlow() component.FlowMetrics {
	return flowSnapshot(s.startTime, s.elementsIn.Load(), s.bytesIn.Load(), s.logger.ErrorCount())
}

// flowSnapshot computes rate metrics from lifetime totals.
func flowSnapshot(start time.Time, elements, bytes int64, errorCount int) component.FlowMetrics {
	var elementsPerSecond, bytesPerSecond, errorRate float64
	if uptime := time.Since(start).Seconds(); uptime > 0 {
		elementsPerSecond = float64(elements) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}
	if elements > 0 {
		errorRate = float64(errorCount) / float64(elements)
	}
	return component.FlowMetrics{
		ElementsPerSecond: elementsPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      time.Now(),
	}
}

// CreateDescriptorSource creates a descriptor source from raw configuration
func CreateDescriptorSource(rawConfig json.RawMessage, deps component.Dependencies) (component.Block, error) {
	var cfg DescriptorConfig
	if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
		return nil, errors.Wrap(err, "fd-source-factory", "create", "secure config parsing")
	}
	return NewDescriptorSource("file-descriptor-source", cfg.DType, cfg.FD,
		component.NewLogger("file-descriptor-source", deps.Logger))
}

// CreateDescriptorSink creates a descriptor sink from raw configuration
func CreateDescriptorSink(rawConfig json.RawMessage, deps component.Dependencies) (component.Block, error) {
	var cfg DescriptorConfig
	if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
		return nil, errors.Wrap(err, "fd-sink-factory", "create", "secure config parsing")
	}
	return NewDescriptorSink("file-descriptor-sink", cfg.DType, cfg.FD,
		component.NewLogger("file-descriptor-sink", deps.Logger))
}

// RegisterDescriptorBlocks registers both descriptor variants
func RegisterDescriptorBlocks(registry *component.Registry) error {
	if err := registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "file_descriptor_source",
		Factory:     CreateDescriptorSource,
		Schema:      descriptorSchema,
		Type:        "source",
		Domain:      "file",
		Description: "Source reading typed elements from an adopted file descriptor",
		Version:     "1.0.0",
	}); err != nil {
		return err
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "file_descriptor_sink",
		Factory:     CreateDescriptorSink,
		Schema:      descriptorSchema,
		Type:        "sink",
		Domain:      "file",
		Description: "Sink writing typed elements to an adopted file descriptor",
		Version:     "1.0.0",
	})
}
