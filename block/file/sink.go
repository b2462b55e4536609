package file

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mfkiwl/blockstream/component"
	"github.com/mfkiwl/blockstream/errors"
	"github.com/mfkiwl/blockstream/metric"
	"github.com/mfkiwl/blockstream/pkg/fdwait"
)

// SinkMetrics holds Prometheus metrics for the binary file sink
type SinkMetrics struct {
	bytesWritten     prometheus.Counter
	elementsConsumed prometheus.Counter
	writeErrors      prometheus.Counter
	dropped          prometheus.Counter
}

// newSinkMetrics creates and registers sink metrics
func newSinkMetrics(registry *metric.MetricsRegistry, name string) *SinkMetrics {
	if registry == nil {
		return nil
	}

	metrics := &SinkMetrics{
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockstream",
			Subsystem: "file_sink",
			Name:      "bytes_written_total",
			Help:      "Total bytes written to the file",
		}),
		elementsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockstream",
			Subsystem: "file_sink",
			Name:      "elements_consumed_total",
			Help:      "Total whole elements consumed from the input stream",
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockstream",
			Subsystem: "file_sink",
			Name:      "write_errors_total",
			Help:      "Write failures reported via the logging channel",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockstream",
			Subsystem: "file_sink",
			Name:      "dropped_elements_total",
			Help:      "Elements discarded while the sink was disabled",
		}),
	}

	_ = registry.RegisterCounter(name, "bytes_written", metrics.bytesWritten)
	_ = registry.RegisterCounter(name, "elements_consumed", metrics.elementsConsumed)
	_ = registry.RegisterCounter(name, "write_errors", metrics.writeErrors)
	_ = registry.RegisterCounter(name, "dropped_elements", metrics.dropped)

	return metrics
}

// SinkConfig holds configuration for the binary file sink
type SinkConfig struct {
	DType    string `json:"dtype"     schema:"type:string,description:Input element type,category:basic,required"`
	FilePath string `json:"file_path" schema:"type:string,description:Path to the output file,category:basic"`
	Enabled  bool   `json:"enabled"   schema:"type:bool,description:Write incoming elements (disabled drains and discards),category:advanced,default:true"`
}

// Validate implements component.Validatable for secure config validation
func (c *SinkConfig) Validate() error {
	if c.DType != "" {
		if _, err := component.ParseDType(c.DType); err != nil {
			return errors.Wrap(err, "SinkConfig", "Validate", "dtype validation")
		}
	}
	return nil
}

// DefaultSinkConfig returns sensible defaults for the file sink
func DefaultSinkConfig() SinkConfig {
	return SinkConfig{
		DType:   "complex_float64",
		Enabled: true,
	}
}

// sinkSchema defines the configuration schema for the file sink
var sinkSchema = component.GenerateConfigSchema(reflect.TypeOf(SinkConfig{}))

// Sink implements the binary file sink block. Each work cycle it
// bounded-waits for the descriptor to accept data, performs one write of
// the pending whole-element bytes, and consumes what was written. A
// disabled sink keeps consuming so upstream never stalls, discarding the
// elements.
type Sink struct {
	name   string
	dtype  component.DType
	logger *component.Logger

	// enabled gates writing without closing the file. Atomic so toggling
	// never blocks behind a mid-wait work cycle.
	enabled atomic.Bool

	mu     sync.Mutex
	path   string
	handle *handle
	state  component.State

	in *component.InputPort

	startTime time.Time

	elementsIn atomic.Int64
	bytesIn    atomic.Int64

	metrics *SinkMetrics
}

var _ component.Block = (*Sink)(nil)
var _ component.Activatable = (*Sink)(nil)
var _ component.Worker = (*Sink)(nil)
var _ component.InputBinder = (*Sink)(nil)

// SinkDeps holds runtime dependencies for the file sink block
type SinkDeps struct {
	Name            string
	Config          SinkConfig
	MetricsRegistry *metric.MetricsRegistry
	Logger          *component.Logger
}

// NewSink creates a binary file sink in the created state. Activate opens
// (or creates, truncating) the configured path.
func NewSink(deps SinkDeps) (*Sink, error) {
	cfg := deps.Config
	if cfg.DType == "" {
		cfg.DType = DefaultSinkConfig().DType
	}
	dtype, err := component.ParseDType(cfg.DType)
	if err != nil {
		return nil, errors.Wrap(err, "Sink", "NewSink", "dtype parsing")
	}

	name := deps.Name
	if name == "" {
		name = "binary-file-sink"
	}

	logger := deps.Logger
	if logger == nil {
		logger = component.NewLogger(name, nil)
	}

	s := &Sink{
		name:      name,
		dtype:     dtype,
		logger:    logger,
		path:      cfg.FilePath,
		state:     component.StateCreated,
		startTime: time.Now(),
		metrics:   newSinkMetrics(deps.MetricsRegistry, name),
	}
	s.enabled.Store(cfg.Enabled)
	return s, nil
}

// BindInput attaches the input stream port. The port's element type must
// match the sink's configured type.
func (s *Sink) BindInput(p *component.InputPort) error {
	if p.DType() != s.dtype {
		return errors.WrapFatal(
			fmt.Errorf("%w: port %s, sink %s", errors.ErrTypeMismatch, p.DType(), s.dtype),
			"Sink", "BindInput", "dtype check")
	}
	s.in = p
	return nil
}

// SetFilePath stores the path and, if the sink is active, replaces the
// handle immediately. Unlike the source, an open failure here is
// returned: losing the output file silently would lose data.
func (s *Sink) SetFilePath(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.path = path
	if !s.handle.Valid() {
		return nil
	}
	return s.reopenLocked()
}

// SetEnabled gates writing. A disabled sink keeps draining its input.
func (s *Sink) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
}

// Enabled reports whether incoming elements are written.
func (s *Sink) Enabled() bool {
	return s.enabled.Load()
}

// FilePath returns the currently configured path.
func (s *Sink) FilePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// State returns the current lifecycle state of the resource handle.
func (s *Sink) State() component.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Activate opens the configured path for writing, creating or truncating
// it. Open failures are returned; a sink without its file cannot do
// useful work.
func (s *Sink) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		s.state = component.StateFailed
		return errors.WrapInvalid(errors.ErrEmptyFilePath, "Sink", "Activate", "file path check")
	}
	return s.reopenLocked()
}

// Deactivate closes the handle if open. Idempotent.
func (s *Sink) Deactivate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle.Valid() {
		if err := s.handle.Close(); err != nil {
			s.logger.Warn("close failed", "path", s.path, "error", err)
		}
	}
	s.handle = nil
	s.state = component.StateInactive
	return nil
}

// reopenLocked replaces the handle with one open on the current path.
// Caller holds s.mu.
func (s *Sink) reopenLocked() error {
	if s.handle.Valid() {
		if err := s.handle.Close(); err != nil {
			s.logger.Warn("close failed", "path", s.path, "error", err)
		}
		s.handle = nil
	}

	h, err := openSink(s.path)
	if err != nil {
		s.state = component.StateFailed
		s.logger.Error("open failed", err, "path", s.path, "errno", errnoValue(err))
		return errors.WrapTransient(
			fmt.Errorf("%w: %s: %v", errors.ErrOpenFailed, s.path, err),
			"Sink", "reopen", "file open")
	}

	s.handle = h
	s.state = component.StateActive
	return nil
}

// Work runs one scheduler cycle: drain-or-discard when disabled,
// otherwise bounded-wait for writability and perform one write. A write
// that lands mid-element logs a warning and consumes only the whole
// elements that made it out; the remainder is retried next cycle.
func (s *Sink) Work(cycle *component.WorkContext) component.WorkStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.in == nil {
		return component.WorkYield
	}

	pending := s.in.Buffer()
	if len(pending) == 0 {
		return component.WorkYield
	}

	if !s.enabled.Load() {
		n := len(pending) / s.dtype.Size()
		s.in.Consume(n)
		if s.metrics != nil {
			s.metrics.dropped.Add(float64(n))
		}
		return component.WorkProgress
	}

	if !s.handle.Valid() {
		return component.WorkYield
	}

	ready, err := fdwait.Writable(s.handle.Fd(), cycle.Budget)
	if err != nil {
		s.logger.Error("readiness wait failed", err, "path", s.path, "errno", errnoValue(err))
		return component.WorkYield
	}
	if !ready {
		return component.WorkYield
	}

	n, err := s.handle.Write(pending)
	if err != nil {
		if s.metrics != nil {
			s.metrics.writeErrors.Inc()
		}
		s.logger.Error("write failed", err, "path", s.path, "errno", errnoValue(err))
		return component.WorkYield
	}

	elements := n / s.dtype.Size()
	if rem := n % s.dtype.Size(); rem != 0 {
		s.logger.Warn("short write split an element",
			"path", s.path, "written", n, "element_size", s.dtype.Size())
	}
	if elements == 0 {
		return component.WorkYield
	}
	s.in.Consume(elements)

	s.elementsIn.Add(int64(elements))
	s.bytesIn.Add(int64(n))
	if s.metrics != nil {
		s.metrics.bytesWritten.Add(float64(n))
		s.metrics.elementsConsumed.Add(float64(elements))
	}
	return component.WorkProgress
}

// Meta returns the block metadata
func (s *Sink) Meta() component.Metadata {
	return component.Metadata{
		Name:        s.name,
		Type:        "sink",
		Description: fmt.Sprintf("Binary file sink writing %s elements to %s", s.dtype, s.FilePath()),
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this block
func (s *Sink) InputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "in",
			Direction:   component.DirectionInput,
			Required:    true,
			Description: "Typed element stream persisted to the file",
			Config:      component.StreamPort{DType: s.dtype.Name()},
		},
	}
}

// OutputPorts returns the output ports for this block (none)
func (s *Sink) OutputPorts() []component.Port {
	return []component.Port{}
}

// ConfigSchema returns the configuration schema for this block
func (s *Sink) ConfigSchema() component.ConfigSchema {
	return sinkSchema
}

// Health returns the current health status of the block
func (s *Sink) Health() component.HealthStatus {
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
func (s *Sink) DataFlow() component.FlowMetrics {
	elements := s.elementsIn.Load()
	bytes := s.bytesIn.Load()
	errorCount := int64(s.logger.ErrorCount())

	var elementsPerSecond, bytesPerSecond, errorRate float64
	if uptime := time.Since(s.startTime).Seconds(); uptime > 0 {
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

// CreateSink creates a file sink block from raw configuration
func CreateSink(rawConfig json.RawMessage, deps component.Dependencies) (component.Block, error) {
	cfg := DefaultSinkConfig()
	if len(rawConfig) > 0 {
		if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.Wrap(err, "file-sink-factory", "create", "secure config parsing")
		}
	}

	return NewSink(SinkDeps{
		Name:            "binary-file-sink",
		Config:          cfg,
		MetricsRegistry: deps.MetricsRegistry,
		Logger:          component.NewLogger("binary-file-sink", deps.Logger),
	})
}

// RegisterSink registers the file sink block with the given registry
func RegisterSink(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "binary_file_sink",
		Factory:     CreateSink,
		Schema:      sinkSchema,
		Type:        "sink",
		Domain:      "file",
		Description: "Binary file sink persisting typed elements to a file",
		Version:     "1.0.0",
	})
}
