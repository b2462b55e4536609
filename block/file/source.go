package file

import (
	"encoding/json"
	"fmt"
	"io"
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

// SourceMetrics holds Prometheus metrics for the streaming file source
type SourceMetrics struct {
	bytesRead        prometheus.Counter
	elementsProduced prometheus.Counter
	readErrors       prometheus.Counter
	openErrors       prometheus.Counter
	rewinds          prometheus.Counter
}

// newSourceMetrics creates and registers source metrics
func newSourceMetrics(registry *metric.MetricsRegistry, name string) *SourceMetrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &SourceMetrics{
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockstream",
			Subsystem: "file_source",
			Name:      "bytes_read_total",
			Help:      "Total bytes read from the file",
		}),
		elementsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockstream",
			Subsystem: "file_source",
			Name:      "elements_produced_total",
			Help:      "Total whole elements committed to the output stream",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockstream",
			Subsystem: "file_source",
			Name:      "read_errors_total",
			Help:      "Read failures reported via the logging channel",
		}),
		openErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockstream",
			Subsystem: "file_source",
			Name:      "open_errors_total",
			Help:      "Open failures reported via the logging channel",
		}),
		rewinds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockstream",
			Subsystem: "file_source",
			Name:      "rewinds_total",
			Help:      "Rewinds to offset zero triggered at end of file",
		}),
	}

	_ = registry.RegisterCounter(name, "bytes_read", metrics.bytesRead)
	_ = registry.RegisterCounter(name, "elements_produced", metrics.elementsProduced)
	_ = registry.RegisterCounter(name, "read_errors", metrics.readErrors)
	_ = registry.RegisterCounter(name, "open_errors", metrics.openErrors)
	_ = registry.RegisterCounter(name, "rewinds", metrics.rewinds)

	return metrics
}

// SourceConfig holds configuration for the streaming file source
type SourceConfig struct {
	DType      string `json:"dtype"       schema:"type:string,description:Output element type,category:basic,required"`
	FilePath   string `json:"file_path"   schema:"type:string,description:Path to the input file,category:basic"`
	AutoRewind bool   `json:"auto_rewind" schema:"type:bool,description:Restart from offset zero at end of file,category:basic"`
}

// Validate implements component.Validatable for secure config validation
func (c *SourceConfig) Validate() error {
	if c.DType != "" {
		if _, err := component.ParseDType(c.DType); err != nil {
			return errors.Wrap(err, "SourceConfig", "Validate", "dtype validation")
		}
	}
	return nil
}

// DefaultSourceConfig returns sensible defaults for the file source
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		DType:      "complex_float64",
		AutoRewind: false,
	}
}

// sourceSchema defines the configuration schema for the file source
var sourceSchema = component.GenerateConfigSchema(reflect.TypeOf(SourceConfig{}))

// Source implements the streaming file source block. It owns a file handle
// and two configuration values (file path, auto-rewind); each work cycle
// bounded-waits for readability, performs one read into the output
// region, and commits whole elements downstream.
//
// The element type is fixed at construction. The file path is mutable at
// any time, including while the handle is open: replacement always
// releases the old handle before acquiring the new one.
type Source struct {
	name   string
	dtype  component.DType
	logger *component.Logger

	// rewind is read inside the work cycle and written by SetAutoRewind;
	// atomic so a pure configuration change never blocks behind a
	// mid-wait work cycle.
	rewind atomic.Bool

	// mu serializes handle replacement against work cycles. Work holds it
	// for the whole cycle, so Deactivate during a mid-wait cycle blocks
	// until the bounded wait resolves.
	mu     sync.Mutex
	path   string
	handle *handle
	state  component.State

	// activated tracks intent, not handle validity: it stays set after a
	// failed open so a later SetFilePath retries the open.
	activated bool

	out *component.OutputPort

	startTime time.Time

	// Flow accounting (atomic for DataFlow snapshots)
	elementsOut atomic.Int64
	bytesOut    atomic.Int64

	metrics *SourceMetrics
}

// Ensure Source implements all required interfaces
var _ component.Block = (*Source)(nil)
var _ component.Activatable = (*Source)(nil)
var _ component.Worker = (*Source)(nil)
var _ component.OutputBinder = (*Source)(nil)

// SourceDeps holds runtime dependencies for the file source block
type SourceDeps struct {
	Name            string
	Config          SourceConfig
	MetricsRegistry *metric.MetricsRegistry
	Logger          *component.Logger
}

// NewSource creates a streaming file source. The returned block is in the
// created state with a closed handle; Activate opens the configured path.
func NewSource(deps SourceDeps) (*Source, error) {
	cfg := deps.Config
	if cfg.DType == "" {
		cfg.DType = DefaultSourceConfig().DType
	}
	dtype, err := component.ParseDType(cfg.DType)
	if err != nil {
		return nil, errors.Wrap(err, "Source", "NewSource", "dtype parsing")
	}

	name := deps.Name
	if name == "" {
		name = "binary-file-source"
	}

	logger := deps.Logger
	if logger == nil {
		logger = component.NewLogger(name, nil)
	}

	s := &Source{
		name:      name,
		dtype:     dtype,
		logger:    logger,
		path:      cfg.FilePath,
		state:     component.StateCreated,
		startTime: time.Now(),
		metrics:   newSourceMetrics(deps.MetricsRegistry, name),
	}
	s.rewind.Store(cfg.AutoRewind)
	return s, nil
}

// BindOutput attaches the output stream port. The port's element type
// must match the source's configured type.
func (s *Source) BindOutput(p *component.OutputPort) error {
	if p.DType() != s.dtype {
		return errors.WrapFatal(
			fmt.Errorf("%w: port %s, source %s", errors.ErrTypeMismatch, p.DType(), s.dtype),
			"Source", "BindOutput", "dtype check")
	}
	s.out = p
	return nil
}

// SetFilePath stores the path. If the resource is currently open the
// handle is replaced immediately: after this call returns the handle
// either refers to the new path or is closed with the open failure
// logged - never left on the old path.
func (s *Source) SetFilePath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.path = path
	if s.activated {
		s.reopen()
	}
}

// SetAutoRewind updates the end-of-file policy. Takes effect on the next
// end-of-file encountered during a work cycle; no resource side effects.
func (s *Source) SetAutoRewind(enabled bool) {
	s.rewind.Store(enabled)
}

// FilePath returns the currently configured path.
func (s *Source) FilePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// AutoRewind returns the current end-of-file policy.
func (s *Source) AutoRewind() bool {
	return s.rewind.Load()
}

// State returns the current lifecycle state of the resource handle.
func (s *Source) State() component.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Activate opens the configured path for reading. An empty path is a
// configuration error and is returned. An OS-level open failure is
// reported through the logging channel, not returned: the handle stays
// closed and every subsequent work cycle re-checks validity, so the
// block keeps running and an external reconfiguration retries the open.
func (s *Source) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		s.state = component.StateFailed
		return errors.WrapInvalid(errors.ErrEmptyFilePath, "Source", "Activate", "file path check")
	}

	s.activated = true
	s.reopen()
	return nil
}

// Deactivate closes the handle if open. Idempotent: safe on an already
// closed or never-activated block.
func (s *Source) Deactivate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeHandleLocked()
	s.activated = false
	s.state = component.StateInactive
	return nil
}

// reopen is the sole authority over handle replacement, called by both
// Activate and SetFilePath. Caller holds s.mu. The old handle is fully
// released before the new one is acquired.
func (s *Source) reopen() {
	s.closeHandleLocked()

	h, err := openSource(s.path)
	if err != nil {
		s.state = component.StateFailed
		if s.metrics != nil {
			s.metrics.openErrors.Inc()
		}
		s.logger.Error("open failed", err, "path", s.path, "errno", errnoValue(err))
		return
	}

	s.handle = h
	s.state = component.StateActive
}

// closeHandleLocked releases the handle if open. Caller holds s.mu.
func (s *Source) closeHandleLocked() {
	if !s.handle.Valid() {
		return
	}
	if err := s.handle.Close(); err != nil {
		s.logger.Warn("close failed", "path", s.path, "error", err)
	}
	s.handle = nil
}

// Work runs one scheduler cycle: bounded-wait for readability, one read,
// whole-element production. Yields without penalty when the handle is
// invalid, the downstream buffer is full, or the wait budget expires
// (timeout is backpressure, never an error). On end of file the block
// either rewinds to offset zero (producing nothing this cycle) or stays
// positioned at EOF as an idle steady state. Read failures are logged
// and leave the handle open.
func (s *Source) Work(cycle *component.WorkContext) component.WorkStatus {
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
		s.logger.Error("readiness wait failed", err, "path", s.path, "errno", errnoValue(err))
		return component.WorkYield
	}
	if !ready {
		return component.WorkYield
	}

	n, err := s.handle.Read(buf)
	switch {
	case err == io.EOF || (n == 0 && err == nil):
		if s.rewind.Load() {
			if serr := s.handle.Rewind(); serr != nil {
				s.logger.Error("rewind failed", serr, "path", s.path, "errno", errnoValue(serr))
			} else if s.metrics != nil {
				s.metrics.rewinds.Inc()
			}
		}
		return component.WorkYield

	case err != nil:
		// Handle stays open: only explicit reconfiguration or
		// deactivation closes it.
		if s.metrics != nil {
			s.metrics.readErrors.Inc()
		}
		s.logger.Error("read failed", err, "path", s.path, "errno", errnoValue(err))
		return component.WorkYield

	default:
		// Integer division: a trailing partial element is truncated and
		// its bytes dropped.
		elements := n / s.dtype.Size()
		if elements == 0 {
			return component.WorkYield
		}
		s.out.Produce(elements)

		s.elementsOut.Add(int64(elements))
		s.bytesOut.Add(int64(n))
		if s.metrics != nil {
			s.metrics.bytesRead.Add(float64(n))
			s.metrics.elementsProduced.Add(float64(elements))
		}
		return component.WorkProgress
	}
}

// Meta returns the block metadata
func (s *Source) Meta() component.Metadata {
	return component.Metadata{
		Name:        s.name,
		Type:        "source",
		Description: fmt.Sprintf("Streaming file source reading %s elements from %s", s.dtype, s.FilePath()),
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this block (none)
func (s *Source) InputPorts() []component.Port {
	return []component.Port{}
}

// OutputPorts returns the output ports for this block
func (s *Source) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "out",
			Direction:   component.DirectionOutput,
			Required:    true,
			Description: "Typed element stream read from the file",
			Config:      component.StreamPort{DType: s.dtype.Name()},
		},
	}
}

// ConfigSchema returns the configuration schema for this block
func (s *Source) ConfigSchema() component.ConfigSchema {
	return sourceSchema
}

// Health returns the current health status of the block
func (s *Source) Health() component.HealthStatus {
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
func (s *Source) DataFlow() component.FlowMetrics {
	elements := s.elementsOut.Load()
	bytes := s.bytesOut.Load()
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

// CreateSource creates a file source block from raw configuration
func CreateSource(rawConfig json.RawMessage, deps component.Dependencies) (component.Block, error) {
	cfg := DefaultSourceConfig()
	if len(rawConfig) > 0 {
		if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.Wrap(err, "file-source-factory", "create", "secure config parsing")
		}
	}

	return NewSource(SourceDeps{
		Name:            "binary-file-source",
		Config:          cfg,
		MetricsRegistry: deps.MetricsRegistry,
		Logger:          component.NewLogger("binary-file-source", deps.Logger),
	})
}

// RegisterSource registers the file source block with the given registry
func RegisterSource(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "binary_file_source",
		Factory:     CreateSource,
		Schema:      sourceSchema,
		Type:        "source",
		Domain:      "file",
		Description: "Streaming file source producing typed elements from a file",
		Version:     "1.0.0",
	})
}
