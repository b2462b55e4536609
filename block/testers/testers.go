// Package testers provides lightweight blocks for exercising flows in
// tests and demos: a constant source that emits a fixed byte pattern, a
// feeder that plays out a finite byte sequence, and a collector that
// accumulates everything it consumes.
package testers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mfkiwl/blockstream/component"
	"github.com/mfkiwl/blockstream/errors"
)

// ConstantConfig holds configuration for the constant source
type ConstantConfig struct {
	DType string `json:"dtype" schema:"type:string,description:Output element type,category:basic,required"`
	Value byte   `json:"value" schema:"type:int,description:Byte value every emitted element is filled with,category:basic"`
}

var constantSchema = component.GenerateConfigSchema(reflect.TypeOf(ConstantConfig{}))

// ConstantSource fills its output region with a fixed byte value every
// cycle. The fill is cached and only rebuilt when the value changes.
type ConstantSource struct {
	name  string
	dtype component.DType

	mu    sync.Mutex
	value byte
	fill  []byte

	out *component.OutputPort

	startTime   time.Time
	elementsOut atomic.Int64
}

var _ component.Block = (*ConstantSource)(nil)
var _ component.Worker = (*ConstantSource)(nil)
var _ component.OutputBinder = (*ConstantSource)(nil)

// NewConstantSource creates a constant source emitting elements of the
// given type filled with value.
func NewConstantSource(name, dtypeName string, value byte) (*ConstantSource, error) {
	dtype, err := component.ParseDType(dtypeName)
	if err != nil {
		return nil, errors.Wrap(err, "ConstantSource", "NewConstantSource", "dtype parsing")
	}
	if name == "" {
		name = "constant-source"
	}
	return &ConstantSource{
		name:      name,
		dtype:     dtype,
		value:     value,
		startTime: time.Now(),
	}, nil
}

// BindOutput attaches the output stream port.
func (c *ConstantSource) BindOutput(p *component.OutputPort) error {
	if p.DType() != c.dtype {
		return errors.WrapFatal(
			fmt.Errorf("%w: port %s, source %s", errors.ErrTypeMismatch, p.DType(), c.dtype),
			"ConstantSource", "BindOutput", "dtype check")
	}
	c.out = p
	return nil
}

// SetValue changes the emitted byte value. Invalidate the cached fill so
// the next cycle rebuilds it.
func (c *ConstantSource) SetValue(value byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if value != c.value {
		c.value = value
		c.fill = nil
	}
}

// Work fills the available output region and commits it.
func (c *ConstantSource) Work(cycle *component.WorkContext) component.WorkStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.out == nil {
		return component.WorkYield
	}

	buf := c.out.Buffer()
	if len(buf) == 0 {
		return component.WorkYield
	}

	if len(c.fill) < len(buf) {
		c.fill = bytes.Repeat([]byte{c.value}, len(buf))
	}
	copy(buf, c.fill[:len(buf)])

	elements := len(buf) / c.dtype.Size()
	c.out.Produce(elements)
	c.elementsOut.Add(int64(elements))
	return component.WorkProgress
}

// Meta returns the block metadata
func (c *ConstantSource) Meta() component.Metadata {
	return component.Metadata{
		Name:        c.name,
		Type:        "source",
		Description: fmt.Sprintf("Constant source emitting %s elements", c.dtype),
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this block (none)
func (c *ConstantSource) InputPorts() []component.Port { return []component.Port{} }

// OutputPorts returns the output ports for this block
func (c *ConstantSource) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "out",
			Direction:   component.DirectionOutput,
			Required:    true,
			Description: "Constant-filled element stream",
			Config:      component.StreamPort{DType: c.dtype.Name()},
		},
	}
}

// ConfigSchema returns the configuration schema for this block
func (c *ConstantSource) ConfigSchema() component.ConfigSchema { return constantSchema }

// Health returns the current health status of the block
func (c *ConstantSource) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:   true,
		LastCheck: time.Now(),
		Uptime:    time.Since(c.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (c *ConstantSource) DataFlow() component.FlowMetrics {
	var rate float64
	if uptime := time.Since(c.startTime).Seconds(); uptime > 0 {
		rate = float64(c.elementsOut.Load()) / uptime
	}
	return component.FlowMetrics{
		ElementsPerSecond: rate,
		BytesPerSecond:    rate * float64(c.dtype.Size()),
		LastActivity:      time.Now(),
	}
}

// CreateConstantSource creates a constant source from raw configuration
func CreateConstantSource(rawConfig json.RawMessage, deps component.Dependencies) (component.Block, error) {
	var cfg ConstantConfig
	if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
		return nil, errors.Wrap(err, "constant-source-factory", "create", "secure config parsing")
	}
	return NewConstantSource("constant-source", cfg.DType, cfg.Value)
}

// Feeder plays out a fixed byte sequence, then idles. Useful for driving
// a flow with known data.
type Feeder struct {
	name  string
	dtype component.DType

	mu      sync.Mutex
	pending []byte

	out *component.OutputPort

	startTime time.Time
}

var _ component.Block = (*Feeder)(nil)
var _ component.Worker = (*Feeder)(nil)
var _ component.OutputBinder = (*Feeder)(nil)

// NewFeeder creates a feeder that emits data once. Trailing bytes that do
// not form a whole element are dropped up front.
func NewFeeder(name, dtypeName string, data []byte) (*Feeder, error) {
	dtype, err := component.ParseDType(dtypeName)
	if err != nil {
		return nil, errors.Wrap(err, "Feeder", "NewFeeder", "dtype parsing")
	}
	if name == "" {
		name = "feeder"
	}
	n := len(data) - len(data)%dtype.Size()
	pending := make([]byte, n)
	copy(pending, data[:n])
	return &Feeder{
		name:      name,
		dtype:     dtype,
		pending:   pending,
		startTime: time.Now(),
	}, nil
}

// BindOutput attaches the output stream port.
func (f *Feeder) BindOutput(p *component.OutputPort) error {
	if p.DType() != f.dtype {
		return errors.WrapFatal(
			fmt.Errorf("%w: port %s, feeder %s", errors.ErrTypeMismatch, p.DType(), f.dtype),
			"Feeder", "BindOutput", "dtype check")
	}
	f.out = p
	return nil
}

// Exhausted reports whether the feeder has emitted its whole sequence.
func (f *Feeder) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending) == 0
}

// Work emits the next slab of the sequence, yielding once exhausted.
func (f *Feeder) Work(cycle *component.WorkContext) component.WorkStatus {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.out == nil || len(f.pending) == 0 {
		return component.WorkYield
	}

	buf := f.out.Buffer()
	if len(buf) == 0 {
		return component.WorkYield
	}

	n := copy(buf, f.pending)
	n -= n % f.dtype.Size()
	if n == 0 {
		return component.WorkYield
	}
	f.out.Produce(n / f.dtype.Size())
	f.pending = f.pending[n:]
	return component.WorkProgress
}

// Meta returns the block metadata
func (f *Feeder) Meta() component.Metadata {
	return component.Metadata{
		Name:        f.name,
		Type:        "source",
		Description: fmt.Sprintf("Feeder emitting a fixed %s sequence", f.dtype),
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this block (none)
func (f *Feeder) InputPorts() []component.Port { return []component.Port{} }

// OutputPorts returns the output ports for this block
func (f *Feeder) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "out",
			Direction:   component.DirectionOutput,
			Required:    true,
			Description: "Fixed element sequence",
			Config:      component.StreamPort{DType: f.dtype.Name()},
		},
	}
}

// ConfigSchema returns the configuration schema for this block
func (f *Feeder) ConfigSchema() component.ConfigSchema { return component.ConfigSchema{} }

// Health returns the current health status of the block
func (f *Feeder) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:   true,
		LastCheck: time.Now(),
		Uptime:    time.Since(f.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (f *Feeder) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{LastActivity: time.Now()}
}

// Collector accumulates every byte it consumes for later verification.
type Collector struct {
	name  string
	dtype component.DType

	mu        sync.Mutex
	collected []byte

	in *component.InputPort

	startTime time.Time
}

var _ component.Block = (*Collector)(nil)
var _ component.Worker = (*Collector)(nil)
var _ component.InputBinder = (*Collector)(nil)

// NewCollector creates a collector for the given element type.
func NewCollector(name, dtypeName string) (*Collector, error) {
	dtype, err := component.ParseDType(dtypeName)
	if err != nil {
		return nil, errors.Wrap(err, "Collector", "NewCollector", "dtype parsing")
	}
	if name == "" {
		name = "collector"
	}
	return &Collector{
		name:      name,
		dtype:     dtype,
		startTime: time.Now(),
	}, nil
}

// BindInput attaches the input stream port.
func (c *Collector) BindInput(p *component.InputPort) error {
	if p.DType() != c.dtype {
		return errors.WrapFatal(
			fmt.Errorf("%w: port %s, collector %s", errors.ErrTypeMismatch, p.DType(), c.dtype),
			"Collector", "BindInput", "dtype check")
	}
	c.in = p
	return nil
}

// Work drains the pending input into the accumulation buffer.
func (c *Collector) Work(cycle *component.WorkContext) component.WorkStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.in == nil {
		return component.WorkYield
	}

	pending := c.in.Buffer()
	if len(pending) == 0 {
		return component.WorkYield
	}

	c.collected = append(c.collected, pending...)
	c.in.Consume(len(pending) / c.dtype.Size())
	return component.WorkProgress
}

// Bytes returns a copy of everything collected so far.
func (c *Collector) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.collected))
	copy(out, c.collected)
	return out
}

// Elements returns the number of elements collected so far.
func (c *Collector) Elements() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.collected) / c.dtype.Size()
}

// VerifyBytes checks the collected stream matches expected exactly.
func (c *Collector) VerifyBytes(expected []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !bytes.Equal(c.collected, expected) {
		return fmt.Errorf("collected %d bytes do not match expected %d bytes",
			len(c.collected), len(expected))
	}
	return nil
}

// Meta returns the block metadata
func (c *Collector) Meta() component.Metadata {
	return component.Metadata{
		Name:        c.name,
		Type:        "sink",
		Description: fmt.Sprintf("Collector accumulating %s elements", c.dtype),
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this block
func (c *Collector) InputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "in",
			Direction:   component.DirectionInput,
			Required:    true,
			Description: "Accumulated element stream",
			Config:      component.StreamPort{DType: c.dtype.Name()},
		},
	}
}

// OutputPorts returns the output ports for this block (none)
func (c *Collector) OutputPorts() []component.Port { return []component.Port{} }

// ConfigSchema returns the configuration schema for this block
func (c *Collector) ConfigSchema() component.ConfigSchema { return component.ConfigSchema{} }

// Health returns the current health status of the block
func (c *Collector) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:   true,
		LastCheck: time.Now(),
		Uptime:    time.Since(c.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (c *Collector) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{LastActivity: time.Now()}
}

// Register adds the tester blocks to the registry.
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "constant_source",
		Factory:     CreateConstantSource,
		Schema:      constantSchema,
		Type:        "source",
		Domain:      "testers",
		Description: "Source emitting elements filled with a constant byte",
		Version:     "1.0.0",
	})
}
