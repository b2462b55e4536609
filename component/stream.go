package component

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mfkiwl/blockstream/errors"
)

// DefaultRegionBytes is the size of the writable region an OutputPort hands
// to its block each work cycle, before clamping to stream free space.
const DefaultRegionBytes = 8192

// DefaultStreamBytes is the default stream buffer capacity.
const DefaultStreamBytes = 65536

// Stream conveys bytes from exactly one OutputPort to exactly one InputPort.
// The stream owns the memory; ports expose produce/consume views over it.
// Only whole elements of the stream's DType ever cross it.
type Stream struct {
	dtype    DType
	capacity int // bytes, multiple of element size

	mu   sync.Mutex
	data []byte // produced but not yet consumed

	produced atomic.Uint64 // total elements ever produced
	consumed atomic.Uint64 // total elements ever consumed
}

// NewStream creates a stream for the given element type. capacityBytes is
// rounded down to a whole number of elements and must hold at least one.
func NewStream(dtype DType, capacityBytes int) (*Stream, error) {
	if dtype.IsZero() {
		return nil, errors.WrapInvalid(errors.ErrUnknownDType,
			"Stream", "NewStream", "dtype check")
	}
	capacityBytes -= capacityBytes % dtype.Size()
	if capacityBytes < dtype.Size() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("capacity %d cannot hold one %s element", capacityBytes, dtype),
			"Stream", "NewStream", "capacity check")
	}
	return &Stream{
		dtype:    dtype,
		capacity: capacityBytes,
	}, nil
}

// DType returns the stream's element type.
func (s *Stream) DType() DType { return s.dtype }

// Pending returns the number of buffered, unconsumed elements.
func (s *Stream) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data) / s.dtype.Size()
}

// TotalProduced returns the total number of elements ever produced.
func (s *Stream) TotalProduced() uint64 { return s.produced.Load() }

// TotalConsumed returns the total number of elements ever consumed.
func (s *Stream) TotalConsumed() uint64 { return s.consumed.Load() }

// freeBytes returns the remaining buffer capacity in bytes.
func (s *Stream) freeBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity - len(s.data)
}

// push appends produced bytes and advances the produced element count.
func (s *Stream) push(b []byte) {
	s.mu.Lock()
	s.data = append(s.data, b...)
	s.mu.Unlock()
	s.produced.Add(uint64(len(b) / s.dtype.Size()))
}

// pending returns the buffered whole-element byte prefix. The returned
// slice remains valid after concurrent push calls; push never rewrites the
// existing prefix.
func (s *Stream) pending() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.data) - len(s.data)%s.dtype.Size()
	return s.data[:n]
}

// drop discards the first n elements and advances the consumed count.
func (s *Stream) drop(n int) {
	if n <= 0 {
		return
	}
	nb := n * s.dtype.Size()
	s.mu.Lock()
	if nb > len(s.data) {
		nb = len(s.data) - len(s.data)%s.dtype.Size()
		n = nb / s.dtype.Size()
	}
	s.data = s.data[nb:]
	s.mu.Unlock()
	s.consumed.Add(uint64(n))
}

// Output creates the producing port for this stream. regionBytes bounds the
// writable region handed to the block each cycle; zero selects
// DefaultRegionBytes.
func (s *Stream) Output(name string, regionBytes int) *OutputPort {
	if regionBytes <= 0 {
		regionBytes = DefaultRegionBytes
	}
	regionBytes -= regionBytes % s.dtype.Size()
	if regionBytes < s.dtype.Size() {
		regionBytes = s.dtype.Size()
	}
	return &OutputPort{
		name:   name,
		stream: s,
		region: make([]byte, regionBytes),
	}
}

// Input creates the consuming port for this stream.
func (s *Stream) Input(name string) *InputPort {
	return &InputPort{name: name, stream: s}
}

// OutputPort is the per-cycle production capability handed to a block. The
// block writes into Buffer and commits a whole-element prefix via Produce.
type OutputPort struct {
	name   string
	stream *Stream
	region []byte
}

// Name returns the port name.
func (p *OutputPort) Name() string { return p.name }

// DType returns the port's element type.
func (p *OutputPort) DType() DType { return p.stream.dtype }

// Buffer returns the writable region for this cycle, clamped to the
// stream's free space and truncated to a whole number of elements. An
// empty buffer means the downstream side is applying backpressure.
func (p *OutputPort) Buffer() []byte {
	n := p.stream.freeBytes()
	if n > len(p.region) {
		n = len(p.region)
	}
	n -= n % p.stream.dtype.Size()
	return p.region[:n]
}

// Elements returns the capacity of the current cycle's buffer in elements.
func (p *OutputPort) Elements() int {
	return len(p.Buffer()) / p.stream.dtype.Size()
}

// Produce commits the first n elements of the cycle's buffer as emitted
// data. Counts beyond the region capacity are clamped.
func (p *OutputPort) Produce(n int) {
	if n <= 0 {
		return
	}
	nb := n * p.stream.dtype.Size()
	if nb > len(p.region) {
		nb = len(p.region)
	}
	p.stream.push(p.region[:nb])
}

// TotalProduced returns the total elements committed through this port.
func (p *OutputPort) TotalProduced() uint64 { return p.stream.TotalProduced() }

// InputPort is the per-cycle consumption capability handed to a block.
type InputPort struct {
	name   string
	stream *Stream
}

// Name returns the port name.
func (p *InputPort) Name() string { return p.name }

// DType returns the port's element type.
func (p *InputPort) DType() DType { return p.stream.dtype }

// Buffer returns the pending whole-element bytes awaiting consumption.
func (p *InputPort) Buffer() []byte { return p.stream.pending() }

// Elements returns the number of pending elements.
func (p *InputPort) Elements() int {
	return len(p.stream.pending()) / p.stream.dtype.Size()
}

// Consume commits the first n pending elements as processed.
func (p *InputPort) Consume(n int) { p.stream.drop(n) }

// TotalConsumed returns the total elements consumed through this port.
func (p *InputPort) TotalConsumed() uint64 { return p.stream.TotalConsumed() }

// OutputBinder is implemented by blocks that produce onto a single stream.
// The engine binds the port when wiring a topology, before activation.
type OutputBinder interface {
	BindOutput(*OutputPort) error
}

// InputBinder is implemented by blocks that consume from a single stream.
type InputBinder interface {
	BindInput(*InputPort) error
}
