package component

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfkiwl/blockstream/errors"
)

func TestNewStream_RoundsCapacityToElements(t *testing.T) {
	s, err := NewStream(MustDType("int32"), 10)
	require.NoError(t, err)

	out := s.Output("out", 100)
	// Capacity rounded down to 8 bytes = 2 elements.
	assert.Equal(t, 8, len(out.Buffer()))
}

func TestNewStream_RejectsTinyCapacity(t *testing.T) {
	_, err := NewStream(MustDType("complex_float64"), 8)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = NewStream(DType{}, 1024)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownDType)
}

func TestStream_ProduceConsumeAccounting(t *testing.T) {
	s, err := NewStream(MustDType("int16"), 64)
	require.NoError(t, err)
	out := s.Output("out", 0)
	in := s.Input("in")

	data := []byte{1, 2, 3, 4, 5, 6}
	copy(out.Buffer(), data)
	out.Produce(3)

	assert.Equal(t, 3, s.Pending())
	assert.Equal(t, uint64(3), s.TotalProduced())
	assert.Equal(t, data, in.Buffer())

	in.Consume(2)
	assert.Equal(t, 1, s.Pending())
	assert.Equal(t, uint64(2), s.TotalConsumed())
	assert.Equal(t, data[4:], in.Buffer())
}

func TestOutputPort_BufferClampsToFreeSpace(t *testing.T) {
	s, err := NewStream(MustDType("int32"), 16)
	require.NoError(t, err)
	out := s.Output("out", 16)
	in := s.Input("in")

	assert.Equal(t, 16, len(out.Buffer()))
	assert.Equal(t, 4, out.Elements())

	out.Produce(3)
	// One element of free space left.
	assert.Equal(t, 4, len(out.Buffer()))

	out.Produce(1)
	assert.Empty(t, out.Buffer())
	assert.Equal(t, 0, out.Elements())

	in.Consume(4)
	assert.Equal(t, 16, len(out.Buffer()))
}

func TestOutputPort_ProduceClampsToRegion(t *testing.T) {
	s, err := NewStream(MustDType("uint8"), 1024)
	require.NoError(t, err)
	out := s.Output("out", 8)

	out.Produce(100)
	assert.Equal(t, 8, s.Pending())
}

func TestInputPort_ConsumeClampsToPending(t *testing.T) {
	s, err := NewStream(MustDType("uint8"), 64)
	require.NoError(t, err)
	out := s.Output("out", 0)
	in := s.Input("in")

	out.Produce(4)
	in.Consume(100)
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, uint64(4), in.TotalConsumed())

	in.Consume(-1)
	assert.Equal(t, uint64(4), in.TotalConsumed())
}

func TestStream_ConsumerSnapshotSurvivesProduce(t *testing.T) {
	s, err := NewStream(MustDType("uint8"), 1024)
	require.NoError(t, err)
	out := s.Output("out", 4)
	in := s.Input("in")

	copy(out.Buffer(), []byte{1, 2, 3, 4})
	out.Produce(4)

	snapshot := in.Buffer()
	want := make([]byte, len(snapshot))
	copy(want, snapshot)

	// Further production must not rewrite the snapshot's prefix.
	copy(out.Buffer(), []byte{9, 9, 9, 9})
	out.Produce(4)

	assert.True(t, bytes.Equal(want, snapshot))
	assert.Equal(t, 8, s.Pending())
}

func TestOutputPort_RegionRoundedToElementSize(t *testing.T) {
	s, err := NewStream(MustDType("complex_float64"), 256)
	require.NoError(t, err)

	// 20 bytes rounds down to one 16-byte element.
	out := s.Output("out", 20)
	assert.Equal(t, 16, len(out.Buffer()))

	// A region smaller than one element is raised to one element.
	out = s.Output("out", 3)
	assert.Equal(t, 16, len(out.Buffer()))
}
