package testers

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfkiwl/blockstream/component"
	"github.com/mfkiwl/blockstream/errors"
)

func work(w component.Worker) component.WorkStatus {
	return w.Work(&component.WorkContext{})
}

func TestConstantSource_FillsRegion(t *testing.T) {
	src, err := NewConstantSource("", "int32", 0x5A)
	require.NoError(t, err)

	stream, err := component.NewStream(component.MustDType("int32"), 64)
	require.NoError(t, err)
	require.NoError(t, src.BindOutput(stream.Output("out", 64)))
	in := stream.Input("in")

	require.Equal(t, component.WorkProgress, work(src))
	assert.Equal(t, 16, in.Elements())
	assert.Equal(t, bytes.Repeat([]byte{0x5A}, 64), in.Buffer())

	// Stream full: the source yields under backpressure.
	assert.Equal(t, component.WorkYield, work(src))

	in.Consume(16)
	src.SetValue(0x01)
	require.Equal(t, component.WorkProgress, work(src))
	assert.Equal(t, bytes.Repeat([]byte{0x01}, 64), in.Buffer())
}

func TestConstantSource_UnknownDType(t *testing.T) {
	_, err := NewConstantSource("", "bogus", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownDType)
}

func TestFeeder_PlaysSequenceThenIdles(t *testing.T) {
	data := make([]byte, 50) // 12 int32 elements, 2 trailing bytes dropped
	for i := range data {
		data[i] = byte(i)
	}

	feeder, err := NewFeeder("", "int32", data)
	require.NoError(t, err)

	stream, err := component.NewStream(component.MustDType("int32"), component.DefaultStreamBytes)
	require.NoError(t, err)
	require.NoError(t, feeder.BindOutput(stream.Output("out", 16)))
	in := stream.Input("in")

	var collected []byte
	for !feeder.Exhausted() {
		require.Equal(t, component.WorkProgress, work(feeder))
		collected = append(collected, in.Buffer()...)
		in.Consume(in.Elements())
	}

	assert.Equal(t, data[:48], collected)
	assert.Equal(t, component.WorkYield, work(feeder))
}

func TestCollector_AccumulatesAndVerifies(t *testing.T) {
	collector, err := NewCollector("", "int16")
	require.NoError(t, err)

	stream, err := component.NewStream(component.MustDType("int16"), component.DefaultStreamBytes)
	require.NoError(t, err)
	require.NoError(t, collector.BindInput(stream.Input("in")))
	out := stream.Output("out", 0)

	assert.Equal(t, component.WorkYield, work(collector))

	data := []byte{1, 2, 3, 4, 5, 6}
	copy(out.Buffer(), data)
	out.Produce(3)

	require.Equal(t, component.WorkProgress, work(collector))
	assert.Equal(t, 3, collector.Elements())
	assert.Equal(t, data, collector.Bytes())
	assert.NoError(t, collector.VerifyBytes(data))
	assert.Error(t, collector.VerifyBytes(data[:4]))
}

func TestBindRejectsDTypeMismatch(t *testing.T) {
	src, err := NewConstantSource("", "int32", 0)
	require.NoError(t, err)

	stream, err := component.NewStream(component.MustDType("float64"), component.DefaultStreamBytes)
	require.NoError(t, err)

	err = src.BindOutput(stream.Output("out", 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)
}

func TestRegister(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))

	block, err := registry.Create("constant_source",
		[]byte(`{"dtype":"uint8","value":7}`), component.Dependencies{})
	require.NoError(t, err)
	assert.Equal(t, "source", block.Meta().Type)
}
