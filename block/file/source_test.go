package file

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfkiwl/blockstream/component"
	"github.com/mfkiwl/blockstream/errors"
)

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// newBoundSource builds a source with a stream wired to its output port
// and returns both ends.
func newBoundSource(t *testing.T, cfg SourceConfig) (*Source, *component.InputPort) {
	t.Helper()

	src, err := NewSource(SourceDeps{Name: "test-source", Config: cfg})
	require.NoError(t, err)

	stream, err := component.NewStream(component.MustDType(cfg.DType), component.DefaultStreamBytes)
	require.NoError(t, err)

	require.NoError(t, src.BindOutput(stream.Output("out", 0)))
	return src, stream.Input("in")
}

func workOnce(w component.Worker) component.WorkStatus {
	return w.Work(&component.WorkContext{Budget: 50 * time.Millisecond})
}

func TestSource_ActivateEmptyPathFails(t *testing.T) {
	src, _ := newBoundSource(t, SourceConfig{DType: "int32"})

	err := src.Activate()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrEmptyFilePath)
	assert.True(t, errors.IsInvalid(err))
	assert.Equal(t, component.StateFailed, src.State())

	// The handle never opened, so cycles yield without logging.
	assert.Equal(t, component.WorkYield, workOnce(src))
	assert.Equal(t, 0, src.Health().ErrorCount)
}

func TestSource_ActivateMissingFileLogsAndYields(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist.bin")
	src, in := newBoundSource(t, SourceConfig{DType: "int32", FilePath: missing})

	// Open failure travels the logging channel, not the return value.
	require.NoError(t, src.Activate())
	assert.Equal(t, component.StateFailed, src.State())
	assert.Equal(t, 1, src.Health().ErrorCount)

	assert.Equal(t, component.WorkYield, workOnce(src))
	assert.Equal(t, 0, in.Elements())
}

func TestSource_ProducesWholeElements(t *testing.T) {
	// 10 bytes of int32: two whole elements, two trailing bytes dropped.
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	src, in := newBoundSource(t, SourceConfig{DType: "int32", FilePath: writeTempFile(t, data)})

	require.NoError(t, src.Activate())
	defer func() { require.NoError(t, src.Deactivate()) }()

	assert.Equal(t, component.WorkProgress, workOnce(src))
	assert.Equal(t, 2, in.Elements())
	assert.Equal(t, data[:8], in.Buffer())

	// At end of file without rewind the block settles into idle yields.
	assert.Equal(t, component.WorkYield, workOnce(src))
	assert.Equal(t, component.WorkYield, workOnce(src))
	assert.Equal(t, 2, in.Elements())
	assert.Equal(t, 0, src.Health().ErrorCount)
}

func TestSource_EmptyFileIdles(t *testing.T) {
	src, in := newBoundSource(t, SourceConfig{DType: "uint8", FilePath: writeTempFile(t, nil)})

	require.NoError(t, src.Activate())
	defer func() { require.NoError(t, src.Deactivate()) }()

	for i := 0; i < 3; i++ {
		assert.Equal(t, component.WorkYield, workOnce(src))
	}
	assert.Equal(t, 0, in.Elements())
	assert.Equal(t, 0, src.Health().ErrorCount)
}

func TestSource_AutoRewindReplaysFile(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i * 7)
	}
	src, in := newBoundSource(t, SourceConfig{
		DType:      "int32",
		FilePath:   writeTempFile(t, data),
		AutoRewind: true,
	})

	require.NoError(t, src.Activate())
	defer func() { require.NoError(t, src.Deactivate()) }()

	const passes = 3
	elementsPerPass := len(data) / 4

	var collected []byte
	for pass := 0; pass < passes; pass++ {
		// One full read, then the EOF cycle that rewinds producing nothing.
		assert.Equal(t, component.WorkProgress, workOnce(src))
		assert.Equal(t, elementsPerPass, in.Elements())
		collected = append(collected, in.Buffer()...)
		in.Consume(elementsPerPass)

		assert.Equal(t, component.WorkYield, workOnce(src))
	}

	assert.Equal(t, bytes.Repeat(data, passes), collected)
	assert.Equal(t, uint64(passes*elementsPerPass), in.TotalConsumed())
}

func TestSource_SetAutoRewindTakesEffectAtEOF(t *testing.T) {
	data := make([]byte, 16)
	src, in := newBoundSource(t, SourceConfig{DType: "int32", FilePath: writeTempFile(t, data)})

	require.NoError(t, src.Activate())
	defer func() { require.NoError(t, src.Deactivate()) }()

	assert.Equal(t, component.WorkProgress, workOnce(src))
	assert.Equal(t, component.WorkYield, workOnce(src)) // EOF, no rewind
	assert.Equal(t, component.WorkYield, workOnce(src)) // still idle

	src.SetAutoRewind(true)
	assert.Equal(t, component.WorkYield, workOnce(src))    // EOF cycle rewinds
	assert.Equal(t, component.WorkProgress, workOnce(src)) // replays from zero
	assert.Equal(t, 8, in.Elements())
}

func TestSource_SetFilePathWhileActiveSwitchesFiles(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.bin")
	pathB := filepath.Join(dir, "b.bin")
	dataA := bytes.Repeat([]byte{0xAA}, 8)
	dataB := bytes.Repeat([]byte{0xBB}, 8)
	require.NoError(t, os.WriteFile(pathA, dataA, 0o600))
	require.NoError(t, os.WriteFile(pathB, dataB, 0o600))

	src, in := newBoundSource(t, SourceConfig{DType: "int32", FilePath: pathA})
	require.NoError(t, src.Activate())
	defer func() { require.NoError(t, src.Deactivate()) }()

	assert.Equal(t, component.WorkProgress, workOnce(src))
	assert.Equal(t, dataA, in.Buffer())
	in.Consume(in.Elements())

	src.SetFilePath(pathB)
	assert.Equal(t, pathB, src.FilePath())
	assert.Equal(t, component.StateActive, src.State())

	assert.Equal(t, component.WorkProgress, workOnce(src))
	assert.Equal(t, dataB, in.Buffer())
}

func TestSource_SetFilePathToBadThenGoodRecovers(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.bin")
	data := bytes.Repeat([]byte{0x11}, 8)
	require.NoError(t, os.WriteFile(good, data, 0o600))

	src, in := newBoundSource(t, SourceConfig{DType: "int32", FilePath: good})
	require.NoError(t, src.Activate())
	defer func() { require.NoError(t, src.Deactivate()) }()

	// Switching to a missing path closes the handle and logs the failure.
	src.SetFilePath(filepath.Join(dir, "missing.bin"))
	assert.Equal(t, component.StateFailed, src.State())
	assert.Equal(t, 1, src.Health().ErrorCount)
	assert.Equal(t, component.WorkYield, workOnce(src))
	assert.Equal(t, 0, in.Elements())

	// Reconfiguring is the retry trigger for the failed open.
	src.SetFilePath(good)
	assert.Equal(t, component.StateActive, src.State())
	assert.Equal(t, component.WorkProgress, workOnce(src))
	assert.Equal(t, data, in.Buffer())
}

func TestSource_ReadFailureLeavesHandleOpen(t *testing.T) {
	// A directory opens for reading but every read fails, giving a real
	// in-cycle read error.
	src, in := newBoundSource(t, SourceConfig{DType: "int32", FilePath: t.TempDir()})

	require.NoError(t, src.Activate())
	defer func() { require.NoError(t, src.Deactivate()) }()
	require.Equal(t, component.StateActive, src.State())

	assert.Equal(t, component.WorkYield, workOnce(src))
	assert.Equal(t, 1, src.Health().ErrorCount)
	assert.Equal(t, 0, in.Elements())

	// The handle stays open and the block keeps cycling.
	assert.Equal(t, component.StateActive, src.State())
	assert.Equal(t, component.WorkYield, workOnce(src))
	assert.Equal(t, 2, src.Health().ErrorCount)
}

func TestSource_DeactivateIdempotent(t *testing.T) {
	src, _ := newBoundSource(t, SourceConfig{DType: "int32", FilePath: writeTempFile(t, make([]byte, 8))})

	// Never activated.
	require.NoError(t, src.Deactivate())

	require.NoError(t, src.Activate())
	require.NoError(t, src.Deactivate())
	require.NoError(t, src.Deactivate())
	assert.Equal(t, component.StateInactive, src.State())

	// Post-deactivation cycles yield.
	assert.Equal(t, component.WorkYield, workOnce(src))
}

func TestSource_BackpressureYieldsWhenStreamFull(t *testing.T) {
	data := bytes.Repeat([]byte{0x01}, 64)
	src, err := NewSource(SourceDeps{
		Name:   "test-source",
		Config: SourceConfig{DType: "int32", FilePath: writeTempFile(t, data), AutoRewind: true},
	})
	require.NoError(t, err)

	// Stream holding exactly one region's worth fills on the first cycle.
	stream, err := component.NewStream(component.MustDType("int32"), 64)
	require.NoError(t, err)
	require.NoError(t, src.BindOutput(stream.Output("out", 64)))
	in := stream.Input("in")

	require.NoError(t, src.Activate())
	defer func() { require.NoError(t, src.Deactivate()) }()

	assert.Equal(t, component.WorkProgress, workOnce(src))
	assert.Equal(t, 16, in.Elements())

	// Downstream consumed nothing: free space is zero, so the cycle
	// yields before touching the file.
	assert.Equal(t, component.WorkYield, workOnce(src))
	assert.Equal(t, 16, in.Elements())

	in.Consume(16)
	assert.Equal(t, component.WorkYield, workOnce(src)) // EOF cycle rewinds
	assert.Equal(t, component.WorkProgress, workOnce(src))
}

func TestSource_BindOutputDTypeMismatch(t *testing.T) {
	src, err := NewSource(SourceDeps{Config: SourceConfig{DType: "int32", FilePath: "x"}})
	require.NoError(t, err)

	stream, err := component.NewStream(component.MustDType("float64"), component.DefaultStreamBytes)
	require.NoError(t, err)

	err = src.BindOutput(stream.Output("out", 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)
}

func TestSource_UnknownDTypeRejected(t *testing.T) {
	_, err := NewSource(SourceDeps{Config: SourceConfig{DType: "int7"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownDType)
}

func TestSource_DiscoveryMetadata(t *testing.T) {
	src, _ := newBoundSource(t, SourceConfig{DType: "complex_float64", FilePath: "x"})

	meta := src.Meta()
	assert.Equal(t, "source", meta.Type)

	assert.Empty(t, src.InputPorts())
	ports := src.OutputPorts()
	require.Len(t, ports, 1)
	assert.Equal(t, "out", ports[0].Name)
	assert.Equal(t, component.DirectionOutput, ports[0].Direction)
	assert.Equal(t, "stream", ports[0].Config.Type())

	schema := src.ConfigSchema()
	assert.Contains(t, schema.Properties, "dtype")
	assert.Contains(t, schema.Properties, "file_path")
	assert.Contains(t, schema.Properties, "auto_rewind")
	assert.Contains(t, schema.Required, "dtype")
}

func TestCreateSource_FromRawConfig(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, RegisterSource(registry))

	block, err := registry.Create("binary_file_source",
		[]byte(`{"dtype":"int16","file_path":"/tmp/x.bin","auto_rewind":true}`),
		component.Dependencies{})
	require.NoError(t, err)

	src, ok := block.(*Source)
	require.True(t, ok)
	assert.Equal(t, "/tmp/x.bin", src.FilePath())
	assert.True(t, src.AutoRewind())
}

func TestCreateSource_DefaultsToComplexFloat64(t *testing.T) {
	block, err := CreateSource(nil, component.Dependencies{})
	require.NoError(t, err)

	src, ok := block.(*Source)
	require.True(t, ok)
	assert.Equal(t, "complex_float64", src.dtype.Name())
	assert.False(t, src.AutoRewind())
}
