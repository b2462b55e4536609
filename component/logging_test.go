package component

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_AttachesBlockName(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	l := NewLogger("my-block", base)
	l.Info("hello", "k", "v")

	out := buf.String()
	assert.Contains(t, out, `"block":"my-block"`)
	assert.Contains(t, out, `"k":"v"`)
}

func TestLogger_TracksErrors(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("b", slog.New(slog.NewJSONHandler(&buf, nil)))

	assert.Equal(t, 0, l.ErrorCount())
	assert.Equal(t, "", l.LastError())

	l.Error("open failed", fmt.Errorf("no such file"), "path", "/tmp/x")
	l.Error("read failed", fmt.Errorf("input/output error"))

	assert.Equal(t, 2, l.ErrorCount())
	assert.Equal(t, "input/output error", l.LastError())
	assert.Contains(t, buf.String(), "no such file")
}

func TestLogger_ErrorWithoutErrValue(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("b", slog.New(slog.NewJSONHandler(&buf, nil)))

	l.Error("something broke", nil)
	assert.Equal(t, 1, l.ErrorCount())
	assert.Equal(t, "something broke", l.LastError())
}

func TestLogger_NilFallsBackToDefault(t *testing.T) {
	l := NewLogger("b", nil)
	require.NotNil(t, l)
	l.Debug("quiet")
	l.Warn("noted")
}
