package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(42).String())
}

func TestWrap(t *testing.T) {
	err := fmt.Errorf("boom")
	wrapped := Wrap(err, "Source", "Activate", "open file")

	require.Error(t, wrapped)
	assert.Contains(t, wrapped.Error(), "Source.Activate: open file failed")
	assert.ErrorIs(t, wrapped, err)
}

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(nil, "c", "m", "a"))
	assert.Nil(t, WrapTransient(nil, "c", "m", "a"))
	assert.Nil(t, WrapInvalid(nil, "c", "m", "a"))
	assert.Nil(t, WrapFatal(nil, "c", "m", "a"))
}

func TestClassifiedWrappers(t *testing.T) {
	base := fmt.Errorf("underlying")

	transient := WrapTransient(base, "Sink", "Work", "write")
	invalid := WrapInvalid(base, "Source", "Activate", "path check")
	fatal := WrapFatal(base, "Engine", "Run", "dispatch")

	assert.True(t, IsTransient(transient))
	assert.False(t, IsInvalid(transient))

	assert.True(t, IsInvalid(invalid))
	assert.False(t, IsTransient(invalid))

	assert.True(t, IsFatal(fatal))
	assert.False(t, IsTransient(fatal))

	// Classification survives further wrapping
	outer := fmt.Errorf("outer: %w", invalid)
	assert.True(t, IsInvalid(outer))
	assert.ErrorIs(t, outer, base)
}

func TestIsTransient_KnownErrors(t *testing.T) {
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(context.Canceled))
	assert.True(t, IsTransient(ErrBufferExhausted))
	assert.True(t, IsTransient(fmt.Errorf("connection timeout while polling")))
	assert.False(t, IsTransient(nil))
}

func TestIsInvalid_KnownErrors(t *testing.T) {
	assert.True(t, IsInvalid(ErrEmptyFilePath))
	assert.True(t, IsInvalid(ErrInvalidConfig))
	assert.True(t, IsInvalid(ErrUnknownDType))
	assert.False(t, IsInvalid(ErrBufferExhausted))
	assert.False(t, IsInvalid(nil))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil defaults transient", nil, ErrorTransient},
		{"empty path is invalid", ErrEmptyFilePath, ErrorInvalid},
		{"type mismatch is fatal", ErrTypeMismatch, ErrorFatal},
		{"unknown defaults transient", fmt.Errorf("weird"), ErrorTransient},
		{"classified invalid", WrapInvalid(fmt.Errorf("x"), "c", "m", "a"), ErrorInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifiedError_Unwrap(t *testing.T) {
	base := fmt.Errorf("root cause")
	ce := WrapTransient(base, "c", "m", "a")

	var classified *ClassifiedError
	require.ErrorAs(t, ce, &classified)
	assert.Equal(t, ErrorTransient, classified.Class)
	assert.Equal(t, "c", classified.Component)
	assert.ErrorIs(t, classified.Unwrap(), base)
}
