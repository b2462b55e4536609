//go:build linux || (darwin && !ios) || freebsd || openbsd || netbsd || dragonfly

package fdwait

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipePair(t *testing.T) (r, w *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.Close()
		_ = w.Close()
	})
	return r, w
}

func TestReadable_EmptyPipePoll(t *testing.T) {
	r, _ := pipePair(t)

	start := time.Now()
	ready, err := Readable(r.Fd(), 0)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Less(t, time.Since(start), 50*time.Millisecond, "zero budget must poll, not block")
}

func TestReadable_TimeoutBound(t *testing.T) {
	r, _ := pipePair(t)

	budget := 50 * time.Millisecond
	start := time.Now()
	ready, err := Readable(r.Fd(), budget)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.False(t, ready)
	assert.GreaterOrEqual(t, elapsed, budget-5*time.Millisecond)
	assert.Less(t, elapsed, budget+200*time.Millisecond, "wait must not overrun the budget")
}

func TestReadable_DataReady(t *testing.T) {
	r, w := pipePair(t)

	_, err := w.Write([]byte{0x1})
	require.NoError(t, err)

	ready, err := Readable(r.Fd(), time.Second)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestWritable_PipeHasRoom(t *testing.T) {
	_, w := pipePair(t)

	ready, err := Writable(w.Fd(), time.Second)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestReadable_RegularFileAlwaysReady(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "fdwait")
	require.NoError(t, err)
	defer f.Close()

	ready, err := Readable(f.Fd(), 0)
	require.NoError(t, err)
	assert.True(t, ready, "regular files are always readable, even at EOF")
}

func TestReadable_NegativeTimeoutPolls(t *testing.T) {
	r, _ := pipePair(t)

	start := time.Now()
	ready, err := Readable(r.Fd(), -time.Second)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}
