package file

import (
	"io"
	"os"
	"syscall"

	stderrors "errors"
)

// handle owns an OS-level readable or writable file. Construction is the
// open, Close is the release, and validity is a first-class query instead
// of a sentinel descriptor comparison scattered through block logic.
type handle struct {
	f *os.File
}

// openSource opens a file for reading.
func openSource(path string) (*handle, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return &handle{f: f}, nil
}

// openSink opens (or creates, truncating) a file for writing.
func openSink(path string) (*handle, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	return &handle{f: f}, nil
}

// adopt wraps an externally owned descriptor. The handle takes ownership;
// Close releases the descriptor.
func adopt(fd int, name string) *handle {
	if fd < 0 {
		return nil
	}
	return &handle{f: os.NewFile(uintptr(fd), name)}
}

// Valid reports whether the handle refers to an open file.
func (h *handle) Valid() bool {
	return h != nil && h.f != nil
}

// Fd returns the underlying descriptor for readiness waits.
func (h *handle) Fd() uintptr {
	return h.f.Fd()
}

// Read performs one read. End of file is reported as io.EOF with n == 0.
func (h *handle) Read(p []byte) (int, error) {
	return h.f.Read(p)
}

// Write performs one write.
func (h *handle) Write(p []byte) (int, error) {
	return h.f.Write(p)
}

// Rewind resets the read position to the start of the file.
func (h *handle) Rewind() error {
	_, err := h.f.Seek(0, io.SeekStart)
	return err
}

// Close releases the descriptor. Safe on an invalid handle.
func (h *handle) Close() error {
	if !h.Valid() {
		return nil
	}
	err := h.f.Close()
	h.f = nil
	return err
}

// errnoValue extracts the OS error code from a wrapped syscall error, for
// logging alongside the description. Returns 0 when no errno is present.
func errnoValue(err error) int {
	var errno syscall.Errno
	if stderrors.As(err, &errno) {
		return int(errno)
	}
	return 0
}
