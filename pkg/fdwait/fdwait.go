// Package fdwait provides a bounded "wait until ready or timeout"
// capability over OS file descriptors. It is the single suspension point
// used by file-backed blocks inside a work cycle: the caller supplies the
// cycle's wait budget and gets back a readiness verdict, never blocking
// beyond the budget.
//
// A zero timeout means poll and return immediately. Expiry is reported as
// (false, nil) - it is backpressure, not an error.
//
// The POSIX implementation is select(2) based; platforms without select
// report ready unconditionally, which is correct for regular files (reads
// never block) and degrades to blocking reads elsewhere.
package fdwait

import "time"

// Readable waits until fd is ready for reading or the timeout expires.
func Readable(fd uintptr, timeout time.Duration) (bool, error) {
	return waitFd(fd, timeout, waitRead)
}

// Writable waits until fd is ready for writing or the timeout expires.
func Writable(fd uintptr, timeout time.Duration) (bool, error) {
	return waitFd(fd, timeout, waitWrite)
}

// waitDirection selects which readiness set the descriptor joins.
type waitDirection int

const (
	waitRead waitDirection = iota
	waitWrite
)
