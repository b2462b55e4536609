//go:build linux || (darwin && !ios) || freebsd || openbsd || netbsd || dragonfly

package fdwait

import (
	"time"

	"golang.org/x/sys/unix"
)

// waitFd implements the bounded readiness wait with select(2).
//
// EINTR restarts the wait with the remaining budget so the caller's
// deadline is honored exactly; a budget exhausted by interruptions reports
// not-ready rather than an error.
func waitFd(fd uintptr, timeout time.Duration, dir waitDirection) (bool, error) {
	if timeout < 0 {
		timeout = 0
	}
	deadline := time.Now().Add(timeout)
	remaining := timeout

	for {
		var set unix.FdSet
		set.Zero()
		set.Set(int(fd))

		tv := unix.NsecToTimeval(remaining.Nanoseconds())

		var n int
		var err error
		switch dir {
		case waitWrite:
			n, err = unix.Select(int(fd)+1, nil, &set, nil, &tv)
		default:
			n, err = unix.Select(int(fd)+1, &set, nil, nil, &tv)
		}

		if err == unix.EINTR {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				return false, nil
			}
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}
}
