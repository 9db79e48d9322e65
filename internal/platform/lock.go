package platform

import "errors"

// ErrAlreadyRunning indicates another process holds the daemon pidfile.
var ErrAlreadyRunning = errors.New("daemon already running")

// ErrLockUnsupported indicates the platform has no pidfile lock backend.
var ErrLockUnsupported = errors.New("pidfile lock unsupported")

// ProcessLock is an acquired pidfile lock. It is held until Release or
// process exit, whichever comes first.
type ProcessLock interface {
	Release() error
}

// AcquirePidLock takes an exclusive lock on path and writes the current
// PID into it. The file is left in place on release; the lock itself is
// what arbitrates, not the file's existence.
func AcquirePidLock(path string) (ProcessLock, error) {
	return acquirePidLock(path)
}
