//go:build !unix

package platform

func acquirePidLock(path string) (ProcessLock, error) {
	return nil, ErrLockUnsupported
}
