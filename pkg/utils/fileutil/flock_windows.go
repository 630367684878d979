package fileutil

import (
	"os"

	"golang.org/x/sys/windows"
)

// windowsLock holds the first byte of the file with LockFileEx.
type windowsLock struct {
	h windows.Handle
}

var _ Releaser = (*windowsLock)(nil)

func (l *windowsLock) Release() error {
	return windows.UnlockFileEx(l.h, 0, 1, 0, &windows.Overlapped{})
}

// NewLock takes an exclusive lock on f without waiting. A held lock fails
// with ERROR_LOCK_VIOLATION.
func NewLock(f *os.File) (Releaser, error) {
	l := &windowsLock{windows.Handle(f.Fd())}
	const flags = windows.LOCKFILE_EXCLUSIVE_LOCK | windows.LOCKFILE_FAIL_IMMEDIATELY
	return l, windows.LockFileEx(l.h, flags, 0, 1, 0, &windows.Overlapped{})
}
