//go:build solaris

package fileutil

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// fcntlLock uses a whole-file record lock, Solaris has no flock.
type fcntlLock struct {
	f *os.File
}

var _ Releaser = (*fcntlLock)(nil)

func (l *fcntlLock) Release() error {
	return l.set(unix.F_UNLCK)
}

func (l *fcntlLock) set(typ int16) error {
	lk := unix.Flock_t{Type: typ, Whence: io.SeekStart}
	return unix.FcntlFlock(l.f.Fd(), unix.F_SETLK, &lk)
}

// NewLock takes an exclusive lock on f without waiting.
func NewLock(f *os.File) (Releaser, error) {
	l := &fcntlLock{f}
	return l, l.set(unix.F_WRLCK)
}
