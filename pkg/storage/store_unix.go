//go:build !windows && !plan9

package storage

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isEphemeralError(err error) bool {
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.EAGAIN, unix.EINTR:
			return true
		}
	}
	return false
}
