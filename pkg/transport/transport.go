package transport

import "github.com/pkg/errors"

var (
	// ErrWouldBlock means the operation made no progress and should be retried on a later poll.
	ErrWouldBlock      = errors.New("operation would block")
	ErrUnreachable     = errors.New("endpoint unreachable")
	ErrConnectionReset = errors.New("connection reset by peer")
	ErrClosed          = errors.New("use of closed handle")
)

// Transport opens byte streams to devices. Neither Open nor any Handle
// operation blocks longer than one poll quantum.
type Transport interface {
	// Code is the scheme this transport serves in a connection string, "tcp" in s7:tcp://host.
	Code() string
	Open(endpoint string) (Handle, error)
}

type Handle interface {
	// TrySend writes as much of b as the stream accepts right now.
	TrySend(b []byte) (int, error)
	// TryReceive returns ErrWouldBlock when no data is available.
	TryReceive(b []byte) (int, error)
	Close() error
}
