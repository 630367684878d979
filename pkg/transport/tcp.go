package transport

import (
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"
)

const (
	_defaultDialTimeout = 5 * time.Second
	_defaultPollQuantum = time.Millisecond
)

var _ Transport = (*Tcp)(nil)

// Tcp connects to devices over TCP. The dial started by Open runs on its own
// goroutine, the only one the connection core ever starts. Everything after
// the dial polls the socket with short deadlines on the caller's goroutine.
type Tcp struct {
	// DialTimeout bounds the background dial started by Open.
	DialTimeout time.Duration
	// PollQuantum is the read/write deadline of one TrySend or TryReceive.
	PollQuantum time.Duration
	// DefaultPort is appended to endpoints without a port.
	DefaultPort int
}

func NewTcp(defaultPort int) *Tcp {
	return &Tcp{
		DialTimeout: _defaultDialTimeout,
		PollQuantum: _defaultPollQuantum,
		DefaultPort: defaultPort,
	}
}

func (t *Tcp) Code() string {
	return "tcp"
}

// Open resolves nothing and connects nothing on the caller's goroutine: the
// dial runs in the background and the handle reports ErrWouldBlock until it
// lands, or ErrUnreachable if it fails.
func (t *Tcp) Open(endpoint string) (Handle, error) {
	addr := endpoint
	if _, _, err := net.SplitHostPort(endpoint); err != nil {
		if t.DefaultPort == 0 {
			return nil, errors.Wrapf(ErrUnreachable, "endpoint %q has no port", endpoint)
		}
		addr = net.JoinHostPort(endpoint, strconv.Itoa(t.DefaultPort))
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, errors.Wrapf(ErrUnreachable, "endpoint %q: %v", endpoint, err)
	}

	tc := &TcpClient{
		Address: addr,
		Timeout: t.PollQuantum,
		dialed:  make(chan struct{}),
	}
	if tc.Timeout <= 0 {
		tc.Timeout = _defaultPollQuantum
	}
	dialTimeout := t.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = _defaultDialTimeout
	}
	go tc.dial(dialTimeout)
	return tc, nil
}

// TcpClient is a non-blocking view of a net.Conn.
type TcpClient struct {
	Address string
	Timeout time.Duration

	dialed  chan struct{}
	mu      sync.Mutex
	tunnel  net.Conn
	dialErr error
	closed  atomic.Bool

	sent     atomic.Uint64
	received atomic.Uint64
}

func (tc *TcpClient) dial(timeout time.Duration) {
	defer close(tc.dialed)
	tunnel, err := net.DialTimeout("tcp", tc.Address, timeout)
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if err != nil {
		klog.V(2).InfoS("Failed to connect device", "address", tc.Address, "error", err)
		tc.dialErr = errors.Wrapf(ErrUnreachable, "%s: %v", tc.Address, err)
		return
	}
	if tc.closed.Load() {
		_ = tunnel.Close()
		return
	}
	if c, ok := tunnel.(*net.TCPConn); ok {
		_ = c.SetNoDelay(true)
	}
	tc.tunnel = tunnel
}

func (tc *TcpClient) conn() (net.Conn, error) {
	if tc.closed.Load() {
		return nil, ErrClosed
	}
	select {
	case <-tc.dialed:
	default:
		return nil, ErrWouldBlock
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.dialErr != nil {
		return nil, tc.dialErr
	}
	if tc.tunnel == nil {
		return nil, ErrClosed
	}
	return tc.tunnel, nil
}

func (tc *TcpClient) TrySend(b []byte) (int, error) {
	tunnel, err := tc.conn()
	if err != nil {
		return 0, err
	}
	if err := tunnel.SetWriteDeadline(time.Now().Add(tc.Timeout)); err != nil {
		return 0, errors.Wrap(ErrConnectionReset, err.Error())
	}
	n, err := tunnel.Write(b)
	tc.sent.Add(uint64(n))
	if err != nil {
		if isTimeout(err) {
			if n > 0 {
				return n, nil
			}
			return 0, ErrWouldBlock
		}
		klog.V(2).InfoS("Failed to send message", "address", tc.Address, "error", err)
		return n, errors.Wrap(ErrConnectionReset, err.Error())
	}
	return n, nil
}

func (tc *TcpClient) TryReceive(b []byte) (int, error) {
	tunnel, err := tc.conn()
	if err != nil {
		return 0, err
	}
	// a deadline of now would fail before reading, give the read one quantum
	if err := tunnel.SetReadDeadline(time.Now().Add(tc.Timeout)); err != nil {
		return 0, errors.Wrap(ErrConnectionReset, err.Error())
	}
	n, err := tunnel.Read(b)
	tc.received.Add(uint64(n))
	if n > 0 {
		return n, nil
	}
	if err == nil {
		return 0, ErrWouldBlock
	}
	if isTimeout(err) {
		return 0, ErrWouldBlock
	}
	if errors.Is(err, io.EOF) {
		return 0, errors.Wrap(ErrConnectionReset, "closed by peer")
	}
	klog.V(2).InfoS("Failed to receive message", "address", tc.Address, "error", err)
	return 0, errors.Wrap(ErrConnectionReset, err.Error())
}

func (tc *TcpClient) Close() error {
	if tc.closed.Swap(true) {
		return nil
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.tunnel != nil {
		return tc.tunnel.Close()
	}
	return nil
}

// Stats returns the bytes sent and received so far.
func (tc *TcpClient) Stats() (sent uint64, received uint64) {
	return tc.sent.Load(), tc.received.Load()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
