package transport

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoPeer struct {
	closeAfter int
	seen       int
}

func (p *echoPeer) Receive(b []byte) ([]byte, error) {
	p.seen++
	out := append([]byte(nil), b...)
	if p.closeAfter > 0 && p.seen >= p.closeAfter {
		return out, io.EOF
	}
	return out, nil
}

func TestMemoryUnreachable(t *testing.T) {
	m := NewMemory()
	_, err := m.Open("nowhere")
	assert.True(t, errors.Is(err, ErrUnreachable))
}

func TestMemoryFaults(t *testing.T) {
	m := NewMemory()
	m.Register("plc", func() Peer { return &echoPeer{} })
	m.Inject("plc", Faults{HoldReceives: 2, ChunkSize: 3})

	h, err := m.Open("plc")
	require.NoError(t, err)

	buf := make([]byte, 16)
	_, err = h.TryReceive(buf)
	assert.Equal(t, ErrWouldBlock, err)

	n, err := h.TrySend([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	// second held receive, data is queued but not delivered yet
	_, err = h.TryReceive(buf)
	assert.Equal(t, ErrWouldBlock, err)

	n, err = h.TryReceive(buf)
	require.NoError(t, err)
	assert.Equal(t, "hel", string(buf[:n]))
	n, err = h.TryReceive(buf)
	require.NoError(t, err)
	assert.Equal(t, "lo", string(buf[:n]))

	_, err = h.TryReceive(buf)
	assert.Equal(t, ErrWouldBlock, err)
	require.NoError(t, h.Close())
	_, err = h.TryReceive(buf)
	assert.Equal(t, ErrClosed, err)
}

func TestMemoryPeerClose(t *testing.T) {
	m := NewMemory()
	m.Register("plc", func() Peer { return &echoPeer{closeAfter: 1} })
	h, err := m.Open("plc")
	require.NoError(t, err)

	_, err = h.TrySend([]byte("bye"))
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err := h.TryReceive(buf)
	require.NoError(t, err)
	assert.Equal(t, "bye", string(buf[:n]))
	_, err = h.TryReceive(buf)
	assert.True(t, errors.Is(err, ErrConnectionReset))
	_, err = h.TrySend([]byte("again"))
	assert.True(t, errors.Is(err, ErrConnectionReset))
}

func TestTcpRoundTrip(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	go func() {
		c, err := l.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = io.Copy(c, c)
	}()

	h, err := NewTcp(102).Open(l.Addr().String())
	require.NoError(t, err)
	defer h.Close()

	payload := []byte{0x03, 0x00, 0x00, 0x07, 0x02, 0xf0, 0x80}
	deadline := time.Now().Add(5 * time.Second)
	sent := 0
	for sent < len(payload) && time.Now().Before(deadline) {
		n, err := h.TrySend(payload[sent:])
		if errors.Is(err, ErrWouldBlock) {
			continue
		}
		require.NoError(t, err)
		sent += n
	}
	require.Equal(t, len(payload), sent)

	got := make([]byte, 0, len(payload))
	buf := make([]byte, 64)
	for len(got) < len(payload) && time.Now().Before(deadline) {
		n, err := h.TryReceive(buf)
		if errors.Is(err, ErrWouldBlock) {
			continue
		}
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, payload, got)
}

func TestTcpUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	tcp := NewTcp(102)
	tcp.DialTimeout = time.Second
	h, err := tcp.Open(addr)
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_, err = h.TrySend([]byte{0})
		if !errors.Is(err, ErrWouldBlock) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.True(t, errors.Is(err, ErrUnreachable), "got %v", err)
}

func TestTcpOpenReturnsBeforeDial(t *testing.T) {
	tcp := NewTcp(102)
	tcp.DialTimeout = 2 * time.Second
	start := time.Now()
	// TEST-NET-1, nothing answers there
	h, err := tcp.Open("192.0.2.1:102")
	require.NoError(t, err)
	defer h.Close()
	assert.Less(t, time.Since(start), tcp.DialTimeout)

	_, err = h.TryReceive(make([]byte, 8))
	assert.True(t, errors.Is(err, ErrWouldBlock) || errors.Is(err, ErrUnreachable), "got %v", err)
}

func TestTcpDefaultPort(t *testing.T) {
	h, err := NewTcp(0).Open("localhost")
	assert.Nil(t, h)
	assert.True(t, errors.Is(err, ErrUnreachable))
}
