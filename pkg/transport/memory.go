package transport

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

var _ Transport = (*Memory)(nil)

// Peer is the device end of an in-memory stream. Receive consumes the bytes a
// client sent and returns the bytes to deliver back; io.EOF closes the stream
// once the returned bytes are drained.
type Peer interface {
	Receive(b []byte) ([]byte, error)
}

// Faults are applied to every handle opened on an endpoint afterwards.
type Faults struct {
	// HoldReceives makes the first n TryReceive calls report ErrWouldBlock.
	HoldReceives int
	// ChunkSize caps the bytes one TryReceive returns, 0 means unlimited.
	ChunkSize int
	// ResetAfter fails TryReceive with ErrConnectionReset after that many
	// successful receives, 0 disables it.
	ResetAfter int
}

type endpoint struct {
	accept func() Peer
	faults Faults
}

// Memory connects clients to in-process peers, used by tests and the simulator.
type Memory struct {
	mu        sync.Mutex
	endpoints map[string]*endpoint
}

func NewMemory() *Memory {
	return &Memory{endpoints: make(map[string]*endpoint)}
}

func (m *Memory) Code() string {
	return "mem"
}

// Register makes name reachable; accept is called once per Open.
func (m *Memory) Register(name string, accept func() Peer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endpoints[name] = &endpoint{accept: accept}
}

func (m *Memory) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.endpoints, name)
}

func (m *Memory) Inject(name string, f Faults) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ep, ok := m.endpoints[name]; ok {
		ep.faults = f
	}
}

func (m *Memory) Open(name string) (Handle, error) {
	m.mu.Lock()
	ep, ok := m.endpoints[name]
	m.mu.Unlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnreachable, "no device registered as %q", name)
	}
	return &memoryHandle{peer: ep.accept(), faults: ep.faults}, nil
}

type memoryHandle struct {
	peer     Peer
	faults   Faults
	inbound  []byte
	eof      bool
	closed   bool
	receives int
}

func (h *memoryHandle) TrySend(b []byte) (int, error) {
	if h.closed {
		return 0, ErrClosed
	}
	if h.eof {
		return 0, errors.Wrap(ErrConnectionReset, "closed by peer")
	}
	out, err := h.peer.Receive(b)
	h.inbound = append(h.inbound, out...)
	if errors.Is(err, io.EOF) {
		h.eof = true
	} else if err != nil {
		return 0, errors.Wrap(ErrConnectionReset, err.Error())
	}
	return len(b), nil
}

func (h *memoryHandle) TryReceive(b []byte) (int, error) {
	if h.closed {
		return 0, ErrClosed
	}
	if h.faults.HoldReceives > 0 {
		h.faults.HoldReceives--
		return 0, ErrWouldBlock
	}
	if h.faults.ResetAfter > 0 && h.receives >= h.faults.ResetAfter {
		return 0, errors.Wrap(ErrConnectionReset, "injected reset")
	}
	if len(h.inbound) == 0 {
		if h.eof {
			return 0, errors.Wrap(ErrConnectionReset, "closed by peer")
		}
		return 0, ErrWouldBlock
	}
	n := len(h.inbound)
	if h.faults.ChunkSize > 0 && n > h.faults.ChunkSize {
		n = h.faults.ChunkSize
	}
	n = copy(b, h.inbound[:n])
	h.inbound = h.inbound[n:]
	h.receives++
	return n, nil
}

func (h *memoryHandle) Close() error {
	h.closed = true
	return nil
}
