package plc

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"s7link/pkg/transport"
)

// System owns the connections of one driver and one transport. It is not
// safe for concurrent use: a single goroutine registers, connects and calls
// Loop, and every other call must come from that goroutine too.
type System struct {
	driver    Driver
	transport transport.Transport

	initialized bool
	destroyed   bool

	connections        []*Connection
	maxDisconnectPolls int
}

type Option func(*System)

// WithMaxDisconnectPolls caps the ticks a disconnecting connection waits for
// the device to confirm.
func WithMaxDisconnectPolls(n int) Option {
	return func(s *System) {
		if n > 0 {
			s.maxDisconnectPolls = n
		}
	}
}

func NewSystem(opts ...Option) *System {
	s := &System{maxDisconnectPolls: DefaultMaxDisconnectPolls}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *System) AddDriver(d Driver) error {
	if s.initialized {
		return ErrAlreadyInitialized
	}
	if s.driver != nil {
		return errors.Wrapf(ErrAlreadyRegistered, "driver %s", s.driver.Code())
	}
	s.driver = d
	return nil
}

func (s *System) AddTransport(t transport.Transport) error {
	if s.initialized {
		return ErrAlreadyInitialized
	}
	if s.transport != nil {
		return errors.Wrapf(ErrAlreadyRegistered, "transport %s", s.transport.Code())
	}
	s.transport = t
	return nil
}

func (s *System) Init() error {
	switch {
	case s.destroyed:
		return errors.Wrap(ErrDestroyed, "system")
	case s.initialized:
		return ErrAlreadyInitialized
	case s.driver == nil:
		return ErrNoDriver
	case s.transport == nil:
		return ErrNoTransport
	}
	s.initialized = true
	klog.V(4).InfoS("Initialized plc system", "driver", s.driver.Code(), "transport", s.transport.Code())
	return nil
}

// Connect creates a connection in Connecting without doing any I/O; the
// handshake runs in the following Loop calls.
func (s *System) Connect(connectionString string) (*Connection, error) {
	if !s.initialized || s.destroyed {
		return nil, ErrNotInitialized
	}
	address, err := ParseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}
	if address.Driver != s.driver.Code() {
		return nil, errors.Wrapf(ErrInvalidConnectionString, "no driver %q", address.Driver)
	}
	if address.Transport != s.transport.Code() {
		return nil, errors.Wrapf(ErrInvalidConnectionString, "no transport %q", address.Transport)
	}
	session, err := s.driver.NewSession(address.Options)
	if err != nil {
		return nil, err
	}
	c := newConnection(address, s.driver, s.transport, session, s.maxDisconnectPolls)
	s.connections = append(s.connections, c)
	klog.V(2).InfoS("Connecting", "connection", c.id, "address", address)
	return c, nil
}

// Loop advances every connection exactly once.
func (s *System) Loop() {
	for _, c := range s.connections {
		c.advance()
	}
}

func (s *System) Connections() []*Connection {
	return append([]*Connection(nil), s.connections...)
}

// Disconnect starts closing c. Connections that already stopped are left alone.
func (s *System) Disconnect(c *Connection) error {
	if s.indexOf(c) < 0 {
		return ErrUnknownConnection
	}
	c.disconnect()
	return nil
}

// RemoveConnection forgets a connection that is Disconnected or in Error.
func (s *System) RemoveConnection(c *Connection) error {
	i := s.indexOf(c)
	if i < 0 {
		return ErrUnknownConnection
	}
	if c.state != Disconnected && c.state != Error {
		return errors.Wrapf(ErrConnectionsStillOpen, "connection %s is %s", c.id, c.state)
	}
	s.connections = append(s.connections[:i], s.connections[i+1:]...)
	return nil
}

// Shutdown starts disconnecting every connection. Keep calling Loop until
// Done reports true.
func (s *System) Shutdown() {
	for _, c := range s.connections {
		c.disconnect()
	}
}

// Done reports whether every connection is Disconnected or in Error.
func (s *System) Done() bool {
	for _, c := range s.connections {
		if c.state != Disconnected && c.state != Error {
			return false
		}
	}
	return true
}

// Destroy releases the system once all connections stopped.
func (s *System) Destroy() error {
	if s.destroyed {
		return errors.Wrap(ErrDestroyed, "system")
	}
	if !s.Done() {
		return ErrConnectionsStillOpen
	}
	for _, c := range s.connections {
		c.release()
	}
	s.connections = nil
	s.destroyed = true
	return nil
}

func (s *System) indexOf(c *Connection) int {
	for i, conn := range s.connections {
		if conn == c {
			return i
		}
	}
	return -1
}
