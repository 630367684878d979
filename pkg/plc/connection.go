package plc

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"s7link/pkg/transport"
	"s7link/pkg/utils/uuidutil"
)

type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Disconnecting
	Error
)

var ConnectionStateToString = map[ConnectionState]string{
	Disconnected:  "disconnected",
	Connecting:    "connecting",
	Connected:     "connected",
	Disconnecting: "disconnecting",
	Error:         "error",
}

func (s ConnectionState) String() string {
	return ConnectionStateToString[s]
}

// DefaultMaxDisconnectPolls bounds how many ticks a connection waits for the
// device to confirm a disconnect.
const DefaultMaxDisconnectPolls = 1000

const receiveBufferSize = 2048

// Connection is one device session. Its state only moves inside System.Loop;
// all methods must be called from the goroutine that drives the loop.
type Connection struct {
	id        string
	address   *ConnectionString
	driver    Driver
	transport transport.Transport
	session   Session

	state ConnectionState
	err   error

	handle   transport.Handle
	outbound []byte
	buf      []byte

	execution *Execution

	goodbyeSent        bool
	disconnectPolls    int
	maxDisconnectPolls int
}

func newConnection(address *ConnectionString, d Driver, t transport.Transport, s Session, maxDisconnectPolls int) *Connection {
	return &Connection{
		id:                 uuidutil.UUID(),
		address:            address,
		driver:             d,
		transport:          t,
		session:            s,
		state:              Connecting,
		buf:                make([]byte, receiveBufferSize),
		maxDisconnectPolls: maxDisconnectPolls,
	}
}

// ID is an opaque handle, unique within the process.
func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) String() string {
	return c.address.String()
}

func (c *Connection) State() ConnectionState {
	return c.state
}

// Err is the cause of the Error state.
func (c *Connection) Err() error {
	return c.err
}

// Execution returns the execution being serviced, nil when idle.
func (c *Connection) Execution() *Execution {
	return c.execution
}

func (c *Connection) NewReadRequest() *ReadRequest {
	return &ReadRequest{request: &request{kind: ReadRequestKind, conn: c}}
}

func (c *Connection) NewWriteRequest() *WriteRequest {
	return &WriteRequest{request: &request{kind: WriteRequestKind, conn: c}}
}

// advance runs one tick of the state machine. It never blocks beyond the
// poll quantum of the transport.
func (c *Connection) advance() {
	switch c.state {
	case Connecting:
		c.connecting()
	case Connected:
		if c.execution != nil {
			c.service(c.execution)
		} else {
			c.idle()
		}
	case Disconnecting:
		c.disconnecting()
	}
}

func (c *Connection) connecting() {
	if c.handle == nil {
		h, err := c.transport.Open(c.address.Endpoint)
		if err != nil {
			c.fail(err)
			return
		}
		c.handle = h
		c.outbound = c.session.Hello()
		klog.V(4).InfoS("Opened transport", "connection", c.id, "endpoint", c.address.Endpoint)
	}
	for {
		if err := c.flush(); err != nil {
			if !wouldBlock(err) {
				c.fail(err)
			}
			return
		}
		frame, err := c.receive()
		if err != nil {
			c.fail(err)
			return
		}
		if frame == nil {
			return
		}
		next, done, err := c.session.Handshake(frame)
		if err != nil {
			c.fail(err)
			return
		}
		if done {
			c.state = Connected
			klog.V(2).InfoS("Connected", "connection", c.id, "address", c.address)
			return
		}
		c.outbound = next
	}
}

// service runs one step of e: the first step sends the next request frame,
// later steps try to receive and handle its reply.
func (c *Connection) service(e *Execution) {
	if !e.sent {
		c.outbound = e.exchanges[e.next].Request()
		e.sent = true
		if err := c.flush(); err != nil && !wouldBlock(err) {
			c.abort(err)
		}
		return
	}
	if err := c.flush(); err != nil {
		if !wouldBlock(err) {
			c.abort(err)
		}
		return
	}
	if len(c.outbound) > 0 {
		return
	}

	frame, err := c.receive()
	if err != nil {
		// an oversized frame is dropped by the framer, the stream stays in sync
		if errors.Is(err, ErrMalformedResponse) {
			c.failExecution(e, err)
			return
		}
		c.abort(err)
		return
	}
	if frame == nil {
		return
	}
	if c.session.Closed(frame) {
		c.abort(errors.Wrap(ErrConnectionReset, "device closed the session"))
		return
	}
	if err := e.exchanges[e.next].Response(frame); err != nil {
		if fatal(err) {
			c.abort(err)
			return
		}
		c.failExecution(e, err)
		return
	}
	e.next++
	e.sent = false
	if e.next == len(e.exchanges) {
		e.finish(nil)
		c.execution = nil
	}
}

// idle watches the stream between executions so a reset or an unsolicited
// close is noticed without waiting for the next request.
// failExecution ends e without touching the connection state.
func (c *Connection) failExecution(e *Execution, err error) {
	klog.V(2).InfoS("Failed to handle response", "connection", c.id, "error", err)
	e.finish(err)
	c.execution = nil
}

func (c *Connection) idle() {
	frame, err := c.receive()
	if err != nil {
		c.fail(err)
		return
	}
	if frame == nil {
		return
	}
	if c.session.Closed(frame) {
		c.fail(errors.Wrap(ErrConnectionReset, "device closed the session"))
		return
	}
	c.fail(errors.Wrap(ErrProtocolViolation, "unsolicited frame"))
}

func (c *Connection) disconnecting() {
	if c.handle == nil {
		c.closed()
		return
	}
	if !c.goodbyeSent {
		c.goodbyeSent = true
		// a half sent frame cannot be followed by anything meaningful
		if len(c.outbound) > 0 {
			c.closed()
			return
		}
		c.outbound = c.session.Goodbye()
		if len(c.outbound) == 0 {
			c.closed()
			return
		}
	}

	c.disconnectPolls++
	if err := c.flush(); err != nil && !wouldBlock(err) {
		c.closed()
		return
	}
	for {
		frame, err := c.receive()
		if err != nil {
			c.closed()
			return
		}
		if frame == nil {
			break
		}
		if c.session.Closed(frame) {
			c.closed()
			return
		}
	}
	if c.disconnectPolls >= c.maxDisconnectPolls {
		klog.V(2).InfoS("Gave up waiting for disconnect confirm", "connection", c.id, "polls", c.disconnectPolls)
		c.closed()
	}
}

// disconnect starts an orderly close. A pending execution fails with
// ErrNotConnected.
func (c *Connection) disconnect() {
	switch c.state {
	case Connecting, Connected:
		if c.execution != nil {
			c.execution.finish(errors.Wrap(ErrNotConnected, "connection is disconnecting"))
			c.execution = nil
		}
		c.state = Disconnecting
		klog.V(2).InfoS("Disconnecting", "connection", c.id)
	}
}

func (c *Connection) closed() {
	c.release()
	c.state = Disconnected
	klog.V(2).InfoS("Disconnected", "connection", c.id)
}

// abort fails the pending execution along with the connection.
func (c *Connection) abort(err error) {
	if c.execution != nil {
		c.execution.finish(err)
		c.execution = nil
	}
	c.fail(err)
}

func (c *Connection) fail(err error) {
	klog.V(2).InfoS("Failed to keep connection", "connection", c.id, "state", c.state, "error", err)
	c.release()
	c.err = err
	c.state = Error
}

func (c *Connection) release() {
	if c.handle != nil {
		if err := c.handle.Close(); err != nil {
			klog.V(4).InfoS("Failed to close transport", "connection", c.id, "error", err)
		}
		c.handle = nil
	}
	c.outbound = nil
}

func (c *Connection) flush() error {
	for len(c.outbound) > 0 {
		n, err := c.handle.TrySend(c.outbound)
		c.outbound = c.outbound[n:]
		if err != nil {
			return err
		}
	}
	return nil
}

// receive makes at most one receive attempt and returns the next complete
// frame, nil if none is available yet.
func (c *Connection) receive() ([]byte, error) {
	if frame, err := c.session.Frame(); frame != nil || err != nil {
		return frame, err
	}
	n, err := c.handle.TryReceive(c.buf)
	if err != nil {
		if wouldBlock(err) {
			return nil, nil
		}
		return nil, err
	}
	c.session.Feed(c.buf[:n])
	return c.session.Frame()
}

func wouldBlock(err error) bool {
	return errors.Is(err, transport.ErrWouldBlock)
}
