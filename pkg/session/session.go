package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
	"s7link/pkg/plc"
	"s7link/pkg/protocol/s7"
	s7runtime "s7link/pkg/protocol/s7/runtime"
	"s7link/pkg/transport"
)

var ErrTimeout = errors.New("timed out waiting for the PLC")

const (
	DefaultTimeout      = 5 * time.Second
	DefaultPollInterval = time.Millisecond
)

type Config struct {
	// Address is the connection string, s7:tcp://host[:port][?rack=&slot=&model=&pdu=].
	Address string `json:"address"`
	// Timeout bounds every blocking call.
	Timeout      time.Duration `json:"timeout"`
	PollInterval time.Duration `json:"pollInterval"`
	// DialTimeout and PollQuantum tune the TCP transport.
	DialTimeout        time.Duration `json:"dialTimeout"`
	PollQuantum        time.Duration `json:"pollQuantum"`
	MaxDisconnectPolls int           `json:"maxDisconnectPolls"`
}

func DefaultConfig() Config {
	return Config{
		Timeout:            DefaultTimeout,
		PollInterval:       DefaultPollInterval,
		DialTimeout:        DefaultTimeout,
		PollQuantum:        time.Millisecond,
		MaxDisconnectPolls: plc.DefaultMaxDisconnectPolls,
	}
}

// Session drives one PLC connection with blocking calls. Every call polls
// the connection until it settles or the configured timeout passes, and a
// timeout tears the connection down. Calls are serialized.
type Session struct {
	mu     sync.Mutex
	config Config
	driver *s7.Driver
	system *plc.System
	conn   *plc.Connection
}

// New builds a session on t. A nil t selects TCP when the connection string
// asks for it.
func New(config Config, t transport.Transport) (*Session, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	address, err := plc.ParseConnectionString(config.Address)
	if err != nil {
		return nil, err
	}
	if t == nil {
		if address.Transport != "tcp" {
			return nil, errors.Wrapf(plc.ErrNoTransport, "transport %q", address.Transport)
		}
		tcp := transport.NewTcp(s7runtime.DefaultPort)
		if config.DialTimeout > 0 {
			tcp.DialTimeout = config.DialTimeout
		}
		if config.PollQuantum > 0 {
			tcp.PollQuantum = config.PollQuantum
		}
		t = tcp
	}

	driver := s7.NewDriver()
	system := plc.NewSystem(plc.WithMaxDisconnectPolls(config.MaxDisconnectPolls))
	if err := system.AddDriver(driver); err != nil {
		return nil, err
	}
	if err := system.AddTransport(t); err != nil {
		return nil, err
	}
	if err := system.Init(); err != nil {
		return nil, err
	}
	return &Session{config: config, driver: driver, system: system}, nil
}

func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connect(ctx)
}

func (s *Session) connect(ctx context.Context) error {
	if s.conn != nil {
		if s.conn.State() == plc.Connected {
			return nil
		}
		s.teardown()
	}
	conn, err := s.system.Connect(s.config.Address)
	if err != nil {
		return err
	}
	s.conn = conn
	err = s.poll(ctx, func() (bool, error) {
		switch conn.State() {
		case plc.Connected:
			return true, nil
		case plc.Error:
			return false, conn.Err()
		}
		return false, nil
	})
	if err != nil {
		klog.V(2).InfoS("Failed to connect", "address", s.config.Address, "error", err)
		s.teardown()
		return err
	}
	return nil
}

// Read connects first when needed. The response is returned along with the
// error of a failed execution.
func (s *Session) Read(ctx context.Context, items []Item) (*plc.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx, items)
}

func (s *Session) read(ctx context.Context, items []Item) (*plc.Response, error) {
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	r := s.conn.NewReadRequest()
	for _, item := range items {
		if err := r.AddItem(item.Name, item.Address); err != nil {
			return nil, errors.Wrapf(err, "%s", item.Name)
		}
	}
	return s.execute(ctx, r)
}

// Write converts each value to the type of its tag before anything is sent.
func (s *Session) Write(ctx context.Context, items []Item) (*plc.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, items)
}

func (s *Session) write(ctx context.Context, items []Item) (*plc.Response, error) {
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	w := s.conn.NewWriteRequest()
	for _, item := range items {
		a, err := s.driver.ParseAddress(item.Address)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", item.Name)
		}
		v, err := valueFor(item, a)
		if err != nil {
			return nil, err
		}
		if err := w.AddItem(item.Name, item.Address, v); err != nil {
			return nil, errors.Wrapf(err, "%s", item.Name)
		}
	}
	return s.execute(ctx, w)
}

// Exchange writes then reads, one cycle of a control loop.
func (s *Session) Exchange(ctx context.Context, writes []Item, reads []Item) (*plc.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(writes) > 0 {
		if _, err := s.write(ctx, writes); err != nil {
			return nil, err
		}
	}
	if len(reads) == 0 {
		return &plc.Response{Kind: plc.ReadRequestKind}, nil
	}
	return s.read(ctx, reads)
}

type executable interface {
	Execute() (*plc.Execution, error)
	Destroy() error
}

func (s *Session) execute(ctx context.Context, r executable) (*plc.Response, error) {
	e, err := r.Execute()
	if err != nil {
		return nil, err
	}
	if err := s.poll(ctx, func() (bool, error) { return e.Done(), nil }); err != nil {
		// abandoning an execution takes the connection down
		s.teardown()
		return nil, err
	}
	response, failure := e.Response(), e.Err()
	if err := e.Destroy(); err != nil {
		klog.V(4).InfoS("Failed to destroy execution", "error", err)
	}
	if err := r.Destroy(); err != nil {
		klog.V(4).InfoS("Failed to destroy request", "error", err)
	}
	return response, failure
}

func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	if err := s.system.Disconnect(conn); err != nil {
		return err
	}
	err := s.poll(ctx, func() (bool, error) {
		return conn.State() == plc.Disconnected || conn.State() == plc.Error, nil
	})
	s.teardown()
	return err
}

// Close disconnects and releases the session.
func (s *Session) Close(ctx context.Context) error {
	err := s.Disconnect(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.system.Shutdown()
	if derr := s.system.Destroy(); derr != nil && err == nil {
		err = derr
	}
	return err
}

type Status struct {
	Address string `json:"address"`
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Address: s.config.Address, State: plc.Disconnected.String()}
	if s.conn != nil {
		st.State = s.conn.State().String()
		if err := s.conn.Err(); err != nil {
			st.Error = err.Error()
		}
	}
	return st
}

// poll runs System.Loop until done reports true or fails, bounded by the
// session timeout.
func (s *Session) poll(ctx context.Context, done func() (bool, error)) error {
	err := wait.PollUntilContextTimeout(ctx, s.config.PollInterval, s.config.Timeout, true, func(context.Context) (bool, error) {
		s.system.Loop()
		return done()
	})
	if err != nil && wait.Interrupted(err) {
		return errors.Wrapf(ErrTimeout, "after %s", s.config.Timeout)
	}
	return err
}

// teardown drops the connection, giving it the bounded number of ticks the
// system allows to say goodbye.
func (s *Session) teardown() {
	conn := s.conn
	if conn == nil {
		return
	}
	s.conn = nil
	_ = s.system.Disconnect(conn)
	for conn.State() == plc.Disconnecting {
		s.system.Loop()
	}
	if err := s.system.RemoveConnection(conn); err != nil {
		klog.V(2).InfoS("Failed to remove connection", "connection", conn.ID(), "error", err)
	}
}
