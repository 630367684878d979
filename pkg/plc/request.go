package plc

import (
	"github.com/pkg/errors"
	"s7link/pkg/runtime"
)

type request struct {
	kind      RequestKind
	conn      *Connection
	items     []*Item
	execution *Execution
	executed  bool
	destroyed bool
}

// ReadRequest collects tags to read in one batch.
type ReadRequest struct {
	*request
}

// WriteRequest collects tag values to write in one batch.
type WriteRequest struct {
	*request
}

// AddItem appends a tag to read. name defaults to the canonical address.
func (r *ReadRequest) AddItem(name string, address string) error {
	a, err := r.addressOf(address)
	if err != nil {
		return err
	}
	r.add(name, a, nil)
	return nil
}

// AddItem appends a tag write. The value is checked against the tag type so
// a mismatch fails here, before anything is sent.
func (r *WriteRequest) AddItem(name string, address string, value runtime.Value) error {
	a, err := r.addressOf(address)
	if err != nil {
		return err
	}
	if value == nil {
		return errors.Wrapf(ErrTypeMismatch, "%s: no value", a)
	}
	if err := a.Check(value); err != nil {
		return errors.Wrapf(err, "%s", a)
	}
	r.add(name, a, value)
	return nil
}

func (r *request) addressOf(address string) (Address, error) {
	if r.destroyed {
		return nil, errors.Wrap(ErrDestroyed, "request")
	}
	if r.executed {
		return nil, ErrRequestExecuted
	}
	a, err := r.conn.driver.ParseAddress(address)
	if err != nil {
		if !errors.Is(err, ErrInvalidAddress) {
			err = errors.Wrap(ErrInvalidAddress, err.Error())
		}
		return nil, err
	}
	return a, nil
}

func (r *request) add(name string, a Address, v runtime.Value) {
	if name == "" {
		name = a.String()
	}
	r.items = append(r.items, &Item{Name: name, Address: a, Value: v})
}

func (r *request) Kind() RequestKind {
	return r.kind
}

func (r *request) Len() int {
	return len(r.items)
}

// Execute submits the request to its connection. It returns at once; the
// execution advances with System.Loop. The request is frozen afterwards.
func (r *request) Execute() (*Execution, error) {
	switch {
	case r.destroyed:
		return nil, errors.Wrap(ErrDestroyed, "request")
	case r.executed:
		return nil, ErrRequestExecuted
	case len(r.items) == 0:
		return nil, ErrEmptyRequest
	}
	c := r.conn
	if c.state != Connected {
		return nil, errors.Wrapf(ErrNotConnected, "connection is %s", c.state)
	}
	if c.execution != nil {
		return nil, ErrExecutionInProgress
	}
	exchanges, err := c.session.Prepare(r.kind, r.items)
	if err != nil {
		return nil, err
	}
	e := &Execution{request: r, exchanges: exchanges}
	r.executed = true
	r.execution = e
	c.execution = e
	return e, nil
}

// Destroy releases the request. It is rejected while its execution is pending.
func (r *request) Destroy() error {
	if r.execution != nil && r.execution.status == Pending {
		return ErrExecutionInProgress
	}
	r.destroyed = true
	r.items = nil
	return nil
}
