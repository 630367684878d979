package plc

import (
	"net/url"

	"s7link/pkg/runtime"
	"s7link/pkg/runtime/constant"
)

// Driver speaks one PLC protocol. The System only sees drivers through this
// interface and never touches wire bytes itself.
type Driver interface {
	// Code is the scheme this driver serves, "s7" in s7:tcp://host.
	Code() string
	ParseAddress(address string) (Address, error)
	// NewSession creates the protocol state of one connection from the
	// query parameters of its connection string.
	NewSession(options url.Values) (Session, error)
}

// Address is a parsed tag address.
type Address interface {
	// String is the canonical form, parsing it again yields the same address.
	String() string
	Type() constant.DataType
	Elements() int
	// StringLength is the declared capacity of a STRING tag, 0 for other types.
	StringLength() int
	// Check fails with ErrTypeMismatch when v cannot be written to the tag.
	Check(v runtime.Value) error
}

type RequestKind int

const (
	ReadRequestKind RequestKind = iota
	WriteRequestKind
)

var RequestKindToString = map[RequestKind]string{
	ReadRequestKind:  "read",
	WriteRequestKind: "write",
}

func (k RequestKind) String() string {
	return RequestKindToString[k]
}

// Item is one tag of a request. Sessions fill in Value for reads and Err for
// any item the device rejected.
type Item struct {
	Name    string
	Address Address
	Value   runtime.Value
	Err     error
}

// Session holds the protocol state of one connection: framing, handshake
// progress, negotiated limits and request numbering. Sessions never do I/O.
type Session interface {
	// Hello is the first handshake frame, sent right after the transport opened.
	Hello() []byte
	// Handshake consumes one handshake reply and returns the next frame to
	// send, or done once the session is established.
	Handshake(frame []byte) (next []byte, done bool, err error)
	// Feed hands received bytes to the framer.
	Feed(b []byte)
	// Frame returns the next complete frame, nil while one is incomplete.
	Frame() ([]byte, error)
	// Prepare compiles items into exchanges that fit the negotiated limits.
	Prepare(kind RequestKind, items []*Item) ([]Exchange, error)
	// Goodbye is the frame that asks the device to close, nil if none is needed.
	Goodbye() []byte
	// Closed reports whether frame ends the session.
	Closed(frame []byte) bool
}

// Exchange is one request frame and the handling of its reply.
type Exchange interface {
	Request() []byte
	// Response stores the outcome into the exchange's items. An error
	// fails the whole exchange.
	Response(frame []byte) error
}
