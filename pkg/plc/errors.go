package plc

import (
	"github.com/pkg/errors"
	"s7link/pkg/runtime"
	"s7link/pkg/transport"
)

// Codec and transport failures, re-exported so embedders classify every
// error against this package.
var (
	ErrInvalidAddress    = runtime.ErrInvalidAddress
	ErrTypeMismatch      = runtime.ErrTypeMismatch
	ErrProtocolViolation = runtime.ErrProtocolViolation
	ErrMalformedResponse = runtime.ErrMalformedResponse
	ErrUnreachable       = transport.ErrUnreachable
	ErrConnectionReset   = transport.ErrConnectionReset
)

var (
	ErrNotConnected            = errors.New("connection is not connected")
	ErrExecutionInProgress     = errors.New("an execution is in progress")
	ErrAlreadyInitialized      = errors.New("system already initialized")
	ErrConnectionsStillOpen    = errors.New("connections still open")
	ErrAlreadyRegistered       = errors.New("already registered")
	ErrNotInitialized          = errors.New("system not initialized")
	ErrNoDriver                = errors.New("no driver registered")
	ErrNoTransport             = errors.New("no transport registered")
	ErrInvalidConnectionString = errors.New("invalid connection string")
	ErrUnknownConnection       = errors.New("connection does not belong to this system")
	ErrRequestExecuted         = errors.New("request already executed")
	ErrEmptyRequest            = errors.New("request has no items")
	ErrDestroyed               = errors.New("already destroyed")
)

// fatal reports whether err ends the connection rather than one execution.
func fatal(err error) bool {
	return errors.Is(err, ErrProtocolViolation) ||
		errors.Is(err, ErrConnectionReset) ||
		errors.Is(err, ErrUnreachable) ||
		errors.Is(err, transport.ErrClosed)
}
