package runtime

import "github.com/pkg/errors"

var (
	ErrInvalidAddress    = errors.New("invalid tag address")
	ErrTypeMismatch      = errors.New("value type does not match tag type")
	ErrProtocolViolation = errors.New("protocol violation")
	ErrMalformedResponse = errors.New("malformed response")
)
