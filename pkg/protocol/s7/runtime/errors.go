package runtime

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrItemTooLarge       = errors.New("S7 item does not fit into the negotiated PDU")
	ErrConnectionRefused  = errors.New("S7 connection refused by CPU")
	ErrUnsupportedModel   = errors.New("unsupported S7 CPU model")
	ErrPDUReference       = errors.New("S7 PDU reference mismatch")
	ErrUnexpectedFunction = errors.New("S7 unexpected function code")
)

// DeviceError is a non-zero error class/code pair in an Ack-Data header.
type DeviceError struct {
	Class uint8
	Code  uint8
}

func (e *DeviceError) Error() string {
	if s, ok := ErrorClassToString[e.Class]; ok {
		return fmt.Sprintf("S7 %s (class 0x%02x code 0x%02x)", s, e.Class, e.Code)
	}
	return fmt.Sprintf("S7 error class 0x%02x code 0x%02x", e.Class, e.Code)
}

// ItemError is a data item return code other than success.
type ItemError struct {
	ReturnCode uint8
}

func (e *ItemError) Error() string {
	if s, ok := ReturnCodeToString[e.ReturnCode]; ok {
		return fmt.Sprintf("S7 item error: %s (0x%02x)", s, e.ReturnCode)
	}
	return fmt.Sprintf("S7 item error 0x%02x", e.ReturnCode)
}
