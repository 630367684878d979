package s7

import (
	"github.com/pkg/errors"
	s7runtime "s7link/pkg/protocol/s7/runtime"
	"s7link/pkg/runtime"
	"s7link/pkg/utils/binutil"
)

// SessionAck is the outcome of Setup Communication.
type SessionAck struct {
	MaxAmqCalling uint16
	MaxAmqCalled  uint16
	PDULength     uint16
}

// BuildSessionRequest builds the Setup Communication job proposing pduLength.
func BuildSessionRequest(ref uint16, pduLength uint16) []byte {
	param := []byte{
		s7runtime.FunctionSetupCommunication,
		0x00,       // reserved
		0x00, 0x01, // Max AmQ calling
		0x00, 0x01, // Max AmQ called
		0x00, 0x00, // pdu length
	}
	binutil.WriteUint16(param[6:], pduLength)
	return NewDataFrame(NewJobPDU(ref, param, nil))
}

// ParseSessionResponse accepts only a positive Setup Communication answer.
func ParseSessionResponse(frame []byte, ref uint16) (*SessionAck, error) {
	p, err := ParseAckData(frame, ref, s7runtime.FunctionSetupCommunication)
	if err != nil {
		var de *s7runtime.DeviceError
		if errors.As(err, &de) || errors.Is(err, runtime.ErrMalformedResponse) {
			return nil, errors.Wrapf(runtime.ErrProtocolViolation, "setup communication rejected: %v", err)
		}
		return nil, err
	}
	if len(p.Param) < 8 {
		return nil, errors.Wrapf(runtime.ErrProtocolViolation, "setup communication parameter of %d bytes", len(p.Param))
	}
	ack := &SessionAck{
		MaxAmqCalling: binutil.ParseUint16(p.Param[2:]),
		MaxAmqCalled:  binutil.ParseUint16(p.Param[4:]),
		PDULength:     binutil.ParseUint16(p.Param[6:]),
	}
	if ack.PDULength < s7runtime.MinPDULength {
		return nil, errors.Wrapf(runtime.ErrProtocolViolation, "negotiated PDU length %d", ack.PDULength)
	}
	return ack, nil
}

// ParseConnectConfirm checks the COTP answer to a connection request.
func ParseConnectConfirm(frame []byte) error {
	kind, _, err := ParseFrame(frame)
	if err != nil {
		return err
	}
	switch kind {
	case s7runtime.COTPConnectConfirm:
		return nil
	case s7runtime.COTPDisconnectRequest:
		return errors.Wrap(runtime.ErrProtocolViolation, s7runtime.ErrConnectionRefused.Error())
	}
	return errors.Wrapf(runtime.ErrProtocolViolation, "COTP PDU type 0x%02x while awaiting connect confirm", kind)
}
