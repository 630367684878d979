package s7

import (
	"github.com/pkg/errors"
	s7runtime "s7link/pkg/protocol/s7/runtime"
	"s7link/pkg/runtime"
	"s7link/pkg/utils/binutil"
)

// Header is the S7comm header of a PDU. ErrorClass and ErrorCode only exist
// on Ack and Ack-Data PDUs.
type Header struct {
	Rosctr     uint8
	Reference  uint16
	ParamLen   uint16
	DataLen    uint16
	ErrorClass uint8
	ErrorCode  uint8
}

// PDU is a decoded S7comm PDU with its parameter and data sections.
type PDU struct {
	Header
	Param []byte
	Data  []byte
}

func NewJobPDU(ref uint16, param []byte, data []byte) []byte {
	return newPDU(Header{Rosctr: s7runtime.RosctrJob, Reference: ref}, param, data)
}

func NewAckDataPDU(ref uint16, errClass uint8, errCode uint8, param []byte, data []byte) []byte {
	return newPDU(Header{Rosctr: s7runtime.RosctrAckData, Reference: ref, ErrorClass: errClass, ErrorCode: errCode}, param, data)
}

func newPDU(h Header, param []byte, data []byte) []byte {
	size := s7runtime.JobHeaderSize
	if h.Rosctr == s7runtime.RosctrAck || h.Rosctr == s7runtime.RosctrAckData {
		size = s7runtime.AckDataHeaderSize
	}
	pdu := make([]byte, size, size+len(param)+len(data))
	pdu[0] = s7runtime.ProtocolID
	pdu[1] = h.Rosctr
	binutil.WriteUint16(pdu[4:], h.Reference)
	binutil.WriteUint16(pdu[6:], uint16(len(param)))
	binutil.WriteUint16(pdu[8:], uint16(len(data)))
	if size == s7runtime.AckDataHeaderSize {
		pdu[10] = h.ErrorClass
		pdu[11] = h.ErrorCode
	}
	pdu = append(pdu, param...)
	return append(pdu, data...)
}

// ParsePDU decodes the S7 header. A wrong protocol id or PDU type violates the
// protocol; sections running past the end of the PDU are malformed.
func ParsePDU(b []byte) (*PDU, error) {
	if len(b) < s7runtime.JobHeaderSize {
		return nil, errors.Wrapf(runtime.ErrMalformedResponse, "S7 header needs %d bytes, have %d", s7runtime.JobHeaderSize, len(b))
	}
	if b[0] != s7runtime.ProtocolID {
		return nil, errors.Wrapf(runtime.ErrProtocolViolation, "protocol id 0x%02x", b[0])
	}
	p := &PDU{}
	p.Rosctr = b[1]
	p.Reference = binutil.ParseUint16(b[4:])
	p.ParamLen = binutil.ParseUint16(b[6:])
	p.DataLen = binutil.ParseUint16(b[8:])

	size := s7runtime.JobHeaderSize
	switch p.Rosctr {
	case s7runtime.RosctrJob:
	case s7runtime.RosctrAck, s7runtime.RosctrAckData:
		size = s7runtime.AckDataHeaderSize
		if len(b) < size {
			return nil, errors.Wrapf(runtime.ErrMalformedResponse, "S7 ack header needs %d bytes, have %d", size, len(b))
		}
		p.ErrorClass = b[10]
		p.ErrorCode = b[11]
	default:
		return nil, errors.Wrapf(runtime.ErrProtocolViolation, "PDU type 0x%02x", p.Rosctr)
	}

	r := binutil.NewReader(b[size:])
	var err error
	if p.Param, err = r.Next(int(p.ParamLen)); err != nil {
		return nil, errors.Wrapf(runtime.ErrMalformedResponse, "parameter section: %v", err)
	}
	if p.Data, err = r.Next(int(p.DataLen)); err != nil {
		return nil, errors.Wrapf(runtime.ErrMalformedResponse, "data section: %v", err)
	}
	if r.Len() != 0 {
		return nil, errors.Wrapf(runtime.ErrMalformedResponse, "%d trailing bytes", r.Len())
	}
	return p, nil
}

// ParseAckData unwraps a DT frame carrying the answer to job ref. Device
// errors in the header come back as *DeviceError with the PDU.
func ParseAckData(frame []byte, ref uint16, function uint8) (*PDU, error) {
	kind, payload, err := ParseFrame(frame)
	if err != nil {
		return nil, err
	}
	if kind != s7runtime.COTPData {
		return nil, errors.Wrapf(runtime.ErrProtocolViolation, "COTP PDU type 0x%02x while awaiting data", kind)
	}
	p, err := ParsePDU(payload)
	if err != nil {
		return nil, err
	}
	if p.Rosctr == s7runtime.RosctrJob {
		return nil, errors.Wrap(runtime.ErrProtocolViolation, "device sent a job")
	}
	if p.Reference != ref {
		return nil, errors.Wrapf(runtime.ErrProtocolViolation, "%v: got %d, want %d", s7runtime.ErrPDUReference, p.Reference, ref)
	}
	if p.ErrorClass != 0 || p.ErrorCode != 0 {
		return p, &s7runtime.DeviceError{Class: p.ErrorClass, Code: p.ErrorCode}
	}
	if len(p.Param) < 2 {
		return nil, errors.Wrapf(runtime.ErrMalformedResponse, "parameter section of %d bytes", len(p.Param))
	}
	if p.Param[0] != function {
		return nil, errors.Wrapf(runtime.ErrProtocolViolation, "%v: got 0x%02x, want 0x%02x", s7runtime.ErrUnexpectedFunction, p.Param[0], function)
	}
	return p, nil
}
