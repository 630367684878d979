package s7

import (
	"github.com/pkg/errors"
	s7runtime "s7link/pkg/protocol/s7/runtime"
	"s7link/pkg/runtime"
	"s7link/pkg/utils/binutil"
)

// largest TPKT frame accepted, a 1024 byte TPDU plus headers
const maxFrameSize = 1024 + 64

// NewCOTPConnectMessage builds a connection request (CR) asking for 1024 byte TPDUs.
func NewCOTPConnectMessage(localTSAP uint16, remoteTSAP uint16) []byte {
	return []byte{
		// TPKT
		s7runtime.TPKTVersion, 0x00, 0x00, 0x16, // 总字节数 固定22
		// COTP
		0x11, // 当前字节以后的字节数
		s7runtime.COTPConnectRequest,
		0x00, 0x00, // DST reference
		0x00, 0x01, // SRC reference
		0x00, // class 0
		s7runtime.COTPParamTPDUSize, 0x01, s7runtime.COTPTPDUSize1024,
		s7runtime.COTPParamCallingTSAP, 0x02, byte(localTSAP >> 8), byte(localTSAP),
		s7runtime.COTPParamCalledTSAP, 0x02, byte(remoteTSAP >> 8), byte(remoteTSAP),
	}
}

// NewCOTPConnectConfirm answers a CR, used by the simulated device.
func NewCOTPConnectConfirm(request []byte) []byte {
	cc := binutil.Dup(request)
	cc[5] = s7runtime.COTPConnectConfirm
	// swap references
	cc[6], cc[7], cc[8], cc[9] = request[8], request[9], 0x00, 0x02
	return cc
}

func NewCOTPDisconnectMessage(kind uint8) []byte {
	return []byte{
		s7runtime.TPKTVersion, 0x00, 0x00, 0x0b,
		0x06, kind,
		0x00, 0x00, // DST reference
		0x00, 0x01, // SRC reference
		0x00, // reason normal
	}
}

// NewDataFrame wraps an S7 PDU in TPKT and a COTP DT header.
func NewDataFrame(pdu []byte) []byte {
	frame := make([]byte, s7runtime.DataFrameOverhead, s7runtime.DataFrameOverhead+len(pdu))
	frame[0] = s7runtime.TPKTVersion
	binutil.WriteUint16(frame[2:], uint16(s7runtime.DataFrameOverhead+len(pdu)))
	frame[4] = 0x02
	frame[5] = s7runtime.COTPData
	frame[6] = s7runtime.COTPLastDataUnit
	return append(frame, pdu...)
}

// ParseFrame validates the TPKT and COTP headers of a complete frame and
// returns the COTP PDU type with its payload, the S7 PDU for a DT.
func ParseFrame(frame []byte) (uint8, []byte, error) {
	if len(frame) < s7runtime.TPKTHeaderSize+2 || frame[0] != s7runtime.TPKTVersion {
		return 0, nil, errors.Wrap(runtime.ErrProtocolViolation, "not a TPKT frame")
	}
	if int(binutil.ParseUint16(frame[2:])) != len(frame) {
		return 0, nil, errors.Wrap(runtime.ErrProtocolViolation, "TPKT length disagrees with frame")
	}
	li := int(frame[4])
	if s7runtime.TPKTHeaderSize+1+li > len(frame) || li < 1 {
		return 0, nil, errors.Wrapf(runtime.ErrProtocolViolation, "COTP length indicator %d", li)
	}
	kind := frame[5] & 0xf0
	switch kind {
	case s7runtime.COTPData:
		if li != 2 {
			return 0, nil, errors.Wrapf(runtime.ErrProtocolViolation, "COTP DT length indicator %d", li)
		}
	case s7runtime.COTPConnectRequest, s7runtime.COTPConnectConfirm,
		s7runtime.COTPDisconnectRequest, s7runtime.COTPDisconnectConfirm:
	default:
		return 0, nil, errors.Wrapf(runtime.ErrProtocolViolation, "COTP PDU type 0x%02x", frame[5])
	}
	return kind, frame[s7runtime.TPKTHeaderSize+1+li:], nil
}

// FrameReader reassembles TPKT frames from a byte stream. A frame longer
// than maxFrameSize is reported once and then dropped as its bytes arrive.
type FrameReader struct {
	buf  []byte
	skip int
}

func (r *FrameReader) Write(b []byte) {
	r.buf = append(r.buf, b...)
}

func (r *FrameReader) Buffered() int {
	return len(r.buf)
}

// Next returns the next complete frame, or nil until enough bytes arrived.
func (r *FrameReader) Next() ([]byte, error) {
	if r.skip > 0 {
		n := r.skip
		if n > len(r.buf) {
			n = len(r.buf)
		}
		r.consume(n)
		r.skip -= n
		if r.skip > 0 {
			return nil, nil
		}
	}
	if len(r.buf) < s7runtime.TPKTHeaderSize {
		return nil, nil
	}
	if r.buf[0] != s7runtime.TPKTVersion {
		return nil, errors.Wrapf(runtime.ErrProtocolViolation, "TPKT version 0x%02x", r.buf[0])
	}
	n := int(binutil.ParseUint16(r.buf[2:]))
	if n < s7runtime.TPKTHeaderSize+3 {
		return nil, errors.Wrapf(runtime.ErrProtocolViolation, "TPKT length %d", n)
	}
	if n > maxFrameSize {
		r.skip = n
		return nil, errors.Wrapf(runtime.ErrMalformedResponse, "TPKT length %d exceeds %d", n, maxFrameSize)
	}
	if len(r.buf) < n {
		return nil, nil
	}
	frame := binutil.Dup(r.buf[:n])
	r.consume(n)
	return frame, nil
}

func (r *FrameReader) consume(n int) {
	r.buf = r.buf[n:]
	if len(r.buf) == 0 {
		r.buf = nil
	}
}

func (r *FrameReader) Reset() {
	r.buf = nil
	r.skip = 0
}
