package binutil

import (
	"math"

	"github.com/pkg/errors"
)

var ErrShortBuffer = errors.New("short buffer")

// ParseUint16 big-endian
func ParseUint16(buf []byte) uint16 {
	return uint16(buf[0])<<8 | uint16(buf[1])
}

// ParseUint32 big-endian
func ParseUint32(buf []byte) uint32 {
	return uint32(buf[0])<<24 |
		uint32(buf[1])<<16 |
		uint32(buf[2])<<8 |
		uint32(buf[3])
}

// ParseUint64 big-endian
func ParseUint64(b []byte) uint64 {
	return uint64(ParseUint32(b))<<32 | uint64(ParseUint32(b[4:]))
}

func ParseFloat32(buf []byte) float32 {
	return math.Float32frombits(ParseUint32(buf))
}

func ParseFloat64(buf []byte) float64 {
	return math.Float64frombits(ParseUint64(buf))
}

func WriteUint16(buf []byte, value uint16) {
	buf[0] = byte(value >> 8)
	buf[1] = byte(value)
}

func WriteUint24(buf []byte, value uint32) {
	buf[0] = byte(value >> 16)
	buf[1] = byte(value >> 8)
	buf[2] = byte(value)
}

func WriteUint32(buf []byte, value uint32) {
	buf[0] = byte(value >> 24)
	buf[1] = byte(value >> 16)
	buf[2] = byte(value >> 8)
	buf[3] = byte(value)
}

func WriteUint64(buf []byte, value uint64) {
	WriteUint32(buf, uint32(value>>32))
	WriteUint32(buf[4:], uint32(value))
}

func WriteFloat32(buf []byte, value float32) {
	WriteUint32(buf, math.Float32bits(value))
}

func WriteFloat64(buf []byte, value float64) {
	WriteUint64(buf, math.Float64bits(value))
}

func Uint16ToBytes(value uint16) []byte {
	buf := make([]byte, 2)
	WriteUint16(buf, value)
	return buf
}

// Dup 复制
func Dup(buf []byte) []byte {
	b := make([]byte, len(buf))
	copy(b, buf)
	return b
}

// Reader walks a PDU front to back. Every read is bounds checked and fails with
// ErrShortBuffer instead of indexing past the end.
type Reader struct {
	buf []byte
	off int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) Len() int {
	return len(r.buf) - r.off
}

func (r *Reader) Offset() int {
	return r.off
}

func (r *Reader) Byte() (byte, error) {
	if r.Len() < 1 {
		return 0, errors.Wrapf(ErrShortBuffer, "need 1 byte at offset %d", r.off)
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *Reader) Uint16() (uint16, error) {
	b, err := r.Next(2)
	if err != nil {
		return 0, err
	}
	return ParseUint16(b), nil
}

// Next returns the following n bytes without copying.
func (r *Reader) Next(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, errors.Wrapf(ErrShortBuffer, "need %d bytes at offset %d, have %d", n, r.off, r.Len())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) Skip(n int) error {
	_, err := r.Next(n)
	return err
}

// ExpandBool unpacks count bits starting at bit offset first, LSB first.
func ExpandBool(buf []byte, first int, count int) []bool {
	r := make([]bool, count)
	for i := 0; i < count; i++ {
		bit := first + i
		r[i] = buf[bit>>3]&(1<<(bit&0x07)) != 0
	}
	return r
}

// ShrinkBool packs bools LSB first into len(buf)/8 rounded up bytes.
func ShrinkBool(buf []bool) []byte {
	b := make([]byte, (len(buf)+7)>>3)
	for i, v := range buf {
		if v {
			b[i>>3] |= 1 << (i & 0x07)
		}
	}
	return b
}
