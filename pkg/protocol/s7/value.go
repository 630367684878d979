package s7

import (
	"github.com/pkg/errors"
	s7runtime "s7link/pkg/protocol/s7/runtime"
	"s7link/pkg/runtime"
	"s7link/pkg/runtime/constant"
	"s7link/pkg/utils/binutil"
)

// DecodeValue turns the raw bytes of a tag into its typed value. A single
// element decodes to a scalar, more than one to a List of per-element values.
func DecodeValue(a *s7runtime.TagAddress, data []byte) (runtime.Value, error) {
	if len(data) != a.ByteLength() {
		return nil, errors.Wrapf(runtime.ErrMalformedResponse, "%s: got %d bytes, want %d", a, len(data), a.ByteLength())
	}

	if a.DataType == constant.BOOL {
		if a.Count == 1 {
			// single bits are read with transport size BIT, the value sits in bit 0
			return runtime.Bool(data[0]&0x01 != 0), nil
		}
		l := make(runtime.List, 0, a.Count)
		for _, b := range binutil.ExpandBool(data, int(a.Bit), a.Count) {
			l = append(l, runtime.Bool(b))
		}
		return l, nil
	}

	size := a.DataType.ElementSize(a.StrLen)
	if a.Count == 1 {
		return decodeElement(a, data[:size])
	}
	l := make(runtime.List, 0, a.Count)
	for i := 0; i < a.Count; i++ {
		v, err := decodeElement(a, data[i*size:(i+1)*size])
		if err != nil {
			return nil, errors.Wrapf(err, "element %d", i)
		}
		l = append(l, v)
	}
	return l, nil
}

func decodeElement(a *s7runtime.TagAddress, b []byte) (runtime.Value, error) {
	switch a.DataType {
	case constant.BYTE, constant.USINT:
		return runtime.Uint8(b[0]), nil
	case constant.SINT:
		return runtime.Int8(int8(b[0])), nil
	case constant.WORD, constant.UINT:
		return runtime.Uint16(binutil.ParseUint16(b)), nil
	case constant.INT:
		return runtime.Int16(int16(binutil.ParseUint16(b))), nil
	case constant.DWORD, constant.UDINT:
		return runtime.Uint32(binutil.ParseUint32(b)), nil
	case constant.DINT:
		return runtime.Int32(int32(binutil.ParseUint32(b))), nil
	case constant.LWORD, constant.ULINT:
		return runtime.Uint64(binutil.ParseUint64(b)), nil
	case constant.LINT:
		return runtime.Int64(int64(binutil.ParseUint64(b))), nil
	case constant.REAL:
		return runtime.Float32(binutil.ParseFloat32(b)), nil
	case constant.LREAL:
		return runtime.Float64(binutil.ParseFloat64(b)), nil
	case constant.CHAR:
		return runtime.String(b[:1]), nil
	case constant.STRING:
		capacity, length := int(b[0]), int(b[1])
		if length > capacity || length > len(b)-2 {
			return nil, errors.Wrapf(runtime.ErrMalformedResponse, "%s: string length %d exceeds capacity %d", a, length, capacity)
		}
		return runtime.String(b[2 : 2+length]), nil
	}
	return nil, errors.Wrapf(runtime.ErrMalformedResponse, "%s: no decoding for %s", a, a.DataType)
}

// EncodeValue lays out v the way the tag stores it in PLC memory. BOOL tags
// yield one byte per element holding 0 or 1.
func EncodeValue(a *s7runtime.TagAddress, v runtime.Value) ([]byte, error) {
	if err := a.Check(v); err != nil {
		return nil, err
	}
	elems, ok := v.(runtime.List)
	if !ok {
		elems = runtime.List{v}
	}

	if a.DataType == constant.BOOL {
		out := make([]byte, 0, len(elems))
		for _, e := range elems {
			if bool(e.(runtime.Bool)) {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
		return out, nil
	}

	size := a.DataType.ElementSize(a.StrLen)
	out := make([]byte, size*len(elems))
	for i, e := range elems {
		if err := encodeElement(a, e, out[i*size:(i+1)*size]); err != nil {
			return nil, errors.Wrapf(err, "element %d", i)
		}
	}
	return out, nil
}

func encodeElement(a *s7runtime.TagAddress, v runtime.Value, b []byte) error {
	switch a.DataType {
	case constant.BYTE, constant.USINT, constant.SINT:
		b[0] = byte(integer(v))
	case constant.WORD, constant.UINT, constant.INT:
		binutil.WriteUint16(b, uint16(integer(v)))
	case constant.DWORD, constant.UDINT, constant.DINT:
		binutil.WriteUint32(b, uint32(integer(v)))
	case constant.LWORD, constant.ULINT, constant.LINT:
		binutil.WriteUint64(b, integer(v))
	case constant.REAL:
		binutil.WriteFloat32(b, float32(v.(runtime.Float32)))
	case constant.LREAL:
		switch f := v.(type) {
		case runtime.Float32:
			binutil.WriteFloat64(b, float64(f))
		case runtime.Float64:
			binutil.WriteFloat64(b, float64(f))
		}
	case constant.CHAR:
		switch c := v.(type) {
		case runtime.String:
			b[0] = c[0]
		case runtime.Uint8:
			b[0] = byte(c)
		}
	case constant.STRING:
		s := v.(runtime.String)
		b[0] = byte(a.StrLen)
		b[1] = byte(len(s))
		copy(b[2:], s)
	default:
		return errors.Wrapf(runtime.ErrTypeMismatch, "no encoding for %s", a.DataType)
	}
	return nil
}

// integer returns the two's complement bits of an integer value, sign extended.
func integer(v runtime.Value) uint64 {
	switch n := v.(type) {
	case runtime.Int8:
		return uint64(int64(n))
	case runtime.Int16:
		return uint64(int64(n))
	case runtime.Int32:
		return uint64(int64(n))
	case runtime.Int64:
		return uint64(n)
	case runtime.Uint8:
		return uint64(n)
	case runtime.Uint16:
		return uint64(n)
	case runtime.Uint32:
		return uint64(n)
	case runtime.Uint64:
		return uint64(n)
	}
	return 0
}
