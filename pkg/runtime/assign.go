package runtime

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"s7link/pkg/runtime/constant"
)

var DataTypeKind = map[constant.DataType]Kind{
	constant.BOOL:   KindBool,
	constant.BYTE:   KindUint8,
	constant.WORD:   KindUint16,
	constant.DWORD:  KindUint32,
	constant.LWORD:  KindUint64,
	constant.SINT:   KindInt8,
	constant.USINT:  KindUint8,
	constant.INT:    KindInt16,
	constant.UINT:   KindUint16,
	constant.DINT:   KindInt32,
	constant.UDINT:  KindUint32,
	constant.LINT:   KindInt64,
	constant.ULINT:  KindUint64,
	constant.REAL:   KindFloat32,
	constant.LREAL:  KindFloat64,
	constant.CHAR:   KindString,
	constant.STRING: KindString,
}

// Assignable checks that v can be stored in count elements of dt without loss.
// Integers may only widen within their signedness, floats may only widen, and
// arrays need a List of exactly count elements.
func Assignable(dt constant.DataType, count int, strLen int, v Value) error {
	if v == nil {
		return errors.Wrap(ErrTypeMismatch, "missing value")
	}
	if l, ok := v.(List); ok {
		if len(l) != count {
			return errors.Wrapf(ErrTypeMismatch, "%d values for %s[%d]", len(l), dt, count)
		}
		for i, e := range l {
			if _, nested := e.(List); nested {
				return errors.Wrapf(ErrTypeMismatch, "element %d is a nested list", i)
			}
			if err := assignable(dt, strLen, e); err != nil {
				return errors.Wrapf(err, "element %d", i)
			}
		}
		return nil
	}
	if count != 1 {
		return errors.Wrapf(ErrTypeMismatch, "scalar %s for %s[%d]", v.Kind(), dt, count)
	}
	return assignable(dt, strLen, v)
}

func assignable(dt constant.DataType, strLen int, v Value) error {
	k := v.Kind()
	ok := false
	switch dt {
	case constant.BOOL:
		ok = k == KindBool
	case constant.SINT, constant.INT, constant.DINT, constant.LINT:
		ok = k.Signed() && k.Width() <= dt.ElementSize(0)*8
	case constant.BYTE, constant.WORD, constant.DWORD, constant.LWORD,
		constant.USINT, constant.UINT, constant.UDINT, constant.ULINT:
		ok = k.Unsigned() && k.Width() <= dt.ElementSize(0)*8
	case constant.REAL:
		ok = k == KindFloat32
	case constant.LREAL:
		ok = k == KindFloat32 || k == KindFloat64
	case constant.CHAR:
		switch c := v.(type) {
		case String:
			ok = len(c) == 1
		case Uint8:
			ok = true
		}
	case constant.STRING:
		if s, isString := v.(String); isString {
			if len(s) > strLen {
				return errors.Wrapf(ErrTypeMismatch, "string of %d bytes exceeds STRING(%d)", len(s), strLen)
			}
			ok = true
		}
	}
	if !ok {
		return errors.Wrapf(ErrTypeMismatch, "%s into %s", describe(v), dt)
	}
	return nil
}

// FromInterface converts loosely typed input (JSON or YAML scalars, Go natives,
// strings from a command line) into a Value of the kind dt decodes to.
func FromInterface(x interface{}, dt constant.DataType, count int, strLen int) (Value, error) {
	if v, ok := x.(Value); ok {
		if err := Assignable(dt, count, strLen, v); err != nil {
			return nil, err
		}
		return v, nil
	}
	if count > 1 {
		xs, ok := x.([]interface{})
		if !ok {
			return nil, errors.Wrapf(ErrTypeMismatch, "%T for %s[%d]", x, dt, count)
		}
		if len(xs) != count {
			return nil, errors.Wrapf(ErrTypeMismatch, "%d values for %s[%d]", len(xs), dt, count)
		}
		l := make(List, 0, count)
		for i, e := range xs {
			v, err := scalarFromInterface(e, dt, strLen)
			if err != nil {
				return nil, errors.Wrapf(err, "element %d", i)
			}
			l = append(l, v)
		}
		return l, nil
	}
	if xs, ok := x.([]interface{}); ok && len(xs) == 1 {
		x = xs[0]
	}
	return scalarFromInterface(x, dt, strLen)
}

func scalarFromInterface(x interface{}, dt constant.DataType, strLen int) (Value, error) {
	switch dt {
	case constant.BOOL:
		switch b := x.(type) {
		case bool:
			return Bool(b), nil
		case string:
			v, err := strconv.ParseBool(b)
			if err != nil {
				return nil, errors.Wrapf(ErrTypeMismatch, "%q is not a boolean", b)
			}
			return Bool(v), nil
		}
		return nil, errors.Wrapf(ErrTypeMismatch, "%T into BOOL", x)
	case constant.CHAR, constant.STRING:
		s, ok := x.(string)
		if !ok {
			return nil, errors.Wrapf(ErrTypeMismatch, "%T into %s", x, dt)
		}
		v := String(s)
		if err := assignable(dt, strLen, v); err != nil {
			return nil, err
		}
		return v, nil
	case constant.REAL, constant.LREAL:
		f, err := toFloat(x)
		if err != nil {
			return nil, errors.Wrapf(err, "into %s", dt)
		}
		if dt == constant.REAL {
			if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
				return nil, errors.Wrapf(ErrTypeMismatch, "%v overflows REAL", f)
			}
			return Float32(f), nil
		}
		return Float64(f), nil
	}

	if dt.Signed() {
		i, err := toInt(x)
		if err != nil {
			return nil, errors.Wrapf(err, "into %s", dt)
		}
		bits := dt.ElementSize(0) * 8
		if bits < 64 && (i < -(1<<(bits-1)) || i > (1<<(bits-1))-1) {
			return nil, errors.Wrapf(ErrTypeMismatch, "%d overflows %s", i, dt)
		}
		switch DataTypeKind[dt] {
		case KindInt8:
			return Int8(i), nil
		case KindInt16:
			return Int16(i), nil
		case KindInt32:
			return Int32(i), nil
		default:
			return Int64(i), nil
		}
	}

	u, err := toUint(x)
	if err != nil {
		return nil, errors.Wrapf(err, "into %s", dt)
	}
	bits := dt.ElementSize(0) * 8
	if bits < 64 && u > (1<<bits)-1 {
		return nil, errors.Wrapf(ErrTypeMismatch, "%d overflows %s", u, dt)
	}
	switch DataTypeKind[dt] {
	case KindUint8:
		return Uint8(u), nil
	case KindUint16:
		return Uint16(u), nil
	case KindUint32:
		return Uint32(u), nil
	default:
		return Uint64(u), nil
	}
}

func toFloat(x interface{}) (float64, error) {
	switch n := x.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, errors.Wrapf(ErrTypeMismatch, "%q is not a number", n)
		}
		return f, nil
	}
	return 0, errors.Wrapf(ErrTypeMismatch, "%T is not a number", x)
}

func toInt(x interface{}) (int64, error) {
	switch n := x.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, errors.Wrapf(ErrTypeMismatch, "%d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, errors.Wrapf(ErrTypeMismatch, "%v is not an integer", n)
		}
		return int64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, errors.Wrapf(ErrTypeMismatch, "%q is not an integer", n.String())
		}
		return i, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 0, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrTypeMismatch, "%q is not an integer", n)
		}
		return i, nil
	}
	return 0, errors.Wrapf(ErrTypeMismatch, "%T is not an integer", x)
}

func toUint(x interface{}) (uint64, error) {
	switch n := x.(type) {
	case uint:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	case float64:
		if n != math.Trunc(n) || n < 0 || n >= math.MaxUint64 {
			return 0, errors.Wrapf(ErrTypeMismatch, "%v is not an unsigned integer", n)
		}
		return uint64(n), nil
	case json.Number:
		u, err := strconv.ParseUint(n.String(), 10, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrTypeMismatch, "%q is not an unsigned integer", n.String())
		}
		return u, nil
	case string:
		u, err := strconv.ParseUint(strings.TrimSpace(n), 0, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrTypeMismatch, "%q is not an unsigned integer", n)
		}
		return u, nil
	}
	i, err := toInt(x)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, errors.Wrapf(ErrTypeMismatch, "%d is negative", i)
	}
	return uint64(i), nil
}
