package runtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type Kind int8

const (
	KindBool Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindList
)

var KindToString = map[Kind]string{
	KindBool:    "bool",
	KindInt8:    "int8",
	KindInt16:   "int16",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindUint8:   "uint8",
	KindUint16:  "uint16",
	KindUint32:  "uint32",
	KindUint64:  "uint64",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindString:  "string",
	KindList:    "list",
}

func (k Kind) String() string {
	if s, ok := KindToString[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a typed PLC value. The set of implementations is closed: Bool, the
// sized integers, Float32, Float64, String and List.
type Value interface {
	Kind() Kind
	// Interface returns the value as a plain Go value, []interface{} for a List.
	Interface() interface{}
	String() string
	isValue()
}

type (
	Bool    bool
	Int8    int8
	Int16   int16
	Int32   int32
	Int64   int64
	Uint8   uint8
	Uint16  uint16
	Uint32  uint32
	Uint64  uint64
	Float32 float32
	Float64 float64
	String  string
	List    []Value
)

func (Bool) Kind() Kind    { return KindBool }
func (Int8) Kind() Kind    { return KindInt8 }
func (Int16) Kind() Kind   { return KindInt16 }
func (Int32) Kind() Kind   { return KindInt32 }
func (Int64) Kind() Kind   { return KindInt64 }
func (Uint8) Kind() Kind   { return KindUint8 }
func (Uint16) Kind() Kind  { return KindUint16 }
func (Uint32) Kind() Kind  { return KindUint32 }
func (Uint64) Kind() Kind  { return KindUint64 }
func (Float32) Kind() Kind { return KindFloat32 }
func (Float64) Kind() Kind { return KindFloat64 }
func (String) Kind() Kind  { return KindString }
func (List) Kind() Kind    { return KindList }

func (v Bool) Interface() interface{}    { return bool(v) }
func (v Int8) Interface() interface{}    { return int8(v) }
func (v Int16) Interface() interface{}   { return int16(v) }
func (v Int32) Interface() interface{}   { return int32(v) }
func (v Int64) Interface() interface{}   { return int64(v) }
func (v Uint8) Interface() interface{}   { return uint8(v) }
func (v Uint16) Interface() interface{}  { return uint16(v) }
func (v Uint32) Interface() interface{}  { return uint32(v) }
func (v Uint64) Interface() interface{}  { return uint64(v) }
func (v Float32) Interface() interface{} { return float32(v) }
func (v Float64) Interface() interface{} { return float64(v) }
func (v String) Interface() interface{}  { return string(v) }
func (v List) Interface() interface{} {
	out := make([]interface{}, 0, len(v))
	for _, e := range v {
		out = append(out, e.Interface())
	}
	return out
}

func (v Bool) String() string    { return strconv.FormatBool(bool(v)) }
func (v Int8) String() string    { return strconv.FormatInt(int64(v), 10) }
func (v Int16) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v Int32) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v Int64) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v Uint8) String() string   { return strconv.FormatUint(uint64(v), 10) }
func (v Uint16) String() string  { return strconv.FormatUint(uint64(v), 10) }
func (v Uint32) String() string  { return strconv.FormatUint(uint64(v), 10) }
func (v Uint64) String() string  { return strconv.FormatUint(uint64(v), 10) }
func (v Float32) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 32) }
func (v Float64) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v String) String() string  { return strconv.Quote(string(v)) }
func (v List) String() string {
	es := make([]string, 0, len(v))
	for _, e := range v {
		es = append(es, e.String())
	}
	return "[" + strings.Join(es, " ") + "]"
}

func (Bool) isValue()    {}
func (Int8) isValue()    {}
func (Int16) isValue()   {}
func (Int32) isValue()   {}
func (Int64) isValue()   {}
func (Uint8) isValue()   {}
func (Uint16) isValue()  {}
func (Uint32) isValue()  {}
func (Uint64) isValue()  {}
func (Float32) isValue() {}
func (Float64) isValue() {}
func (String) isValue()  {}
func (List) isValue()    {}

func (v List) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Width returns the storage width of a scalar kind in bits, 0 for strings and lists.
func (k Kind) Width() int {
	switch k {
	case KindBool:
		return 1
	case KindInt8, KindUint8:
		return 8
	case KindInt16, KindUint16:
		return 16
	case KindInt32, KindUint32, KindFloat32:
		return 32
	case KindInt64, KindUint64, KindFloat64:
		return 64
	}
	return 0
}

func (k Kind) Signed() bool {
	switch k {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return true
	}
	return false
}

func (k Kind) Unsigned() bool {
	switch k {
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return true
	}
	return false
}

func (k Kind) Float() bool {
	return k == KindFloat32 || k == KindFloat64
}

// Equal reports whether two values have the same kind and content. Lists are
// compared element by element.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	la, ok := a.(List)
	if !ok {
		return a == b
	}
	lb := b.(List)
	if len(la) != len(lb) {
		return false
	}
	for i := range la {
		if !Equal(la[i], lb[i]) {
			return false
		}
	}
	return true
}

func describe(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s(%s)", v.Kind(), v)
}
