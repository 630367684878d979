package constant

import (
	"encoding/json"
	"fmt"
)

// DataType is an IEC 61131-3 elementary type as declared on a PLC tag.
type DataType int8

const (
	BOOL DataType = iota
	BYTE
	WORD
	DWORD
	LWORD
	SINT
	USINT
	INT
	UINT
	DINT
	UDINT
	LINT
	ULINT
	REAL
	LREAL
	CHAR
	STRING
)

// DefaultStringLength is the capacity of a STRING declared without an explicit length.
const DefaultStringLength = 254

var DataTypeToString = map[DataType]string{
	BOOL:   "BOOL",
	BYTE:   "BYTE",
	WORD:   "WORD",
	DWORD:  "DWORD",
	LWORD:  "LWORD",
	SINT:   "SINT",
	USINT:  "USINT",
	INT:    "INT",
	UINT:   "UINT",
	DINT:   "DINT",
	UDINT:  "UDINT",
	LINT:   "LINT",
	ULINT:  "ULINT",
	REAL:   "REAL",
	LREAL:  "LREAL",
	CHAR:   "CHAR",
	STRING: "STRING",
}

var StringToDataType = map[string]DataType{
	"BOOL":   BOOL,
	"BYTE":   BYTE,
	"WORD":   WORD,
	"DWORD":  DWORD,
	"LWORD":  LWORD,
	"SINT":   SINT,
	"USINT":  USINT,
	"INT":    INT,
	"UINT":   UINT,
	"DINT":   DINT,
	"UDINT":  UDINT,
	"LINT":   LINT,
	"ULINT":  ULINT,
	"REAL":   REAL,
	"LREAL":  LREAL,
	"CHAR":   CHAR,
	"STRING": STRING,
}

// DataTypeSize is the element width in bytes. BOOL occupies a single bit and
// STRING carries a two byte header in front of its characters, see ElementSize.
var DataTypeSize = map[DataType]int{
	BOOL:  1,
	BYTE:  1,
	WORD:  2,
	DWORD: 4,
	LWORD: 8,
	SINT:  1,
	USINT: 1,
	INT:   2,
	UINT:  2,
	DINT:  4,
	UDINT: 4,
	LINT:  8,
	ULINT: 8,
	REAL:  4,
	LREAL: 8,
	CHAR:  1,
}

func (dt DataType) String() string {
	if s, ok := DataTypeToString[dt]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", int8(dt))
}

// ElementSize returns the number of bytes one element occupies in PLC memory.
func (dt DataType) ElementSize(strLen int) int {
	if dt == STRING {
		return strLen + 2
	}
	return DataTypeSize[dt]
}

func (dt DataType) Signed() bool {
	switch dt {
	case SINT, INT, DINT, LINT:
		return true
	}
	return false
}

func (dt DataType) Float() bool {
	return dt == REAL || dt == LREAL
}

func (dt DataType) MarshalJSON() ([]byte, error) {
	if s, ok := DataTypeToString[dt]; ok {
		return json.Marshal(s)
	}
	return nil, fmt.Errorf("unknown data type %d", dt)
}

func (dt *DataType) UnmarshalJSON(bytes []byte) error {
	var s string
	if err := json.Unmarshal(bytes, &s); err != nil {
		return err
	}

	v, ok := StringToDataType[s]
	if !ok {
		return fmt.Errorf("unknown data type %s", s)
	}
	*dt = v
	return nil
}
