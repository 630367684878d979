package runtime

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"s7link/pkg/runtime"
	"s7link/pkg/runtime/constant"
)

const (
	maxDBNumber = 0xffff
	// the S7ANY pointer carries a 24 bit bit-address
	maxByteOffset = 1<<21 - 1
	maxCount      = 0xffff
)

var (
	// DB1.DBW4, DB1.DBX0.3:BOOL, DB1.DBB10:STRING(20)
	reDB = regexp.MustCompile(`^DB(\d+)\.DB([XBWDL])(\d+)(?:\.(\d+))?(?::(.+))?$`)
	// DB1:4:INT[2], DB1:0.3:BOOL
	reDBOffset = regexp.MustCompile(`^DB(\d+):(\d+)(?:\.(\d+))?(?::(.+))?$`)
	// M0.3, MW10, IB2:SINT, Q4:INT[2]
	reIQM = regexp.MustCompile(`^([IQM])([XBWDL])?(\d+)(?:\.(\d+))?(?::(.+))?$`)
	// T5, C0:WORD[4]
	reTC = regexp.MustCompile(`^([TC])(\d+)(?::(.+))?$`)
	// INT, INT[2], STRING(20), STRING(20)[1]
	reType = regexp.MustCompile(`^([A-Z]+)(?:\((\d+)\))?(?:\[(\d+)\])?$`)
)

// TagAddress is a parsed S7 tag expression.
type TagAddress struct {
	Area     S7StoreArea       `json:"area"`
	DBNumber uint16            `json:"dbNumber,omitempty"`
	Offset   uint32            `json:"offset"` // byte offset, or timer/counter number
	Bit      uint8             `json:"bit,omitempty"`
	DataType constant.DataType `json:"dataType"`
	StrLen   int               `json:"strLen,omitempty"`
	Count    int               `json:"count"`
}

// ParseAddress accepts
//
//	[%]DB<n>.DB<X|B|W|D|L><offset>[.<bit>][:<TYPE>]
//	[%]DB<n>:<offset>[.<bit>]:<TYPE>
//	[%]<I|Q|M>[X|B|W|D|L]<offset>[.<bit>][:<TYPE>]
//	[%]<T|C><number>[:WORD]
//
// where TYPE is a data type name with an optional STRING length in
// parentheses and an optional element count in brackets.
func ParseAddress(s string) (*TagAddress, error) {
	addr := strings.ToUpper(strings.TrimSpace(s))
	addr = strings.TrimPrefix(addr, "%")
	if addr == "" {
		return nil, invalid(s, "empty address")
	}

	var (
		a      *TagAddress
		letter string
		bit    string
		suffix string
		err    error
	)
	switch {
	case reDB.MatchString(addr):
		m := reDB.FindStringSubmatch(addr)
		a = &TagAddress{Area: DB}
		if a.DBNumber, err = parseDBNumber(m[1]); err != nil {
			return nil, invalid(s, err.Error())
		}
		letter, bit, suffix = m[2], m[4], m[5]
		if a.Offset, err = parseOffset(m[3]); err != nil {
			return nil, invalid(s, err.Error())
		}
	case reDBOffset.MatchString(addr):
		m := reDBOffset.FindStringSubmatch(addr)
		a = &TagAddress{Area: DB}
		if a.DBNumber, err = parseDBNumber(m[1]); err != nil {
			return nil, invalid(s, err.Error())
		}
		bit, suffix = m[3], m[4]
		if suffix == "" {
			return nil, invalid(s, "a data type is required after the offset")
		}
		if a.Offset, err = parseOffset(m[2]); err != nil {
			return nil, invalid(s, err.Error())
		}
	case reIQM.MatchString(addr):
		m := reIQM.FindStringSubmatch(addr)
		a = &TagAddress{Area: StringToStoreAddress[m[1]]}
		letter, bit, suffix = m[2], m[4], m[5]
		if a.Offset, err = parseOffset(m[3]); err != nil {
			return nil, invalid(s, err.Error())
		}
		if letter == "" && suffix == "" {
			if bit != "" {
				letter = "X"
			} else {
				letter = "B"
			}
		}
	case reTC.MatchString(addr):
		m := reTC.FindStringSubmatch(addr)
		a = &TagAddress{Area: StringToStoreAddress[m[1]]}
		n, err := strconv.ParseUint(m[2], 10, 16)
		if err != nil {
			return nil, invalid(s, "timer or counter number out of range")
		}
		a.Offset = uint32(n)
		suffix = m[3]
		if suffix == "" {
			suffix = "WORD"
		}
	default:
		return nil, invalid(s, "unrecognised address format")
	}

	if err := a.applyType(suffix, letter); err != nil {
		return nil, invalid(s, err.Error())
	}
	if err := a.applyBit(bit); err != nil {
		return nil, invalid(s, err.Error())
	}
	return a, nil
}

func invalid(s string, reason string) error {
	return errors.Wrapf(runtime.ErrInvalidAddress, "%q: %s", s, reason)
}

func parseDBNumber(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 || n > maxDBNumber {
		return 0, errors.Errorf("data block number must be 1-%d", maxDBNumber)
	}
	return uint16(n), nil
}

func parseOffset(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n > maxByteOffset {
		return 0, errors.Errorf("byte offset must be 0-%d", maxByteOffset)
	}
	return uint32(n), nil
}

func (a *TagAddress) applyType(suffix string, letter string) error {
	a.Count = 1
	if suffix == "" {
		switch StringToAddressType[letter] {
		case Bit:
			a.DataType = constant.BOOL
		case Byte:
			a.DataType = constant.BYTE
		case Word:
			a.DataType = constant.WORD
		case DWord:
			a.DataType = constant.DWORD
		case LWord:
			a.DataType = constant.LWORD
		}
		return nil
	}

	m := reType.FindStringSubmatch(suffix)
	if m == nil {
		return errors.Errorf("malformed type %q", suffix)
	}
	dt, ok := constant.StringToDataType[m[1]]
	if !ok {
		return errors.Errorf("unknown data type %q", m[1])
	}
	a.DataType = dt

	if m[2] != "" {
		if dt != constant.STRING {
			return errors.Errorf("a length is only allowed on STRING")
		}
		n, err := strconv.Atoi(m[2])
		if err != nil || n < 1 || n > constant.DefaultStringLength {
			return errors.Errorf("STRING length must be 1-%d", constant.DefaultStringLength)
		}
		a.StrLen = n
	} else if dt == constant.STRING {
		a.StrLen = constant.DefaultStringLength
	}

	if m[3] != "" {
		n, err := strconv.Atoi(m[3])
		if err != nil || n < 1 || n > maxCount {
			return errors.Errorf("element count must be 1-%d", maxCount)
		}
		a.Count = n
	}
	if dt == constant.STRING && a.Count != 1 {
		return errors.Errorf("STRING arrays are not supported")
	}

	if (a.Area == T || a.Area == C) && dt != constant.WORD {
		return errors.Errorf("timers and counters are WORD, not %s", dt)
	}

	if letter != "" {
		at := StringToAddressType[letter]
		switch {
		case at == Bit && dt != constant.BOOL:
			return errors.Errorf("size letter X needs BOOL, not %s", dt)
		case at != Bit && dt == constant.BOOL:
			return errors.Errorf("BOOL needs size letter X")
		case at == Byte && dt == constant.STRING:
		case at != Bit && AddressTypeSize[at] != dt.ElementSize(a.StrLen):
			return errors.Errorf("size letter %s does not match %s", letter, dt)
		}
	}
	return nil
}

func (a *TagAddress) applyBit(bit string) error {
	if bit == "" {
		if a.DataType == constant.BOOL {
			return errors.Errorf("BOOL needs a bit number")
		}
		return nil
	}
	if a.DataType != constant.BOOL {
		return errors.Errorf("a bit number is only allowed on BOOL")
	}
	n, err := strconv.Atoi(bit)
	if err != nil || n > 7 {
		return errors.Errorf("bit number must be 0-7")
	}
	a.Bit = uint8(n)
	return nil
}

// String renders the canonical form, %DB1:4:INT[2], %M0.3:BOOL[1], %T5:WORD[1].
func (a *TagAddress) String() string {
	var b strings.Builder
	b.WriteByte('%')
	switch a.Area {
	case DB:
		b.WriteString("DB")
		b.WriteString(strconv.Itoa(int(a.DBNumber)))
		b.WriteByte(':')
	default:
		b.WriteString(a.Area.String())
	}
	b.WriteString(strconv.FormatUint(uint64(a.Offset), 10))
	if a.DataType == constant.BOOL {
		b.WriteByte('.')
		b.WriteString(strconv.Itoa(int(a.Bit)))
	}
	b.WriteByte(':')
	b.WriteString(a.DataType.String())
	if a.DataType == constant.STRING {
		b.WriteByte('(')
		b.WriteString(strconv.Itoa(a.StrLen))
		b.WriteByte(')')
	}
	b.WriteByte('[')
	b.WriteString(strconv.Itoa(a.Count))
	b.WriteByte(']')
	return b.String()
}

func (a *TagAddress) Type() constant.DataType {
	return a.DataType
}

func (a *TagAddress) Elements() int {
	return a.Count
}

func (a *TagAddress) StringLength() int {
	if a.DataType != constant.STRING {
		return 0
	}
	return a.StrLen
}

// Check validates a value for a write to this tag.
func (a *TagAddress) Check(v runtime.Value) error {
	return runtime.Assignable(a.DataType, a.Count, a.StrLen, v)
}

// ByteLength is the number of bytes the tag spans in PLC memory.
func (a *TagAddress) ByteLength() int {
	switch {
	case a.DataType == constant.BOOL:
		return (int(a.Bit) + a.Count + 7) / 8
	case a.Area == T || a.Area == C:
		return 2 * a.Count
	}
	return a.DataType.ElementSize(a.StrLen) * a.Count
}

// BitAddress is the 24 bit start address of an S7ANY pointer.
func (a *TagAddress) BitAddress() uint32 {
	if a.Area == T || a.Area == C {
		return a.Offset
	}
	return a.Offset<<3 | uint32(a.Bit)
}
