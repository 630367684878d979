package runtime

type S7StoreArea int8
type AddressType int8

const (
	I S7StoreArea = iota
	Q
	M
	DB
	T
	C
)

var StoreAddressToString = map[S7StoreArea]string{
	I:  "I",
	Q:  "Q",
	M:  "M",
	DB: "DB",
	T:  "T",
	C:  "C",
}

var StringToStoreAddress = map[string]S7StoreArea{
	"I":  I,
	"Q":  Q,
	"M":  M,
	"DB": DB,
	"T":  T,
	"C":  C,
}

var StoreAreaCode = map[S7StoreArea]uint8{
	I:  0x81,
	Q:  0x82,
	M:  0x83,
	DB: 0x84,
	C:  0x1c,
	T:  0x1d,
}

func (a S7StoreArea) String() string {
	if s, ok := StoreAddressToString[a]; ok {
		return s
	}
	return "?"
}

// size letters of the classic Siemens notation, DB1.DBW4 / MB0 / I0.1
const (
	Bit AddressType = iota
	Byte
	Word
	DWord
	LWord
)

var AddressTypeToString = map[AddressType]string{
	Bit:   "X",
	Byte:  "B",
	Word:  "W",
	DWord: "D",
	LWord: "L",
}

var StringToAddressType = map[string]AddressType{
	"X": Bit,
	"B": Byte,
	"W": Word,
	"D": DWord,
	"L": LWord,
}

// AddressTypeSize is the width in bytes a size letter stands for, 0 for a bit.
var AddressTypeSize = map[AddressType]int{
	Bit:   0,
	Byte:  1,
	Word:  2,
	DWord: 4,
	LWord: 8,
}

// transport size of an S7ANY request item
const (
	TransportBit     uint8 = 0x01
	TransportByte    uint8 = 0x02
	TransportChar    uint8 = 0x03
	TransportWord    uint8 = 0x04
	TransportInt     uint8 = 0x05
	TransportDWord   uint8 = 0x06
	TransportDInt    uint8 = 0x07
	TransportReal    uint8 = 0x08
	TransportCounter uint8 = 0x1c
	TransportTimer   uint8 = 0x1d
)

// transport size of a data item, decides whether its length counts bits or bytes
const (
	DataNull        uint8 = 0x00
	DataBit         uint8 = 0x03
	DataByte        uint8 = 0x04
	DataInteger     uint8 = 0x05
	DataDInteger    uint8 = 0x06
	DataReal        uint8 = 0x07
	DataOctetString uint8 = 0x09
)

const (
	ProtocolID uint8 = 0x32

	RosctrJob     uint8 = 0x01
	RosctrAck     uint8 = 0x02
	RosctrAckData uint8 = 0x03

	FunctionSetupCommunication uint8 = 0xf0
	FunctionReadVar            uint8 = 0x04
	FunctionWriteVar           uint8 = 0x05

	SyntaxIDAny uint8 = 0x10
)

const (
	ReturnCodeReserved         uint8 = 0x00
	ReturnCodeHardwareFault    uint8 = 0x01
	ReturnCodeAccessDenied     uint8 = 0x03
	ReturnCodeAddressOutRange  uint8 = 0x05
	ReturnCodeTypeNotSupported uint8 = 0x06
	ReturnCodeTypeInconsistent uint8 = 0x07
	ReturnCodeObjectNotExist   uint8 = 0x0a
	ReturnCodeSuccess          uint8 = 0xff
)

var ReturnCodeToString = map[uint8]string{
	ReturnCodeReserved:         "reserved",
	ReturnCodeHardwareFault:    "hardware fault",
	ReturnCodeAccessDenied:     "accessing the object not allowed",
	ReturnCodeAddressOutRange:  "address out of range",
	ReturnCodeTypeNotSupported: "data type not supported",
	ReturnCodeTypeInconsistent: "data type inconsistent",
	ReturnCodeObjectNotExist:   "object does not exist",
	ReturnCodeSuccess:          "success",
}

var ErrorClassToString = map[uint8]string{
	0x00: "no error",
	0x81: "application relationship error",
	0x82: "object definition error",
	0x83: "no resources available",
	0x84: "error on service processing",
	0x85: "error on supplies",
	0x87: "access error",
}

const (
	TPKTVersion    uint8 = 0x03
	TPKTHeaderSize       = 4

	COTPConnectRequest    uint8 = 0xe0
	COTPConnectConfirm    uint8 = 0xd0
	COTPDisconnectRequest uint8 = 0x80
	COTPDisconnectConfirm uint8 = 0xc0
	COTPData              uint8 = 0xf0
	COTPLastDataUnit      uint8 = 0x80

	COTPParamTPDUSize    uint8 = 0xc0
	COTPParamCallingTSAP uint8 = 0xc1
	COTPParamCalledTSAP  uint8 = 0xc2

	// 1024 byte TPDUs
	COTPTPDUSize1024 uint8 = 0x0a

	JobHeaderSize     = 10
	AckDataHeaderSize = 12

	// TPKT + COTP DT in front of every S7 PDU
	DataFrameOverhead = TPKTHeaderSize + 3

	ReadItemSize = 12
	// an S7 CPU accepts at most 20 variables per request
	MaxItemsPerPDU = 20

	DefaultPDULength uint16 = 960
	MinPDULength     uint16 = 240
	DefaultPort             = 102
)
