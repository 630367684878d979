package model

var _ S7Modeler = (*S71500)(nil)
var _ S7Modeler = (*S7300)(nil)
var _ S7Modeler = (*Logo)(nil)

var S7Modelers = map[string]S7Modeler{
	"s7300":  &S7300{},
	"s7400":  &S7300{},
	"s71200": &S71500{},
	"s71500": &S71500{},
	"logo":   &Logo{},
}

const DefaultModel = "s71500"

// connection types carried in the high byte of the remote TSAP
const (
	ConnectionTypePG    uint8 = 0x01
	ConnectionTypeOP    uint8 = 0x02
	ConnectionTypeBasic uint8 = 0x03
)

// S7Modeler knows how a CPU family is addressed during the COTP handshake.
type S7Modeler interface {
	LocalTSAP() uint16
	RemoteTSAP(connectionType uint8, rack uint8, slot uint8) uint16
	// PDULength is proposed in Setup Communication, the CPU may answer with less.
	PDULength() uint16
	DefaultSlot() uint8
}

func rackSlotTSAP(connectionType uint8, rack uint8, slot uint8) uint16 {
	rackSlotByte := (rack*2)<<4 + slot
	return uint16(connectionType)<<8 | uint16(rackSlotByte)
}
