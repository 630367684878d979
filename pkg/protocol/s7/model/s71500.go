package model

// S71500 covers S7-1200 and S7-1500 CPUs with PUT/GET access enabled. They
// answer on rack 0 slot 1 by default.
type S71500 struct {
}

func (s *S71500) LocalTSAP() uint16 {
	return 0x0100
}

func (s *S71500) RemoteTSAP(connectionType uint8, rack uint8, slot uint8) uint16 {
	return rackSlotTSAP(connectionType, rack, slot)
}

func (s *S71500) PDULength() uint16 {
	return 960
}

func (s *S71500) DefaultSlot() uint8 {
	return 1
}
