package model

// S7300 covers S7-300 and S7-400 CPUs, the CPU sits in slot 2.
type S7300 struct {
}

func (s *S7300) LocalTSAP() uint16 {
	return 0x0100
}

func (s *S7300) RemoteTSAP(connectionType uint8, rack uint8, slot uint8) uint16 {
	return rackSlotTSAP(connectionType, rack, slot)
}

func (s *S7300) PDULength() uint16 {
	return 480
}

func (s *S7300) DefaultSlot() uint8 {
	return 2
}

// Logo addresses LOGO! 0BA7 and later by fixed TSAPs, rack and slot are ignored.
type Logo struct {
}

func (l *Logo) LocalTSAP() uint16 {
	return 0x0100
}

func (l *Logo) RemoteTSAP(uint8, uint8, uint8) uint16 {
	return 0x0200
}

func (l *Logo) PDULength() uint16 {
	return 480
}

func (l *Logo) DefaultSlot() uint8 {
	return 0
}
