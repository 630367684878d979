package simulator

import (
	"s7link/pkg/protocol/s7"
	s7runtime "s7link/pkg/protocol/s7/runtime"
	"s7link/pkg/utils/binutil"
)

// anyItem is a decoded S7ANY pointer.
type anyItem struct {
	transportSize uint8
	count         int
	key           areaKey
	address       int
}

// offset is the item's start in its area, in bytes for byte ranges and by
// number for timers and counters.
func (it anyItem) offset() int {
	if it.timerOrCounter() {
		return it.address
	}
	return it.address >> 3
}

func (it anyItem) timerOrCounter() bool {
	return it.transportSize == s7runtime.TransportTimer || it.transportSize == s7runtime.TransportCounter
}

var elementSize = map[uint8]int{
	s7runtime.TransportByte:  1,
	s7runtime.TransportChar:  1,
	s7runtime.TransportWord:  2,
	s7runtime.TransportInt:   2,
	s7runtime.TransportDWord: 4,
	s7runtime.TransportDInt:  4,
	s7runtime.TransportReal:  4,
}

func parseItems(param []byte) ([]anyItem, bool) {
	n := int(param[1])
	r := binutil.NewReader(param[2:])
	items := make([]anyItem, 0, n)
	for i := 0; i < n; i++ {
		b, err := r.Next(s7runtime.ReadItemSize)
		if err != nil || b[0] != 0x12 || b[1] != 0x0a || b[2] != s7runtime.SyntaxIDAny {
			return nil, false
		}
		address := int(b[9])<<16 | int(b[10])<<8 | int(b[11])
		items = append(items, anyItem{
			transportSize: b[3],
			count:         int(binutil.ParseUint16(b[4:])),
			key:           areaKey{area: b[8], dbNumber: binutil.ParseUint16(b[6:])},
			address:       address,
		})
	}
	return items, r.Len() == 0
}

func (d *Device) setupCommunication(p *s7.PDU) ([]byte, []byte) {
	if len(p.Param) < 8 {
		return nil, nil
	}
	pdu := binutil.ParseUint16(p.Param[6:])
	if pdu > d.pduLength {
		pdu = d.pduLength
	}
	param := []byte{s7runtime.FunctionSetupCommunication, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00}
	binutil.WriteUint16(param[6:], pdu)
	return param, []byte{}
}

func (d *Device) readVar(p *s7.PDU) ([]byte, []byte) {
	items, ok := parseItems(p.Param)
	if !ok {
		return nil, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	data := make([]byte, 0)
	for i, it := range items {
		rc, ts, value := d.readItem(it)
		head := []byte{rc, ts, 0x00, 0x00}
		length := len(value) * 8
		switch ts {
		case s7runtime.DataBit:
			length = 1
		case s7runtime.DataOctetString:
			length = len(value)
		}
		binutil.WriteUint16(head[2:], uint16(length))
		data = append(data, head...)
		data = append(data, value...)
		if i < len(items)-1 && len(value)%2 == 1 {
			data = append(data, 0x00)
		}
	}
	if s7runtime.AckDataHeaderSize+2+len(data) > int(d.pduLength) {
		return nil, nil
	}
	return []byte{s7runtime.FunctionReadVar, uint8(len(items))}, data
}

func (d *Device) readItem(it anyItem) (uint8, uint8, []byte) {
	if rc, ok := d.failures[failKey{it.key, it.offset()}]; ok {
		return rc, s7runtime.DataNull, nil
	}
	switch {
	case it.transportSize == s7runtime.TransportBit:
		v, ok := d.memory.bit(it.key, it.address)
		if !ok || it.count != 1 {
			return s7runtime.ReturnCodeAddressOutRange, s7runtime.DataNull, nil
		}
		if v {
			return s7runtime.ReturnCodeSuccess, s7runtime.DataBit, []byte{0x01}
		}
		return s7runtime.ReturnCodeSuccess, s7runtime.DataBit, []byte{0x00}
	case it.timerOrCounter():
		b, ok := d.memory.span(it.key, it.address*2, it.count*2)
		if !ok {
			return s7runtime.ReturnCodeAddressOutRange, s7runtime.DataNull, nil
		}
		return s7runtime.ReturnCodeSuccess, s7runtime.DataOctetString, append([]byte(nil), b...)
	}
	size, ok := elementSize[it.transportSize]
	if !ok {
		return s7runtime.ReturnCodeTypeNotSupported, s7runtime.DataNull, nil
	}
	b, ok := d.memory.span(it.key, it.address>>3, it.count*size)
	if !ok {
		return s7runtime.ReturnCodeAddressOutRange, s7runtime.DataNull, nil
	}
	return s7runtime.ReturnCodeSuccess, s7runtime.DataByte, append([]byte(nil), b...)
}

func (d *Device) writeVar(p *s7.PDU) ([]byte, []byte) {
	items, ok := parseItems(p.Param)
	if !ok {
		return nil, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	r := binutil.NewReader(p.Data)
	codes := make([]byte, 0, len(items))
	for i, it := range items {
		head, err := r.Next(4)
		if err != nil {
			return nil, nil
		}
		length := int(binutil.ParseUint16(head[2:]))
		switch head[1] {
		case s7runtime.DataBit, s7runtime.DataByte, s7runtime.DataInteger, s7runtime.DataDInteger:
			length = (length + 7) / 8
		}
		value, err := r.Next(length)
		if err != nil {
			return nil, nil
		}
		if i < len(items)-1 && length%2 == 1 {
			_ = r.Skip(1)
		}
		codes = append(codes, d.writeItem(it, head[1], value))
	}
	return []byte{s7runtime.FunctionWriteVar, uint8(len(items))}, codes
}

func (d *Device) writeItem(it anyItem, dataTransport uint8, value []byte) uint8 {
	if rc, ok := d.failures[failKey{it.key, it.offset()}]; ok {
		return rc
	}
	switch {
	case it.transportSize == s7runtime.TransportBit:
		if dataTransport != s7runtime.DataBit || len(value) != 1 {
			return s7runtime.ReturnCodeTypeInconsistent
		}
		if !d.memory.setBit(it.key, it.address, value[0]&0x01 != 0) {
			return s7runtime.ReturnCodeAddressOutRange
		}
		return s7runtime.ReturnCodeSuccess
	case it.timerOrCounter():
		if len(value) != it.count*2 {
			return s7runtime.ReturnCodeTypeInconsistent
		}
		b, ok := d.memory.span(it.key, it.address*2, len(value))
		if !ok {
			return s7runtime.ReturnCodeAddressOutRange
		}
		copy(b, value)
		return s7runtime.ReturnCodeSuccess
	}
	size, ok := elementSize[it.transportSize]
	if !ok {
		return s7runtime.ReturnCodeTypeNotSupported
	}
	if len(value) != it.count*size {
		return s7runtime.ReturnCodeTypeInconsistent
	}
	b, ok := d.memory.span(it.key, it.address>>3, len(value))
	if !ok {
		return s7runtime.ReturnCodeAddressOutRange
	}
	copy(b, value)
	return s7runtime.ReturnCodeSuccess
}
