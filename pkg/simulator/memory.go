package simulator

import (
	s7runtime "s7link/pkg/protocol/s7/runtime"
)

// largest byte offset addressable by a 24 bit S7ANY pointer
const areaLimit = 1 << 16

type areaKey struct {
	area     uint8
	dbNumber uint16
}

// memory is the PLC storage, one growable byte slice per area and data block.
type memory struct {
	areas map[areaKey][]byte
}

func newMemory() *memory {
	return &memory{areas: make(map[areaKey][]byte)}
}

// span returns n bytes at offset, growing the area. ok is false when the
// range lies outside what an S7 CPU could address.
func (m *memory) span(key areaKey, offset int, n int) ([]byte, bool) {
	if offset < 0 || n < 0 || offset+n > areaLimit {
		return nil, false
	}
	if key.area == s7runtime.StoreAreaCode[s7runtime.DB] && key.dbNumber == 0 {
		return nil, false
	}
	b := m.areas[key]
	if len(b) < offset+n {
		grown := make([]byte, offset+n)
		copy(grown, b)
		b = grown
		m.areas[key] = b
	}
	return b[offset : offset+n], true
}

func (m *memory) bit(key areaKey, bitAddress int) (bool, bool) {
	b, ok := m.span(key, bitAddress>>3, 1)
	if !ok {
		return false, false
	}
	return b[0]&(1<<(bitAddress&0x07)) != 0, true
}

func (m *memory) setBit(key areaKey, bitAddress int, v bool) bool {
	b, ok := m.span(key, bitAddress>>3, 1)
	if !ok {
		return false
	}
	if v {
		b[0] |= 1 << (bitAddress & 0x07)
	} else {
		b[0] &^= 1 << (bitAddress & 0x07)
	}
	return true
}
