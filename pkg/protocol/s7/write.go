package s7

import (
	"github.com/pkg/errors"
	s7runtime "s7link/pkg/protocol/s7/runtime"
	"s7link/pkg/runtime"
	"s7link/pkg/runtime/constant"
	"s7link/pkg/utils/binutil"
)

type WriteItem struct {
	Address *s7runtime.TagAddress
	Value   runtime.Value
}

// wireWrite is one Write Var item on the wire. A BOOL tag may take several,
// see boolSpans.
type wireWrite struct {
	transportSize uint8
	count         uint16
	address       uint32
	dataTransport uint8
	data          []byte
}

func (w *wireWrite) paramItem(a *s7runtime.TagAddress) []byte {
	return newS7COMMParameterItem(w.transportSize, w.count, a.DBNumber, s7runtime.StoreAreaCode[a.Area], w.address)
}

func (w *wireWrite) dataItem(last bool) []byte {
	itemBytes := []byte{
		0x00, // Reserved
		w.dataTransport,
		0x00, 0x00, // 数据长度Length
	}
	length := len(w.data) * 8
	switch w.dataTransport {
	case s7runtime.DataBit:
		length = 1
	case s7runtime.DataOctetString:
		length = len(w.data)
	}
	binutil.WriteUint16(itemBytes[2:], uint16(length))
	itemBytes = append(itemBytes, w.data...)
	if !last && len(w.data)%2 == 1 {
		itemBytes = append(itemBytes, 0x00)
	}
	return itemBytes
}

// boolSpan is a run of BOOL elements written as one wire item: a single bit,
// or whole bytes when the run starts on a byte boundary.
type boolSpan struct {
	first int
	count int
	bytes bool
}

// boolSpans splits a BOOL tag into the bits before the first byte boundary,
// the whole bytes after it and the bits left over.
func boolSpans(a *s7runtime.TagAddress) []boolSpan {
	lead := 0
	if a.Bit != 0 {
		lead = 8 - int(a.Bit)
		if lead > a.Count {
			lead = a.Count
		}
	}
	whole := (a.Count - lead) / 8 * 8
	spans := make([]boolSpan, 0, a.Count-whole+1)
	for i := 0; i < lead; i++ {
		spans = append(spans, boolSpan{first: i, count: 1})
	}
	if whole > 0 {
		spans = append(spans, boolSpan{first: lead, count: whole, bytes: true})
	}
	for i := lead + whole; i < a.Count; i++ {
		spans = append(spans, boolSpan{first: i, count: 1})
	}
	return spans
}

// wireCount is the number of wire items a write to a occupies.
func wireCount(a *s7runtime.TagAddress) int {
	if a.DataType == constant.BOOL && a.Area != s7runtime.T && a.Area != s7runtime.C {
		return len(boolSpans(a))
	}
	return 1
}

func wireWrites(item WriteItem) ([]wireWrite, error) {
	a := item.Address
	data, err := EncodeValue(a, item.Value)
	if err != nil {
		return nil, err
	}
	switch {
	case a.Area == s7runtime.T || a.Area == s7runtime.C:
		ts := s7runtime.TransportTimer
		if a.Area == s7runtime.C {
			ts = s7runtime.TransportCounter
		}
		return []wireWrite{{ts, uint16(a.Count), a.BitAddress(), s7runtime.DataOctetString, data}}, nil
	case a.DataType == constant.BOOL:
		spans := boolSpans(a)
		ws := make([]wireWrite, 0, len(spans))
		for _, span := range spans {
			address := a.BitAddress() + uint32(span.first)
			if !span.bytes {
				ws = append(ws, wireWrite{s7runtime.TransportBit, 1, address, s7runtime.DataBit, []byte{data[span.first]}})
				continue
			}
			bits := make([]bool, span.count)
			for i, b := range data[span.first : span.first+span.count] {
				bits[i] = b != 0
			}
			packed := binutil.ShrinkBool(bits)
			ws = append(ws, wireWrite{s7runtime.TransportByte, uint16(len(packed)), address, s7runtime.DataByte, packed})
		}
		return ws, nil
	}
	return []wireWrite{{s7runtime.TransportByte, uint16(len(data)), a.Offset << 3, s7runtime.DataByte, data}}, nil
}

// BuildWriteRequest builds one Write Var job for items, which must fit the PDU.
func BuildWriteRequest(ref uint16, items []WriteItem) ([]byte, error) {
	type pair struct {
		addr *s7runtime.TagAddress
		wire wireWrite
	}
	pairs := make([]pair, 0, len(items))
	for i, item := range items {
		ws, err := wireWrites(item)
		if err != nil {
			return nil, errors.Wrapf(err, "item %d", i)
		}
		for _, w := range ws {
			pairs = append(pairs, pair{item.Address, w})
		}
	}
	if len(pairs) > 0xff {
		return nil, errors.Wrapf(s7runtime.ErrItemTooLarge, "%d write items", len(pairs))
	}

	param := make([]byte, 2, 2+len(pairs)*s7runtime.ReadItemSize)
	param[0] = s7runtime.FunctionWriteVar
	param[1] = uint8(len(pairs))
	data := make([]byte, 0)
	for i, p := range pairs {
		param = append(param, p.wire.paramItem(p.addr)...)
		data = append(data, p.wire.dataItem(i == len(pairs)-1)...)
	}
	return NewDataFrame(NewJobPDU(ref, param, data)), nil
}

// ParseWriteResponse returns one error per item, nil for success. A BOOL tag
// written as several wire items fails with the first failing one.
func ParseWriteResponse(frame []byte, ref uint16, items []WriteItem) ([]error, error) {
	p, err := ParseAckData(frame, ref, s7runtime.FunctionWriteVar)
	if err != nil {
		return nil, err
	}
	wires := 0
	for _, item := range items {
		wires += wireCount(item.Address)
	}
	if int(p.Param[1]) != wires {
		return nil, errors.Wrapf(runtime.ErrMalformedResponse, "response carries %d items, want %d", p.Param[1], wires)
	}
	if len(p.Data) != wires {
		return nil, errors.Wrapf(runtime.ErrMalformedResponse, "%d return codes for %d items", len(p.Data), wires)
	}

	results := make([]error, len(items))
	next := 0
	for i, item := range items {
		for j := 0; j < wireCount(item.Address); j++ {
			rc := p.Data[next]
			next++
			if rc != s7runtime.ReturnCodeSuccess && results[i] == nil {
				results[i] = &s7runtime.ItemError{ReturnCode: rc}
			}
		}
	}
	return results, nil
}
