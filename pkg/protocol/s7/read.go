package s7

import (
	"github.com/pkg/errors"
	s7runtime "s7link/pkg/protocol/s7/runtime"
	"s7link/pkg/runtime"
	"s7link/pkg/runtime/constant"
	"s7link/pkg/utils/binutil"
)

// ItemResult is the outcome of one item of a batched request.
type ItemResult struct {
	Value runtime.Value
	Err   error
}

// readSpec returns the S7ANY transport size, element count and bit address a
// tag is read with. Single bits use BIT, timers and counters their own
// transport sizes, everything else a byte range.
func readSpec(a *s7runtime.TagAddress) (uint8, uint16, uint32) {
	switch {
	case a.Area == s7runtime.T:
		return s7runtime.TransportTimer, uint16(a.Count), a.BitAddress()
	case a.Area == s7runtime.C:
		return s7runtime.TransportCounter, uint16(a.Count), a.BitAddress()
	case a.DataType == constant.BOOL && a.Count == 1:
		return s7runtime.TransportBit, 1, a.BitAddress()
	}
	return s7runtime.TransportByte, uint16(a.ByteLength()), a.Offset << 3
}

func newS7COMMParameterItem(transportSize uint8, length uint16, dbNumber uint16, zone uint8, address uint32) []byte {
	itemBytes := []byte{
		0x12, // 结构标识
		0x0a, // 此字节往后的字节长度
		s7runtime.SyntaxIDAny,
		transportSize,
		0x00, 0x00, // 数据长度
		0x00, 0x00, // 数据块编号
		zone,
		0x00, 0x00, 0x00, // Byte Address(18-3) BitAdress(2-0)
	}
	binutil.WriteUint16(itemBytes[4:], length)
	binutil.WriteUint16(itemBytes[6:], dbNumber)
	binutil.WriteUint24(itemBytes[9:], address)
	return itemBytes
}

func newReadParameterItem(a *s7runtime.TagAddress) []byte {
	ts, count, address := readSpec(a)
	return newS7COMMParameterItem(ts, count, a.DBNumber, s7runtime.StoreAreaCode[a.Area], address)
}

// BuildReadRequest builds one Read Var job for items, which must fit the PDU.
func BuildReadRequest(ref uint16, items []*s7runtime.TagAddress) []byte {
	param := make([]byte, 2, 2+len(items)*s7runtime.ReadItemSize)
	param[0] = s7runtime.FunctionReadVar
	param[1] = uint8(len(items))
	for _, item := range items {
		param = append(param, newReadParameterItem(item)...)
	}
	return NewDataFrame(NewJobPDU(ref, param, nil))
}

// ParseReadResponse decodes the answer to job ref. A bad item return code or an
// undecodable value fails that item only; a response that cannot be walked
// fails as a whole.
func ParseReadResponse(frame []byte, ref uint16, items []*s7runtime.TagAddress) ([]ItemResult, error) {
	p, err := ParseAckData(frame, ref, s7runtime.FunctionReadVar)
	if err != nil {
		return nil, err
	}
	if int(p.Param[1]) != len(items) {
		return nil, errors.Wrapf(runtime.ErrMalformedResponse, "response carries %d items, want %d", p.Param[1], len(items))
	}

	results := make([]ItemResult, len(items))
	r := binutil.NewReader(p.Data)
	for i, item := range items {
		data, err := nextDataItem(r, i == len(items)-1)
		if err != nil {
			var ie *s7runtime.ItemError
			if errors.As(err, &ie) {
				results[i].Err = err
				continue
			}
			return nil, errors.Wrapf(err, "item %d", i)
		}
		results[i].Value, results[i].Err = DecodeValue(item, data)
	}
	if r.Len() != 0 {
		return nil, errors.Wrapf(runtime.ErrMalformedResponse, "%d bytes after the last item", r.Len())
	}
	return results, nil
}

// nextDataItem reads one data item and its fill byte. The item's own failure
// is an *ItemError, an item that runs off the PDU is malformed.
func nextDataItem(r *binutil.Reader, last bool) ([]byte, error) {
	head, err := r.Next(4)
	if err != nil {
		return nil, errors.Wrap(runtime.ErrMalformedResponse, err.Error())
	}
	rc, ts, length := head[0], head[1], int(binutil.ParseUint16(head[2:]))
	n, err := dataLength(ts, length)
	if err != nil {
		return nil, err
	}
	data, err := r.Next(n)
	if err != nil {
		return nil, errors.Wrap(runtime.ErrMalformedResponse, err.Error())
	}
	// some CPUs pad the last item too
	if n%2 == 1 && (!last && r.Len() > 0 || last && r.Len() == 1) {
		_ = r.Skip(1)
	}
	if rc != s7runtime.ReturnCodeSuccess {
		return nil, &s7runtime.ItemError{ReturnCode: rc}
	}
	return data, nil
}

func dataLength(ts uint8, length int) (int, error) {
	switch ts {
	case s7runtime.DataNull:
		return 0, nil
	case s7runtime.DataBit, s7runtime.DataByte, s7runtime.DataInteger, s7runtime.DataDInteger:
		return (length + 7) / 8, nil
	case s7runtime.DataReal, s7runtime.DataOctetString:
		return length, nil
	}
	return 0, errors.Wrapf(runtime.ErrMalformedResponse, "data transport size 0x%02x", ts)
}
