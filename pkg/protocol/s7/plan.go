package s7

import (
	"github.com/pkg/errors"
	s7runtime "s7link/pkg/protocol/s7/runtime"
)

const (
	requestOverhead  = s7runtime.JobHeaderSize + 2
	responseOverhead = s7runtime.AckDataHeaderSize + 2
)

type itemCost struct {
	request  int
	response int
	wires    int
}

func readCost(a *s7runtime.TagAddress) itemCost {
	n := a.ByteLength()
	return itemCost{
		request:  s7runtime.ReadItemSize,
		response: 4 + n + n%2,
		wires:    1,
	}
}

func writeCost(a *s7runtime.TagAddress) itemCost {
	if wireCount(a) == 1 {
		n := a.ByteLength()
		return itemCost{
			request:  s7runtime.ReadItemSize + 4 + n + n%2,
			response: 1,
			wires:    1,
		}
	}
	var c itemCost
	for _, span := range boolSpans(a) {
		// a bit on its own is 4 header bytes, the value and a fill byte
		n := 1
		if span.bytes {
			n = span.count / 8
		}
		c.request += s7runtime.ReadItemSize + 4 + n + n%2
		c.response++
		c.wires++
	}
	return c
}

// plan groups consecutive items into PDUs so that neither a request nor its
// response exceeds pduLength and no PDU carries more than MaxItemsPerPDU items.
func plan(costs []itemCost, pduLength int) ([][]int, error) {
	groups := make([][]int, 0, 1)
	var (
		group    []int
		request  = requestOverhead
		response = responseOverhead
		wires    = 0
	)
	for i, c := range costs {
		if requestOverhead+c.request > pduLength || responseOverhead+c.response > pduLength || c.wires > s7runtime.MaxItemsPerPDU {
			return nil, errors.Wrapf(s7runtime.ErrItemTooLarge, "item %d needs %d request and %d response bytes, PDU is %d", i, c.request, c.response, pduLength)
		}
		if len(group) > 0 && (request+c.request > pduLength || response+c.response > pduLength || wires+c.wires > s7runtime.MaxItemsPerPDU) {
			groups = append(groups, group)
			group, request, response, wires = nil, requestOverhead, responseOverhead, 0
		}
		group = append(group, i)
		request += c.request
		response += c.response
		wires += c.wires
	}
	if len(group) > 0 {
		groups = append(groups, group)
	}
	return groups, nil
}
