package s7

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"s7link/pkg/plc"
	"s7link/pkg/protocol/s7/model"
	s7runtime "s7link/pkg/protocol/s7/runtime"
)

const Code = "s7"

var _ plc.Driver = (*Driver)(nil)
var _ plc.Session = (*Session)(nil)

// Driver speaks S7comm over ISO-on-TCP to S7 CPUs.
type Driver struct {
}

func NewDriver() *Driver {
	return &Driver{}
}

func (d *Driver) Code() string {
	return Code
}

func (d *Driver) ParseAddress(address string) (plc.Address, error) {
	a, err := s7runtime.ParseAddress(address)
	if err != nil {
		return nil, err
	}
	return a, nil
}

var connectionTypes = map[string]uint8{
	"pg":    model.ConnectionTypePG,
	"op":    model.ConnectionTypeOP,
	"basic": model.ConnectionTypeBasic,
}

// NewSession reads rack, slot, model, type and pdu from the connection
// string options.
func (d *Driver) NewSession(options url.Values) (plc.Session, error) {
	modelName := strings.ToLower(options.Get("model"))
	if modelName == "" {
		modelName = model.DefaultModel
	}
	modeler, ok := model.S7Modelers[modelName]
	if !ok {
		return nil, errors.Wrapf(plc.ErrInvalidConnectionString, "%v: %q", s7runtime.ErrUnsupportedModel, modelName)
	}

	rack, err := uintOption(options, "rack", 0, 7)
	if err != nil {
		return nil, err
	}
	slot, err := uintOption(options, "slot", int(modeler.DefaultSlot()), 31)
	if err != nil {
		return nil, err
	}
	pdu, err := uintOption(options, "pdu", int(modeler.PDULength()), int(s7runtime.DefaultPDULength))
	if err != nil {
		return nil, err
	}
	if pdu < int(s7runtime.MinPDULength) {
		return nil, errors.Wrapf(plc.ErrInvalidConnectionString, "pdu must be at least %d", s7runtime.MinPDULength)
	}
	connectionType := model.ConnectionTypePG
	if t := options.Get("type"); t != "" {
		if connectionType, ok = connectionTypes[strings.ToLower(t)]; !ok {
			return nil, errors.Wrapf(plc.ErrInvalidConnectionString, "connection type %q", t)
		}
	}

	return &Session{
		localTSAP:    modeler.LocalTSAP(),
		remoteTSAP:   modeler.RemoteTSAP(connectionType, uint8(rack), uint8(slot)),
		requestedPDU: uint16(pdu),
	}, nil
}

func uintOption(options url.Values, key string, def int, max int) (int, error) {
	s := options.Get(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > max {
		return 0, errors.Wrapf(plc.ErrInvalidConnectionString, "%s must be 0-%d, got %q", key, max, s)
	}
	return n, nil
}

type phase int

const (
	phaseIdle phase = iota
	phaseConnectConfirm
	phaseSetupCommunication
	phaseEstablished
)

// Session is the S7 state of one connection: COTP connect, Setup
// Communication, then Read/Write Var jobs numbered by PDU reference.
type Session struct {
	localTSAP    uint16
	remoteTSAP   uint16
	requestedPDU uint16
	pduLength    uint16

	phase  phase
	ref    uint16
	reader FrameReader
}

// PDULength is the negotiated PDU length, zero before the handshake completed.
func (s *Session) PDULength() int {
	return int(s.pduLength)
}

func (s *Session) Hello() []byte {
	s.phase = phaseConnectConfirm
	s.reader.Reset()
	return NewCOTPConnectMessage(s.localTSAP, s.remoteTSAP)
}

func (s *Session) Handshake(frame []byte) ([]byte, bool, error) {
	switch s.phase {
	case phaseConnectConfirm:
		if err := ParseConnectConfirm(frame); err != nil {
			return nil, false, err
		}
		s.phase = phaseSetupCommunication
		return BuildSessionRequest(s.nextRef(), s.requestedPDU), false, nil
	case phaseSetupCommunication:
		ack, err := ParseSessionResponse(frame, s.ref)
		if err != nil {
			return nil, false, err
		}
		s.pduLength = ack.PDULength
		if s.pduLength > s.requestedPDU {
			s.pduLength = s.requestedPDU
		}
		s.phase = phaseEstablished
		return nil, true, nil
	}
	return nil, false, errors.Wrap(plc.ErrProtocolViolation, "handshake frame outside the handshake")
}

func (s *Session) Feed(b []byte) {
	s.reader.Write(b)
}

func (s *Session) Frame() ([]byte, error) {
	return s.reader.Next()
}

func (s *Session) nextRef() uint16 {
	s.ref++
	if s.ref == 0 {
		s.ref = 1
	}
	return s.ref
}

// Prepare splits items over as many jobs as the negotiated PDU length needs.
func (s *Session) Prepare(kind plc.RequestKind, items []*plc.Item) ([]plc.Exchange, error) {
	if s.phase != phaseEstablished {
		return nil, plc.ErrNotConnected
	}
	addrs := make([]*s7runtime.TagAddress, len(items))
	costs := make([]itemCost, len(items))
	for i, item := range items {
		a, ok := item.Address.(*s7runtime.TagAddress)
		if !ok {
			return nil, errors.Wrapf(plc.ErrInvalidAddress, "%s is not an S7 address", item.Address)
		}
		addrs[i] = a
		if kind == plc.WriteRequestKind {
			costs[i] = writeCost(a)
		} else {
			costs[i] = readCost(a)
		}
	}
	groups, err := plan(costs, int(s.pduLength))
	if err != nil {
		return nil, err
	}

	exchanges := make([]plc.Exchange, 0, len(groups))
	for _, group := range groups {
		gi := make([]*plc.Item, len(group))
		ga := make([]*s7runtime.TagAddress, len(group))
		for j, idx := range group {
			gi[j], ga[j] = items[idx], addrs[idx]
		}
		ref := s.nextRef()
		if kind == plc.WriteRequestKind {
			writes := make([]WriteItem, len(gi))
			for j := range gi {
				writes[j] = WriteItem{Address: ga[j], Value: gi[j].Value}
			}
			frame, err := BuildWriteRequest(ref, writes)
			if err != nil {
				return nil, err
			}
			exchanges = append(exchanges, &writeExchange{ref: ref, pduLength: int(s.pduLength), frame: frame, items: gi, writes: writes})
			continue
		}
		exchanges = append(exchanges, &readExchange{ref: ref, pduLength: int(s.pduLength), frame: BuildReadRequest(ref, ga), items: gi, addrs: ga})
	}
	return exchanges, nil
}

func (s *Session) Goodbye() []byte {
	return NewCOTPDisconnectMessage(s7runtime.COTPDisconnectRequest)
}

func (s *Session) Closed(frame []byte) bool {
	kind, _, err := ParseFrame(frame)
	return err == nil && (kind == s7runtime.COTPDisconnectConfirm || kind == s7runtime.COTPDisconnectRequest)
}

type readExchange struct {
	ref       uint16
	pduLength int
	frame     []byte
	items     []*plc.Item
	addrs     []*s7runtime.TagAddress
}

func (e *readExchange) Request() []byte {
	return e.frame
}

func (e *readExchange) Response(frame []byte) error {
	if err := checkPDULength(frame, e.pduLength); err != nil {
		return err
	}
	results, err := ParseReadResponse(frame, e.ref, e.addrs)
	if err != nil {
		return deviceErrorOnItems(err, e.items)
	}
	for i, r := range results {
		e.items[i].Value, e.items[i].Err = r.Value, r.Err
	}
	return nil
}

type writeExchange struct {
	ref       uint16
	pduLength int
	frame     []byte
	items     []*plc.Item
	writes    []WriteItem
}

func (e *writeExchange) Request() []byte {
	return e.frame
}

func (e *writeExchange) Response(frame []byte) error {
	if err := checkPDULength(frame, e.pduLength); err != nil {
		return err
	}
	results, err := ParseWriteResponse(frame, e.ref, e.writes)
	if err != nil {
		return deviceErrorOnItems(err, e.items)
	}
	for i, r := range results {
		e.items[i].Err = r
	}
	return nil
}

// checkPDULength rejects a response PDU longer than the negotiated length.
func checkPDULength(frame []byte, pduLength int) error {
	if n := len(frame) - s7runtime.DataFrameOverhead; n > pduLength {
		return errors.Wrapf(plc.ErrMalformedResponse, "response PDU of %d bytes, negotiated %d", n, pduLength)
	}
	return nil
}

// deviceErrorOnItems fails every item of the job with a header error; any
// other error fails the job.
func deviceErrorOnItems(err error, items []*plc.Item) error {
	var de *s7runtime.DeviceError
	if !errors.As(err, &de) {
		return err
	}
	for _, item := range items {
		item.Err = de
	}
	return nil
}
