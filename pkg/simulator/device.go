package simulator

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"
	"s7link/pkg/protocol/s7"
	s7runtime "s7link/pkg/protocol/s7/runtime"
	"s7link/pkg/runtime"
	"s7link/pkg/runtime/constant"
	"s7link/pkg/transport"
)

type failKey struct {
	areaKey
	offset int
}

// Device simulates an S7 CPU: it answers connect, Setup Communication,
// Read Var, Write Var and disconnect requests against in-process memory.
type Device struct {
	mu        sync.Mutex
	memory    *memory
	failures  map[failKey]uint8
	pduLength uint16

	truncateNext atomic.Bool
	padNext      atomic.Int32

	connections atomic.Uint64
	reads       atomic.Uint64
	writes      atomic.Uint64
	frames      atomic.Uint64
}

type Option func(*Device)

// WithPDULength caps the PDU length the device agrees to.
func WithPDULength(n uint16) Option {
	return func(d *Device) {
		d.pduLength = n
	}
}

func New(opts ...Option) *Device {
	d := &Device{
		memory:    newMemory(),
		failures:  make(map[failKey]uint8),
		pduLength: s7runtime.DefaultPDULength,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type Stats struct {
	Connections uint64 `json:"connections"`
	Reads       uint64 `json:"reads"`
	Writes      uint64 `json:"writes"`
	Frames      uint64 `json:"frames"`
}

func (d *Device) Stats() Stats {
	return Stats{
		Connections: d.connections.Load(),
		Reads:       d.reads.Load(),
		Writes:      d.writes.Load(),
		Frames:      d.frames.Load(),
	}
}

// Attach makes the device reachable on the memory transport as name.
func (d *Device) Attach(m *transport.Memory, name string) {
	m.Register(name, func() transport.Peer {
		return d.Peer()
	})
}

// Peer starts a new client session on the device.
func (d *Device) Peer() transport.Peer {
	d.connections.Inc()
	return &peer{device: d}
}

// Fail makes every read or write of the item starting at address answer
// with returnCode. ReturnCodeSuccess removes the failure again.
func (d *Device) Fail(address string, returnCode uint8) error {
	a, err := s7runtime.ParseAddress(address)
	if err != nil {
		return err
	}
	key := failKey{keyOf(a), int(a.Offset)}
	d.mu.Lock()
	defer d.mu.Unlock()
	if returnCode == s7runtime.ReturnCodeSuccess {
		delete(d.failures, key)
	} else {
		d.failures[key] = returnCode
	}
	return nil
}

// TruncateNext cuts the next Read or Write Var answer short.
func (d *Device) TruncateNext() {
	d.truncateNext.Store(true)
}

// PadNext appends n zero bytes to the data of the next Read or Write Var answer.
func (d *Device) PadNext(n int) {
	d.padNext.Store(int32(n))
}

// Set stores v at address the way a CPU holds it in memory.
func (d *Device) Set(address string, v runtime.Value) error {
	a, err := s7runtime.ParseAddress(address)
	if err != nil {
		return err
	}
	data, err := s7.EncodeValue(a, v)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	key := keyOf(a)
	if a.DataType == constant.BOOL {
		for i, b := range data {
			if !d.memory.setBit(key, int(a.BitAddress())+i, b != 0) {
				return errors.Wrapf(runtime.ErrInvalidAddress, "%s is out of range", a)
			}
		}
		return nil
	}
	b, ok := d.memory.span(key, byteOffset(a), len(data))
	if !ok {
		return errors.Wrapf(runtime.ErrInvalidAddress, "%s is out of range", a)
	}
	copy(b, data)
	return nil
}

// Get returns the value stored at address.
// Preset stores loosely typed input, such as a value read from a YAML file,
// converted to the type of the tag.
func (d *Device) Preset(address string, x interface{}) error {
	a, err := s7runtime.ParseAddress(address)
	if err != nil {
		return err
	}
	v, err := runtime.FromInterface(x, a.DataType, a.Count, a.StrLen)
	if err != nil {
		return errors.Wrapf(err, "%s", address)
	}
	return d.Set(address, v)
}

func (d *Device) Get(address string) (runtime.Value, error) {
	a, err := s7runtime.ParseAddress(address)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	key := keyOf(a)
	if a.DataType == constant.BOOL && a.Count == 1 {
		v, ok := d.memory.bit(key, int(a.BitAddress()))
		if !ok {
			return nil, errors.Wrapf(runtime.ErrInvalidAddress, "%s is out of range", a)
		}
		return runtime.Bool(v), nil
	}
	b, ok := d.memory.span(key, byteOffset(a), a.ByteLength())
	if !ok {
		return nil, errors.Wrapf(runtime.ErrInvalidAddress, "%s is out of range", a)
	}
	return s7.DecodeValue(a, append([]byte(nil), b...))
}

func keyOf(a *s7runtime.TagAddress) areaKey {
	return areaKey{area: s7runtime.StoreAreaCode[a.Area], dbNumber: a.DBNumber}
}

// byteOffset is where a tag starts in its area. Timers and counters take
// two bytes each.
func byteOffset(a *s7runtime.TagAddress) int {
	if a.Area == s7runtime.T || a.Area == s7runtime.C {
		return int(a.Offset) * 2
	}
	return int(a.Offset)
}

// handle answers one frame. closing is set once the client asked to disconnect.
func (d *Device) handle(frame []byte) (reply []byte, closing bool) {
	d.frames.Inc()
	kind, payload, err := s7.ParseFrame(frame)
	if err != nil {
		klog.V(2).InfoS("Failed to parse frame", "error", err)
		return nil, true
	}
	switch kind {
	case s7runtime.COTPConnectRequest:
		return s7.NewCOTPConnectConfirm(frame), false
	case s7runtime.COTPDisconnectRequest:
		return s7.NewCOTPDisconnectMessage(s7runtime.COTPDisconnectConfirm), true
	case s7runtime.COTPData:
	default:
		return nil, true
	}

	p, err := s7.ParsePDU(payload)
	if err != nil {
		klog.V(2).InfoS("Failed to parse job", "error", err)
		return s7.NewDataFrame(s7.NewAckDataPDU(0, 0x84, 0x04, nil, nil)), false
	}
	if p.Rosctr != s7runtime.RosctrJob || len(p.Param) < 2 {
		return s7.NewDataFrame(s7.NewAckDataPDU(p.Reference, 0x84, 0x04, nil, nil)), false
	}

	var param, data []byte
	switch p.Param[0] {
	case s7runtime.FunctionSetupCommunication:
		param, data = d.setupCommunication(p)
	case s7runtime.FunctionReadVar:
		d.reads.Inc()
		param, data = d.readVar(p)
	case s7runtime.FunctionWriteVar:
		d.writes.Inc()
		param, data = d.writeVar(p)
	default:
		return s7.NewDataFrame(s7.NewAckDataPDU(p.Reference, 0x81, 0x04, nil, nil)), false
	}
	if param == nil {
		return s7.NewDataFrame(s7.NewAckDataPDU(p.Reference, 0x85, 0x00, nil, nil)), false
	}

	if p.Param[0] != s7runtime.FunctionSetupCommunication {
		if n := d.padNext.Swap(0); n > 0 {
			data = append(data, make([]byte, n)...)
		}
	}
	pdu := s7.NewAckDataPDU(p.Reference, 0, 0, param, data)
	if p.Param[0] != s7runtime.FunctionSetupCommunication && d.truncateNext.Swap(false) {
		pdu = pdu[:len(pdu)-2]
	}
	return s7.NewDataFrame(pdu), false
}
