package plc_test

import (
	"context"
	"net"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"s7link/pkg/plc"
	"s7link/pkg/protocol/s7"
	s7runtime "s7link/pkg/protocol/s7/runtime"
	"s7link/pkg/runtime"
	"s7link/pkg/simulator"
	"s7link/pkg/transport"
)

func TestSystemRegistration(t *testing.T) {
	s := plc.NewSystem()
	_, err := s.Connect("s7:mem://plc")
	assert.True(t, errors.Is(err, plc.ErrNotInitialized))
	assert.True(t, errors.Is(s.Init(), plc.ErrNoDriver))

	require.NoError(t, s.AddDriver(s7.NewDriver()))
	assert.True(t, errors.Is(s.AddDriver(s7.NewDriver()), plc.ErrAlreadyRegistered))
	assert.True(t, errors.Is(s.Init(), plc.ErrNoTransport))

	require.NoError(t, s.AddTransport(transport.NewMemory()))
	assert.True(t, errors.Is(s.AddTransport(transport.NewMemory()), plc.ErrAlreadyRegistered))
	require.NoError(t, s.Init())
	assert.True(t, errors.Is(s.Init(), plc.ErrAlreadyInitialized))
	assert.True(t, errors.Is(s.AddDriver(s7.NewDriver()), plc.ErrAlreadyInitialized))
	assert.True(t, errors.Is(s.AddTransport(transport.NewMemory()), plc.ErrAlreadyInitialized))

	for _, address := range []string{
		"modbus:mem://plc",
		"s7:tcp://plc",
		"s7:mem://",
		"s7mem",
		"s7:mem://plc?rack=9",
		"s7:mem://plc?slot=x",
		"s7:mem://plc?model=s5",
		"s7:mem://plc?pdu=100",
		"s7:mem://plc?type=xx",
	} {
		_, err := s.Connect(address)
		assert.True(t, errors.Is(err, plc.ErrInvalidConnectionString), "%q: %v", address, err)
	}
	assert.Empty(t, s.Connections())
	require.NoError(t, s.Destroy())
	assert.True(t, errors.Is(s.Destroy(), plc.ErrDestroyed))
}

func TestParseConnectionString(t *testing.T) {
	c, err := plc.ParseConnectionString("S7:tcp://192.168.0.1:102?rack=0&slot=1")
	require.NoError(t, err)
	assert.Equal(t, "s7", c.Driver)
	assert.Equal(t, "tcp", c.Transport)
	assert.Equal(t, "192.168.0.1:102", c.Endpoint)
	assert.Equal(t, "1", c.Options.Get("slot"))
	assert.Equal(t, "s7:tcp://192.168.0.1:102?rack=0&slot=1", c.String())

	_, err = plc.ParseConnectionString("s7:tcp://host/path")
	assert.True(t, errors.Is(err, plc.ErrInvalidConnectionString))
}

func TestDestroyWithOpenConnections(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, "s7:mem://plc")

	assert.True(t, errors.Is(f.system.Destroy(), plc.ErrConnectionsStillOpen))
	assert.True(t, errors.Is(f.system.RemoveConnection(c), plc.ErrConnectionsStillOpen))

	f.system.Shutdown()
	assert.Equal(t, plc.Disconnecting, c.State())
	assert.True(t, errors.Is(f.system.Destroy(), plc.ErrConnectionsStillOpen))
	f.system.Loop()
	assert.Equal(t, plc.Disconnected, c.State())
	require.NoError(t, f.system.Destroy())

	_, err := f.system.Connect("s7:mem://plc")
	assert.True(t, errors.Is(err, plc.ErrNotInitialized))
}

// mute answers the handshake but ignores the disconnect request.
type mute struct {
	inner transport.Peer
}

func (m *mute) Receive(b []byte) ([]byte, error) {
	if len(b) > 5 && b[5] == s7runtime.COTPDisconnectRequest {
		return nil, nil
	}
	return m.inner.Receive(b)
}

func TestDisconnectIsBounded(t *testing.T) {
	f := newFixture(t, plc.WithMaxDisconnectPolls(5))
	f.memory.Register("mute", func() transport.Peer {
		return &mute{inner: f.device.Peer()}
	})
	c := f.connect(t, "s7:mem://mute")

	require.NoError(t, f.system.Disconnect(c))
	for i := 0; i < 4; i++ {
		f.system.Loop()
		assert.Equal(t, plc.Disconnecting, c.State())
	}
	f.system.Loop()
	assert.Equal(t, plc.Disconnected, c.State())
	assert.NoError(t, c.Err())
}

func TestDisconnectFailsPendingExecution(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, "s7:mem://plc")

	r := c.NewReadRequest()
	require.NoError(t, r.AddItem("a", "%MB0"))
	e, err := r.Execute()
	require.NoError(t, err)
	f.system.Loop()

	require.NoError(t, f.system.Disconnect(c))
	assert.Equal(t, plc.Failed, e.Status())
	assert.True(t, errors.Is(e.Err(), plc.ErrNotConnected))
	require.NoError(t, r.Destroy())
	require.NoError(t, e.Destroy())

	for i := 0; i < 10 && c.State() != plc.Disconnected; i++ {
		f.system.Loop()
	}
	assert.Equal(t, plc.Disconnected, c.State())
	require.NoError(t, f.system.RemoveConnection(c))

	other := plc.NewSystem()
	assert.True(t, errors.Is(other.Disconnect(c), plc.ErrUnknownConnection))
}

func TestDisconnectWhileConnecting(t *testing.T) {
	f := newFixture(t)
	c, err := f.system.Connect("s7:mem://plc")
	require.NoError(t, err)
	require.NoError(t, f.system.Disconnect(c))
	f.system.Loop()
	assert.Equal(t, plc.Disconnected, c.State())
	assert.Zero(t, f.device.Stats().Connections)
}

func TestManyConnections(t *testing.T) {
	f := newFixture(t)
	other := simulator.New()
	other.Attach(f.memory, "other")
	require.NoError(t, f.device.Set("%MW0", runtime.Uint16(1)))
	require.NoError(t, other.Set("%MW0", runtime.Uint16(2)))

	a := f.connect(t, "s7:mem://plc")
	b := f.connect(t, "s7:mem://other")
	assert.NotEqual(t, a.ID(), b.ID())

	ra, rb := a.NewReadRequest(), b.NewReadRequest()
	require.NoError(t, ra.AddItem("w", "%MW0"))
	require.NoError(t, rb.AddItem("w", "%MW0"))
	ea, err := ra.Execute()
	require.NoError(t, err)
	eb, err := rb.Execute()
	require.NoError(t, err)
	f.await(t, ea)
	f.await(t, eb)

	assert.Equal(t, runtime.Uint16(1), ea.Response().Items[0].Value)
	assert.Equal(t, runtime.Uint16(2), eb.Response().Items[0].Value)
	f.shutdown(t)
}

func TestReadOverTCP(t *testing.T) {
	device := simulator.New()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = device.Serve(ctx, l)
	}()
	require.NoError(t, device.Set("%DB7:0:LREAL", runtime.Float64(2.5)))

	s := plc.NewSystem()
	require.NoError(t, s.AddDriver(s7.NewDriver()))
	require.NoError(t, s.AddTransport(transport.NewTcp(s7runtime.DefaultPort)))
	require.NoError(t, s.Init())
	f := &fixture{system: s, device: device}
	c := f.connect(t, "s7:tcp://"+l.Addr().String())

	r := c.NewReadRequest()
	require.NoError(t, r.AddItem("x", "%DB7:0:LREAL"))
	e, err := r.Execute()
	require.NoError(t, err)
	f.await(t, e)
	require.Equal(t, plc.Succeeded, e.Status(), "%v", e.Err())
	assert.Equal(t, runtime.Float64(2.5), e.Response().Items[0].Value)
	f.shutdown(t)
}
