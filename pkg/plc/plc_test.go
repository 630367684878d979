package plc_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"s7link/pkg/plc"
	"s7link/pkg/protocol/s7"
	"s7link/pkg/simulator"
	"s7link/pkg/transport"
)

type fixture struct {
	system *plc.System
	memory *transport.Memory
	device *simulator.Device
}

func newFixture(t *testing.T, opts ...plc.Option) *fixture {
	t.Helper()
	return newDeviceFixture(t, simulator.New(), opts...)
}

// newDeviceFixture serves device as "plc" on a fresh memory transport.
func newDeviceFixture(t *testing.T, device *simulator.Device, opts ...plc.Option) *fixture {
	t.Helper()
	f := &fixture{
		system: plc.NewSystem(opts...),
		memory: transport.NewMemory(),
		device: device,
	}
	f.device.Attach(f.memory, "plc")
	require.NoError(t, f.system.AddDriver(s7.NewDriver()))
	require.NoError(t, f.system.AddTransport(f.memory))
	require.NoError(t, f.system.Init())
	return f
}

// connect loops until the connection left Connecting.
func (f *fixture) connect(t *testing.T, address string) *plc.Connection {
	t.Helper()
	c, err := f.system.Connect(address)
	require.NoError(t, err)
	deadline := time.Now().Add(5 * time.Second)
	for c.State() == plc.Connecting && time.Now().Before(deadline) {
		f.system.Loop()
	}
	require.Equal(t, plc.Connected, c.State(), "%v", c.Err())
	return c
}

func (f *fixture) await(t *testing.T, e *plc.Execution) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !e.Done() && time.Now().Before(deadline) {
		f.system.Loop()
	}
	require.True(t, e.Done(), "execution still pending")
}

func (f *fixture) shutdown(t *testing.T) {
	t.Helper()
	f.system.Shutdown()
	deadline := time.Now().Add(5 * time.Second)
	for !f.system.Done() && time.Now().Before(deadline) {
		f.system.Loop()
	}
	require.NoError(t, f.system.Destroy())
}
