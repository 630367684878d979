package plc_test

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"s7link/pkg/plc"
	s7runtime "s7link/pkg/protocol/s7/runtime"
	"s7link/pkg/runtime"
	"s7link/pkg/simulator"
	"s7link/pkg/transport"
)

func TestHandshakeAckedOnThirdPoll(t *testing.T) {
	f := newFixture(t)
	f.memory.Inject("plc", transport.Faults{HoldReceives: 2})

	c, err := f.system.Connect("s7:mem://plc")
	require.NoError(t, err)
	assert.Equal(t, plc.Connecting, c.State())

	f.system.Loop()
	assert.Equal(t, plc.Connecting, c.State())
	f.system.Loop()
	assert.Equal(t, plc.Connecting, c.State())
	f.system.Loop()
	assert.Equal(t, plc.Connected, c.State())
	assert.NotEmpty(t, c.ID())
}

func TestHandshakeInChunks(t *testing.T) {
	f := newFixture(t)
	f.memory.Inject("plc", transport.Faults{ChunkSize: 3})
	c := f.connect(t, "s7:mem://plc?model=s7300&rack=0&slot=2")

	require.NoError(t, f.device.Set("%DB3:0:DINT", runtime.Int32(-7)))
	req := c.NewReadRequest()
	require.NoError(t, req.AddItem("v", "%DB3:0:DINT"))
	e, err := req.Execute()
	require.NoError(t, err)
	f.await(t, e)
	require.Equal(t, plc.Succeeded, e.Status(), "%v", e.Err())
	assert.Equal(t, runtime.Int32(-7), e.Response().Items[0].Value)
}

func TestReadIntAndReal(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.device.Set("%DB1:0:INT", runtime.Int16(42)))
	require.NoError(t, f.device.Set("%DB1:2:REAL", runtime.Float32(3.5)))
	c := f.connect(t, "s7:mem://plc")

	req := c.NewReadRequest()
	require.NoError(t, req.AddItem("A", "%DB1:0:INT[1]"))
	require.NoError(t, req.AddItem("B", "%DB1:2:REAL[1]"))
	e, err := req.Execute()
	require.NoError(t, err)
	assert.Equal(t, plc.Pending, e.Status())
	f.await(t, e)

	require.Equal(t, plc.Succeeded, e.Status(), "%v", e.Err())
	assert.Equal(t, []plc.ResponseItem{
		{Name: "A", Address: "%DB1:0:INT[1]", Value: runtime.Int16(42)},
		{Name: "B", Address: "%DB1:2:REAL[1]", Value: runtime.Float32(3.5)},
	}, e.Response().Items)

	require.NoError(t, e.Destroy())
	require.NoError(t, req.Destroy())
	assert.Equal(t, plc.Connected, c.State())
	f.shutdown(t)
}

func TestWriteThenReadEcho(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, "s7:mem://plc")

	items := []struct {
		address string
		value   runtime.Value
	}{
		{"%DB1.DBX0.0", runtime.Bool(true)},
		{"%DB1:1.0:BOOL[3]", nil},
		{"%M4.0:BOOL[16]", nil},
		{"%DB1:2:BYTE", runtime.Uint8(0xa5)},
		{"%DB1:3:SINT", runtime.Int8(-128)},
		{"%DB1:4:INT", runtime.Int16(-32768)},
		{"%DB1:6:UINT", runtime.Uint16(65535)},
		{"%DB1:8:WORD", runtime.Uint16(0x1234)},
		{"%DB1:10:DINT", runtime.Int32(-2147483648)},
		{"%DB1:14:UDINT", runtime.Uint32(4294967295)},
		{"%DB1:18:DWORD", runtime.Uint32(0xdeadbeef)},
		{"%DB1:22:LINT", runtime.Int64(-9223372036854775808)},
		{"%DB1:30:ULINT", runtime.Uint64(18446744073709551615)},
		{"%DB1:38:LWORD", runtime.Uint64(0x0102030405060708)},
		{"%DB1:46:REAL", runtime.Float32(-1.25)},
		{"%DB1:50:LREAL", runtime.Float64(6.02214076e23)},
		{"%DB1:58:CHAR", runtime.String("z")},
		{"%DB1:60:STRING(10)", runtime.String("s7link")},
		{"%DB2:0:INT[3]", runtime.List{runtime.Int16(1), runtime.Int16(-2), runtime.Int16(3)}},
		{"%QB1", runtime.Uint8(7)},
		{"%T5", runtime.Uint16(0x2123)},
		{"%C2", runtime.Uint16(0x0042)},
		{"%M10.0:BOOL[21]", nil},
		{"%M20.3:BOOL[30]", nil},
	}
	items[1].value = runtime.List{runtime.Bool(true), runtime.Bool(false), runtime.Bool(true)}
	for i, n := range map[int]int{2: 16, 22: 21, 23: 30} {
		bits := make(runtime.List, n)
		for j := range bits {
			bits[j] = runtime.Bool(j%3 == 0)
		}
		items[i].value = bits
	}

	w := c.NewWriteRequest()
	for i, item := range items {
		require.NoError(t, w.AddItem(fmt.Sprintf("w%d", i), item.address, item.value), item.address)
	}
	we, err := w.Execute()
	require.NoError(t, err)
	f.await(t, we)
	require.Equal(t, plc.Succeeded, we.Status(), "%v", we.Err())
	for _, item := range we.Response().Items {
		assert.NoError(t, item.Err)
		assert.Nil(t, item.Value)
	}

	r := c.NewReadRequest()
	for i, item := range items {
		require.NoError(t, r.AddItem(fmt.Sprintf("r%d", i), item.address))
	}
	re, err := r.Execute()
	require.NoError(t, err)
	f.await(t, re)
	require.Equal(t, plc.Succeeded, re.Status(), "%v", re.Err())
	for i, item := range re.Response().Items {
		assert.True(t, runtime.Equal(items[i].value, item.Value), "%s: wrote %v, read %v", items[i].address, items[i].value, item.Value)
	}
}

func TestWriteTypeMismatchSendsNothing(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, "s7:mem://plc")
	framesAfterHandshake := f.device.Stats().Frames

	w := c.NewWriteRequest()
	err := w.AddItem("x", "%DB1:0:INT", runtime.Int64(1))
	assert.True(t, errors.Is(err, plc.ErrTypeMismatch), "%v", err)
	err = w.AddItem("y", "%DB1:0:INT[2]", runtime.Int16(1))
	assert.True(t, errors.Is(err, plc.ErrTypeMismatch), "%v", err)
	assert.Zero(t, w.Len())

	_, err = w.Execute()
	assert.True(t, errors.Is(err, plc.ErrEmptyRequest))
	f.system.Loop()
	assert.Equal(t, framesAfterHandshake, f.device.Stats().Frames)
	assert.Zero(t, f.device.Stats().Writes)
}

func TestInvalidAddress(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, "s7:mem://plc")
	r := c.NewReadRequest()
	for _, address := range []string{"", "%DB0:0:INT", "%DB1:0:INT[0]", "%MW1.2", "%X9"} {
		err := r.AddItem("x", address)
		assert.True(t, errors.Is(err, plc.ErrInvalidAddress), "%q: %v", address, err)
	}
}

func TestTruncatedResponseKeepsConnection(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.device.Set("%DB1:0:INT", runtime.Int16(42)))
	c := f.connect(t, "s7:mem://plc")
	f.device.TruncateNext()

	r := c.NewReadRequest()
	require.NoError(t, r.AddItem("A", "%DB1:0:INT"))
	e, err := r.Execute()
	require.NoError(t, err)
	f.await(t, e)
	assert.Equal(t, plc.Failed, e.Status())
	assert.True(t, errors.Is(e.Err(), plc.ErrMalformedResponse), "%v", e.Err())
	assert.Equal(t, plc.Connected, c.State())
	assert.Nil(t, c.Execution())

	r = c.NewReadRequest()
	require.NoError(t, r.AddItem("A", "%DB1:0:INT"))
	e, err = r.Execute()
	require.NoError(t, err)
	f.await(t, e)
	require.Equal(t, plc.Succeeded, e.Status(), "%v", e.Err())
	assert.Equal(t, runtime.Int16(42), e.Response().Items[0].Value)
}

func TestOversizedResponseKeepsConnection(t *testing.T) {
	for _, pad := range []int{400, 1200} {
		t.Run(fmt.Sprintf("pad %d", pad), func(t *testing.T) {
			f := newDeviceFixture(t, simulator.New(simulator.WithPDULength(240)))
			require.NoError(t, f.device.Set("%DB1:0:INT", runtime.Int16(42)))
			c := f.connect(t, "s7:mem://plc")
			f.device.PadNext(pad)

			r := c.NewReadRequest()
			require.NoError(t, r.AddItem("A", "%DB1:0:INT"))
			e, err := r.Execute()
			require.NoError(t, err)
			f.await(t, e)
			assert.Equal(t, plc.Failed, e.Status())
			assert.True(t, errors.Is(e.Err(), plc.ErrMalformedResponse), "%v", e.Err())
			assert.Equal(t, plc.Connected, c.State())

			r = c.NewReadRequest()
			require.NoError(t, r.AddItem("A", "%DB1:0:INT"))
			e, err = r.Execute()
			require.NoError(t, err)
			f.await(t, e)
			require.Equal(t, plc.Succeeded, e.Status(), "%v", e.Err())
			assert.Equal(t, runtime.Int16(42), e.Response().Items[0].Value)
			assert.Equal(t, plc.Connected, c.State())
		})
	}
}

func TestSecondExecuteInProgress(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.device.Set("%M10:WORD", runtime.Uint16(9)))
	c := f.connect(t, "s7:mem://plc")

	first := c.NewReadRequest()
	require.NoError(t, first.AddItem("w", "%MW10"))
	e, err := first.Execute()
	require.NoError(t, err)

	second := c.NewReadRequest()
	require.NoError(t, second.AddItem("w", "%MW10"))
	_, err = second.Execute()
	assert.True(t, errors.Is(err, plc.ErrExecutionInProgress))
	_, err = first.Execute()
	assert.True(t, errors.Is(err, plc.ErrRequestExecuted))

	assert.True(t, errors.Is(e.Destroy(), plc.ErrExecutionInProgress))
	assert.True(t, errors.Is(first.Destroy(), plc.ErrExecutionInProgress))
	assert.Equal(t, plc.Pending, e.Status())
	assert.Same(t, e, c.Execution())

	f.await(t, e)
	require.Equal(t, plc.Succeeded, e.Status(), "%v", e.Err())
	assert.Equal(t, runtime.Uint16(9), e.Response().Items[0].Value)

	e2, err := second.Execute()
	require.NoError(t, err)
	f.await(t, e2)
	assert.Equal(t, plc.Succeeded, e2.Status())
}

func TestItemErrorFailsExecution(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.device.Set("%DB1:2:INT", runtime.Int16(5)))
	require.NoError(t, f.device.Fail("%DB1:0:INT", s7runtime.ReturnCodeObjectNotExist))
	c := f.connect(t, "s7:mem://plc")

	r := c.NewReadRequest()
	require.NoError(t, r.AddItem("bad", "%DB1:0:INT"))
	require.NoError(t, r.AddItem("good", "%DB1:2:INT"))
	e, err := r.Execute()
	require.NoError(t, err)
	f.await(t, e)

	assert.Equal(t, plc.Failed, e.Status())
	require.Error(t, e.Err())
	bad, ok := e.Response().Get("bad")
	require.True(t, ok)
	var ie *s7runtime.ItemError
	require.True(t, errors.As(bad.Err, &ie))
	assert.Equal(t, s7runtime.ReturnCodeObjectNotExist, ie.ReturnCode)
	assert.Equal(t, map[string]runtime.Value{"good": runtime.Int16(5)}, e.Response().Values())
	assert.Equal(t, plc.Connected, c.State())
}

func TestRequestSplitAcrossPDUs(t *testing.T) {
	f := newDeviceFixture(t, simulator.New(simulator.WithPDULength(240)))
	conn := f.connect(t, "s7:mem://plc")

	r := conn.NewReadRequest()
	for i := 0; i < 30; i++ {
		require.NoError(t, f.device.Set(fmt.Sprintf("%%DB1:%d:INT", i*2), runtime.Int16(i)))
		require.NoError(t, r.AddItem(fmt.Sprintf("v%d", i), fmt.Sprintf("%%DB1:%d:INT", i*2)))
	}
	e, err := r.Execute()
	require.NoError(t, err)
	f.await(t, e)
	require.Equal(t, plc.Succeeded, e.Status(), "%v", e.Err())
	assert.Equal(t, uint64(2), f.device.Stats().Reads)
	for i, item := range e.Response().Items {
		assert.Equal(t, runtime.Int16(i), item.Value)
	}

	r = conn.NewReadRequest()
	require.NoError(t, r.AddItem("big", "%DB1:0:STRING(254)"))
	_, err = r.Execute()
	assert.True(t, errors.Is(err, s7runtime.ErrItemTooLarge), "%v", err)
	assert.Nil(t, conn.Execution())
}

func TestUnreachable(t *testing.T) {
	f := newFixture(t)
	c, err := f.system.Connect("s7:mem://nowhere")
	require.NoError(t, err)
	f.system.Loop()
	assert.Equal(t, plc.Error, c.State())
	assert.True(t, errors.Is(c.Err(), plc.ErrUnreachable))

	r := c.NewReadRequest()
	require.NoError(t, r.AddItem("a", "%MB0"))
	_, err = r.Execute()
	assert.True(t, errors.Is(err, plc.ErrNotConnected))
}

func TestLoopOnErrorIsNoop(t *testing.T) {
	f := newFixture(t)
	f.memory.Inject("plc", transport.Faults{ResetAfter: 2})
	c := f.connect(t, "s7:mem://plc")

	f.system.Loop()
	require.Equal(t, plc.Error, c.State())
	cause := c.Err()
	assert.True(t, errors.Is(cause, plc.ErrConnectionReset), "%v", cause)

	for i := 0; i < 10; i++ {
		f.system.Loop()
		assert.Equal(t, plc.Error, c.State())
		assert.Equal(t, cause, c.Err())
	}
	require.NoError(t, f.system.Disconnect(c))
	assert.Equal(t, plc.Error, c.State())
	require.NoError(t, f.system.RemoveConnection(c))
	assert.Empty(t, f.system.Connections())
}

func TestResetDuringExecution(t *testing.T) {
	f := newFixture(t)
	f.memory.Inject("plc", transport.Faults{ResetAfter: 2})
	c := f.connect(t, "s7:mem://plc")

	r := c.NewReadRequest()
	require.NoError(t, r.AddItem("a", "%MB0"))
	e, err := r.Execute()
	require.NoError(t, err)
	f.await(t, e)
	assert.Equal(t, plc.Failed, e.Status())
	assert.True(t, errors.Is(e.Err(), plc.ErrConnectionReset))
	assert.Equal(t, plc.Error, c.State())
}
