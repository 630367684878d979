package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"s7link/cmd/s7link/options"
	"s7link/pkg/plc"
	"s7link/pkg/runtime"
	"s7link/pkg/session"
)

func TestReadItems(t *testing.T) {
	o := options.NewDefaultOptions()
	_, err := readItems(o, nil)
	assert.True(t, errors.Is(err, plc.ErrEmptyRequest))

	o.Tags = []session.Item{{Name: "speed", Address: "%DB1:0:REAL", Value: 1.0}}
	items, err := readItems(o, []string{"%MW0"})
	require.NoError(t, err)
	assert.Equal(t, []session.Item{
		{Name: "speed", Address: "%DB1:0:REAL"},
		{Name: "%MW0", Address: "%MW0"},
	}, items)
}

func TestWriteItems(t *testing.T) {
	o := options.NewDefaultOptions()
	o.Tags = []session.Item{
		{Name: "speed", Address: "%DB1:0:REAL"},
		{Name: "preset", Address: "%DB1:4:INT", Value: 3},
	}
	items, err := writeItems(o, []string{"speed=2.5", "%M0.0:BOOL[2]=true, false", "%DB1:6:STRING(8)=a=b"})
	require.NoError(t, err)
	assert.Equal(t, []session.Item{
		{Name: "preset", Address: "%DB1:4:INT", Value: 3},
		{Name: "speed", Address: "%DB1:0:REAL", Value: "2.5"},
		{Name: "%M0.0:BOOL[2]", Address: "%M0.0:BOOL[2]", Value: []interface{}{"true", "false"}},
		{Name: "%DB1:6:STRING(8)", Address: "%DB1:6:STRING(8)", Value: "a=b"},
	}, items)

	_, err = writeItems(o, []string{"=1"})
	assert.Error(t, err)
	_, err = writeItems(options.NewDefaultOptions(), nil)
	assert.True(t, errors.Is(err, plc.ErrEmptyRequest))
}

func TestPrintResponse(t *testing.T) {
	r := &plc.Response{Kind: plc.ReadRequestKind, Items: []plc.ResponseItem{
		{Name: "speed", Address: "%DB1:0:REAL", Value: runtime.Float32(3.5)},
		{Name: "text", Address: "%DB1:4:STRING(8)", Value: runtime.String("hi")},
		{Name: "bad", Address: "%MW2", Err: errors.New("access denied")},
	}}

	var text bytes.Buffer
	require.NoError(t, printResponse(&text, options.OutputText, r))
	lines := strings.Split(strings.TrimSpace(text.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"NAME", "ADDRESS", "VALUE"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"speed", "%DB1:0:REAL", "3.5"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"text", "%DB1:4:STRING(8)", `"hi"`}, strings.Fields(lines[2]))
	assert.Contains(t, lines[3], "error: access denied")

	var js bytes.Buffer
	require.NoError(t, printResponse(&js, options.OutputJSON, r))
	assert.JSONEq(t, `[
		{"name":"speed","address":"%DB1:0:REAL","value":3.5},
		{"name":"text","address":"%DB1:4:STRING(8)","value":"hi"},
		{"name":"bad","address":"%MW2","error":"access denied"}
	]`, js.String())
}
