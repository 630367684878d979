package runtime

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"s7link/pkg/runtime/constant"
)

func TestAssignable(t *testing.T) {
	tests := []struct {
		name  string
		dt    constant.DataType
		count int
		v     Value
		ok    bool
	}{
		{"bool", constant.BOOL, 1, Bool(true), true},
		{"int into bool", constant.BOOL, 1, Int16(1), false},
		{"int8 widens to INT", constant.INT, 1, Int8(-3), true},
		{"int16 into INT", constant.INT, 1, Int16(42), true},
		{"int64 into INT", constant.INT, 1, Int64(42), false},
		{"uint16 into INT", constant.INT, 1, Uint16(42), false},
		{"uint32 into DWORD", constant.DWORD, 1, Uint32(7), true},
		{"uint64 into DWORD", constant.DWORD, 1, Uint64(7), false},
		{"int32 into UDINT", constant.UDINT, 1, Int32(7), false},
		{"float32 into REAL", constant.REAL, 1, Float32(3.5), true},
		{"float64 into REAL", constant.REAL, 1, Float64(3.5), false},
		{"float32 into LREAL", constant.LREAL, 1, Float32(3.5), true},
		{"string into STRING", constant.STRING, 1, String("abc"), true},
		{"long string", constant.STRING, 1, String("abcdefghijk"), false},
		{"char", constant.CHAR, 1, String("x"), true},
		{"two chars", constant.CHAR, 1, String("xy"), false},
		{"list", constant.INT, 3, List{Int16(1), Int16(2), Int8(3)}, true},
		{"short list", constant.INT, 3, List{Int16(1), Int16(2)}, false},
		{"list with bad element", constant.INT, 2, List{Int16(1), Float32(2)}, false},
		{"scalar for array", constant.INT, 2, Int16(1), false},
		{"nil", constant.INT, 1, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Assignable(tt.dt, tt.count, 10, tt.v)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrTypeMismatch), "got %v", err)
			}
		})
	}
}

func TestFromInterface(t *testing.T) {
	v, err := FromInterface(float64(42), constant.INT, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, Int16(42), v)

	v, err = FromInterface("0x10", constant.WORD, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, Uint16(16), v)

	v, err = FromInterface("true", constant.BOOL, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, Bool(true), v)

	v, err = FromInterface([]interface{}{float64(1.5), float64(-2)}, constant.REAL, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, List{Float32(1.5), Float32(-2)}, v)

	_, err = FromInterface(float64(70000), constant.INT, 1, 0)
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	_, err = FromInterface(float64(-1), constant.UINT, 1, 0)
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	_, err = FromInterface(float64(1.5), constant.DINT, 1, 0)
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	_, err = FromInterface(Int64(1), constant.INT, 1, 0)
	assert.True(t, errors.Is(err, ErrTypeMismatch))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(List{Int16(1), String("a")}, List{Int16(1), String("a")}))
	assert.False(t, Equal(Int16(1), Uint16(1)))
	assert.False(t, Equal(List{Int16(1)}, List{Int16(1), Int16(2)}))
	assert.True(t, Equal(nil, nil))
}
