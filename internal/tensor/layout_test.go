package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout_String(t *testing.T) {
	l := NewLayout(Float32, FormatBFYX, 1, 1, 2, 2)
	assert.Equal(t, "f32:bfyx[1,1,2,2]", l.String())
	assert.Equal(t, 16, l.ByteSize())
}

func TestLayout_Validate(t *testing.T) {
	assert.NoError(t, NewLayout(Float16, FormatBYXF, 1, 3, 4, 4).Validate())
	assert.Error(t, NewLayout(Float32, FormatBYXF, 3, 4).Validate())
	assert.Error(t, NewLayout(Float32, FormatBFYX, 1, 0, 2).Validate())
	assert.Error(t, NewLayout(Float32, FormatBFYX, 1<<32, 1<<32, 2, 2).Validate(), "element count overflows")
	assert.Error(t, NewLayout(Float32, FormatBFYX, MaxElements, 2).Validate())
	assert.NoError(t, NewLayout(Uint8, FormatBFYX, MaxElements).Validate())
}

func TestLayout_Compatible(t *testing.T) {
	a := NewLayout(Float32, FormatBFYX, 1, 1, 2, 2)
	b := NewLayout(Float32, FormatBYXF, 1, 1, 2, 2)
	assert.True(t, a.Compatible(b))
	assert.False(t, a.Equal(b))
	assert.False(t, a.Compatible(NewLayout(Float16, FormatBFYX, 1, 1, 2, 2)))
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{Shape{5}, Shape{2, 5}, Shape{2, 5}, true, false},
		{Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}
	for _, tt := range tests {
		got, broadcast, err := BroadcastShapes(tt.a, tt.b)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.broadcast, broadcast)
	}
}

func TestBroadcastIndex(t *testing.T) {
	out := Shape{2, 3}
	assert.Equal(t, 2, BroadcastIndex(5, out, Shape{1, 3}))
	assert.Equal(t, 1, BroadcastIndex(5, out, Shape{2, 1}))
	assert.Equal(t, 0, BroadcastIndex(4, out, Shape{1}))
}

func TestParseDataType(t *testing.T) {
	dt, err := ParseDataType("float16")
	require.NoError(t, err)
	assert.Equal(t, Float16, dt)

	_, err = ParseDataType("complex64")
	assert.Error(t, err)
}
