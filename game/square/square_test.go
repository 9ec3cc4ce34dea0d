package square

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	sq := New("a1", at)

	data, err := json.Marshal(sq)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "a1", got["id"])
	assert.Equal(t, float64(1700000000000), got["lastUpdate"])
	for _, field := range []string{"x", "y", "prevX", "prevY", "destX", "destY", "alpha"} {
		assert.Equal(t, float64(0), got[field], field)
	}
	assert.Equal(t, float64(100), got["width"])
	assert.Equal(t, float64(100), got["height"])
	assert.Equal(t, "a1", sq.ID())
	assert.Equal(t, int64(1700000000000), sq.LastUpdate())
}

func TestFromPayload(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		isObject bool
		id       string
		want     string
	}{
		{
			name:     "full square",
			payload:  `{"id":"a1","x":50,"y":30,"width":100,"height":100}`,
			isObject: true,
			id:       "a1",
			want:     `{"height":100,"id":"a1","width":100,"x":50,"y":30}`,
		},
		{
			name:     "unknown fields pass through",
			payload:  `{"id":"a1","color":"red","nested":{"k":[1,2]}}`,
			isObject: true,
			id:       "a1",
			want:     `{"color":"red","id":"a1","nested":{"k":[1,2]}}`,
		},
		{
			name:     "wrong types are kept",
			payload:  `{"id":7,"x":"jpeg"}`,
			isObject: true,
			id:       "",
			want:     `{"id":7,"x":"jpeg"}`,
		},
		{
			name:     "non-object payload",
			payload:  `42`,
			isObject: false,
			want:     `42`,
		},
		{
			name:     "null payload",
			payload:  `null`,
			isObject: false,
			want:     `null`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sq := FromPayload([]byte(tt.payload))

			assert.Equal(t, tt.isObject, sq.IsObject())
			assert.Equal(t, tt.id, sq.ID())

			data, err := json.Marshal(sq)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestSquare_Float(t *testing.T) {
	sq := FromPayload([]byte(`{"x":12.5,"y":"nope"}`))

	x, ok := sq.Float(FieldX)
	assert.True(t, ok)
	assert.Equal(t, 12.5, x)

	_, ok = sq.Float(FieldY)
	assert.False(t, ok)

	_, ok = sq.Float(FieldWidth)
	assert.False(t, ok)
}

func TestSquare_CloneIsIndependent(t *testing.T) {
	sq := New("a1", time.Now())
	c := sq.clone()

	c.fields[FieldX] = json.RawMessage("99")

	x, _ := sq.Float(FieldX)
	assert.Equal(t, float64(0), x)
}
