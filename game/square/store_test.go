package square

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func TestStore_Create(t *testing.T) {
	clock := &fakeClock{t: time.UnixMilli(1000)}
	store := NewStore(WithClock(clock.now))

	t.Run("creates default square", func(t *testing.T) {
		sq, err := store.Create("conn-1", "a1")
		require.NoError(t, err)
		assert.Equal(t, "a1", sq.ID())
		assert.Equal(t, int64(1000), sq.LastUpdate())
		assert.Equal(t, 1, store.Len())
		assert.True(t, store.InUse("a1"))
	})

	t.Run("second create for same connection fails", func(t *testing.T) {
		_, err := store.Create("conn-1", "a2")
		assert.ErrorIs(t, err, ErrAlreadyExists)
		assert.Equal(t, 1, store.Len())
	})
}

func TestStore_Replace(t *testing.T) {
	clock := &fakeClock{t: time.UnixMilli(1000)}
	store := NewStore(WithClock(clock.now))
	_, err := store.Create("conn-1", "a1")
	require.NoError(t, err)

	t.Run("overwrites wholesale and stamps server time", func(t *testing.T) {
		clock.t = time.UnixMilli(2000)
		sq, err := store.Replace("conn-1", []byte(`{"id":"a1","x":50,"y":30,"lastUpdate":5}`))
		require.NoError(t, err)

		assert.Equal(t, int64(2000), sq.LastUpdate())
		data, _ := json.Marshal(sq)
		assert.JSONEq(t, `{"id":"a1","x":50,"y":30,"lastUpdate":2000}`, string(data))

		stored, ok := store.Get("conn-1")
		require.True(t, ok)
		_, hasWidth := stored.Field(FieldWidth)
		assert.False(t, hasWidth, "fields missing from the payload are dropped")
	})

	t.Run("lastUpdate never decreases", func(t *testing.T) {
		clock.t = time.UnixMilli(1500)
		sq, err := store.Replace("conn-1", []byte(`{"id":"a1"}`))
		require.NoError(t, err)
		assert.Equal(t, int64(2000), sq.LastUpdate())
	})

	t.Run("client may overwrite the id", func(t *testing.T) {
		sq, err := store.Replace("conn-1", []byte(`{"id":"forged"}`))
		require.NoError(t, err)
		assert.Equal(t, "forged", sq.ID())

		assigned, ok := store.AssignedID("conn-1")
		require.True(t, ok)
		assert.Equal(t, "a1", assigned)
	})

	t.Run("unknown connection", func(t *testing.T) {
		_, err := store.Replace("nobody", []byte(`{}`))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_GetReturnsSnapshot(t *testing.T) {
	store := NewStore()
	_, err := store.Create("conn-1", "a1")
	require.NoError(t, err)

	snap, ok := store.Get("conn-1")
	require.True(t, ok)
	snap.fields[FieldX] = json.RawMessage("123")

	again, _ := store.Get("conn-1")
	x, _ := again.Float(FieldX)
	assert.Equal(t, float64(0), x)
}

func TestStore_Destroy(t *testing.T) {
	store := NewStore()
	_, err := store.Create("conn-1", "a1")
	require.NoError(t, err)

	assert.True(t, store.Destroy("conn-1"))
	assert.False(t, store.Destroy("conn-1"))
	assert.Equal(t, 0, store.Len())
	assert.False(t, store.InUse("a1"))

	_, ok := store.Get("conn-1")
	assert.False(t, ok)
}
