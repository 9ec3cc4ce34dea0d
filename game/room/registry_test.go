package room_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/mcp-training/squarerelay/game/protocol"
	"github.com/wricardo/mcp-training/squarerelay/game/room"
)

type recorder struct {
	id     string
	frames [][]byte
	fail   bool
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Send(frame []byte) error {
	if r.fail {
		return errors.New("queue full")
	}
	r.frames = append(r.frames, frame)
	return nil
}

func (r *recorder) events(t *testing.T) []protocol.Envelope {
	t.Helper()
	out := make([]protocol.Envelope, 0, len(r.frames))
	for _, f := range r.frames {
		env, err := protocol.Decode(f)
		require.NoError(t, err)
		out = append(out, env)
	}
	return out
}

func TestRegistry_JoinLeave(t *testing.T) {
	reg := room.NewRegistry()
	a := &recorder{id: "a"}
	b := &recorder{id: "b"}

	assert.True(t, reg.Join("room1", a))
	assert.False(t, reg.Join("room1", a), "join is idempotent")
	assert.True(t, reg.Join("room1", b))
	assert.Equal(t, map[string]int{"room1": 2}, reg.Rooms())
	assert.Equal(t, []string{"room1"}, reg.RoomsOf(a))

	assert.True(t, reg.Leave("room1", a))
	assert.False(t, reg.Leave("room1", a), "leave of a non-member is a no-op")
	assert.False(t, reg.Leave("nowhere", a))
	assert.Empty(t, reg.RoomsOf(a))

	assert.True(t, reg.Leave("room1", b))
	assert.Empty(t, reg.Rooms(), "empty rooms are dropped")
}

func TestRegistry_Members(t *testing.T) {
	reg := room.NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		reg.Join("room1", &recorder{id: id})
	}

	members := reg.Members("room1")
	require.Len(t, members, 3)
	assert.Equal(t, "a", members[0].ID())
	assert.Equal(t, "b", members[1].ID())
	assert.Equal(t, "c", members[2].ID())

	assert.Empty(t, reg.Members("missing"))
}

func TestRegistry_MultipleRooms(t *testing.T) {
	reg := room.NewRegistry()
	a := &recorder{id: "a"}
	reg.Join("red", a)
	reg.Join("blue", a)

	assert.Equal(t, []string{"blue", "red"}, reg.RoomsOf(a))
}

func TestRegistry_Broadcast(t *testing.T) {
	reg := room.NewRegistry()
	a := &recorder{id: "a"}
	b := &recorder{id: "b"}
	other := &recorder{id: "other"}
	reg.Join("room1", a)
	reg.Join("room1", b)
	reg.Join("room2", other)

	d, err := reg.Broadcast("room1", protocol.EventLeft, "x1")
	require.NoError(t, err)
	assert.Equal(t, room.Delivery{Sent: 2}, d)

	for _, r := range []*recorder{a, b} {
		events := r.events(t)
		require.Len(t, events, 1)
		assert.Equal(t, protocol.EventLeft, events[0].Event)
		assert.JSONEq(t, `"x1"`, string(events[0].Data))
	}
	assert.Empty(t, other.frames)
}

func TestRegistry_BroadcastExcept(t *testing.T) {
	reg := room.NewRegistry()
	a := &recorder{id: "a"}
	b := &recorder{id: "b"}
	c := &recorder{id: "c", fail: true}
	reg.Join("room1", a)
	reg.Join("room1", b)
	reg.Join("room1", c)

	d, err := reg.BroadcastExcept("room1", a, protocol.EventUpdatedMovement, json.RawMessage(`{"x":1}`))
	require.NoError(t, err)
	assert.Equal(t, room.Delivery{Sent: 1, Failed: 1}, d)

	assert.Empty(t, a.frames, "sender gets no echo")
	require.Len(t, b.frames, 1)
}

func TestRegistry_BroadcastEmptyRoom(t *testing.T) {
	reg := room.NewRegistry()

	d, err := reg.Broadcast("nobody-here", protocol.EventLeft, "x")
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestRegistry_Unicast(t *testing.T) {
	reg := room.NewRegistry()
	lonely := &recorder{id: "lonely"}

	require.NoError(t, reg.Unicast(lonely, protocol.EventJoined, map[string]string{"id": "l1"}))

	events := lonely.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, protocol.EventJoined, events[0].Event)
}
