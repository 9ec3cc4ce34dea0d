package relay

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/wricardo/mcp-training/squarerelay/game/identity"
	"github.com/wricardo/mcp-training/squarerelay/game/protocol"
	"github.com/wricardo/mcp-training/squarerelay/game/room"
	"github.com/wricardo/mcp-training/squarerelay/game/square"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrAlreadyConnected  = errors.New("connection already active")
)

// maxIDAttempts bounds re-derivation when a fresh id collides with a live one
const maxIDAttempts = 8

// Observer is notified of relay activity. Implementations must not block.
type Observer interface {
	Connected(room string)
	Disconnected(room string)
	Updated(room string)
	Delivered(event string, d room.Delivery)
}

type nopObserver struct{}

func (nopObserver) Connected(string) {}
func (nopObserver) Disconnected(string) {}
func (nopObserver) Updated(string) {}
func (nopObserver) Delivered(string, room.Delivery) {}

// Relay couples connection lifecycle to squares and rooms and fans movement
// updates out to the sender's rooms.
//
// Relay is not safe for concurrent use. All calls must come from the same
// goroutine, which is what gives each handler exclusive access to the shared
// state until it returns.
type Relay struct {
	ids      *identity.Generator
	squares  *square.Store
	rooms    *room.Registry
	now      func() time.Time
	observer Observer
}

// Option configures a Relay
type Option func(*Relay)

// WithClock overrides the time source used for id seeds and square stamps
func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		r.now = now
	}
}

// WithObserver installs an activity observer
func WithObserver(o Observer) Option {
	return func(r *Relay) {
		if o != nil {
			r.observer = o
		}
	}
}

// New creates a relay that derives square ids with gen
func New(gen *identity.Generator, opts ...Option) *Relay {
	r := &Relay{
		ids:      gen,
		rooms:    room.NewRegistry(),
		now:      time.Now,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.squares = square.NewStore(square.WithClock(r.now))
	return r
}

// Connect activates a connection: it gets a fresh square, joins roomName and
// is sent its square in a joined event.
func (r *Relay) Connect(conn room.Member, roomName string) (square.Square, error) {
	if _, exists := r.squares.Get(conn.ID()); exists {
		return square.Square{}, ErrAlreadyConnected
	}

	sq, err := r.squares.Create(conn.ID(), r.nextID(conn.ID()))
	if err != nil {
		return square.Square{}, fmt.Errorf("failed to create square: %w", err)
	}

	r.rooms.Join(roomName, conn)
	r.observer.Connected(roomName)

	d := room.Delivery{Sent: 1}
	if err := r.rooms.Unicast(conn, protocol.EventJoined, sq); err != nil {
		d = room.Delivery{Failed: 1}
	}
	r.observer.Delivered(protocol.EventJoined, d)

	return sq, nil
}

// HandleUpdate replaces the sender's square with payload and forwards the
// result to everyone else in the sender's rooms. The payload is not checked.
func (r *Relay) HandleUpdate(conn room.Member, payload []byte) (square.Square, error) {
	sq, err := r.squares.Replace(conn.ID(), payload)
	if err != nil {
		if errors.Is(err, square.ErrNotFound) {
			return square.Square{}, fmt.Errorf("%w: %s", ErrUnknownConnection, conn.ID())
		}
		return square.Square{}, err
	}

	for _, name := range r.rooms.RoomsOf(conn) {
		r.observer.Updated(name)
		d, err := r.rooms.BroadcastExcept(name, conn, protocol.EventUpdatedMovement, sq)
		if err != nil {
			return sq, fmt.Errorf("failed to broadcast update: %w", err)
		}
		r.observer.Delivered(protocol.EventUpdatedMovement, d)
	}

	return sq, nil
}

// Disconnect announces the connection's departure to its rooms, removes it
// from them and releases its square. It returns the announced id and whether
// the connection was active; a second call is a no-op.
func (r *Relay) Disconnect(conn room.Member) (string, bool) {
	sq, exists := r.squares.Get(conn.ID())
	if !exists {
		return "", false
	}

	id := sq.ID()
	if id == "" {
		id, _ = r.squares.AssignedID(conn.ID())
	}

	for _, name := range r.rooms.RoomsOf(conn) {
		// announce before leaving
		if d, err := r.rooms.BroadcastExcept(name, conn, protocol.EventLeft, id); err == nil {
			r.observer.Delivered(protocol.EventLeft, d)
		}
		r.rooms.Leave(name, conn)
		r.observer.Disconnected(name)
	}

	r.squares.Destroy(conn.ID())
	return id, true
}

// Square returns the current square of a connection
func (r *Relay) Square(conn room.Member) (square.Square, bool) {
	return r.squares.Get(conn.ID())
}

// Connections returns the number of active connections
func (r *Relay) Connections() int {
	return r.squares.Len()
}

// Rooms returns the number of non-empty rooms
func (r *Relay) Rooms() int {
	return len(r.rooms.Rooms())
}

// RoomSnapshot is a point-in-time view of one room
type RoomSnapshot struct {
	Name    string          `json:"name"`
	Members int             `json:"members"`
	Squares []square.Square `json:"squares"`
}

// Snapshot returns every non-empty room ordered by name
func (r *Relay) Snapshot() []RoomSnapshot {
	counts := r.rooms.Rooms()
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]RoomSnapshot, 0, len(names))
	for _, name := range names {
		snap, _ := r.RoomSnapshot(name)
		result = append(result, snap)
	}
	return result
}

// RoomSnapshot returns a single room; ok is false when the room is empty
func (r *Relay) RoomSnapshot(name string) (RoomSnapshot, bool) {
	members := r.rooms.Members(name)
	if len(members) == 0 {
		return RoomSnapshot{Name: name, Squares: []square.Square{}}, false
	}

	snap := RoomSnapshot{
		Name:    name,
		Members: len(members),
		Squares: make([]square.Square, 0, len(members)),
	}
	for _, m := range members {
		if sq, ok := r.squares.Get(m.ID()); ok {
			snap.Squares = append(snap.Squares, sq)
		}
	}
	return snap, true
}

// nextID derives an id from the handle and the current time, re-deriving in
// the unlikely case it is held by a live square.
func (r *Relay) nextID(handle string) string {
	material := identity.Seed(handle, r.now())
	id := r.ids.Generate(material)
	for attempt := 1; attempt < maxIDAttempts && r.squares.InUse(id); attempt++ {
		id = r.ids.Generate(material + "#" + strconv.Itoa(attempt))
	}
	return id
}
