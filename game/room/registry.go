package room

import (
	"sort"

	"github.com/wricardo/mcp-training/squarerelay/game/protocol"
)

// Member is a connection that can receive encoded frames.
// Send must not block; delivery is best effort.
type Member interface {
	ID() string
	Send(frame []byte) error
}

// Delivery counts the outcome of a fan-out
type Delivery struct {
	Sent   int
	Failed int
}

// Registry tracks room membership. It holds references to members but never
// owns them.
//
// Registry is not safe for concurrent use.
type Registry struct {
	rooms      map[string]map[string]Member
	membership map[string]map[string]struct{}
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		rooms:      make(map[string]map[string]Member),
		membership: make(map[string]map[string]struct{}),
	}
}

// Join adds a member to a room. Joining twice is a no-op; the return value
// reports whether the member was added.
func (r *Registry) Join(room string, m Member) bool {
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]Member)
		r.rooms[room] = members
	}
	if _, already := members[m.ID()]; already {
		return false
	}
	members[m.ID()] = m

	joined, ok := r.membership[m.ID()]
	if !ok {
		joined = make(map[string]struct{})
		r.membership[m.ID()] = joined
	}
	joined[room] = struct{}{}
	return true
}

// Leave removes a member from a room. It reports whether the member was there.
func (r *Registry) Leave(room string, m Member) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, present := members[m.ID()]; !present {
		return false
	}

	delete(members, m.ID())
	if len(members) == 0 {
		delete(r.rooms, room)
	}

	if joined, ok := r.membership[m.ID()]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.membership, m.ID())
		}
	}
	return true
}

// RoomsOf returns the rooms a member belongs to, sorted by name
func (r *Registry) RoomsOf(m Member) []string {
	joined := r.membership[m.ID()]
	names := make([]string, 0, len(joined))
	for name := range joined {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Members returns the members of a room ordered by ID
func (r *Registry) Members(room string) []Member {
	members := r.rooms[room]
	result := make([]Member, 0, len(members))
	for _, m := range members {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID() < result[j].ID()
	})
	return result
}

// Rooms returns the member count of every non-empty room
func (r *Registry) Rooms() map[string]int {
	counts := make(map[string]int, len(r.rooms))
	for name, members := range r.rooms {
		counts[name] = len(members)
	}
	return counts
}

// Broadcast delivers an event to every member of a room
func (r *Registry) Broadcast(room, event string, payload any) (Delivery, error) {
	return r.BroadcastExcept(room, nil, event, payload)
}

// BroadcastExcept delivers an event to every member of a room but the sender.
// A nil sender excludes nobody.
func (r *Registry) BroadcastExcept(room string, sender Member, event string, payload any) (Delivery, error) {
	members, ok := r.rooms[room]
	if !ok || len(members) == 0 {
		return Delivery{}, nil
	}

	frame, err := protocol.Encode(event, payload)
	if err != nil {
		return Delivery{}, err
	}

	var d Delivery
	for id, m := range members {
		if sender != nil && id == sender.ID() {
			continue
		}
		if err := m.Send(frame); err != nil {
			d.Failed++
			continue
		}
		d.Sent++
	}
	return d, nil
}

// Unicast delivers an event to a single member regardless of its rooms
func (r *Registry) Unicast(m Member, event string, payload any) error {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}
	return m.Send(frame)
}
