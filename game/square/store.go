package square

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("square not found")
	ErrAlreadyExists = errors.New("connection already owns a square")
)

type entry struct {
	square     Square
	assignedID string
}

// Store owns exactly one square per connection handle.
//
// Store is not safe for concurrent use; it is meant to be confined to the
// goroutine that processes connection events.
type Store struct {
	squares  map[string]*entry
	assigned map[string]string // assigned id -> handle
	now      func() time.Time
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithClock overrides the time source used for lastUpdate
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty square store
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		squares:  make(map[string]*entry),
		assigned: make(map[string]string),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create initializes the square for a connection
func (s *Store) Create(handle, id string) (Square, error) {
	if _, exists := s.squares[handle]; exists {
		return Square{}, ErrAlreadyExists
	}

	sq := New(id, s.now())
	s.squares[handle] = &entry{square: sq, assignedID: id}
	s.assigned[id] = handle

	return sq.clone(), nil
}

// Replace overwrites the connection's square with the payload wholesale.
// lastUpdate is always set by the server and never moves backwards.
func (s *Store) Replace(handle string, payload []byte) (Square, error) {
	e, exists := s.squares[handle]
	if !exists {
		return Square{}, ErrNotFound
	}

	ms := s.now().UnixMilli()
	if prev := e.square.lastUpdate; prev > ms {
		ms = prev
	}

	sq := FromPayload(payload)
	sq.stamp(ms)
	e.square = sq

	return sq.clone(), nil
}

// Get returns a snapshot of the connection's square
func (s *Store) Get(handle string) (Square, bool) {
	e, exists := s.squares[handle]
	if !exists {
		return Square{}, false
	}
	return e.square.clone(), true
}

// AssignedID returns the id handed out when the square was created
func (s *Store) AssignedID(handle string) (string, bool) {
	e, exists := s.squares[handle]
	if !exists {
		return "", false
	}
	return e.assignedID, true
}

// InUse reports whether a live square was created with the given id
func (s *Store) InUse(id string) bool {
	_, used := s.assigned[id]
	return used
}

// Destroy releases the connection's square. It reports whether one existed.
func (s *Store) Destroy(handle string) bool {
	e, exists := s.squares[handle]
	if !exists {
		return false
	}
	delete(s.assigned, e.assignedID)
	delete(s.squares, handle)
	return true
}

// Len returns the number of live squares
func (s *Store) Len() int {
	return len(s.squares)
}
