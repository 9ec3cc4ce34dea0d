package square

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Well-known field names of a square
const (
	FieldID         = "id"
	FieldLastUpdate = "lastUpdate"
	FieldX          = "x"
	FieldY          = "y"
	FieldPrevX      = "prevX"
	FieldPrevY      = "prevY"
	FieldDestX      = "destX"
	FieldDestY      = "destY"
	FieldAlpha      = "alpha"
	FieldWidth      = "width"
	FieldHeight     = "height"
)

// Default dimensions of a freshly created square
const (
	DefaultWidth  = 100
	DefaultHeight = 100
)

// Square is one connection's positional state.
//
// Apart from lastUpdate, which the server always owns, the content is opaque:
// whatever the client sends is kept field for field and relayed unchanged.
// A payload that is not a JSON object is kept verbatim in raw.
type Square struct {
	fields     map[string]json.RawMessage
	raw        json.RawMessage
	lastUpdate int64
}

// New creates a square with default position and size
func New(id string, at time.Time) Square {
	zero := json.RawMessage("0")
	s := Square{
		fields: map[string]json.RawMessage{
			FieldX:      zero,
			FieldY:      zero,
			FieldPrevX:  zero,
			FieldPrevY:  zero,
			FieldDestX:  zero,
			FieldDestY:  zero,
			FieldAlpha:  zero,
			FieldWidth:  json.RawMessage(strconv.Itoa(DefaultWidth)),
			FieldHeight: json.RawMessage(strconv.Itoa(DefaultHeight)),
		},
	}
	s.fields[FieldID], _ = json.Marshal(id)
	s.stamp(at.UnixMilli())
	return s
}

// FromPayload builds a square from client-supplied JSON without checking it.
func FromPayload(payload []byte) Square {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err == nil && fields != nil {
			return Square{fields: fields}
		}
	}
	return Square{raw: append(json.RawMessage(nil), trimmed...)}
}

// ID returns the square's id field, or "" when absent or not a string
func (s Square) ID() string {
	raw, ok := s.fields[FieldID]
	if !ok {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return ""
	}
	return id
}

// LastUpdate returns the last server-assigned write time in Unix milliseconds
func (s Square) LastUpdate() int64 {
	return s.lastUpdate
}

// IsObject reports whether the square holds a JSON object
func (s Square) IsObject() bool {
	return s.fields != nil
}

// Field returns the raw JSON of a single field
func (s Square) Field(name string) (json.RawMessage, bool) {
	raw, ok := s.fields[name]
	return raw, ok
}

// Float decodes a numeric field
func (s Square) Float(name string) (float64, bool) {
	raw, ok := s.fields[name]
	if !ok {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

// MarshalJSON implements json.Marshaler
func (s Square) MarshalJSON() ([]byte, error) {
	if s.fields == nil {
		if len(s.raw) == 0 {
			return []byte("null"), nil
		}
		return s.raw, nil
	}
	return json.Marshal(s.fields)
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Square) UnmarshalJSON(data []byte) error {
	*s = FromPayload(data)
	return nil
}

// stamp records a server write time. Non-object squares keep the time
// internally only.
func (s *Square) stamp(ms int64) {
	s.lastUpdate = ms
	if s.fields != nil {
		s.fields[FieldLastUpdate] = json.RawMessage(strconv.FormatInt(ms, 10))
	}
}

// clone returns a copy that shares no mutable state with s
func (s Square) clone() Square {
	c := Square{lastUpdate: s.lastUpdate}
	if s.fields != nil {
		c.fields = make(map[string]json.RawMessage, len(s.fields))
		for k, v := range s.fields {
			c.fields[k] = v
		}
	}
	if s.raw != nil {
		c.raw = append(json.RawMessage(nil), s.raw...)
	}
	return c
}
