package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/wricardo/mcp-training/squarerelay/config"
	"github.com/wricardo/mcp-training/squarerelay/game/protocol"
	"github.com/wricardo/mcp-training/squarerelay/game/relay"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var (
	ErrSlowConsumer = errors.New("client send queue full")
	ErrHubStopped   = errors.New("hub stopped")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client represents a WebSocket client
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	id        string
	room      string
	closeOnce sync.Once
}

// ID returns the connection handle
func (c *Client) ID() string {
	return c.id
}

// Send queues a frame without blocking. When the queue is full the hub's
// slow consumer policy decides what happens.
func (c *Client) Send(frame []byte) error {
	select {
	case c.send <- frame:
		return nil
	default:
	}

	switch c.hub.policy {
	case config.DropOldest:
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- frame:
			return nil
		default:
			return ErrSlowConsumer
		}
	case config.DropNewest:
		return ErrSlowConsumer
	default:
		c.closeOnce.Do(func() {
			c.hub.log.Warn().Str("client", c.id).Msg("send queue full, dropping client")
			if c.conn != nil {
				c.conn.Close()
			}
		})
		return ErrSlowConsumer
	}
}

// close shuts the underlying connection. The read pump notices and the
// client departs through the normal unregister path.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

type inboundFrame struct {
	client *Client
	data   []byte
}

// Stats summarizes hub activity
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

// Hub owns the relay and serializes every connection event through Run
type Hub struct {
	relay          *relay.Relay
	room           string
	policy         config.SlowConsumerPolicy
	sendBuffer     int
	maxMessageSize int64
	log            zerolog.Logger

	// Registered clients, touched only by Run
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	inspect    chan func(*relay.Relay)
	done       chan struct{}
}

// Option configures a Hub
type Option func(*Hub)

// WithRoom sets the room clients join when none is requested
func WithRoom(name string) Option {
	return func(h *Hub) { h.room = name }
}

// WithSlowConsumerPolicy sets what happens to clients that fall behind
func WithSlowConsumerPolicy(p config.SlowConsumerPolicy) Option {
	return func(h *Hub) { h.policy = p }
}

// WithSendBuffer sets the per-client outbound queue length
func WithSendBuffer(n int) Option {
	return func(h *Hub) { h.sendBuffer = n }
}

// WithMaxMessageSize limits inbound frame size
func WithMaxMessageSize(n int64) Option {
	return func(h *Hub) { h.maxMessageSize = n }
}

// WithLogger sets the hub logger
func WithLogger(l zerolog.Logger) Option {
	return func(h *Hub) { h.log = l }
}

// NewHub creates a new WebSocket hub around a relay
func NewHub(r *relay.Relay, opts ...Option) *Hub {
	h := &Hub{
		relay:          r,
		room:           config.DefaultRoom,
		policy:         config.Disconnect,
		sendBuffer:     config.DefaultSendBuffer,
		maxMessageSize: config.DefaultMaxMessageSize,
		log:            zerolog.Nop(),
		clients:        make(map[*Client]struct{}),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		inbound:        make(chan inboundFrame),
		inspect:        make(chan func(*relay.Relay)),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Room returns the default room
func (h *Hub) Room() string {
	return h.room
}

// Run starts the hub's event loop. It returns when ctx is cancelled, closing
// every remaining connection.
func (h *Hub) Run(ctx context.Context) {
	defer h.stop()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case in := <-h.inbound:
			h.handleFrame(in.client, in.data)

		case fn := <-h.inspect:
			fn(h.relay)
		}
	}
}

// ServeWS upgrades the request and attaches the connection to roomName.
// An empty roomName means the default room.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, roomName string) {
	if roomName == "" {
		roomName = h.room
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
		id:   uuid.NewString(),
		room: roomName,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// Snapshot returns every non-empty room with its squares
func (h *Hub) Snapshot(ctx context.Context) ([]relay.RoomSnapshot, error) {
	return query(ctx, h, func(r *relay.Relay) []relay.RoomSnapshot {
		return r.Snapshot()
	})
}

type roomResult struct {
	snap relay.RoomSnapshot
	ok   bool
}

// RoomSnapshot returns a single room; ok is false when nobody is in it
func (h *Hub) RoomSnapshot(ctx context.Context, name string) (relay.RoomSnapshot, bool, error) {
	res, err := query(ctx, h, func(r *relay.Relay) roomResult {
		snap, ok := r.RoomSnapshot(name)
		return roomResult{snap: snap, ok: ok}
	})
	return res.snap, res.ok, err
}

// Stats returns room and connection counts
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	return query(ctx, h, func(r *relay.Relay) Stats {
		return Stats{
			Rooms:       r.Rooms(),
			Connections: r.Connections(),
		}
	})
}

// query runs fn on the hub goroutine. The result travels over a buffered
// channel and is read only once fn has returned.
func query[T any](ctx context.Context, h *Hub, fn func(*relay.Relay) T) (T, error) {
	result := make(chan T, 1)
	if err := h.do(ctx, func(r *relay.Relay) {
		result <- fn(r)
	}); err != nil {
		var zero T
		return zero, err
	}
	return <-result, nil
}

// do runs fn on the hub goroutine and waits for it
func (h *Hub) do(ctx context.Context, fn func(*relay.Relay)) error {
	finished := make(chan struct{})
	job := func(r *relay.Relay) {
		fn(r)
		close(finished)
	}

	select {
	case h.inspect <- job:
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// registerClient activates a client in its room
func (h *Hub) registerClient(client *Client) {
	h.clients[client] = struct{}{}

	sq, err := h.relay.Connect(client, client.room)
	if err != nil {
		h.log.Error().Err(err).Str("client", client.id).Msg("failed to connect client")
		delete(h.clients, client)
		close(client.send)
		return
	}

	h.log.Info().
		Str("client", client.id).
		Str("room", client.room).
		Str("square", sq.ID()).
		Int("connections", h.relay.Connections()).
		Msg("client connected")
}

// unregisterClient announces the client's departure and releases it.
// Unregistering twice is a no-op.
func (h *Hub) unregisterClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)

	id, _ := h.relay.Disconnect(client)
	close(client.send)

	h.log.Info().
		Str("client", client.id).
		Str("room", client.room).
		Str("square", id).
		Int("connections", h.relay.Connections()).
		Msg("client disconnected")
}

// handleFrame dispatches one inbound frame
func (h *Hub) handleFrame(client *Client, data []byte) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	env, err := protocol.Decode(data)
	if err != nil {
		h.log.Debug().Err(err).Str("client", client.id).Msg("malformed frame, closing connection")
		client.close()
		return
	}

	switch env.Event {
	case protocol.EventMovementUpdate:
		if _, err := h.relay.HandleUpdate(client, env.Data); err != nil {
			h.log.Error().Err(err).Str("client", client.id).Msg("failed to relay movement update")
		}
	default:
		h.log.Debug().Str("client", client.id).Str("event", env.Event).Msg("ignoring unknown event")
	}
}

// stop releases every client when the loop exits
func (h *Hub) stop() {
	close(h.done)
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
		client.close()
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug().Err(err).Str("client", c.id).Msg("websocket read error")
			}
			return
		}

		select {
		case c.hub.inbound <- inboundFrame{client: c, data: data}:
		case <-c.hub.done:
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
// Each queued frame is written as its own WebSocket message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
