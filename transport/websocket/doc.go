// Package websocket provides the WebSocket transport for the square relay.
//
// The websocket package implements:
//   - Upgrading HTTP requests and attaching each connection to a room
//   - A single event loop that owns the relay
//   - Per-connection read and write pumps with ping/pong keepalive
//   - A configurable slow consumer policy
//   - Read-only snapshots of rooms for the inspection API
//
// Architecture:
//
// The Hub's Run loop is the only goroutine that touches the relay. Connects,
// disconnects, inbound frames and inspection requests all arrive on channels
// and are handled one at a time, so every room sees events in a single order.
// Each client has a reader goroutine feeding the loop and a writer goroutine
// draining its outbound queue.
//
// Message Protocol:
//
// Every frame is a JSON envelope {"event": name, "data": payload}.
//   - Incoming: movementUpdate with the sender's square as data
//   - Outgoing: joined, updatedMovement and left
//
// A frame that is not a valid envelope closes the connection. Unknown events
// are ignored.
//
// Usage:
//
//	hub := websocket.NewHub(relay.New(identity.NewGenerator(identity.DefaultSeed)))
//	go hub.Run(ctx)
//
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("room"))
//	})
//
// Connection Lifecycle:
//
// 1. Client connects, optionally naming a room
// 2. Hub creates its square and sends joined
// 3. Client sends movementUpdate, others in the room receive updatedMovement
// 4. Disconnection announces left to the room and releases the square
package websocket
