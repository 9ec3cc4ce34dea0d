// Package api provides the HTTP surface of the square relay.
//
// The api package implements:
//   - Serving the browser client
//   - WebSocket upgrade handling
//   - Read-only inspection of rooms and squares
//   - Health and Prometheus metrics endpoints
//
// Endpoints:
//
// Client:
//   - GET / - The client page, read from disk on every request
//   - GET /ws - WebSocket upgrade; ?room=name picks a room when allowed
//
// Inspection:
//   - GET /api/rooms - Non-empty rooms with member counts
//   - GET /api/rooms/{room}/squares - Current squares in a room
//   - GET /api/health - Status, room and connection counts
//   - GET /metrics - Prometheus metrics
//
// Error Handling:
//
// Inspection errors are returned as JSON {"error": "message"}. A missing
// room is 404; a hub that has stopped is 503. A client page that cannot be
// read is a plain 500.
//
// Inspection never mutates relay state. Requests are answered by the hub's
// event loop, so a snapshot reflects a single point in the event order.
package api
