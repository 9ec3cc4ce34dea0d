// Package relay implements connection lifecycle and movement fan-out for the
// square relay.
//
// The relay package implements:
//   - One square per active connection, created on connect
//   - Room membership for every connection
//   - A joined event for the newcomer only
//   - Wholesale square replacement on every movement update
//   - Fan-out of updates to everyone in the room except the sender
//   - A left announcement to the remaining members on disconnect
//
// Lifecycle:
//
// Each connection moves from Connecting to Active when Connect returns and to
// Disconnected when the transport reports closure and calls Disconnect. There
// is no other state. Disconnect announces first and removes second, so the
// departing connection is still a room member while its left event is built
// but is excluded from the recipients.
//
// Trust:
//
// Movement payloads are stored and relayed without inspection. Only the
// lastUpdate field is rewritten by the server. A client can therefore move,
// resize or even rename its own square at will.
//
// Concurrency:
//
// A Relay must be driven from a single goroutine. The websocket transport
// does this from its hub loop, so no handler ever observes another's
// half-applied change.
package relay
