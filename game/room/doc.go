// Package room groups relay connections into named broadcast domains.
//
// The room package handles:
//   - Joining and leaving named rooms
//   - Dropping a room once its last member leaves
//   - Broadcast to every member, or to everyone but the sender
//   - Unicast to a single member
//   - Counting sent and failed deliveries per fan-out
//
// Delivery:
//
// Members expose a non-blocking Send. A failed send is counted and skipped,
// so one slow member never holds up the rest of the room.
//
// A Registry is not safe for concurrent use.
package room
