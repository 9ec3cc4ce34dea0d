// Package protocol defines the named-event envelope exchanged with relay
// clients.
//
// Every text frame carries exactly one envelope:
//
//	{"event": "movementUpdate", "data": {...}}
//
// Inbound events:
//   - movementUpdate: the sender's full square
//
// Outbound events:
//   - joined: the newly created square, sent to its owner only
//   - updatedMovement: a square after an update, sent to everyone but its owner
//   - left: the id of a departed square
package protocol
