// Package identity derives opaque square identifiers from per-connection seed
// material.
//
// The identity package provides:
//   - A Generator hashing connection handles with a configurable seed
//   - Lowercase hex XXH64 digests as identifiers
//   - Seed material mixing the handle with the connect time
//
// Guarantees:
//
// Identifiers are fast to compute and collide rarely, but carry no
// cryptographic guarantee. Callers that need uniqueness among live entities
// must check for themselves; the relay retries with a suffixed seed.
package identity
