// Package square holds the per-connection entity of the relay and the store
// that owns it.
//
// A Square is what a client sees of another participant: position, size and
// any interpolation hints the client chose to send. The server reads none of
// it except the id, and writes only lastUpdate.
//
// Lifecycle:
//
//	store := square.NewStore()
//	sq, _ := store.Create(handle, id)      // on connect
//	sq, _ = store.Replace(handle, payload) // on every movement update
//	store.Destroy(handle)                  // on disconnect
//
// Store is confined to a single goroutine; see transport/websocket.Hub.
package square
