// Package mcp provides a Model Context Protocol server for inspecting the
// square relay.
//
// The mcp package implements:
//   - An MCP server whose tools proxy the REST inspection API
//   - Text formatting of rooms and squares for agents
//   - Stdio and HTTP transport modes (wired by the binary)
//
// MCP Tools:
//   - list_rooms: Rooms with connected clients and their member counts
//   - room_squares: Current square of every client in a room
//   - relay_health: Status, room count, connection count and uptime
//
// The tools are read-only. The realtime protocol is only available over
// WebSocket; agents observe it, they do not take part.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:3000")
//	server.ServeStdio(client.GetMCPServer())
package mcp
