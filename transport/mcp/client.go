package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Client is an MCP server whose tools read the relay's REST inspection API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Square Relay",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Square Relay - MCP Interface

Read-only view of a realtime relay that broadcasts square positions between
browser clients grouped in rooms. Tools never change relay state.

AVAILABLE TOOLS:
- list_rooms: Rooms with at least one connected client
- room_squares: Current squares in one room
- relay_health: Relay status with room and connection counts`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List rooms that currently have connected clients",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "room_squares",
		Description: "Show the current square of every client in a room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room": map[string]interface{}{
					"type":        "string",
					"description": "Room name, e.g. room1",
				},
			},
			Required: []string{"room"},
		},
	}, c.handleRoomSquares)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "relay_health",
		Description: "Get relay status, room count and connection count",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleHealth)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Response shapes of the inspection API

type roomList struct {
	Rooms []struct {
		Name    string `json:"name"`
		Members int    `json:"members"`
	} `json:"rooms"`
	Total int `json:"total"`
}

type roomSquares struct {
	Name    string            `json:"name"`
	Members int               `json:"members"`
	Squares []json.RawMessage `json:"squares"`
}

type health struct {
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
	Uptime      string `json:"uptime"`
}

// Tool handlers

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var rooms roomList
	if err := c.apiCall(ctx, "/api/rooms", &rooms); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if rooms.Total == 0 {
		return mcp.NewToolResultText("No active rooms"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active rooms (%d):\n", rooms.Total)
	for _, r := range rooms.Rooms {
		fmt.Fprintf(&b, "- %s: %d client(s)\n", r.Name, r.Members)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleRoomSquares(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	name, _ := args["room"].(string)
	if name == "" {
		return mcp.NewToolResultError("room is required"), nil
	}

	var snap roomSquares
	if err := c.apiCall(ctx, "/api/rooms/"+url.PathEscape(name)+"/squares", &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoomSquares(snap)), nil
}

func (c *Client) handleHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var h health
	if err := c.apiCall(ctx, "/api/health", &h); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Status: %s\nRooms: %d\nConnections: %d\nUptime: %s\n",
		h.Status, h.Rooms, h.Connections, h.Uptime)
	return mcp.NewToolResultText(result), nil
}

// formatRoomSquares renders one line per square. Squares are client supplied
// and may not be objects; those are shown raw.
func formatRoomSquares(snap roomSquares) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room %s (%d client(s)):\n", snap.Name, snap.Members)

	for _, raw := range snap.Squares {
		var sq map[string]interface{}
		if err := json.Unmarshal(raw, &sq); err != nil || sq == nil {
			fmt.Fprintf(&b, "- %s\n", string(raw))
			continue
		}

		fmt.Fprintf(&b, "- id=%v pos=(%v, %v) dest=(%v, %v) lastUpdate=%v\n",
			field(sq, "id"), field(sq, "x"), field(sq, "y"),
			field(sq, "destX"), field(sq, "destY"), field(sq, "lastUpdate"))
	}
	return b.String()
}

func field(sq map[string]interface{}, key string) interface{} {
	if v, ok := sq[key]; ok {
		return v
	}
	return "?"
}
