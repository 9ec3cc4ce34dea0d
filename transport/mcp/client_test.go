package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("Expected result, got nil")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	return text.Text
}

func newRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:3000/")

	if client == nil {
		t.Fatal("Expected client to be created")
	}

	if client.baseURL != "http://localhost:3000" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.baseURL)
	}

	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}

	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "room not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.apiCall(context.Background(), "/api/rooms/x/squares", nil)
	if err == nil || err.Error() != "room not found" {
		t.Errorf("Expected API error message, got %v", err)
	}
}

func TestClient_apiCall_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	if err := client.apiCall(context.Background(), "/api/health", nil); err == nil {
		t.Error("Expected error for unreachable server")
	}
}

func TestClient_listRooms(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" || r.URL.Path != "/api/rooms" {
			t.Errorf("Expected GET /api/rooms, got %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"rooms":[{"name":"room1","members":2},{"name":"red","members":1}],"total":2}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleListRooms(context.Background(), newRequest("list_rooms", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("listRooms failed: %v", err)
	}

	text := toolText(t, result)
	for _, want := range []string{"Active rooms (2)", "room1: 2 client(s)", "red: 1 client(s)"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in result, got: %s", want, text)
		}
	}
}

func TestClient_roomSquares(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rooms/room1/squares" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"room not found"}`))
			return
		}
		w.Write([]byte(`{"name":"room1","members":2,"squares":[` +
			`{"id":"1a2b","x":10,"y":20,"destX":30,"destY":40,"lastUpdate":1700000000000},` +
			`"just a string"]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	t.Run("formats squares", func(t *testing.T) {
		result, err := client.handleRoomSquares(ctx, newRequest("room_squares", map[string]interface{}{"room": "room1"}))
		if err != nil {
			t.Fatalf("roomSquares failed: %v", err)
		}

		text := toolText(t, result)
		for _, want := range []string{"Room room1 (2 client(s))", "id=1a2b", "pos=(10, 20)", "dest=(30, 40)", `"just a string"`} {
			if !strings.Contains(text, want) {
				t.Errorf("Expected %q in result, got: %s", want, text)
			}
		}
	})

	t.Run("missing room argument", func(t *testing.T) {
		result, _ := client.handleRoomSquares(ctx, newRequest("room_squares", map[string]interface{}{}))
		if !result.IsError {
			t.Error("Expected tool error for missing room")
		}
	})

	t.Run("unknown room", func(t *testing.T) {
		result, _ := client.handleRoomSquares(ctx, newRequest("room_squares", map[string]interface{}{"room": "nope"}))
		if !result.IsError {
			t.Error("Expected tool error for unknown room")
		}
		if text := toolText(t, result); !strings.Contains(text, "room not found") {
			t.Errorf("Expected API error in result, got: %s", text)
		}
	})
}

func TestClient_health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy","rooms":1,"connections":3,"uptime":"5s"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleHealth(context.Background(), newRequest("relay_health", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("health failed: %v", err)
	}

	text := toolText(t, result)
	if !strings.Contains(text, "Status: healthy") || !strings.Contains(text, "Connections: 3") {
		t.Errorf("Unexpected result: %s", text)
	}
}

func TestClient_HandleMessageListsTools(t *testing.T) {
	client := NewClient("http://localhost:3000")

	msg := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	response := client.GetMCPServer().HandleMessage(context.Background(), msg)

	data, err := json.Marshal(response)
	if err != nil {
		t.Fatalf("Failed to marshal response: %v", err)
	}

	for _, tool := range []string{"list_rooms", "room_squares", "relay_health"} {
		if !strings.Contains(string(data), tool) {
			t.Errorf("Expected tool %s in tools/list response: %s", tool, data)
		}
	}
}
