package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/wricardo/mcp-training/squarerelay/config"
	"github.com/wricardo/mcp-training/squarerelay/game/relay"
	"github.com/wricardo/mcp-training/squarerelay/observability"
	"github.com/wricardo/mcp-training/squarerelay/transport/websocket"
)

const inspectTimeout = 2 * time.Second

// Hub is the part of the WebSocket hub the server depends on
type Hub interface {
	ServeWS(w http.ResponseWriter, r *http.Request, room string)
	Snapshot(ctx context.Context) ([]relay.RoomSnapshot, error)
	RoomSnapshot(ctx context.Context, name string) (relay.RoomSnapshot, bool, error)
	Stats(ctx context.Context) (websocket.Stats, error)
}

// Server represents the HTTP server: static client, WebSocket upgrade and
// read-only inspection endpoints
type Server struct {
	hub            Hub
	router         *mux.Router
	log            zerolog.Logger
	staticPath     string
	allowRoomParam bool
	startedAt      time.Time
}

// Option configures a Server
type Option func(*Server)

// WithStaticPath sets the file served at /
func WithStaticPath(path string) Option {
	return func(s *Server) { s.staticPath = path }
}

// WithRoomParam controls whether clients may pick a room with ?room=
func WithRoomParam(allow bool) Option {
	return func(s *Server) { s.allowRoomParam = allow }
}

// WithLogger sets the request and error logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// NewServer creates a new HTTP server
func NewServer(hub Hub, opts ...Option) *Server {
	s := &Server{
		hub:            hub,
		router:         mux.NewRouter(),
		log:            zerolog.Nop(),
		staticPath:     config.DefaultStaticPath,
		allowRoomParam: true,
		startedAt:      time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	observability.RegisterMetrics()
	s.setupRoutes()
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Use(observability.RequestLogger(s.log), observability.RequestMetrics())

	// Inspection, never mutates relay state
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{room}/squares", s.handleRoomSquares).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Client
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Client asset

// handleIndex reads the client from disk on every request
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	body, err := os.ReadFile(s.staticPath)
	if err != nil {
		s.log.Error().Err(err).Str("path", s.staticPath).Msg("failed to read client asset")
		http.Error(w, "failed to load client", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(body)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	room := ""
	if s.allowRoomParam {
		room = r.URL.Query().Get("room")
	}

	// Upgrade to WebSocket; an empty room means the hub default
	s.hub.ServeWS(w, r, room)
}

// Inspection Handlers

type roomSummary struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), inspectTimeout)
	defer cancel()

	snaps, err := s.hub.Snapshot(ctx)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	rooms := make([]roomSummary, 0, len(snaps))
	for _, snap := range snaps {
		rooms = append(rooms, roomSummary{Name: snap.Name, Members: snap.Members})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rooms": rooms,
		"total": len(rooms),
	})
}

func (s *Server) handleRoomSquares(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["room"]

	ctx, cancel := context.WithTimeout(r.Context(), inspectTimeout)
	defer cancel()

	snap, ok, err := s.hub.RoomSnapshot(ctx, name)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "room not found")
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), inspectTimeout)
	defer cancel()

	stats, err := s.hub.Stats(ctx)
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"rooms":       stats.Rooms,
		"connections": stats.Connections,
		"uptime":      time.Since(s.startedAt).Round(time.Second).String(),
	})
}
