// Command squarerelay starts the square relay server.
//
// It supports two modes:
//  1. "serve" (default) – runs the HTTP server exposing the client page, the WebSocket relay, REST inspection and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server against a relay API, starting an internal one if none is reachable
//
// Settings come from defaults, an optional TOML file, environment variables
// and flags, in that order. The listening port honors PORT, then NODE_PORT.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/squarerelay/api"
	"github.com/wricardo/mcp-training/squarerelay/config"
	"github.com/wricardo/mcp-training/squarerelay/game/identity"
	"github.com/wricardo/mcp-training/squarerelay/game/relay"
	"github.com/wricardo/mcp-training/squarerelay/observability"
	"github.com/wricardo/mcp-training/squarerelay/transport/mcp"
	"github.com/wricardo/mcp-training/squarerelay/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Square Relay"
)

const defaultAPIURL = "http://localhost:3000"

// main loads .env, parses flags and runs the selected command.
func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newCommand builds the command tree. Flags are shared by every command.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "squarerelay",
		Usage:   "relay square positions between browser clients in realtime",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "TOML configuration file",
				Sources: cli.EnvVars("RELAY_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "host",
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("HOST"),
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   config.DefaultPort,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("PORT", "NODE_PORT"),
			},
			&cli.StringFlag{
				Name:    "room",
				Value:   config.DefaultRoom,
				Usage:   "room clients join by default",
				Sources: cli.EnvVars("RELAY_ROOM"),
			},
			&cli.BoolFlag{
				Name:    "allow-room-param",
				Value:   true,
				Usage:   "let clients pick a room with ?room=",
				Sources: cli.EnvVars("RELAY_ALLOW_ROOM_PARAM"),
			},
			&cli.StringFlag{
				Name:    "static",
				Value:   config.DefaultStaticPath,
				Usage:   "client page served at /",
				Sources: cli.EnvVars("RELAY_STATIC_PATH"),
			},
			&cli.IntFlag{
				Name:    "send-buffer",
				Value:   config.DefaultSendBuffer,
				Usage:   "outbound frames queued per client",
				Sources: cli.EnvVars("RELAY_SEND_BUFFER"),
			},
			&cli.Int64Flag{
				Name:    "max-message-size",
				Value:   config.DefaultMaxMessageSize,
				Usage:   "largest inbound frame in bytes",
				Sources: cli.EnvVars("RELAY_MAX_MESSAGE_SIZE"),
			},
			&cli.StringFlag{
				Name:    "slow-consumer",
				Value:   string(config.Disconnect),
				Usage:   "what to do with clients that fall behind: disconnect, drop-newest or drop-oldest",
				Sources: cli.EnvVars("RELAY_SLOW_CONSUMER"),
			},
			&cli.Uint64Flag{
				Name:    "id-seed",
				Value:   identity.DefaultSeed,
				Usage:   "seed for square id hashing",
				Sources: cli.EnvVars("RELAY_ID_SEED"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				Sources: cli.EnvVars("DEBUG"),
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "enable ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "custom ngrok domain",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "run the HTTP server with the relay, inspection API and MCP endpoint",
				Action:  serve,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "run an MCP stdio server against a relay API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "api-url",
						Value:   defaultAPIURL,
						Usage:   "relay API to inspect; an internal server is started when unreachable",
						Sources: cli.EnvVars("RELAY_API_URL"),
					},
				},
				Action: runMCP,
			},
		},
	}
}

// loadConfig layers the TOML file and explicitly set flags over the defaults
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg := config.Default()

	if path := cmd.String("config"); path != "" {
		if err := config.LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = cmd.Int("port")
	}
	if cmd.IsSet("room") {
		cfg.Room = cmd.String("room")
	}
	if cmd.IsSet("allow-room-param") {
		cfg.AllowRoomParam = cmd.Bool("allow-room-param")
	}
	if cmd.IsSet("static") {
		cfg.StaticPath = cmd.String("static")
	}
	if cmd.IsSet("send-buffer") {
		cfg.SendBuffer = cmd.Int("send-buffer")
	}
	if cmd.IsSet("max-message-size") {
		cfg.MaxMessageSize = cmd.Int64("max-message-size")
	}
	if cmd.IsSet("slow-consumer") {
		policy, err := config.ParseSlowConsumerPolicy(cmd.String("slow-consumer"))
		if err != nil {
			return cfg, err
		}
		cfg.SlowConsumer = policy
	}
	if cmd.IsSet("id-seed") {
		cfg.IDSeed = cmd.Uint64("id-seed")
	}
	if cmd.IsSet("debug") {
		cfg.Debug = cmd.Bool("debug")
	}
	if cmd.IsSet("ngrok") {
		cfg.Ngrok.Enabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		cfg.Ngrok.AuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.Ngrok.Domain = cmd.String("ngrok-domain")
	}

	return cfg, cfg.Validate()
}

// newHub wires the relay, its metrics and the WebSocket hub
func newHub(cfg config.Config, logger zerolog.Logger) *websocket.Hub {
	r := relay.New(
		identity.NewGenerator(cfg.IDSeed),
		relay.WithObserver(observability.NewRelayMetrics()),
	)

	return websocket.NewHub(r,
		websocket.WithRoom(cfg.Room),
		websocket.WithSlowConsumerPolicy(cfg.SlowConsumer),
		websocket.WithSendBuffer(cfg.SendBuffer),
		websocket.WithMaxMessageSize(cfg.MaxMessageSize),
		websocket.WithLogger(logger.With().Str("component", "hub").Logger()),
	)
}

// newAPIServer builds the HTTP surface around a hub
func newAPIServer(cfg config.Config, logger zerolog.Logger, hub api.Hub) *api.Server {
	return api.NewServer(hub,
		api.WithStaticPath(cfg.StaticPath),
		api.WithRoomParam(cfg.AllowRoomParam),
		api.WithLogger(logger.With().Str("component", "http").Logger()),
	)
}

// newHandler mounts the API server at / and the MCP proxy at /mcp
func newHandler(apiServer http.Handler, mcpClient *mcp.Client, logger zerolog.Logger) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpHandler(mcpClient, logger))
	return mainRouter
}

// mcpHandler answers MCP JSON-RPC messages posted over HTTP
func mcpHandler(mcpClient *mcp.Client, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		responseData, err := json.Marshal(response)
		if err != nil {
			logger.Error().Err(err).Msg("failed to marshal MCP response")
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	}
}

// localBaseURL is the address this process can reach its own API on
func localBaseURL(cfg config.Config) string {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Port))
}

// serve runs the HTTP server until SIGINT or SIGTERM. If ngrok is enabled it
// also serves the same handler through a public tunnel.
func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := observability.InitLogger("squarerelay", cfg.Debug)
	logger.Info().Str("version", Version).Str("room", cfg.Room).Str("slow_consumer", string(cfg.SlowConsumer)).Msgf("Starting %s", AppName)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := newHub(cfg, logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	handler := newHandler(
		newAPIServer(cfg, logger, hub),
		mcp.NewClient(localBaseURL(cfg)),
		logger,
	)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serverErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info().
			Str("addr", cfg.Addr()).
			Str("client", localBaseURL(cfg)+"/").
			Str("websocket", "/ws").
			Str("api", "/api").
			Str("mcp", "/mcp").
			Msg("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if cfg.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg.Ngrok, handler, logger)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	case err := <-serverErr:
		stop()
		stopHub()
		wg.Wait()
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	// Closing the hub drops every WebSocket; Shutdown does not track hijacked connections
	stopHub()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	wg.Wait()
	logger.Info().Msg("Server stopped")
	return nil
}

// runNgrok serves handler through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, cfg config.NgrokConfig, handler http.Handler, logger zerolog.Logger) {
	if cfg.AuthToken == "" {
		logger.Warn().Msg("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)")
		return
	}

	logger.Info().Msg("Starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
		logger.Info().Str("domain", cfg.Domain).Msg("Using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.AuthToken))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to start ngrok tunnel")
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close ngrok tunnel")
		}
	}()

	logger.Info().
		Str("url", tun.URL()).
		Str("websocket", tun.URL()+"/ws").
		Str("mcp", tun.URL()+"/mcp").
		Msg("Ngrok tunnel established")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Error().Err(err).Msg("Ngrok server error")
	}
	logger.Info().Msg("Ngrok tunnel closed")
}

// apiAvailable reports whether a relay API answers at baseURL
func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// runMCP runs an MCP stdio server. It uses the API at --api-url when that
// answers, otherwise it starts an internal relay on a random loopback port.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// stdout carries the MCP protocol; logs go to stderr
	logger := observability.InitLogger("squarerelay-mcp", cfg.Debug)

	baseURL := cmd.String("api-url")
	if apiAvailable(ctx, baseURL) {
		logger.Info().Str("api_url", baseURL).Msg("External relay API found, using it for MCP")
	} else {
		logger.Info().Str("api_url", baseURL).Msg("No external relay API found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		hub := newHub(cfg, logger)
		hubCtx, stopHub := context.WithCancel(ctx)
		defer stopHub()
		go hub.Run(hubCtx)

		httpServer := &http.Server{Handler: newAPIServer(cfg, logger, hub)}
		defer httpServer.Close()

		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Internal HTTP server error")
			}
		}()

		baseURL = "http://" + listener.Addr().String()
		logger.Info().Str("api_url", baseURL).Msg("Internal HTTP server started")
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info().Msg("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
