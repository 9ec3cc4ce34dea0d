// Command probe connects to a square relay, prints the events it receives
// and optionally moves its own square so other clients can watch it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/squarerelay/game/protocol"
)

// Options controls a probe run
type Options struct {
	URL      string
	Room     string
	Count    int
	Interval time.Duration
	Step     float64
	Linger   time.Duration
}

func main() {
	cmd := &cli.Command{
		Name:  "probe",
		Usage: "connect to a square relay and print its events",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:3000", Usage: "relay base URL", Sources: cli.EnvVars("RELAY_URL")},
			&cli.StringFlag{Name: "room", Usage: "room to join (server default when empty)"},
			&cli.IntFlag{Name: "count", Usage: "movement updates to send"},
			&cli.DurationFlag{Name: "interval", Value: 100 * time.Millisecond, Usage: "delay between updates"},
			&cli.FloatFlag{Name: "step", Value: 10, Usage: "distance moved per update"},
			&cli.DurationFlag{Name: "linger", Usage: "keep listening this long after sending; 0 with no updates listens until interrupted"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return probe(ctx, Options{
				URL:      cmd.String("url"),
				Room:     cmd.String("room"),
				Count:    cmd.Int("count"),
				Interval: cmd.Duration("interval"),
				Step:     cmd.Float("step"),
				Linger:   cmd.Duration("linger"),
			}, os.Stdout)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// wsURL turns an http(s) base URL into the relay's WebSocket endpoint
func wsURL(base, room string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", base, err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	if room != "" {
		q := u.Query()
		q.Set("room", room)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// probe joins the relay, prints every event and sends opts.Count updates
func probe(ctx context.Context, opts Options, out io.Writer) error {
	target, err := wsURL(opts.URL, opts.Room)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read joined: %w", err)
	}
	env, err := protocol.Decode(data)
	if err != nil {
		return err
	}
	if env.Event != protocol.EventJoined {
		return fmt.Errorf("expected %s, got %s", protocol.EventJoined, env.Event)
	}

	var sq map[string]interface{}
	if err := json.Unmarshal(env.Data, &sq); err != nil {
		return fmt.Errorf("joined payload is not an object: %w", err)
	}
	fmt.Fprintln(out, formatEvent(env))

	var wg sync.WaitGroup
	readDone := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(readDone)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			env, err := protocol.Decode(data)
			if err != nil {
				fmt.Fprintf(out, "malformed frame: %s\n", data)
				continue
			}
			fmt.Fprintln(out, formatEvent(env))
		}
	}()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for i := 0; i < opts.Count; i++ {
		move(sq, opts.Step)
		frame, err := protocol.Encode(protocol.EventMovementUpdate, sq)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return fmt.Errorf("failed to send update: %w", err)
		}

		select {
		case <-ticker.C:
		case <-readDone:
			return fmt.Errorf("connection closed by relay")
		case <-ctx.Done():
			return closeConn(conn, &wg)
		}
	}

	var linger <-chan time.Time
	if opts.Linger > 0 || opts.Count > 0 {
		linger = time.After(opts.Linger)
	}

	select {
	case <-linger:
	case <-readDone:
	case <-ctx.Done():
	}
	return closeConn(conn, &wg)
}

// closeConn sends a close frame and waits for the reader to stop
func closeConn(conn *websocket.Conn, wg *sync.WaitGroup) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	conn.SetReadDeadline(time.Now().Add(time.Second))
	wg.Wait()
	return nil
}

// move shifts the square right by step and updates its interpolation fields
func move(sq map[string]interface{}, step float64) {
	x, _ := sq["x"].(float64)
	y, _ := sq["y"].(float64)

	sq["prevX"] = x
	sq["prevY"] = y
	sq["x"] = x + step
	sq["destX"] = x + 2*step
	sq["destY"] = y
	sq["alpha"] = 0
}

// formatEvent renders one received event as a single line
func formatEvent(env protocol.Envelope) string {
	switch env.Event {
	case protocol.EventJoined, protocol.EventUpdatedMovement:
		var sq map[string]interface{}
		if err := json.Unmarshal(env.Data, &sq); err != nil || sq == nil {
			return fmt.Sprintf("%s %s", env.Event, env.Data)
		}
		return fmt.Sprintf("%s id=%v pos=(%v, %v)", env.Event, sq["id"], sq["x"], sq["y"])
	case protocol.EventLeft:
		var id string
		if err := json.Unmarshal(env.Data, &id); err != nil {
			return fmt.Sprintf("%s %s", env.Event, env.Data)
		}
		return fmt.Sprintf("%s id=%s", env.Event, id)
	default:
		return fmt.Sprintf("%s %s", env.Event, env.Data)
	}
}
