// Package config holds the relay's runtime settings.
//
// Settings come from three layers, later ones winning:
//   - Default()
//   - an optional TOML file (LoadFile)
//   - command line flags and environment variables, applied by the binary
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// SlowConsumerPolicy decides what happens when a client's outbound queue is full
type SlowConsumerPolicy string

const (
	// Disconnect closes the client's connection, which then departs normally
	Disconnect SlowConsumerPolicy = "disconnect"
	// DropNewest discards the event that did not fit
	DropNewest SlowConsumerPolicy = "drop-newest"
	// DropOldest discards the oldest queued event to make room
	DropOldest SlowConsumerPolicy = "drop-oldest"
)

// ParseSlowConsumerPolicy converts a policy name
func ParseSlowConsumerPolicy(s string) (SlowConsumerPolicy, error) {
	switch p := SlowConsumerPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case Disconnect, DropNewest, DropOldest:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown slow consumer policy %q", ErrInvalidConfig, s)
	}
}

// UnmarshalText normalizes the policy name when decoding TOML
func (p *SlowConsumerPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseSlowConsumerPolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Default values
const (
	DefaultPort           = 3000
	DefaultRoom           = "room1"
	DefaultStaticPath     = "client/index.html"
	DefaultSendBuffer     = 256
	DefaultMaxMessageSize = 4096
)

// NgrokConfig controls the optional public tunnel
type NgrokConfig struct {
	Enabled   bool   `toml:"enabled"`
	AuthToken string `toml:"auth_token"`
	Domain    string `toml:"domain"`
}

// Config is the full set of relay settings
type Config struct {
	Host           string             `toml:"host"`
	Port           int                `toml:"port"`
	Room           string             `toml:"room"`
	AllowRoomParam bool               `toml:"allow_room_param"`
	StaticPath     string             `toml:"static_path"`
	SendBuffer     int                `toml:"send_buffer"`
	MaxMessageSize int64              `toml:"max_message_size"`
	SlowConsumer   SlowConsumerPolicy `toml:"slow_consumer"`
	IDSeed         uint64             `toml:"id_seed"`
	Debug          bool               `toml:"debug"`
	Ngrok          NgrokConfig        `toml:"ngrok"`
}

// Default returns the settings used when nothing is configured
func Default() Config {
	return Config{
		Port:           DefaultPort,
		Room:           DefaultRoom,
		AllowRoomParam: true,
		StaticPath:     DefaultStaticPath,
		SendBuffer:     DefaultSendBuffer,
		MaxMessageSize: DefaultMaxMessageSize,
		SlowConsumer:   Disconnect,
		IDSeed:         0xCAFEBABE,
	}
}

// LoadFile overlays the TOML file at path onto cfg. Keys the file does not
// mention keep their current value; unknown keys are rejected.
func LoadFile(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalidConfig, path, strings.Join(keys, ", "))
	}
	return nil
}

// Validate checks the settings for values the relay cannot run with
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if strings.TrimSpace(c.Room) == "" {
		return fmt.Errorf("%w: room name is required", ErrInvalidConfig)
	}
	if c.StaticPath == "" {
		return fmt.Errorf("%w: static path is required", ErrInvalidConfig)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("%w: send buffer must be positive", ErrInvalidConfig)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: max message size must be positive", ErrInvalidConfig)
	}
	if _, err := ParseSlowConsumerPolicy(string(c.SlowConsumer)); err != nil {
		return err
	}
	return nil
}

// Addr returns the listen address
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
