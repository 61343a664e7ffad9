package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. CTT_SERVER_HTTP_ADDRESS.
const EnvPrefix = "CTT"

// Config holds all server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameConfig     `mapstructure:"game"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig configures the network listeners.
type ServerConfig struct {
	HTTP            HTTPConfig      `mapstructure:"http"`
	WebSocket       WebSocketConfig `mapstructure:"websocket"`
	GRPC            GRPCConfig      `mapstructure:"grpc"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
}

// HTTPConfig configures the HTTP listener that also serves the websocket endpoint.
type HTTPConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// WebSocketConfig configures per-connection websocket behaviour.
type WebSocketConfig struct {
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	SendQueueSize   int           `mapstructure:"send_queue_size"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	PongWait        time.Duration `mapstructure:"pong_wait"`
	WriteWait       time.Duration `mapstructure:"write_wait"`
}

// GRPCConfig configures the admin gRPC listener.
type GRPCConfig struct {
	Address              string `mapstructure:"address"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// GameConfig configures room lifecycle timing.
type GameConfig struct {
	StartDelay    time.Duration `mapstructure:"start_delay"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	IdleRoomTTL   time.Duration `mapstructure:"idle_room_ttl"`
	// MaxRooms is the open room count at which the rooms health service
	// reports NOT_SERVING. Zero disables the limit.
	MaxRooms      int           `mapstructure:"max_rooms"`
}

// DatabaseConfig selects and configures the match history store.
type DatabaseConfig struct {
	Driver         string        `mapstructure:"driver"` // memory, postgres or sqlite
	URL            string        `mapstructure:"url"`
	SQLitePath     string        `mapstructure:"sqlite_path"`
	MaxConns       int32         `mapstructure:"max_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	HistoryLimit   int           `mapstructure:"history_limit"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http.address", ":8080")
	v.SetDefault("server.http.read_timeout", 15*time.Second)
	v.SetDefault("server.http.write_timeout", 15*time.Second)
	v.SetDefault("server.websocket.read_buffer_size", 1024)
	v.SetDefault("server.websocket.write_buffer_size", 1024)
	v.SetDefault("server.websocket.send_queue_size", 256)
	v.SetDefault("server.websocket.max_message_size", 64*1024)
	v.SetDefault("server.websocket.ping_interval", 54*time.Second)
	v.SetDefault("server.websocket.pong_wait", 60*time.Second)
	v.SetDefault("server.websocket.write_wait", 10*time.Second)
	v.SetDefault("server.grpc.address", ":9090")
	v.SetDefault("server.grpc.max_concurrent_streams", 100)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("game.start_delay", 500*time.Millisecond)
	v.SetDefault("game.sweep_interval", time.Minute)
	v.SetDefault("game.idle_room_ttl", 5*time.Minute)
	v.SetDefault("game.max_rooms", 0)

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.url", "")
	v.SetDefault("database.sqlite_path", "data/matches.db")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.connect_timeout", 5*time.Second)
	v.SetDefault("database.write_timeout", 3*time.Second)
	v.SetDefault("database.history_limit", 50)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads configuration from path, falling back to defaults when the
// file does not exist. Environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that defaults cannot guarantee.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Server.WebSocket.PingInterval >= c.Server.WebSocket.PongWait {
		return fmt.Errorf("server.websocket.ping_interval must be shorter than pong_wait")
	}
	if c.Server.WebSocket.SendQueueSize <= 0 {
		return fmt.Errorf("server.websocket.send_queue_size must be positive")
	}
	if c.Game.MaxRooms < 0 {
		return fmt.Errorf("game.max_rooms must not be negative")
	}
	if c.Game.StartDelay < 0 {
		return fmt.Errorf("game.start_delay must not be negative")
	}
	return nil
}
