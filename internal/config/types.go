package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Service   ServiceConfig   `yaml:"service" mapstructure:"service"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Overlay   OverlayConfig   `yaml:"overlay" mapstructure:"overlay"`
	Render    RenderConfig    `yaml:"render" mapstructure:"render"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	History   HistoryConfig   `yaml:"history" mapstructure:"history"`
	Privacy   PrivacyConfig   `yaml:"privacy" mapstructure:"privacy"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// ServiceConfig describes the remote grammar-checking service
type ServiceConfig struct {
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RateLimit float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second, 0 disables
	Burst     int           `yaml:"burst" mapstructure:"burst"`
	UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
}

// SessionConfig selects where the bearer token is kept
type SessionConfig struct {
	Store    string        `yaml:"store" mapstructure:"store"` // file, redis or memory
	Path     string        `yaml:"path" mapstructure:"path"`
	Profile  string        `yaml:"profile" mapstructure:"profile"`
	RedisURL string        `yaml:"redis_url" mapstructure:"redis_url"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// OverlayConfig tunes annotation placement
type OverlayConfig struct {
	Tolerance    int    `yaml:"tolerance" mapstructure:"tolerance"`
	PositionUnit string `yaml:"position_unit" mapstructure:"position_unit"` // rune, byte or utf16
}

// RenderConfig controls how segments are serialized
type RenderConfig struct {
	Format         string `yaml:"format" mapstructure:"format"` // terminal, html or markers
	HighlightClass string `yaml:"highlight_class" mapstructure:"highlight_class"`
	MarkerOpen     string `yaml:"marker_open" mapstructure:"marker_open"`
	MarkerClose    string `yaml:"marker_close" mapstructure:"marker_close"`
	Placeholder    string `yaml:"placeholder" mapstructure:"placeholder"`
}

// CacheConfig contains result cache configuration
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// HistoryConfig contains check history storage configuration
type HistoryConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Driver          string        `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	DSN             string        `yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	Redact          bool          `yaml:"redact" mapstructure:"redact"`
}

// PrivacyConfig selects redaction rules applied before text is persisted
type PrivacyConfig struct {
	Rules       []string `yaml:"rules" mapstructure:"rules"`
	Replacement string   `yaml:"replacement" mapstructure:"replacement"`
}

// ServerConfig contains preview server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RateLimit    struct {
		Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
		RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
		Burst          int  `yaml:"burst" mapstructure:"burst"`
	} `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Path            string        `yaml:"path" mapstructure:"path"`
	ReadBufferSize  int           `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size" mapstructure:"write_buffer_size"`
	PingInterval    time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxMessageSize  int64         `yaml:"max_message_size" mapstructure:"max_message_size"`
	Username        string        `yaml:"username" mapstructure:"username"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Events          struct {
		BroadcastChecks      bool `yaml:"broadcast_checks" mapstructure:"broadcast_checks"`
		BroadcastText        bool `yaml:"broadcast_text" mapstructure:"broadcast_text"`
		BroadcastSession     bool `yaml:"broadcast_session" mapstructure:"broadcast_session"`
		BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Service: ServiceConfig{
			BaseURL:   "http://localhost:5001/api",
			Timeout:   15 * time.Second,
			RateLimit: 5,
			Burst:     2,
			UserAgent: "grammar-sentinel/0.1.0",
		},
		Session: SessionConfig{
			Store:   "file",
			Path:    "",
			Profile: "default",
			TTL:     24 * time.Hour,
		},
		Overlay: OverlayConfig{
			Tolerance:    5,
			PositionUnit: "rune",
		},
		Render: RenderConfig{
			Format:         "terminal",
			HighlightClass: "bg-red-200 decoration-red-500",
			MarkerOpen:     "[[",
			MarkerClose:    "]]",
			Placeholder:    "Your corrected text will appear here",
		},
		Cache: CacheConfig{
			Enabled:        false,
			RedisURL:       "redis://localhost:6379/0",
			MaxConnections: 10,
			MinIdleConns:   1,
			DefaultTTL:     time.Hour,
			KeyPrefix:      "grammar-sentinel",
		},
		History: HistoryConfig{
			Enabled:         false,
			Driver:          "sqlite",
			DSN:             "grammar-sentinel.db",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			Redact:          true,
		},
		Privacy: PrivacyConfig{
			Rules:       []string{"all"},
			Replacement: "[MASKED_{{TYPE}}]",
		},
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
		WebSocket: WebSocketConfig{
			Enabled:         true,
			Path:            "/ws",
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingInterval:    54 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxMessageSize:  512,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}

	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerMin = 120
	cfg.Server.RateLimit.Burst = 20

	cfg.WebSocket.Events.BroadcastChecks = true
	cfg.WebSocket.Events.BroadcastText = true
	cfg.WebSocket.Events.BroadcastSession = true
	cfg.WebSocket.Events.BroadcastConnections = true

	cfg.Logging.File.Path = "logs/grammar-sentinel.log"

	return cfg
}
