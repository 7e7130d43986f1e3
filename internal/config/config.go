package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/raaihank/grammar-sentinel/internal/overlay"
)

// EnvPrefix prefixes environment overrides, e.g. GRAMMAR_SENTINEL_SERVICE_BASE_URL
const EnvPrefix = "GRAMMAR_SENTINEL"

// Loader reads configuration from file and environment
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader. An empty configPath searches the default locations.
func NewLoader(configPath string) *Loader {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/grammar-sentinel/")
	v.AddConfigPath("$HOME/.grammar-sentinel/")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

// Load reads, unmarshals and validates the configuration
func (l *Loader) Load() (*Config, error) {
	config := GetDefaults()
	bindDefaults(l.v, config)

	if err := l.v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := l.v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// ConfigFile returns the file the configuration was read from, if any
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Watch calls onChange with each valid configuration written to the config
// file. Invalid revisions are passed to onError and otherwise ignored.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := l.v.Unmarshal(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("failed to unmarshal config: %w", err))
			}
			return
		}

		if err := Validate(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("invalid configuration in %s: %w", e.Name, err))
			}
			return
		}

		onChange(newConfig)
	})
	l.v.WatchConfig()
}

// bindDefaults registers every key so environment overrides apply even when
// no config file sets them.
func bindDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("service.base_url", c.Service.BaseURL)
	v.SetDefault("service.timeout", c.Service.Timeout)
	v.SetDefault("service.rate_limit", c.Service.RateLimit)
	v.SetDefault("service.burst", c.Service.Burst)
	v.SetDefault("service.user_agent", c.Service.UserAgent)

	v.SetDefault("session.store", c.Session.Store)
	v.SetDefault("session.path", c.Session.Path)
	v.SetDefault("session.profile", c.Session.Profile)
	v.SetDefault("session.redis_url", c.Session.RedisURL)
	v.SetDefault("session.ttl", c.Session.TTL)

	v.SetDefault("overlay.tolerance", c.Overlay.Tolerance)
	v.SetDefault("overlay.position_unit", c.Overlay.PositionUnit)

	v.SetDefault("render.format", c.Render.Format)
	v.SetDefault("render.highlight_class", c.Render.HighlightClass)

	v.SetDefault("cache.enabled", c.Cache.Enabled)
	v.SetDefault("cache.redis_url", c.Cache.RedisURL)
	v.SetDefault("cache.default_ttl", c.Cache.DefaultTTL)

	v.SetDefault("history.enabled", c.History.Enabled)
	v.SetDefault("history.driver", c.History.Driver)
	v.SetDefault("history.dsn", c.History.DSN)

	v.SetDefault("server.port", c.Server.Port)
	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.format", c.Logging.Format)
}

// Validate checks a configuration for values the components cannot work with
func Validate(config *Config) error {
	if u, err := url.Parse(config.Service.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid service base_url: %q", config.Service.BaseURL)
	}

	if config.Service.RateLimit < 0 {
		return fmt.Errorf("invalid service rate_limit: %v", config.Service.RateLimit)
	}

	switch config.Session.Store {
	case "file", "memory":
	case "redis":
		if config.Session.RedisURL == "" {
			return fmt.Errorf("session store redis requires session.redis_url")
		}
	default:
		return fmt.Errorf("invalid session store: %s (must be file, redis, or memory)", config.Session.Store)
	}

	if config.Overlay.Tolerance < 0 {
		return fmt.Errorf("invalid overlay tolerance: %d", config.Overlay.Tolerance)
	}
	if _, err := overlay.ParseUnit(config.Overlay.PositionUnit); err != nil {
		return err
	}

	switch config.Render.Format {
	case "terminal", "html", "markers":
	default:
		return fmt.Errorf("invalid render format: %s (must be terminal, html, or markers)", config.Render.Format)
	}

	if config.History.Enabled && config.History.Driver != "sqlite" && config.History.Driver != "postgres" {
		return fmt.Errorf("invalid history driver: %s (must be sqlite or postgres)", config.History.Driver)
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}
