package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:5001/api", cfg.Service.BaseURL)
		assert.Equal(t, 5, cfg.Overlay.Tolerance)
		assert.Equal(t, "rune", cfg.Overlay.PositionUnit)
	})

	t.Run("File", func(t *testing.T) {
		path := writeConfig(t, `
service:
  base_url: https://grammar.example.com/api
  timeout: 3s
overlay:
  tolerance: 8
  position_unit: utf16
render:
  format: html
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "https://grammar.example.com/api", cfg.Service.BaseURL)
		assert.Equal(t, 3*time.Second, cfg.Service.Timeout)
		assert.Equal(t, 8, cfg.Overlay.Tolerance)
		assert.Equal(t, "utf16", cfg.Overlay.PositionUnit)
		assert.Equal(t, "html", cfg.Render.Format)
		// untouched keys keep defaults
		assert.Equal(t, "bg-red-200 decoration-red-500", cfg.Render.HighlightClass)
	})

	t.Run("EnvOverride", func(t *testing.T) {
		t.Setenv("GRAMMAR_SENTINEL_SERVICE_BASE_URL", "http://env.example.com/api")
		t.Setenv("GRAMMAR_SENTINEL_OVERLAY_TOLERANCE", "2")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "http://env.example.com/api", cfg.Service.BaseURL)
		assert.Equal(t, 2, cfg.Overlay.Tolerance)
	})

	t.Run("Invalid", func(t *testing.T) {
		path := writeConfig(t, "overlay:\n  position_unit: furlong\n")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("Malformed", func(t *testing.T) {
		path := writeConfig(t, "service: [unclosed\n")
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"BadURL":        func(c *Config) { c.Service.BaseURL = "not a url" },
		"NegativeRate":  func(c *Config) { c.Service.RateLimit = -1 },
		"SessionStore":  func(c *Config) { c.Session.Store = "cookie" },
		"RedisNoURL":    func(c *Config) { c.Session.Store = "redis" },
		"Tolerance":     func(c *Config) { c.Overlay.Tolerance = -1 },
		"RenderFormat":  func(c *Config) { c.Render.Format = "pdf" },
		"HistoryDriver": func(c *Config) { c.History.Enabled = true; c.History.Driver = "mysql" },
		"Port":          func(c *Config) { c.Server.Port = 0 },
		"LogLevel":      func(c *Config) { c.Logging.Level = "trace" },
		"LogFormat":     func(c *Config) { c.Logging.Format = "xml" },
	}

	require.NoError(t, Validate(GetDefaults()))

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := GetDefaults()
			mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}
