package history

import (
	"time"

	"github.com/raaihank/grammar-sentinel/internal/overlay"
)

// Record is one completed grammar check
type Record struct {
	ID          int64                `json:"id"`
	TextHash    string               `json:"text_hash"`
	Text        string               `json:"text"`
	Annotations []overlay.Annotation `json:"annotations"`
	Highlights  int                  `json:"highlights"`
	Skipped     int                  `json:"skipped"`
	CreatedAt   time.Time            `json:"created_at"`
}

// Stats summarizes the stored history
type Stats struct {
	Checks     int64 `json:"checks" db:"checks"`
	Highlights int64 `json:"highlights" db:"highlights"`
	Skipped    int64 `json:"skipped" db:"skipped"`
}

// Config contains database configuration
type Config struct {
	Driver          string        `yaml:"driver" mapstructure:"driver"`
	DSN             string        `yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// row mirrors the checks table
type row struct {
	ID          int64  `db:"id"`
	TextHash    string `db:"text_hash"`
	Text        string `db:"text"`
	Annotations string `db:"annotations"`
	Highlights  int    `db:"highlights"`
	Skipped     int    `db:"skipped"`
	CreatedAt   int64  `db:"created_at"` // unix milliseconds
}
