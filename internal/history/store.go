// Package history records completed grammar checks in a SQL database.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/raaihank/grammar-sentinel/internal/overlay"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS checks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	text_hash   TEXT    NOT NULL,
	text        TEXT    NOT NULL,
	annotations TEXT    NOT NULL,
	highlights  INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checks_created_at ON checks (created_at);`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS checks (
	id          BIGSERIAL PRIMARY KEY,
	text_hash   TEXT    NOT NULL,
	text        TEXT    NOT NULL,
	annotations TEXT    NOT NULL,
	highlights  INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	created_at  BIGINT  NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checks_created_at ON checks (created_at);`

// Store persists check records
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore opens the database and creates the schema
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	var schema string
	switch config.Driver {
	case "sqlite":
		schema = sqliteSchema
	case "postgres":
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("unsupported history driver: %s", config.Driver)
	}

	db, err := sqlx.Connect(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if config.Driver == "sqlite" {
		// sqlite serializes writers, and an in-memory database lives and
		// dies with its single connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxIdleConns)
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info("History store initialized", zap.String("driver", config.Driver))

	return &Store{db: db, logger: logger}, nil
}

// Insert stores a record and fills in its ID and timestamp
func (s *Store) Insert(ctx context.Context, rec *Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	anns := rec.Annotations
	if anns == nil {
		anns = []overlay.Annotation{}
	}
	encoded, err := json.Marshal(anns)
	if err != nil {
		return fmt.Errorf("failed to encode annotations: %w", err)
	}

	query := s.db.Rebind(`
		INSERT INTO checks (text_hash, text, annotations, highlights, skipped, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err = s.db.QueryRowxContext(ctx, query,
		rec.TextHash,
		rec.Text,
		string(encoded),
		rec.Highlights,
		rec.Skipped,
		rec.CreatedAt.UnixMilli(),
	).Scan(&rec.ID)
	if err != nil {
		s.logger.Error("Failed to insert check record", zap.Error(err))
		return fmt.Errorf("failed to insert check record: %w", err)
	}

	s.logger.Debug("Check record inserted", zap.Int64("id", rec.ID), zap.Int("highlights", rec.Highlights))
	return nil
}

// List returns the most recent records, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT id, text_hash, text, annotations, highlights, skipped, created_at
		FROM checks ORDER BY created_at DESC, id DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list check records: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			s.logger.Warn("Skipping unreadable check record", zap.Int64("id", r.ID), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Stats returns totals over all records
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	query := `SELECT COUNT(*) AS checks,
		COALESCE(SUM(highlights), 0) AS highlights,
		COALESCE(SUM(skipped), 0) AS skipped
		FROM checks`
	if err := s.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to compute history stats: %w", err)
	}
	return &stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (r row) record() (Record, error) {
	var anns []overlay.Annotation
	if err := json.Unmarshal([]byte(r.Annotations), &anns); err != nil {
		return Record{}, fmt.Errorf("failed to decode annotations: %w", err)
	}
	return Record{
		ID:          r.ID,
		TextHash:    r.TextHash,
		Text:        r.Text,
		Annotations: anns,
		Highlights:  r.Highlights,
		Skipped:     r.Skipped,
		CreatedAt:   time.UnixMilli(r.CreatedAt),
	}, nil
}
