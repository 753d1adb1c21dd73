package autorisk

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/margin/risk"
)

const settingsSchema = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore keeps the configuration as a JSON value in a key/value
// settings table.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(settingsSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (Config, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, Key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("load %s: %w", Key, err)
	}

	// Decoding over the defaults keeps them for missing fields; a JSON
	// null leaves cfg nil.
	def := Default()
	cfg := &def
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return Default(), fmt.Errorf("decode %s: %v: %w", Key, err, risk.ErrPersistenceCorrupt)
	}
	return checkLoaded(cfg)
}

func (s *SQLiteStore) Save(ctx context.Context, cfg Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		Key, string(raw),
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
