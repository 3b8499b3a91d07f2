package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps coin icons so they survive restarts and are not
// downloaded again.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS icons (
			coin TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			source TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_icons_source ON icons(source);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// GetIcon reports false when nothing is stored for coin.
func (s *SQLiteStore) GetIcon(ctx context.Context, coin string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM icons WHERE coin = ?`, coin).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load icon %s: %w", coin, err)
	}
	return data, true, nil
}

func (s *SQLiteStore) SaveIcon(ctx context.Context, coin string, data []byte, source string) error {
	query := `INSERT INTO icons (coin, data, source, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(coin) DO UPDATE SET data = excluded.data, source = excluded.source, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, coin, data, source, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save icon %s: %w", coin, err)
	}
	return nil
}

// CountIcons reports how many icons are stored.
func (s *SQLiteStore) CountIcons(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM icons`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
