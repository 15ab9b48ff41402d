// Package store keeps the current day's word on disk so a restart on the
// same day reuses it.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"wes/internal/wotd"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// ErrEmpty is returned by Load when nothing has been saved yet.
var ErrEmpty = errors.New("no stored word")

const schema = `CREATE TABLE IF NOT EXISTS daily_word (
	day        TEXT PRIMARY KEY,
	word       TEXT NOT NULL,
	spelling   TEXT NOT NULL,
	definition TEXT NOT NULL,
	example    TEXT NOT NULL
)`

// Store is a one-row SQLite table holding the latest generated word.
type Store struct {
	db *sql.DB
}

// Open connects to the database at path, creating parent directories and
// the table as needed. ":memory:" is accepted for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DefaultPath returns ~/.local/share/wes/wes.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "wes", "wes.db"), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored word with p for date.
func (s *Store) Save(ctx context.Context, date wotd.Date, p wotd.WordPayload) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_word`); err != nil {
		return fmt.Errorf("clear daily word: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO daily_word (day, word, spelling, definition, example) VALUES (?, ?, ?, ?, ?)`,
		date.String(), p.Word, p.Spelling, p.Definition, p.Example,
	); err != nil {
		return fmt.Errorf("insert daily word: %w", err)
	}
	return tx.Commit()
}

// Load returns the stored day and word, or ErrEmpty.
func (s *Store) Load(ctx context.Context) (wotd.Date, wotd.WordPayload, error) {
	var (
		day string
		p   wotd.WordPayload
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT day, word, spelling, definition, example FROM daily_word LIMIT 1`,
	).Scan(&day, &p.Word, &p.Spelling, &p.Definition, &p.Example)
	if errors.Is(err, sql.ErrNoRows) {
		return wotd.Date{}, wotd.WordPayload{}, ErrEmpty
	}
	if err != nil {
		return wotd.Date{}, wotd.WordPayload{}, fmt.Errorf("load daily word: %w", err)
	}

	date, err := wotd.ParseDate(day)
	if err != nil {
		return wotd.Date{}, wotd.WordPayload{}, fmt.Errorf("load daily word: %w", err)
	}
	return date, p, nil
}

// Seed fills cache from the store. It reports whether a word was loaded.
func (s *Store) Seed(ctx context.Context, cache *wotd.DailyWordCache) (bool, error) {
	date, p, err := s.Load(ctx)
	if errors.Is(err, ErrEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := p.Validate(); err != nil {
		return false, fmt.Errorf("stored word: %w", err)
	}
	cache.Set(date, p)
	return true, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}
