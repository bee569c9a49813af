// Package history persists completed generation runs in SQLite so the
// API can list what was produced and where the output files live.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no run with the requested ID exists.
var ErrNotFound = errors.New("history: run not found")

const defaultRecentLimit = 20

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	text          TEXT NOT NULL,
	gloss         TEXT NOT NULL DEFAULT '[]',
	video_path    TEXT NOT NULL,
	clip_count    INTEGER NOT NULL DEFAULT 0,
	missing_words TEXT NOT NULL DEFAULT '[]',
	warnings      TEXT NOT NULL DEFAULT '[]',
	created_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

// Entry is one recorded generation run.
type Entry struct {
	ID           string
	Text         string
	Gloss        []string
	VideoPath    string
	ClipCount    int
	MissingWords []string
	Warnings     []string
	CreatedAt    time.Time
}

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

// Open opens the history database at path, creating the file and schema
// when missing. File databases run in WAL mode with a busy timeout so
// concurrent runs can record without tripping on the writer lock.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history: path must not be empty")
	}

	dsn := path
	if path != ":memory:" && !strings.Contains(path, "?") {
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	if path == ":memory:" {
		// A second pool connection would see an empty in-memory database.
		db.SetMaxOpenConns(1)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("history: apply schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Record stores one completed run. A zero CreatedAt is filled with the
// current time.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("history: entry ID must not be empty")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	gloss, err := encodeWords(e.Gloss)
	if err != nil {
		return err
	}
	missing, err := encodeWords(e.MissingWords)
	if err != nil {
		return err
	}
	warnings, err := encodeWords(e.Warnings)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, text, gloss, video_path, clip_count, missing_words, warnings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Text, gloss, e.VideoPath, e.ClipCount, missing, warnings, e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("history: record run %s: %w", e.ID, err)
	}
	return nil
}

// Get returns the run with the given ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, text, gloss, video_path, clip_count, missing_words, warnings, created_at
		 FROM runs WHERE id = ?`, id)

	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("history: get run %s: %w", id, err)
	}
	return e, nil
}

// Recent returns the latest runs, newest first. A non-positive limit
// returns up to 20 entries.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, gloss, video_path, clip_count, missing_words, warnings, created_at
		 FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	return out, nil
}

func scanEntry(scan func(dest ...any) error) (Entry, error) {
	var e Entry
	var gloss, missing, warnings string
	if err := scan(&e.ID, &e.Text, &gloss, &e.VideoPath, &e.ClipCount, &missing, &warnings, &e.CreatedAt); err != nil {
		return Entry{}, err
	}

	var err error
	if e.Gloss, err = decodeWords(gloss); err != nil {
		return Entry{}, err
	}
	if e.MissingWords, err = decodeWords(missing); err != nil {
		return Entry{}, err
	}
	if e.Warnings, err = decodeWords(warnings); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func encodeWords(words []string) (string, error) {
	if len(words) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(words)
	if err != nil {
		return "", fmt.Errorf("history: encode word list: %w", err)
	}
	return string(data), nil
}

func decodeWords(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var words []string
	if err := json.Unmarshal([]byte(data), &words); err != nil {
		return nil, fmt.Errorf("history: decode word list: %w", err)
	}
	return words, nil
}
