package camera

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound is returned when no settings exist for a camera.
var ErrNotFound = errors.New("camera not found")

// Entry pairs a camera name with its stored settings.
type Entry struct {
	Name     string   `json:"name"`
	Settings Settings `json:"settings"`
}

// Store persists camera settings in a SQLite database.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (or creates) the camera database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS cameras (
			name TEXT PRIMARY KEY,
			iso TEXT NOT NULL,
			strength REAL NOT NULL,
			shadow_boost REAL NOT NULL,
			highlight_suppress REAL NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Put validates and stores settings for name, replacing any previous entry.
func (s *Store) Put(ctx context.Context, name string, settings Settings) error {
	if name == "" {
		return fmt.Errorf("camera name must not be empty")
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cameras (name, iso, strength, shadow_boost, highlight_suppress)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			iso = excluded.iso,
			strength = excluded.strength,
			shadow_boost = excluded.shadow_boost,
			highlight_suppress = excluded.highlight_suppress`,
		name, settings.ISO, settings.StrengthMultiplier, settings.ShadowBoost, settings.HighlightSuppress,
	)
	if err != nil {
		return fmt.Errorf("failed to store camera %q: %w", name, err)
	}
	return nil
}

// Get returns the settings stored for name, or ErrNotFound.
func (s *Store) Get(ctx context.Context, name string) (Settings, error) {
	var out Settings
	err := s.db.QueryRowContext(ctx,
		"SELECT iso, strength, shadow_boost, highlight_suppress FROM cameras WHERE name = ?",
		name,
	).Scan(&out.ISO, &out.StrengthMultiplier, &out.ShadowBoost, &out.HighlightSuppress)

	if errors.Is(err, sql.ErrNoRows) {
		return Settings{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to query camera %q: %w", name, err)
	}
	return out, nil
}

// List returns all cameras ordered by name.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, iso, strength, shadow_boost, highlight_suppress FROM cameras ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Settings.ISO, &e.Settings.StrengthMultiplier,
			&e.Settings.ShadowBoost, &e.Settings.HighlightSuppress); err != nil {
			return nil, fmt.Errorf("failed to scan camera row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cameras: %w", err)
	}
	return entries, nil
}

// Delete removes name. Deleting an unknown camera returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM cameras WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete camera %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete camera %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Resolve returns the settings stored for name. An empty name, a nil store or
// a missing camera yields fallback, mirroring the "active camera or custom
// ISO" choice of a render node.
func Resolve(ctx context.Context, store *Store, name string, fallback Settings) (Settings, error) {
	if store == nil || name == "" {
		return fallback, nil
	}
	s, err := store.Get(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return Settings{}, err
	}
	return s, nil
}
