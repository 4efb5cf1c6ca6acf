package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore SQLite history storage implementation
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite storage
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database tables: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			snippet TEXT NOT NULL,
			backend TEXT NOT NULL,
			best_title TEXT,
			best_artist TEXT,
			best_url TEXT,
			best_score REAL NOT NULL DEFAULT 0,
			result_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute SQL: %s, error: %w", query, err)
		}
	}
	return nil
}

const selectRuns = `SELECT id, created_at, source, snippet, backend, best_title, best_artist, best_url, best_score, result_json FROM runs`

// Save stores rec, assigning its ID and creation time
func (s *SQLiteStore) Save(rec *Record) error {
	rec.ID = uuid.New().String()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, created_at, source, snippet, backend, best_title, best_artist, best_url, best_score, result_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt, rec.Source, rec.Snippet, rec.Backend,
		rec.BestTitle, rec.BestArtist, rec.BestURL, rec.BestScore, rec.ResultJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Get gets a run by ID; a missing run is (nil, nil)
func (s *SQLiteStore) Get(id string) (*Record, error) {
	rows, err := s.db.Query(selectRuns+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

// List returns the newest runs first
func (s *SQLiteStore) List(limit int) ([]*Record, error) {
	rows, err := s.db.Query(selectRuns+` ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return scanRecords(rows)
}

// Search finds runs whose snippet, title or artist contains keyword
func (s *SQLiteStore) Search(keyword string, limit int) ([]*Record, error) {
	like := "%" + keyword + "%"
	rows, err := s.db.Query(
		selectRuns+` WHERE snippet LIKE ? OR best_title LIKE ? OR best_artist LIKE ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		like, like, like, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search runs: %w", err)
	}
	return scanRecords(rows)
}

// Delete deletes a run by ID
func (s *SQLiteStore) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Clear deletes every run
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec("DELETE FROM runs"); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		var rec Record
		var title, artist, url sql.NullString
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &rec.Source, &rec.Snippet, &rec.Backend,
			&title, &artist, &url, &rec.BestScore, &rec.ResultJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.BestTitle = title.String
		rec.BestArtist = artist.String
		rec.BestURL = url.String
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return recs, nil
}
