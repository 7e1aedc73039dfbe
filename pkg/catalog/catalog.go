package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Session statuses recorded in the catalog.
const (
	StatusExported  = "exported"
	StatusDiscarded = "discarded"
	StatusFailed    = "failed"
)

// Session is one catalog row describing a recording session outcome.
type Session struct {
	ID            string
	StartedAt     time.Time
	EndedAt       time.Time
	FrameCount    int
	KeyEventCount int
	ItemCount     int
	AverageFPS    float64
	Status        string
	ExportDir     string
	Message       string
}

// Store is a SQLite-backed index of recording sessions.
type Store struct {
	db *sql.DB
}

// Open creates or opens the catalog database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("catalog path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure catalog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialise catalog schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP NOT NULL,
			frame_count INTEGER NOT NULL,
			key_event_count INTEGER NOT NULL,
			item_count INTEGER NOT NULL,
			average_fps REAL NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			export_dir TEXT,
			message TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)`,
	}
	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}
	return nil
}

// RecordSession inserts one session row, assigning an ID when unset.
func (s *Store) RecordSession(ctx context.Context, session Session) (Session, error) {
	if session.Status == "" {
		return Session{}, errors.New("session status must not be empty")
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, ended_at, frame_count, key_event_count, item_count, average_fps, status, export_dir, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.StartedAt.UTC(),
		session.EndedAt.UTC(),
		session.FrameCount,
		session.KeyEventCount,
		session.ItemCount,
		session.AverageFPS,
		session.Status,
		session.ExportDir,
		session.Message,
		time.Now().UTC(),
	)
	if err != nil {
		return Session{}, fmt.Errorf("insert session row: %w", err)
	}
	return session, nil
}

// ListSessions returns the most recent sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at, frame_count, key_event_count, item_count, average_fps, status, export_dir, message
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var session Session
		var exportDir, message sql.NullString
		if err := rows.Scan(
			&session.ID,
			&session.StartedAt,
			&session.EndedAt,
			&session.FrameCount,
			&session.KeyEventCount,
			&session.ItemCount,
			&session.AverageFPS,
			&session.Status,
			&exportDir,
			&message,
		); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		session.ExportDir = exportDir.String
		session.Message = message.String
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return sessions, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
