package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spboyer/staffeval/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists sessions and assignment history in a single SQLite
// file. Sessions are stored as one JSON document per row.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY under concurrent sessions
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	// WAL lets readers of another process see the file while a run writes
	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := s.db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		status TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);

	CREATE TABLE IF NOT EXISTS assignments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		role TEXT NOT NULL,
		model_id TEXT NOT NULL,
		assigned_at INTEGER NOT NULL,
		removed_at INTEGER,
		interview_avg_score REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_assignments_role ON assignments(role, assigned_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Create implements SessionStore
func (s *SQLiteStore) Create(ctx context.Context, sess *models.InterviewSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, sess.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking session: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", ErrSessionExists, sess.ID)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, role, status, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Role, string(sess.Status), string(data), sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// Get implements SessionStore
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.InterviewSession, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	return decodeSession([]byte(data))
}

// Save implements SessionStore
func (s *SQLiteStore) Save(ctx context.Context, sess *models.InterviewSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var stored string
	err = tx.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = ?`, sess.ID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sess.ID)
	}
	if err != nil {
		return fmt.Errorf("reading session status: %w", err)
	}
	if err := checkForward(models.SessionStatus(stored), sess.Status, sess.ID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET status = ?, data = ?, updated_at = ? WHERE id = ?`,
		string(sess.Status), string(data), sess.UpdatedAt.UnixNano(), sess.ID)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	return tx.Commit()
}

// List implements SessionStore
func (s *SQLiteStore) List(ctx context.Context) ([]*models.InterviewSession, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM sessions ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.InterviewSession
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sess, err := decodeSession([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// RecentAssignments implements HistoryStore
func (s *SQLiteStore) RecentAssignments(ctx context.Context, role string, limit int) ([]models.AssignmentRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, model_id, assigned_at, removed_at, interview_avg_score
		 FROM assignments WHERE role = ? ORDER BY assigned_at DESC, id DESC LIMIT ?`, role, limit)
	if err != nil {
		return nil, fmt.Errorf("querying assignments: %w", err)
	}
	defer rows.Close()

	var out []models.AssignmentRecord
	for rows.Next() {
		var (
			rec      models.AssignmentRecord
			assigned int64
			removed  sql.NullInt64
		)
		if err := rows.Scan(&rec.Role, &rec.ModelID, &assigned, &removed, &rec.InterviewAvgScore); err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		rec.AssignedAt = time.Unix(0, assigned).UTC()
		if removed.Valid {
			t := time.Unix(0, removed.Int64).UTC()
			rec.RemovedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Record implements HistoryStore
func (s *SQLiteStore) Record(ctx context.Context, rec models.AssignmentRecord) error {
	var removed any
	if rec.RemovedAt != nil {
		removed = rec.RemovedAt.UnixNano()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assignments (role, model_id, assigned_at, removed_at, interview_avg_score) VALUES (?, ?, ?, ?, ?)`,
		rec.Role, rec.ModelID, rec.AssignedAt.UnixNano(), removed, rec.InterviewAvgScore)
	if err != nil {
		return fmt.Errorf("inserting assignment: %w", err)
	}
	return nil
}

// CloseCurrent implements HistoryStore
func (s *SQLiteStore) CloseCurrent(ctx context.Context, role string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE assignments SET removed_at = ? WHERE role = ? AND removed_at IS NULL`, at.UnixNano(), role)
	if err != nil {
		return fmt.Errorf("closing assignment: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
