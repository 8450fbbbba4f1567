package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ashureev/stresssense/internal/domain"
	"github.com/ashureev/stresssense/internal/shared"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository on an in-process SQLite database.
//
// The database is opened in memory mode on a single pinned connection, so its
// contents live exactly as long as the process.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new memory-mode SQLite repository.
func NewSQLite() (*SQLiteStore, error) {
	// A unique name keeps separate stores (tests, mostly) from sharing a cache.
	dsn := fmt.Sprintf("file:stresssense-%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The memory database is dropped when its last connection closes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA foreign_keys = ON;
	CREATE TABLE IF NOT EXISTS sessions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		date TEXT NOT NULL,
		stress_level TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_date ON sessions(date DESC, seq ASC);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		sender TEXT NOT NULL,
		text TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateSession inserts a new session row.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `INSERT INTO sessions (id, date, stress_level) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, string(session.ID), session.Date, session.StressLevel); err != nil {
		if shared.IsSQLiteUniqueError(err) {
			return duplicate(session.ID)
		}
		return fmt.Errorf("insert session %s: %w", session.ID, err)
	}

	for _, msg := range session.Messages {
		if err := s.AppendMessage(ctx, session.ID, msg); err != nil {
			return err
		}
	}
	return nil
}

// GetSession loads a session and its messages.
func (s *SQLiteStore) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	query := `SELECT id, date, stress_level FROM sessions WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, string(id))

	var sess domain.Session
	var sid string
	err := row.Scan(&sid, &sess.Date, &sess.StressLevel)
	if err == sql.ErrNoRows {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	sess.ID = domain.SessionID(sid)

	msgs, err := s.loadMessages(ctx, `WHERE session_id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	sess.Messages = msgs[sess.ID]
	if sess.Messages == nil {
		sess.Messages = []domain.Message{}
	}

	return &sess, nil
}

// ListSessions returns all sessions, newest date first, ties in insertion order.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]*domain.Session, error) {
	query := `SELECT id, date, stress_level FROM sessions ORDER BY date DESC, seq ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	var sessions []*domain.Session
	for rows.Next() {
		var sess domain.Session
		var sid string
		if err := rows.Scan(&sid, &sess.Date, &sess.StressLevel); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sess.ID = domain.SessionID(sid)
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	msgs, err := s.loadMessages(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		sess.Messages = msgs[sess.ID]
		if sess.Messages == nil {
			sess.Messages = []domain.Message{}
		}
	}

	return sessions, nil
}

func (s *SQLiteStore) loadMessages(ctx context.Context, where string, args ...any) (map[domain.SessionID][]domain.Message, error) {
	query := `SELECT session_id, sender, text, timestamp FROM messages ` + where + ` ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	out := make(map[domain.SessionID][]domain.Message)
	for rows.Next() {
		var sid, sender string
		var msg domain.Message
		if err := rows.Scan(&sid, &sender, &msg.Text, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.Sender = domain.Sender(sender)
		out[domain.SessionID(sid)] = append(out[domain.SessionID(sid)], msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

// AppendMessage inserts msg at the end of the session's log.
func (s *SQLiteStore) AppendMessage(ctx context.Context, id domain.SessionID, msg domain.Message) error {
	query := `
		INSERT INTO messages (session_id, sender, text, timestamp)
		SELECT ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM sessions WHERE id = ?)`

	result, err := s.db.ExecContext(ctx, query,
		string(id), string(msg.Sender), msg.Text, msg.Timestamp, string(id),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound(id)
	}
	return nil
}

// SetStressLevel overwrites the session's stress label.
func (s *SQLiteStore) SetStressLevel(ctx context.Context, id domain.SessionID, label string) error {
	query := `UPDATE sessions SET stress_level = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, label, string(id))
	if err != nil {
		return fmt.Errorf("update stress_level: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound(id)
	}
	return nil
}

// Close closes the database connection, discarding all data.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
