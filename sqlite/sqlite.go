// Package sqlite archives conversation transcripts in a local SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/praxis"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Interface compliance checks.
var (
	_ praxis.Recorder       = (*Store)(nil)
	_ praxis.HistoryFetcher = (*Store)(nil)
)

// Store records finalized messages and serves them back by session token.
type Store struct {
	db *sql.DB
}

// Session summarizes an archived conversation.
type Session struct {
	Token     string
	ModuleID  string
	UserID    string
	Messages  int
	UpdatedAt time.Time
}

// DSNForFile returns a DSN for a database file with WAL and a busy timeout.
func DSNForFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("sqlite: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), nil
}

// Open opens the archive at dsn and creates its schema if needed.
func Open(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: open")
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_token TEXT NOT NULL,
			module_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			status TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS messages_by_session ON messages(session_token, id);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite: migrate")
		}
	}
	return nil
}

// Record appends msg to the conversation identified by sc.Token. Messages of
// a view that never got a token cannot be replayed and are rejected.
func (s *Store) Record(ctx context.Context, sc praxis.SessionContext, msg praxis.Message) error {
	if sc.Token == "" {
		return errors.Wrap(praxis.ErrSessionLost, "sqlite: record")
	}
	if !msg.Status.Terminal() {
		return errors.Wrapf(praxis.ErrValidation, "sqlite: record: message status %q is not terminal", msg.Status)
	}
	created := msg.Timestamp
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_token, module_id, user_id, role, status, content, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sc.Token, sc.ModuleID, sc.UserID, string(msg.Role), string(msg.Status), msg.Content, created.UnixMilli(),
	)
	if err != nil {
		return errors.Wrap(err, "sqlite: record")
	}
	return nil
}

// History returns the messages of a conversation in the order they were
// recorded.
func (s *Store) History(ctx context.Context, token string) ([]praxis.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, status, content, created_at_ms FROM messages WHERE session_token = ? ORDER BY id`,
		token,
	)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: history")
	}
	defer rows.Close()

	var msgs []praxis.Message
	for rows.Next() {
		var (
			role, status, content string
			createdMs             int64
		)
		if err := rows.Scan(&role, &status, &content, &createdMs); err != nil {
			return nil, errors.Wrap(err, "sqlite: history: scan")
		}
		r, ok := praxis.ParseRole(role)
		if !ok {
			return nil, errors.Wrapf(praxis.ErrValidation, "sqlite: history: unknown role %q", role)
		}
		msgs = append(msgs, praxis.Message{
			Role:      r,
			Content:   content,
			Status:    praxis.Status(status),
			Timestamp: time.UnixMilli(createdMs),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite: history")
	}
	return msgs, nil
}

// Sessions lists archived conversations, most recently updated first. An
// empty userID lists every user's conversations.
func (s *Store) Sessions(ctx context.Context, userID string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_token, MAX(module_id), MAX(user_id), COUNT(1), MAX(created_at_ms)
		 FROM messages
		 WHERE ? = '' OR user_id = ?
		 GROUP BY session_token
		 ORDER BY MAX(id) DESC
		 LIMIT ?`,
		userID, userID, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: sessions")
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess      Session
			updatedMs int64
		)
		if err := rows.Scan(&sess.Token, &sess.ModuleID, &sess.UserID, &sess.Messages, &updatedMs); err != nil {
			return nil, errors.Wrap(err, "sqlite: sessions: scan")
		}
		sess.UpdatedAt = time.UnixMilli(updatedMs)
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite: sessions")
	}
	return out, nil
}
