package internal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when no archived transcript matches an id.
var ErrSessionNotFound = errors.New("session not found")

// ErrAmbiguousID is returned when an id prefix matches several transcripts.
var ErrAmbiguousID = errors.New("session id prefix is ambiguous")

// Storage is the local transcript archive
type Storage struct {
	db   *sql.DB
	path string
}

// NewStorage wraps an open archive database
func NewStorage(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// OpenStorage opens the archive database at path
func OpenStorage(path string) (*Storage, error) {
	db, err := OpenDatabase(path)
	if err != nil {
		return nil, err
	}
	return &Storage{db: db, path: path}, nil
}

// Close closes the underlying database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Save inserts or replaces a transcript. A missing ID is generated.
func (s *Storage) Save(session *Session) error {
	if session == nil {
		return &StorageError{Path: s.path, Op: "write", Err: errors.New("nil session")}
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if session.Metadata.CreatedAt == "" {
		session.Metadata.CreatedAt = now
	}
	if session.Metadata.UpdatedAt == "" {
		session.Metadata.UpdatedAt = now
	}
	session.Metadata.MessageCount = len(session.Messages)

	body, err := json.Marshal(session.Messages)
	if err != nil {
		return &StorageError{Path: s.path, Op: "write", Err: fmt.Errorf("failed to encode messages: %w", err)}
	}

	_, err = s.db.Exec(`INSERT OR REPLACE INTO transcripts
		(id, session_id, label, mode, created_at, updated_at, message_count, ready, messages)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.SessionID, session.Label, session.Mode,
		session.Metadata.CreatedAt, session.Metadata.UpdatedAt,
		session.Metadata.MessageCount, session.Metadata.Ready, string(body))
	if err != nil {
		return &StorageError{Path: s.path, Op: "write", Err: err}
	}
	LogInfo("archived transcript %s (%d messages)", session.ID, session.Metadata.MessageCount)
	return nil
}

// List returns all transcripts, most recently updated first, without
// their messages.
func (s *Storage) List() ([]*Session, error) {
	return s.query(false, `SELECT id, session_id, label, mode, created_at, updated_at, message_count, ready, ''
		FROM transcripts ORDER BY updated_at DESC, id`)
}

// LoadAll returns every transcript with its messages, most recent first.
func (s *Storage) LoadAll() ([]*Session, error) {
	return s.query(true, `SELECT id, session_id, label, mode, created_at, updated_at, message_count, ready, messages
		FROM transcripts ORDER BY updated_at DESC, id`)
}

// Load returns the transcript whose id is id or starts with it.
func (s *Storage) Load(id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrSessionNotFound
	}
	pattern := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(id) + "%"
	sessions, err := s.query(true, `SELECT id, session_id, label, mode, created_at, updated_at, message_count, ready, messages
		FROM transcripts WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id LIMIT 2`, id, pattern)
	if err != nil {
		return nil, err
	}
	switch {
	case len(sessions) == 0:
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	case len(sessions) > 1 && sessions[0].ID != id:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}
	return sessions[0], nil
}

// Delete removes a transcript by exact id.
func (s *Storage) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM transcripts WHERE id = ?", id)
	if err != nil {
		return &StorageError{Path: s.path, Op: "write", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

func (s *Storage) query(withMessages bool, query string, args ...interface{}) ([]*Session, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &StorageError{Path: s.path, Op: "read", Err: fmt.Errorf("query failed: %w", err)}
	}
	defer rows.Close()

	sessions := make([]*Session, 0)
	for rows.Next() {
		var sess Session
		var body string
		if err := rows.Scan(&sess.ID, &sess.SessionID, &sess.Label, &sess.Mode,
			&sess.Metadata.CreatedAt, &sess.Metadata.UpdatedAt,
			&sess.Metadata.MessageCount, &sess.Metadata.Ready, &body); err != nil {
			return nil, &StorageError{Path: s.path, Op: "read", Err: fmt.Errorf("scan failed: %w", err)}
		}
		if withMessages && body != "" {
			if err := json.Unmarshal([]byte(body), &sess.Messages); err != nil {
				LogWarn("transcript %s has unreadable messages: %v", sess.ID, err)
			}
		}
		sessions = append(sessions, &sess)
	}

	if err := rows.Err(); err != nil {
		return nil, &StorageError{Path: s.path, Op: "read", Err: fmt.Errorf("rows iteration error: %w", err)}
	}
	return sessions, nil
}
