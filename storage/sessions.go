package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"chatview/config"
	"chatview/model"
)

// ErrSessionNotFound is returned by Load, Rename and Delete for unknown IDs.
var ErrSessionNotFound = errors.New("session not found")

// Session is a stored conversation.
type Session struct {
	ID        string
	Name      string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []model.Message
}

// SessionMetadata is a lightweight version of Session for listing
type SessionMetadata struct {
	ID           string
	Name         string
	Model        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// SessionStore persists conversations in a SQLite database under the data
// directory.
type SessionStore struct {
	db      *sql.DB
	dataDir string
}

// OpenSessionStore opens (creating if needed) <dataDir>/sessions.db.
func OpenSessionStore(dataDir string) (*SessionStore, error) {
	// 0700 - transcripts are private
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, "sessions.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps pragmas in effect.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SessionStore{db: db, dataDir: dataDir}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *SessionStore) initialize() error {
	schema := `
	PRAGMA foreign_keys = ON;
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT NOT NULL,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		tool_call_id TEXT,
		tool_call_name TEXT,
		tool_call_args TEXT,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, position)
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if err := s.migrateSchema(); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

// migrateSchema adds columns introduced after the first release.
func (s *SessionStore) migrateSchema() error {
	columns := []struct{ name, ddl string }{
		{"hidden", `ALTER TABLE messages ADD COLUMN hidden INTEGER NOT NULL DEFAULT 0`},
		{"tool_round", `ALTER TABLE messages ADD COLUMN tool_round TEXT NOT NULL DEFAULT ''`},
	}
	for _, c := range columns {
		exists, err := s.columnExists("messages", c.name)
		if err != nil {
			return fmt.Errorf("failed to check for %s column: %w", c.name, err)
		}
		if exists {
			continue
		}
		if _, err := s.db.Exec(c.ddl); err != nil {
			return fmt.Errorf("failed to add %s column: %w", c.name, err)
		}
	}
	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info
func (s *SessionStore) columnExists(tableName, columnName string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid          int
			name         string
			dataType     string
			notNull      int
			defaultValue any
			pk           int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return false, err
		}
		if name == columnName {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Save writes the session and replaces its stored messages. Placeholders and
// error records are not persisted. An empty ID is assigned a new one.
func (s *SessionStore) Save(session *Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.UpdatedAt = time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = session.UpdatedAt
	}
	if session.Name == "" {
		session.Name = GenerateSessionName(firstUserText(session.Messages))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
	INSERT INTO sessions (id, name, model, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET name = excluded.name, model = excluded.model, updated_at = excluded.updated_at
	`, session.ID, session.Name, session.Model, session.CreatedAt.UnixNano(), session.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, session.ID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT INTO messages (id, session_id, position, role, text, hidden, tool_call_id, tool_call_name, tool_call_args, tool_round, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	position := 0
	for _, m := range session.Messages {
		if !m.Outbound() {
			continue
		}
		var callID, callName, callArgs sql.NullString
		if m.ToolCall != nil {
			callID = sql.NullString{String: m.ToolCall.ID, Valid: true}
			callName = sql.NullString{String: m.ToolCall.Name, Valid: true}
			callArgs = sql.NullString{String: m.ToolCall.Arguments, Valid: true}
		}
		_, err := stmt.Exec(m.ID, session.ID, position, m.Role, m.Text, m.IsHidden,
			callID, callName, callArgs, m.Round, m.Timestamp.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to save message %d: %w", position, err)
		}
		position++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Storage] Saved session %s (%d messages)", session.ID, position)
	}
	return nil
}

// Load reads a session and its messages in order.
func (s *SessionStore) Load(id string) (*Session, error) {
	var (
		session          Session
		created, updated int64
	)
	err := s.db.QueryRow(`SELECT id, name, model, created_at, updated_at FROM sessions WHERE id = ?`, id).
		Scan(&session.ID, &session.Name, &session.Model, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	session.CreatedAt = time.Unix(0, created)
	session.UpdatedAt = time.Unix(0, updated)

	rows, err := s.db.Query(`
	SELECT id, role, text, hidden, tool_call_id, tool_call_name, tool_call_args, tool_round, created_at
	FROM messages
	WHERE session_id = ?
	ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m                          model.Message
			callID, callName, callArgs sql.NullString
			ts                         int64
		)
		if err := rows.Scan(&m.ID, &m.Role, &m.Text, &m.IsHidden, &callID, &callName, &callArgs, &m.Round, &ts); err != nil {
			return nil, fmt.Errorf("failed to read message: %w", err)
		}
		if callID.Valid {
			m.ToolCall = &model.ToolCall{ID: callID.String, Name: callName.String, Arguments: callArgs.String}
		}
		m.Timestamp = time.Unix(0, ts)
		session.Messages = append(session.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	return &session, nil
}

// List returns metadata for all sessions, newest first.
func (s *SessionStore) List() ([]SessionMetadata, error) {
	rows, err := s.db.Query(`
	SELECT s.id, s.name, s.model, s.created_at, s.updated_at, COUNT(m.id)
	FROM sessions s
	LEFT JOIN messages m ON m.session_id = s.id
	GROUP BY s.id
	ORDER BY s.updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionMetadata
	for rows.Next() {
		var (
			meta             SessionMetadata
			created, updated int64
		)
		if err := rows.Scan(&meta.ID, &meta.Name, &meta.Model, &created, &updated, &meta.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to read session: %w", err)
		}
		meta.CreatedAt = time.Unix(0, created)
		meta.UpdatedAt = time.Unix(0, updated)
		sessions = append(sessions, meta)
	}
	return sessions, rows.Err()
}

// Rename updates the name of a session
func (s *SessionStore) Rename(id, name string) error {
	res, err := s.db.Exec(`UPDATE sessions SET name = ?, updated_at = ? WHERE id = ?`, name, time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to rename session: %w", err)
	}
	return requireRow(res, id)
}

// Delete removes a session and its messages.
func (s *SessionStore) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	res, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	return nil
}

// SaveCurrentSessionID remembers the session to resume on next start.
func (s *SessionStore) SaveCurrentSessionID(id string) error {
	return os.WriteFile(filepath.Join(s.dataDir, "current_session.id"), []byte(id), 0600)
}

// LoadCurrentSessionID returns the remembered session, or "" if none.
func (s *SessionStore) LoadCurrentSessionID() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dataDir, "current_session.id"))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *SessionStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GenerateSessionName generates a session name from the first user message
func GenerateSessionName(firstMessage string) string {
	name := strings.Join(strings.Fields(firstMessage), " ")
	if name == "" {
		return fmt.Sprintf("Session %s", time.Now().Format("Jan 2, 3:04 PM"))
	}

	if runes := []rune(name); len(runes) > 30 {
		name = string(runes[:30]) + "..."
	}
	return name
}

func firstUserText(msgs []model.Message) string {
	for _, m := range msgs {
		if m.Role == model.RoleUser {
			return m.Text
		}
	}
	return ""
}
