package storage

import (
	"fmt"
	"strings"
	"time"
)

// MessageMatch is a stored message containing a search query.
type MessageMatch struct {
	SessionID    string
	SessionName  string
	MessageIndex int
	Role         string
	Preview      string
	Timestamp    time.Time
}

// Search finds user and assistant messages containing query, ignoring case,
// newest session first.
func (s *SessionStore) Search(query string) ([]MessageMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []MessageMatch{}, nil
	}

	rows, err := s.db.Query(`
	SELECT m.session_id, s.name, m.position, m.role, m.text, m.created_at
	FROM messages m
	JOIN sessions s ON s.id = m.session_id
	WHERE m.role IN ('user', 'assistant') AND instr(lower(m.text), lower(?)) > 0
	ORDER BY s.updated_at DESC, m.position
	`, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	matches := []MessageMatch{}
	for rows.Next() {
		var (
			m    MessageMatch
			text string
			ts   int64
		)
		if err := rows.Scan(&m.SessionID, &m.SessionName, &m.MessageIndex, &m.Role, &text, &ts); err != nil {
			return nil, fmt.Errorf("failed to read match: %w", err)
		}
		m.Preview = preview(text, 100)
		m.Timestamp = time.Unix(0, ts)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if runes := []rune(text); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return text
}
