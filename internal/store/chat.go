package store

import (
	"context"
	"fmt"
	"time"
)

// SaveChatMessage appends a message to a project channel.
func (s *Store) SaveChatMessage(ctx context.Context, m *ChatMessage) error {
	if m.Channel == "" {
		m.Channel = "general"
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (project_id, channel, sender, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ProjectID, m.Channel, m.Sender, m.Content, formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		m.ID = id
	}
	return nil
}

// RecentMessages returns the last limit messages for a project in
// chronological order. Used to enrich execution prompts with team context.
func (s *Store) RecentMessages(ctx context.Context, projectID string, limit int) ([]*ChatMessage, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, channel, sender, content, created_at
		FROM chat_messages WHERE project_id = ?
		ORDER BY id DESC LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []*ChatMessage
	for rows.Next() {
		var m ChatMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Channel, &m.Sender, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
