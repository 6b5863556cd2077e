package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// AppendActivity writes one activity log entry. Entries are write-once.
func (s *Store) AppendActivity(ctx context.Context, e *ActivityEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	data := "{}"
	if len(e.Data) > 0 {
		if b, err := json.Marshal(e.Data); err == nil {
			data = string(b)
		}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (agent_id, activity_type, description, data, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.AgentID, e.ActivityType, e.Description, data, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// ListActivity returns the most recent entries for an agent, newest first.
func (s *Store) ListActivity(ctx context.Context, agentID string, limit int) ([]*ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, activity_type, description, data, created_at
		FROM activity_log WHERE agent_id = ?
		ORDER BY id DESC LIMIT ?
	`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var entries []*ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		var data, createdAt string
		if err := rows.Scan(&e.ID, &e.AgentID, &e.ActivityType, &e.Description, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if data != "" && data != "{}" {
			json.Unmarshal([]byte(data), &e.Data)
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
