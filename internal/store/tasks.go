package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateTask inserts a task. A missing ID, status, or timestamps are filled
// in; the caller decides pending vs blocked (see depgraph.InitialStatus).
func (s *Store) CreateTask(ctx context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TaskPending
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, title, description, status, assigned_to, priority,
			blocked_by, start_commit, end_commit, retry_count, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.ProjectID, t.Title, t.Description, t.Status, t.AssignedTo, t.Priority,
		encodeBlockedBy(t.BlockedBy), t.StartCommit, t.EndCommit, t.RetryCount, t.LastError,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask loads a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, description, status, assigned_to, priority,
			blocked_by, start_commit, end_commit, retry_count, last_error, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return t, nil
}

// UpdateTask applies fn to the current row inside a transaction and writes
// the result back. The callback pattern keeps read-modify-write cycles
// atomic against concurrent updaters.
func (s *Store) UpdateTask(ctx context.Context, id string, fn func(*Task) error) (*Task, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, project_id, title, description, status, assigned_to, priority,
			blocked_by, start_commit, end_commit, retry_count, last_error, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}

	if err := fn(t); err != nil {
		return nil, err
	}
	t.UpdatedAt = time.Now()

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, status = ?, assigned_to = ?, priority = ?,
			blocked_by = ?, start_commit = ?, end_commit = ?, retry_count = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, t.Title, t.Description, t.Status, t.AssignedTo, t.Priority,
		encodeBlockedBy(t.BlockedBy), t.StartCommit, t.EndCommit, t.RetryCount, t.LastError,
		formatTime(t.UpdatedAt), t.ID)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

// ListTasks returns tasks matching the filter, ordered by priority descending
// then creation time ascending.
func (s *Store) ListTasks(ctx context.Context, filter TaskFilter) ([]*Task, error) {
	var conds []string
	var args []any

	if filter.ProjectID != "" {
		conds = append(conds, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.AssignedTo != "" {
		conds = append(conds, "assigned_to = ?")
		args = append(args, filter.AssignedTo)
	}
	if filter.Unassigned {
		conds = append(conds, "assigned_to = ''")
	}

	query := `
		SELECT id, project_id, title, description, status, assigned_to, priority,
			blocked_by, start_commit, end_commit, retry_count, last_error, created_at, updated_at
		FROM tasks`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY priority DESC, created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// DeleteTask removes a task. Normal execution never deletes tasks; this
// backs explicit user action only.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return err
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*Task, error) {
	var t Task
	var blockedBy, createdAt, updatedAt string

	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.AssignedTo,
		&t.Priority, &blockedBy, &t.StartCommit, &t.EndCommit, &t.RetryCount, &t.LastError,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	t.BlockedBy = decodeBlockedBy(blockedBy)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func encodeBlockedBy(ids []string) string {
	if len(ids) == 0 {
		return "[]"
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// decodeBlockedBy deserializes the blocked_by column. Absent or corrupt data
// yields an empty list; a malformed dependency list must never fail a read.
func decodeBlockedBy(raw string) []string {
	if raw == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}
