package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateAgent inserts an agent. A missing ID or status is filled in.
func (s *Store) CreateAgent(ctx context.Context, a *Agent) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = AgentOffline
	}
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, project_id, name, role, status, session_id, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.ProjectID, a.Name, a.Role, a.Status, a.SessionID, a.Model,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

// GetAgent loads an agent by id.
func (s *Store) GetAgent(ctx context.Context, id string) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, role, status, session_id, model, created_at, updated_at
		FROM agents WHERE id = ?
	`, id)

	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("agent %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query agent: %w", err)
	}
	return a, nil
}

// UpdateAgent applies fn to the current row inside a transaction and writes
// the result back.
func (s *Store) UpdateAgent(ctx context.Context, id string, fn func(*Agent) error) (*Agent, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, project_id, name, role, status, session_id, model, created_at, updated_at
		FROM agents WHERE id = ?
	`, id)

	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("agent %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query agent: %w", err)
	}

	if err := fn(a); err != nil {
		return nil, err
	}
	a.UpdatedAt = time.Now()

	_, err = tx.ExecContext(ctx, `
		UPDATE agents SET name = ?, role = ?, status = ?, session_id = ?, model = ?, updated_at = ?
		WHERE id = ?
	`, a.Name, a.Role, a.Status, a.SessionID, a.Model, formatTime(a.UpdatedAt), a.ID)
	if err != nil {
		return nil, fmt.Errorf("update agent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return a, nil
}

// ListAgents returns all agents, optionally scoped to a project.
func (s *Store) ListAgents(ctx context.Context, projectID string) ([]*Agent, error) {
	query := `
		SELECT id, project_id, name, role, status, session_id, model, created_at, updated_at
		FROM agents`
	var args []any
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func scanAgent(row scanner) (*Agent, error) {
	var a Agent
	var createdAt, updatedAt string

	err := row.Scan(&a.ID, &a.ProjectID, &a.Name, &a.Role, &a.Status, &a.SessionID, &a.Model,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}
