package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateProject inserts a project.
func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, work_dir, created_at)
		VALUES (?, ?, ?, ?)
	`, p.ID, p.Name, p.WorkDir, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetProject loads a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, work_dir, created_at FROM projects WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.WorkDir, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query project: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// ListProjects returns all projects ordered by creation time.
func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, work_dir, created_at FROM projects ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		var p Project
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.WorkDir, &createdAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.CreatedAt = parseTime(createdAt)
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}
