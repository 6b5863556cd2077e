package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"crewhub/internal/depgraph"
	"crewhub/internal/events"
	"crewhub/internal/store"
)

var validTaskStatuses = map[store.TaskStatus]bool{
	store.TaskPending:    true,
	store.TaskInProgress: true,
	store.TaskBlocked:    true,
	store.TaskReview:     true,
	store.TaskCompleted:  true,
}

// handleTasks handles GET /tasks (list with filters) and POST /tasks (create).
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter := store.TaskFilter{
			ProjectID:  r.URL.Query().Get("projectId"),
			Status:     store.TaskStatus(r.URL.Query().Get("status")),
			AssignedTo: r.URL.Query().Get("assignedTo"),
			Unassigned: r.URL.Query().Get("unassigned") == "true",
		}
		tasks, err := s.store.ListTasks(r.Context(), filter)
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("list tasks: %v", err))
			return
		}
		respondJSON(w, http.StatusOK, tasks)

	case http.MethodPost:
		s.handleCreateTask(w, r)

	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.Title == "" {
		respondError(w, http.StatusBadRequest, "field 'title' is required")
		return
	}
	if req.ProjectID == "" {
		respondError(w, http.StatusBadRequest, "field 'projectId' is required")
		return
	}
	if _, err := s.store.GetProject(r.Context(), req.ProjectID); err != nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("project %s not found", req.ProjectID))
		return
	}

	task := &store.Task{
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		Priority:    req.Priority,
		BlockedBy:   req.BlockedBy,
	}
	task.Status = depgraph.InitialStatus(r.Context(), s.store, task)

	if err := s.store.CreateTask(r.Context(), task); err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("create task: %v", err))
		return
	}

	s.bus.Publish(events.Event{
		Topic:     events.TopicTask,
		Type:      "task_created",
		ProjectID: task.ProjectID,
		TaskID:    task.ID,
		Data:      map[string]any{"status": string(task.Status)},
	})
	respondJSON(w, http.StatusCreated, task)
}

// handleTask handles GET/PATCH/DELETE /tasks/{id}.
func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/tasks/")
	if id == "" || strings.Contains(id, "/") {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		task, err := s.store.GetTask(r.Context(), id)
		if err != nil {
			respondError(w, http.StatusNotFound, fmt.Sprintf("task %s not found", id))
			return
		}
		respondJSON(w, http.StatusOK, task)

	case http.MethodPatch:
		s.handleUpdateTask(w, r, id)

	case http.MethodDelete:
		if err := s.store.DeleteTask(r.Context(), id); err != nil {
			respondError(w, http.StatusNotFound, fmt.Sprintf("task %s not found", id))
			return
		}
		respondJSON(w, http.StatusOK, OKResponse{OK: true})

	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request, id string) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.Status != nil && !validTaskStatuses[store.TaskStatus(*req.Status)] {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", *req.Status))
		return
	}

	task, err := s.store.UpdateTask(r.Context(), id, func(t *store.Task) error {
		if req.Title != nil {
			t.Title = *req.Title
		}
		if req.Description != nil {
			t.Description = *req.Description
		}
		if req.Status != nil {
			t.Status = store.TaskStatus(*req.Status)
		}
		if req.AssignedTo != nil {
			t.AssignedTo = *req.AssignedTo
		}
		if req.Priority != nil {
			t.Priority = *req.Priority
		}
		if req.BlockedBy != nil {
			t.BlockedBy = *req.BlockedBy
		}
		return nil
	})
	if err != nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("update task %s: %v", id, err))
		return
	}

	s.bus.Publish(events.Event{
		Topic:     events.TopicTask,
		Type:      "task_status",
		ProjectID: task.ProjectID,
		TaskID:    task.ID,
		Data:      map[string]any{"status": string(task.Status)},
	})

	// A manual completion unblocks dependents the same way a coordinator
	// completion does.
	if req.Status != nil && store.TaskStatus(*req.Status) == store.TaskCompleted {
		depgraph.UnblockDependents(r.Context(), s.store, s.bus, task.ID, task.ProjectID)
	}

	respondJSON(w, http.StatusOK, task)
}
