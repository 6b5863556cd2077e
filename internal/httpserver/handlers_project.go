package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"crewhub/internal/store"
)

// handleProjects handles GET /projects (list) and POST /projects (create).
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		projects, err := s.store.ListProjects(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("list projects: %v", err))
			return
		}
		respondJSON(w, http.StatusOK, projects)

	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		var req CreateProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
			return
		}
		if req.Name == "" {
			respondError(w, http.StatusBadRequest, "field 'name' is required")
			return
		}

		project := &store.Project{Name: req.Name, WorkDir: req.WorkDir}
		if err := s.store.CreateProject(r.Context(), project); err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("create project: %v", err))
			return
		}
		respondJSON(w, http.StatusCreated, project)

	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleProject handles GET /projects/{id}.
func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/projects/")
	if id == "" || strings.Contains(id, "/") {
		respondError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	project, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("project %s not found", id))
		return
	}
	respondJSON(w, http.StatusOK, project)
}
