package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"crewhub/internal/store"
)

// handleAgents handles GET /agents?projectId= (list) and POST /agents (create).
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		projectID := r.URL.Query().Get("projectId")
		if projectID == "" {
			respondError(w, http.StatusBadRequest, "query parameter 'projectId' is required")
			return
		}
		agents, err := s.store.ListAgents(r.Context(), projectID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("list agents: %v", err))
			return
		}
		respondJSON(w, http.StatusOK, agents)

	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		var req CreateAgentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
			return
		}
		if req.Name == "" || req.ProjectID == "" {
			respondError(w, http.StatusBadRequest, "fields 'name' and 'projectId' are required")
			return
		}

		agent := &store.Agent{
			ProjectID: req.ProjectID,
			Name:      req.Name,
			Role:      req.Role,
			Model:     req.Model,
		}
		if err := s.store.CreateAgent(r.Context(), agent); err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("create agent: %v", err))
			return
		}
		respondJSON(w, http.StatusCreated, agent)

	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleAgent routes /agents/{id} and /agents/{id}/{action}.
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/agents/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		agent, err := s.store.GetAgent(r.Context(), id)
		if err != nil {
			respondError(w, http.StatusNotFound, fmt.Sprintf("agent %s not found", id))
			return
		}
		respondJSON(w, http.StatusOK, agent)
		return
	}

	switch parts[1] {
	case "start":
		s.handleAgentStart(w, r, id)
	case "stop":
		s.handleAgentStop(w, r, id)
	case "execute":
		s.handleAgentExecute(w, r, id)
	case "output":
		s.handleAgentOutput(w, r, id)
	default:
		respondError(w, http.StatusNotFound, fmt.Sprintf("unknown agent action %q", parts[1]))
	}
}

func (s *Server) handleAgentStart(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	agent, err := s.store.GetAgent(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("agent %s not found", id))
		return
	}
	if !s.coord.StartAgent(r.Context(), id, agent.ProjectID) {
		respondError(w, http.StatusInternalServerError, "agent could not be started")
		return
	}
	respondJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleAgentStop(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.coord.StopAgent(r.Context(), id) {
		respondError(w, http.StatusConflict, "agent is not running")
		return
	}
	respondJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleAgentExecute(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.TaskID == "" {
		respondError(w, http.StatusBadRequest, "field 'taskId' is required")
		return
	}

	result := s.coord.ExecuteTask(r.Context(), id, req.TaskID)
	if !result.Success {
		respondJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleAgentOutput(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rec := s.coord.LiveOutput(id)
	if rec == nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("no live output for agent %s", id))
		return
	}
	respondJSON(w, http.StatusOK, rec)
}
