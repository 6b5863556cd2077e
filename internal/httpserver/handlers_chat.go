package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"crewhub/internal/events"
	"crewhub/internal/store"
)

// handleChatPost handles POST /chat: save a message and publish it.
func (s *Server) handleChatPost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req ChatPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.ProjectID == "" || req.Sender == "" || req.Content == "" {
		respondError(w, http.StatusBadRequest, "fields 'projectId', 'sender' and 'content' are required")
		return
	}

	msg := &store.ChatMessage{
		ProjectID: req.ProjectID,
		Channel:   req.Channel,
		Sender:    req.Sender,
		Content:   req.Content,
	}
	if err := s.store.SaveChatMessage(r.Context(), msg); err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("save message: %v", err))
		return
	}

	s.bus.Publish(events.Event{
		Topic:     events.TopicChat,
		Type:      "chat_message",
		ProjectID: req.ProjectID,
		Data:      map[string]any{"channel": msg.Channel, "sender": msg.Sender, "content": msg.Content},
	})
	respondJSON(w, http.StatusCreated, msg)
}

// handleChatExecute handles POST /chat/execute: run an ad-hoc request on an
// agent without creating a task.
func (s *Server) handleChatExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req ChatExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.AgentID == "" || req.Request == "" {
		respondError(w, http.StatusBadRequest, "fields 'agentId' and 'request' are required")
		return
	}
	if req.Channel == "" {
		req.Channel = "general"
	}

	result := s.coord.ExecuteFromChat(r.Context(), req.AgentID, req.Request, req.Channel)
	if !result.Success {
		respondJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleChatRecent handles GET /chat/recent?projectId=&limit=.
func (s *Server) handleChatRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	projectID := r.URL.Query().Get("projectId")
	if projectID == "" {
		respondError(w, http.StatusBadRequest, "query parameter 'projectId' is required")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid 'limit'")
			return
		}
		limit = n
	}

	msgs, err := s.store.RecentMessages(r.Context(), projectID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("recent messages: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}
