// Package httpserver exposes the coordinator and store over a JSON HTTP API,
// plus a WebSocket event stream for monitors.
package httpserver

import (
	"log"
	"net/http"

	"crewhub/internal/coordinator"
	"crewhub/internal/events"
	"crewhub/internal/store"
)

// Server is the HTTP API server.
type Server struct {
	mux     *http.ServeMux
	store   *store.Store
	coord   *coordinator.Coordinator
	bus     *events.Bus
	hub     *events.Hub
	tokens  []string
	version string
}

// New creates the server and registers all routes.
func New(s *store.Store, coord *coordinator.Coordinator, bus *events.Bus, hub *events.Hub, tokens []string, version string) *Server {
	srv := &Server{
		mux:     http.NewServeMux(),
		store:   s,
		coord:   coord,
		bus:     bus,
		hub:     hub,
		tokens:  tokens,
		version: version,
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	// Health check (no auth required)
	s.mux.HandleFunc("/health", loggingMiddleware(s.handleHealth))

	// Authenticated endpoints
	s.mux.HandleFunc("/projects", loggingMiddleware(s.authMiddleware(jsonContentTypeMiddleware(s.handleProjects))))
	s.mux.HandleFunc("/projects/", loggingMiddleware(s.authMiddleware(s.handleProject)))
	s.mux.HandleFunc("/tasks", loggingMiddleware(s.authMiddleware(jsonContentTypeMiddleware(s.handleTasks))))
	s.mux.HandleFunc("/tasks/", loggingMiddleware(s.authMiddleware(jsonContentTypeMiddleware(s.handleTask))))
	s.mux.HandleFunc("/agents", loggingMiddleware(s.authMiddleware(jsonContentTypeMiddleware(s.handleAgents))))
	s.mux.HandleFunc("/agents/", loggingMiddleware(s.authMiddleware(jsonContentTypeMiddleware(s.handleAgent))))
	s.mux.HandleFunc("/chat", loggingMiddleware(s.authMiddleware(jsonContentTypeMiddleware(s.handleChatPost))))
	s.mux.HandleFunc("/chat/execute", loggingMiddleware(s.authMiddleware(jsonContentTypeMiddleware(s.handleChatExecute))))
	s.mux.HandleFunc("/chat/recent", loggingMiddleware(s.authMiddleware(s.handleChatRecent)))

	// WebSocket event stream
	s.mux.HandleFunc("/ws", loggingMiddleware(s.authMiddleware(s.handleWebSocket)))
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	log.Printf("[http] starting server on %s", addr)
	log.Printf("[http] registered %d valid tokens", len(s.tokens))
	return http.ListenAndServe(addr, s.mux)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleWebSocket(w, r)
}
