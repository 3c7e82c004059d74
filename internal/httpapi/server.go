// Package httpapi exposes ragmux's REST surface: chat submission, session
// and task inspection, knowledge-base collection management, debug trace
// queries, and preferences. One Server wraps an http.ServeMux, Go 1.22+
// method-pattern routes registered in registerRoutes, handlers split into
// their own file.
package httpapi

import (
	"net/http"

	"ragmux/internal/auth"
	"ragmux/internal/debugtrace"
	"ragmux/internal/eventbus"
	"ragmux/internal/manager"
	"ragmux/internal/memory/preferences"
	"ragmux/internal/store"
	"ragmux/internal/vectorstore"
)

// Server exposes the HTTP API wired to every subsystem a handler needs.
type Server struct {
	manager     *manager.Manager
	store       store.Store
	trace       *debugtrace.Ring
	bus         *eventbus.Bus
	vectors     *vectorstore.Facade
	preferences preferences.Store
	auth        *auth.TokenStore

	mux *http.ServeMux
}

// Deps bundles the subsystems the HTTP API delegates to.
type Deps struct {
	Manager     *manager.Manager
	Store       store.Store
	Trace       *debugtrace.Ring
	Bus         *eventbus.Bus
	Vectors     *vectorstore.Facade
	Preferences preferences.Store
	Auth        *auth.TokenStore
}

// NewServer builds the HTTP API server and registers every route.
func NewServer(d Deps) *Server {
	s := &Server{
		manager:     d.Manager,
		store:       d.Store,
		trace:       d.Trace,
		bus:         d.Bus,
		vectors:     d.Vectors,
		preferences: d.Preferences,
		auth:        d.Auth,
		mux:         http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)

	s.mux.HandleFunc("POST /api/v1/chat", s.handleChat)
	s.mux.HandleFunc("POST /api/v1/feedback", s.handleFeedback)

	s.mux.HandleFunc("GET /api/v1/sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /api/v1/sessions/{sessionID}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /api/v1/sessions/{sessionID}", s.handleDeleteSession)
	s.mux.HandleFunc("GET /api/v1/sessions/{sessionID}/turns", s.handleListTurns)

	s.mux.HandleFunc("GET /api/v1/tasks/{taskUID}", s.handleGetTask)
	s.mux.HandleFunc("POST /api/v1/tasks/{taskUID}/cancel", s.handleCancelTask)
	s.mux.HandleFunc("GET /api/v1/tasks/{taskUID}/history", s.handleTaskHistory)
	s.mux.HandleFunc("GET /api/v1/tasks/{taskUID}/flow", s.handleTaskFlow)

	s.mux.HandleFunc("GET /api/v1/debug/trace", s.handleDebugTrace)

	s.mux.HandleFunc("GET /api/v1/kb/collections", s.handleListCollections)
	s.mux.HandleFunc("POST /api/v1/kb/collections", s.handleCreateCollection)
	s.mux.HandleFunc("DELETE /api/v1/kb/collections/{name}", s.handleDeleteCollection)

	s.mux.HandleFunc("GET /api/v1/users/{userID}/preferences", s.handleListPreferences)
	s.mux.HandleFunc("PUT /api/v1/users/{userID}/preferences/{key}", s.handleSetPreference)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
