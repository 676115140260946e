// Package server exposes the session manager over the REST surface.
package server

import (
	"net/http"

	"github.com/wolfeidau/feedgate/internal/session"
)

// Server wraps the HTTP handlers for the session gateway.
type Server struct {
	manager *session.Manager
}

// NewServer creates a new server over the given session manager.
func NewServer(manager *session.Manager) *Server {
	return &Server{
		manager: manager,
	}
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/login/by_sessionid", s.handleLoginBySessionID)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("GET /auth/settings/get", s.handleSettingsGet)
	mux.HandleFunc("POST /auth/settings/set", s.handleSettingsSet)
	mux.HandleFunc("GET /auth/timeline_feed", s.handleTimelineFeed)

	mux.HandleFunc("GET /v1/hashtag/medias/top/recent/chunk", s.handleHashtagMediaChunk)
	mux.HandleFunc("GET /v1/search/hashtags", s.handleSearchHashtags)

	return mux
}
