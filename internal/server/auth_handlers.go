package server

import (
	"encoding/json"
	"net/http"

	"github.com/wolfeidau/feedgate/internal/platform"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionRequest struct {
	SessionID string `json:"sessionid"`
}

type sessionResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"sessionid"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	sessionID, err := s.manager.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{Status: "ok", SessionID: sessionID})
}

func (s *Server) handleLoginBySessionID(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "sessionid is required")
		return
	}

	sessionID, err := s.manager.LoginBySessionID(r.Context(), req.SessionID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{Status: "ok", SessionID: sessionID})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "sessionid is required")
		return
	}

	if err := s.manager.Logout(r.Context(), req.SessionID); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionid")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "sessionid is required")
		return
	}

	settings, err := s.manager.GetSettings(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSettingsSet(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid form body")
		return
	}

	rawSettings := r.PostFormValue("settings")
	if rawSettings == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "settings is required")
		return
	}

	var settings platform.Settings
	if err := json.Unmarshal([]byte(rawSettings), &settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "settings must be a JSON object")
		return
	}

	// sessionid is optional, empty means apply onto a fresh client
	sessionID, err := s.manager.SetSettings(r.Context(), r.PostFormValue("sessionid"), settings)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionID)
}

func (s *Server) handleTimelineFeed(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionid")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "sessionid is required")
		return
	}

	feed, err := s.manager.TimelineFeed(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeRawJSON(w, http.StatusOK, feed)
}
