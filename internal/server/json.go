package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/feedgate/internal/platform"
	"github.com/wolfeidau/feedgate/internal/store"
)

const maxBodyBytes = 1 << 20 // 1MiB

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRawJSON passes an upstream JSON document through unmodified.
func writeRawJSON(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Ensure there is no extra data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}

// writeDomainError maps a session manager failure onto the REST error
// surface. The full error is logged; only the class and a short message
// reach the caller.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Debug().Err(err).Msg("request failed")

	switch {
	case errors.Is(err, platform.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
	case errors.Is(err, platform.ErrSessionInvalid):
		writeError(w, http.StatusUnauthorized, "session_invalid", "session expired or invalid")
	case errors.Is(err, store.ErrNoSession):
		writeError(w, http.StatusUnauthorized, "no_session", "no session found")
	case errors.Is(err, platform.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "platform_timeout", "platform did not respond in time")
	case errors.Is(err, platform.ErrConnectivity):
		writeError(w, http.StatusServiceUnavailable, "platform_unavailable", "platform is unreachable")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
