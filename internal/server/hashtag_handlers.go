package server

import (
	"net/http"
)

func (s *Server) handleHashtagMediaChunk(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	medias, err := s.manager.HashtagMediaChunk(r.Context(), name, r.URL.Query().Get("max_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeRawJSON(w, http.StatusOK, medias)
}

func (s *Server) handleSearchHashtags(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	hashtags, err := s.manager.SearchHashtags(r.Context(), query)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeRawJSON(w, http.StatusOK, hashtags)
}
