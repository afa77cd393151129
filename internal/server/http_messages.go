package server

import (
	"encoding/json"
	"net/http"
)

// handleAttachMessage handles POST /v1/streams/{id}/messages.
func (s *Server) handleAttachMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid stream id")
		return
	}

	var in attachMessageInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := s.attachMessage(r.Context(), id, in)
	if err != nil {
		writeOpError(w, err, "stream")
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// handleGetMessage handles GET /v1/messages/{id}.
func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	msg, err := s.store.GetMessage(r.Context(), id)
	if err != nil {
		writeOpError(w, err, "message")
		return
	}

	writeJSON(w, http.StatusOK, msg)
}
