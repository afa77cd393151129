package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/drip/internal/model"
)

// pathInt64 parses the {id} path segment as an int64.
func pathInt64(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// callerInput identifies the account performing an operation.
type callerInput struct {
	Caller string `json:"caller"`
}

// handleOpenStream handles POST /v1/streams.
func (s *Server) handleOpenStream(w http.ResponseWriter, r *http.Request) {
	var in openStreamInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	stream, err := s.openStream(r.Context(), in)
	if err != nil {
		writeOpError(w, err, "account")
		return
	}

	writeJSON(w, http.StatusCreated, stream)
}

// handleGetStream handles GET /v1/streams/{id}.
func (s *Server) handleGetStream(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid stream id")
		return
	}

	view, err := s.getStream(r.Context(), id)
	if err != nil {
		writeOpError(w, err, "stream")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// handleStopStream handles POST /v1/streams/{id}/stop.
func (s *Server) handleStopStream(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid stream id")
		return
	}

	var in callerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.stopStream(r.Context(), id, in.Caller)
	if err != nil {
		writeOpError(w, err, "stream")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleWithdraw handles POST /v1/streams/{id}/withdraw.
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid stream id")
		return
	}

	var in callerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.withdraw(r.Context(), id, in.Caller)
	if err != nil {
		writeOpError(w, err, "stream")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// streamBalance is the response body for GET /v1/streams/{id}/balance.
type streamBalance struct {
	StreamID     int64     `json:"stream_id"`
	Accrued      int64     `json:"accrued"`
	Withdrawn    int64     `json:"withdrawn"`
	Withdrawable int64     `json:"withdrawable"`
	AsOf         time.Time `json:"as_of"`
}

// handleStreamBalance handles GET /v1/streams/{id}/balance.
func (s *Server) handleStreamBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid stream id")
		return
	}

	view, err := s.getStream(r.Context(), id)
	if err != nil {
		writeOpError(w, err, "stream")
		return
	}

	writeJSON(w, http.StatusOK, streamBalance{
		StreamID:     view.ID,
		Accrued:      view.Accrued,
		Withdrawn:    view.Withdrawn,
		Withdrawable: view.Withdrawable,
		AsOf:         s.clock.Now().UTC(),
	})
}

// handleStreamEvents handles GET /v1/streams/{id}/events.
func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid stream id")
		return
	}

	evts, err := s.store.GetEventsBySubject(r.Context(), streamSubject(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get events")
		return
	}

	// Ensure events is never null in JSON output.
	if evts == nil {
		evts = []*model.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}
