package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfredjeanlab/drip/internal/store"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health and
// GET /metrics) must include a valid Authorization: Bearer <token> header.
// When gatherer is non-nil, Prometheus metrics are served at GET /metrics.
func (s *Server) NewHTTPHandler(authToken string, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/streams", s.handleOpenStream)
	mux.HandleFunc("GET /v1/streams/{id}", s.handleGetStream)
	mux.HandleFunc("POST /v1/streams/{id}/stop", s.handleStopStream)
	mux.HandleFunc("POST /v1/streams/{id}/withdraw", s.handleWithdraw)
	mux.HandleFunc("GET /v1/streams/{id}/balance", s.handleStreamBalance)
	mux.HandleFunc("POST /v1/streams/{id}/messages", s.handleAttachMessage)
	mux.HandleFunc("GET /v1/streams/{id}/events", s.handleStreamEvents)
	mux.HandleFunc("GET /v1/messages/{id}", s.handleGetMessage)
	mux.HandleFunc("POST /v1/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /v1/accounts/{id}", s.handleGetAccount)
	mux.HandleFunc("POST /v1/accounts/{id}/credit", s.handleCreditAccount)
	mux.HandleFunc("POST /v1/accounts/{id}/freeze", s.handleFreezeAccount)
	mux.HandleFunc("POST /v1/accounts/{id}/unfreeze", s.handleUnfreezeAccount)
	mux.HandleFunc("GET /v1/accounts/{id}/streams", s.handleAccountStreams)
	mux.HandleFunc("GET /v1/accounts/{id}/messages", s.handleAccountMessages)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return RecoveryMiddleware(LoggingMiddleware(AuthMiddleware(authToken, mux)))
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeOpError maps an engine operation error onto an HTTP status code.
// entity names what a not-found error refers to ("stream", "message",
// "account").
func writeOpError(w http.ResponseWriter, err error, entity string) {
	var ie inputError
	var ae authError
	var se stateError
	switch {
	case errors.As(err, &ie):
		writeError(w, http.StatusBadRequest, ie.Error())
	case errors.As(err, &ae):
		writeError(w, http.StatusForbidden, ae.Error())
	case errors.As(err, &se):
		writeError(w, http.StatusConflict, se.Error())
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, entity+" not found")
	case errors.Is(err, store.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInsufficientFunds), errors.Is(err, store.ErrAccountFrozen):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
