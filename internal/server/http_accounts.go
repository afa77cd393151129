package server

import (
	"encoding/json"
	"net/http"

	"github.com/alfredjeanlab/drip/internal/model"
)

// handleCreateAccount handles POST /v1/accounts.
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var in createAccountInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	account, err := s.createAccount(r.Context(), in)
	if err != nil {
		writeOpError(w, err, "account")
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

// handleGetAccount handles GET /v1/accounts/{id}.
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	view, err := s.getAccount(r.Context(), id)
	if err != nil {
		writeOpError(w, err, "account")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// handleCreditAccount handles POST /v1/accounts/{id}/credit.
func (s *Server) handleCreditAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	var in creditAccountInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	account, err := s.creditAccount(r.Context(), id, in)
	if err != nil {
		writeOpError(w, err, "account")
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// handleFreezeAccount handles POST /v1/accounts/{id}/freeze.
func (s *Server) handleFreezeAccount(w http.ResponseWriter, r *http.Request) {
	s.handleSetAccountStatus(w, r, model.AccountFrozen)
}

// handleUnfreezeAccount handles POST /v1/accounts/{id}/unfreeze.
func (s *Server) handleUnfreezeAccount(w http.ResponseWriter, r *http.Request) {
	s.handleSetAccountStatus(w, r, model.AccountOpen)
}

func (s *Server) handleSetAccountStatus(w http.ResponseWriter, r *http.Request, status model.AccountStatus) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	account, err := s.setAccountStatus(r.Context(), id, status)
	if err != nil {
		writeOpError(w, err, "account")
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// handleAccountStreams handles GET /v1/accounts/{id}/streams.
// By default it lists the ids of streams the account opened as payer;
// ?role=recipient lists incoming stream ids instead. Ids are allocated
// monotonically, so id order is creation order.
func (s *Server) handleAccountStreams(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	var (
		ids []int64
		err error
	)
	switch role := r.URL.Query().Get("role"); role {
	case "", "payer":
		ids, err = s.store.ListStreamIDsByPayer(r.Context(), id)
	case "recipient":
		ids, err = s.store.ListStreamIDsByRecipient(r.Context(), id)
	default:
		writeError(w, http.StatusBadRequest, "role must be payer or recipient")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list streams")
		return
	}

	if ids == nil {
		ids = []int64{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"stream_ids": ids})
}

// handleAccountMessages handles GET /v1/accounts/{id}/messages, listing the
// ids of messages the account sent, in creation order.
func (s *Server) handleAccountMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	ids, err := s.store.ListMessageIDsBySender(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	if ids == nil {
		ids = []int64{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"message_ids": ids})
}
