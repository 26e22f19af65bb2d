package handler

import (
	"log/slog"
	"net/http"

	"teamdrive/internal/domain/services"
	"teamdrive/internal/httputil"
)

// ShareHandler handles grant management requests
type ShareHandler struct {
	mutator services.TreeMutator
	logger  *slog.Logger
}

func NewShareHandler(mutator services.TreeMutator, logger *slog.Logger) *ShareHandler {
	return &ShareHandler{mutator: mutator, logger: logger}
}

// Share upserts a grant for one subject
// PUT /api/entities/{id}/shares
//
// The subject field takes a user id, "" for everyone, or "$TEAM" for
// the entity's team members.
func (h *ShareHandler) Share(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "entity ID is required")
		return
	}

	var req services.ShareRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.EntityID = id

	if err := h.mutator.Share(r.Context(), userID, &req); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// unshareRequest names the subject losing its grant.
type unshareRequest struct {
	Subject string `json:"subject"`
}

// Unshare removes a subject's grant
// DELETE /api/entities/{id}/shares
func (h *ShareHandler) Unshare(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "entity ID is required")
		return
	}

	var req unshareRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.mutator.Unshare(r.Context(), userID, id, req.Subject); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
