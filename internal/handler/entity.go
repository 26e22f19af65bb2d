package handler

import (
	"log/slog"
	"net/http"

	"teamdrive/internal/domain/services"
	"teamdrive/internal/httputil"
)

// EntityHandler handles entity-tree mutation requests
type EntityHandler struct {
	mutator services.TreeMutator
	logger  *slog.Logger
}

func NewEntityHandler(mutator services.TreeMutator, logger *slog.Logger) *EntityHandler {
	return &EntityHandler{mutator: mutator, logger: logger}
}

// Move re-parents an entity, possibly across a team/privacy boundary
// POST /api/entities/{id}/move
func (h *EntityHandler) Move(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "entity ID is required")
		return
	}

	var req services.MoveRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.EntityID = id

	parent, err := h.mutator.Move(r.Context(), userID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"entity_id":  id,
		"new_parent": parent,
	})
}

// Copy duplicates an entity under a destination folder
// POST /api/entities/{id}/copy
func (h *EntityHandler) Copy(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "entity ID is required")
		return
	}

	var req services.CopyRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.EntityID = id

	copied, err := h.mutator.Copy(r.Context(), userID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, copied)
}

// Trash soft-deletes an entity
// POST /api/entities/{id}/trash
func (h *EntityHandler) Trash(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "entity ID is required")
		return
	}

	if err := h.mutator.Trash(r.Context(), userID, id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Restore undoes a trash
// POST /api/entities/{id}/restore
func (h *EntityHandler) Restore(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "entity ID is required")
		return
	}

	if err := h.mutator.Restore(r.Context(), userID, id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// purgeRequest carries the id list for a bulk purge.
type purgeRequest struct {
	EntityIDs []string `json:"entity_ids"`
}

// Purge hard-deletes trashed entities and their subtrees
// POST /api/entities/purge
//
// Always returns 200 with a per-id result; partial failure is not an
// HTTP error.
func (h *EntityHandler) Purge(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req purgeRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.EntityIDs) == 0 {
		httputil.RespondError(w, http.StatusBadRequest, "entity_ids is required")
		return
	}

	adminOverride := httputil.GetRole(r) == "service_role"

	result, err := h.mutator.Purge(r.Context(), userID, req.EntityIDs, adminOverride)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}
