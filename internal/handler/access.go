package handler

import (
	"log/slog"
	"net/http"

	"teamdrive/internal/domain/services"
	"teamdrive/internal/httputil"
)

// AccessHandler exposes effective-access resolution
type AccessHandler struct {
	resolver services.AccessResolver
	logger   *slog.Logger
}

func NewAccessHandler(resolver services.AccessResolver, logger *slog.Logger) *AccessHandler {
	return &AccessHandler{resolver: resolver, logger: logger}
}

// GetAccess returns the caller's effective access on an entity
// GET /api/entities/{id}/access
func (h *AccessHandler) GetAccess(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "entity ID is required")
		return
	}

	access, err := h.resolver.ResolveAccess(r.Context(), id, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, access)
}
