// Package sessions tracks open collaborative-editing sessions in
// memory. Share and unshare consult it to force-downgrade editors
// whose write access was just withdrawn.
package sessions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"teamdrive/internal/domain/services"
)

// Session is one user's open editor on one entity.
type Session struct {
	ID       string
	EntityID string
	UserID   string
	ReadOnly bool
	OpenedAt time.Time
}

// Registry is an in-memory session table keyed by entity.
type Registry struct {
	mu       sync.Mutex
	byEntity map[string]map[string]*Session // entity id -> session id -> session
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		byEntity: make(map[string]map[string]*Session),
		logger:   logger,
	}
}

// Open registers a session and returns it.
func (r *Registry) Open(entityID, userID string, readOnly bool) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		EntityID: entityID,
		UserID:   userID,
		ReadOnly: readOnly,
		OpenedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.byEntity[entityID]
	if m == nil {
		m = make(map[string]*Session)
		r.byEntity[entityID] = m
	}
	m[s.ID] = s
	return s
}

// Close removes a session. Unknown ids are ignored.
func (r *Registry) Close(entityID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.byEntity[entityID]
	if m == nil {
		return
	}
	delete(m, sessionID)
	if len(m) == 0 {
		delete(r.byEntity, entityID)
	}
}

// Active returns the open sessions on an entity.
func (r *Registry) Active(entityID string) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.byEntity[entityID]
	out := make([]*Session, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	return out
}

// InvalidateWriteAccess downgrades the subject's open sessions on the
// entity to read-only. Subject matches session owners by user id; an
// empty subject downgrades every session on the entity.
func (r *Registry) InvalidateWriteAccess(_ context.Context, entityID, subject string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	downgraded := 0
	for _, s := range r.byEntity[entityID] {
		if subject != "" && s.UserID != subject {
			continue
		}
		if !s.ReadOnly {
			s.ReadOnly = true
			downgraded++
		}
	}
	if downgraded > 0 {
		r.logger.Info("downgraded edit sessions to read-only",
			"entity_id", entityID, "subject", subject, "count", downgraded)
	}
}

var _ services.EditSessions = (*Registry)(nil)
