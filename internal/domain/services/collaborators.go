package services

import (
	"context"
)

// Storage is the opaque blob store behind entities' content locators.
// Implementations must treat deleting an absent object as success.
type Storage interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Put(ctx context.Context, path string, data []byte) (string, error)
	// Duplicate copies the object to a fresh path and returns it.
	Duplicate(ctx context.Context, path string) (string, error)
	Delete(ctx context.Context, path string) error
}

// Notifier dispatches fire-and-forget events. Delivery failure never
// fails the mutation that produced the event.
type Notifier interface {
	Notify(targetUser, eventKind string, payload map[string]string)
	// RequestThumbnail asks the preview pipeline to render an entity's
	// content. No ordering guarantee relative to the primary mutation.
	RequestThumbnail(entityID, contentRef string)
}

// EditSessions is the collaborative-editing collaborator. Share/unshare
// call it to downgrade open sessions when write access is withdrawn.
type EditSessions interface {
	InvalidateWriteAccess(ctx context.Context, entityID, subject string)
}
