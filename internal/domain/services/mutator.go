package services

import (
	"context"
	"time"

	"teamdrive/internal/domain/models"
)

// MoveRequest describes where an entity should go. Destination
// resolution order: explicit parent, then destination team's root, then
// the acting user's personal root if MakePrivate, else the entity's
// current team root.
type MoveRequest struct {
	EntityID          string  `json:"-"`
	DestinationParent *string `json:"destination_parent,omitempty"`
	DestinationTeam   *string `json:"destination_team,omitempty"`
	MakePrivate       bool    `json:"make_private,omitempty"`
}

// CopyRequest duplicates an entity (recursively for folders) under a
// destination folder.
type CopyRequest struct {
	EntityID          string `json:"-"`
	DestinationParent string `json:"destination_parent"`
}

// ShareRequest upserts a grant for one subject, cascading over the
// subtree when the entity is a folder.
type ShareRequest struct {
	EntityID   string       `json:"-"`
	Subject    string       `json:"subject"` // user id, "" for public, "$TEAM" for team
	Flags      models.Flags `json:"flags"`
	ValidUntil *time.Time   `json:"valid_until,omitempty"`
}

// PurgeResult reports per-id outcomes of a cascading purge. Batches
// commit independently, so partial progress is normal and surfaced here
// rather than hidden behind an all-or-nothing contract.
type PurgeResult struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []PurgeFailure `json:"failed"`
}

// PurgeFailure names one id that could not be purged and why.
type PurgeFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// TreeMutator implements the cascading entity-tree mutations. Every
// operation authorizes through the AccessResolver before touching state;
// validation and permission failures abort before any mutation.
type TreeMutator interface {
	// Move re-parents an entity, purging grants and restamping the team
	// across the subtree when the move crosses a privacy/team boundary.
	// Returns the resolved new parent.
	Move(ctx context.Context, userID string, req *MoveRequest) (*models.Entity, error)

	// Copy duplicates an entity under the destination folder, resolving
	// a fresh title against existing siblings. Returns the top-level copy.
	Copy(ctx context.Context, userID string, req *CopyRequest) (*models.Entity, error)

	// Trash soft-deletes the entity (descendants stay untouched).
	Trash(ctx context.Context, userID, entityID string) error

	// Restore undoes a trash; only the trashing actor may restore.
	Restore(ctx context.Context, userID, entityID string) error

	// Purge hard-deletes trashed entities and their subtrees across all
	// referencing tables, then releases backing storage.
	Purge(ctx context.Context, userID string, entityIDs []string, adminOverride bool) (*PurgeResult, error)

	// Share upserts a grant and cascades it over folder subtrees in
	// batched passes.
	Share(ctx context.Context, userID string, req *ShareRequest) error

	// Unshare removes a subject's grant. Rejected when the subject owns
	// an ancestor of the entity.
	Unshare(ctx context.Context, userID, entityID, subject string) error
}
