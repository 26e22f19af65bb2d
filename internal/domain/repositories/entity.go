package repositories

import (
	"context"
	"time"

	"teamdrive/internal/domain/models"
)

// EntityRepository persists tree nodes. Updates carry the caller's
// last-known modified_at as an optimistic precondition; a stale
// timestamp surfaces as domain.ErrConflict.
type EntityRepository interface {
	Create(ctx context.Context, entity *models.Entity) error
	GetByID(ctx context.Context, id string) (*models.Entity, error)

	// Update persists all mutable fields, guarded by expectedModifiedAt.
	Update(ctx context.Context, entity *models.Entity, expectedModifiedAt time.Time) error

	// UpdateFields is the unguarded last-writer-wins fallback used only
	// after optimistic retries are exhausted.
	UpdateFields(ctx context.Context, entity *models.Entity) error

	// ListChildren lists direct children of a folder, active only.
	ListChildren(ctx context.Context, parentID string) ([]models.Entity, error)

	// DescendantIDs expands a subtree via recursive query, bounded by
	// maxDepth levels below root. Trashed nodes are included only when
	// includeTrashed is set; purged nodes never appear.
	DescendantIDs(ctx context.Context, rootID string, includeSelf, includeTrashed bool, maxDepth int) ([]string, error)

	// StatesByIDs reports the current lifecycle state of each id that
	// still exists.
	StatesByIDs(ctx context.Context, ids []string) (map[string]models.EntityState, error)

	// ContentRefsByIDs returns the non-empty content locators of the
	// given ids, for storage release after a purge.
	ContentRefsByIDs(ctx context.Context, ids []string) (map[string]string, error)

	// SetTeamByIDs restamps the team on every id (boundary-crossing move).
	SetTeamByIDs(ctx context.Context, ids []string, teamID string) error

	// DeleteByIDs removes rows that are still trashed; returns the ids
	// actually deleted so callers can detect concurrently restored nodes.
	DeleteByIDs(ctx context.Context, ids []string) ([]string, error)

	// DeleteSubtreeByIDs removes rows unconditionally. Only for
	// descendants of a root that already passed the still-trashed
	// re-check; descendants themselves are not individually trashed.
	DeleteSubtreeByIDs(ctx context.Context, ids []string) ([]string, error)

	// AdjustSize adds delta to a folder's size rollup.
	AdjustSize(ctx context.Context, id string, delta int64) error

	// TeamRoot returns the root folder of a team.
	TeamRoot(ctx context.Context, teamID string) (*models.Entity, error)

	// PersonalRoot returns a user's personal root folder.
	PersonalRoot(ctx context.Context, userID string) (*models.Entity, error)
}
