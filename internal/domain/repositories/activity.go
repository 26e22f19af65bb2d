package repositories

import (
	"context"
)

// ActivityRepository persists the activity log rows the recorder writes.
// Entry content semantics live with the recorder; purge only needs the
// bulk delete pass.
type ActivityRepository interface {
	Insert(ctx context.Context, entityID, userID, action string) error
	DeleteForEntities(ctx context.Context, entityIDs []string) error
}
