package repositories

import (
	"context"

	"teamdrive/internal/domain/models"
)

// ShortcutRepository persists per-user entity pointers.
type ShortcutRepository interface {
	Create(ctx context.Context, shortcut *models.Shortcut) error
	GetByID(ctx context.Context, id string) (*models.Shortcut, error)
	Delete(ctx context.Context, id string) error

	// DeleteByTargets drops shortcuts pointing at purged entities.
	DeleteByTargets(ctx context.Context, targetIDs []string) error
}
