package repositories

import (
	"context"
	"time"

	"teamdrive/internal/domain/models"
)

// GrantRepository persists permission grants, one row per
// (entity, subject). The bulk methods take pre-chunked id slices; the
// batch executor decides chunking and transaction scope.
type GrantRepository interface {
	Get(ctx context.Context, entityID string, subject models.Subject) (*models.Grant, error)
	Upsert(ctx context.Context, grant *models.Grant) error
	Delete(ctx context.Context, entityID string, subject models.Subject) error

	// ForEntities loads all grants on the given entities, keyed by
	// entity id. Used to fold an ancestor chain in one round trip.
	ForEntities(ctx context.Context, entityIDs []string) (map[string][]models.Grant, error)

	// EntitiesWithGrant reports which of the given entities already hold
	// a grant row for the subject (cascade split: UPDATE vs INSERT).
	EntitiesWithGrant(ctx context.Context, entityIDs []string, subject models.Subject) ([]string, error)

	// UpdateForEntities bulk-overwrites the subject's flags on existing rows.
	UpdateForEntities(ctx context.Context, entityIDs []string, subject models.Subject, flags models.Flags, validUntil *time.Time) error

	// InsertForEntities bulk-creates rows for entities without one.
	InsertForEntities(ctx context.Context, entityIDs []string, subject models.Subject, flags models.Flags, validUntil *time.Time) error

	// DeleteForEntities drops every grant row on the given entities.
	DeleteForEntities(ctx context.Context, entityIDs []string) error
}
