package services

import (
	"context"

	"teamdrive/internal/domain/models"
)

// AccessResolver computes the effective access of a user on an entity.
// Absence of access is all-zero flags, not an error.
type AccessResolver interface {
	ResolveAccess(ctx context.Context, entityID, userID string) (models.Access, error)
}
