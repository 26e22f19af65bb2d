package repositories

import (
	"context"

	"teamdrive/internal/domain/models"
)

// TeamRepository reads team memberships. Team administration is managed
// elsewhere; the resolver only consumes it.
type TeamRepository interface {
	// Membership returns the user's membership in the team, or nil if
	// the user is not on the team.
	Membership(ctx context.Context, teamID, userID string) (*models.Membership, error)

	// MembershipsForUser returns every team the user belongs to.
	MembershipsForUser(ctx context.Context, userID string) ([]models.Membership, error)
}
