package entity

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"teamdrive/internal/domain"
	"teamdrive/internal/domain/models"
	"teamdrive/internal/domain/services"
)

// Move re-parents an entity. A move that changes the entity's team or
// its private/shared status is a boundary crossing: every grant on the
// subtree is scoped to the old context and gets deleted, and the team
// stamp is rewritten across the subtree.
func (s *Service) Move(ctx context.Context, userID string, req *services.MoveRequest) (*models.Entity, error) {
	if err := validateMoveRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	entity, err := s.entities.GetByID(ctx, req.EntityID)
	if err != nil {
		return nil, err
	}

	acc, err := s.resolver.ResolveForEntity(ctx, entity, userID)
	if err != nil {
		return nil, err
	}
	if !acc.Write {
		return nil, fmt.Errorf("move %s: %w", req.EntityID, domain.ErrForbidden)
	}

	destination, err := s.resolveDestination(ctx, userID, entity, req)
	if err != nil {
		return nil, err
	}

	if err := s.validateDestination(ctx, entity, destination); err != nil {
		return nil, err
	}

	newPrivate := destination.IsPrivate
	boundaryCrossed := entity.IsPrivate != newPrivate || entity.TeamID != destination.TeamID

	if boundaryCrossed {
		if err := s.crossBoundary(ctx, entity, destination); err != nil {
			return nil, err
		}
	}

	// Size rollups: subtract from the old parent, add to the new one.
	// A trashed entity's size already left its parent at trash time, so
	// only active entities move their size along.
	if entity.State == models.StateActive {
		if entity.ParentID != nil {
			if err := s.entities.AdjustSize(ctx, *entity.ParentID, -entity.Size); err != nil {
				s.logger.Warn("size rollup failed on old parent", "parent_id", *entity.ParentID, "error", err)
			}
		}
		if err := s.entities.AdjustSize(ctx, destination.ID, entity.Size); err != nil {
			s.logger.Warn("size rollup failed on new parent", "parent_id", destination.ID, "error", err)
		}
	}

	err = s.updateWithRetry(ctx, entity.ID, func(e *models.Entity) error {
		e.ParentID = &destination.ID
		e.TeamID = destination.TeamID
		e.IsPrivate = newPrivate
		e.ModifiedBy = userID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, entity.ID, userID, "move")
	s.logger.Info("entity moved",
		"entity_id", entity.ID,
		"destination", destination.ID,
		"boundary_crossed", boundaryCrossed,
	)

	return destination, nil
}

// resolveDestination picks the actual new parent: explicit parent first,
// then the destination team's root, then the personal root when going
// private, else the entity's current team root.
func (s *Service) resolveDestination(ctx context.Context, userID string, entity *models.Entity, req *services.MoveRequest) (*models.Entity, error) {
	switch {
	case req.DestinationParent != nil:
		return s.entities.GetByID(ctx, *req.DestinationParent)
	case req.DestinationTeam != nil:
		// Moving into another team requires membership there.
		membership, err := s.teams.Membership(ctx, *req.DestinationTeam, userID)
		if err != nil {
			return nil, err
		}
		if membership == nil {
			return nil, fmt.Errorf("move to team %s: %w", *req.DestinationTeam, domain.ErrForbidden)
		}
		return s.entities.TeamRoot(ctx, *req.DestinationTeam)
	case req.MakePrivate:
		return s.entities.PersonalRoot(ctx, userID)
	default:
		return s.entities.TeamRoot(ctx, entity.TeamID)
	}
}

// validateDestination rejects non-folders, self, and descendants of the
// moving entity (cycle prevention).
func (s *Service) validateDestination(ctx context.Context, entity, destination *models.Entity) error {
	if !destination.IsGroup {
		return fmt.Errorf("%w: destination %s is not a folder", domain.ErrValidation, destination.ID)
	}
	if destination.ID == entity.ID {
		return fmt.Errorf("%w: cannot move %s into itself", domain.ErrValidation, entity.ID)
	}

	isDesc, err := s.navigator.IsDescendantOf(ctx, destination, entity.ID)
	if err != nil {
		return err
	}
	if isDesc {
		return fmt.Errorf("%w: cannot move %s into its own descendant", domain.ErrValidation, entity.ID)
	}

	return nil
}

// crossBoundary drops every grant on the subtree and, if the team
// changed, restamps the team on every id. Both passes run batched.
func (s *Service) crossBoundary(ctx context.Context, entity, destination *models.Entity) error {
	subtree, err := s.navigator.Descendants(ctx, entity, true, true)
	if err != nil {
		return err
	}

	grantPurge := s.batch.Execute(ctx, subtree, func(txCtx context.Context, ids []string) error {
		return s.grants.DeleteForEntities(txCtx, ids)
	})
	if len(grantPurge.Failed) > 0 {
		s.logger.Warn("boundary-crossing grant purge partially failed",
			"entity_id", entity.ID,
			"failed", len(grantPurge.Failed),
		)
	}
	s.invalidateAccessCache()

	if entity.TeamID != destination.TeamID {
		restamp := s.batch.Execute(ctx, subtree, func(txCtx context.Context, ids []string) error {
			return s.entities.SetTeamByIDs(txCtx, ids, destination.TeamID)
		})
		if len(restamp.Failed) > 0 {
			s.logger.Warn("boundary-crossing team restamp partially failed",
				"entity_id", entity.ID,
				"failed", len(restamp.Failed),
			)
		}
	}

	return nil
}

func validateMoveRequest(req *services.MoveRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.EntityID, validation.Required),
	)
}
