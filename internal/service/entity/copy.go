package entity

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"teamdrive/internal/config"
	"teamdrive/internal/domain"
	"teamdrive/internal/domain/models"
	"teamdrive/internal/domain/services"
)

// Copy duplicates an entity under a destination folder. Folders recurse
// into their children; leaves get their backing blob duplicated. The
// top-level copy's title goes through the naming policy; children keep
// their titles since the new parent is a fresh node.
func (s *Service) Copy(ctx context.Context, userID string, req *services.CopyRequest) (*models.Entity, error) {
	if err := validateCopyRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	source, err := s.entities.GetByID(ctx, req.EntityID)
	if err != nil {
		return nil, err
	}

	destination, err := s.entities.GetByID(ctx, req.DestinationParent)
	if err != nil {
		return nil, err
	}
	if !destination.IsGroup {
		return nil, fmt.Errorf("%w: destination %s is not a folder", domain.ErrValidation, destination.ID)
	}
	if destination.ID == source.ID {
		return nil, fmt.Errorf("%w: cannot copy %s into itself", domain.ErrValidation, source.ID)
	}
	isDesc, err := s.navigator.IsDescendantOf(ctx, destination, source.ID)
	if err != nil {
		return nil, err
	}
	if isDesc {
		return nil, fmt.Errorf("%w: cannot copy %s into its own descendant", domain.ErrValidation, source.ID)
	}

	destAccess, err := s.resolver.ResolveForEntity(ctx, destination, userID)
	if err != nil {
		return nil, err
	}
	if !destAccess.Write {
		return nil, fmt.Errorf("copy into %s: %w", destination.ID, domain.ErrForbidden)
	}

	title, err := s.resolveNewTitle(ctx, destination.ID, source.Title)
	if err != nil {
		return nil, err
	}

	root, err := s.copyNode(ctx, userID, source, destination, title, 0)
	if err != nil {
		return nil, err
	}

	if err := s.entities.AdjustSize(ctx, destination.ID, root.Size); err != nil {
		s.logger.Warn("size rollup failed after copy", "parent_id", destination.ID, "error", err)
	}

	// Copies landing in the acting user's personal space get an explicit
	// full grant on the top-level copy.
	personalRoot, err := s.entities.PersonalRoot(ctx, userID)
	if err == nil && personalRoot.ID == destination.ID {
		grant := &models.Grant{
			EntityID: root.ID,
			Subject:  models.UserSubject(userID),
			Flags:    models.FullFlags(true),
		}
		if err := s.grants.Upsert(ctx, grant); err != nil {
			return nil, fmt.Errorf("grant on copy: %w", err)
		}
		s.invalidateAccessCache()
	}

	if root.HasVisualContent() {
		// Fire-and-forget; thumbnail failure never fails the copy
		s.notifier.RequestThumbnail(root.ID, root.ContentRef)
	}

	s.recordActivity(ctx, root.ID, userID, "copy")
	s.logger.Info("entity copied",
		"source_id", source.ID,
		"copy_id", root.ID,
		"destination", destination.ID,
	)

	return root, nil
}

// copyNode duplicates one node under newParent and recurses into active
// children for folders. The depth bound keeps the walk terminating on
// corrupted parent links.
func (s *Service) copyNode(ctx context.Context, userID string, source, newParent *models.Entity, title string, depth int) (*models.Entity, error) {
	if depth > config.MaxTreeDepth {
		return nil, fmt.Errorf("%w: copy of %s exceeds max tree depth %d", domain.ErrValidation, source.ID, config.MaxTreeDepth)
	}

	now := time.Now()
	copied := &models.Entity{
		ID:         uuid.NewString(),
		Title:      title,
		ParentID:   &newParent.ID,
		TeamID:     newParent.TeamID,
		OwnerID:    userID,
		IsGroup:    source.IsGroup,
		IsPrivate:  newParent.IsPrivate,
		State:      models.StateActive,
		Size:       source.Size,
		MimeType:   source.MimeType,
		ModifiedBy: userID,
		ModifiedAt: now,
		CreatedAt:  now,
	}

	if !source.IsGroup && source.ContentRef != "" {
		newRef, err := s.storage.Duplicate(ctx, source.ContentRef)
		if err != nil {
			return nil, fmt.Errorf("duplicate content of %s: %w", source.ID, err)
		}
		copied.ContentRef = newRef
	}

	if err := s.entities.Create(ctx, copied); err != nil {
		return nil, err
	}

	if source.IsGroup {
		children, err := s.entities.ListChildren(ctx, source.ID)
		if err != nil {
			return nil, err
		}
		for i := range children {
			// Children keep their original titles: the new parent is a
			// fresh node, so uniqueness holds by construction.
			if _, err := s.copyNode(ctx, userID, &children[i], copied, children[i].Title, depth+1); err != nil {
				return nil, err
			}
		}
	}

	return copied, nil
}

func validateCopyRequest(req *services.CopyRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.EntityID, validation.Required),
		validation.Field(&req.DestinationParent, validation.Required),
	)
}
