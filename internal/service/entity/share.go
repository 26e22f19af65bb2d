package entity

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"teamdrive/internal/domain"
	"teamdrive/internal/domain/models"
	"teamdrive/internal/domain/services"
)

// Share upserts the grant for (entity, subject) and, for folders,
// cascades the same flags to every descendant in two batched passes:
// bulk UPDATE for descendants that already hold a row for the subject,
// bulk INSERT for the rest. Subtrees can run to thousands of nodes, so
// per-node recursion is never acceptable here.
func (s *Service) Share(ctx context.Context, userID string, req *services.ShareRequest) error {
	if err := validateShareRequest(req); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	entity, err := s.entities.GetByID(ctx, req.EntityID)
	if err != nil {
		return err
	}

	acc, err := s.resolver.ResolveForEntity(ctx, entity, userID)
	if err != nil {
		return err
	}
	if !acc.Share {
		return fmt.Errorf("share %s: %w", req.EntityID, domain.ErrForbidden)
	}

	subject := models.ParseSubject(req.Subject)

	// Withdrawing write must downgrade any open collaborative-edit
	// session the subject holds on this entity.
	writeWithdrawn, err := s.writeBeingWithdrawn(ctx, entity.ID, subject, req.Flags)
	if err != nil {
		return err
	}

	grant := &models.Grant{
		EntityID:   entity.ID,
		Subject:    subject,
		Flags:      req.Flags,
		ValidUntil: req.ValidUntil,
	}
	if err := s.grants.Upsert(ctx, grant); err != nil {
		return err
	}

	if entity.IsGroup {
		if err := s.cascadeShare(ctx, entity, subject, req.Flags, req.ValidUntil); err != nil {
			return err
		}
	}

	s.invalidateAccessCache()

	if writeWithdrawn {
		s.sessions.InvalidateWriteAccess(ctx, entity.ID, req.Subject)
	}

	if subject.Kind == models.SubjectUser && subject.UserID != userID {
		s.notifier.Notify(subject.UserID, "entity.shared", map[string]string{
			"entity_id": entity.ID,
			"title":     entity.Title,
			"shared_by": userID,
		})
	}

	s.recordActivity(ctx, entity.ID, userID, "share")
	s.logger.Info("entity shared",
		"entity_id", entity.ID,
		"subject_kind", subject.Kind,
		"cascaded", entity.IsGroup,
	)

	return nil
}

// cascadeShare pushes the flags over the whole subtree: one batched
// UPDATE pass over descendants that already carry a row for the subject,
// one batched INSERT pass over the rest.
func (s *Service) cascadeShare(ctx context.Context, entity *models.Entity, subject models.Subject, flags models.Flags, validUntil *time.Time) error {
	descendants, err := s.navigator.Descendants(ctx, entity, false, false)
	if err != nil {
		return err
	}
	if len(descendants) == 0 {
		return nil
	}

	existing, err := s.grants.EntitiesWithGrant(ctx, descendants, subject)
	if err != nil {
		return err
	}
	existingSet := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		existingSet[id] = struct{}{}
	}
	var missing []string
	for _, id := range descendants {
		if _, ok := existingSet[id]; !ok {
			missing = append(missing, id)
		}
	}

	updateRun := s.batch.Execute(ctx, existing, func(txCtx context.Context, ids []string) error {
		return s.grants.UpdateForEntities(txCtx, ids, subject, flags, validUntil)
	})
	insertRun := s.batch.Execute(ctx, missing, func(txCtx context.Context, ids []string) error {
		return s.grants.InsertForEntities(txCtx, ids, subject, flags, validUntil)
	})

	if failed := len(updateRun.Failed) + len(insertRun.Failed); failed > 0 {
		s.logger.Warn("share cascade partially failed",
			"entity_id", entity.ID,
			"failed", failed,
		)
	}

	return nil
}

func validateShareRequest(req *services.ShareRequest) error {
	if req.Flags.IsZero() {
		return fmt.Errorf("at least one flag must be set")
	}
	return validation.ValidateStruct(req,
		validation.Field(&req.EntityID, validation.Required),
	)
}

// writeBeingWithdrawn reports whether the new flags drop an existing
// write=1 to 0 for the subject.
func (s *Service) writeBeingWithdrawn(ctx context.Context, entityID string, subject models.Subject, flags models.Flags) (bool, error) {
	existing, err := s.grants.Get(ctx, entityID, subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	hadWrite := existing.Flags.Write != nil && *existing.Flags.Write
	losesWrite := flags.Write != nil && !*flags.Write
	return hadWrite && losesWrite, nil
}

// Unshare removes the subject's grant on the entity. Ownership of an
// ancestor cannot be unshared away.
func (s *Service) Unshare(ctx context.Context, userID, entityID, subjectRaw string) error {
	entity, err := s.entities.GetByID(ctx, entityID)
	if err != nil {
		return err
	}

	acc, err := s.resolver.ResolveForEntity(ctx, entity, userID)
	if err != nil {
		return err
	}
	if !acc.Share {
		return fmt.Errorf("unshare %s: %w", entityID, domain.ErrForbidden)
	}

	subject := models.ParseSubject(subjectRaw)

	if subject.Kind == models.SubjectUser {
		chain, err := s.navigator.AncestorChain(ctx, entity)
		if err != nil {
			return err
		}
		for _, node := range chain {
			if node.OwnerID == subject.UserID {
				return fmt.Errorf("unshare %s: subject owns ancestor %s: %w", entityID, node.ID, domain.ErrForbidden)
			}
		}
	}

	if err := s.grants.Delete(ctx, entityID, subject); err != nil {
		return err
	}
	s.invalidateAccessCache()

	s.sessions.InvalidateWriteAccess(ctx, entityID, subjectRaw)

	if subject.Kind == models.SubjectUser && subject.UserID != userID {
		s.notifier.Notify(subject.UserID, "entity.unshared", map[string]string{
			"entity_id":   entityID,
			"unshared_by": userID,
		})
	}

	s.recordActivity(ctx, entityID, userID, "unshare")
	s.logger.Info("entity unshared", "entity_id", entityID, "subject_kind", subject.Kind)

	return nil
}
