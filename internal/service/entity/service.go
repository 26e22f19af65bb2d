// Package entity implements the cascading tree mutations: move, copy,
// trash/restore, purge, share and unshare. Validation and permission
// failures abort before any write; cascades run through the bulk
// executor and surface partial progress instead of pretending to be
// atomic.
package entity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"teamdrive/internal/domain"
	"teamdrive/internal/domain/models"
	"teamdrive/internal/domain/repositories"
	"teamdrive/internal/domain/services"
	"teamdrive/internal/service/access"
	"teamdrive/internal/service/bulk"
	"teamdrive/internal/service/tree"
)

// CacheInvalidator is satisfied by the cached access resolver; nil when
// no cache sits in front.
type CacheInvalidator interface {
	Invalidate()
}

// Service implements services.TreeMutator.
type Service struct {
	entities  repositories.EntityRepository
	grants    repositories.GrantRepository
	teams     repositories.TeamRepository
	shortcuts repositories.ShortcutRepository
	activity  repositories.ActivityRepository
	navigator *tree.Navigator
	resolver  *access.Resolver
	batch     *bulk.Executor
	storage   services.Storage
	notifier  services.Notifier
	sessions  services.EditSessions
	cache     CacheInvalidator
	logger    *slog.Logger
}

// NewService creates the tree mutator. cache may be nil.
func NewService(
	entities repositories.EntityRepository,
	grants repositories.GrantRepository,
	teams repositories.TeamRepository,
	shortcuts repositories.ShortcutRepository,
	activity repositories.ActivityRepository,
	navigator *tree.Navigator,
	resolver *access.Resolver,
	batch *bulk.Executor,
	storage services.Storage,
	notifier services.Notifier,
	sessions services.EditSessions,
	cache CacheInvalidator,
	logger *slog.Logger,
) *Service {
	return &Service{
		entities:  entities,
		grants:    grants,
		teams:     teams,
		shortcuts: shortcuts,
		activity:  activity,
		navigator: navigator,
		resolver:  resolver,
		batch:     batch,
		storage:   storage,
		notifier:  notifier,
		sessions:  sessions,
		cache:     cache,
		logger:    logger,
	}
}

var _ services.TreeMutator = (*Service)(nil)

// Trash soft-deletes the entity. Descendants are not recursively
// trashed; listing layers treat an item as a direct trash entry only
// when its parent is not itself trashed.
func (s *Service) Trash(ctx context.Context, userID, entityID string) error {
	entity, err := s.entities.GetByID(ctx, entityID)
	if err != nil {
		return err
	}
	if entity.State != models.StateActive {
		return fmt.Errorf("%w: entity %s is not active", domain.ErrValidation, entityID)
	}

	acc, err := s.resolver.ResolveForEntity(ctx, entity, userID)
	if err != nil {
		return err
	}
	if !acc.Write {
		return fmt.Errorf("trash %s: %w", entityID, domain.ErrForbidden)
	}

	err = s.updateWithRetry(ctx, entityID, func(e *models.Entity) error {
		if e.State != models.StateActive {
			return fmt.Errorf("%w: entity %s is not active", domain.ErrValidation, entityID)
		}
		e.State = models.StateTrashed
		e.ModifiedBy = userID
		return nil
	})
	if err != nil {
		return err
	}

	// Direct parent rollup only; deeper ancestors converge via the
	// incremental maintenance on their own mutations.
	if entity.ParentID != nil {
		if err := s.entities.AdjustSize(ctx, *entity.ParentID, -entity.Size); err != nil {
			s.logger.Warn("size rollup failed after trash", "entity_id", entityID, "error", err)
		}
	}

	s.recordActivity(ctx, entityID, userID, "trash")
	s.logger.Info("entity trashed", "entity_id", entityID, "user_id", userID)

	return nil
}

// Restore undoes a trash. Only the user recorded by the trash may
// restore; is_active moves 0 -> 1 and never -1 -> anything.
func (s *Service) Restore(ctx context.Context, userID, entityID string) error {
	entity, err := s.entities.GetByID(ctx, entityID)
	if err != nil {
		return err
	}
	if entity.State != models.StateTrashed {
		return fmt.Errorf("%w: entity %s is not trashed", domain.ErrValidation, entityID)
	}
	if entity.ModifiedBy != userID {
		return fmt.Errorf("restore %s: only the trashing user may restore: %w", entityID, domain.ErrForbidden)
	}

	err = s.updateWithRetry(ctx, entityID, func(e *models.Entity) error {
		if e.State != models.StateTrashed {
			return fmt.Errorf("%w: entity %s is not trashed", domain.ErrValidation, entityID)
		}
		if e.ModifiedBy != userID {
			return fmt.Errorf("restore %s: only the trashing user may restore: %w", entityID, domain.ErrForbidden)
		}
		e.State = models.StateActive
		e.ModifiedBy = userID
		return nil
	})
	if err != nil {
		return err
	}

	if entity.ParentID != nil {
		if err := s.entities.AdjustSize(ctx, *entity.ParentID, entity.Size); err != nil {
			s.logger.Warn("size rollup failed after restore", "entity_id", entityID, "error", err)
		}
	}

	s.recordActivity(ctx, entityID, userID, "restore")
	s.logger.Info("entity restored", "entity_id", entityID, "user_id", userID)

	return nil
}

// recordActivity appends to the activity log; recording is best-effort
// and never fails the primary mutation.
func (s *Service) recordActivity(ctx context.Context, entityID, userID, action string) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Insert(ctx, entityID, userID, action); err != nil {
		s.logger.Warn("activity record failed",
			"entity_id", entityID,
			"action", action,
			"error", err,
		)
	}
}

// invalidateAccessCache bumps the resolver cache generation after any
// grant mutation.
func (s *Service) invalidateAccessCache() {
	if s.cache != nil {
		s.cache.Invalidate()
	}
}

// touch stamps the mutation metadata before persisting.
func touch(e *models.Entity, userID string) {
	e.ModifiedBy = userID
	e.ModifiedAt = time.Now()
}
