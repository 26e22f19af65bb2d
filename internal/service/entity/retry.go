package entity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"teamdrive/internal/config"
	"teamdrive/internal/domain"
	"teamdrive/internal/domain/models"
)

// updateWithRetry reloads the entity, applies mutate, and persists it
// guarded by the loaded modified_at. A concurrent writer advancing the
// timestamp triggers a reload and retry; after the retries are exhausted
// the write falls back to a direct field-level update, a deliberately
// weaker last-writer-wins path for that specific case only.
func (s *Service) updateWithRetry(ctx context.Context, entityID string, mutate func(*models.Entity) error) error {
	var lastErr error

	for attempt := 0; attempt < config.OptimisticRetries; attempt++ {
		entity, err := s.entities.GetByID(ctx, entityID)
		if err != nil {
			return err
		}

		loadedAt := entity.ModifiedAt
		if err := mutate(entity); err != nil {
			return err
		}
		entity.ModifiedAt = time.Now()

		err = s.entities.Update(ctx, entity, loadedAt)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}

		lastErr = err
		s.logger.Debug("optimistic update conflict, retrying",
			"entity_id", entityID,
			"attempt", attempt+1,
		)
	}

	// Fallback: last-writer-wins field update
	entity, err := s.entities.GetByID(ctx, entityID)
	if err != nil {
		return err
	}
	if err := mutate(entity); err != nil {
		return err
	}
	entity.ModifiedAt = time.Now()

	if err := s.entities.UpdateFields(ctx, entity); err != nil {
		return fmt.Errorf("fallback update after %d conflicts: %w (last: %v)", config.OptimisticRetries, err, lastErr)
	}

	s.logger.Warn("optimistic retries exhausted, applied direct field update",
		"entity_id", entityID,
		"retries", config.OptimisticRetries,
	)

	return nil
}
