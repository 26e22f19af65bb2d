package entity

import (
	"context"
	"errors"
	"fmt"

	"teamdrive/internal/domain"
	"teamdrive/internal/domain/models"
	"teamdrive/internal/domain/services"
	"teamdrive/internal/service/bulk"
)

// Purge hard-deletes trashed entities. Folder ids expand into their full
// subtrees; the deletion then runs as independent batched passes over
// the entity, grant, shortcut and activity tables, followed by
// best-effort storage release. Partial progress is surfaced per id, not
// hidden behind an all-or-nothing contract.
func (s *Service) Purge(ctx context.Context, userID string, entityIDs []string, adminOverride bool) (*services.PurgeResult, error) {
	if len(entityIDs) == 0 {
		return nil, fmt.Errorf("%w: no entities to purge", domain.ErrValidation)
	}

	result := &services.PurgeResult{}

	// Authorization pass: each candidate must be trashed by this actor
	// (or the caller holds the administrator override). Failing ids are
	// reported, not silently skipped.
	var accepted []*models.Entity
	for _, id := range entityIDs {
		entity, err := s.entities.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				result.Failed = append(result.Failed, services.PurgeFailure{ID: id, Reason: "not found"})
				continue
			}
			return nil, err
		}

		if entity.State != models.StateTrashed {
			result.Failed = append(result.Failed, services.PurgeFailure{ID: id, Reason: "not trashed"})
			continue
		}
		if entity.ModifiedBy != userID && !adminOverride {
			result.Failed = append(result.Failed, services.PurgeFailure{ID: id, Reason: "trashed by another user"})
			continue
		}

		accepted = append(accepted, entity)
	}

	if len(accepted) == 0 {
		return result, nil
	}

	// Expansion pass: folders recurse, leaves do not. Trashed
	// descendants are part of the subtree being discarded.
	purgeOrder := make([]string, 0, len(accepted))
	expanded := make(map[string]string, len(accepted)) // descendant -> accepted root
	for _, entity := range accepted {
		subtree, err := s.navigator.Descendants(ctx, entity, true, true)
		if err != nil {
			result.Failed = append(result.Failed, services.PurgeFailure{ID: entity.ID, Reason: err.Error()})
			continue
		}
		for _, id := range subtree {
			if _, seen := expanded[id]; !seen {
				expanded[id] = entity.ID
				purgeOrder = append(purgeOrder, id)
			}
		}
	}

	// Content locators must be captured before the rows disappear.
	contentRefs, err := s.entities.ContentRefsByIDs(ctx, purgeOrder)
	if err != nil {
		s.logger.Warn("content ref lookup failed before purge", "error", err)
		contentRefs = map[string]string{}
	}

	deleted := s.purgeEntityRows(ctx, accepted, purgeOrder, expanded, result)

	// Referencing tables: each purge pass is its own batched run; a
	// failure in one table never blocks the others.
	s.purgeReferences(ctx, deleted)
	s.invalidateAccessCache()

	// Storage release after the transactional purge; an already-absent
	// blob counts as released. A release failure fails the requested
	// root the blob belonged to.
	storageFailed := make(map[string]string)
	for _, id := range deleted {
		ref, ok := contentRefs[id]
		if !ok {
			continue
		}
		if err := s.storage.Delete(ctx, ref); err != nil {
			s.logger.Warn("storage release failed", "entity_id", id, "path", ref, "error", err)
			if root, ok := expanded[id]; ok {
				storageFailed[root] = fmt.Sprintf("storage release failed: %v", err)
			}
		}
	}

	// Report per requested id: a root succeeded if its row is gone and
	// its subtree's storage was released.
	deletedSet := make(map[string]struct{}, len(deleted))
	for _, id := range deleted {
		deletedSet[id] = struct{}{}
	}
	for _, entity := range accepted {
		if reason, ok := storageFailed[entity.ID]; ok {
			result.Failed = append(result.Failed, services.PurgeFailure{ID: entity.ID, Reason: reason})
			continue
		}
		if _, ok := deletedSet[entity.ID]; ok {
			result.Succeeded = append(result.Succeeded, entity.ID)
		}
	}
	s.logger.Info("purge complete",
		"requested", len(entityIDs),
		"deleted", len(deleted),
		"failed", len(result.Failed),
	)

	return result, nil
}

// purgeEntityRows deletes entity rows in two batched phases. The roots
// go first through a delete that re-checks is_active = 0 at deletion
// time: a concurrently restored root is skipped and reported, and its
// subtree is left alone. Descendants of deleted roots then go
// unconditionally; they were never individually trashed.
func (s *Service) purgeEntityRows(ctx context.Context, accepted []*models.Entity, purgeOrder []string, expanded map[string]string, result *services.PurgeResult) []string {
	rootIDs := make([]string, len(accepted))
	rootSet := make(map[string]struct{}, len(accepted))
	for i, entity := range accepted {
		rootIDs[i] = entity.ID
		rootSet[entity.ID] = struct{}{}
	}

	// Removed ids from a chunk only count once its transaction commits;
	// the executor reports a chunk that rolled back as failed even when
	// the delete itself returned rows.
	type chunkOutcome struct {
		ids     []string
		removed []string
	}

	var deleted []string
	deletedRoots := make(map[string]struct{}, len(rootIDs))

	var rootChunks []chunkOutcome
	rootRun := s.batch.Execute(ctx, rootIDs, func(txCtx context.Context, chunk []string) error {
		// Re-check state inside the transaction: a root restored since
		// the authorization pass must not be deleted.
		states, err := s.entities.StatesByIDs(txCtx, chunk)
		if err != nil {
			return err
		}
		var eligible []string
		for _, id := range chunk {
			if states[id] == models.StateTrashed {
				eligible = append(eligible, id)
			}
		}
		removed, err := s.entities.DeleteByIDs(txCtx, eligible)
		if err != nil {
			return err
		}
		rootChunks = append(rootChunks, chunkOutcome{ids: chunk, removed: removed})
		return nil
	})
	for _, failure := range rootRun.Failed {
		result.Failed = append(result.Failed, services.PurgeFailure{ID: failure.ID, Reason: failure.Reason})
	}

	rootFailed := failureSet(rootRun.Failed)
	for _, chunk := range rootChunks {
		if chunkRolledBack(chunk.ids, rootFailed) {
			continue
		}
		removedSet := make(map[string]struct{}, len(chunk.removed))
		for _, id := range chunk.removed {
			deleted = append(deleted, id)
			deletedRoots[id] = struct{}{}
			removedSet[id] = struct{}{}
		}
		for _, id := range chunk.ids {
			if _, ok := removedSet[id]; !ok {
				result.Failed = append(result.Failed, services.PurgeFailure{ID: id, Reason: "no longer trashed"})
			}
		}
	}

	// Descendants whose root survived the re-check stay put.
	var descendants []string
	for _, id := range purgeOrder {
		if _, isRoot := rootSet[id]; isRoot {
			continue
		}
		if _, ok := deletedRoots[expanded[id]]; ok {
			descendants = append(descendants, id)
		}
	}

	var descChunks []chunkOutcome
	descRun := s.batch.Execute(ctx, descendants, func(txCtx context.Context, chunk []string) error {
		removed, err := s.entities.DeleteSubtreeByIDs(txCtx, chunk)
		if err != nil {
			return err
		}
		descChunks = append(descChunks, chunkOutcome{ids: chunk, removed: removed})
		return nil
	})
	for _, failure := range descRun.Failed {
		result.Failed = append(result.Failed, services.PurgeFailure{ID: failure.ID, Reason: failure.Reason})
	}

	descFailed := failureSet(descRun.Failed)
	for _, chunk := range descChunks {
		if chunkRolledBack(chunk.ids, descFailed) {
			continue
		}
		deleted = append(deleted, chunk.removed...)
	}

	return deleted
}

func failureSet(failures []bulk.Failure) map[string]struct{} {
	set := make(map[string]struct{}, len(failures))
	for _, f := range failures {
		set[f.ID] = struct{}{}
	}
	return set
}

// chunkRolledBack reports whether the executor failed this chunk. A chunk
// fails as a unit, so one member in the failure set condemns all of it.
func chunkRolledBack(ids []string, failed map[string]struct{}) bool {
	for _, id := range ids {
		if _, ok := failed[id]; ok {
			return true
		}
	}
	return false
}

// purgeReferences clears grant, shortcut and activity rows for the
// deleted ids, one batched pass per table.
func (s *Service) purgeReferences(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}

	grantRun := s.batch.Execute(ctx, ids, func(txCtx context.Context, chunk []string) error {
		return s.grants.DeleteForEntities(txCtx, chunk)
	})
	if len(grantRun.Failed) > 0 {
		s.logger.Warn("grant purge pass partially failed", "failed", len(grantRun.Failed))
	}

	shortcutRun := s.batch.Execute(ctx, ids, func(txCtx context.Context, chunk []string) error {
		return s.shortcuts.DeleteByTargets(txCtx, chunk)
	})
	if len(shortcutRun.Failed) > 0 {
		s.logger.Warn("shortcut purge pass partially failed", "failed", len(shortcutRun.Failed))
	}

	activityRun := s.batch.Execute(ctx, ids, func(txCtx context.Context, chunk []string) error {
		return s.activity.DeleteForEntities(txCtx, chunk)
	})
	if len(activityRun.Failed) > 0 {
		s.logger.Warn("activity purge pass partially failed", "failed", len(activityRun.Failed))
	}
}
