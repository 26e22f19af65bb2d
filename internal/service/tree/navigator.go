// Package tree walks the entity hierarchy: ancestor chains for layered
// permission resolution, subtree expansion for cascading mutations, and
// the descendant check behind move/copy cycle prevention.
package tree

import (
	"context"
	"fmt"
	"log/slog"

	"teamdrive/internal/config"
	"teamdrive/internal/domain"
	"teamdrive/internal/domain/models"
	"teamdrive/internal/domain/repositories"
)

// Navigator traverses the entity tree. Every walk is bounded by
// maxDepth; the tree invariant forbids cycles, but a corrupted parent
// link must surface as a validation failure, never an infinite loop.
type Navigator struct {
	entities repositories.EntityRepository
	maxDepth int
	logger   *slog.Logger
}

// NewNavigator creates a navigator with the default depth bound.
func NewNavigator(entities repositories.EntityRepository, logger *slog.Logger) *Navigator {
	return &Navigator{
		entities: entities,
		maxDepth: config.MaxTreeDepth,
		logger:   logger,
	}
}

// AncestorChain returns the entities from the root down to and including
// the given entity. Walks parent links iteratively, one fetch per level.
func (n *Navigator) AncestorChain(ctx context.Context, entity *models.Entity) ([]*models.Entity, error) {
	chain := []*models.Entity{entity}

	current := entity
	for depth := 0; current.ParentID != nil; depth++ {
		if depth >= n.maxDepth {
			return nil, fmt.Errorf("%w: ancestor chain of %s exceeds depth %d", domain.ErrValidation, entity.ID, n.maxDepth)
		}

		parent, err := n.entities.GetByID(ctx, *current.ParentID)
		if err != nil {
			return nil, fmt.Errorf("resolve ancestor of %s: %w", current.ID, err)
		}

		// Prepend so the chain reads root to leaf
		chain = append([]*models.Entity{parent}, chain...)
		current = parent
	}

	return chain, nil
}

// Descendants expands the subtree under the entity into a set of ids.
// Only active nodes are included unless includeTrashed is set.
func (n *Navigator) Descendants(ctx context.Context, entity *models.Entity, includeSelf, includeTrashed bool) ([]string, error) {
	if !entity.IsGroup {
		if includeSelf {
			return []string{entity.ID}, nil
		}
		return nil, nil
	}

	ids, err := n.entities.DescendantIDs(ctx, entity.ID, includeSelf, includeTrashed, n.maxDepth)
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// IsDescendantOf reports whether candidate sits somewhere below ancestor.
// Walks candidate's parent links upward rather than expanding ancestor's
// subtree; chains are short where subtrees can be huge.
func (n *Navigator) IsDescendantOf(ctx context.Context, candidate *models.Entity, ancestorID string) (bool, error) {
	current := candidate
	for depth := 0; current.ParentID != nil; depth++ {
		if depth >= n.maxDepth {
			return false, fmt.Errorf("%w: ancestor chain of %s exceeds depth %d", domain.ErrValidation, candidate.ID, n.maxDepth)
		}

		if *current.ParentID == ancestorID {
			return true, nil
		}

		parent, err := n.entities.GetByID(ctx, *current.ParentID)
		if err != nil {
			return false, fmt.Errorf("resolve ancestor of %s: %w", current.ID, err)
		}
		current = parent
	}

	return false, nil
}
