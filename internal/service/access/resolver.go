// Package access computes effective permissions for (user, entity).
// The core is Resolve, a pure function of the entity, its ancestor
// chain, the grants on that chain, and the user's team membership; the
// Resolver service fetches those inputs and delegates.
package access

import (
	"context"
	"log/slog"
	"time"

	"teamdrive/internal/domain/models"
	"teamdrive/internal/domain/repositories"
	"teamdrive/internal/domain/services"
	"teamdrive/internal/service/tree"
)

// Resolve computes the effective access of userID on entity.
//
// Layering, in order:
//  1. Ownership is absolute: the owner gets full access no grant can
//     revoke.
//  2. Team default: a member of the entity's team gets read/comment/share
//     on non-private entities; write only for folders at member level and
//     above, or anything at admin level.
//  3. Explicit grants: for each of the subjects (the user, the public
//     sentinel, and the team sentinel when the user is on the team) the
//     ancestor chain is folded root to leaf; a grant closer to the
//     entity overrides one further up field by field, unset fields stay
//     untouched. Expired grants contribute nothing.
//
// The final flags are the OR of the team seed and the three fold
// results. Absence of access is all-zero flags, never an error.
func Resolve(entity *models.Entity, chain []*models.Entity, grants map[string][]models.Grant, membership *models.Membership, userID string, now time.Time) models.Access {
	// Ownership short-circuit
	if entity.OwnerID == userID {
		return models.FullAccess(models.AccessTypeOwner)
	}

	result := models.Access{Type: models.AccessTypeGuest}

	onTeam := membership != nil && membership.TeamID == entity.TeamID

	// Team default seed
	if onTeam && !entity.IsPrivate {
		seed := models.Access{
			Read:    true,
			Comment: true,
			Share:   true,
			Type:    membership.Level.AccessType(),
		}
		seed.Write = (entity.IsGroup && membership.Level >= models.LevelMember) ||
			membership.Level == models.LevelAdmin
		result.Merge(seed)
		result.Type = seed.Type
	}

	// Explicit grant folds
	subjects := []models.Subject{
		models.UserSubject(userID),
		models.PublicSubject(),
	}
	if onTeam {
		subjects = append(subjects, models.TeamSubject())
	}

	for _, subject := range subjects {
		result.Merge(foldChain(chain, grants, subject, now))
	}

	return result
}

// foldChain walks the chain root to leaf, overlaying each non-expired
// grant for the subject field by field. The accumulator's state at the
// entity itself is the subject's resolved explicit access.
func foldChain(chain []*models.Entity, grants map[string][]models.Grant, subject models.Subject, now time.Time) models.Access {
	var acc models.Flags

	for _, node := range chain {
		for i := range grants[node.ID] {
			grant := &grants[node.ID][i]
			if grant.Subject != subject || grant.Expired(now) {
				continue
			}
			overlay(&acc, grant.Flags)
		}
	}

	return models.Access{
		Read:    isSet(acc.Read),
		Write:   isSet(acc.Write),
		Comment: isSet(acc.Comment),
		Share:   isSet(acc.Share),
		Type:    models.AccessTypeGuest,
	}
}

// overlay copies every field the layer explicitly sets; unset fields are
// left untouched, not zeroed.
func overlay(acc *models.Flags, layer models.Flags) {
	if layer.Read != nil {
		acc.Read = layer.Read
	}
	if layer.Write != nil {
		acc.Write = layer.Write
	}
	if layer.Comment != nil {
		acc.Comment = layer.Comment
	}
	if layer.Share != nil {
		acc.Share = layer.Share
	}
}

func isSet(b *bool) bool {
	return b != nil && *b
}

// Resolver implements services.AccessResolver on top of the repositories.
type Resolver struct {
	entities  repositories.EntityRepository
	grantRepo repositories.GrantRepository
	teams     repositories.TeamRepository
	navigator *tree.Navigator
	logger    *slog.Logger
}

// NewResolver creates an access resolver.
func NewResolver(
	entities repositories.EntityRepository,
	grantRepo repositories.GrantRepository,
	teams repositories.TeamRepository,
	navigator *tree.Navigator,
	logger *slog.Logger,
) *Resolver {
	return &Resolver{
		entities:  entities,
		grantRepo: grantRepo,
		teams:     teams,
		navigator: navigator,
		logger:    logger,
	}
}

// ResolveAccess fetches the resolution inputs and computes access.
func (r *Resolver) ResolveAccess(ctx context.Context, entityID, userID string) (models.Access, error) {
	entity, err := r.entities.GetByID(ctx, entityID)
	if err != nil {
		return models.Access{}, err
	}
	return r.ResolveForEntity(ctx, entity, userID)
}

// ResolveForEntity resolves access for an already-loaded entity, saving
// a fetch on hot mutation paths.
func (r *Resolver) ResolveForEntity(ctx context.Context, entity *models.Entity, userID string) (models.Access, error) {
	chain, err := r.navigator.AncestorChain(ctx, entity)
	if err != nil {
		return models.Access{}, err
	}

	chainIDs := make([]string, len(chain))
	for i, node := range chain {
		chainIDs[i] = node.ID
	}

	grants, err := r.grantRepo.ForEntities(ctx, chainIDs)
	if err != nil {
		return models.Access{}, err
	}

	memberships, err := r.teams.MembershipsForUser(ctx, userID)
	if err != nil {
		return models.Access{}, err
	}
	var membership *models.Membership
	for i := range memberships {
		if memberships[i].TeamID == entity.TeamID {
			membership = &memberships[i]
			break
		}
	}

	return Resolve(entity, chain, grants, membership, userID, time.Now()), nil
}

var _ services.AccessResolver = (*Resolver)(nil)
