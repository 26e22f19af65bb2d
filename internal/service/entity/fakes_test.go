package entity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"teamdrive/internal/domain"
	"teamdrive/internal/domain/models"
	"teamdrive/internal/domain/repositories"
	"teamdrive/internal/service/access"
	"teamdrive/internal/service/bulk"
	"teamdrive/internal/service/tree"
)

// In-memory repository fakes. They honor the same contracts as the
// postgres implementations: optimistic update guards, trashed-only
// deletion, subtree expansion, and grant rows keyed by (entity, subject).

type fakeEntityStore struct {
	mu       sync.Mutex
	entities map[string]*models.Entity
}

func newFakeEntityStore() *fakeEntityStore {
	return &fakeEntityStore{entities: make(map[string]*models.Entity)}
}

func (f *fakeEntityStore) add(e *models.Entity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *e
	f.entities[e.ID] = &c
}

func (f *fakeEntityStore) Create(_ context.Context, e *models.Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entities[e.ID]; ok {
		return &domain.ConflictError{Message: "duplicate id", ResourceType: "entity", ResourceID: e.ID}
	}
	c := *e
	f.entities[e.ID] = &c
	return nil
}

func (f *fakeEntityStore) GetByID(_ context.Context, id string) (*models.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %s: %w", id, domain.ErrNotFound)
	}
	c := *e
	return &c, nil
}

func (f *fakeEntityStore) Update(_ context.Context, e *models.Entity, expectedModifiedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.entities[e.ID]
	if !ok {
		return fmt.Errorf("entity %s: %w", e.ID, domain.ErrNotFound)
	}
	if !stored.ModifiedAt.Equal(expectedModifiedAt) {
		return fmt.Errorf("entity %s: %w", e.ID, domain.ErrConflict)
	}
	c := *e
	f.entities[e.ID] = &c
	return nil
}

func (f *fakeEntityStore) UpdateFields(_ context.Context, e *models.Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entities[e.ID]; !ok {
		return fmt.Errorf("entity %s: %w", e.ID, domain.ErrNotFound)
	}
	c := *e
	f.entities[e.ID] = &c
	return nil
}

func (f *fakeEntityStore) ListChildren(_ context.Context, parentID string) ([]models.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Entity
	for _, e := range f.entities {
		if e.ParentID != nil && *e.ParentID == parentID && e.State == models.StateActive {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEntityStore) DescendantIDs(_ context.Context, rootID string, includeSelf, includeTrashed bool, maxDepth int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []string
	if includeSelf {
		ids = append(ids, rootID)
	}

	frontier := []string{rootID}
	for depth := 0; len(frontier) > 0 && depth < maxDepth; depth++ {
		var next []string
		for _, parentID := range frontier {
			for _, e := range f.entities {
				if e.ParentID == nil || *e.ParentID != parentID {
					continue
				}
				if e.State == models.StateTrashed && !includeTrashed {
					continue
				}
				ids = append(ids, e.ID)
				next = append(next, e.ID)
			}
		}
		frontier = next
	}
	sort.Strings(ids[boolToInt(includeSelf):])
	return ids, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (f *fakeEntityStore) StatesByIDs(_ context.Context, ids []string) (map[string]models.EntityState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]models.EntityState)
	for _, id := range ids {
		if e, ok := f.entities[id]; ok {
			out[id] = e.State
		}
	}
	return out, nil
}

func (f *fakeEntityStore) ContentRefsByIDs(_ context.Context, ids []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for _, id := range ids {
		if e, ok := f.entities[id]; ok && e.ContentRef != "" {
			out[id] = e.ContentRef
		}
	}
	return out, nil
}

func (f *fakeEntityStore) SetTeamByIDs(_ context.Context, ids []string, teamID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if e, ok := f.entities[id]; ok {
			e.TeamID = teamID
		}
	}
	return nil
}

func (f *fakeEntityStore) DeleteByIDs(_ context.Context, ids []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed []string
	for _, id := range ids {
		e, ok := f.entities[id]
		if !ok || e.State != models.StateTrashed {
			continue
		}
		delete(f.entities, id)
		removed = append(removed, id)
	}
	return removed, nil
}

func (f *fakeEntityStore) DeleteSubtreeByIDs(_ context.Context, ids []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed []string
	for _, id := range ids {
		if _, ok := f.entities[id]; !ok {
			continue
		}
		delete(f.entities, id)
		removed = append(removed, id)
	}
	return removed, nil
}

func (f *fakeEntityStore) AdjustSize(_ context.Context, id string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entities[id]
	if !ok {
		return fmt.Errorf("entity %s: %w", id, domain.ErrNotFound)
	}
	e.Size += delta
	return nil
}

func (f *fakeEntityStore) TeamRoot(_ context.Context, teamID string) (*models.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entities {
		if e.ParentID == nil && !e.IsPrivate && e.TeamID == teamID {
			c := *e
			return &c, nil
		}
	}
	return nil, fmt.Errorf("team root of %s: %w", teamID, domain.ErrNotFound)
}

func (f *fakeEntityStore) PersonalRoot(_ context.Context, userID string) (*models.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entities {
		if e.ParentID == nil && e.IsPrivate && e.OwnerID == userID {
			c := *e
			return &c, nil
		}
	}
	return nil, fmt.Errorf("personal root of %s: %w", userID, domain.ErrNotFound)
}

type grantKey struct {
	entityID string
	subject  string
}

type fakeGrantStore struct {
	mu     sync.Mutex
	grants map[grantKey]models.Grant

	updateChunks [][]string
	insertChunks [][]string
}

func newFakeGrantStore() *fakeGrantStore {
	return &fakeGrantStore{grants: make(map[grantKey]models.Grant)}
}

func (f *fakeGrantStore) key(entityID string, subject models.Subject) grantKey {
	return grantKey{entityID: entityID, subject: subject.Encode()}
}

func (f *fakeGrantStore) Get(_ context.Context, entityID string, subject models.Subject) (*models.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.grants[f.key(entityID, subject)]
	if !ok {
		return nil, fmt.Errorf("grant on %s: %w", entityID, domain.ErrNotFound)
	}
	c := g
	return &c, nil
}

func (f *fakeGrantStore) Upsert(_ context.Context, grant *models.Grant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants[f.key(grant.EntityID, grant.Subject)] = *grant
	return nil
}

func (f *fakeGrantStore) Delete(_ context.Context, entityID string, subject models.Subject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.grants, f.key(entityID, subject))
	return nil
}

func (f *fakeGrantStore) ForEntities(_ context.Context, entityIDs []string) (map[string][]models.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]models.Grant)
	for _, id := range entityIDs {
		for k, g := range f.grants {
			if k.entityID == id {
				out[id] = append(out[id], g)
			}
		}
	}
	return out, nil
}

func (f *fakeGrantStore) EntitiesWithGrant(_ context.Context, entityIDs []string, subject models.Subject) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, id := range entityIDs {
		if _, ok := f.grants[f.key(id, subject)]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeGrantStore) UpdateForEntities(_ context.Context, entityIDs []string, subject models.Subject, flags models.Flags, validUntil *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateChunks = append(f.updateChunks, entityIDs)
	for _, id := range entityIDs {
		f.grants[f.key(id, subject)] = models.Grant{EntityID: id, Subject: subject, Flags: flags, ValidUntil: validUntil}
	}
	return nil
}

func (f *fakeGrantStore) InsertForEntities(_ context.Context, entityIDs []string, subject models.Subject, flags models.Flags, validUntil *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertChunks = append(f.insertChunks, entityIDs)
	for _, id := range entityIDs {
		f.grants[f.key(id, subject)] = models.Grant{EntityID: id, Subject: subject, Flags: flags, ValidUntil: validUntil}
	}
	return nil
}

func (f *fakeGrantStore) DeleteForEntities(_ context.Context, entityIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range entityIDs {
		for k := range f.grants {
			if k.entityID == id {
				delete(f.grants, k)
			}
		}
	}
	return nil
}

func (f *fakeGrantStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.grants)
}

type fakeTeamStore struct {
	memberships []models.Membership
}

func (f *fakeTeamStore) Membership(_ context.Context, teamID, userID string) (*models.Membership, error) {
	for _, m := range f.memberships {
		if m.TeamID == teamID && m.UserID == userID {
			c := m
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeTeamStore) MembershipsForUser(_ context.Context, userID string) ([]models.Membership, error) {
	var out []models.Membership
	for _, m := range f.memberships {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeShortcutStore struct {
	deletedTargets []string
}

func (f *fakeShortcutStore) Create(_ context.Context, _ *models.Shortcut) error { return nil }
func (f *fakeShortcutStore) GetByID(_ context.Context, id string) (*models.Shortcut, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeShortcutStore) Delete(_ context.Context, _ string) error { return nil }
func (f *fakeShortcutStore) DeleteByTargets(_ context.Context, targetIDs []string) error {
	f.deletedTargets = append(f.deletedTargets, targetIDs...)
	return nil
}

type fakeActivityStore struct {
	actions []string
	deleted []string
}

func (f *fakeActivityStore) Insert(_ context.Context, entityID, userID, action string) error {
	f.actions = append(f.actions, action+":"+entityID)
	return nil
}

func (f *fakeActivityStore) DeleteForEntities(_ context.Context, entityIDs []string) error {
	f.deleted = append(f.deleted, entityIDs...)
	return nil
}

type fakeBlobStore struct {
	mu         sync.Mutex
	duplicated []string
	deleted    []string
	failDelete map[string]bool
}

func (f *fakeBlobStore) Get(_ context.Context, _ string) ([]byte, error) { return nil, nil }
func (f *fakeBlobStore) Put(_ context.Context, path string, _ []byte) (string, error) {
	return path, nil
}

func (f *fakeBlobStore) Duplicate(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	newPath := "copy-of-" + path
	f.duplicated = append(f.duplicated, path)
	return newPath, nil
}

func (f *fakeBlobStore) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete[path] {
		return fmt.Errorf("release %s: %w", path, domain.ErrStorage)
	}
	f.deleted = append(f.deleted, path)
	return nil
}

type fakeNotifier struct {
	thumbnails []string
	events     []string // "targetUser/kind"
}

func (f *fakeNotifier) Notify(targetUser, eventKind string, _ map[string]string) {
	f.events = append(f.events, targetUser+"/"+eventKind)
}
func (f *fakeNotifier) RequestThumbnail(entityID, _ string) {
	f.thumbnails = append(f.thumbnails, entityID)
}

type fakeSessionRegistry struct {
	invalidated []string // "entityID/subject"
}

func (f *fakeSessionRegistry) InvalidateWriteAccess(_ context.Context, entityID, subject string) {
	f.invalidated = append(f.invalidated, entityID+"/"+subject)
}

type passthroughTx struct{}

func (passthroughTx) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return fn(ctx)
}

var _ repositories.TransactionManager = passthroughTx{}

// fixture bundles a service wired to fakes plus the fakes themselves.
type fixture struct {
	svc       *Service
	entities  *fakeEntityStore
	grants    *fakeGrantStore
	teams     *fakeTeamStore
	shortcuts *fakeShortcutStore
	activity  *fakeActivityStore
	blobs     *fakeBlobStore
	notifier  *fakeNotifier
	sessions  *fakeSessionRegistry
}

func newFixture(t *testing.T, batchSize int) *fixture {
	return newFixtureWithTx(t, batchSize, passthroughTx{})
}

func newFixtureWithTx(t *testing.T, batchSize int, tx repositories.TransactionManager) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	f := &fixture{
		entities:  newFakeEntityStore(),
		grants:    newFakeGrantStore(),
		teams:     &fakeTeamStore{},
		shortcuts: &fakeShortcutStore{},
		activity:  &fakeActivityStore{},
		blobs:     &fakeBlobStore{failDelete: make(map[string]bool)},
		notifier:  &fakeNotifier{},
		sessions:  &fakeSessionRegistry{},
	}

	navigator := tree.NewNavigator(f.entities, logger)
	resolver := access.NewResolver(f.entities, f.grants, f.teams, navigator, logger)
	batch := bulk.NewExecutorWithBatchSize(tx, batchSize, logger)

	f.svc = NewService(
		f.entities,
		f.grants,
		f.teams,
		f.shortcuts,
		f.activity,
		navigator,
		resolver,
		batch,
		f.blobs,
		f.notifier,
		f.sessions,
		nil,
		logger,
	)
	return f
}

// seedTree builds the standard fixture tree:
//
//	team-root (team-1, owned by alice, folder)
//	  folder-a
//	    doc-1 (blob blob-1)
//	    folder-b
//	      doc-2 (blob blob-2)
//	  doc-3
//	home-bob (private root of bob)
func (f *fixture) seedTree() {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rootID, aID, bID := "team-root", "folder-a", "folder-b"

	base := func(id, title string, parent *string, group bool) *models.Entity {
		return &models.Entity{
			ID: id, Title: title, ParentID: parent, TeamID: "team-1",
			OwnerID: "alice", IsGroup: group, State: models.StateActive,
			ModifiedBy: "alice", ModifiedAt: now, CreatedAt: now,
		}
	}

	f.entities.add(base(rootID, "Team Root", nil, true))
	f.entities.add(base(aID, "Folder A", &rootID, true))
	d1 := base("doc-1", "Doc 1", &aID, false)
	d1.ContentRef = "blob-1"
	d1.Size = 100
	f.entities.add(d1)
	f.entities.add(base(bID, "Folder B", &aID, true))
	d2 := base("doc-2", "Doc 2", &bID, false)
	d2.ContentRef = "blob-2"
	f.entities.add(d2)
	f.entities.add(base("doc-3", "Doc 3", &rootID, false))

	home := base("home-bob", "Home", nil, true)
	home.OwnerID = "bob"
	home.IsPrivate = true
	f.entities.add(home)

	f.teams.memberships = []models.Membership{
		{TeamID: "team-1", UserID: "alice", Level: models.LevelAdmin},
		{TeamID: "team-1", UserID: "bob", Level: models.LevelMember},
		{TeamID: "team-1", UserID: "carol", Level: models.LevelGuest},
		{TeamID: "team-2", UserID: "alice", Level: models.LevelAdmin},
	}
}
