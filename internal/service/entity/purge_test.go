package entity

import (
	"context"
	"errors"
	"strings"
	"testing"

	"teamdrive/internal/domain"
	"teamdrive/internal/domain/models"
	"teamdrive/internal/domain/repositories"
)

// grantWrite gives a user an explicit read+write grant on one entity.
func grantWrite(t *testing.T, f *fixture, entityID, userID string) {
	t.Helper()
	g := &models.Grant{
		EntityID: entityID,
		Subject:  models.UserSubject(userID),
		Flags:    models.Flags{Read: boolPtr(true), Write: boolPtr(true)},
	}
	if err := f.grants.Upsert(context.Background(), g); err != nil {
		t.Fatal(err)
	}
}

func TestPurgeRejectsEmptyInput(t *testing.T) {
	f := newFixture(t, 500)
	f.seedTree()

	_, err := f.svc.Purge(context.Background(), "alice", nil, false)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty purge = %v, want ErrValidation", err)
	}
}

func TestPurgeAuthorizationPerID(t *testing.T) {
	f := newFixture(t, 500)
	f.seedTree()
	ctx := context.Background()

	// doc-1 trashed by alice, doc-3 trashed by bob, folder-b still active.
	grantWrite(t, f, "doc-3", "bob")
	if err := f.svc.Trash(ctx, "alice", "doc-1"); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Trash(ctx, "bob", "doc-3"); err != nil {
		t.Fatal(err)
	}

	result, err := f.svc.Purge(ctx, "alice", []string{"doc-1", "doc-3", "folder-b", "ghost"}, false)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}

	if len(result.Succeeded) != 1 || result.Succeeded[0] != "doc-1" {
		t.Errorf("succeeded = %v, want [doc-1]", result.Succeeded)
	}

	reasons := make(map[string]string)
	for _, fail := range result.Failed {
		reasons[fail.ID] = fail.Reason
	}
	if reasons["doc-3"] != "trashed by another user" {
		t.Errorf("doc-3 reason = %q, want trashed by another user", reasons["doc-3"])
	}
	if reasons["folder-b"] != "not trashed" {
		t.Errorf("folder-b reason = %q, want not trashed", reasons["folder-b"])
	}
	if reasons["ghost"] != "not found" {
		t.Errorf("ghost reason = %q, want not found", reasons["ghost"])
	}

	// The authorized id really is gone.
	if _, err := f.entities.GetByID(ctx, "doc-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("doc-1 still exists after purge: %v", err)
	}
}

func TestPurgeAdminOverrideSkipsActorCheck(t *testing.T) {
	f := newFixture(t, 500)
	f.seedTree()
	ctx := context.Background()

	grantWrite(t, f, "doc-3", "bob")
	if err := f.svc.Trash(ctx, "bob", "doc-3"); err != nil {
		t.Fatal(err)
	}

	result, err := f.svc.Purge(ctx, "alice", []string{"doc-3"}, true)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if len(result.Succeeded) != 1 {
		t.Errorf("admin override purge = %+v, want success", result)
	}
}

func TestPurgeExpandsFolderSubtrees(t *testing.T) {
	f := newFixture(t, 500)
	f.seedTree()
	ctx := context.Background()

	if err := f.svc.Trash(ctx, "alice", "folder-a"); err != nil {
		t.Fatal(err)
	}

	result, err := f.svc.Purge(ctx, "alice", []string{"folder-a"}, false)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if len(result.Succeeded) != 1 || result.Succeeded[0] != "folder-a" {
		t.Fatalf("result = %+v, want folder-a purged", result)
	}

	// Root and all descendants are gone, trashed or not.
	for _, id := range []string{"folder-a", "doc-1", "folder-b", "doc-2"} {
		if _, err := f.entities.GetByID(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("%s still exists after subtree purge", id)
		}
	}

	// Backing blobs released.
	released := strings.Join(f.blobs.deleted, ",")
	if !strings.Contains(released, "blob-1") || !strings.Contains(released, "blob-2") {
		t.Errorf("released blobs = %v, want blob-1 and blob-2", f.blobs.deleted)
	}

	// Reference tables cleared for the purged ids.
	if len(f.shortcuts.deletedTargets) == 0 {
		t.Error("shortcut purge pass never ran")
	}
	if len(f.activity.deleted) == 0 {
		t.Error("activity purge pass never ran")
	}
}

func TestPurgeStorageFailureFailsThatRoot(t *testing.T) {
	f := newFixture(t, 500)
	f.seedTree()
	ctx := context.Background()

	if err := f.svc.Trash(ctx, "alice", "doc-1"); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Trash(ctx, "alice", "doc-3"); err != nil {
		t.Fatal(err)
	}
	f.blobs.failDelete["blob-1"] = true

	result, err := f.svc.Purge(ctx, "alice", []string{"doc-1", "doc-3"}, false)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}

	if len(result.Succeeded) != 1 || result.Succeeded[0] != "doc-3" {
		t.Errorf("succeeded = %v, want [doc-3]", result.Succeeded)
	}
	if len(result.Failed) != 1 || result.Failed[0].ID != "doc-1" {
		t.Fatalf("failed = %+v, want doc-1", result.Failed)
	}
	if !strings.Contains(result.Failed[0].Reason, "storage release failed") {
		t.Errorf("reason = %q, want a storage release failure", result.Failed[0].Reason)
	}
}

func TestPurgeLeavesRestoredRootAndSubtreeAlone(t *testing.T) {
	f := newFixture(t, 500)
	f.seedTree()
	ctx := context.Background()

	if err := f.svc.Trash(ctx, "alice", "folder-a"); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Restore(ctx, "alice", "folder-a"); err != nil {
		t.Fatal(err)
	}

	result, err := f.svc.Purge(ctx, "alice", []string{"folder-a"}, false)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}

	if len(result.Succeeded) != 0 {
		t.Errorf("succeeded = %v, want none", result.Succeeded)
	}
	if len(result.Failed) != 1 || result.Failed[0].Reason != "not trashed" {
		t.Errorf("failed = %+v, want a single not-trashed entry", result.Failed)
	}
	for _, id := range []string{"folder-a", "doc-1", "folder-b", "doc-2"} {
		if _, err := f.entities.GetByID(ctx, id); err != nil {
			t.Errorf("%s should survive a rejected purge: %v", id, err)
		}
	}
}

// commitFailTx runs the function, then fails as if the commit broke.
type commitFailTx struct{}

func (commitFailTx) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if err := fn(ctx); err != nil {
		return err
	}
	return errors.New("commit failed")
}

func TestPurgeChunkCommitFailureIsNotSuccess(t *testing.T) {
	f := newFixtureWithTx(t, 500, commitFailTx{})
	f.seedTree()
	ctx := context.Background()

	if err := f.svc.Trash(ctx, "alice", "doc-1"); err != nil {
		t.Fatal(err)
	}

	result, err := f.svc.Purge(ctx, "alice", []string{"doc-1"}, false)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}

	if len(result.Succeeded) != 0 {
		t.Errorf("succeeded = %v, want none when the chunk commit fails", result.Succeeded)
	}
	var reported bool
	for _, fail := range result.Failed {
		if fail.ID == "doc-1" {
			reported = true
		}
	}
	if !reported {
		t.Errorf("failed = %+v, want doc-1 reported", result.Failed)
	}

	// No storage release for rows whose deletion never committed.
	if len(f.blobs.deleted) != 0 {
		t.Errorf("blobs released %v despite failed commit", f.blobs.deleted)
	}
}
