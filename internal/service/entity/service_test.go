package entity

import (
	"context"
	"errors"
	"testing"

	"teamdrive/internal/domain"
	"teamdrive/internal/domain/models"
)

func TestTrashRequiresWriteAccess(t *testing.T) {
	f := newFixture(t, 500)
	f.seedTree()

	// carol is a guest: read/comment/share by team default, no write.
	err := f.svc.Trash(context.Background(), "carol", "doc-3")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("guest trash error = %v, want ErrForbidden", err)
	}

	e, _ := f.entities.GetByID(context.Background(), "doc-3")
	if e.State != models.StateActive {
		t.Errorf("doc-3 state = %d, want still active", e.State)
	}
}

func TestTrashMarksEntityAndRollsUpSize(t *testing.T) {
	f := newFixture(t, 500)
	f.seedTree()
	ctx := context.Background()

	before, _ := f.entities.GetByID(ctx, "folder-a")

	if err := f.svc.Trash(ctx, "alice", "doc-1"); err != nil {
		t.Fatalf("Trash: %v", err)
	}

	e, _ := f.entities.GetByID(ctx, "doc-1")
	if e.State != models.StateTrashed {
		t.Errorf("doc-1 state = %d, want trashed", e.State)
	}
	if e.ModifiedBy != "alice" {
		t.Errorf("doc-1 modified_by = %s, want the trashing actor", e.ModifiedBy)
	}

	parent, _ := f.entities.GetByID(ctx, "folder-a")
	if parent.Size != before.Size-100 {
		t.Errorf("parent size = %d, want %d", parent.Size, before.Size-100)
	}

	// A trashed child no longer shows up among active children.
	children, _ := f.entities.ListChildren(ctx, "folder-a")
	for _, c := range children {
		if c.ID == "doc-1" {
			t.Error("trashed doc-1 still listed as an active child")
		}
	}
}

func TestTrashRejectsNonActive(t *testing.T) {
	f := newFixture(t, 500)
	f.seedTree()
	ctx := context.Background()

	if err := f.svc.Trash(ctx, "alice", "doc-1"); err != nil {
		t.Fatalf("first trash: %v", err)
	}

	err := f.svc.Trash(ctx, "alice", "doc-1")
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("double trash error = %v, want ErrValidation", err)
	}
}

func TestRestoreOnlyByTrashingActor(t *testing.T) {
	f := newFixture(t, 500)
	f.seedTree()
	ctx := context.Background()

	if err := f.svc.Trash(ctx, "bob", "folder-a"); err != nil {
		t.Fatalf("Trash: %v", err)
	}

	err := f.svc.Restore(ctx, "alice", "folder-a")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("restore by another user = %v, want ErrForbidden", err)
	}

	if err := f.svc.Restore(ctx, "bob", "folder-a"); err != nil {
		t.Fatalf("restore by trashing actor: %v", err)
	}

	e, _ := f.entities.GetByID(ctx, "folder-a")
	if e.State != models.StateActive {
		t.Errorf("folder-a state = %d, want active after restore", e.State)
	}
}

func TestRestoreRejectsActiveEntity(t *testing.T) {
	f := newFixture(t, 500)
	f.seedTree()

	err := f.svc.Restore(context.Background(), "alice", "doc-3")
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("restore of active entity = %v, want ErrValidation", err)
	}
}

func TestTrashRecordsActivity(t *testing.T) {
	f := newFixture(t, 500)
	f.seedTree()

	if err := f.svc.Trash(context.Background(), "alice", "doc-3"); err != nil {
		t.Fatalf("Trash: %v", err)
	}

	found := false
	for _, a := range f.activity.actions {
		if a == "trash:doc-3" {
			found = true
		}
	}
	if !found {
		t.Errorf("activity log %v missing trash entry for doc-3", f.activity.actions)
	}
}
