package access

import (
	"testing"
	"time"

	"teamdrive/internal/domain/models"
)

func boolPtr(v bool) *bool { return &v }

func folder(id, teamID, ownerID string, parentID *string) *models.Entity {
	return &models.Entity{
		ID:       id,
		Title:    id,
		ParentID: parentID,
		TeamID:   teamID,
		OwnerID:  ownerID,
		IsGroup:  true,
		State:    models.StateActive,
	}
}

func file(id, teamID, ownerID string, parentID *string) *models.Entity {
	e := folder(id, teamID, ownerID, parentID)
	e.IsGroup = false
	return e
}

func TestResolveOwnerShortCircuit(t *testing.T) {
	root := folder("root", "team-1", "alice", nil)
	now := time.Now()

	// A deny-everything grant on the entity itself must not matter.
	grants := map[string][]models.Grant{
		"root": {{
			EntityID: "root",
			Subject:  models.UserSubject("alice"),
			Flags:    models.FullFlags(false),
		}},
	}

	got := Resolve(root, []*models.Entity{root}, grants, nil, "alice", now)

	want := models.FullAccess(models.AccessTypeOwner)
	if got != want {
		t.Errorf("owner access = %+v, want %+v", got, want)
	}
}

func TestResolveNoAccessIsZeroFlags(t *testing.T) {
	root := folder("root", "team-1", "alice", nil)
	now := time.Now()

	got := Resolve(root, []*models.Entity{root}, nil, nil, "mallory", now)

	if got.Read || got.Write || got.Comment || got.Share {
		t.Errorf("stranger access = %+v, want all-zero flags", got)
	}
	if got.Type != models.AccessTypeGuest {
		t.Errorf("stranger access type = %q, want guest", got.Type)
	}
}

func TestResolveTeamDefaults(t *testing.T) {
	rootID := "root"
	root := folder(rootID, "team-1", "alice", nil)

	tests := []struct {
		name      string
		entity    *models.Entity
		level     models.AccessLevel
		wantWrite bool
		wantType  models.AccessType
	}{
		{
			name:      "member on folder gets write",
			entity:    folder("f", "team-1", "alice", &rootID),
			level:     models.LevelMember,
			wantWrite: true,
			wantType:  models.AccessTypeMember,
		},
		{
			name:      "member on file does not get write",
			entity:    file("d", "team-1", "alice", &rootID),
			level:     models.LevelMember,
			wantWrite: false,
			wantType:  models.AccessTypeMember,
		},
		{
			name:      "admin on file gets write",
			entity:    file("d", "team-1", "alice", &rootID),
			level:     models.LevelAdmin,
			wantWrite: true,
			wantType:  models.AccessTypeAdmin,
		},
		{
			name:      "guest level never gets write",
			entity:    folder("f", "team-1", "alice", &rootID),
			level:     models.LevelGuest,
			wantWrite: false,
			wantType:  models.AccessTypeGuest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			membership := &models.Membership{TeamID: "team-1", UserID: "bob", Level: tt.level}
			chain := []*models.Entity{root, tt.entity}

			got := Resolve(tt.entity, chain, nil, membership, "bob", time.Now())

			if !got.Read || !got.Comment || !got.Share {
				t.Errorf("team default read/comment/share = %v/%v/%v, want all true",
					got.Read, got.Comment, got.Share)
			}
			if got.Write != tt.wantWrite {
				t.Errorf("write = %v, want %v", got.Write, tt.wantWrite)
			}
			if got.Type != tt.wantType {
				t.Errorf("type = %q, want %q", got.Type, tt.wantType)
			}
		})
	}
}

func TestResolvePrivateEntitySkipsTeamDefault(t *testing.T) {
	private := folder("p", "team-1", "alice", nil)
	private.IsPrivate = true
	membership := &models.Membership{TeamID: "team-1", UserID: "bob", Level: models.LevelAdmin}

	got := Resolve(private, []*models.Entity{private}, nil, membership, "bob", time.Now())

	if got.Read || got.Write || got.Comment || got.Share {
		t.Errorf("admin on private entity = %+v, want all-zero flags", got)
	}
}

func TestResolveAncestorGrantApplies(t *testing.T) {
	rootID := "root"
	root := folder(rootID, "team-1", "alice", nil)
	leaf := file("leaf", "team-1", "alice", &rootID)

	grants := map[string][]models.Grant{
		"root": {{
			EntityID: "root",
			Subject:  models.UserSubject("carol"),
			Flags:    models.Flags{Read: boolPtr(true), Comment: boolPtr(true)},
		}},
	}

	got := Resolve(leaf, []*models.Entity{root, leaf}, grants, nil, "carol", time.Now())

	if !got.Read || !got.Comment {
		t.Errorf("inherited grant = %+v, want read and comment", got)
	}
	if got.Write || got.Share {
		t.Errorf("inherited grant = %+v, want write and share unset", got)
	}
}

func TestResolveCloserGrantOverridesFieldByField(t *testing.T) {
	rootID := "root"
	midID := "mid"
	root := folder(rootID, "team-1", "alice", nil)
	mid := folder(midID, "team-1", "alice", &rootID)
	leaf := file("leaf", "team-1", "alice", &midID)

	// Root grants read+write; the closer grant withdraws write only.
	// Read comes from the root layer untouched.
	grants := map[string][]models.Grant{
		"root": {{
			EntityID: "root",
			Subject:  models.UserSubject("carol"),
			Flags:    models.Flags{Read: boolPtr(true), Write: boolPtr(true)},
		}},
		"mid": {{
			EntityID: "mid",
			Subject:  models.UserSubject("carol"),
			Flags:    models.Flags{Write: boolPtr(false)},
		}},
	}

	got := Resolve(leaf, []*models.Entity{root, mid, leaf}, grants, nil, "carol", time.Now())

	if !got.Read {
		t.Error("read should survive the closer overlay")
	}
	if got.Write {
		t.Error("write withdrawn by the closer grant should be false")
	}
}

func TestResolveExpiredGrantContributesNothing(t *testing.T) {
	root := folder("root", "team-1", "alice", nil)
	now := time.Now()
	past := now.Add(-time.Hour)

	grants := map[string][]models.Grant{
		"root": {{
			EntityID:   "root",
			Subject:    models.UserSubject("carol"),
			Flags:      models.FullFlags(true),
			ValidUntil: &past,
		}},
	}

	got := Resolve(root, []*models.Entity{root}, grants, nil, "carol", now)

	if got.Read || got.Write || got.Comment || got.Share {
		t.Errorf("expired grant resolved to %+v, want all-zero flags", got)
	}
}

func TestResolveSubjectFoldsMerge(t *testing.T) {
	root := folder("root", "team-1", "alice", nil)
	root.IsPrivate = true // suppress the team seed so only grants speak
	membership := &models.Membership{TeamID: "team-1", UserID: "bob", Level: models.LevelMember}

	grants := map[string][]models.Grant{
		"root": {
			{
				EntityID: "root",
				Subject:  models.PublicSubject(),
				Flags:    models.Flags{Read: boolPtr(true)},
			},
			{
				EntityID: "root",
				Subject:  models.TeamSubject(),
				Flags:    models.Flags{Comment: boolPtr(true)},
			},
			{
				EntityID: "root",
				Subject:  models.UserSubject("bob"),
				Flags:    models.Flags{Write: boolPtr(true)},
			},
		},
	}

	got := Resolve(root, []*models.Entity{root}, grants, membership, "bob", time.Now())

	if !got.Read || !got.Write || !got.Comment {
		t.Errorf("merged folds = %+v, want read, write, comment", got)
	}
	if got.Share {
		t.Errorf("merged folds = %+v, want share unset", got)
	}
}

func TestResolveTeamSentinelRequiresMembership(t *testing.T) {
	root := folder("root", "team-1", "alice", nil)

	grants := map[string][]models.Grant{
		"root": {{
			EntityID: "root",
			Subject:  models.TeamSubject(),
			Flags:    models.FullFlags(true),
		}},
	}

	// carol is not on team-1; the team sentinel must not apply.
	got := Resolve(root, []*models.Entity{root}, grants, nil, "carol", time.Now())

	if got.Read || got.Write || got.Comment || got.Share {
		t.Errorf("team grant leaked to non-member: %+v", got)
	}

	// A member of a different team is just as much an outsider.
	other := &models.Membership{TeamID: "team-2", UserID: "carol", Level: models.LevelAdmin}
	got = Resolve(root, []*models.Entity{root}, grants, other, "carol", time.Now())

	if got.Read || got.Write || got.Comment || got.Share {
		t.Errorf("other-team membership leaked team grant: %+v", got)
	}
}

func TestResolveGrantCannotRevokeTeamDefault(t *testing.T) {
	root := folder("root", "team-1", "alice", nil)
	membership := &models.Membership{TeamID: "team-1", UserID: "bob", Level: models.LevelMember}

	// Flags only accumulate across layers; an explicit false fold result
	// merges as zero, leaving the team seed intact.
	grants := map[string][]models.Grant{
		"root": {{
			EntityID: "root",
			Subject:  models.UserSubject("bob"),
			Flags:    models.FullFlags(false),
		}},
	}

	got := Resolve(root, []*models.Entity{root}, grants, membership, "bob", time.Now())

	if !got.Read || !got.Comment || !got.Share {
		t.Errorf("deny grant suppressed the team default: %+v", got)
	}
}
