package models

import (
	"time"
)

// SubjectKind discriminates who a permission grant applies to.
type SubjectKind int

const (
	// SubjectUser targets one concrete user.
	SubjectUser SubjectKind = iota
	// SubjectPublic targets anyone with access to the link.
	SubjectPublic
	// SubjectTeam targets every member of the entity's team.
	SubjectTeam
)

// Sentinel encodings used as the subject key in the grants table.
const (
	publicSentinel = ""
	teamSentinel   = "$TEAM"
)

// Subject identifies who a grant applies to: a concrete user, the public
// link sentinel, or the whole-team sentinel. Modeling the sentinels as a
// tagged union keeps the three-way resolver merge exhaustive instead of
// string-sniffing.
type Subject struct {
	Kind   SubjectKind
	UserID string // set only for SubjectUser
}

// UserSubject returns a subject for a concrete user id.
func UserSubject(userID string) Subject {
	return Subject{Kind: SubjectUser, UserID: userID}
}

// PublicSubject returns the anyone-with-the-link subject.
func PublicSubject() Subject {
	return Subject{Kind: SubjectPublic}
}

// TeamSubject returns the every-team-member subject.
func TeamSubject() Subject {
	return Subject{Kind: SubjectTeam}
}

// Encode returns the stable string form stored in the grants table.
func (s Subject) Encode() string {
	switch s.Kind {
	case SubjectPublic:
		return publicSentinel
	case SubjectTeam:
		return teamSentinel
	default:
		return s.UserID
	}
}

// ParseSubject decodes the stored subject key back into a Subject.
func ParseSubject(raw string) Subject {
	switch raw {
	case publicSentinel:
		return PublicSubject()
	case teamSentinel:
		return TeamSubject()
	default:
		return UserSubject(raw)
	}
}

// Flags is a partial set of permission flags. A nil field means the grant
// does not speak to that flag; the resolver's ancestor fold leaves unset
// fields untouched rather than zeroing them.
type Flags struct {
	Read    *bool `json:"read,omitempty"`
	Write   *bool `json:"write,omitempty"`
	Comment *bool `json:"comment,omitempty"`
	Share   *bool `json:"share,omitempty"`
}

// FullFlags returns flags with every field explicitly set to v.
func FullFlags(v bool) Flags {
	set := v
	return Flags{Read: &set, Write: &set, Comment: &set, Share: &set}
}

// IsZero reports whether no field is set.
func (f Flags) IsZero() bool {
	return f.Read == nil && f.Write == nil && f.Comment == nil && f.Share == nil
}

// Grant is one explicit, possibly-expiring access record for one subject
// on one entity. At most one grant exists per (entity, subject).
type Grant struct {
	EntityID   string     `json:"entity_id" db:"entity_id"`
	Subject    Subject    `json:"subject"`
	Flags      Flags      `json:"flags"`
	ValidUntil *time.Time `json:"valid_until,omitempty" db:"valid_until"`
}

// Expired reports whether the grant has lapsed; expired grants contribute
// nothing to resolution.
func (g *Grant) Expired(now time.Time) bool {
	return g.ValidUntil != nil && g.ValidUntil.Before(now)
}
