package models

import (
	"time"
)

// EntityState is the lifecycle state of an entity.
// Transitions: Active -> Trashed (trash), Trashed -> Active (restore,
// same actor only), Trashed -> Purged (terminal).
type EntityState int

const (
	StatePurged  EntityState = -1
	StateTrashed EntityState = 0
	StateActive  EntityState = 1
)

// Entity is a node in the shared hierarchical store: a file or a folder,
// living in a team subtree or a personal space.
type Entity struct {
	ID         string      `json:"id" db:"id"`
	Title      string      `json:"title" db:"title"`
	ParentID   *string     `json:"parent_id" db:"parent_id"` // NULL only for team/personal roots
	TeamID     string      `json:"team_id" db:"team_id"`
	OwnerID    string      `json:"owner_id" db:"owner_id"`
	IsGroup    bool        `json:"is_group" db:"is_group"`
	IsPrivate  bool        `json:"is_private" db:"is_private"`
	State      EntityState `json:"is_active" db:"is_active"`
	Size       int64       `json:"size" db:"size"`
	ContentRef string      `json:"content_ref,omitempty" db:"content_ref"` // blob path, empty for folders
	MimeType   string      `json:"mime_type,omitempty" db:"mime_type"`
	ModifiedBy string      `json:"modified_by" db:"modified_by"`
	ModifiedAt time.Time   `json:"modified_at" db:"modified_at"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

// IsRoot reports whether the entity is a team or personal root folder.
func (e *Entity) IsRoot() bool {
	return e.ParentID == nil
}

// HasVisualContent reports whether the entity's content type warrants a
// thumbnail (images and videos).
func (e *Entity) HasVisualContent() bool {
	if e.IsGroup {
		return false
	}
	switch {
	case len(e.MimeType) >= 6 && e.MimeType[:6] == "image/":
		return true
	case len(e.MimeType) >= 6 && e.MimeType[:6] == "video/":
		return true
	}
	return false
}
