package models

// Shortcut is a per-user, non-owning pointer to an entity, independently
// placed and named. Deleting a shortcut never touches its target.
type Shortcut struct {
	ID          string  `json:"id" db:"id"`
	TargetID    string  `json:"target_id" db:"target_id"`
	OwnerID     string  `json:"owner_id" db:"owner_id"`
	ParentID    *string `json:"parent_id" db:"parent_id"`
	IsActive    bool    `json:"is_active" db:"is_active"`
	IsFavourite bool    `json:"is_favourite" db:"is_favourite"`
	Title       string  `json:"title" db:"title"`
}
