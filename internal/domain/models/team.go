package models

// AccessLevel is a user's standing inside a team. It determines the
// default access to non-private entities in that team, independent of
// explicit grants.
type AccessLevel int

const (
	LevelGuest  AccessLevel = 0
	LevelMember AccessLevel = 1
	LevelAdmin  AccessLevel = 2
)

// AccessType maps a membership level to its resolver label.
func (l AccessLevel) AccessType() AccessType {
	switch l {
	case LevelAdmin:
		return AccessTypeAdmin
	case LevelMember:
		return AccessTypeMember
	default:
		return AccessTypeGuest
	}
}

// Membership ties a user to a team at an access level.
type Membership struct {
	TeamID string      `json:"team_id" db:"team_id"`
	UserID string      `json:"user_id" db:"user_id"`
	Level  AccessLevel `json:"access_level" db:"access_level"`
}
